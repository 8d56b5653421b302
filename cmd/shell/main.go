package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/xaenox/schedule-bot/internal/app"
	"github.com/xaenox/schedule-bot/internal/shell"
	"github.com/xaenox/schedule-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	message := flag.String("m", "", "single message to process (non-interactive)")
	sessionID := flag.String("session", "", "resume an existing session id")
	flag.Parse()

	path := config.PathFromEnv()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Errore di configurazione: %v\n", err)
		os.Exit(1)
	}

	// Log lines would interleave with the conversation, so keep quiet
	// unless debugging.
	logger := zap.NewNop()
	if cfg.App.Debug {
		if logger, err = app.NewLogger(true); err != nil {
			panic(err)
		}
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Errore durante l'inizializzazione: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	sh := shell.New(a.Orchestrator, a.Store, *sessionID, logger)

	ctx := context.Background()

	if *message != "" {
		fmt.Println("🤖 Risposta: " + sh.Once(ctx, *message))
		return
	}

	if err := sh.Run(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Errore: %v\n", err)
		os.Exit(1)
	}
}
