package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xaenox/schedule-bot/internal/app"
	"github.com/xaenox/schedule-bot/internal/bot"
	"github.com/xaenox/schedule-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	path := config.PathFromEnv()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", path))
	}
	if cfg.App.Debug {
		if logger, err = app.NewLogger(true); err != nil {
			panic(err)
		}
	}
	if cfg.Telegram.Token == "" {
		logger.Fatal("Telegram token is not configured")
	}

	// Wire storage, parser, validator, calendar and orchestrator
	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, a.Orchestrator, a.Store, cfg.Telegram.MessageEvery, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Bot stopped")
}
