package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xaenox/schedule-bot/internal/app"
	"github.com/xaenox/schedule-bot/internal/server"
	"github.com/xaenox/schedule-bot/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

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

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	h := server.NewHandler(server.Deps{
		Turns:    a.Orchestrator,
		Store:    a.Store,
		Parser:   a.Parser,
		Rules:    a.Validator,
		Policy:   a.Policy,
		Location: a.Resolver.Location(),
		Version:  version,
	}, logger)
	srv := server.New(cfg.Server.Addr, h, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Server stopped")
}
