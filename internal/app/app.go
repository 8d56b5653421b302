// Package app builds the scheduling core from configuration. Every entry
// point shares this wiring.
package app

import (
	"fmt"
	"path/filepath"

	"github.com/xaenox/schedule-bot/internal/agent"
	"github.com/xaenox/schedule-bot/internal/calendar"
	"github.com/xaenox/schedule-bot/internal/classifier"
	"github.com/xaenox/schedule-bot/internal/conversation"
	"github.com/xaenox/schedule-bot/internal/models"
	"github.com/xaenox/schedule-bot/internal/parser"
	"github.com/xaenox/schedule-bot/internal/storage"
	"github.com/xaenox/schedule-bot/internal/temporal"
	"github.com/xaenox/schedule-bot/internal/validator"
	"github.com/xaenox/schedule-bot/pkg/config"
	"go.uber.org/zap"
)

type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Policy       models.Policy
	Storage      storage.Storage
	Store        *conversation.Store
	Resolver     *temporal.Resolver
	Parser       *parser.Parser
	Validator    *validator.Validator
	Calendar     *calendar.LocalCalendar
	Orchestrator *agent.Orchestrator
}

func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewStorage opens the session storage selected by cfg.Driver.
func NewStorage(cfg config.StorageConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case "file", "":
		logger.Info("Using file storage", zap.String("path", cfg.Path))
		return storage.NewFileStorage(cfg.Path, logger)
	case "sqlite":
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "sessions.db")
		}
		logger.Info("Using SQLite storage", zap.String("path", path))
		return storage.NewSQLiteStorage(path)
	case "postgres":
		logger.Info("Using PostgreSQL storage",
			zap.String("host", cfg.Database.Host),
			zap.String("dbname", cfg.Database.DBName))
		return storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
	case "redis":
		logger.Info("Using Redis storage", zap.String("addr", cfg.Redis.Addr))
		return storage.NewRedisStorage(storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewClassifier uses the OpenAI classifier when an API key is configured.
func NewClassifier(cfg config.OpenAIConfig, logger *zap.Logger) classifier.Classifier {
	if cfg.APIKey == "" {
		logger.Info("OpenAI API key not set, using keyword classifier")
		return classifier.NewSimpleClassifier()
	}
	logger.Info("Using GPT classifier", zap.String("model", cfg.Model))
	return classifier.NewGPTClassifier(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens, cfg.Temperature, logger)
}

func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	st, err := NewStorage(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return NewWithStorage(cfg, st, logger)
}

// NewWithStorage wires the core around an already opened storage.
func NewWithStorage(cfg *config.Config, st storage.Storage, logger *zap.Logger) (*App, error) {
	resolver, err := temporal.NewResolver(cfg.App.Timezone, temporal.WithStrict(cfg.App.StrictDates))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resolver: %w", err)
	}

	policy := models.Policy{
		OpeningHour: cfg.Business.OpeningHour,
		ClosingHour: cfg.Business.ClosingHour,
		WorkingDays: cfg.Business.WorkingDays,
	}

	store := conversation.NewStore(st, logger)
	cal := calendar.NewLocalCalendar(logger)
	p := parser.New(resolver, NewClassifier(cfg.OpenAI, logger))
	v := validator.New(cal, logger)

	orch := agent.New(store, p, v, cal, agent.Config{
		Policy:          policy,
		ContextMessages: cfg.App.ContextMessages,
	}, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Policy:       policy,
		Storage:      st,
		Store:        store,
		Resolver:     resolver,
		Parser:       p,
		Validator:    v,
		Calendar:     cal,
		Orchestrator: orch,
	}, nil
}

func (a *App) Close() error {
	return a.Storage.Close()
}
