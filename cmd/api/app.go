package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/stroke-api/internal/config"
	"github.com/jwalitptl/stroke-api/internal/repository"
	"github.com/jwalitptl/stroke-api/internal/repository/memory"
	"github.com/jwalitptl/stroke-api/internal/repository/postgres"
	"github.com/jwalitptl/stroke-api/internal/service/exchange"
	"github.com/jwalitptl/stroke-api/internal/service/patient"
	"github.com/jwalitptl/stroke-api/pkg/logger"
	"github.com/jwalitptl/stroke-api/pkg/metrics"
)

// app holds what every command needs: configuration, a logger and an open
// store. The HTTP-only pieces are built by serve.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    repository.Store
	metrics  *metrics.Metrics
	patients *patient.Service
	exchange *exchange.Service
}

func loadConfig(configDir string) (*config.Config, zerolog.Logger, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}
	cfg, err := config.LoadConfig(paths...)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Setup(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return cfg, log, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (repository.Store, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory store; data is lost on exit")
		return memory.NewStore(), nil
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := postgres.Migrate(migrateCtx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Name).
		Msg("connected to database")
	return postgres.NewStore(db), nil
}

func newApp(ctx context.Context, configDir string, m *metrics.Metrics) (*app, error) {
	cfg, log, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	patients := patient.NewService(
		store.Patients(),
		patient.QueryBuilder{LegacyExternalIDUnion: cfg.Search.LegacyExternalIDUnion},
		m,
		log,
	)
	exchangeSvc := exchange.NewService(store, patients, exchange.Config{Strict: cfg.Import.Strict}, m, log)

	return &app{
		cfg:      cfg,
		logger:   log,
		store:    store,
		metrics:  m,
		patients: patients,
		exchange: exchangeSvc,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close store")
	}
}
