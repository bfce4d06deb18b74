// cmd/jobs/runtime.go
package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/ordercast/ordercast/internal/cache"
	"github.com/ordercast/ordercast/internal/config"
	"github.com/ordercast/ordercast/internal/repository"
	"github.com/ordercast/ordercast/internal/repository/postgres"
	"github.com/ordercast/ordercast/internal/service"
	"github.com/ordercast/ordercast/internal/storage"
	"github.com/ordercast/ordercast/pkg/logger"
)

// jobEnv wires the repositories and services the batch commands share.
// Unlike the schema commands it runs on the pooled sqlx handle so the
// service stack can be reused as-is.
type jobEnv struct {
	cfg       *config.Config
	db        *postgres.DB
	learning  *service.LearningService
	snapshots repository.SnapshotRepository
}

func newJobEnv() (*jobEnv, error) {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.LogLevel)

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	forecastCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("Cache unavailable, falling back to noop")
		forecastCache = cache.NewNoopForecastCache()
	}

	snapshotRepo := postgres.NewSnapshotRepository(db)
	accuracyRepo := postgres.NewAccuracyRepository(db)
	paramsRepo := postgres.NewParamsRepository(db)
	salesRepo := postgres.NewSalesRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)

	return &jobEnv{
		cfg: cfg,
		db:  db,
		learning: service.NewLearningService(
			snapshotRepo, accuracyRepo, paramsRepo, salesRepo, catalogRepo,
			forecastCache, cfg.Jobs.Parallelism,
		),
		snapshots: snapshotRepo,
	}, nil
}

func (e *jobEnv) Close() {
	e.db.Close()
}

func (e *jobEnv) newArchiver() (*storage.Archiver, error) {
	store, err := storage.NewMinioClient(e.cfg.Archive)
	if err != nil {
		return nil, err
	}

	return storage.NewArchiver(e.snapshots, store, e.cfg.Archive.AfterDays), nil
}

func runEvaluate(c *cli.Context) error {
	asOf, err := parseAsOf(c)
	if err != nil {
		return err
	}

	env, err := newJobEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.learning.EvaluateForecasts(c.Context, asOf); err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	return nil
}

func runLearn(c *cli.Context) error {
	asOf, err := parseAsOf(c)
	if err != nil {
		return err
	}

	env, err := newJobEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.learning.LearnParameters(c.Context, asOf); err != nil {
		return fmt.Errorf("learning failed: %w", err)
	}
	return nil
}

func runArchive(c *cli.Context) error {
	asOf, err := parseAsOf(c)
	if err != nil {
		return err
	}

	env, err := newJobEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	archiver, err := env.newArchiver()
	if err != nil {
		return err
	}

	report, err := archiver.Run(c.Context, asOf, c.Bool("prune"))
	if err != nil {
		return fmt.Errorf("archive failed: %w", err)
	}

	log.Info().
		Int("snapshots", report.Snapshots).
		Int("objects", report.Objects).
		Int64("pruned", report.Pruned).
		Msg("archive complete")
	return nil
}
