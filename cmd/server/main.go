// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordercast/ordercast/internal/api"
	"github.com/ordercast/ordercast/internal/cache"
	"github.com/ordercast/ordercast/internal/config"
	"github.com/ordercast/ordercast/internal/repository/postgres"
	"github.com/ordercast/ordercast/internal/service"
	"github.com/ordercast/ordercast/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// A broken cache degrades to recomputing every request.
	forecastCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Cache unavailable, falling back to noop")
		forecastCache = cache.NewNoopForecastCache()
	}

	// Initialize repositories and services
	catalogRepo := postgres.NewCatalogRepository(db)
	salesRepo := postgres.NewSalesRepository(db)
	snapshotRepo := postgres.NewSnapshotRepository(db)
	accuracyRepo := postgres.NewAccuracyRepository(db)
	paramsRepo := postgres.NewParamsRepository(db)

	services := &api.Services{
		ForecastService: service.NewForecastService(
			catalogRepo, salesRepo, snapshotRepo, paramsRepo, accuracyRepo,
			forecastCache, cfg.Forecast,
		),
		LearningService: service.NewLearningService(
			snapshotRepo, accuracyRepo, paramsRepo, salesRepo, catalogRepo,
			forecastCache, cfg.Jobs.Parallelism,
		),
	}

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
