package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/job-scraper/internal/api"
	"github.com/DanielPopoola/job-scraper/internal/config"
	"github.com/DanielPopoola/job-scraper/internal/logger"
	"github.com/DanielPopoola/job-scraper/internal/pipeline"
	"github.com/DanielPopoola/job-scraper/internal/repository"
	"github.com/DanielPopoola/job-scraper/internal/scheduler"
	"github.com/DanielPopoola/job-scraper/internal/scraper"
	"github.com/DanielPopoola/job-scraper/internal/scraper/indeed"
	"github.com/DanielPopoola/job-scraper/internal/scraper/linkedin"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "job-scraper-api",
		Environment: cfg.Log.Environment,
		LogFile:     cfg.Log.File,
		LogFileOnly: cfg.Log.FileOnly,
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	rawRepo := repository.NewRawJobRepository(db)
	canonicalRepo := repository.NewCanonicalJobRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	registry := scraper.NewRegistry()
	registry.Register(linkedin.SiteKey, func() scraper.Scraper {
		return linkedin.New(linkedin.Config{
			Timeout:   cfg.Scrapers.RequestTimeout,
			UserAgent: cfg.Scrapers.UserAgent,
		})
	})
	registry.Register(indeed.SiteKey, func() scraper.Scraper {
		return indeed.New(indeed.Config{
			Timeout:   cfg.Scrapers.RequestTimeout,
			UserAgent: cfg.Scrapers.UserAgent,
		})
	})

	sched := scheduler.NewScheduler(registry, rawRepo, sessionRepo, cfg.Scheduler, appLogger)

	detector := pipeline.NewDuplicateDetector(cfg.Pipeline.SimilarityThreshold, pipeline.SimilarityWeights{
		Title:    cfg.Pipeline.TitleWeight,
		Company:  cfg.Pipeline.CompanyWeight,
		Location: cfg.Pipeline.LocationWeight,
	})
	runner := pipeline.NewRunner(rawRepo, canonicalRepo, detector, cfg.Pipeline.BatchSize)

	router := api.SetupRouter(db, sched, runner, registry, rawRepo, canonicalRepo, sessionRepo, &cfg.Server)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
