package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/DanielPopoola/job-scraper/internal/config"
	"github.com/DanielPopoola/job-scraper/internal/domain"
	"github.com/DanielPopoola/job-scraper/internal/logger"
	"github.com/DanielPopoola/job-scraper/internal/pipeline"
	"github.com/DanielPopoola/job-scraper/internal/repository"
	"github.com/DanielPopoola/job-scraper/internal/scheduler"
	"github.com/DanielPopoola/job-scraper/internal/scraper"
	"github.com/DanielPopoola/job-scraper/internal/scraper/indeed"
	"github.com/DanielPopoola/job-scraper/internal/scraper/linkedin"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "job-scraper-cli",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	sites := flag.String("sites", "", "Comma-separated sites to scrape (default: all registered)")
	terms := flag.String("terms", "", "Comma-separated search terms")
	location := flag.String("location", "", "Location filter for searches")
	maxJobs := flag.Int("max-jobs", 25, "Maximum postings per task")
	process := flag.Bool("process", false, "Run the processing pipeline instead of scraping")
	reprocess := flag.Bool("reprocess", false, "Re-run previously failed postings through the pipeline")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	rawRepo := repository.NewRawJobRepository(db)
	canonicalRepo := repository.NewCanonicalJobRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	if *process || *reprocess {
		runPipeline(ctx, appLogger, cfg, rawRepo, canonicalRepo, *reprocess)
		return
	}

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

	searchTerms := splitList(*terms)
	if len(searchTerms) == 0 {
		appLogger.Fatal("No search terms given; pass -terms or use -process/-reprocess")
	}

	targetSites := splitList(*sites)
	if len(targetSites) == 0 {
		targetSites = registry.Sites()
	}

	tasks := make([]domain.ScrapingTask, 0, len(targetSites)*len(searchTerms))
	for _, site := range targetSites {
		for _, term := range searchTerms {
			tasks = append(tasks, domain.ScrapingTask{
				Site:       site,
				SearchTerm: term,
				Location:   *location,
				MaxJobs:    *maxJobs,
			})
		}
	}

	appLogger.WithFields(logger.Fields{
		"sites": targetSites,
		"terms": searchTerms,
		"tasks": len(tasks),
	}).Info("Starting scraping session")

	sched := scheduler.NewScheduler(registry, rawRepo, sessionRepo, cfg.Scheduler, appLogger)
	result, err := sched.RunSession(ctx, tasks)
	if err != nil {
		appLogger.WithError(err).Fatal("Session failed to start")
	}

	appLogger.WithFields(logger.Fields{
		"session_id": result.SessionID,
		"status":     string(result.Status),
		"succeeded":  result.Succeeded,
		"failed":     result.Failed,
		"items":      result.TotalItemsScraped,
	}).Info("Session finished")

	if result.Status == domain.SessionStatusFailed {
		os.Exit(1)
	}
}

func runPipeline(
	ctx context.Context,
	appLogger *logger.Logger,
	cfg *config.Config,
	rawRepo *repository.RawJobRepository,
	canonicalRepo *repository.CanonicalJobRepository,
	reprocess bool,
) {
	detector := pipeline.NewDuplicateDetector(cfg.Pipeline.SimilarityThreshold, pipeline.SimilarityWeights{
		Title:    cfg.Pipeline.TitleWeight,
		Company:  cfg.Pipeline.CompanyWeight,
		Location: cfg.Pipeline.LocationWeight,
	})
	runner := pipeline.NewRunner(rawRepo, canonicalRepo, detector, cfg.Pipeline.BatchSize)

	var (
		stats *pipeline.ProcessingStats
		err   error
	)
	if reprocess {
		stats, err = runner.ReprocessFailed(ctx)
	} else {
		stats, err = runner.ProcessPending(ctx)
	}
	if err != nil {
		appLogger.WithError(err).Fatal("Pipeline run failed")
	}

	appLogger.WithFields(logger.Fields{
		"claimed":   stats.Claimed,
		"processed": stats.Processed,
		"merged":    stats.Merged,
		"created":   stats.Created,
		"failed":    stats.Failed,
	}).Info("Pipeline run finished")
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
