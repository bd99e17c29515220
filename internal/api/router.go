package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/DanielPopoola/job-scraper/internal/api/handler"
	"github.com/DanielPopoola/job-scraper/internal/api/middleware"
	"github.com/DanielPopoola/job-scraper/internal/config"
	"github.com/DanielPopoola/job-scraper/internal/pipeline"
	"github.com/DanielPopoola/job-scraper/internal/repository"
	"github.com/DanielPopoola/job-scraper/internal/scheduler"
	"github.com/DanielPopoola/job-scraper/internal/scraper"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	db *gorm.DB,
	sched *scheduler.Scheduler,
	runner *pipeline.Runner,
	registry *scraper.Registry,
	rawRepo *repository.RawJobRepository,
	canonicalRepo *repository.CanonicalJobRepository,
	sessionRepo *repository.SessionRepository,
	cfg *config.ServerConfig,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(db)
	sessionHandler := handler.NewSessionHandler(sched, sessionRepo, registry)
	pipelineHandler := handler.NewPipelineHandler(runner)
	jobsHandler := handler.NewJobsHandler(canonicalRepo)
	statsHandler := handler.NewStatsHandler(rawRepo, canonicalRepo, sessionRepo)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Sessions
		v1.POST("/sessions", sessionHandler.StartSession)
		v1.GET("/sessions/:id", sessionHandler.GetSession)

		// Pipeline
		v1.POST("/pipeline/process", pipelineHandler.Process)
		v1.POST("/pipeline/reprocess", pipelineHandler.Reprocess)

		// Canonical jobs
		v1.GET("/jobs", jobsHandler.ListJobs)
		v1.GET("/jobs/:id", jobsHandler.GetJob)

		// Stats
		v1.GET("/stats", statsHandler.Stats)
	}

	return r
}
