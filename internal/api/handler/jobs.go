package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DanielPopoola/job-scraper/internal/domain"
)

const maxListLimit = 100

// JobStore reads canonical jobs.
type JobStore interface {
	List(ctx context.Context, company, location string, limit, offset int) ([]domain.CanonicalJob, error)
	GetByID(ctx context.Context, id string) (*domain.CanonicalJob, error)
	Count(ctx context.Context) (int64, error)
}

// JobsHandler handles canonical job read endpoints.
type JobsHandler struct {
	store JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// ListJobs handles GET /api/v1/jobs with optional company/location
// filters and limit/offset pagination.
func (h *JobsHandler) ListJobs(c *gin.Context) {
	company := c.Query("company")
	location := c.Query("location")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > maxListLimit {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := h.store.List(c.Request.Context(), company, location, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	total, err := h.store.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *JobsHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Job ID is required",
		})
		return
	}

	job, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}
