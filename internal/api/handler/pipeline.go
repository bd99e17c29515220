package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielPopoola/job-scraper/internal/pipeline"
)

// PipelineRunner drives raw postings through the processing pipeline.
type PipelineRunner interface {
	ProcessPending(ctx context.Context) (*pipeline.ProcessingStats, error)
	ReprocessFailed(ctx context.Context) (*pipeline.ProcessingStats, error)
}

// PipelineHandler handles pipeline trigger endpoints.
type PipelineHandler struct {
	runner PipelineRunner
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(runner PipelineRunner) *PipelineHandler {
	return &PipelineHandler{runner: runner}
}

// Process handles POST /api/v1/pipeline/process. It runs one batch
// synchronously and returns the stats.
func (h *PipelineHandler) Process(c *gin.Context) {
	stats, err := h.runner.ProcessPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Pipeline run failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Reprocess handles POST /api/v1/pipeline/reprocess, re-running
// previously failed postings.
func (h *PipelineHandler) Reprocess(c *gin.Context) {
	stats, err := h.runner.ReprocessFailed(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Reprocess run failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
