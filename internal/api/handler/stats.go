package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DanielPopoola/job-scraper/internal/domain"
)

// RawCounter reports backlog counts per raw status.
type RawCounter interface {
	CountByStatus(ctx context.Context, status domain.RawStatus) (int64, error)
}

// CanonicalCounter reports the deduplicated job count.
type CanonicalCounter interface {
	Count(ctx context.Context) (int64, error)
}

// SessionLister reads recent sessions for health reporting.
type SessionLister interface {
	ListSince(ctx context.Context, cutoff time.Time, limit int) ([]domain.ScrapingSession, error)
}

// StatsHandler handles GET /api/v1/stats: pipeline backlog plus recent
// session health.
type StatsHandler struct {
	raw       RawCounter
	canonical CanonicalCounter
	sessions  SessionLister
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(raw RawCounter, canonical CanonicalCounter, sessions SessionLister) *StatsHandler {
	return &StatsHandler{
		raw:       raw,
		canonical: canonical,
		sessions:  sessions,
	}
}

// Stats handles GET /api/v1/stats.
func (h *StatsHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	backlog := make(map[string]int64, 4)
	for _, status := range []domain.RawStatus{
		domain.RawStatusPending,
		domain.RawStatusProcessing,
		domain.RawStatusProcessed,
		domain.RawStatusFailed,
	} {
		count, err := h.raw.CountByStatus(ctx, status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to count raw postings: " + err.Error(),
			})
			return
		}
		backlog[string(status)] = count
	}

	canonicalCount, err := h.canonical.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count canonical jobs: " + err.Error(),
		})
		return
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	recent, err := h.sessions.ListSince(ctx, cutoff, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load recent sessions: " + err.Error(),
		})
		return
	}

	sessionStats := gin.H{
		"recent_total": len(recent),
		"running":      0,
		"completed":    0,
		"partial":      0,
		"failed":       0,
	}
	var totalItems int
	for _, s := range recent {
		key := string(s.Status)
		if n, ok := sessionStats[key].(int); ok {
			sessionStats[key] = n + 1
		}
		totalItems += s.TotalItemsScraped
	}
	sessionStats["items_scraped_24h"] = totalItems

	c.JSON(http.StatusOK, gin.H{
		"raw_postings":   backlog,
		"canonical_jobs": canonicalCount,
		"sessions":       sessionStats,
	})
}
