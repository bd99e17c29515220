package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DanielPopoola/job-scraper/internal/domain"
)

const defaultMaxJobs = 25

// SessionStarter starts a scraping session in the background.
type SessionStarter interface {
	StartSession(ctx context.Context, tasks []domain.ScrapingTask) (string, error)
}

// SessionReader loads persisted session state.
type SessionReader interface {
	GetByID(ctx context.Context, id string) (*domain.ScrapingSession, error)
}

// SiteLister reports which scraper sites are available.
type SiteLister interface {
	Sites() []string
}

// SessionHandler handles session trigger and polling endpoints.
type SessionHandler struct {
	starter SessionStarter
	reader  SessionReader
	sites   SiteLister
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(starter SessionStarter, reader SessionReader, sites SiteLister) *SessionHandler {
	return &SessionHandler{
		starter: starter,
		reader:  reader,
		sites:   sites,
	}
}

// StartSessionRequest is the body of POST /api/v1/sessions. Omitting
// sites targets every registered site; tasks are the cross product of
// sites and search terms.
type StartSessionRequest struct {
	Sites       []string `json:"sites"`
	SearchTerms []string `json:"search_terms" binding:"required,min=1"`
	Location    string   `json:"location"`
	MaxJobs     int      `json:"max_jobs"`
}

// StartSession handles POST /api/v1/sessions. It responds 202 with the
// session ID immediately; progress is observed by polling GET.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	sites := req.Sites
	if len(sites) == 0 {
		sites = h.sites.Sites()
	}
	if len(sites) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No scraper sites available",
		})
		return
	}

	known := make(map[string]bool)
	for _, s := range h.sites.Sites() {
		known[s] = true
	}
	for _, site := range sites {
		if !known[site] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Unsupported site: " + site,
			})
			return
		}
	}

	maxJobs := req.MaxJobs
	if maxJobs <= 0 {
		maxJobs = defaultMaxJobs
	}

	tasks := make([]domain.ScrapingTask, 0, len(sites)*len(req.SearchTerms))
	for _, site := range sites {
		for _, term := range req.SearchTerms {
			tasks = append(tasks, domain.ScrapingTask{
				Site:       site,
				SearchTerm: term,
				Location:   req.Location,
				MaxJobs:    maxJobs,
			})
		}
	}

	id, err := h.starter.StartSession(c.Request.Context(), tasks)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to start session: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session_id":  id,
		"tasks_total": len(tasks),
		"status":      string(domain.SessionStatusRunning),
	})
}

// GetSession handles GET /api/v1/sessions/:id.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Session ID is required",
		})
		return
	}

	session, err := h.reader.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Session not found",
		})
		return
	}

	c.JSON(http.StatusOK, session)
}
