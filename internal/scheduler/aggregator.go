package scheduler

import (
	"sync"
	"time"

	"github.com/DanielPopoola/job-scraper/internal/domain"
)

// SessionResult is the aggregate outcome of one scraping session, built
// only after every task has resolved.
type SessionResult struct {
	SessionID         string               `json:"session_id"`
	Status            domain.SessionStatus `json:"status"`
	Total             int                  `json:"total"`
	Succeeded         int                  `json:"succeeded"`
	Failed            int                  `json:"failed"`
	RetriedCount      int                  `json:"retried_count"`
	TotalItemsScraped int                  `json:"total_items_scraped"`
	SuccessRate       float64              `json:"success_rate"`
	DurationMs        int64                `json:"duration_ms"`
	PerTaskDetail     []domain.TaskOutcome `json:"per_task_detail"`
}

// SessionAggregator accumulates per-task outcomes behind a mutex. One
// outcome is recorded per task; Result must only be called after the
// worker-pool join, when every task has resolved.
type SessionAggregator struct {
	mu       sync.Mutex
	total    int
	outcomes []domain.TaskOutcome
}

// NewSessionAggregator creates an aggregator expecting total task outcomes.
func NewSessionAggregator(total int) *SessionAggregator {
	return &SessionAggregator{
		total:    total,
		outcomes: make([]domain.TaskOutcome, 0, total),
	}
}

// Record stores one task's outcome. Safe for concurrent use.
func (a *SessionAggregator) Record(outcome domain.TaskOutcome) {
	a.mu.Lock()
	a.outcomes = append(a.outcomes, outcome)
	a.mu.Unlock()
}

// Resolved reports how many outcomes have been recorded so far.
func (a *SessionAggregator) Resolved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.outcomes)
}

// Result merges the recorded outcomes into a SessionResult. The session
// status is completed iff all tasks succeeded, failed iff all failed, and
// partial otherwise. SuccessRate is succeeded/total, in [0,1].
func (a *SessionAggregator) Result(sessionID string, started, ended time.Time) *SessionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := &SessionResult{
		SessionID:     sessionID,
		Total:         a.total,
		DurationMs:    ended.Sub(started).Milliseconds(),
		PerTaskDetail: append([]domain.TaskOutcome(nil), a.outcomes...),
	}

	for _, o := range a.outcomes {
		if o.Succeeded {
			res.Succeeded++
		} else {
			res.Failed++
		}
		if o.Attempts > 1 {
			res.RetriedCount++
		}
		res.TotalItemsScraped += o.ItemsScraped
	}

	if res.Total > 0 {
		res.SuccessRate = float64(res.Succeeded) / float64(res.Total)
	}

	switch {
	case res.Total == 0 || res.Failed == 0:
		res.Status = domain.SessionStatusCompleted
	case res.Succeeded == 0:
		res.Status = domain.SessionStatusFailed
	default:
		res.Status = domain.SessionStatusPartial
	}

	return res
}
