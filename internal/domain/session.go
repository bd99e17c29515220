package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SessionStatus represents the lifecycle state of a scraping session.
// The status is only final once every task has resolved.
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusPartial   SessionStatus = "partial"
	SessionStatusFailed    SessionStatus = "failed"
)

// ScrapingTask is the immutable unit of work handed to the scheduler:
// one search on one site.
type ScrapingTask struct {
	Site       string `json:"site"`
	SearchTerm string `json:"search_term"`
	Location   string `json:"location,omitempty"`
	MaxJobs    int    `json:"max_jobs"`
}

// TaskOutcome records how a single task resolved within a session.
type TaskOutcome struct {
	Task         ScrapingTask `json:"task"`
	Succeeded    bool         `json:"succeeded"`
	Attempts     int          `json:"attempts"`
	ItemsScraped int          `json:"items_scraped"`
	// ItemsDropped counts items the scraper yielded that could not be
	// persisted. Duplicate postings are not drops.
	ItemsDropped int    `json:"items_dropped,omitempty"`
	Error        string `json:"error,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
}

// TaskOutcomes is stored as a JSON column on the session row.
type TaskOutcomes []TaskOutcome

// Value implements the driver.Valuer interface for database serialization.
func (o TaskOutcomes) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (o *TaskOutcomes) Scan(value interface{}) error {
	if value == nil {
		*o = TaskOutcomes{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan TaskOutcomes")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, o)
}

// ScrapingSession tracks one orchestrated batch of scraping tasks for
// monitoring and debugging. It owns its task outcomes for its lifetime.
type ScrapingSession struct {
	ID                string        `gorm:"type:text;primaryKey" json:"id"`
	StartedAt         time.Time     `gorm:"index:idx_sessions_started" json:"started_at"`
	EndedAt           *time.Time    `json:"ended_at,omitempty"`
	Status            SessionStatus `gorm:"type:text;index:idx_sessions_status;default:running" json:"status"`
	TasksTotal        int           `gorm:"default:0" json:"tasks_total"`
	TasksSucceeded    int           `gorm:"default:0" json:"tasks_succeeded"`
	TasksFailed       int           `gorm:"default:0" json:"tasks_failed"`
	TotalItemsScraped int           `gorm:"default:0" json:"total_items_scraped"`
	Outcomes          TaskOutcomes  `gorm:"type:text" json:"outcomes"`
	ErrorMessage      string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TableName returns the database table name for ScrapingSession.
func (ScrapingSession) TableName() string {
	return "scraping_sessions"
}

// SuccessRate returns succeeded/total. It is only meaningful once the
// session has left the running state.
func (s *ScrapingSession) SuccessRate() float64 {
	if s.TasksTotal == 0 {
		return 0
	}
	return float64(s.TasksSucceeded) / float64(s.TasksTotal)
}
