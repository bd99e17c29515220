package repository

import (
	"context"
	"time"

	"github.com/DanielPopoola/job-scraper/internal/domain"
	"gorm.io/gorm"
)

// SessionRepository handles scraping session persistence.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row in the running state.
func (r *SessionRepository) Create(ctx context.Context, session *domain.ScrapingSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// Finalize writes the session's terminal state and outcome detail. The
// caller must only invoke this after every task has resolved.
func (r *SessionRepository) Finalize(ctx context.Context, session *domain.ScrapingSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.ScrapingSession, error) {
	var session domain.ScrapingSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSince retrieves sessions started at or after the cutoff, newest
// first. Used by the stats endpoint to report recent scraping health.
func (r *SessionRepository) ListSince(ctx context.Context, cutoff time.Time, limit int) ([]domain.ScrapingSession, error) {
	var sessions []domain.ScrapingSession
	if err := r.db.WithContext(ctx).
		Where("started_at >= ?", cutoff).
		Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
