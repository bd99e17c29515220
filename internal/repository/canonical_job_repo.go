package repository

import (
	"context"

	"github.com/DanielPopoola/job-scraper/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CanonicalJobRepository handles canonical job persistence.
type CanonicalJobRepository struct {
	db *gorm.DB
}

// NewCanonicalJobRepository creates a new CanonicalJobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CanonicalJobRepository: repository instance bound to db.
func NewCanonicalJobRepository(db *gorm.DB) *CanonicalJobRepository {
	return &CanonicalJobRepository{db: db}
}

// FindCandidates returns the canonical jobs sharing a bucket key. The
// bucket bounds the comparison set so duplicate detection never scans the
// whole table.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - bucketKey: normalized company+location grouping key.
// Returns:
//   - []domain.CanonicalJob: candidates in the bucket.
//   - error: non-nil if the query fails.
func (r *CanonicalJobRepository) FindCandidates(ctx context.Context, bucketKey string) ([]domain.CanonicalJob, error) {
	var jobs []domain.CanonicalJob
	if err := r.db.WithContext(ctx).
		Where("bucket_key = ?", bucketKey).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Upsert creates or updates a canonical job keyed by ID.
func (r *CanonicalJobRepository) Upsert(ctx context.Context, job *domain.CanonicalJob) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(job).Error
}

// GetByID retrieves a canonical job by its ID.
func (r *CanonicalJobRepository) GetByID(ctx context.Context, id string) (*domain.CanonicalJob, error) {
	var job domain.CanonicalJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// List retrieves canonical jobs with optional company/location filters and
// pagination, newest last-seen first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - company: company filter; empty means all.
//   - location: location filter; empty means all.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.CanonicalJob: matching records.
//   - error: non-nil if the query fails.
func (r *CanonicalJobRepository) List(ctx context.Context, company, location string, limit, offset int) ([]domain.CanonicalJob, error) {
	var jobs []domain.CanonicalJob
	query := r.db.WithContext(ctx)
	if company != "" {
		query = query.Where("company = ?", company)
	}
	if location != "" {
		query = query.Where("location = ?", location)
	}
	if err := query.
		Order("last_seen DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Count returns the total number of canonical jobs.
func (r *CanonicalJobRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CanonicalJob{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
