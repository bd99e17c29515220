package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DanielPopoola/job-scraper/internal/domain"
	"gorm.io/gorm"
)

// RawJobRepository handles raw job posting persistence.
type RawJobRepository struct {
	db *gorm.DB
}

// NewRawJobRepository creates a new RawJobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RawJobRepository: repository instance bound to db.
func NewRawJobRepository(db *gorm.DB) *RawJobRepository {
	return &RawJobRepository{db: db}
}

// Insert persists a newly scraped posting. A collision on the
// (site, source_url) unique index comes back as domain.ErrDuplicateURL
// so callers can skip re-scraped postings without masking real insert
// failures.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - raw: posting to persist; Status should be pending.
// Returns:
//   - error: domain.ErrDuplicateURL on a duplicate, non-nil otherwise
//     if the insert fails.
func (r *RawJobRepository) Insert(ctx context.Context, raw *domain.RawJobPosting) error {
	err := r.db.WithContext(ctx).Create(raw).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateURL
	}
	return err
}

// ClaimBatch atomically moves up to limit rows from the given status into
// processing and returns them. The status flip happens inside one
// transaction guarded by a compare-and-swap on the expected pre-state, so
// two concurrent claims never both win the same row. Claimed rows get
// their RetryCount incremented.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - from: expected pre-state, pending or failed.
//   - limit: maximum number of rows to claim.
// Returns:
//   - []domain.RawJobPosting: the rows now owned by the caller.
//   - error: non-nil if the claim transaction fails.
func (r *RawJobRepository) ClaimBatch(ctx context.Context, from domain.RawStatus, limit int) ([]domain.RawJobPosting, error) {
	var claimed []domain.RawJobPosting

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []domain.RawJobPosting
		if err := tx.
			Where("status = ?", from).
			Order("scraped_at ASC").
			Limit(limit).
			Find(&candidates).Error; err != nil {
			return err
		}

		for _, row := range candidates {
			res := tx.Model(&domain.RawJobPosting{}).
				Where("id = ? AND status = ?", row.ID, from).
				Updates(map[string]interface{}{
					"status":      domain.RawStatusProcessing,
					"retry_count": gorm.Expr("retry_count + 1"),
					"updated_at":  time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			// Zero rows affected means another claimer won the race.
			if res.RowsAffected == 0 {
				continue
			}
			row.Status = domain.RawStatusProcessing
			row.RetryCount++
			claimed = append(claimed, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkProcessed marks a row as successfully processed and clears any
// previous error message.
func (r *RawJobRepository) MarkProcessed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.RawJobPosting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        domain.RawStatusProcessed,
			"error_message": "",
		}).Error
}

// MarkFailed marks a row as failed with the captured error message.
func (r *RawJobRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&domain.RawJobPosting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        domain.RawStatusFailed,
			"error_message": errMsg,
		}).Error
}

// ReleaseStuck moves rows that have sat in processing longer than
// olderThan to failed, giving rows abandoned by a dead claimer a way
// back into the reprocess path. Returns how many rows were released.
func (r *RawJobRepository) ReleaseStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RawJobPosting{}).
		Where("status = ? AND updated_at < ?", domain.RawStatusProcessing, time.Now().Add(-olderThan)).
		Updates(map[string]interface{}{
			"status":        domain.RawStatusFailed,
			"error_message": "abandoned in processing",
		})
	return res.RowsAffected, res.Error
}

// CountByStatus counts raw postings in the given status.
func (r *RawJobRepository) CountByStatus(ctx context.Context, status domain.RawStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.RawJobPosting{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetByID retrieves a raw posting by its ID.
func (r *RawJobRepository) GetByID(ctx context.Context, id string) (*domain.RawJobPosting, error) {
	var raw domain.RawJobPosting
	if err := r.db.WithContext(ctx).First(&raw, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &raw, nil
}
