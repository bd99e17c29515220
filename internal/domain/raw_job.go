package domain

import (
	"errors"
	"time"
)

// ErrDuplicateURL reports an insert that collided with the (site, source
// URL) unique index. Overlapping searches legitimately yield the same
// posting twice, so callers treat this as a skip, not a failure.
var ErrDuplicateURL = errors.New("raw posting already stored for this site and source url")

// RawStatus represents the processing status of a raw job posting.
// Values include RawStatusPending, RawStatusProcessing, RawStatusProcessed, and RawStatusFailed.
type RawStatus string

const (
	RawStatusPending    RawStatus = "pending"
	RawStatusProcessing RawStatus = "processing"
	RawStatusProcessed  RawStatus = "processed"
	RawStatusFailed     RawStatus = "failed"
)

// RawJobPosting stores exactly what a scraper yielded from a job site.
// It is the pipeline's source of truth; canonical jobs are derived from it.
//
// Status moves pending -> processing -> processed|failed. A failed row may
// re-enter processing through an explicit reprocess claim. RetryCount counts
// every claim into processing over the row's lifetime and is never reset.
type RawJobPosting struct {
	ID                 string    `gorm:"type:text;primaryKey" json:"id"`
	Site               string    `gorm:"type:text;not null;index:idx_raw_site_scraped;index:idx_raw_site_url,unique" json:"site"`
	SearchTerm         string    `gorm:"type:text;not null" json:"search_term"`
	RawTitle           string    `gorm:"type:text" json:"raw_title"`
	RawCompany         string    `gorm:"type:text" json:"raw_company"`
	RawLocation        string    `gorm:"type:text" json:"raw_location"`
	RawDescriptionHTML string    `gorm:"type:text" json:"raw_description_html"`
	SourceURL          string    `gorm:"type:text;index:idx_raw_site_url,unique" json:"source_url"`
	ScrapedAt          time.Time `gorm:"index:idx_raw_site_scraped" json:"scraped_at"`
	Status             RawStatus `gorm:"type:text;index:idx_raw_status;default:pending" json:"status"`
	RetryCount         int       `gorm:"default:0" json:"retry_count"`
	ErrorMessage       string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName returns the database table name for RawJobPosting.
func (RawJobPosting) TableName() string {
	return "raw_job_postings"
}
