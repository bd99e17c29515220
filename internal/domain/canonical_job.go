package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Contains reports whether s is already present in the array.
func (a StringArray) Contains(s string) bool {
	for _, v := range a {
		if v == s {
			return true
		}
	}
	return false
}

// CanonicalJob is a deduplicated, normalized job posting. Multiple raw
// postings can map to the same canonical job; SourceRawIDs is an audit
// back-reference to the raw rows that were merged in, not a lifecycle
// dependency.
//
// FirstSeen <= LastSeen always holds, and MergeCount never decreases.
type CanonicalJob struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	Title        string      `gorm:"type:text;not null" json:"title"`
	Company      string      `gorm:"type:text;not null" json:"company"`
	Location     string      `gorm:"type:text" json:"location"`
	Description  string      `gorm:"type:text" json:"description"`
	CanonicalURL string      `gorm:"type:text" json:"canonical_url"`
	BucketKey    string      `gorm:"type:text;index:idx_canonical_bucket" json:"bucket_key"`
	FirstSeen    time.Time   `gorm:"index:idx_canonical_first_seen" json:"first_seen"`
	LastSeen     time.Time   `gorm:"index:idx_canonical_last_seen" json:"last_seen"`
	MergeCount   int         `gorm:"default:1" json:"merge_count"`
	SourceRawIDs StringArray `gorm:"type:text" json:"source_raw_ids"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName returns the database table name for CanonicalJob.
func (CanonicalJob) TableName() string {
	return "canonical_jobs"
}
