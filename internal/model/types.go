package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by lookups that match no non-deleted row.
var ErrNotFound = errors.New("not found")

// Segment is a named, persisted filter definition over a database table.
type Segment struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Version     int             `json:"version"`
	Code        string          `json:"code"`
	TableName   string          `json:"table_name"`
	Fields      string          `json:"fields"` // Comma-separated column list
	QueryString string          `json:"query_string"`
	Criteria    json.RawMessage `json:"criteria,omitempty"` // Version 2 only
	GroupID     int64           `json:"segment_group_id"`
	Locked      bool            `json:"locked"`
	Note        string          `json:"note,omitempty"`

	CacheCount            int64        `json:"cache_count"`
	CacheCountTime        *float64     `json:"cache_count_time,omitempty"` // Seconds
	CacheCountPeriodicity *Periodicity `json:"cache_count_periodicity,omitempty"`
	CacheCountUpdatedAt   *time.Time   `json:"cache_count_updated_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the segment has been soft-deleted.
func (s Segment) Deleted() bool {
	return s.DeletedAt != nil
}

// Group owns segments for listing and ordering.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Sorting   int       `json:"sorting"`
	CreatedAt time.Time `json:"created_at"`
}

// Periodicity describes how often a segment's cached count is refreshed.
type Periodicity struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"` // minutes | hours | days
}

// Duration converts the periodicity into a time.Duration.
func (p Periodicity) Duration() (time.Duration, error) {
	if p.Amount <= 0 {
		return 0, fmt.Errorf("periodicity amount must be positive, got %d", p.Amount)
	}
	var unit time.Duration
	switch p.Unit {
	case "minutes":
		unit = time.Minute
	case "hours":
		unit = time.Hour
	case "days":
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown periodicity unit %q", p.Unit)
	}
	return time.Duration(p.Amount) * unit, nil
}

// DailyValue is the highest recorded segment count for a single day.
type DailyValue struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int64  `json:"count"`
}
