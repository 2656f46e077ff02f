// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// Granularity selects the resolution of a period: raw daily records for a
// month, or pre-aggregated monthly averages for a whole year.
type Granularity string

const (
	// GranularityMonth buckets raw daily records under "YYYY-MM" keys.
	GranularityMonth Granularity = "month"
	// GranularityYear buckets monthly averages under "YYYY" keys.
	GranularityYear Granularity = "year"
)

// Valid reports whether g is one of the two supported granularities.
func (g Granularity) Valid() bool {
	return g == GranularityMonth || g == GranularityYear
}

// Record is a single daily weight measurement. An owner has at most one
// record per calendar day; the record source enforces that uniqueness.
type Record struct {
	ID        string    `json:"id"`
	OwnerID   int64     `json:"ownerId"`
	Date      string    `json:"date"` // "2006-01-02"
	Value     float64   `json:"value"` // kilograms
	BodyFat   *float64  `json:"bodyFat,omitempty"` // percent
	Note      string    `json:"note,omitempty"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AggregateRecord is a source-computed average over all records in one month.
// AvgBodyFat is set only when at least one contributing record carried a
// body-fat value.
type AggregateRecord struct {
	PeriodKey  string   `json:"periodKey"` // "2006-01"
	AvgValue   float64  `json:"avgValue"`
	AvgBodyFat *float64 `json:"avgBodyFat,omitempty"`
}

// RecordDraft carries the caller-supplied fields of a record before the
// source has assigned identity and timestamps.
type RecordDraft struct {
	Date    string
	Value   float64
	BodyFat *float64
	Note    string
	Public  bool
}

// RecordSource is the port to the authoritative record store.
//
// FindByDate returns (nil, nil) when no record exists for the date; absence
// is not an error. Create fails with ErrConflict when a record already exists
// for the owner and date, Update fails with ErrNotFound when the record id is
// gone, and both range queries fail with a ValidationError when end precedes
// start.
type RecordSource interface {
	FindByDate(ctx context.Context, ownerID int64, date string) (*Record, error)
	Create(ctx context.Context, ownerID int64, draft RecordDraft) (*Record, error)
	Update(ctx context.Context, recordID string, draft RecordDraft) (*Record, error)
	ListRange(ctx context.Context, ownerID int64, start, end string) ([]Record, error)
	ListMonthlyAverages(ctx context.Context, ownerID int64, start, end string) ([]AggregateRecord, error)
}
