package app

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"scaletrack/internal/cache"
	"scaletrack/internal/domain"
)

// SaveOutcome reports the result of a save. Exactly one of Created or
// Conflict is set: a conflict carries the record already occupying the date.
type SaveOutcome struct {
	Created  *domain.Record `json:"created,omitempty"`
	Conflict *domain.Record `json:"conflict,omitempty"`
}

// Upserter writes records for one owner through the record source. It never
// overwrites silently: a save onto an occupied date reports the existing
// record and stops, and replacing it takes a separate Overwrite call. Every
// successful write clears the whole cache.
type Upserter struct {
	ownerID int64
	source  domain.RecordSource
	store   *cache.Store
	metrics *cache.Metrics
	logger  *zap.Logger
}

// NewUpserter creates an upserter for ownerID over the given store.
func NewUpserter(ownerID int64, source domain.RecordSource, store *cache.Store, metrics *cache.Metrics, logger *zap.Logger) *Upserter {
	return &Upserter{ownerID: ownerID, source: source, store: store, metrics: metrics, logger: logger}
}

// Save creates a record for draft.Date unless one already exists there, in
// which case the existing record comes back as a conflict for the caller to
// resolve explicitly. Source errors propagate unchanged with no retry.
func (u *Upserter) Save(ctx context.Context, draft domain.RecordDraft) (*SaveOutcome, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	existing, err := u.source.FindByDate(ctx, u.ownerID, draft.Date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &SaveOutcome{Conflict: existing}, nil
	}
	created, err := u.source.Create(ctx, u.ownerID, draft)
	if err != nil {
		return nil, err
	}
	u.invalidate(created.Date)
	return &SaveOutcome{Created: created}, nil
}

// Overwrite replaces the record identified by recordID after the caller has
// confirmed a conflict. It is a deliberate, separate action; Save never takes
// this path on its own.
func (u *Upserter) Overwrite(ctx context.Context, recordID string, draft domain.RecordDraft) (*domain.Record, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	updated, err := u.source.Update(ctx, recordID, draft)
	if err != nil {
		return nil, err
	}
	u.invalidate(updated.Date)
	return updated, nil
}

// invalidate drops every cached entry. A write can move both the daily
// bucket for its month and the aggregate bucket for its year; the full clear
// costs less than computing exactly which buckets shifted.
func (u *Upserter) invalidate(date string) {
	u.store.Clear()
	u.metrics.Invalidation()
	u.logger.Debug("cache cleared after write",
		zap.Int64("owner", u.ownerID),
		zap.String("date", date))
}

func validateDraft(d domain.RecordDraft) error {
	if _, err := time.Parse(domain.DayFormat, d.Date); err != nil {
		return &domain.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if d.Value <= 0 || math.IsInf(d.Value, 0) || math.IsNaN(d.Value) {
		return &domain.ValidationError{Field: "value", Reason: "must be a positive finite number"}
	}
	if d.BodyFat != nil && (*d.BodyFat < 0 || *d.BodyFat > 100) {
		return &domain.ValidationError{Field: "bodyFat", Reason: "must be a percentage between 0 and 100"}
	}
	return nil
}
