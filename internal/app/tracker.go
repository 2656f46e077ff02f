// Package app holds the application services and business logic.
package app

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"scaletrack/internal/cache"
	"scaletrack/internal/domain"
)

// Tracker bundles one owner's cache state with the controller and upserter
// operating on it. Cache state is explicitly owned, never a process-wide
// singleton: each owner gets an independent instance from the Registry.
type Tracker struct {
	Controller *Controller
	Upserter   *Upserter
	store      *cache.Store
}

// NewTracker builds a tracker for ownerID with a fresh, empty cache.
func NewTracker(ownerID int64, source domain.RecordSource, metrics *cache.Metrics, logger *zap.Logger) *Tracker {
	store := cache.NewStore()
	return &Tracker{
		Controller: NewController(ownerID, source, store, metrics, logger),
		Upserter:   NewUpserter(ownerID, source, store, metrics, logger),
		store:      store,
	}
}

// SetView selects the reference date and granularity. Navigation alone
// triggers no fetch and no clear; the caller fetches explicitly afterwards.
func (t *Tracker) SetView(ref time.Time, g domain.Granularity) {
	t.store.SetView(ref, g)
}

// View returns the selected reference date and granularity.
func (t *Tracker) View() (time.Time, domain.Granularity) {
	return t.store.View()
}

// Reset returns the cache to its empty initial state, so the next visit
// starts clean instead of surfacing entries cached long ago.
func (t *Tracker) Reset() {
	t.store.Reset()
}

// Registry hands out per-owner trackers, creating each on first use.
type Registry struct {
	mu      sync.Mutex
	source  domain.RecordSource
	metrics *cache.Metrics
	logger  *zap.Logger
	byOwner map[int64]*Tracker
}

// NewRegistry creates a registry over the given record source.
func NewRegistry(source domain.RecordSource, metrics *cache.Metrics, logger *zap.Logger) *Registry {
	return &Registry{
		source:  source,
		metrics: metrics,
		logger:  logger,
		byOwner: make(map[int64]*Tracker),
	}
}

// For returns the tracker owned by ownerID, creating it on first use.
func (r *Registry) For(ownerID int64) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byOwner[ownerID]
	if !ok {
		t = NewTracker(ownerID, r.source, r.metrics, r.logger)
		r.byOwner[ownerID] = t
	}
	return t
}
