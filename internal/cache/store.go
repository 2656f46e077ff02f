// Package cache implements the keyed period cache for weight records: a
// month-keyed bucket of daily records, a year-keyed bucket of monthly
// averages, and the freshness rule deciding when a bucket may be served
// without consulting the record source.
package cache

import (
	"sync"
	"time"

	"scaletrack/internal/domain"
)

// Store holds cached period data plus the currently selected view. Puts are
// full replacements, never element-wise merges. The store performs no
// validation beyond routing keys to the bucket matching their granularity;
// it trusts its callers.
type Store struct {
	mu        sync.RWMutex
	daily     map[string][]domain.Record
	aggregate map[string][]domain.AggregateRecord
	refDate   time.Time
	gran      domain.Granularity
}

// NewStore returns an empty store at month granularity.
func NewStore() *Store {
	s := &Store{}
	s.init()
	return s
}

func (s *Store) init() {
	s.daily = make(map[string][]domain.Record)
	s.aggregate = make(map[string][]domain.AggregateRecord)
	s.refDate = time.Time{}
	s.gran = domain.GranularityMonth
}

// Daily returns the records cached under a month key.
func (s *Store) Daily(key string) ([]domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.daily[key]
	return records, ok
}

// PutDaily replaces the records cached under a month key.
func (s *Store) PutDaily(key string, records []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[key] = records
}

// Aggregates returns the monthly averages cached under a year key.
func (s *Store) Aggregates(key string) ([]domain.AggregateRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	averages, ok := s.aggregate[key]
	return averages, ok
}

// PutAggregates replaces the monthly averages cached under a year key.
func (s *Store) PutAggregates(key string, averages []domain.AggregateRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregate[key] = averages
}

// Drop removes a single entry from the bucket matching g.
func (s *Store) Drop(key string, g domain.Granularity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g == domain.GranularityYear {
		delete(s.aggregate, key)
		return
	}
	delete(s.daily, key)
}

// Clear empties both buckets. The selected view is kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = make(map[string][]domain.Record)
	s.aggregate = make(map[string][]domain.AggregateRecord)
}

// Reset empties both buckets and returns the view to its initial state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
}

// SetView records the selected reference date and granularity. Setting the
// view neither fetches nor clears; callers fetch explicitly afterwards.
func (s *Store) SetView(ref time.Time, g domain.Granularity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refDate = ref
	s.gran = g
}

// View returns the selected reference date and granularity.
func (s *Store) View() (time.Time, domain.Granularity) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refDate, s.gran
}

// Len returns the number of cached entries across both buckets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.daily) + len(s.aggregate)
}
