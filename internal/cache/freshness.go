package cache

import (
	"time"

	"scaletrack/internal/domain"
)

// Trustworthy reports whether a cached entry under key may be served without
// re-fetching. The month containing now is never trustworthy: writes only
// ever land on the current day, so always re-fetching the current month
// replaces an invalidation bus between the write and read paths. Entries for
// past months carry no TTL and are trusted once present, as are year buckets;
// month-level staleness deliberately does not propagate up to the year view.
func Trustworthy(key string, g domain.Granularity, now time.Time) bool {
	if g == domain.GranularityMonth {
		return key != domain.PeriodKey(now, domain.GranularityMonth)
	}
	return true
}
