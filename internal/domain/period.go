package domain

import (
	"fmt"
	"time"
)

// DayFormat is the canonical calendar-day representation used throughout.
const DayFormat = "2006-01-02"

// PeriodKey maps a date to its cache bucket key: "YYYY-MM" at month
// granularity, "YYYY" at year granularity. Any two dates in the same
// calendar period map to the same key.
func PeriodKey(t time.Time, g Granularity) string {
	if g == GranularityYear {
		return fmt.Sprintf("%04d", t.Year())
	}
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// MonthWindow returns the inclusive day range covering the month of ref.
// When ref falls in the month containing now, the end is clamped to now's
// day: asking the source for days that have not happened yet is meaningless,
// and some sources reject future end dates outright.
func MonthWindow(ref, now time.Time) (start, end string) {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	last := first.AddDate(0, 1, -1)
	if PeriodKey(ref, GranularityMonth) == PeriodKey(now, GranularityMonth) && now.Before(last) {
		last = now
	}
	return first.Format(DayFormat), last.Format(DayFormat)
}

// YearWindow returns Jan 1 through Dec 31 of the year of ref.
func YearWindow(ref time.Time) (start, end string) {
	return fmt.Sprintf("%04d-01-01", ref.Year()), fmt.Sprintf("%04d-12-31", ref.Year())
}
