package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scaletrack/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DayFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPeriodKey(t *testing.T) {
	tests := []struct {
		name string
		date string
		g    domain.Granularity
		want string
	}{
		{"mid month", "2025-07-15", domain.GranularityMonth, "2025-07"},
		{"single digit month padded", "2025-03-01", domain.GranularityMonth, "2025-03"},
		{"december", "2024-12-31", domain.GranularityMonth, "2024-12"},
		{"year", "2025-07-15", domain.GranularityYear, "2025"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.PeriodKey(day(tc.date), tc.g))
		})
	}
}

func TestPeriodKey_StableWithinMonth(t *testing.T) {
	// Any two dates in the same calendar month share a key.
	first := day("2025-07-01")
	for d := first; d.Month() == time.July; d = d.AddDate(0, 0, 1) {
		assert.Equal(t, "2025-07", domain.PeriodKey(d, domain.GranularityMonth))
	}
}

func TestMonthWindow(t *testing.T) {
	tests := []struct {
		name       string
		ref, now   string
		start, end string
	}{
		{"past month runs to month end", "2025-05-10", "2025-07-15", "2025-05-01", "2025-05-31"},
		{"current month clamps to today", "2025-07-02", "2025-07-15", "2025-07-01", "2025-07-15"},
		{"current month on last day", "2025-07-20", "2025-07-31", "2025-07-01", "2025-07-31"},
		{"february leap year", "2024-02-10", "2025-07-15", "2024-02-01", "2024-02-29"},
		{"february non leap", "2023-02-10", "2025-07-15", "2023-02-01", "2023-02-28"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end := domain.MonthWindow(day(tc.ref), day(tc.now))
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}

func TestYearWindow(t *testing.T) {
	start, end := domain.YearWindow(day("2025-07-15"))
	assert.Equal(t, "2025-01-01", start)
	assert.Equal(t, "2025-12-31", end)
}
