package gvi

import (
	"fmt"
	"regexp"
	"time"
)

// Supported year range for imagery requests.
const (
	MinYear = 2020
	MaxYear = 2025
)

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Month is a validated calendar month.
type Month struct {
	Year  int
	Month int
}

// ParseMonth validates a YYYY-MM string against the supported policy. It runs
// before any fetch, so a malformed month never reaches the catalog.
func ParseMonth(s string) (Month, error) {
	if !monthPattern.MatchString(s) {
		return Month{}, fmt.Errorf("month must match YYYY-MM, got %q", s)
	}
	var year, month int
	fmt.Sscanf(s, "%d-%d", &year, &month)
	if year < MinYear || year > MaxYear {
		return Month{}, fmt.Errorf("year must be between %d and %d, got %d", MinYear, MaxYear, year)
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("month must be between 01 and 12, got %02d", month)
	}
	return Month{Year: year, Month: month}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// DateRange returns the half-open search interval [first of month, first of
// next month).
func (m Month) DateRange() (time.Time, time.Time) {
	start := time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
