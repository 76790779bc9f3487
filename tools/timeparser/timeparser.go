package timeparser

import (
	"fmt"
	"time"
)

// naiveFormats are accepted layouts that carry no timezone information.
// Values in these layouts are interpreted in the supplied location,
// which attaches the residence timezone exactly once, at parse time.
var naiveFormats = []string{
	"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseReadingTimestamp parses a sensor reading timestamp. RFC3339 input
// keeps its own offset; naive formats are localized to loc.
func ParseReadingTimestamp(dateStr string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
		return t, nil
	}

	var lastErr error
	for _, format := range naiveFormats {
		t, err := time.ParseInLocation(format, dateStr, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// DayOf truncates an instant to its calendar date in loc. All per-day
// grouping (aggregates, flow control records) keys on this value.
func DayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
