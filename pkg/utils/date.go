package utils

import (
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate accepts a plain YYYY-MM-DD date or an RFC 3339 timestamp and
// returns it in UTC.
func ParseDate(dateStr string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, dateStr); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// HoursToDuration converts configured hour counts, which may be fractional.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
