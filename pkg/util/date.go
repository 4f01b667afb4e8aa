package util

import (
	"strconv"
	"time"
)

// barTimeLayouts are accepted when reading stored series. Older objects were written
// with a space separator and an explicit or missing offset.
var barTimeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseBarTime parses a stored bar timestamp and normalizes it to its UTC
// calendar day. Positive unix seconds are accepted as well.
func ParseBarTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range barTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDay(t), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return TruncateDay(time.Unix(ts, 0)), true
	}
	return time.Time{}, false
}

// TruncateDay maps t onto 00:00:00 UTC of its UTC calendar day.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatBarTime is the canonical textual form of a bar timestamp.
func FormatBarTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
