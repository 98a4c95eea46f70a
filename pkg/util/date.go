package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true)
// if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignFromTo rounds the time range down to bucket boundaries for the
// timeframe token (M1, M5, M15, M30, H1, H4, D1).
func AlignFromTo(from, to time.Time, tf string) (time.Time, time.Time) {
	d := time.Minute
	switch tf {
	case "M1":
		d = time.Minute
	case "M5":
		d = 5 * time.Minute
	case "M15":
		d = 15 * time.Minute
	case "M30":
		d = 30 * time.Minute
	case "H1":
		d = time.Hour
	case "H4":
		d = 4 * time.Hour
	case "D1":
		d = 24 * time.Hour
	}
	return from.Truncate(d), to.Truncate(d)
}
