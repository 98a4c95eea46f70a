package models

import "time"

// Timeframe identifies a chart resolution as the EA reports it.
type Timeframe string

const (
	TFM1  Timeframe = "M1"
	TFM5  Timeframe = "M5"
	TFM15 Timeframe = "M15"
	TFM30 Timeframe = "M30"
	TFH1  Timeframe = "H1"
	TFH4  Timeframe = "H4"
	TFD1  Timeframe = "D1"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TFM1, TFM5, TFM15, TFM30, TFH1, TFH4, TFD1:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TFM15 }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
// Lowercase and "1m"-style spellings from dashboards are accepted.
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	switch s {
	case "1m", "m1":
		return TFM1
	case "5m", "m5":
		return TFM5
	case "15m", "m15":
		return TFM15
	case "30m", "m30":
		return TFM30
	case "1h", "h1", "60m":
		return TFH1
	case "4h", "h4":
		return TFH4
	case "1d", "d1", "D":
		return TFD1
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// TimeframeDuration returns the bucket width for a timeframe.
func TimeframeDuration(tf Timeframe) time.Duration {
	switch tf {
	case TFM1:
		return time.Minute
	case TFM5:
		return 5 * time.Minute
	case TFM15:
		return 15 * time.Minute
	case TFM30:
		return 30 * time.Minute
	case TFH1:
		return time.Hour
	case TFH4:
		return 4 * time.Hour
	case TFD1:
		return 24 * time.Hour
	default:
		return 15 * time.Minute
	}
}

// BucketTime aligns t down to the timeframe boundary.
func BucketTime(t time.Time, tf Timeframe) time.Time {
	return t.Truncate(TimeframeDuration(tf))
}
