package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
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

// RangeToDuration maps a market-data range label (1mo, 6mo, 1y, ...) to a
// calendar-approximate duration. Returns (0, false) for unknown labels.
func RangeToDuration(label string) (time.Duration, bool) {
    day := 24 * time.Hour
    switch label {
    case "5d":
        return 5 * day, true
    case "1mo":
        return 30 * day, true
    case "3mo":
        return 91 * day, true
    case "6mo":
        return 182 * day, true
    case "1y":
        return 365 * day, true
    case "2y":
        return 2 * 365 * day, true
    case "5y":
        return 5 * 365 * day, true
    default:
        return 0, false
    }
}
