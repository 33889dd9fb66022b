package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}

func TestRangeToDuration(t *testing.T) {
    day := 24 * time.Hour
    cases := map[string]time.Duration{
        "5d":  5 * day,
        "1mo": 30 * day,
        "1y":  365 * day,
    }
    for label, want := range cases {
        got, ok := RangeToDuration(label)
        if !ok {
            t.Fatalf("expected %s to resolve", label)
        }
        if got != want {
            t.Fatalf("%s: got %v want %v", label, got, want)
        }
    }
    if _, ok := RangeToDuration("7w"); ok {
        t.Fatalf("expected unknown label to fail")
    }
}