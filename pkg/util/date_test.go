package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2024-03-01")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format(DateLayout) != "2024-03-01" {
		t.Fatalf("unexpected time %v", got)
	}
}

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
	if got := ParseTimeDefault("yesterday", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestDayAndDaysAgo(t *testing.T) {
	now := time.Date(2024, 3, 8, 23, 59, 0, 0, time.UTC)
	if got := FormatDate(DaysAgo(now, 7)); got != "2024-03-01" {
		t.Fatalf("unexpected day %s", got)
	}
	if d := Day(now); d.Hour() != 0 || d.Day() != 8 {
		t.Fatalf("unexpected truncation %v", d)
	}
}

func TestSplitNonEmpty(t *testing.T) {
	got := SplitNonEmpty(" a, ,b,", ",")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected split %v", got)
	}
}
