package period

import (
	"errors"
	"sort"
	"testing"
	"time"

	"fintrack/internal/core"
)

// Wednesday 2025-03-12 15:04 UTC
var fixedNow = time.Date(2025, 3, 12, 15, 4, 0, 0, time.UTC)

func newTestResolver() *Resolver {
	return NewResolver(time.UTC, func() time.Time { return fixedNow })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveNamedPeriods(t *testing.T) {
	r := newTestResolver()
	cases := []struct {
		name      Name
		wantName  Name
		wantStart time.Time
		wantEnd   time.Time
	}{
		{Week, Week, day(2025, 3, 9), EndOfDay(day(2025, 3, 15))},
		{Month, Month, day(2025, 3, 1), EndOfDay(day(2025, 3, 31))},
		{Year, Year, day(2025, 1, 1), EndOfDay(day(2025, 12, 31))},
		{"fortnight", Month, day(2025, 3, 1), EndOfDay(day(2025, 3, 31))},
		{"", Month, day(2025, 3, 1), EndOfDay(day(2025, 3, 31))},
	}
	for _, tc := range cases {
		got := r.Resolve(Query{Period: tc.name})
		if got.Period != tc.wantName {
			t.Fatalf("%q: expected period %q, got %q", tc.name, tc.wantName, got.Period)
		}
		if !got.Start.Equal(tc.wantStart) || !got.End.Equal(tc.wantEnd) {
			t.Fatalf("%q: expected [%v, %v], got [%v, %v]", tc.name, tc.wantStart, tc.wantEnd, got.Start, got.End)
		}
	}
}

func TestResolveWeekStartsSunday(t *testing.T) {
	sunday := time.Date(2025, 3, 9, 0, 30, 0, 0, time.UTC)
	r := NewResolver(time.UTC, func() time.Time { return sunday })
	got := r.Resolve(Query{Period: Week})
	if got.Start.Weekday() != time.Sunday || !got.Start.Equal(day(2025, 3, 9)) {
		t.Fatalf("expected week to start on the same Sunday, got %v", got.Start)
	}
	if got.End.Weekday() != time.Saturday {
		t.Fatalf("expected week to end on Saturday, got %v", got.End)
	}
}

func TestResolveExplicitOverrides(t *testing.T) {
	r := newTestResolver()
	start := time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC)
	end := day(2024, 2, 5)

	got := r.Resolve(Query{Period: Week, StartDate: &start, EndDate: &end})
	if !got.Start.Equal(day(2024, 1, 10)) {
		t.Fatalf("expected start truncated to day, got %v", got.Start)
	}
	want := time.Date(2024, 2, 5, 23, 59, 59, 999000000, time.UTC)
	if !got.End.Equal(want) {
		t.Fatalf("expected end normalized to %v, got %v", want, got.End)
	}

	// a single bound only replaces its own side
	got = r.Resolve(Query{Period: Month, EndDate: &end})
	if !got.Start.Equal(day(2025, 3, 1)) || !got.End.Equal(want) {
		t.Fatalf("unexpected half-open override: %+v", got)
	}
}

func TestResolveInLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 02:00 UTC on Apr 1 is still March 31 in UTC-5
	now := time.Date(2025, 4, 1, 2, 0, 0, 0, time.UTC)
	r := NewResolver(loc, func() time.Time { return now })
	got := r.Resolve(Query{Period: Month})
	if got.Start.Month() != time.March || got.Start.Location() != loc {
		t.Fatalf("expected March in UTC-5, got %v", got.Start)
	}
}

func TestTrendRange(t *testing.T) {
	r := newTestResolver()
	cases := []struct {
		name Name
		want time.Time
	}{
		{Week, fixedNow.AddDate(0, 0, -84)},
		{Month, fixedNow.AddDate(0, -12, 0)},
		{Year, fixedNow.AddDate(-5, 0, 0)},
	}
	for _, tc := range cases {
		got := r.TrendRange(Query{Period: tc.name})
		if !got.Start.Equal(tc.want) || !got.End.Equal(fixedNow) {
			t.Fatalf("%s: expected [%v, %v], got [%v, %v]", tc.name, tc.want, fixedNow, got.Start, got.End)
		}
	}
}

func TestParseGranularity(t *testing.T) {
	for _, s := range []string{"day", "WEEK", " month ", "year"} {
		if _, err := ParseGranularity(s); err != nil {
			t.Fatalf("%q: unexpected error %v", s, err)
		}
	}
	if g, err := ParseGranularity(""); err != nil || g != MonthBucket {
		t.Fatalf("expected empty to default to month, got %q %v", g, err)
	}
	_, err := ParseGranularity("hour")
	if !errors.Is(err, core.ErrValidation) || !errors.Is(err, ErrInvalidGranularity) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBucketFor(t *testing.T) {
	cases := []struct {
		at   time.Time
		g    Granularity
		want string
	}{
		{time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC), Day, "2025-03-12"},
		{time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC), MonthBucket, "2025-03"},
		{time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC), YearBucket, "2025"},
		{day(2025, 1, 1), WeekBucket, "2025-W01"},
		{time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), WeekBucket, "2025-W01"},
		{day(2025, 1, 8), WeekBucket, "2025-W01"},
		{time.Date(2025, 1, 8, 0, 0, 1, 0, time.UTC), WeekBucket, "2025-W02"},
		{time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC), WeekBucket, "2025-W11"},
		{time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC), WeekBucket, "2025-W53"},
	}
	for _, tc := range cases {
		if got := BucketFor(tc.at, tc.g, time.UTC); got.Key != tc.want {
			t.Fatalf("%v/%s: expected %q, got %q", tc.at, tc.g, tc.want, got.Key)
		}
	}
}

func TestWeekBucketsSortChronologically(t *testing.T) {
	var buckets []Bucket
	for _, d := range []time.Time{day(2025, 3, 20), day(2025, 1, 9), day(2024, 12, 30), day(2025, 1, 2)} {
		buckets = append(buckets, BucketFor(d, WeekBucket, time.UTC))
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Less(buckets[j]) })

	want := []string{"2024-W52", "2025-W01", "2025-W02", "2025-W12"}
	for i, b := range buckets {
		if b.Key != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], b.Key)
		}
	}
}
