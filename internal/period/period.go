// Package period resolves named or explicit date windows into concrete
// instant ranges and assigns dates to trend buckets.
package period

import (
	"errors"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Name is a named reporting window relative to now.
type Name string

const (
	Week  Name = "week"
	Month Name = "month"
	Year  Name = "year"
)

// Granularity selects the bucket size used for trend grouping.
type Granularity string

const (
	Day         Granularity = "day"
	WeekBucket  Granularity = "week"
	MonthBucket Granularity = "month"
	YearBucket  Granularity = "year"
)

// ErrInvalidGranularity is returned for unknown trend granularities.
var ErrInvalidGranularity = errors.New("invalid granularity")

// ParseName maps a period name, falling back to Month for anything unknown.
func ParseName(s string) Name {
	switch Name(strings.ToLower(strings.TrimSpace(s))) {
	case Week:
		return Week
	case Year:
		return Year
	default:
		return Month
	}
}

// ParseGranularity maps a granularity name. Empty defaults to month.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return MonthBucket, nil
	case Day, WeekBucket, MonthBucket, YearBucket:
		return g, nil
	}
	return "", core.Invalid("groupBy", ErrInvalidGranularity)
}

// Query is the caller-supplied window. Explicit dates take precedence over
// Period, each bound independently.
type Query struct {
	Period    Name
	AccountID string
	StartDate *time.Time
	EndDate   *time.Time
}

// Range is a closed [Start, End] window.
type Range struct {
	Period Name
	Start  time.Time
	End    time.Time
}

// Contains reports whether t lies inside the closed range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Resolver computes ranges against a clock and a location.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver returns a resolver for loc. A nil loc means time.Local and a
// nil now means time.Now.
func NewResolver(loc *time.Location, now func() time.Time) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{loc: loc, now: now}
}

func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve returns the range covered by the named period containing now,
// overridden by any explicit bound in q.
func (r *Resolver) Resolve(q Query) Range {
	now := r.now().In(r.loc)
	name := ParseName(string(q.Period))

	var start, end time.Time
	switch name {
	case Week:
		start = StartOfDay(now.AddDate(0, 0, -int(now.Weekday())))
		end = EndOfDay(start.AddDate(0, 0, 6))
	case Year:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, r.loc)
		end = EndOfDay(time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, r.loc))
	default:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc)
		end = EndOfDay(start.AddDate(0, 1, -1))
	}
	return r.override(Range{Period: name, Start: start, End: end}, q)
}

// TrendRange returns the lookback window used for trend series: twelve
// weeks, twelve months or five years ending now.
func (r *Resolver) TrendRange(q Query) Range {
	now := r.now().In(r.loc)
	name := ParseName(string(q.Period))

	var start time.Time
	switch name {
	case Week:
		start = now.AddDate(0, 0, -7*12)
	case Year:
		start = now.AddDate(-5, 0, 0)
	default:
		start = now.AddDate(0, -12, 0)
	}
	return r.override(Range{Period: name, Start: start, End: now}, q)
}

func (r *Resolver) override(rng Range, q Query) Range {
	if q.StartDate != nil && !q.StartDate.IsZero() {
		rng.Start = StartOfDay(q.StartDate.In(r.loc))
	}
	if q.EndDate != nil && !q.EndDate.IsZero() {
		rng.End = EndOfDay(q.EndDate.In(r.loc))
	}
	return rng
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
