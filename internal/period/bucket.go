package period

import (
	"fmt"
	"math"
	"time"
)

// Bucket identifies the trend slot a date falls into. Key is for display;
// ordering uses the numeric (Year, Index) pair.
type Bucket struct {
	Key   string
	Year  int
	Index int
}

// Less orders buckets chronologically.
func (b Bucket) Less(o Bucket) bool {
	if b.Year != o.Year {
		return b.Year < o.Year
	}
	return b.Index < o.Index
}

// BucketFor assigns t, viewed in loc, to a bucket of granularity g.
//
// Week numbers are ceil(elapsed / 7d) counted from January 1 of t's own
// year, so a date exactly at midnight of Jan 1 would be week 0; it is
// clamped to 1.
func BucketFor(t time.Time, g Granularity, loc *time.Location) Bucket {
	if loc != nil {
		t = t.In(loc)
	}
	switch g {
	case Day:
		return Bucket{Key: t.Format("2006-01-02"), Year: t.Year(), Index: t.YearDay()}
	case WeekBucket:
		n := WeekOfYear(t)
		return Bucket{Key: fmt.Sprintf("%d-W%02d", t.Year(), n), Year: t.Year(), Index: n}
	case YearBucket:
		return Bucket{Key: fmt.Sprintf("%04d", t.Year()), Year: t.Year()}
	default:
		return Bucket{Key: fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())), Year: t.Year(), Index: int(t.Month())}
	}
}

// WeekOfYear returns the 1-indexed week number of t within its calendar year.
func WeekOfYear(t time.Time) int {
	startOfYear := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	weeks := t.Sub(startOfYear).Hours() / (24 * 7)
	n := int(math.Ceil(weeks))
	if n < 1 {
		n = 1
	}
	return n
}
