package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/period"
)

// AnalyticsService serves aggregator results through a cache. Entries are
// keyed by the owner's generation, which every ledger or account write bumps,
// so a write makes all earlier results for that owner unreachable.
type AnalyticsService struct {
	agg   *analytics.Aggregator
	cache cache.Cache[any]
	group singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

var _ Invalidator = (*AnalyticsService)(nil)

// NewAnalyticsService wraps agg. A nil cache disables caching.
func NewAnalyticsService(agg *analytics.Aggregator, c cache.Cache[any]) *AnalyticsService {
	if c == nil {
		c = cache.NewLRUCache[any](0, 0)
	}
	return &AnalyticsService{agg: agg, cache: c, generations: map[string]uint64{}}
}

func (s *AnalyticsService) Invalidate(owner string) {
	s.mu.Lock()
	s.generations[owner]++
	s.mu.Unlock()
}

func (s *AnalyticsService) Summary(ctx context.Context, owner string, q period.Query) (analytics.Summary, error) {
	return cached(ctx, s, s.key(owner, "summary", queryKey(q)), func() (analytics.Summary, error) {
		return s.agg.Summary(ctx, owner, q)
	})
}

func (s *AnalyticsService) Trends(ctx context.Context, owner string, q analytics.TrendQuery) ([]analytics.TrendPoint, error) {
	return cached(ctx, s, s.key(owner, "trends", queryKey(q.Query), string(q.Type), string(q.Granularity)), func() ([]analytics.TrendPoint, error) {
		return s.agg.Trends(ctx, owner, q)
	})
}

func (s *AnalyticsService) Categories(ctx context.Context, owner string, q period.Query) ([]analytics.CategoryStat, error) {
	return cached(ctx, s, s.key(owner, "categories", queryKey(q)), func() ([]analytics.CategoryStat, error) {
		return s.agg.Categories(ctx, owner, q)
	})
}

func (s *AnalyticsService) AccountStats(ctx context.Context, owner string) ([]analytics.AccountStat, error) {
	return cached(ctx, s, s.key(owner, "accounts"), func() ([]analytics.AccountStat, error) {
		return s.agg.AccountStats(ctx, owner)
	})
}

func cached[T any](ctx context.Context, s *AnalyticsService, key string, load func() (T, error)) (T, error) {
	if v, ok := s.cache.Get(key); ok {
		if out, ok := v.(T); ok {
			slog.DebugContext(ctx, "Analytics cache hit", log.FieldComponent, log.ComponentAnalytics, "key", key)
			return out, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		out, err := load()
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, out)
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *AnalyticsService) key(owner, kind string, parts ...string) string {
	s.mu.Lock()
	gen := s.generations[owner]
	s.mu.Unlock()
	return fmt.Sprintf("%s|%d|%s|%s", owner, gen, kind, strings.Join(parts, "|"))
}

func queryKey(q period.Query) string {
	return strings.Join([]string{
		string(period.ParseName(string(q.Period))),
		q.AccountID,
		timeKey(q.StartDate),
		timeKey(q.EndDate),
	}, ";")
}

func timeKey(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
