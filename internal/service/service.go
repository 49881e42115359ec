package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/water-quality-monitor/internal/cache"
	"github.com/kjstillabower/water-quality-monitor/internal/models"
	"github.com/kjstillabower/water-quality-monitor/internal/observability"
)

// latestKey is the cache key of the dashboard snapshot.
const latestKey = "latest"

// DefaultLatestLimit is how many readings the dashboard shows.
const DefaultLatestLimit = 10

// Fetcher returns every sample stored in the sensor log.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]models.Sample, error)
}

// ReadingsService serves the dashboard snapshot: the most recent sensor-log readings,
// newest first. It reads through the cache and coalesces concurrent misses.
type ReadingsService struct {
	fetcher   Fetcher
	cache     cache.Cache
	ttl       time.Duration
	limit     int
	coalescer *requestCoalescer
}

// NewReadingsService creates a ReadingsService. limit <= 0 uses DefaultLatestLimit.
func NewReadingsService(fetcher Fetcher, c cache.Cache, ttl time.Duration, limit int) *ReadingsService {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	return &ReadingsService{
		fetcher:   fetcher,
		cache:     c,
		ttl:       ttl,
		limit:     limit,
		coalescer: newRequestCoalescer(),
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Latest returns the newest readings using cache-aside. A cache error is counted and
// treated as a miss.
func (s *ReadingsService) Latest(ctx context.Context) ([]models.Sample, error) {
	start := time.Now()
	logger := loggerFromContext(ctx)

	cached, ok, err := s.cache.Get(ctx, latestKey)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		if logger != nil {
			logger.Warn("cache get failed", zap.Error(err))
		}
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(latestKey).Inc()
		if logger != nil {
			logger.Debug("readings served", zap.Bool("cached", true), zap.Int("count", len(cached)), zap.Duration("duration", time.Since(start)))
		}
		return cached, nil
	}

	if logger != nil {
		logger.Debug("cache miss, fetching sensor log")
	}

	readings, shared, err := s.coalescer.GetOrDo(ctx, latestKey, s.refresh)
	if err != nil {
		return nil, err
	}
	if shared {
		observability.CacheHitsTotal.WithLabelValues("coalesced").Inc()
	}
	if logger != nil {
		logger.Debug("readings served", zap.Bool("cached", false), zap.Int("count", len(readings)), zap.Duration("duration", time.Since(start)))
	}
	return readings, nil
}

// Refresh fetches the sensor log and stores a new snapshot regardless of what is cached.
func (s *ReadingsService) Refresh(ctx context.Context) ([]models.Sample, error) {
	readings, _, err := s.coalescer.GetOrDo(ctx, latestKey, s.refresh)
	return readings, err
}

func (s *ReadingsService) refresh(ctx context.Context) ([]models.Sample, error) {
	all, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sensor log: %w", err)
	}
	readings := NewestFirst(all, s.limit)

	if setErr := s.cache.Set(ctx, latestKey, readings, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		if logger := loggerFromContext(ctx); logger != nil {
			logger.Warn("cache set failed", zap.Error(setErr), zap.String("category", categorizeCacheError(setErr)))
		}
	}
	return readings, nil
}

// NewestFirst returns up to limit samples ordered by timestamp, newest first.
// Samples whose timestamp does not parse sort after all others, keeping their input order.
// The input slice is not modified.
func NewestFirst(samples []models.Sample, limit int) []models.Sample {
	type keyed struct {
		s  models.Sample
		t  time.Time
		ok bool
	}
	ks := make([]keyed, len(samples))
	for i, s := range samples {
		t, ok := s.Time()
		ks[i] = keyed{s: s, t: t, ok: ok}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].ok != ks[j].ok {
			return ks[i].ok
		}
		return ks[i].t.After(ks[j].t)
	})

	n := len(ks)
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]models.Sample, n)
	for i := 0; i < n; i++ {
		out[i] = ks[i].s
	}
	return out
}

// categorizeCacheError returns a stable label for cache errors (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
