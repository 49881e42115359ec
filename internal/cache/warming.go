package cache

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/water-quality-monitor/internal/models"
	"github.com/kjstillabower/water-quality-monitor/internal/observability"
)

// Refresher is implemented by the service layer. A call repopulates the cache as a side effect.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type Refresher interface {
	Refresh(ctx context.Context) ([]models.Sample, error)
}

// CacheWarmer keeps the dashboard snapshot warm so readers rarely pay for a sensor-log fetch.
type CacheWarmer struct {
	refresher Refresher
	logger    *zap.Logger
	clock     clockwork.Clock
}

// NewCacheWarmer creates a CacheWarmer that uses the given refresher and logger.
func NewCacheWarmer(refresher Refresher, logger *zap.Logger, clock clockwork.Clock) *CacheWarmer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CacheWarmer{refresher: refresher, logger: logger, clock: clock}
}

// Warm performs one refresh.
func (w *CacheWarmer) Warm(ctx context.Context) error {
	start := w.clock.Now()
	samples, err := w.refresher.Refresh(ctx)
	duration := w.clock.Since(start).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("warm").Inc()
		if w.logger != nil {
			w.logger.Warn("cache warming failed", zap.Error(err), zap.Float64("duration_seconds", duration))
		}
		return err
	}
	if w.logger != nil {
		w.logger.Debug("cache warmed", zap.Int("readings", len(samples)), zap.Float64("duration_seconds", duration))
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, interval time.Duration) error {
	_ = w.Warm(ctx)
	ticker := w.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			_ = w.Warm(ctx)
		}
	}
}
