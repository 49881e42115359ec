// Package uploader posts a fixed run of synthetic samples to the sensor log.
package uploader

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/water-quality-monitor/internal/client"
	"github.com/kjstillabower/water-quality-monitor/internal/generator"
	"github.com/kjstillabower/water-quality-monitor/internal/models"
	"github.com/kjstillabower/water-quality-monitor/internal/observability"
)

// Poster sends one sample to the sensor log.
type Poster interface {
	Post(ctx context.Context, sample models.Sample) error
}

// Config controls one upload run.
type Config struct {
	// Base is the first sample timestamp; zero means the clock's current time.
	Base     time.Time
	Count    int
	Interval time.Duration
}

// Summary counts the outcomes of a run.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Uploader issues Count sequential posts stamped Base, Base+Interval, ...
// The timestamps are synthetic: calls fire back-to-back with no pacing.
type Uploader struct {
	poster Poster
	gen    *generator.Generator
	logger *zap.Logger
	clock  clockwork.Clock
	cfg    Config
}

// New returns an Uploader. A nil logger or clock gets a no-op logger or the real clock.
func New(poster Poster, gen *generator.Generator, logger *zap.Logger, clock clockwork.Clock, cfg Config) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Uploader{poster: poster, gen: gen, logger: logger, clock: clock, cfg: cfg}
}

// Run makes exactly Count attempts unless ctx ends first. A failed post is logged and
// counted; it never stops the run and is never retried.
func (u *Uploader) Run(ctx context.Context) Summary {
	base := u.cfg.Base
	if base.IsZero() {
		base = u.clock.Now()
	}

	var sum Summary
	for i, ts := range generator.Timestamps(base, u.cfg.Count, u.cfg.Interval) {
		if ctx.Err() != nil {
			u.logger.Warn("upload run cancelled",
				zap.Int("remaining", u.cfg.Count-i),
				zap.Error(ctx.Err()))
			break
		}

		sample := u.gen.Sample(ts)
		sum.Attempted++
		err := u.poster.Post(ctx, sample)
		if err == nil {
			sum.Succeeded++
			observability.RecordUpload(true, "")
			u.logger.Info("uploaded", zap.String("timestamp", sample.Timestamp))
			continue
		}

		sum.Failed++
		category := client.CategorizeError(err)
		observability.RecordUpload(false, string(category))
		fields := []zap.Field{
			zap.String("timestamp", sample.Timestamp),
			zap.String("category", string(category)),
			zap.Error(err),
		}
		var se *client.StatusError
		if errors.As(err, &se) {
			fields = append(fields, zap.Int("status_code", se.StatusCode), zap.String("body", se.Body))
		}
		u.logger.Warn("upload failed", fields...)
	}
	return sum
}
