package service

import (
	"context"

	"github.com/kjstillabower/water-quality-monitor/internal/circuitbreaker"
	"github.com/kjstillabower/water-quality-monitor/internal/models"
)

// GuardedFetcher fails fast with circuitbreaker.ErrOpen while the sensor log keeps failing.
type GuardedFetcher struct {
	next    Fetcher
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedFetcher wraps next with breaker.
func NewGuardedFetcher(next Fetcher, breaker *circuitbreaker.CircuitBreaker) *GuardedFetcher {
	return &GuardedFetcher{next: next, breaker: breaker}
}

func (g *GuardedFetcher) FetchAll(ctx context.Context) ([]models.Sample, error) {
	var out []models.Sample
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.FetchAll(ctx)
		return err
	})
	return out, err
}

// State reports the breaker state for health checks.
func (g *GuardedFetcher) State() circuitbreaker.State {
	return g.breaker.State()
}
