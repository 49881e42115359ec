package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/water-quality-monitor/internal/circuitbreaker"
	"github.com/kjstillabower/water-quality-monitor/internal/models"
)

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) FetchAll(context.Context) ([]models.Sample, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []models.Sample{{Timestamp: "2025-12-27 14:55:00"}}, nil
}

func TestGuardedFetcher_PassesThrough(t *testing.T) {
	f := &countingFetcher{}
	g := NewGuardedFetcher(f, circuitbreaker.New(circuitbreaker.Config{Clock: clockwork.NewFakeClock()}))

	got, err := g.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(got) != 1 || f.calls != 1 {
		t.Errorf("got %d samples after %d calls, want 1 and 1", len(got), f.calls)
	}
}

func TestGuardedFetcher_FailsFastWhenOpen(t *testing.T) {
	f := &countingFetcher{err: errors.New("connection refused")}
	g := NewGuardedFetcher(f, circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, Clock: clockwork.NewFakeClock()}))
	ctx := context.Background()

	_, _ = g.FetchAll(ctx)
	_, _ = g.FetchAll(ctx)
	_, err := g.FetchAll(ctx)

	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Fatalf("third FetchAll() error = %v, want ErrOpen", err)
	}
	if f.calls != 2 {
		t.Errorf("upstream calls = %d, want 2", f.calls)
	}
	if g.State() != circuitbreaker.StateOpen {
		t.Errorf("State() = %v, want open", g.State())
	}
}
