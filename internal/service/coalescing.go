package service

import (
	"context"
	"sync"

	"github.com/kjstillabower/water-quality-monitor/internal/models"
)

// inFlightRequest is one upstream fetch that several callers may be waiting on.
type inFlightRequest struct {
	done   chan struct{}
	result []models.Sample
	err    error
}

// requestCoalescer collapses concurrent cache misses for the same key into a single fetch.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
}

func newRequestCoalescer() *requestCoalescer {
	return &requestCoalescer{inFlight: make(map[string]*inFlightRequest)}
}

// GetOrDo runs fn for key unless a run is already in flight, in which case it waits for that
// run's result. shared reports whether the result came from another caller's run.
// fn runs detached from ctx cancellation so one caller giving up does not fail the rest;
// it keeps ctx values and is expected to bound itself.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func(context.Context) ([]models.Sample, error)) (result []models.Sample, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightRequest{done: make(chan struct{})}
		rc.inFlight[key] = req
		go rc.run(context.WithoutCancel(ctx), key, req, fn)
	}
	rc.mu.Unlock()

	select {
	case <-req.done:
		if req.err != nil {
			return nil, exists, req.err
		}
		out := make([]models.Sample, len(req.result))
		copy(out, req.result)
		return out, exists, nil
	case <-ctx.Done():
		return nil, exists, ctx.Err()
	}
}

func (rc *requestCoalescer) run(ctx context.Context, key string, req *inFlightRequest, fn func(context.Context) ([]models.Sample, error)) {
	req.result, req.err = fn(ctx)

	rc.mu.Lock()
	delete(rc.inFlight, key)
	rc.mu.Unlock()

	close(req.done)
}
