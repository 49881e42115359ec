package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/water-quality-monitor/internal/observability"
	"github.com/kjstillabower/water-quality-monitor/internal/traffic"
)

// RouterOptions configures the middleware around the dashboard routes.
type RouterOptions struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter // nil disables rate limiting
	Tracker        *traffic.Tracker
	RequestTimeout time.Duration
}

// NewRouter wires the dashboard routes. /readings and /charts sit behind the rate limiter
// and request timeout; /health and /metrics do not.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	readings := router.PathPrefix("/readings").Subrouter()
	readings.Use(limitedRouteMiddleware(opts)...)
	readings.HandleFunc("/latest", h.GetLatestReadings).Methods("GET")

	charts := router.PathPrefix("/charts").Subrouter()
	charts.Use(limitedRouteMiddleware(opts)...)
	charts.HandleFunc("/{metric}", h.GetChart).Methods("GET")

	return router
}

func limitedRouteMiddleware(opts RouterOptions) []mux.MiddlewareFunc {
	mws := []mux.MiddlewareFunc{RateLimitMiddleware(opts.Limiter, opts.Tracker)}
	if opts.RequestTimeout > 0 {
		mws = append(mws, TimeoutMiddleware(opts.RequestTimeout))
	}
	return mws
}
