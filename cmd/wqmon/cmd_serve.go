package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/water-quality-monitor/internal/cache"
	"github.com/kjstillabower/water-quality-monitor/internal/chart"
	"github.com/kjstillabower/water-quality-monitor/internal/circuitbreaker"
	"github.com/kjstillabower/water-quality-monitor/internal/client"
	"github.com/kjstillabower/water-quality-monitor/internal/config"
	"github.com/kjstillabower/water-quality-monitor/internal/dataset"
	httphandler "github.com/kjstillabower/water-quality-monitor/internal/http"
	"github.com/kjstillabower/water-quality-monitor/internal/lifecycle"
	"github.com/kjstillabower/water-quality-monitor/internal/observability"
	"github.com/kjstillabower/water-quality-monitor/internal/service"
	"github.com/kjstillabower/water-quality-monitor/internal/traffic"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the readings dashboard over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), cfg, logger)
	},
}

// dashboard is the assembled HTTP stack plus the pieces shutdown has to reach.
type dashboard struct {
	router   http.Handler
	state    *lifecycle.State
	readings *service.ReadingsService
	memcache *cache.MemcachedCache
}

// buildDashboard wires config into the HTTP handler. Without a sensor-log URL the
// readings route answers 503 and only charts are served.
func buildDashboard(cfg *config.Config, logger *zap.Logger, clock clockwork.Clock) (*dashboard, error) {
	d := &dashboard{state: lifecycle.New(clock)}
	health := &httphandler.HealthConfig{
		Window:               cfg.HealthWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
	}

	var cacheSvc cache.Cache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, err
		}
		d.memcache = mc
		cacheSvc = mc
		health.CachePing = mc.Ping
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCacheWithClock(clock)
		logger.Info("cache backend: in_memory")
	}

	var readings httphandler.ReadingsProvider
	if cfg.SensorLogURL != "" {
		sensorLog, err := client.NewSensorLogClient(cfg.SensorLogURL, cfg.SensorLogTimeout)
		if err != nil {
			return nil, err
		}
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Timeout:          cfg.BreakerTimeout,
			Clock:            clock,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.CircuitBreakerState.Set(float64(to))
				logger.Warn("sensor log circuit state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		guarded := service.NewGuardedFetcher(sensorLog, cb)
		health.SensorLogOpen = func() bool { return guarded.State() == circuitbreaker.StateOpen }
		d.readings = service.NewReadingsService(guarded, cacheSvc, cfg.CacheTTL, cfg.LatestLimit)
		readings = d.readings
	} else {
		logger.Warn("sensor log not configured; /readings/latest will answer 503")
	}

	csvPath := cfg.CSVPath
	charts := &httphandler.ChartSource{
		Load:     func() (dataset.Dataset, error) { return dataset.Load(csvPath) },
		Plan:     chart.Plan{Sentinel: cfg.SentinelTemperature, FilterAll: cfg.FilterAllMetrics},
		Renderer: chart.NewRenderer(cfg.ChartWidth, cfg.ChartHeight),
	}

	tracker := traffic.NewTracker(clock, cfg.HealthWindow)
	handler := httphandler.NewHandler(httphandler.Deps{
		Readings: readings,
		Charts:   charts,
		Tracker:  tracker,
		State:    d.state,
		Health:   health,
		Logger:   logger,
		Clock:    clock,
	})

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	d.router = httphandler.NewRouter(handler, httphandler.RouterOptions{
		Logger:         logger,
		Limiter:        limiter,
		Tracker:        tracker,
		RequestTimeout: cfg.RequestTimeout,
	})
	return d, nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	d, err := buildDashboard(cfg, logger, clockwork.NewRealClock())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if d.readings != nil && cfg.CacheWarmInterval > 0 {
		warmer := cache.NewCacheWarmer(d.readings, logger, clockwork.NewRealClock())
		go func() {
			if err := warmer.WarmPeriodic(ctx, cfg.CacheWarmInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("periodic cache warming stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      d.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	stop()

	logger.Info("graceful shutdown triggered")
	d.state.BeginShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if d.memcache != nil {
		if err := d.memcache.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
	return nil
}
