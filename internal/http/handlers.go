package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/water-quality-monitor/internal/chart"
	"github.com/kjstillabower/water-quality-monitor/internal/dataset"
	"github.com/kjstillabower/water-quality-monitor/internal/lifecycle"
	"github.com/kjstillabower/water-quality-monitor/internal/models"
	"github.com/kjstillabower/water-quality-monitor/internal/observability"
	"github.com/kjstillabower/water-quality-monitor/internal/traffic"
	"github.com/kjstillabower/water-quality-monitor/internal/validation"
)

// ReadingsProvider returns the dashboard snapshot, newest first.
type ReadingsProvider interface {
	Latest(ctx context.Context) ([]models.Sample, error)
}

// ChartSource loads the sensor CSV and renders it on request.
type ChartSource struct {
	Load     func() (dataset.Dataset, error)
	Plan     chart.Plan
	Renderer *chart.Renderer
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	Window               time.Duration
	DegradedErrorPct     int
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	// SensorLogOpen reports whether sensor-log reads are currently short-circuited.
	SensorLogOpen func() bool
}

// Deps are the collaborators of Handler. Readings and Charts may be nil, in which case
// the matching routes answer 503.
type Deps struct {
	Readings ReadingsProvider
	Charts   *ChartSource
	Tracker  *traffic.Tracker
	State    *lifecycle.State
	Health   *HealthConfig
	Logger   *zap.Logger
	Clock    clockwork.Clock
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	readings ReadingsProvider
	charts   *ChartSource
	tracker  *traffic.Tracker
	state    *lifecycle.State
	health   *HealthConfig
	logger   *zap.Logger
	clock    clockwork.Clock

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. Missing tracker, state, logger and clock get defaults.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		readings: d.Readings,
		charts:   d.Charts,
		tracker:  d.Tracker,
		state:    d.State,
		health:   d.Health,
		logger:   d.Logger,
		clock:    d.Clock,
	}
	if h.clock == nil {
		h.clock = clockwork.NewRealClock()
	}
	if h.tracker == nil {
		h.tracker = traffic.NewTracker(h.clock, 0)
	}
	if h.state == nil {
		h.state = lifecycle.New(h.clock)
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// latestResponse is the body of GET /readings/latest.
type latestResponse struct {
	Count    int             `json:"count"`
	Readings []models.Sample `json:"readings"`
}

// GetLatestReadings handles GET /readings/latest.
func (h *Handler) GetLatestReadings(w http.ResponseWriter, r *http.Request) {
	if h.readings == nil {
		writeError(w, r, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Sensor log is not configured")
		return
	}
	readings, err := h.readings.Latest(r.Context())
	if err != nil {
		h.tracker.RecordError()
		writeServiceError(w, r, err)
		return
	}
	h.tracker.RecordSuccess()
	if readings == nil {
		readings = []models.Sample{}
	}
	writeJSON(w, http.StatusOK, latestResponse{Count: len(readings), Readings: readings})
}

// GetChart handles GET /charts/{metric}. The CSV is re-read on every request so the chart
// follows the file as the logger appends to it.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	key, err := validation.ValidateMetricKey(mux.Vars(r)["metric"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_METRIC", err.Error())
		return
	}
	m, err := chart.LookupMetric(key)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_METRIC", "unknown metric: "+key)
		return
	}
	if h.charts == nil || h.charts.Load == nil || h.charts.Renderer == nil {
		writeError(w, r, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Charts are not configured")
		return
	}

	ds, err := h.charts.Load()
	if err != nil {
		observability.RecordChart(m.Key, err)
		writeError(w, r, http.StatusServiceUnavailable, "DATASET_UNAVAILABLE", "Unable to load sensor data")
		loggerFrom(r, h.logger).Warn("chart dataset load failed", zap.String("metric", m.Key), zap.Error(err))
		return
	}

	var buf bytes.Buffer
	err = h.charts.Renderer.Render(&buf, h.charts.Plan.DataFor(ds, m), m)
	observability.RecordChart(m.Key, err)
	switch {
	case errors.Is(err, chart.ErrMissingSeries):
		writeError(w, r, http.StatusNotFound, "SERIES_MISSING", "metric column not present in sensor data: "+m.Column)
		return
	case errors.Is(err, chart.ErrNoData):
		writeError(w, r, http.StatusUnprocessableEntity, "NO_DATA", "no readings to plot for "+m.Key)
		return
	case err != nil:
		loggerFrom(r, h.logger).Error("chart render failed", zap.String("metric", m.Key), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "Unable to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	switch result.reason {
	case "error_rate_breach", "circuit_open":
		checks["sensorLog"] = "unhealthy"
	default:
		checks["sensorLog"] = "healthy"
	}
	if h.health != nil && h.health.CachePing != nil {
		if h.health.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":        result.status,
		"service":       "water-quality-monitor",
		"version":       "dev",
		"checks":        checks,
		"uptimeSeconds": int64(h.state.Uptime().Seconds()),
		"timestamp":     h.clock.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > degraded > overloaded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if h.state.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.health == nil || h.health.Window <= 0 {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.health.DegradedErrorPct > 0 {
		errs, total := h.tracker.ErrorRate(h.health.Window)
		if total > 0 && float64(errs)*100/float64(total) >= float64(h.health.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	if h.health.SensorLogOpen != nil && h.health.SensorLogOpen() {
		return healthResult{"degraded", http.StatusServiceUnavailable, "circuit_open"}
	}
	if h.health.RateLimitRPS > 0 && h.health.OverloadThresholdPct > 0 {
		capacity := float64(h.health.RateLimitRPS) * h.health.Window.Seconds()
		if float64(h.tracker.DenialCount(h.health.Window)) > capacity*float64(h.health.OverloadThresholdPct)/100 {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// loggerFrom returns the request-scoped logger set by CorrelationIDMiddleware, or fallback.
func loggerFrom(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID, _ := r.Context().Value("correlation_id").(string)
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 Service Unavailable error response for sensor-log failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch sensor readings")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
