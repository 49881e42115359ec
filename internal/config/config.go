package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseTime is the first synthetic upload timestamp when upload.base_time is unset.
const DefaultBaseTime = "2025-12-27 14:55:00"

// BaseTimeLayout is the format of upload.base_time.
const BaseTimeLayout = "2006-01-02 15:04:05"

// Config holds settings for the chart, upload and serve commands, loaded from YAML and env.
type Config struct {
	SensorLogURL     string
	SensorLogTimeout time.Duration

	UploadCount    int
	UploadInterval time.Duration
	// UploadBaseTime is zero when the uploader should start from the current time.
	UploadBaseTime time.Time
	UploadSeed     int64

	CSVPath             string
	ChartOutputDir      string
	ChartWidth          int
	ChartHeight         int
	SentinelTemperature float64
	FilterAllMetrics    bool

	ServerPort     string
	RequestTimeout time.Duration
	LatestLimit    int

	CacheBackend string // "in_memory" or "memcached"
	CacheTTL     time.Duration
	// CacheWarmInterval is zero when background refresh of the dashboard snapshot is off.
	CacheWarmInterval time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	HealthWindow         time.Duration
	DegradedErrorPct     int
	OverloadThresholdPct int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	SensorLog struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"sensor_log"`

	Upload struct {
		Count    int     `yaml:"count"`
		Interval string  `yaml:"interval"`
		BaseTime *string `yaml:"base_time"`
		Seed     int64   `yaml:"seed"`
	} `yaml:"upload"`

	Charts struct {
		CSVPath             string   `yaml:"csv_path"`
		OutputDir           string   `yaml:"output_dir"`
		Width               int      `yaml:"width"`
		Height              int      `yaml:"height"`
		SentinelTemperature *float64 `yaml:"sentinel_temperature"`
		FilterAllMetrics    bool     `yaml:"filter_all_metrics"`
	} `yaml:"charts"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Dashboard struct {
		LatestLimit int `yaml:"latest_limit"`
	} `yaml:"dashboard"`

	Cache struct {
		Backend      string `yaml:"backend"`
		TTL          string `yaml:"ttl"`
		WarmInterval string `yaml:"warm_interval"`
		Memcached    struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`

		CircuitBreaker struct {
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Health struct {
		Window               string `yaml:"window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) under the working
// directory. A .env file in the working directory, when present, is loaded first.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFile(filepath.Join(cwd, "config", env+".yaml"))
}

// LoadFile reads configuration from the given YAML file, then applies env overrides:
// SENSOR_LOG_URL, CSV_PATH, CACHE_BACKEND, MEMCACHED_ADDRS.
func LoadFile(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.SensorLogURL = strings.TrimSpace(os.Getenv("SENSOR_LOG_URL"))
	if cfg.SensorLogURL == "" {
		cfg.SensorLogURL = strings.TrimSpace(fc.SensorLog.URL)
	}
	cfg.SensorLogTimeout = parseDurationOrZero(fc.SensorLog.Timeout, 10*time.Second)

	cfg.UploadCount = fc.Upload.Count
	if cfg.UploadCount <= 0 {
		cfg.UploadCount = 30
	}
	cfg.UploadInterval = parseDuration(fc.Upload.Interval, 10*time.Second)
	baseTime := DefaultBaseTime
	if fc.Upload.BaseTime != nil {
		baseTime = strings.TrimSpace(*fc.Upload.BaseTime)
	}
	if baseTime != "" {
		t, err := time.Parse(BaseTimeLayout, baseTime)
		if err != nil {
			return nil, fmt.Errorf("upload.base_time must use layout %q: %w", BaseTimeLayout, err)
		}
		cfg.UploadBaseTime = t
	}
	cfg.UploadSeed = fc.Upload.Seed

	cfg.CSVPath = strings.TrimSpace(os.Getenv("CSV_PATH"))
	if cfg.CSVPath == "" {
		cfg.CSVPath = strings.TrimSpace(fc.Charts.CSVPath)
	}
	if cfg.CSVPath == "" {
		cfg.CSVPath = "test3.csv"
	}
	cfg.ChartOutputDir = strings.TrimSpace(fc.Charts.OutputDir)
	if cfg.ChartOutputDir == "" {
		cfg.ChartOutputDir = "charts"
	}
	cfg.ChartWidth = fc.Charts.Width
	if cfg.ChartWidth <= 0 {
		cfg.ChartWidth = 1024
	}
	cfg.ChartHeight = fc.Charts.Height
	if cfg.ChartHeight <= 0 {
		cfg.ChartHeight = 512
	}
	cfg.SentinelTemperature = 85
	if fc.Charts.SentinelTemperature != nil {
		cfg.SentinelTemperature = *fc.Charts.SentinelTemperature
	}
	cfg.FilterAllMetrics = fc.Charts.FilterAllMetrics

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.LatestLimit = fc.Dashboard.LatestLimit
	if cfg.LatestLimit <= 0 {
		cfg.LatestLimit = 10
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 10*time.Second)
	cfg.CacheWarmInterval = parseDuration(fc.Cache.WarmInterval, 0)
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.BreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerTimeout = parseDuration(fc.Reliability.CircuitBreaker.Timeout, 30*time.Second)

	cfg.HealthWindow = parseDuration(fc.Health.Window, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireSensorLogURL returns an error when no sensor-log endpoint is configured.
// Only the upload and serve commands need one.
func (c *Config) RequireSensorLogURL() error {
	if c.SensorLogURL == "" {
		return fmt.Errorf("SENSOR_LOG_URL required (set env or sensor_log.url)")
	}
	return nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// RequestTimeout is raised above SensorLogTimeout so a dashboard fetch can complete.
func validate(cfg *Config) error {
	if cfg.SensorLogTimeout <= 0 {
		return fmt.Errorf("sensor_log.timeout must be positive")
	}
	if cfg.SensorLogURL != "" {
		u, err := url.Parse(cfg.SensorLogURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("sensor_log.url must be an absolute http(s) URL, got %q", cfg.SensorLogURL)
		}
	}
	if cfg.RequestTimeout <= cfg.SensorLogTimeout {
		cfg.RequestTimeout = cfg.SensorLogTimeout + time.Second
	}
	if cfg.DegradedErrorPct > 100 || cfg.OverloadThresholdPct > 100 {
		return fmt.Errorf("health thresholds are percentages and must not exceed 100")
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
