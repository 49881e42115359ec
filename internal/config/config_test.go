package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `
sensor_log:
  url: "https://sensors.example.com/sensorLogs/device1.json"
  timeout: "10s"
charts:
  csv_path: "readings.csv"
`

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

// chdir switches into dir for the duration of the test and clears the env overrides
// Load consults so the developer's shell cannot leak into assertions.
func chdir(t *testing.T, dir string) {
	t.Helper()
	for _, k := range []string{"ENV_NAME", "SENSOR_LOG_URL", "CSV_PATH", "CACHE_BACKEND", "MEMCACHED_ADDRS"} {
		t.Setenv(k, "")
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SensorLogTimeout != 10*time.Second {
		t.Errorf("SensorLogTimeout = %v, want 10s", cfg.SensorLogTimeout)
	}
	if cfg.UploadCount != 30 {
		t.Errorf("UploadCount = %d, want 30", cfg.UploadCount)
	}
	if cfg.UploadInterval != 10*time.Second {
		t.Errorf("UploadInterval = %v, want 10s", cfg.UploadInterval)
	}
	wantBase := time.Date(2025, time.December, 27, 14, 55, 0, 0, time.UTC)
	if !cfg.UploadBaseTime.Equal(wantBase) {
		t.Errorf("UploadBaseTime = %v, want %v", cfg.UploadBaseTime, wantBase)
	}
	if cfg.UploadSeed != 0 {
		t.Errorf("UploadSeed = %d, want 0", cfg.UploadSeed)
	}
	if cfg.CSVPath != "readings.csv" {
		t.Errorf("CSVPath = %q, want readings.csv", cfg.CSVPath)
	}
	if cfg.ChartOutputDir != "charts" {
		t.Errorf("ChartOutputDir = %q, want charts", cfg.ChartOutputDir)
	}
	if cfg.SentinelTemperature != 85 {
		t.Errorf("SentinelTemperature = %v, want 85", cfg.SentinelTemperature)
	}
	if cfg.FilterAllMetrics {
		t.Error("FilterAllMetrics = true, want false")
	}
	if cfg.LatestLimit != 10 {
		t.Errorf("LatestLimit = %d, want 10", cfg.LatestLimit)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.RequestTimeout <= cfg.SensorLogTimeout {
		t.Errorf("RequestTimeout = %v, want > SensorLogTimeout %v", cfg.RequestTimeout, cfg.SensorLogTimeout)
	}
	if cfg.CacheWarmInterval != 0 {
		t.Errorf("CacheWarmInterval = %v, want 0 (disabled)", cfg.CacheWarmInterval)
	}
	if cfg.HealthWindow != time.Minute || cfg.DegradedErrorPct != 50 || cfg.OverloadThresholdPct != 80 {
		t.Errorf("health = %v/%d/%d, want 1m/50/80", cfg.HealthWindow, cfg.DegradedErrorPct, cfg.OverloadThresholdPct)
	}
	if cfg.BreakerFailureThreshold != 5 || cfg.BreakerSuccessThreshold != 2 || cfg.BreakerTimeout != 30*time.Second {
		t.Errorf("breaker = %d/%d/%v, want 5/2/30s", cfg.BreakerFailureThreshold, cfg.BreakerSuccessThreshold, cfg.BreakerTimeout)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("ENV_NAME", "nonexistent")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing config file, got nil")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want config file not found", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	chdir(t, dir)
	t.Setenv("SENSOR_LOG_URL", "http://localhost:9000/logs.json")
	t.Setenv("CSV_PATH", "other.csv")
	t.Setenv("CACHE_BACKEND", "MEMCACHED")
	t.Setenv("MEMCACHED_ADDRS", "cache1:11211,cache2:11211")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SensorLogURL != "http://localhost:9000/logs.json" {
		t.Errorf("SensorLogURL = %q, want env value", cfg.SensorLogURL)
	}
	if cfg.CSVPath != "other.csv" {
		t.Errorf("CSVPath = %q, want other.csv", cfg.CSVPath)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "cache1:11211,cache2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	chdir(t, dir)
	// godotenv does not override variables that are already set, so unset rather than blank it.
	os.Unsetenv("CSV_PATH")
	t.Cleanup(func() { os.Unsetenv("CSV_PATH") })
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CSV_PATH=from-dotenv.csv\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CSVPath != "from-dotenv.csv" {
		t.Errorf("CSVPath = %q, want from-dotenv.csv", cfg.CSVPath)
	}
}

func TestLoadFile_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "custom.yaml")
	content := `
sensor_log:
  url: "https://sensors.example.com/sensorLogs/device1.json"
upload:
  count: 5
  interval: "1m"
  base_time: "2026-03-01 08:00:00"
  seed: 99
charts:
  filter_all_metrics: true
  sentinel_temperature: -127
dashboard:
  latest_limit: 25
reliability:
  circuit_breaker:
    failure_threshold: 3
    timeout: "5s"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.UploadCount != 5 {
		t.Errorf("UploadCount = %d, want 5", cfg.UploadCount)
	}
	if cfg.UploadInterval != time.Minute {
		t.Errorf("UploadInterval = %v, want 1m", cfg.UploadInterval)
	}
	if want := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC); !cfg.UploadBaseTime.Equal(want) {
		t.Errorf("UploadBaseTime = %v, want %v", cfg.UploadBaseTime, want)
	}
	if cfg.UploadSeed != 99 {
		t.Errorf("UploadSeed = %d, want 99", cfg.UploadSeed)
	}
	if !cfg.FilterAllMetrics {
		t.Error("FilterAllMetrics = false, want true")
	}
	if cfg.SentinelTemperature != -127 {
		t.Errorf("SentinelTemperature = %v, want -127", cfg.SentinelTemperature)
	}
	if cfg.LatestLimit != 25 {
		t.Errorf("LatestLimit = %d, want 25", cfg.LatestLimit)
	}
	if cfg.CSVPath != "test3.csv" {
		t.Errorf("CSVPath = %q, want default test3.csv", cfg.CSVPath)
	}
	if cfg.BreakerFailureThreshold != 3 || cfg.BreakerTimeout != 5*time.Second {
		t.Errorf("breaker = %d/%v, want 3/5s", cfg.BreakerFailureThreshold, cfg.BreakerTimeout)
	}
}

func TestLoad_EmptyBaseTimeMeansNow(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML+"upload:\n  base_time: \"\"\n")
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.UploadBaseTime.IsZero() {
		t.Errorf("UploadBaseTime = %v, want zero", cfg.UploadBaseTime)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML+"upload:\n  interval: \"soon\"\ncache:\n  ttl: \"-5s\"\n")
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UploadInterval != 10*time.Second {
		t.Errorf("UploadInterval = %v, want 10s", cfg.UploadInterval)
	}
	if cfg.CacheTTL != 10*time.Second {
		t.Errorf("CacheTTL = %v, want 10s", cfg.CacheTTL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "zero sensor log timeout",
			yaml:    "sensor_log:\n  url: \"https://x.example.com/a.json\"\n  timeout: \"0s\"\n",
			wantErr: "sensor_log.timeout",
		},
		{
			name:    "relative url",
			yaml:    "sensor_log:\n  url: \"/sensorLogs/device1.json\"\n",
			wantErr: "sensor_log.url",
		},
		{
			name:    "unknown cache backend",
			yaml:    minimalEnvYAML + "cache:\n  backend: redis\n",
			wantErr: "cache.backend",
		},
		{
			name:    "bad base time",
			yaml:    minimalEnvYAML + "upload:\n  base_time: \"27-12-2025 14:55\"\n",
			wantErr: "upload.base_time",
		},
		{
			name:    "degraded pct over 100",
			yaml:    minimalEnvYAML + "health:\n  degraded_error_pct: 150\n",
			wantErr: "percentages",
		},
		{
			name:    "invalid yaml",
			yaml:    "sensor_log: [unclosed\n",
			wantErr: "parse config file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeEnvFile(t, dir, tt.yaml)
			chdir(t, dir)

			cfg, err := Load()
			if err == nil {
				t.Fatalf("Load() expected error, got config %+v", cfg)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want message containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRequireSensorLogURL(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireSensorLogURL(); err == nil {
		t.Error("RequireSensorLogURL() = nil, want error for empty URL")
	}
	cfg.SensorLogURL = "https://x.example.com/a.json"
	if err := cfg.RequireSensorLogURL(); err != nil {
		t.Errorf("RequireSensorLogURL() = %v, want nil", err)
	}
}

// TestShippedConfigLoads guards config/dev.yaml in the repository root.
func TestShippedConfigLoads(t *testing.T) {
	root := findProjectRoot(t)
	cfg, err := LoadFile(filepath.Join(root, "config", "dev.yaml"))
	if err != nil {
		t.Fatalf("LoadFile(config/dev.yaml) error = %v", err)
	}
	if err := cfg.RequireSensorLogURL(); err != nil {
		t.Errorf("shipped config has no sensor log URL: %v", err)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}
