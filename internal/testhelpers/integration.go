//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/water-quality-monitor/internal/cache"
	"github.com/kjstillabower/water-quality-monitor/internal/client"
	"github.com/kjstillabower/water-quality-monitor/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	SensorLogURL  string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if SENSOR_LOG_URL is not set. Point it at a scratch collection: the
// tests write to it.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	url := os.Getenv("SENSOR_LOG_URL")
	if url == "" {
		t.Skip("SENSOR_LOG_URL not set, skipping integration test")
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		SensorLogURL:  url,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationClient creates a sensor-log client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.SensorLogClient {
	c, err := client.NewSensorLogClient(cfg.SensorLogURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewSensorLogClient() error = %v", err)
	}
	return c
}

// SetupIntegrationService creates a readings service backed by the real sensor log.
// Memcached is used when requested and reachable; otherwise the in-memory cache.
// The cleanup is registered with t.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.ReadingsService, cache.Cache) {
	sensorLog := SetupIntegrationClient(t, cfg)

	var c cache.Cache = cache.NewInMemoryCache()
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		switch {
		case err != nil:
			t.Logf("Memcached not configured (%v), using in-memory cache", err)
		case mc.Ping() != nil:
			t.Logf("Memcached not reachable at %s, using in-memory cache", cfg.MemcachedAddr)
			_ = mc.Close()
		default:
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
			t.Cleanup(func() { _ = mc.Close() })
			c = mc
		}
	}

	return service.NewReadingsService(sensorLog, c, time.Second, service.DefaultLatestLimit), c
}
