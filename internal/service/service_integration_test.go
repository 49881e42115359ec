//go:build integration
// +build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/kjstillabower/water-quality-monitor/internal/models"
	"github.com/kjstillabower/water-quality-monitor/internal/testhelpers"
)

// TestReadingsService_Latest_Integration posts a sample with a far-future timestamp and
// expects it at the head of the dashboard snapshot.
func TestReadingsService_Latest_Integration(t *testing.T) {
	cfg := testhelpers.GetIntegrationConfig(t)
	sensorLog := testhelpers.SetupIntegrationClient(t, cfg)
	svc, _ := testhelpers.SetupIntegrationService(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	marker := models.Sample{
		Timestamp:   time.Date(2099, 1, 1, 0, 0, time.Now().Second(), 0, time.UTC).Format(models.TimestampLayout),
		Temperature: 25,
		TDS:         400,
		PH:          7,
		ORP:         250,
	}
	if err := sensorLog.Post(ctx, marker); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	got, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Latest() returned no readings")
	}
	if got[0].Timestamp != marker.Timestamp {
		t.Errorf("newest reading = %s, want %s", got[0].Timestamp, marker.Timestamp)
	}
	if got[0].PH != marker.PH {
		t.Errorf("newest pH = %v, want %v", got[0].PH, marker.PH)
	}
}
