package chart

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/water-quality-monitor/internal/dataset"
)

func allColumns() map[string]bool {
	return map[string]bool{
		dataset.ColumnTemperature: true,
		dataset.ColumnPH:          true,
		dataset.ColumnORP:         true,
		dataset.ColumnTDS:         true,
	}
}

func fixture() dataset.Dataset {
	at := func(day, hour int) time.Time { return time.Date(2026, time.January, day, hour, 0, 0, 0, time.UTC) }
	return dataset.Dataset{
		Columns: allColumns(),
		Readings: []dataset.Reading{
			{Time: at(1, 8), TemperatureC: 28.1, PH: 7.4, ORPmV: 230, TDSppm: 400},
			{Time: at(1, 18), TemperatureC: 85, PH: 7.5, ORPmV: 235, TDSppm: 0},
			{Time: at(2, 9), TemperatureC: 28.7, PH: 7.6, ORPmV: 244, TDSppm: 415},
			{Time: at(3, 7), TemperatureC: 29.0, PH: 7.8, ORPmV: 251, TDSppm: 422},
		},
	}
}

func TestDateTicks_OnePerCalendarDate(t *testing.T) {
	ds := fixture()
	times := make([]time.Time, len(ds.Readings))
	for i, r := range ds.Readings {
		times[i] = r.Time
	}

	ticks := DateTicks(times)
	require.Len(t, ticks, 3)
	assert.Equal(t, "01-01-2026", ticks[0].Label)
	assert.Equal(t, "02-01-2026", ticks[1].Label)
	assert.Equal(t, "03-01-2026", ticks[2].Label)

	midnight := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, float64(midnight.UnixNano()), ticks[1].Value)
}

func TestDateTicks_Empty(t *testing.T) {
	assert.Empty(t, DateTicks(nil))
}

func TestPlan_DataFor(t *testing.T) {
	ds := fixture()
	plan := Plan{Sentinel: dataset.DefaultSentinelTemperature}

	tests := []struct {
		key       string
		filterAll bool
		wantRows  int
	}{
		{"temperature", false, 3},
		{"tds", false, 3},
		{"ph", false, 4},
		{"orp", false, 4},
		{"ph", true, 3},
		{"orp", true, 3},
	}
	for _, tt := range tests {
		m, err := LookupMetric(tt.key)
		require.NoError(t, err)
		plan.FilterAll = tt.filterAll
		got := plan.DataFor(ds, m)
		assert.Len(t, got.Readings, tt.wantRows, "metric %s filterAll=%v", tt.key, tt.filterAll)
	}
	assert.Len(t, ds.Readings, 4, "source dataset must not be modified")
}

func TestLookupMetric_Unknown(t *testing.T) {
	_, err := LookupMetric("salinity")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestRenderer_RenderPNG(t *testing.T) {
	r := NewRenderer(640, 320)
	ds := fixture()
	for _, m := range Metrics {
		t.Run(m.Key, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.Render(&buf, ds, m))

			img, err := png.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, 640, img.Bounds().Dx())
			assert.Equal(t, 320, img.Bounds().Dy())
		})
	}
}

func TestRenderer_SingleReading(t *testing.T) {
	ds := dataset.Dataset{
		Columns:  allColumns(),
		Readings: []dataset.Reading{{Time: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), PH: 7.2}},
	}
	m, _ := LookupMetric("ph")

	var buf bytes.Buffer
	assert.NoError(t, NewRenderer(0, 0).Render(&buf, ds, m))
}

func TestRenderer_Errors(t *testing.T) {
	r := NewRenderer(0, 0)
	m, _ := LookupMetric("orp")

	var buf bytes.Buffer
	err := r.Render(&buf, dataset.Dataset{Columns: allColumns()}, m)
	assert.ErrorIs(t, err, ErrNoData)

	ds := fixture()
	ds.Columns = map[string]bool{dataset.ColumnPH: true}
	err = r.Render(&buf, ds, m)
	assert.ErrorIs(t, err, ErrMissingSeries)
}

func TestRenderer_RenderFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	m, _ := LookupMetric("temperature")

	path, err := NewRenderer(0, 0).RenderFile(dir, fixture(), m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "temperature.png"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderer_RenderFile_NoPartialOutput(t *testing.T) {
	dir := t.TempDir()
	m, _ := LookupMetric("tds")

	_, err := NewRenderer(0, 0).RenderFile(dir, dataset.Dataset{Columns: allColumns()}, m)
	require.ErrorIs(t, err, ErrNoData)

	_, statErr := os.Stat(filepath.Join(dir, "tds.png"))
	assert.True(t, os.IsNotExist(statErr))
}
