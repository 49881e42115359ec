// Package chart renders one time-series line chart per water-quality metric.
package chart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/kjstillabower/water-quality-monitor/internal/dataset"
)

// DateLabelLayout labels x-axis ticks (DD-MM-YYYY).
const DateLabelLayout = "02-01-2006"

var (
	// ErrNoData is returned when there is nothing to plot.
	ErrNoData = errors.New("chart: no readings to plot")
	// ErrMissingSeries is returned when the metric column is absent from the dataset.
	ErrMissingSeries = errors.New("chart: metric column missing from dataset")
	// ErrUnknownMetric is returned by LookupMetric for an unrecognised key.
	ErrUnknownMetric = errors.New("chart: unknown metric")
)

// Metric describes one plotted series.
type Metric struct {
	Key    string
	Column string
	YLabel string
	// SentinelFiltered metrics are plotted from the sentinel-filtered rows.
	SentinelFiltered bool
	Value            func(dataset.Reading) float64
}

// Metrics lists the plotted series in render order.
var Metrics = []Metric{
	{
		Key: "temperature", Column: dataset.ColumnTemperature, YLabel: "Temperature in C",
		SentinelFiltered: true,
		Value:            func(r dataset.Reading) float64 { return r.TemperatureC },
	},
	{
		Key: "tds", Column: dataset.ColumnTDS, YLabel: "TDS in ppm",
		SentinelFiltered: true,
		Value:            func(r dataset.Reading) float64 { return r.TDSppm },
	},
	{
		Key: "orp", Column: dataset.ColumnORP, YLabel: "ORP in mV",
		Value: func(r dataset.Reading) float64 { return r.ORPmV },
	},
	{
		Key: "ph", Column: dataset.ColumnPH, YLabel: "pH",
		Value: func(r dataset.Reading) float64 { return r.PH },
	},
}

// LookupMetric returns the metric registered under key.
func LookupMetric(key string) (Metric, error) {
	for _, m := range Metrics {
		if m.Key == key {
			return m, nil
		}
	}
	return Metric{}, fmt.Errorf("%w: %q", ErrUnknownMetric, key)
}

// Plan decides which rows each metric is drawn from.
// Temperature and TDS drop sentinel rows; pH and ORP see every row unless FilterAll is set.
type Plan struct {
	Sentinel  float64
	FilterAll bool
}

// DataFor returns the dataset the metric should be rendered from.
func (p Plan) DataFor(ds dataset.Dataset, m Metric) dataset.Dataset {
	if m.SentinelFiltered || p.FilterAll {
		return ds.WithReadings(dataset.FilterSentinel(ds.Readings, p.Sentinel))
	}
	return ds
}

// Renderer draws metrics as PNG line charts.
type Renderer struct {
	Width  int
	Height int
	Color  drawing.Color
}

// NewRenderer returns a Renderer with the given canvas size; zero values use 1024x512.
func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 512
	}
	return &Renderer{Width: width, Height: height, Color: gochart.ColorBlue}
}

// Render writes a PNG line chart of m against time, one marker per reading,
// with x-axis ticks on each distinct calendar date.
func (r *Renderer) Render(w io.Writer, ds dataset.Dataset, m Metric) error {
	if !ds.Has(m.Column) {
		return fmt.Errorf("%w: %s", ErrMissingSeries, m.Column)
	}
	if len(ds.Readings) == 0 {
		return ErrNoData
	}

	xs := make([]time.Time, len(ds.Readings))
	ys := make([]float64, len(ds.Readings))
	for i, rd := range ds.Readings {
		xs[i] = rd.Time
		ys[i] = m.Value(rd)
	}

	ch := gochart.Chart{
		Width:      r.Width,
		Height:     r.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      xAxis(xs),
		YAxis:      yAxis(m.YLabel, ys),
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    m.YLabel,
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeWidth: 1.5,
					StrokeColor: r.Color,
					DotWidth:    3,
					DotColor:    r.Color,
				},
			},
		},
	}
	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", m.Key, err)
	}
	return nil
}

// RenderFile renders m into dir/<key>.png and returns the written path.
func (r *Renderer) RenderFile(dir string, ds dataset.Dataset, m Metric) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, m.Key+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := r.Render(f, ds, m); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// DateTicks returns one tick per distinct calendar date in times, placed at midnight
// and labelled DD-MM-YYYY. times must be sorted ascending.
func DateTicks(times []time.Time) []gochart.Tick {
	var ticks []gochart.Tick
	var last time.Time
	for i, t := range times {
		day := startOfDay(t)
		if i > 0 && day.Equal(last) {
			continue
		}
		last = day
		ticks = append(ticks, gochart.Tick{
			Value: gochart.TimeToFloat64(day),
			Label: day.Format(DateLabelLayout),
		})
	}
	return ticks
}

// xAxis spans from the first tick (midnight of the first date) to the last reading so
// every date tick is drawn. A single-instant range is padded to one day.
func xAxis(xs []time.Time) gochart.XAxis {
	ticks := DateTicks(xs)
	minF := gochart.TimeToFloat64(startOfDay(xs[0]))
	maxF := gochart.TimeToFloat64(xs[len(xs)-1])
	if maxF <= minF {
		maxF = gochart.TimeToFloat64(startOfDay(xs[0]).Add(24 * time.Hour))
	}
	if len(ticks) == 1 {
		// go-chart needs two ticks to lay out the axis.
		ticks = append(ticks, gochart.Tick{Value: maxF})
	}
	return gochart.XAxis{
		Name:  "Date",
		Ticks: ticks,
		Range: &gochart.ContinuousRange{Min: minF, Max: maxF},
	}
}

// yAxis leaves the range automatic unless every value is equal, in which case it is
// widened so the renderer has a non-zero span.
func yAxis(name string, ys []float64) gochart.YAxis {
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	axis := gochart.YAxis{Name: name}
	if hi <= lo {
		axis.Range = &gochart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	return axis
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
