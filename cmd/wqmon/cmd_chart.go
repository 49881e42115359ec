package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/water-quality-monitor/internal/chart"
	"github.com/kjstillabower/water-quality-monitor/internal/config"
	"github.com/kjstillabower/water-quality-monitor/internal/dataset"
	"github.com/kjstillabower/water-quality-monitor/internal/observability"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render temperature, TDS, ORP and pH charts from the CSV log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runChart(cfg, logger)
		return err
	},
}

// runChart renders every metric into cfg.ChartOutputDir and returns the written paths.
// A CSV that cannot be loaded aborts the run; a metric with no plottable data is skipped.
func runChart(cfg *config.Config, logger *zap.Logger) ([]string, error) {
	ds, err := dataset.Load(cfg.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.CSVPath, err)
	}
	logger.Info("dataset loaded", zap.String("path", cfg.CSVPath), zap.Int("rows", len(ds.Readings)))

	plan := chart.Plan{Sentinel: cfg.SentinelTemperature, FilterAll: cfg.FilterAllMetrics}
	renderer := chart.NewRenderer(cfg.ChartWidth, cfg.ChartHeight)

	var written []string
	for _, m := range chart.Metrics {
		path, err := renderer.RenderFile(cfg.ChartOutputDir, plan.DataFor(ds, m), m)
		observability.RecordChart(m.Key, err)
		switch {
		case errors.Is(err, chart.ErrMissingSeries), errors.Is(err, chart.ErrNoData):
			logger.Warn("chart skipped", zap.String("metric", m.Key), zap.Error(err))
			continue
		case err != nil:
			return written, err
		}
		logger.Info("chart written", zap.String("metric", m.Key), zap.String("path", path))
		written = append(written, path)
	}
	return written, nil
}
