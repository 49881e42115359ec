package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/water-quality-monitor/internal/client"
	"github.com/kjstillabower/water-quality-monitor/internal/config"
	"github.com/kjstillabower/water-quality-monitor/internal/generator"
	"github.com/kjstillabower/water-quality-monitor/internal/uploader"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Post synthetic samples to the sensor log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		_, err := runUpload(ctx, cfg, logger)
		return err
	},
}

// runUpload posts cfg.UploadCount samples. Failed posts are logged and counted but do not
// make the command fail; only a missing or invalid endpoint does.
func runUpload(ctx context.Context, cfg *config.Config, logger *zap.Logger) (uploader.Summary, error) {
	if err := cfg.RequireSensorLogURL(); err != nil {
		return uploader.Summary{}, err
	}
	sensorLog, err := client.NewSensorLogClient(cfg.SensorLogURL, cfg.SensorLogTimeout)
	if err != nil {
		return uploader.Summary{}, err
	}

	u := uploader.New(sensorLog, generator.New(cfg.UploadSeed), logger, nil, uploader.Config{
		Base:     cfg.UploadBaseTime,
		Count:    cfg.UploadCount,
		Interval: cfg.UploadInterval,
	})
	sum := u.Run(ctx)
	logger.Info("upload run complete",
		zap.Int("attempted", sum.Attempted),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed))
	return sum, nil
}
