package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/docpipe/internal/app"
	"github.com/markdave123-py/docpipe/internal/models"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the full pipeline every day at local midnight",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, logger := loadRuntime(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	s := app.NewScheduler(app.NewRunner(cfg, models.StageLoad, logger), logger.With("component", "scheduler"))
	if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
