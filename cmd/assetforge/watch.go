package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"assetforge/internal/pipeline"
	"assetforge/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build, then rebuild whenever the input changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, logger, true)
		if err != nil {
			return err
		}
		defer a.close()

		w, err := startWatching(ctx, a, debounceFlag(cmd))
		if err != nil {
			return err
		}
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before a rebuild")
}

func debounceFlag(cmd *cobra.Command) time.Duration {
	d, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return watch.DefaultDebounce
	}
	return d
}

// startWatching performs the initial build and returns a watcher that
// rebuilds on change. A failed file never stops the watcher; strict mode
// only affects the exit code of one-shot builds.
func startWatching(ctx context.Context, a *app, debounce time.Duration) (*watch.Watcher, error) {
	if _, err := a.build(ctx); err != nil && !errors.Is(err, pipeline.ErrFilesFailed) {
		return nil, err
	}

	return watch.New(a.cfg.InputDir, debounce, func(ctx context.Context, changed []string) {
		logger.Debug("changed paths", "paths", changed)
		if _, err := a.build(ctx); err != nil && !errors.Is(err, pipeline.ErrFilesFailed) && ctx.Err() == nil {
			logger.Error("rebuild failed", "error", err)
		}
	}, logger)
}
