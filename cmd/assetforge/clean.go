package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"assetforge/internal/cache"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the output directory and drop its build cache records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := os.RemoveAll(cfg.OutputDir); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
		logger.Info("removed output directory", "path", cfg.OutputDir)

		if !cfg.CacheEnabled {
			return nil
		}
		client, err := cache.ConnectValkey(ctx, cfg.ValkeyAddr(), cfg.ValkeyPassword)
		if err != nil {
			return err
		}
		defer client.Close()

		n, err := cache.NewBuildCache(client, cacheNamespace(cfg), cache.DefaultTTL).Purge(ctx)
		if err != nil {
			return err
		}
		logger.Info("purged build cache", "records", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
