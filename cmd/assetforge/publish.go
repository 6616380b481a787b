package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"assetforge/internal/storage"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Build, then upload the output directory to S3-compatible storage",
	Long: `Builds the assets and uploads every file of the output directory to the
configured bucket under S3_PREFIX. Requires S3_ENDPOINT, S3_ACCESS_KEY,
S3_SECRET_KEY and S3_BUCKET. HTML is sent with Cache-Control no-cache, other
files with a max-age of S3_CACHE_MAX_AGE seconds (default 300).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !cfg.PublishEnabled() {
			return errors.New("publish: S3 endpoint, credentials and bucket must be configured")
		}
		client, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL)
		if err != nil {
			return err
		}

		if skip, _ := cmd.Flags().GetBool("skip-build"); !skip {
			a, err := newApp(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			_, err = a.build(ctx)
			a.close()
			if err != nil {
				return err
			}
		}

		pub := storage.NewPublisher(client, cfg.S3Prefix, time.Duration(cfg.S3CacheMaxAge)*time.Second, logger)
		report, err := pub.Publish(ctx, cfg.OutputDir)
		if err != nil {
			return err
		}

		logger.Info("published",
			"bucket", client.Bucket(),
			"uploaded", report.Uploaded,
			"bytes", report.Bytes,
			"failed", len(report.Failed),
			"url", client.FileURL(pub.Key("")),
		)
		if len(report.Failed) > 0 {
			return fmt.Errorf("publish: %d files failed to upload", len(report.Failed))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().Bool("skip-build", false, "Upload the existing output directory without rebuilding")
}
