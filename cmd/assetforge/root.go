package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"assetforge/internal/config"
	"assetforge/internal/logging"
)

// Populated by PersistentPreRunE for every subcommand.
var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "assetforge",
	Short: "Compile, minify and compress static site assets",
	Long: `assetforge mirrors an asset directory into an output directory,
compiling SCSS to minified CSS, minifying CSS, compressing JPEG, PNG and SVG
images and copying everything else unchanged.

Running assetforge without a subcommand performs a single build.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runBuild,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger == nil {
			logger = logging.New(os.Stderr, "info", "text")
		}
		logger.Error("assetforge failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	registerFlags(rootCmd)
}

// registerFlags adds the configuration override flags to cmd.
func registerFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "Path to the YAML config file (default "+config.DefaultFile+" if present)")
	f.String("input", "", "Source asset directory")
	f.String("output", "", "Destination directory")
	f.Int("jobs", 0, "Number of files processed concurrently")
	f.Bool("strict", false, "Exit non-zero when any file fails")
	f.Bool("webp", false, "Also write a .webp sibling for every JPEG and PNG")
	f.String("log-level", "", "Log level: debug, info, warn, error")
}

// setup reads the configuration, applies flag overrides, validates the
// result and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Read(path)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, loaded); err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logger = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		"env", cfg.Env,
		"input", cfg.InputDir,
		"output", cfg.OutputDir,
		"backend", cfg.ImageBackend,
	)
	return nil
}

// applyFlags overrides c with every flag the user set explicitly.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	var err error
	if f.Changed("input") {
		if c.InputDir, err = f.GetString("input"); err != nil {
			return err
		}
	}
	if f.Changed("output") {
		if c.OutputDir, err = f.GetString("output"); err != nil {
			return err
		}
	}
	if f.Changed("jobs") {
		if c.Jobs, err = f.GetInt("jobs"); err != nil {
			return err
		}
	}
	if f.Changed("strict") {
		if c.Strict, err = f.GetBool("strict"); err != nil {
			return err
		}
	}
	if f.Changed("webp") {
		if c.EmitWebP, err = f.GetBool("webp"); err != nil {
			return err
		}
	}
	if f.Changed("log-level") {
		if c.LogLevel, err = f.GetString("log-level"); err != nil {
			return err
		}
	}
	return nil
}
