package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"assetforge/internal/cache"
	"assetforge/internal/config"
	"assetforge/internal/fragments"
	"assetforge/internal/imaging"
	"assetforge/internal/imaging/libvips"
	"assetforge/internal/metrics"
	"assetforge/internal/pipeline"
	"assetforge/internal/stylesheet"
)

// app owns the long-lived processors shared by successive builds.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	deps    pipeline.Deps
	metrics *metrics.Metrics

	closers []func()
}

// newApp wires the processors described by cfg. memoryCache attaches an
// in-process build cache when Valkey is not configured, so that rebuilds
// in watch mode only touch changed files.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, memoryCache bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	opts := imaging.Options{
		JPEGQuality:   cfg.JPEGQuality,
		PNGQualityMin: cfg.PNGQualityMin,
		PNGQualityMax: cfg.PNGQualityMax,
		WebPQuality:   cfg.WebPQuality,
		MaxWidth:      cfg.MaxImageWidth,
	}
	var images imaging.Optimizer
	switch cfg.ImageBackend {
	case config.BackendVips:
		libvips.Startup(cfg.Jobs)
		a.closers = append(a.closers, libvips.Shutdown)
		images = libvips.New(opts)
	default:
		images = imaging.NewNative(opts)
	}

	compiler := stylesheet.NewSassCompiler(cfg.SassBinary, cfg.SassIncludePaths, logger)
	a.closers = append(a.closers, func() {
		if err := compiler.Close(); err != nil {
			logger.Warn("failed to stop sass compiler", "error", err)
		}
	})

	a.deps = pipeline.Deps{
		Compiler: compiler,
		Minifier: stylesheet.NewMinifier(),
		Images:   images,
		Metrics:  a.metrics,
		Logger:   logger,
	}

	switch {
	case cfg.CacheEnabled:
		client, err := cache.ConnectValkey(ctx, cfg.ValkeyAddr(), cfg.ValkeyPassword)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Close() })
		a.deps.Cache = cache.NewBuildCache(client, cacheNamespace(cfg), cache.DefaultTTL)
	case memoryCache:
		a.deps.Cache = cache.NewMemory()
	}

	return a, nil
}

// build runs one build. Fragments are reloaded every time so edits to the
// header or footer take effect on the next rebuild.
func (a *app) build(ctx context.Context) (*pipeline.Report, error) {
	deps := a.deps
	var fragmentData [][]byte
	if a.cfg.InlineFragments {
		inliner, err := fragments.Load(a.cfg.InputDir, a.cfg.HeaderFragment, a.cfg.FooterFragment)
		if err != nil {
			return nil, err
		}
		deps.Inliner = inliner
		for _, name := range []string{a.cfg.HeaderFragment, a.cfg.FooterFragment} {
			data, _ := os.ReadFile(filepath.Join(a.cfg.InputDir, name))
			fragmentData = append(fragmentData, data)
		}
	}

	b := pipeline.New(pipeline.Options{
		InputDir:  a.cfg.InputDir,
		OutputDir: a.cfg.OutputDir,
		Jobs:      a.cfg.Jobs,
		Strict:    a.cfg.Strict,
		EmitWebP:  a.cfg.EmitWebP,
		Settings:  settingsFingerprint(a.cfg, fragmentData...),
	}, deps)
	return b.Run(ctx)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// settingsFingerprint identifies everything besides a file's own bytes that
// shapes its output.
func settingsFingerprint(cfg *config.Config, extra ...[]byte) string {
	settings := fmt.Sprintf("v1|%s|jpeg=%d|png=%d-%d|webp=%t:%d|width=%d|inline=%t|%s|%s",
		cfg.ImageBackend,
		cfg.JPEGQuality,
		cfg.PNGQualityMin, cfg.PNGQualityMax,
		cfg.EmitWebP, cfg.WebPQuality,
		cfg.MaxImageWidth,
		cfg.InlineFragments, cfg.HeaderFragment, cfg.FooterFragment,
	)
	parts := append([][]byte{[]byte(settings), []byte(runtime.Version())}, extra...)
	return cache.Fingerprint(parts...)
}

// cacheNamespace keys Valkey records by the absolute output directory so
// several sites can share one instance.
func cacheNamespace(cfg *config.Config) string {
	if abs, err := filepath.Abs(cfg.OutputDir); err == nil {
		return abs
	}
	return cfg.OutputDir
}
