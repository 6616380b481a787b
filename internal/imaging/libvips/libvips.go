// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package libvips provides an imaging.Optimizer backed by libvips. It
// recompresses JPEG and PNG sources, converts them to WebP, and strips
// metadata after applying the EXIF orientation. SVG sources are minified
// rather than rasterized.
package libvips

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davidbyttow/govips/v2/vips"

	"assetforge/internal/imaging"
)

// Startup initialises the libvips library. Call once at application start.
// concurrency controls the number of libvips worker threads (0 = auto).
func Startup(concurrency int) {
	cfg := &vips.Config{
		ConcurrencyLevel: concurrency,
		MaxCacheSize:     100,
		MaxCacheMem:      50 * 1024 * 1024, // 50 MB
	}
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(cfg)
	slog.Info("libvips started", "version", vips.Version)
}

// Shutdown releases libvips resources. Call at application shutdown.
func Shutdown() {
	vips.Shutdown()
}

// Optimizer implements imaging.Optimizer on top of libvips.
type Optimizer struct {
	opts imaging.Options
	svg  *imaging.SVGMinifier
}

// New creates a libvips optimizer. Startup must have been called.
func New(opts imaging.Options) *Optimizer {
	return &Optimizer{opts: opts, svg: imaging.NewSVGMinifier()}
}

// Optimize implements imaging.Optimizer.
func (o *Optimizer) Optimize(ctx context.Context, src []byte, f imaging.Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch f {
	case imaging.FormatSVG:
		return o.svg.Minify(src)
	case imaging.FormatJPEG, imaging.FormatPNG:
	default:
		return nil, fmt.Errorf("%w: optimize %s", imaging.ErrUnsupported, f)
	}

	img, resized, err := o.load(src)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	var buf []byte
	switch f {
	case imaging.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = o.opts.JPEGQuality
		params.StripMetadata = true
		params.OptimizeCoding = true
		params.Interlace = true
		buf, _, err = img.ExportJpeg(params)
	case imaging.FormatPNG:
		params := vips.NewPngExportParams()
		params.StripMetadata = true
		params.Compression = 9
		if o.opts.PNGQualityMax < 100 {
			// libimagequant palette reduction, the same engine pngquant uses.
			params.Palette = true
			params.Quality = o.opts.PNGQualityMax
		}
		buf, _, err = img.ExportPng(params)
	}
	if err != nil {
		return nil, fmt.Errorf("libvips: export %s: %w", f, err)
	}

	if resized {
		return buf, nil
	}
	return imaging.Smaller(src, buf), nil
}

// SupportsWebP implements imaging.WebPCapable.
func (o *Optimizer) SupportsWebP() bool { return true }

// WebP implements imaging.Optimizer.
func (o *Optimizer) WebP(ctx context.Context, src []byte, f imaging.Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !f.Raster() {
		return nil, fmt.Errorf("%w: webp from %s", imaging.ErrUnsupported, f)
	}

	img, _, err := o.load(src)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	params := vips.NewWebpExportParams()
	params.Quality = o.opts.WebPQuality
	params.Lossless = false
	params.StripMetadata = true

	buf, _, err := img.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("libvips: export webp: %w", err)
	}
	return buf, nil
}

// load decodes src, applies the EXIF orientation, and downscales to
// MaxWidth when configured. It reports whether the image was resized.
func (o *Optimizer) load(src []byte) (*vips.ImageRef, bool, error) {
	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, false, fmt.Errorf("libvips: decode: %w", err)
	}

	if err := img.AutoRotate(); err != nil {
		img.Close()
		return nil, false, fmt.Errorf("libvips: autorotate: %w", err)
	}

	if o.opts.MaxWidth <= 0 || img.Width() <= o.opts.MaxWidth {
		return img, false, nil
	}

	scale := float64(o.opts.MaxWidth) / float64(img.Width())
	if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
		img.Close()
		return nil, false, fmt.Errorf("libvips: resize to %dpx: %w", o.opts.MaxWidth, err)
	}
	return img, true, nil
}
