// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging compresses raster and vector images for the web and
// converts raster images to WebP. Two backends implement Optimizer: Native
// (pure Go, always available) and libvips (faster, supports WebP output,
// requires the libvips shared library).
package imaging

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when a backend cannot perform an operation for
// the given format.
var ErrUnsupported = errors.New("imaging: unsupported operation")

// maxImagePixels caps decoded image size to guard against decompression bombs.
const maxImagePixels = 50_000_000

// Format identifies an image encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatSVG
	FormatWebP
)

// String returns the lowercase format name.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatSVG:
		return "svg"
	case FormatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// Raster reports whether the format is pixel-based.
func (f Format) Raster() bool {
	return f == FormatJPEG || f == FormatPNG || f == FormatWebP
}

// FormatFromPath detects the format from a file extension, case-insensitively.
func FormatFromPath(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".svg":
		return FormatSVG
	case ".webp":
		return FormatWebP
	default:
		return FormatUnknown
	}
}

// WebPPath returns the path of the WebP sibling for an image path:
// "img/hero.jpg" becomes "img/hero.webp".
func WebPPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".webp"
}

// Options are the encoder settings shared by all backends.
type Options struct {
	JPEGQuality   int // 1-100
	PNGQualityMin int // 1-100, lower bound of the palette quality range
	PNGQualityMax int // 1-100, 100 disables palette quantization
	WebPQuality   int // 1-100
	MaxWidth      int // downscale wider images; 0 disables
}

// DefaultOptions mirror the settings the site has always shipped with.
var DefaultOptions = Options{
	JPEGQuality:   60,
	PNGQualityMin: 55,
	PNGQualityMax: 70,
	WebPQuality:   80,
}

// Optimizer compresses images in place (same format) and converts them to
// WebP.
type Optimizer interface {
	// Optimize returns a compressed encoding of src in the same format.
	// Implementations return src unchanged when they cannot make it smaller.
	Optimize(ctx context.Context, src []byte, f Format) ([]byte, error)

	// WebP converts a raster image to WebP. It returns ErrUnsupported for
	// vector input or when the backend has no WebP encoder.
	WebP(ctx context.Context, src []byte, f Format) ([]byte, error)
}

// WebPCapable is implemented by optimizers that know ahead of any file
// whether they can encode WebP.
type WebPCapable interface {
	SupportsWebP() bool
}

// Smaller returns out unless it is empty or not smaller than src.
func Smaller(src, out []byte) []byte {
	if len(out) == 0 || len(out) >= len(src) {
		return src
	}
	return out
}
