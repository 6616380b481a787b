// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/draw"
)

// Native is a pure-Go Optimizer. JPEGs are turned upright per their EXIF
// orientation and re-encoded at the configured quality, PNGs are quantized to a palette and recompressed, SVGs are
// minified. It cannot encode WebP.
type Native struct {
	opts Options
	svg  *SVGMinifier
}

// NewNative creates a pure-Go optimizer. Zero option values fall back to
// DefaultOptions.
func NewNative(opts Options) *Native {
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = DefaultOptions.JPEGQuality
	}
	if opts.PNGQualityMin == 0 {
		opts.PNGQualityMin = DefaultOptions.PNGQualityMin
	}
	if opts.PNGQualityMax == 0 {
		opts.PNGQualityMax = DefaultOptions.PNGQualityMax
	}
	if opts.WebPQuality == 0 {
		opts.WebPQuality = DefaultOptions.WebPQuality
	}
	return &Native{opts: opts, svg: NewSVGMinifier()}
}

// Optimize implements Optimizer.
func (n *Native) Optimize(ctx context.Context, src []byte, f Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch f {
	case FormatSVG:
		return n.svg.Minify(src)
	case FormatJPEG, FormatPNG:
	default:
		return nil, fmt.Errorf("%w: optimize %s", ErrUnsupported, f)
	}

	img, err := decode(src)
	if err != nil {
		return nil, err
	}
	oriented := false
	if f == FormatJPEG {
		if o := orientation(src); o != 1 {
			img, oriented = orient(img, o), true
		}
	}
	img, resized := n.downscale(img)

	var buf bytes.Buffer
	switch f {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.opts.JPEGQuality})
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, n.quantize(img))
	}
	if err != nil {
		return nil, fmt.Errorf("imaging: encode %s: %w", f, err)
	}

	// A rotated or downscaled image is always kept, even if the encoder made
	// it larger.
	if resized || oriented {
		return buf.Bytes(), nil
	}
	return Smaller(src, buf.Bytes()), nil
}

// WebP implements Optimizer. The standard library and x/image only decode
// WebP, so the native backend cannot produce it.
func (n *Native) WebP(ctx context.Context, src []byte, f Format) ([]byte, error) {
	return nil, fmt.Errorf("%w: native backend has no webp encoder", ErrUnsupported)
}

// SupportsWebP implements WebPCapable.
func (n *Native) SupportsWebP() bool { return false }

// decode checks dimensions before fully decoding src.
func decode(src []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode config: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("imaging: image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxImagePixels)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	return img, nil
}

// downscale shrinks img to MaxWidth preserving the aspect ratio.
func (n *Native) downscale(img image.Image) (image.Image, bool) {
	bounds := img.Bounds()
	if n.opts.MaxWidth <= 0 || bounds.Dx() <= n.opts.MaxWidth {
		return img, false
	}

	ratio := float64(n.opts.MaxWidth) / float64(bounds.Dx())
	newHeight := max(1, int(float64(bounds.Dy())*ratio))

	dst := image.NewRGBA(image.Rect(0, 0, n.opts.MaxWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst, true
}

// quantize reduces img to a palette whose size follows PNGQualityMax:
// 100 keeps full colour, lower values trade colours for size.
func (n *Native) quantize(img image.Image) image.Image {
	if n.opts.PNGQualityMax >= 100 {
		return img
	}
	if _, ok := img.(*image.Paletted); ok {
		return img
	}

	colors := paletteSize(n.opts.PNGQualityMax)
	q := quantize.MedianCutQuantizer{AddTransparent: hasAlpha(img)}
	pal := q.Quantize(make(color.Palette, 0, colors), img)

	bounds := img.Bounds()
	dst := image.NewPaletted(bounds, pal)
	// Low quality floors get dithering to hide banding.
	if n.opts.PNGQualityMin < 60 {
		draw.FloydSteinberg.Draw(dst, bounds, img, bounds.Min)
	} else {
		draw.Draw(dst, bounds, img, bounds.Min, draw.Src)
	}
	return dst
}

// paletteSize maps a 1-100 quality to a palette of 16..256 colours.
func paletteSize(quality int) int {
	return min(256, max(16, 256*quality/100))
}

// hasAlpha reports whether any pixel is not fully opaque.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}
