package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

// gradient returns a w×h image with smoothly varying colours.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"hero.jpg", FormatJPEG},
		{"hero.JPEG", FormatJPEG},
		{"img/logo.png", FormatPNG},
		{"icons/menu.SVG", FormatSVG},
		{"photo.webp", FormatWebP},
		{"styles.css", FormatUnknown},
		{"noext", FormatUnknown},
		{"archive.jpg.zip", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FormatFromPath(tt.path); got != tt.want {
				t.Errorf("FormatFromPath(%q) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestWebPPath(t *testing.T) {
	tests := map[string]string{
		"img/hero.jpg":   "img/hero.webp",
		"logo.PNG":       "logo.webp",
		"a.b/photo.jpeg": "a.b/photo.webp",
	}
	for in, want := range tests {
		if got := WebPPath(in); got != want {
			t.Errorf("WebPPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSmaller(t *testing.T) {
	src := []byte("0123456789")
	if got := Smaller(src, []byte("0123")); string(got) != "0123" {
		t.Errorf("smaller output should win, got %q", got)
	}
	if got := Smaller(src, []byte("0123456789abc")); string(got) != string(src) {
		t.Errorf("larger output should fall back to source, got %q", got)
	}
	if got := Smaller(src, nil); string(got) != string(src) {
		t.Errorf("empty output should fall back to source, got %q", got)
	}
}

func TestNative_JPEG(t *testing.T) {
	src := encodeJPEG(t, gradient(256, 128), 100)

	n := NewNative(DefaultOptions)
	out, err := n.Optimize(context.Background(), src, FormatJPEG)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	if len(out) >= len(src) {
		t.Errorf("output %d bytes, want fewer than source %d", len(out), len(src))
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 128 {
		t.Errorf("dimensions changed: %v", img.Bounds())
	}
}

func TestNative_PNGQuantized(t *testing.T) {
	src := encodePNG(t, gradient(200, 200))

	n := NewNative(DefaultOptions)
	out, err := n.Optimize(context.Background(), src, FormatPNG)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	if len(out) >= len(src) {
		t.Errorf("output %d bytes, want fewer than source %d", len(out), len(src))
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	p, ok := img.(*image.Paletted)
	if !ok {
		t.Fatalf("expected paletted output, got %T", img)
	}
	if len(p.Palette) > paletteSize(DefaultOptions.PNGQualityMax) {
		t.Errorf("palette has %d colours, want at most %d", len(p.Palette), paletteSize(DefaultOptions.PNGQualityMax))
	}
}

func TestNative_PNGFullQualityKeepsColour(t *testing.T) {
	opts := DefaultOptions
	opts.PNGQualityMax = 100
	src := encodePNG(t, gradient(64, 64))

	out, err := NewNative(opts).Optimize(context.Background(), src, FormatPNG)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if _, ok := img.(*image.Paletted); ok {
		t.Error("quality 100 should not quantize")
	}
}

func TestNative_KeepsSourceWhenNotSmaller(t *testing.T) {
	// A tiny, already-compressed JPEG re-encoded at the same quality does not
	// shrink; the source bytes must come back untouched.
	src := encodeJPEG(t, image.NewGray(image.Rect(0, 0, 8, 8)), 10)

	opts := DefaultOptions
	opts.JPEGQuality = 100
	out, err := NewNative(opts).Optimize(context.Background(), src, FormatJPEG)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Error("expected the original bytes when re-encoding does not help")
	}
}

func TestNative_Downscale(t *testing.T) {
	opts := DefaultOptions
	opts.MaxWidth = 50
	src := encodePNG(t, gradient(200, 100))

	out, err := NewNative(opts).Optimize(context.Background(), src, FormatPNG)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 50 || cfg.Height != 25 {
		t.Errorf("got %dx%d, want 50x25", cfg.Width, cfg.Height)
	}
}

func TestNative_Errors(t *testing.T) {
	n := NewNative(DefaultOptions)

	t.Run("corrupt image", func(t *testing.T) {
		_, err := n.Optimize(context.Background(), []byte("not an image"), FormatPNG)
		if err == nil {
			t.Fatal("expected decode error")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := n.Optimize(context.Background(), []byte("x"), FormatUnknown)
		if !errors.Is(err, ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("webp", func(t *testing.T) {
		_, err := n.WebP(context.Background(), encodePNG(t, gradient(4, 4)), FormatPNG)
		if !errors.Is(err, ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := n.Optimize(ctx, nil, FormatPNG); err == nil {
			t.Fatal("expected context error")
		}
	})
}

func TestSVGMinifier(t *testing.T) {
	src := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!-- Generator: Sketch -->
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" width="24" height="24">
    <g>
        <path d="M 2.000 2.000 L 22.000 22.000" stroke="#000000" />
    </g>
</svg>
`)

	out, err := NewSVGMinifier().Minify(src)
	if err != nil {
		t.Fatalf("Minify() error: %v", err)
	}
	got := string(out)
	if len(out) >= len(src) {
		t.Errorf("output should be smaller: %d >= %d", len(out), len(src))
	}
	if strings.Contains(got, "Generator") {
		t.Errorf("comment should be stripped: %q", got)
	}
	if !strings.Contains(got, "viewBox") {
		t.Errorf("viewBox must be preserved: %q", got)
	}
}

func TestNative_SVG(t *testing.T) {
	src := []byte("<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 10 10\">\n  <rect width=\"10\" height=\"10\"/>\n</svg>\n")
	out, err := NewNative(DefaultOptions).Optimize(context.Background(), src, FormatSVG)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	if len(out) > len(src) {
		t.Errorf("svg grew: %d > %d", len(out), len(src))
	}
}

// withOrientation splices an APP1 Exif segment carrying only an Orientation
// tag in right after the JPEG SOI marker.
func withOrientation(t *testing.T, jpg []byte, o uint16) []byte {
	t.Helper()
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		t.Fatal("not a JPEG")
	}
	tiffData := []byte{
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08, // big-endian header, IFD0 at 8
		0x00, 0x01, // one entry
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, // Orientation, SHORT, count 1
		byte(o >> 8), byte(o), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, // no next IFD
	}
	payload := append([]byte("Exif\x00\x00"), tiffData...)
	size := len(payload) + 2

	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xFF, 0xE1, byte(size >> 8), byte(size)})
	out.Write(payload)
	out.Write(jpg[2:])
	return out.Bytes()
}

// halves returns a w×h image, red on the left half and blue on the right.
func halves(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= w/2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func reddish(c color.Color) bool {
	r, _, b, _ := c.RGBA()
	return r > 0xA000 && b < 0x6000
}

func bluish(c color.Color) bool {
	r, _, b, _ := c.RGBA()
	return b > 0xA000 && r < 0x6000
}

func TestOrientation(t *testing.T) {
	src := encodeJPEG(t, halves(8, 4), 90)
	if got := orientation(src); got != 1 {
		t.Errorf("no metadata: orientation = %d, want 1", got)
	}
	for _, o := range []uint16{1, 3, 6, 8} {
		if got := orientation(withOrientation(t, src, o)); got != int(o) {
			t.Errorf("orientation = %d, want %d", got, o)
		}
	}
	if got := orientation(withOrientation(t, src, 42)); got != 1 {
		t.Errorf("out of range value: orientation = %d, want 1", got)
	}
}

func TestOrient(t *testing.T) {
	// A 3x2 image with distinct corner pixels.
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	tl := color.RGBA{R: 255, A: 255}
	tr := color.RGBA{G: 255, A: 255}
	bl := color.RGBA{B: 255, A: 255}
	br := color.RGBA{R: 255, G: 255, A: 255}
	src.Set(0, 0, tl)
	src.Set(2, 0, tr)
	src.Set(0, 1, bl)
	src.Set(2, 1, br)

	tests := []struct {
		o          int
		w, h       int
		topLeft    color.RGBA
		bottomLeft color.RGBA
	}{
		{1, 3, 2, tl, bl},
		{2, 3, 2, tr, br},
		{3, 3, 2, br, tr},
		{4, 3, 2, bl, tl},
		{5, 2, 3, tl, tr},
		{6, 2, 3, bl, br},
		{7, 2, 3, br, bl},
		{8, 2, 3, tr, tl},
	}
	for _, tt := range tests {
		got := orient(src, tt.o)
		b := got.Bounds()
		if b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("orientation %d: got %dx%d, want %dx%d", tt.o, b.Dx(), b.Dy(), tt.w, tt.h)
			continue
		}
		if c := color.RGBAModel.Convert(got.At(b.Min.X, b.Min.Y)); c != tt.topLeft {
			t.Errorf("orientation %d: top-left = %v, want %v", tt.o, c, tt.topLeft)
		}
		if c := color.RGBAModel.Convert(got.At(b.Min.X, b.Max.Y-1)); c != tt.bottomLeft {
			t.Errorf("orientation %d: bottom-left = %v, want %v", tt.o, c, tt.bottomLeft)
		}
	}
}

func TestOrient_OffsetBounds(t *testing.T) {
	full := halves(8, 4)
	sub := full.SubImage(image.Rect(2, 1, 6, 3))

	got := orient(sub, 6)
	if b := got.Bounds(); b.Dx() != 2 || b.Dy() != 4 {
		t.Fatalf("got %v, want 2x4", b)
	}
	if !reddish(got.At(0, 0)) || !bluish(got.At(0, 3)) {
		t.Errorf("rotated sub-image lost its halves: top %v, bottom %v", got.At(0, 0), got.At(0, 3))
	}
}

func TestNative_JPEGAppliesOrientation(t *testing.T) {
	// Orientation 6 means the camera was turned clockwise: the stored
	// landscape pixels display as portrait with the left edge on top.
	src := withOrientation(t, encodeJPEG(t, halves(40, 20), 100), 6)

	out, err := NewNative(DefaultOptions).Optimize(context.Background(), src, FormatJPEG)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 20 || b.Dy() != 40 {
		t.Fatalf("got %dx%d, want 20x40", b.Dx(), b.Dy())
	}
	if c := img.At(10, 5); !reddish(c) {
		t.Errorf("top should be red, got %v", c)
	}
	if c := img.At(10, 34); !bluish(c) {
		t.Errorf("bottom should be blue, got %v", c)
	}
	if orientation(out) != 1 {
		t.Error("output should carry no rotation metadata")
	}
}

func TestNative_PNGIgnoresOrientation(t *testing.T) {
	src := encodePNG(t, halves(8, 4))
	out, err := NewNative(DefaultOptions).Optimize(context.Background(), src, FormatPNG)
	if err != nil {
		t.Fatalf("Optimize() error: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 8 || cfg.Height != 4 {
		t.Errorf("got %dx%d, want 8x4", cfg.Width, cfg.Height)
	}
}
