// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package imaging

import (
	"bytes"
	"image"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// orientation reads the EXIF Orientation tag from a JPEG. Missing or
// malformed metadata reads as 1 (upright).
func orientation(src []byte) int {
	x, err := exif.Decode(bytes.NewReader(src))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// orient applies the rotation or mirroring an EXIF orientation asks for so
// the pixels display upright once the metadata is gone.
func orient(img image.Image, o int) image.Image {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	// Rows map source (x, y) to destination (x, y): [a b c; d e f].
	var m f64.Aff3
	size := image.Rect(0, 0, b.Dx(), b.Dy())
	switch o {
	case 2: // mirror horizontal
		m = f64.Aff3{-1, 0, w, 0, 1, 0}
	case 3: // rotate 180
		m = f64.Aff3{-1, 0, w, 0, -1, h}
	case 4: // mirror vertical
		m = f64.Aff3{1, 0, 0, 0, -1, h}
	case 5: // transpose
		m = f64.Aff3{0, 1, 0, 1, 0, 0}
	case 6: // rotate 90 clockwise
		m = f64.Aff3{0, -1, h, 1, 0, 0}
	case 7: // transverse
		m = f64.Aff3{0, -1, h, -1, 0, w}
	case 8: // rotate 90 counter-clockwise
		m = f64.Aff3{0, 1, 0, -1, 0, w}
	default:
		return img
	}
	if o >= 5 {
		size = image.Rect(0, 0, b.Dy(), b.Dx())
	}

	// Shift so the source rectangle starts at the origin.
	mx, my := float64(b.Min.X), float64(b.Min.Y)
	m[2] -= m[0]*mx + m[1]*my
	m[5] -= m[3]*mx + m[4]*my

	dst := image.NewRGBA(size)
	draw.NearestNeighbor.Transform(dst, m, img, b, draw.Src, nil)
	return dst
}
