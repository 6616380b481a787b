package imaging

import (
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

const mediaTypeSVG = "image/svg+xml"

// SVGMinifier strips comments, metadata, and redundant markup from SVG
// documents. The viewBox attribute is always preserved.
type SVGMinifier struct {
	m *minify.M
}

// NewSVGMinifier returns an SVG minifier.
func NewSVGMinifier() *SVGMinifier {
	m := minify.New()
	m.Add(mediaTypeSVG, &svg.Minifier{})
	return &SVGMinifier{m: m}
}

// Minify returns the minified document.
func (s *SVGMinifier) Minify(src []byte) ([]byte, error) {
	out, err := s.m.Bytes(mediaTypeSVG, src)
	if err != nil {
		return nil, fmt.Errorf("imaging: minify svg: %w", err)
	}
	return Smaller(src, out), nil
}
