// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package stylesheet compiles SCSS sources and minifies CSS. Both steps are
// delegated to libraries: Dart Sass (through its embedded protocol) for
// compilation and tdewolff/minify for minification.
package stylesheet

import (
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

const mediaTypeCSS = "text/css"

// Minifier strips comments, whitespace, and redundant syntax from CSS.
// It is safe for concurrent use.
type Minifier struct {
	m *minify.M
}

// NewMinifier returns a CSS minifier.
func NewMinifier() *Minifier {
	m := minify.New()
	m.Add(mediaTypeCSS, &css.Minifier{})
	return &Minifier{m: m}
}

// Minify returns the minified form of src.
func (mn *Minifier) Minify(src []byte) ([]byte, error) {
	out, err := mn.m.Bytes(mediaTypeCSS, src)
	if err != nil {
		return nil, fmt.Errorf("stylesheet: minify: %w", err)
	}
	return out, nil
}
