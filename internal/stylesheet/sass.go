// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package stylesheet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
)

// Compiler turns a stylesheet source file into plain CSS.
type Compiler interface {
	Compile(ctx context.Context, path string) ([]byte, error)
}

// SassCompiler compiles SCSS through a long-running Dart Sass process.
// The process is started on first use and shared by every file of a build;
// the transpiler multiplexes concurrent requests.
type SassCompiler struct {
	binary       string
	includePaths []string
	logger       *slog.Logger

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

// NewSassCompiler creates a compiler. binary is the path to the Dart Sass
// executable; empty means "sass" from PATH. includePaths are extra import
// roots searched after the directory of the file being compiled.
func NewSassCompiler(binary string, includePaths []string, logger *slog.Logger) *SassCompiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SassCompiler{
		binary:       binary,
		includePaths: includePaths,
		logger:       logger,
	}
}

// start lazily launches the Dart Sass process.
func (c *SassCompiler) start() (*godartsass.Transpiler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transpiler != nil {
		return c.transpiler, nil
	}

	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: c.binary,
		LogEventHandler: func(e godartsass.LogEvent) {
			c.logger.Warn("sass", "message", e.Message)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stylesheet: start dart sass: %w", err)
	}
	c.transpiler = t
	return t, nil
}

// Compile reads the SCSS file at path and returns the compiled CSS.
// The result is not minified; see Minifier.
func (c *SassCompiler) Compile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stylesheet: read %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("stylesheet: resolve %s: %w", path, err)
	}

	t, err := c.start()
	if err != nil {
		return nil, err
	}

	includes := append([]string{filepath.Dir(abs)}, c.includePaths...)
	res, err := t.Execute(godartsass.Args{
		Source:       string(src),
		URL:          "file://" + filepath.ToSlash(abs),
		IncludePaths: includes,
		OutputStyle:  godartsass.OutputStyleExpanded,
		SourceSyntax: godartsass.SourceSyntaxSCSS,
	})
	if err != nil {
		return nil, fmt.Errorf("stylesheet: compile %s: %w", path, err)
	}
	return []byte(res.CSS), nil
}

// Close stops the Dart Sass process if it was started.
func (c *SassCompiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transpiler == nil {
		return nil
	}
	err := c.transpiler.Close()
	c.transpiler = nil
	return err
}
