// Package web provides embedded static assets served by the preview server.
// The fragment loader script lives here so a single binary can serve it
// without the input tree being present.
package web

import "embed"

// StaticFS embeds the web/static/ directory tree.
//
//go:embed all:static
var StaticFS embed.FS
