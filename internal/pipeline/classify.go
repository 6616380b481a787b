package pipeline

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Kind is the processing branch chosen for a directory entry.
type Kind int

const (
	KindCopy Kind = iota
	KindDir
	KindSCSS
	KindCSS
	KindImage
	KindHTML
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindSCSS:
		return "scss"
	case KindCSS:
		return "css"
	case KindImage:
		return "image"
	case KindHTML:
		return "html"
	default:
		return "copy"
	}
}

var imagePattern = regexp.MustCompile(`(?i)\.(jpe?g|png|svg)$`)

// Classify picks the branch for an entry name. Stylesheet suffixes are
// matched case-sensitively, image extensions are not. HTML is only a
// distinct kind when fragment inlining is enabled; otherwise it is copied.
func Classify(name string, isDir, inlineHTML bool) Kind {
	switch {
	case isDir:
		return KindDir
	case strings.HasSuffix(name, ".scss"):
		return KindSCSS
	case strings.HasSuffix(name, ".css"):
		return KindCSS
	case imagePattern.MatchString(name):
		return KindImage
	case inlineHTML && strings.HasSuffix(strings.ToLower(name), ".html"):
		return KindHTML
	default:
		return KindCopy
	}
}

// OutputPath returns where an entry named name inside dstDir is written.
// Only the trailing .scss extension is renamed, so "a.scss.bak" or
// "x.scss/y.scss" keep their other occurrences.
func OutputPath(dstDir, name string, k Kind) string {
	if k == KindSCSS {
		name = strings.TrimSuffix(name, ".scss") + ".css"
	}
	return filepath.Join(dstDir, name)
}
