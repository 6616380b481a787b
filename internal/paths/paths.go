// Package paths compares directory locations after resolving them to their
// canonical absolute form, so that "assets", "./assets/" and "/srv/site/assets"
// (or a symlink to it) are recognised as the same place.
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolve returns the absolute, symlink-free form of p. p need not exist:
// the longest existing ancestor is resolved and the missing tail appended.
func Resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("paths: resolve %s: %w", p, err)
	}

	existing, tail := abs, ""
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(resolved, tail), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("paths: resolve %s: %w", p, err)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		tail = filepath.Join(filepath.Base(existing), tail)
		existing = parent
	}
}

// Contains reports whether child is parent itself or lies below it.
func Contains(parent, child string) (bool, error) {
	p, err := Resolve(parent)
	if err != nil {
		return false, err
	}
	c, err := Resolve(child)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(p, c)
	if err != nil {
		// Different volumes.
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))), nil
}
