// Package fragments splices shared HTML fragments (site header and footer)
// into pages at build time. Pages mark the insertion points with empty
// container elements; everything outside those containers is preserved
// byte for byte.
package fragments

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/net/html"
)

// Container element ids the site templates use.
const (
	HeaderContainer = "header-container"
	FooterContainer = "footer-container"
)

// Inliner replaces the inner HTML of known containers with fragment markup.
type Inliner struct {
	fragments map[string][]byte // container id -> markup
}

// New creates an inliner from container id to fragment markup.
func New(fragments map[string][]byte) *Inliner {
	return &Inliner{fragments: fragments}
}

// Load reads the header and footer fragments from root. Both files must
// exist.
func Load(root, header, footer string) (*Inliner, error) {
	frags := make(map[string][]byte, 2)
	for id, name := range map[string]string{HeaderContainer: header, FooterContainer: footer} {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("fragments: load %s: %w", name, err)
		}
		frags[id] = data
	}
	return New(frags), nil
}

// Inline returns page with every known container filled. It reports how
// many containers were filled; zero means the page is returned unchanged.
func (in *Inliner) Inline(page []byte) ([]byte, int, error) {
	z := html.NewTokenizer(bytes.NewReader(page))
	var out bytes.Buffer
	out.Grow(len(page))

	filled := 0
	var (
		skipping string // tag name of the container being filled
		depth    int
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("fragments: tokenize: %w", z.Err())
		}

		if skipping != "" {
			// Raw must be copied before TagName, which lower-cases in place.
			raw := append([]byte(nil), z.Raw()...)
			name, _ := z.TagName()
			switch {
			case tt == html.StartTagToken && string(name) == skipping:
				depth++
			case tt == html.EndTagToken && string(name) == skipping:
				depth--
				if depth == 0 {
					out.Write(raw)
					skipping = ""
				}
			}
			continue
		}

		out.Write(z.Raw())

		if tt != html.StartTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if !hasAttr {
			continue
		}
		tag := string(name)
		if frag, ok := in.fragments[containerID(z)]; ok {
			out.Write(frag)
			skipping = tag
			depth = 1
			filled++
		}
	}

	if skipping != "" {
		return nil, 0, fmt.Errorf("fragments: container <%s> is never closed", skipping)
	}
	if filled == 0 {
		return page, 0, nil
	}
	return out.Bytes(), filled, nil
}

// containerID returns the id attribute of the current start tag.
func containerID(z *html.Tokenizer) string {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "id" {
			return string(val)
		}
		if !more {
			return ""
		}
	}
}
