package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// CacheRevalidate is applied to HTML, and to everything when caching is
// disabled.
const CacheRevalidate = "no-cache"

// DefaultMaxAge is the cache lifetime of published non-HTML files. Keys
// mirror source names without a content hash, so it stays short.
const DefaultMaxAge = 5 * time.Minute

// Uploader is the part of Client the publisher needs.
type Uploader interface {
	Upload(ctx context.Context, obj Object) error
}

// PublishReport summarizes a publish run.
type PublishReport struct {
	Uploaded int
	Bytes    int64
	Failed   []string
}

// Publisher uploads an output tree under a key prefix.
type Publisher struct {
	up     Uploader
	prefix string
	maxAge time.Duration
	logger *slog.Logger
}

// NewPublisher creates a publisher. prefix may be empty. maxAge is the
// browser and CDN cache lifetime of non-HTML files; zero or less disables
// caching for them.
func NewPublisher(up Uploader, prefix string, maxAge time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{up: up, prefix: strings.Trim(prefix, "/"), maxAge: maxAge, logger: logger}
}

// Publish uploads every regular file under root. A failed upload or an
// unreadable subdirectory is logged and recorded; the rest of the tree is
// still uploaded. The returned error is reserved for an unreadable root and
// cancellation.
func (p *Publisher) Publish(ctx context.Context, root string) (*PublishReport, error) {
	report := &PublishReport{}

	err := filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			if file == root {
				return err
			}
			p.logger.Error("failed to read", "src", file, "error", err)
			report.Failed = append(report.Failed, p.key(root, file))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		key := p.key(root, file)

		size, err := p.uploadFile(ctx, file, key)
		if err != nil {
			p.logger.Error("failed to upload", "src", file, "key", key, "error", err)
			report.Failed = append(report.Failed, key)
			return nil
		}
		report.Uploaded++
		report.Bytes += size
		p.logger.Info("uploaded", "src", file, "key", key, "size", size)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("storage: publish %s: %w", root, err)
	}

	p.logger.Info("publish completed", "uploaded", report.Uploaded, "failed", len(report.Failed), "bytes", report.Bytes)
	return report, nil
}

func (p *Publisher) uploadFile(ctx context.Context, src, key string) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	err = p.up.Upload(ctx, Object{
		Key:          key,
		ContentType:  ContentType(key),
		CacheControl: p.CacheControl(key),
		Body:         f,
		Size:         info.Size(),
	})
	return info.Size(), err
}

// Key joins the prefix and a slash-separated relative path.
func (p *Publisher) Key(rel string) string {
	if p.prefix == "" {
		return rel
	}
	return path.Join(p.prefix, rel)
}

// key maps a file below root to its object key.
func (p *Publisher) key(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	return p.Key(filepath.ToSlash(rel))
}

// ContentType guesses the MIME type from the key extension.
func ContentType(key string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(key))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// CacheControl returns the caching policy for a key. HTML always
// revalidates; other files are cached for the publisher's max age and then
// revalidated.
func (p *Publisher) CacheControl(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".html", ".htm":
		return CacheRevalidate
	}
	if p.maxAge <= 0 {
		return CacheRevalidate
	}
	return fmt.Sprintf("public, max-age=%d, must-revalidate", int(p.maxAge/time.Second))
}
