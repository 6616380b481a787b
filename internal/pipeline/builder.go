// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package pipeline walks an asset tree and writes its optimized mirror.
// Every entry is dispatched on its extension: directories are recreated and
// descended into, SCSS is compiled and minified, CSS is minified, images are
// compressed (optionally with a WebP sibling), and everything else is copied
// byte for byte. A failure on one file is logged and recorded in the Report;
// the walk always continues with the next entry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"assetforge/internal/cache"
	"assetforge/internal/imaging"
	"assetforge/internal/metrics"
	"assetforge/internal/paths"
	"assetforge/internal/stylesheet"
)

// Minifier minifies CSS.
type Minifier interface {
	Minify(src []byte) ([]byte, error)
}

// Inliner fills fragment containers in HTML pages.
type Inliner interface {
	Inline(page []byte) ([]byte, int, error)
}

// Options control a build.
type Options struct {
	InputDir  string
	OutputDir string

	// Jobs bounds concurrent file processing. 1 processes entries strictly
	// in directory order.
	Jobs int

	// Strict makes Run return ErrFilesFailed when any file failed.
	Strict bool

	// EmitWebP writes a .webp sibling next to every JPEG and PNG.
	EmitWebP bool

	// Settings identifies the processing settings; it is folded into build
	// cache fingerprints so changed settings force a rebuild.
	Settings string
}

// Deps are the processors and services a Builder delegates to. Compiler,
// Minifier, and Images are required. A nil Inliner copies HTML verbatim,
// a nil Cache disables incremental builds, nil Metrics records nothing.
type Deps struct {
	Compiler stylesheet.Compiler
	Minifier Minifier
	Images   imaging.Optimizer
	Inliner  Inliner
	Cache    cache.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Builder runs builds. A Builder may be reused for successive runs but must
// not run two builds at once.
type Builder struct {
	opts Options
	deps Deps
}

// New creates a builder.
func New(opts Options, deps Deps) *Builder {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Builder{opts: opts, deps: deps}
}

// run carries the state of one build.
type run struct {
	*Builder
	ctx    context.Context
	report *Report
	logger *slog.Logger
	group  *errgroup.Group // nil when Jobs == 1

	// webp is cleared when the image backend turns out unable to encode
	// WebP, so later files neither try nor expect a sibling.
	webp     atomic.Bool
	webpOnce sync.Once
}

// Run performs one build. The returned error is non-nil only when the build
// could not start (missing input directory, unwritable output directory),
// when ctx is cancelled, or when Strict is set and a file failed. The report
// is returned in every case except a failed start.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	report := newReport(uuid.NewString())
	logger := b.deps.Logger.With("run_id", report.RunID)

	info, err := os.Stat(b.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: input %s: %w", b.opts.InputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pipeline: input %s is not a directory", b.opts.InputDir)
	}

	overlap, err := paths.Contains(b.opts.InputDir, b.opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if overlap {
		return nil, fmt.Errorf("pipeline: output %s must not be inside input %s", b.opts.OutputDir, b.opts.InputDir)
	}

	if err := os.MkdirAll(b.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: create output %s: %w", b.opts.OutputDir, err)
	}

	logger.Info("build started", "input", b.opts.InputDir, "output", b.opts.OutputDir, "jobs", b.opts.Jobs)

	r := &run{Builder: b, ctx: ctx, report: report, logger: logger}
	if b.opts.EmitWebP {
		if c, ok := b.deps.Images.(imaging.WebPCapable); ok && !c.SupportsWebP() {
			r.disableWebP(imaging.ErrUnsupported)
		} else {
			r.webp.Store(true)
		}
	}
	if b.opts.Jobs > 1 {
		r.group = &errgroup.Group{}
		r.group.SetLimit(b.opts.Jobs)
	}

	walkErr := r.walk(b.opts.InputDir, b.opts.OutputDir, "")
	if r.group != nil {
		r.group.Wait()
	}

	report.Duration = time.Since(report.Started)
	b.deps.Metrics.Build(report.Duration, len(report.Failures()))

	bytesIn, bytesOut := report.Bytes()
	logger.Info("build completed",
		"processed", report.Processed(),
		"skipped", report.Skipped(),
		"webp", report.WebP(),
		"failed", len(report.Failures()),
		"bytes_in", bytesIn,
		"bytes_out", bytesOut,
		"duration", report.Duration.String(),
	)

	if walkErr != nil {
		return report, walkErr
	}
	if b.opts.Strict {
		if err := report.Err(); err != nil {
			return report, fmt.Errorf("%w: %w", ErrFilesFailed, err)
		}
	}
	return report, nil
}

// walk processes the entries of src into dst. rel is src relative to the
// input root, slash-separated, used for cache keys and logs.
func (r *run) walk(src, dst, rel string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		r.logger.Error("failed to read directory", "src", src, "error", err)
		r.report.fail(src, KindDir, err)
		return nil
	}

	for _, entry := range entries {
		if err := r.ctx.Err(); err != nil {
			return fmt.Errorf("pipeline: build cancelled: %w", err)
		}

		name := entry.Name()
		srcPath := filepath.Join(src, name)
		entryRel := joinRel(rel, name)

		isDir, ok := r.resolveType(srcPath, entry)
		if !ok {
			continue
		}

		kind := Classify(name, isDir, r.deps.Inliner != nil)
		if kind == KindDir {
			dstPath := filepath.Join(dst, name)
			if err := os.MkdirAll(dstPath, 0o755); err != nil {
				r.logger.Error("failed to create directory", "src", srcPath, "dst", dstPath, "error", err)
				r.report.fail(srcPath, KindDir, err)
				continue
			}
			r.report.succeeded(KindDir, 0, 0)
			if err := r.walk(srcPath, dstPath, entryRel); err != nil {
				return err
			}
			continue
		}

		job := fileJob{src: srcPath, dst: OutputPath(dst, name, kind), rel: entryRel, kind: kind}
		if r.group == nil {
			r.process(job)
			continue
		}
		r.group.Go(func() error {
			r.process(job)
			return nil
		})
	}
	return nil
}

// resolveType reports whether an entry is a directory. Symlinks are
// followed for files; symlinked directories and irregular files (sockets,
// devices, pipes) are skipped with a warning.
func (r *run) resolveType(path string, entry fs.DirEntry) (isDir, ok bool) {
	mode := entry.Type()
	if mode.IsDir() {
		return true, true
	}
	if mode.IsRegular() {
		return false, true
	}
	if mode&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			r.logger.Error("broken symlink", "src", path, "error", err)
			r.report.fail(path, KindCopy, err)
			return false, false
		}
		if info.IsDir() {
			r.logger.Warn("skipping symlinked directory", "src", path)
			return false, false
		}
		return false, info.Mode().IsRegular()
	}
	r.logger.Warn("skipping irregular file", "src", path, "mode", mode.String())
	return false, false
}

type fileJob struct {
	src  string
	dst  string
	rel  string
	kind Kind
}

// process handles one file and records its outcome.
func (r *run) process(job fileJob) {
	logger := r.logger.With("src", job.src, "dst", job.dst)

	fingerprint, cached := r.cached(job)
	if cached {
		r.report.skip()
		r.deps.Metrics.File(job.kind.String(), metrics.ResultSkipped, 0, 0)
		logger.Debug("unchanged, skipped")
		return
	}

	in, out, err := r.dispatch(job, logger)
	if err != nil {
		logger.Error(failureMessage(job.kind), "error", err)
		r.report.fail(job.src, job.kind, err)
		r.deps.Metrics.File(job.kind.String(), metrics.ResultFailed, in, 0)
		return
	}

	r.report.succeeded(job.kind, in, out)
	r.deps.Metrics.File(job.kind.String(), metrics.ResultOK, in, out)
	if fingerprint != "" {
		r.deps.Cache.Set(r.ctx, job.rel, fingerprint)
	}
}

// dispatch runs the branch for job.kind and returns bytes read and written.
func (r *run) dispatch(job fileJob, logger *slog.Logger) (int64, int64, error) {
	switch job.kind {
	case KindSCSS:
		return r.compileSCSS(job, logger)
	case KindCSS:
		return r.minifyCSS(job, logger)
	case KindImage:
		return r.compressImage(job, logger)
	case KindHTML:
		return r.inlineHTML(job, logger)
	default:
		return r.copyFile(job, logger)
	}
}

func (r *run) compileSCSS(job fileJob, logger *slog.Logger) (int64, int64, error) {
	info, err := os.Stat(job.src)
	if err != nil {
		return 0, 0, err
	}
	css, err := r.deps.Compiler.Compile(r.ctx, job.src)
	if err != nil {
		return info.Size(), 0, err
	}
	minified, err := r.deps.Minifier.Minify(css)
	if err != nil {
		return info.Size(), 0, err
	}
	if err := writeFile(job.dst, minified, 0o644); err != nil {
		return info.Size(), 0, err
	}
	logger.Info("compiled scss")
	return info.Size(), int64(len(minified)), nil
}

func (r *run) minifyCSS(job fileJob, logger *slog.Logger) (int64, int64, error) {
	src, err := os.ReadFile(job.src)
	if err != nil {
		return 0, 0, err
	}
	minified, err := r.deps.Minifier.Minify(src)
	if err != nil {
		return int64(len(src)), 0, err
	}
	if err := writeFile(job.dst, minified, 0o644); err != nil {
		return int64(len(src)), 0, err
	}
	logger.Info("minified css")
	return int64(len(src)), int64(len(minified)), nil
}

func (r *run) compressImage(job fileJob, logger *slog.Logger) (int64, int64, error) {
	src, err := os.ReadFile(job.src)
	if err != nil {
		return 0, 0, err
	}
	in := int64(len(src))
	format := imaging.FormatFromPath(job.src)

	out, err := r.deps.Images.Optimize(r.ctx, src, format)
	if err != nil {
		return in, 0, err
	}
	if err := writeFile(job.dst, out, 0o644); err != nil {
		return in, 0, err
	}
	logger.Info("compressed image", "before", in, "after", len(out))

	if r.webp.Load() && format.Raster() && format != imaging.FormatWebP {
		r.writeWebP(job, src, format, logger)
	}
	return in, int64(len(out)), nil
}

// writeWebP converts src and writes the sibling. Its failure is recorded
// separately from the main image, which has already been written.
func (r *run) writeWebP(job fileJob, src []byte, format imaging.Format, logger *slog.Logger) {
	dst := imaging.WebPPath(job.dst)
	data, err := r.deps.Images.WebP(r.ctx, src, format)
	if errors.Is(err, imaging.ErrUnsupported) {
		r.disableWebP(err)
		return
	}
	if err == nil {
		err = writeFile(dst, data, 0o644)
	}
	if err != nil {
		logger.Error("failed to convert image to webp", "webp", dst, "error", err)
		r.report.fail(job.src, KindImage, fmt.Errorf("webp: %w", err))
		return
	}
	r.report.webpWritten(int64(len(data)))
	logger.Info("converted image to webp", "webp", dst, "size", len(data))
}

// disableWebP stops WebP output for the rest of this build and warns once.
func (r *run) disableWebP(err error) {
	r.webp.Store(false)
	r.webpOnce.Do(func() {
		r.logger.Warn("webp output requested but the image backend cannot encode webp", "error", err)
	})
}

func (r *run) inlineHTML(job fileJob, logger *slog.Logger) (int64, int64, error) {
	src, err := os.ReadFile(job.src)
	if err != nil {
		return 0, 0, err
	}
	page, filled, err := r.deps.Inliner.Inline(src)
	if err != nil {
		return int64(len(src)), 0, err
	}
	if err := writeFile(job.dst, page, 0o644); err != nil {
		return int64(len(src)), 0, err
	}
	if filled > 0 {
		logger.Info("inlined fragments", "containers", filled)
	} else {
		logger.Info("copied file")
	}
	return int64(len(src)), int64(len(page)), nil
}

// copyFile streams src to dst, keeping the source permission bits.
func (r *run) copyFile(job fileJob, logger *slog.Logger) (int64, int64, error) {
	in, err := os.Open(job.src)
	if err != nil {
		return 0, 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, 0, err
	}

	out, err := os.OpenFile(job.dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return info.Size(), 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return info.Size(), n, err
	}
	logger.Info("copied file")
	return info.Size(), n, nil
}

// cached computes the build fingerprint for job and reports whether the
// recorded one matches and every output still exists. Without a cache the
// fingerprint is empty. SCSS is never cached: its imports are not tracked.
func (r *run) cached(job fileJob) (string, bool) {
	if r.deps.Cache == nil || job.kind == KindSCSS {
		return "", false
	}

	var content []byte
	if job.kind == KindCopy {
		// Copies can be large; size and mtime stand in for the content.
		info, err := os.Stat(job.src)
		if err != nil {
			return "", false
		}
		content = []byte(strconv.FormatInt(info.Size(), 10) + ":" + strconv.FormatInt(info.ModTime().UnixNano(), 10))
	} else {
		data, err := os.ReadFile(job.src)
		if err != nil {
			return "", false
		}
		content = data
	}

	fp := cache.Fingerprint([]byte(job.kind.String()), []byte(r.opts.Settings), content)
	prev, ok := r.deps.Cache.Get(r.ctx, job.rel)
	if !ok || prev != fp {
		return fp, false
	}

	outputs := []string{job.dst}
	if job.kind == KindImage && r.webp.Load() && imaging.FormatFromPath(job.src).Raster() {
		outputs = append(outputs, imaging.WebPPath(job.dst))
	}
	for _, o := range outputs {
		if _, err := os.Stat(o); err != nil {
			return fp, false
		}
	}
	return fp, true
}

func failureMessage(k Kind) string {
	switch k {
	case KindSCSS:
		return "failed to process scss"
	case KindCSS:
		return "failed to minify css"
	case KindImage:
		return "failed to compress image"
	case KindHTML:
		return "failed to inline fragments"
	default:
		return "failed to copy file"
	}
}

// writeFile writes data through a temporary file in the same directory so a
// failed write never leaves a truncated asset behind.
func writeFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}
