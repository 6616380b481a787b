package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrFilesFailed is returned by strict builds when at least one file failed.
var ErrFilesFailed = errors.New("pipeline: one or more files failed")

// FileError records a failure for one source path.
type FileError struct {
	Path string
	Kind Kind
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Report summarizes one build run. It is safe for concurrent updates.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration

	mu       sync.Mutex
	counts   map[Kind]int
	skipped  int
	webp     int
	bytesIn  int64
	bytesOut int64
	failures []FileError
}

func newReport(runID string) *Report {
	return &Report{
		RunID:   runID,
		Started: time.Now(),
		counts:  make(map[Kind]int),
	}
}

func (r *Report) succeeded(k Kind, in, out int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[k]++
	r.bytesIn += in
	r.bytesOut += out
}

func (r *Report) skip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

func (r *Report) webpWritten(out int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webp++
	r.bytesOut += out
}

func (r *Report) fail(path string, k Kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, FileError{Path: path, Kind: k, Err: err})
}

// Count returns the number of successfully processed entries of kind k.
func (r *Report) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[k]
}

// Processed returns the number of successfully processed files
// (directories excluded).
func (r *Report) Processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, c := range r.counts {
		if k != KindDir {
			n += c
		}
	}
	return n
}

// Skipped returns the number of files left untouched by the build cache.
func (r *Report) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

// WebP returns the number of WebP siblings written.
func (r *Report) WebP() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.webp
}

// Bytes returns the bytes read and written.
func (r *Report) Bytes() (in, out int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytesIn, r.bytesOut
}

// Failures returns a copy of the recorded failures.
func (r *Report) Failures() []FileError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FileError(nil), r.failures...)
}

// Err joins every failure, or returns nil when all files succeeded.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.failures))
	for i, f := range r.failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
