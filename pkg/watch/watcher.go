// Package watch collects files newly created in a set of directories and hands
// them over in per-directory batches.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sdejongh/fylr/internal/platform"
	"github.com/sdejongh/fylr/pkg/logging"
	"github.com/sdejongh/fylr/pkg/storage"
)

// DefaultInterval is how often pending files are flushed
const DefaultInterval = 30 * time.Second

// Batch is the set of new files found in one watched directory
type Batch struct {
	Dir string
	// Files are absolute paths in lexical order
	Files []string
}

// Handler processes a batch. An error is logged and the batch is dropped.
type Handler func(ctx context.Context, b Batch) error

// Watcher batches file creations in its directories
type Watcher struct {
	dirs     []string
	handler  Handler
	interval time.Duration
	minFiles int
	exclude  []string
	logger   logging.Logger

	mu      sync.Mutex
	pending map[string]map[string]bool
}

// Option configures a Watcher
type Option func(*Watcher)

// WithInterval sets the flush interval
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithMinFiles holds a directory's batch until it has at least n files
func WithMinFiles(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.minFiles = n
		}
	}
}

// WithExclude ignores files matching the glob patterns
func WithExclude(patterns []string) Option {
	return func(w *Watcher) {
		w.exclude = patterns
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher over dirs. Every directory must exist.
func New(dirs []string, handler Handler, opts ...Option) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, errors.New("no directories to watch")
	}
	if handler == nil {
		return nil, errors.New("no batch handler")
	}

	w := &Watcher{
		handler:  handler,
		interval: DefaultInterval,
		minFiles: 1,
		logger:   logging.NewNopLogger(),
		pending:  make(map[string]map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	seen := make(map[string]bool)
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", dir, err)
		}
		abs = platform.NormalizePath(abs)
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("watch %s: not a directory", dir)
		}
		if !seen[abs] {
			seen[abs] = true
			w.dirs = append(w.dirs, abs)
		}
	}
	return w, nil
}

// Dirs returns the watched directories
func (w *Watcher) Dirs() []string {
	return append([]string(nil), w.dirs...)
}

// Run watches until ctx is cancelled. Batches are handed to the handler from
// this goroutine, one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Info(ctx, "watching directory", logging.Fields{"dir": dir})
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watch error", logging.Fields{"error": err.Error()})

		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		w.add(ctx, ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.forget(ev.Name)
	}
}

// add records path if it is a new regular file in a watched directory
func (w *Watcher) add(ctx context.Context, path string) bool {
	path = platform.NormalizePath(path)
	dir := filepath.Dir(path)
	if !w.watched(dir) {
		return false
	}

	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || storage.ShouldExclude(name, w.exclude) {
		return false
	}
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[dir] == nil {
		w.pending[dir] = make(map[string]bool)
	}
	w.pending[dir][path] = true
	w.logger.Debug(ctx, "new file", logging.Fields{"path": path})
	return true
}

func (w *Watcher) forget(path string) {
	path = platform.NormalizePath(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if set := w.pending[filepath.Dir(path)]; set != nil {
		delete(set, path)
	}
}

func (w *Watcher) watched(dir string) bool {
	for _, d := range w.dirs {
		if d == dir {
			return true
		}
	}
	return false
}

// Pending returns the number of files waiting in dir
func (w *Watcher) Pending(dir string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending[platform.NormalizePath(dir)])
}

// Flush hands every directory with enough pending files to the handler.
// Files removed since they were recorded are left out.
func (w *Watcher) Flush(ctx context.Context) int {
	var batches []Batch

	w.mu.Lock()
	for _, dir := range w.dirs {
		set := w.pending[dir]
		var files []string
		for path := range set {
			if _, err := os.Lstat(path); err == nil {
				files = append(files, path)
			}
		}
		if len(files) == 0 {
			delete(w.pending, dir)
			continue
		}
		if len(files) < w.minFiles {
			continue
		}
		sort.Strings(files)
		batches = append(batches, Batch{Dir: dir, Files: files})
		delete(w.pending, dir)
	}
	w.mu.Unlock()

	for _, b := range batches {
		if ctx.Err() != nil {
			break
		}
		w.logger.Info(ctx, "processing new files", logging.Fields{"dir": b.Dir, "files": len(b.Files)})
		if err := w.handler(ctx, b); err != nil {
			w.logger.Error(ctx, "batch failed", err, logging.Fields{"dir": b.Dir})
		}
	}
	return len(batches)
}
