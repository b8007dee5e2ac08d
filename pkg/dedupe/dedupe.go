// Package dedupe finds files with identical content and removes the extra copies.
//
// Files are grouped by size first; only same-sized files are hashed. Large
// files get a partial hash of their first bytes so that most non-duplicates
// are rejected without reading them in full.
package dedupe

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/fylr/pkg/logging"
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/ratelimit"
	"github.com/sdejongh/fylr/pkg/storage"
)

const defaultCacheSize = 4096

// Group is a set of files with identical content
type Group struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
	// Files are relative slash paths in lexical order
	Files []string `json:"files"`
}

// Keep returns the file that survives removal
func (g Group) Keep() string {
	if len(g.Files) == 0 {
		return ""
	}
	return g.Files[0]
}

// Duplicates returns the files removal would delete
func (g Group) Duplicates() []string {
	if len(g.Files) < 2 {
		return nil
	}
	return g.Files[1:]
}

// Wasted returns the bytes taken by the duplicates
func (g Group) Wasted() int64 {
	return g.Size * int64(len(g.Duplicates()))
}

type cacheKey struct {
	path    string
	size    int64
	modTime int64
	partial bool
}

// Finder groups duplicate files
type Finder struct {
	workers     int
	partialHash bool
	hasher      *hasher
	cache       *lru.Cache[cacheKey, string]
	logger      logging.Logger
}

// Option configures a Finder
type Option func(*Finder)

// WithWorkers bounds the number of files hashed concurrently
func WithWorkers(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithPartialHash enables or disables the partial-hash prefilter
func WithPartialHash(enabled bool) Option {
	return func(f *Finder) {
		f.partialHash = enabled
	}
}

// WithReadLimit caps the combined read throughput of all workers
func WithReadLimit(limiter *ratelimit.Limiter) Option {
	return func(f *Finder) {
		f.hasher.limiter = limiter
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(f *Finder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFinder creates a finder. cacheSize bounds the digest cache; values <= 0 use a default.
func NewFinder(cacheSize int, opts ...Option) (*Finder, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[cacheKey, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create hash cache: %w", err)
	}

	f := &Finder{
		workers:     runtime.NumCPU(),
		partialHash: true,
		hasher:      newHasher(64 * 1024),
		cache:       cache,
		logger:      logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Find lists the backend and returns the duplicate groups, ordered by their first file.
// Empty files are never reported.
func (f *Finder) Find(ctx context.Context, backend storage.Backend, opts storage.ListOptions) ([]Group, error) {
	files, err := backend.List(ctx, "", opts)
	if err != nil {
		return nil, err
	}

	bySize := make(map[int64][]storage.FileInfo)
	for _, file := range files {
		if file.Size == 0 {
			continue
		}
		bySize[file.Size] = append(bySize[file.Size], file)
	}

	var groups []Group
	for size, candidates := range bySize {
		if len(candidates) < 2 {
			continue
		}

		if f.partialHash && size >= partialHashThreshold {
			partial, err := f.hashAll(ctx, backend, candidates, true)
			if err != nil {
				return nil, err
			}
			candidates = nil
			for _, set := range partial {
				if len(set) > 1 {
					candidates = append(candidates, set...)
				}
			}
			if len(candidates) < 2 {
				continue
			}
		}

		full, err := f.hashAll(ctx, backend, candidates, false)
		if err != nil {
			return nil, err
		}
		for digest, set := range full {
			if len(set) < 2 {
				continue
			}
			g := Group{Hash: digest, Size: size}
			for _, file := range set {
				g.Files = append(g.Files, file.RelativePath)
			}
			sort.Strings(g.Files)
			groups = append(groups, g)
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Files[0] < groups[j].Files[0]
	})

	f.logger.Info(ctx, "duplicate scan complete", logging.Fields{
		"root":   backend.Root(),
		"files":  len(files),
		"groups": len(groups),
	})
	return groups, nil
}

// hashAll hashes files in parallel and buckets them by digest
func (f *Finder) hashAll(ctx context.Context, backend storage.Backend, files []storage.FileInfo, partial bool) (map[string][]storage.FileInfo, error) {
	digests := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i := range files {
		g.Go(func() error {
			digest, err := f.digest(gctx, backend, files[i], partial)
			if err != nil {
				return fmt.Errorf("hash %s: %w", files[i].RelativePath, err)
			}
			digests[i] = digest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	buckets := make(map[string][]storage.FileInfo)
	for i, digest := range digests {
		buckets[digest] = append(buckets[digest], files[i])
	}
	return buckets, nil
}

func (f *Finder) digest(ctx context.Context, backend storage.Backend, file storage.FileInfo, partial bool) (string, error) {
	key := cacheKey{
		path:    file.Path,
		size:    file.Size,
		modTime: file.ModTime.UnixNano(),
		partial: partial,
	}
	if digest, ok := f.cache.Get(key); ok {
		return digest, nil
	}

	var limit int64
	if partial {
		limit = partialHashSize
	}
	digest, err := f.hasher.sum(ctx, backend, file.RelativePath, limit)
	if err != nil {
		return "", err
	}
	f.cache.Add(key, digest)
	return digest, nil
}

// Remove deletes every duplicate, keeping the first file of each group.
// Failures are recorded per file and do not stop the batch.
func Remove(ctx context.Context, backend storage.Backend, groups []Group, dryRun bool, logger logging.Logger) *models.RenameReport {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	report := &models.RenameReport{
		OperationID: uuid.New().String(),
		Root:        backend.Root(),
		DryRun:      dryRun,
		StartTime:   time.Now(),
	}

	for _, g := range groups {
		for _, path := range g.Duplicates() {
			if ctx.Err() != nil {
				report.Finish(true)
				return report
			}
			if !dryRun {
				if err := backend.Delete(ctx, path); err != nil {
					logger.Error(ctx, "failed to remove duplicate", err, logging.Fields{"path": path})
					report.AddFailure(path, err)
					continue
				}
			}
			logger.Debug(ctx, "removed duplicate", logging.Fields{"path": path, "kept": g.Keep()})
			report.AddSuccess(path, g.Keep(), models.ActionDelete, false)
		}
	}

	report.Finish(false)
	logger.Info(ctx, "duplicate removal finished", logging.Fields{
		"operation_id": report.OperationID,
		"removed":      len(report.Succeeded),
		"failed":       len(report.Failed),
		"dry_run":      dryRun,
	})
	return report
}
