// Package rename performs renames and plan moves with deterministic
// collision handling. Items are processed sequentially, in input order.
package rename

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdejongh/fylr/pkg/logging"
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/storage"
)

// ErrSourceMissing is recorded when an item's source no longer exists
var ErrSourceMissing = errors.New("source file no longer exists")

// ProgressFunc is called after each item is processed
type ProgressFunc func(done, total int, path string)

// Renamer applies rename and move batches on a storage backend
type Renamer struct {
	backend  storage.Backend
	logger   logging.Logger
	dryRun   bool
	progress ProgressFunc
}

// Option configures a Renamer
type Option func(*Renamer)

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(r *Renamer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDryRun computes the report without touching the filesystem
func WithDryRun(dryRun bool) Option {
	return func(r *Renamer) {
		r.dryRun = dryRun
	}
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(r *Renamer) {
		r.progress = fn
	}
}

// New creates a renamer over backend
func New(backend storage.Backend, opts ...Option) *Renamer {
	r := &Renamer{
		backend: backend,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// batch carries per-run state
type batch struct {
	report *models.RenameReport
	// dry runs track what earlier items would have claimed or vacated
	claimed map[string]bool
	vacated map[string]bool
}

func (r *Renamer) newBatch() *batch {
	b := &batch{
		report: &models.RenameReport{
			OperationID: uuid.New().String(),
			Root:        r.backend.Root(),
			DryRun:      r.dryRun,
			StartTime:   time.Now(),
		},
	}
	if r.dryRun {
		b.claimed = make(map[string]bool)
		b.vacated = make(map[string]bool)
	}
	return b
}

// Apply renames each request's file within its own directory.
// A failing item is recorded and the batch continues; nothing is rolled back.
func (r *Renamer) Apply(ctx context.Context, reqs []models.RenameRequest) *models.RenameReport {
	b := r.newBatch()

	for i, req := range reqs {
		if ctx.Err() != nil {
			b.report.Finish(true)
			return b.report
		}
		r.applyRename(ctx, b, req)
		if r.progress != nil {
			r.progress(i+1, len(reqs), req.OldPath)
		}
	}

	b.report.Finish(false)
	r.logger.Info(ctx, "rename batch finished", r.summary(b))
	return b.report
}

func (r *Renamer) summary(b *batch) logging.Fields {
	return logging.Fields{
		"operation_id": b.report.OperationID,
		"succeeded":    len(b.report.Succeeded),
		"skipped":      len(b.report.Skipped),
		"failed":       len(b.report.Failed),
		"dry_run":      r.dryRun,
	}
}

func (r *Renamer) applyRename(ctx context.Context, b *batch, req models.RenameRequest) {
	oldName := filepath.Base(req.OldPath)
	if strings.TrimSpace(req.NewName) == "" {
		b.report.Skipped = append(b.report.Skipped, req.OldPath)
		return
	}

	newName, err := SanitizeName(req.NewName)
	if err != nil {
		r.fail(ctx, b, req.OldPath, err)
		return
	}
	if newName == oldName {
		b.report.Skipped = append(b.report.Skipped, req.OldPath)
		return
	}

	r.move(ctx, b, req.OldPath, filepath.Dir(req.OldPath), newName, models.ActionRename)
}

// move relocates src to dir/name, resolving collisions with a _<n> suffix.
// A destination whose existence cannot be checked fails the item.
func (r *Renamer) move(ctx context.Context, b *batch, src, dir, name string, action models.Action) {
	ok, err := r.exists(ctx, b, src)
	if err != nil {
		r.fail(ctx, b, src, err)
		return
	}
	if !ok {
		r.fail(ctx, b, src, ErrSourceMissing)
		return
	}

	unique, substituted, err := UniqueName(name, func(candidate string) (bool, error) {
		p := filepath.Join(dir, candidate)
		if p == src {
			return false, nil
		}
		return r.exists(ctx, b, p)
	})
	if err != nil {
		r.fail(ctx, b, src, err)
		return
	}

	dst := filepath.Join(dir, unique)
	if dst == src {
		b.report.Skipped = append(b.report.Skipped, src)
		return
	}

	if r.dryRun {
		b.claimed[dst] = true
		b.vacated[src] = true
		delete(b.claimed, src)
	} else if err := r.backend.Rename(ctx, src, dst); err != nil {
		r.fail(ctx, b, src, err)
		return
	}

	if substituted {
		r.logger.Debug(ctx, "unique name substituted", logging.Fields{"requested": name, "used": unique})
	}
	b.report.AddSuccess(src, dst, action, substituted)
}

// exists reports whether p is taken, counting earlier dry-run claims.
// Errors other than not-exist are returned to the caller.
func (r *Renamer) exists(ctx context.Context, b *batch, p string) (bool, error) {
	if r.dryRun {
		if b.claimed[p] {
			return true, nil
		}
		if b.vacated[p] {
			return false, nil
		}
	}
	return r.backend.Exists(ctx, p)
}

func (r *Renamer) fail(ctx context.Context, b *batch, path string, err error) {
	r.logger.Warn(ctx, "rename failed", logging.Fields{"path": path, "error": err.Error()})
	b.report.AddFailure(path, fmt.Errorf("%s: %w", filepath.Base(path), err))
}
