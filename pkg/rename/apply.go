package rename

import (
	"context"
	"path/filepath"

	"github.com/sdejongh/fylr/internal/platform"
	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/plan"
)

// ApplyPlan moves every plan item from its source to root/DstPath, creating
// destination directories as needed. Collisions get a _<n> suffix.
func (r *Renamer) ApplyPlan(ctx context.Context, p *plan.Plan) *models.RenameReport {
	b := r.newBatch()
	root := r.backend.Root()

	for i, item := range p.Items {
		if ctx.Err() != nil {
			b.report.Finish(true)
			return b.report
		}
		r.applyItem(ctx, b, root, item)
		if r.progress != nil {
			r.progress(i+1, len(p.Items), item.SrcPath)
		}
	}

	b.report.Finish(false)
	r.logger.Info(ctx, "plan applied", r.summary(b))
	return b.report
}

func (r *Renamer) applyItem(ctx context.Context, b *batch, root string, item plan.Item) {
	rel, err := platform.CleanRelative(item.DstPath)
	if err != nil {
		r.fail(ctx, b, item.SrcPath, err)
		return
	}

	relDir, name := platform.SplitRelative(rel)
	dir := filepath.Join(root, filepath.FromSlash(relDir))

	if !r.dryRun && relDir != "" {
		if err := r.backend.MkdirAll(ctx, dir); err != nil {
			r.fail(ctx, b, item.SrcPath, err)
			return
		}
	}

	action := models.ActionMove
	if filepath.Dir(item.SrcPath) == dir {
		action = models.ActionRename
	}
	r.move(ctx, b, item.SrcPath, dir, name, action)
}

// RequestsFromMapping pairs listed files with generated names.
// Files without a mapping, or mapped to their current name, are left out.
func RequestsFromMapping(entries []models.FileEntry, mapping map[string]string) []models.RenameRequest {
	var reqs []models.RenameRequest
	for _, entry := range entries {
		newName, ok := mapping[entry.Name]
		if !ok || newName == "" || newName == entry.Name {
			continue
		}
		reqs = append(reqs, models.RenameRequest{OldPath: entry.Path, NewName: newName})
	}
	return reqs
}
