package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/stencil/internal/ctxlog"
	"github.com/danieljhkim/stencil/internal/fsops"
	"github.com/danieljhkim/stencil/internal/sanitize"
	"github.com/danieljhkim/stencil/internal/vtree"
)

// Algorithm steps:
// 1. Resolve every tree path under the root and confine it
// 2. Preflight: compare existing files with the rendered digest
// 3. Stop with ErrConflict if any differ and Force is off
// 4. Write changed files atomically (unless DryRun)
func (e *Engine) Write(ctx context.Context, tree *vtree.Tree, req *WriteRequest) (*WriteResult, error) {
	log := ctxlog.FromContext(ctx)

	root, err := resolveTargetRoot(req.Root, "")
	if err != nil {
		return nil, err
	}

	result := &WriteResult{
		Written:   []string{},
		Unchanged: []string{},
		Conflicts: []string{},
	}

	type pending struct {
		abs   string
		entry *vtree.Entry
	}
	var writes []pending

	for _, entry := range tree.Entries() {
		abs, err := sanitize.ResolvePath(root, entry.Path)
		if err != nil {
			return nil, err
		}
		if err := checkConfined(e.fs, root, abs, entry.Path); err != nil {
			return nil, err
		}

		exists, err := e.fs.Exists(abs)
		if err != nil {
			if fsops.IsNotDir(err) {
				return nil, fmt.Errorf("%w: a parent of %s is not a directory", ErrConflict, entry.Path)
			}
			return nil, fmt.Errorf("failed to check %s: %w", entry.Path, err)
		}
		if exists {
			info, err := e.fs.Lstat(abs)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", entry.Path, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%w: %s is a directory", ErrConflict, entry.Path)
			}

			checksum, err := e.hasher.HashFile(abs)
			if err != nil {
				return nil, fmt.Errorf("failed to hash %s: %w", entry.Path, err)
			}
			if checksum == entry.Digest {
				result.Unchanged = append(result.Unchanged, entry.Path)
				continue
			}
			if !req.Force {
				result.Conflicts = append(result.Conflicts, entry.Path)
				continue
			}
		}
		writes = append(writes, pending{abs: abs, entry: entry})
	}

	if len(result.Conflicts) > 0 {
		return result, fmt.Errorf("%w: %d existing files differ from the rendered output (use --force to overwrite)", ErrConflict, len(result.Conflicts))
	}

	for _, w := range writes {
		if req.DryRun {
			result.Written = append(result.Written, w.entry.Path)
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.fs.AtomicWrite(w.abs, w.entry.Content, 0o644); err != nil {
			return result, fmt.Errorf("failed to write %s: %w", w.entry.Path, err)
		}
		result.Written = append(result.Written, w.entry.Path)
		log.Debug("wrote file", "path", w.entry.Path, "bytes", len(w.entry.Content))
	}

	log.Info("write complete", "written", len(result.Written), "unchanged", len(result.Unchanged), "dry_run", req.DryRun)
	return result, nil
}
