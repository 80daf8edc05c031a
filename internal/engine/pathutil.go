package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/fsops"
	"github.com/danieljhkim/stencil/internal/sanitize"
)

// resolveTargetRoot makes target absolute against cwd (the process working
// directory when cwd is empty). An empty target means cwd itself.
func resolveTargetRoot(target, cwd string) (string, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		cwd = wd
	}
	if target == "" {
		target = "."
	}

	var absPath string
	if filepath.IsAbs(target) {
		absPath = target
	} else {
		absPath = filepath.Join(cwd, target)
	}
	absPath = filepath.Clean(absPath)

	if !filepath.IsAbs(absPath) {
		return "", fmt.Errorf("%w: target %q does not resolve to an absolute path", ErrValidation, target)
	}
	return absPath, nil
}

// checkConfined verifies that abs, once every existing symlink on its way is
// resolved, still lies inside root. The nearest existing ancestor is
// resolved when abs itself does not exist yet.
func checkConfined(fs fsops.FS, root, abs, rel string) error {
	resolvedRoot, err := fs.EvalSymlinks(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to resolve root: %w", err)
	}

	probe := abs
	for {
		resolved, err := fs.EvalSymlinks(probe)
		if err == nil {
			if resolved != resolvedRoot && !sanitize.Within(resolvedRoot, resolved) {
				return errs.Securityf(rel, "path %q resolves to %q which is outside the target root", rel, resolved)
			}
			return nil
		}
		if !os.IsNotExist(err) && !fsops.IsNotDir(err) {
			return fmt.Errorf("failed to resolve %s: %w", rel, err)
		}
		parent := filepath.Dir(probe)
		if parent == probe || probe == root {
			return nil
		}
		probe = parent
	}
}
