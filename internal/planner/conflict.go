package planner

import (
	"fmt"

	"github.com/danieljhkim/stencil/internal/errs"
)

// ConflictError reports two descriptors whose destinations cannot coexist:
// the same path, or one path nested under the other (a file where the other
// needs a directory). First is the descriptor that claimed earlier in plan
// order. Other is set only for nested paths and is First's destination.
type ConflictError struct {
	Path   string
	Other  string
	First  string
	Second string
}

func (e *ConflictError) Error() string {
	if e.Other != "" {
		return fmt.Sprintf("%s: %s writes %q and %s writes %q; one cannot be both a file and a directory",
			errs.ErrPlanConflict, e.First, e.Other, e.Second, e.Path)
	}
	return fmt.Sprintf("%s: %s and %s both resolve to %q", errs.ErrPlanConflict, e.First, e.Second, e.Path)
}

// Is classifies a ConflictError as errs.ErrPlanConflict.
func (e *ConflictError) Is(target error) bool {
	return target == errs.ErrPlanConflict
}

// ConflictChecker tracks which descriptor claimed each destination, and
// which claimed file first needed each parent directory.
type ConflictChecker struct {
	owners map[string]string
	dirs   map[string]string
}

// NewConflictChecker creates a new ConflictChecker.
func NewConflictChecker() *ConflictChecker {
	return &ConflictChecker{
		owners: make(map[string]string),
		dirs:   make(map[string]string),
	}
}

// Claim records that descriptor writes path, a cleaned slash-separated
// relative path. It returns a *ConflictError if another descriptor already
// claimed it, claimed one of its parent directories as a file, or claimed a
// file beneath it. A descriptor that claims the same path twice (two loop
// elements resolving alike) also conflicts.
func (c *ConflictChecker) Claim(path, descriptor string) error {
	if previous, exists := c.owners[path]; exists {
		return &ConflictError{Path: path, First: previous, Second: descriptor}
	}
	if file, exists := c.dirs[path]; exists {
		return &ConflictError{Path: path, Other: file, First: c.owners[file], Second: descriptor}
	}

	parents := parentDirs(path)
	for _, dir := range parents {
		if previous, exists := c.owners[dir]; exists {
			return &ConflictError{Path: path, Other: dir, First: previous, Second: descriptor}
		}
	}

	c.owners[path] = descriptor
	for _, dir := range parents {
		if _, exists := c.dirs[dir]; !exists {
			c.dirs[dir] = path
		}
	}
	return nil
}

// Owner returns the descriptor that claimed path.
func (c *ConflictChecker) Owner(path string) (string, bool) {
	owner, ok := c.owners[path]
	return owner, ok
}

// parentDirs returns every proper ancestor of path, nearest last.
func parentDirs(path string) []string {
	var dirs []string
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			dirs = append(dirs, path[:i])
		}
	}
	return dirs
}
