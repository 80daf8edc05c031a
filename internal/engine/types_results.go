package engine

import (
	"github.com/danieljhkim/stencil/internal/packs"
	"github.com/danieljhkim/stencil/internal/spec"
)

// Run is a validated spec and pack set. It is created fresh per invocation
// and never mutated after Validate returns.
type Run struct {
	// Packs is the pack set in dependency order
	Packs []*packs.Pack

	// Schema is the union of the packs' variable declarations
	Schema *spec.Schema

	// Spec is the validated spec
	Spec *spec.Spec

	// Root is the absolute target root
	Root string
}

// PackNames returns the pack names in dependency order.
func (r *Run) PackNames() []string {
	names := make([]string, len(r.Packs))
	for i, p := range r.Packs {
		names[i] = p.Name()
	}
	return names
}

// IgnorePatterns returns every pack's ignore globs in pack order.
func (r *Run) IgnorePatterns() []string {
	var out []string
	for _, p := range r.Packs {
		out = append(out, p.Manifest.Ignore...)
	}
	return out
}

// WriteResult represents the result of persisting a tree.
type WriteResult struct {
	// Written lists paths created or overwritten (would be, for DryRun)
	Written []string `json:"written"`

	// Unchanged lists paths whose content already matched
	Unchanged []string `json:"unchanged"`

	// Conflicts lists existing paths whose content differs; nothing is
	// written when this is non-empty and Force is off
	Conflicts []string `json:"conflicts"`
}

// PackInfo describes an available pack.
type PackInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	DependsOn   []string `json:"dependsOn,omitempty"`
	Templates   int      `json:"templates"`
	Variables   []string `json:"variables,omitempty"`
}
