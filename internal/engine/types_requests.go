package engine

// ValidateRequest represents a request to validate a spec and pack set.
type ValidateRequest struct {
	// CWD is the directory relative paths are resolved against
	CWD string

	// Packs lists the requested packs; base and dependencies are added
	Packs []string

	// Spec holds raw spec values. When nil, SpecPath is loaded.
	Spec map[string]any

	// SpecPath is a YAML or JSON spec file
	SpecPath string

	// Target is the project root output is rendered for
	Target string
}

// WriteRequest represents a request to persist a rendered tree.
type WriteRequest struct {
	// Root is the directory the tree is written under
	Root string

	// Force overwrites existing files whose content differs
	Force bool

	// DryRun reports what would be written without touching the disk
	DryRun bool
}
