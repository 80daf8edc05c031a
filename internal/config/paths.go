// Package config manages stencil configuration and filesystem paths.
//
// A run is configured from three layers, lowest precedence first: the
// stencil.yaml file, STENCIL_* environment variables, and command-line
// flags. Packs are looked up in the project packs directory and then in the
// user-level directory (~/.stencil/packs by default).
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains the user-level filesystem paths used by stencil.
type Paths struct {
	// Root is the base directory for user data (default: ~/.stencil)
	Root string

	// Packs is the user-level pack directory
	Packs string
}

// DefaultPaths returns the default paths for stencil.
// Paths can be overridden with environment variables:
// - STENCIL_HOME: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv(EnvHome)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".stencil")
	}

	return &Paths{
		Root:  root,
		Packs: filepath.Join(root, "packs"),
	}, nil
}
