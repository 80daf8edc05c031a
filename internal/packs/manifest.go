// Package packs loads and validates template packs.
//
// A pack is a directory holding a manifest and template sources:
//
//	<packs_dir>/<name>/manifest.yaml
//	<packs_dir>/<name>/templates/...
//
// The manifest declares the pack's dependencies, the spec variables it
// reads, and an ordered list of template descriptors. Loading reads only
// the sources the descriptors name; validation and planning never touch the
// filesystem.
package packs

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/stencil/internal/spec"
)

// BaseName is the pack every other pack transitively depends on.
const BaseName = "base"

// ManifestFile is the manifest file name inside a pack directory.
const ManifestFile = "manifest.yaml"

// TemplatesDir is the directory of template sources inside a pack.
const TemplatesDir = "templates"

// DefaultAlias is the loop variable name when a descriptor sets no `as`.
const DefaultAlias = "item"

// Manifest is the decoded manifest.yaml of a pack.
type Manifest struct {
	// Name is the pack name; it must match the pack directory
	Name string `yaml:"name" json:"name"`

	// Version is a semantic version, with or without a leading v
	Version string `yaml:"version" json:"version"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// DependsOn lists packs whose output this pack builds on
	DependsOn []string `yaml:"depends_on,omitempty" json:"dependsOn,omitempty"`

	// Variables declares the spec fields this pack reads
	Variables []spec.Variable `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Templates is rendered in this order
	Templates []Descriptor `yaml:"templates" json:"templates"`

	// Ignore lists doublestar globs of files this pack tolerates in its
	// directories without reporting them as unmanaged
	Ignore []string `yaml:"ignore,omitempty" json:"ignore,omitempty"`

	// Hooks are shell commands a caller may run after writing the tree
	Hooks []Hook `yaml:"hooks,omitempty" json:"hooks,omitempty"`
}

// Descriptor maps one template source to one or more destinations.
type Descriptor struct {
	// Source is relative to the pack's templates directory
	Source string `yaml:"source" json:"source"`

	// Dest is a destination path template with {{ field }} placeholders
	Dest string `yaml:"dest" json:"dest"`

	// When is an optional condition over spec fields
	When string `yaml:"when,omitempty" json:"when,omitempty"`

	// Loop names a sequence field; one task is produced per element
	Loop string `yaml:"loop,omitempty" json:"loop,omitempty"`

	// As names the loop element variable (default "item")
	As string `yaml:"as,omitempty" json:"as,omitempty"`

	// Raw copies the source verbatim without template evaluation
	Raw bool `yaml:"raw,omitempty" json:"raw,omitempty"`
}

// Hook is a post-render command declaration. stencil validates and quotes
// hooks but never runs them.
type Hook struct {
	Name string   `yaml:"name" json:"name"`
	Run  string   `yaml:"run" json:"run"`
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`
	When string   `yaml:"when,omitempty" json:"when,omitempty"`
}

// ParseManifest decodes manifest bytes. Unknown keys are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest is empty")
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// DescriptorID names a descriptor for error messages and conflict reports.
func DescriptorID(pack string, index int) string {
	return fmt.Sprintf("%s:templates[%d]", pack, index)
}

// HookID names a hook for error messages.
func HookID(pack string, index int) string {
	return fmt.Sprintf("%s:hooks[%d]", pack, index)
}
