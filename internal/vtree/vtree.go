// Package vtree holds a rendered file tree in memory.
//
// A Tree is an ordered mapping from root-relative destination path to
// rendered content. Insertion order is render order, keys are unique, and a
// second insert at the same path is an error rather than an overwrite.
package vtree

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/hash"
)

// Entry is one rendered file.
type Entry struct {
	// Path is slash-separated and relative to the target root
	Path string

	Content []byte

	// Pack and Descriptor identify the template that produced the entry
	Pack       string
	Descriptor string
	Source     string

	// Opaque marks content copied verbatim without template evaluation
	Opaque bool

	// Digest is the hex BLAKE3-256 digest of Content
	Digest string
}

// DuplicateError reports a second entry at an existing path.
type DuplicateError struct {
	Path     string
	Existing string
	Incoming string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %q is already produced by %s, cannot add it again for %s", errs.ErrPlanConflict, e.Path, e.Existing, e.Incoming)
}

// Is classifies a DuplicateError as errs.ErrPlanConflict.
func (e *DuplicateError) Is(target error) bool {
	return target == errs.ErrPlanConflict
}

// Tree is an insertion-ordered set of entries with unique paths.
type Tree struct {
	entries []*Entry
	index   map[string]int
}

// New creates an empty Tree.
func New() *Tree {
	return &Tree{index: make(map[string]int)}
}

// Add appends an entry, computing its digest.
func (t *Tree) Add(e Entry) error {
	if i, exists := t.index[e.Path]; exists {
		return &DuplicateError{Path: e.Path, Existing: t.entries[i].Descriptor, Incoming: e.Descriptor}
	}
	e.Digest = hash.Bytes(e.Content)
	t.index[e.Path] = len(t.entries)
	t.entries = append(t.entries, &e)
	return nil
}

// Get returns the entry at path.
func (t *Tree) Get(path string) (*Entry, bool) {
	i, ok := t.index[path]
	if !ok {
		return nil, false
	}
	return t.entries[i], true
}

// Entries returns every entry in insertion order.
func (t *Tree) Entries() []*Entry {
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Paths returns every path in insertion order.
func (t *Tree) Paths() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Path
	}
	return out
}

// Len returns the number of entries.
func (t *Tree) Len() int { return len(t.entries) }

// Digest fingerprints the whole tree: paths, order and content. Two renders
// of the same spec and packs produce the same digest.
func (t *Tree) Digest() string {
	h := blake3.New()
	for _, e := range t.entries {
		_, _ = fmt.Fprintf(h, "%d:%s\x00%s\n", len(e.Path), e.Path, e.Digest)
	}
	return hex.EncodeToString(h.Sum(nil))
}
