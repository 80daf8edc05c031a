// Package drift compares a rendered VirtualTree with an existing project.
//
// Detection is read-only and scoped: it reads exactly the files the tree
// names plus a listing of each managed directory (the parent directory of
// every tree path, the root excluded). Nothing outside those paths is walked
// and nothing is ever written or deleted.
package drift

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/fsops"
	"github.com/danieljhkim/stencil/internal/hash"
	"github.com/danieljhkim/stencil/internal/render"
	"github.com/danieljhkim/stencil/internal/sanitize"
	"github.com/danieljhkim/stencil/internal/vtree"
)

// Class is the drift classification of one path.
type Class string

const (
	// Identical means the file on disk matches the rendered content.
	Identical Class = "identical"

	// Modified means the file exists with different content.
	Modified Class = "modified"

	// Missing means the tree has the path and the disk does not.
	Missing Class = "missing"

	// Unmanaged means a file in a managed directory that no template produces.
	Unmanaged Class = "unmanaged"
)

// Entry is the drift result for one path.
type Entry struct {
	Path  string `json:"path"`
	Class Class  `json:"class"`

	// Pack produced the path; empty for unmanaged files
	Pack string `json:"pack,omitempty"`

	// Diff is a unified diff from the disk to the rendered content
	Diff      string `json:"diff,omitempty"`
	Additions int    `json:"additions,omitempty"`
	Deletions int    `json:"deletions,omitempty"`

	ExpectedDigest string `json:"expectedDigest,omitempty"`
	ActualDigest   string `json:"actualDigest,omitempty"`
}

// Report is the ordered drift result: tree order, then unmanaged files by path.
type Report struct {
	Root    string  `json:"root"`
	Entries []Entry `json:"entries"`
}

// HasDrift reports whether any entry is not Identical.
func (r *Report) HasDrift() bool {
	for _, e := range r.Entries {
		if e.Class != Identical {
			return true
		}
	}
	return false
}

// Counts returns the number of entries per class.
func (r *Report) Counts() map[Class]int {
	counts := make(map[Class]int, 4)
	for _, e := range r.Entries {
		counts[e.Class]++
	}
	return counts
}

// Options tunes detection.
type Options struct {
	// Ignore lists doublestar globs, relative to the root, of files that are
	// never reported as unmanaged
	Ignore []string

	// Context is the number of unified diff context lines (default 3)
	Context int

	// NoDiff skips diff generation; classes and counts are still computed
	NoDiff bool
}

// Detect compares tree with the project at root.
//
// A root that does not exist yields every path as Missing. A required path
// that cannot be read is errs.ErrDriftIO; a tree path or managed directory
// that resolves through a symlink to outside the root is errs.ErrSecurity.
func Detect(tree *vtree.Tree, root string, fs fsops.FS, opts Options) (*Report, error) {
	root = filepath.Clean(root)
	report := &Report{Root: root, Entries: make([]Entry, 0, tree.Len())}

	resolvedRoot, err := fs.EvalSymlinks(root)
	if err != nil {
		if os.IsNotExist(err) {
			for _, e := range tree.Entries() {
				report.Entries = append(report.Entries, missing(e, opts))
			}
			return report, nil
		}
		return nil, errs.DriftIOf(root, "cannot resolve root: %v", err)
	}

	d := &detector{fs: fs, root: root, resolvedRoot: resolvedRoot, opts: opts}

	for _, e := range tree.Entries() {
		entry, err := d.compare(e)
		if err != nil {
			return nil, err
		}
		report.Entries = append(report.Entries, entry)
	}

	unmanaged, err := d.unmanaged(tree)
	if err != nil {
		return nil, err
	}
	report.Entries = append(report.Entries, unmanaged...)

	return report, nil
}

type detector struct {
	fs           fsops.FS
	root         string
	resolvedRoot string
	opts         Options
}

// resolve returns the symlink-free form of rel, or "" if it does not exist.
func (d *detector) resolve(rel string) (string, error) {
	abs := filepath.Join(d.root, filepath.FromSlash(rel))
	if _, err := d.fs.Lstat(abs); err != nil {
		// A file where a parent directory belongs leaves the path missing.
		if os.IsNotExist(err) || fsops.IsNotDir(err) {
			return "", nil
		}
		return "", errs.DriftIOf(rel, "cannot stat: %v", err)
	}

	resolved, err := d.fs.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) || fsops.IsNotDir(err) {
			// Dangling symlink.
			return "", nil
		}
		return "", errs.DriftIOf(rel, "cannot resolve: %v", err)
	}
	if !sanitize.Within(d.resolvedRoot, resolved) {
		return "", errs.Securityf(rel, "path %q resolves to %q which is outside the project root", rel, resolved)
	}
	return resolved, nil
}

func (d *detector) compare(e *vtree.Entry) (Entry, error) {
	resolved, err := d.resolve(e.Path)
	if err != nil {
		return Entry{}, err
	}
	if resolved == "" {
		return missing(e, d.opts), nil
	}

	info, err := d.fs.Lstat(resolved)
	if err != nil {
		return Entry{}, errs.DriftIOf(e.Path, "cannot stat: %v", err)
	}
	if info.IsDir() {
		return Entry{}, errs.DriftIOf(e.Path, "expected a file, found a directory")
	}

	actual, err := d.fs.ReadFile(resolved)
	if err != nil {
		return Entry{}, errs.DriftIOf(e.Path, "cannot read: %v", err)
	}

	entry := Entry{
		Path:           e.Path,
		Pack:           e.Pack,
		ExpectedDigest: e.Digest,
		ActualDigest:   hash.Bytes(actual),
	}
	if entry.ActualDigest == entry.ExpectedDigest {
		entry.Class = Identical
		return entry, nil
	}

	entry.Class = Modified
	if !d.opts.NoDiff {
		if e.Opaque || render.IsOpaque(actual) {
			entry.Diff = binaryDiff(e.Path)
		} else {
			entry.Diff, entry.Additions, entry.Deletions = generateUnifiedDiff(e.Path, actual, e.Content, "modified", d.opts.Context)
		}
	}
	return entry, nil
}

func missing(e *vtree.Entry, opts Options) Entry {
	entry := Entry{
		Path:           e.Path,
		Class:          Missing,
		Pack:           e.Pack,
		ExpectedDigest: e.Digest,
	}
	if !opts.NoDiff && !e.Opaque {
		entry.Diff, entry.Additions, entry.Deletions = generateUnifiedDiff(e.Path, nil, e.Content, "added", opts.Context)
	}
	return entry
}

// unmanaged lists every managed directory and reports files the tree does
// not produce and no ignore glob matches.
func (d *detector) unmanaged(tree *vtree.Tree) ([]Entry, error) {
	dirs := managedDirs(tree)
	var out []Entry

	for _, dir := range dirs {
		resolved, err := d.resolve(dir)
		if err != nil {
			return nil, err
		}
		if resolved == "" {
			continue
		}

		entries, err := d.fs.ReadDir(resolved)
		if err != nil {
			if fsops.IsNotDir(err) {
				continue
			}
			return nil, errs.DriftIOf(dir, "cannot list directory: %v", err)
		}
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			rel := path.Join(dir, de.Name())
			if _, managed := tree.Get(rel); managed {
				continue
			}
			if d.ignored(rel) {
				continue
			}
			out = append(out, Entry{Path: rel, Class: Unmanaged})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (d *detector) ignored(rel string) bool {
	for _, pattern := range d.opts.Ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// managedDirs returns the distinct parent directories of tree paths, sorted,
// excluding the root.
func managedDirs(tree *vtree.Tree) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range tree.Paths() {
		dir := path.Dir(p)
		if dir == "." || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// Summary formats counts as "2 modified, 1 missing".
func (r *Report) Summary() string {
	counts := r.Counts()
	out := ""
	for _, c := range []Class{Modified, Missing, Unmanaged, Identical} {
		if counts[c] == 0 {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%d %s", counts[c], c)
	}
	if out == "" {
		return "no files"
	}
	return out
}
