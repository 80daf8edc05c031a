package drift

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/fsops"
	"github.com/danieljhkim/stencil/internal/vtree"
)

func newTree(t *testing.T, files ...string) *vtree.Tree {
	t.Helper()
	tree := vtree.New()
	for i := 0; i+1 < len(files); i += 2 {
		require.NoError(t, tree.Add(vtree.Entry{Path: files[i], Content: []byte(files[i+1]), Pack: "base"}))
	}
	return tree
}

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for i := 0; i+1 < len(files); i += 2 {
		path := filepath.Join(root, filepath.FromSlash(files[i]))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(files[i+1]), 0o644))
	}
}

func classes(r *Report) map[string]Class {
	out := make(map[string]Class, len(r.Entries))
	for _, e := range r.Entries {
		out[e.Path] = e.Class
	}
	return out
}

func TestDetect_Classification(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"README.md", "# foo\n",
		".github/workflows/ci-py.yml", "name: py\nruns: old\n",
		".github/workflows/stray.yml", "x",
		".github/workflows/local-debug.yml", "x",
		"notes.txt", "root files are never scanned",
	)

	tree := newTree(t,
		"README.md", "# foo\n",
		".github/workflows/ci-py.yml", "name: py\nruns: new\n",
		".github/workflows/ci-go.yml", "name: go\n",
	)

	report, err := Detect(tree, root, fsops.NewRealFS(), Options{Ignore: []string{".github/workflows/local-*.yml"}})
	require.NoError(t, err)

	paths := make([]string, len(report.Entries))
	for i, e := range report.Entries {
		paths[i] = e.Path
	}
	assert.Equal(t, []string{
		"README.md",
		".github/workflows/ci-py.yml",
		".github/workflows/ci-go.yml",
		".github/workflows/stray.yml",
	}, paths, "tree order, then unmanaged")

	assert.Equal(t, map[string]Class{
		"README.md":                   Identical,
		".github/workflows/ci-py.yml": Modified,
		".github/workflows/ci-go.yml": Missing,
		".github/workflows/stray.yml": Unmanaged,
	}, classes(report))

	modified := report.Entries[1]
	assert.Equal(t, 1, modified.Additions)
	assert.Equal(t, 1, modified.Deletions)
	assert.Contains(t, modified.Diff, "-runs: old")
	assert.Contains(t, modified.Diff, "+runs: new")
	assert.NotEqual(t, modified.ExpectedDigest, modified.ActualDigest)

	assert.Contains(t, report.Entries[2].Diff, "--- /dev/null")
	assert.True(t, report.HasDrift())
	assert.Equal(t, "1 modified, 1 missing, 1 unmanaged, 1 identical", report.Summary())
}

func TestDetect_Idempotent(t *testing.T) {
	root := t.TempDir()
	tree := newTree(t, "a.txt", "a\n", "src/b.go", "package b\n")
	for _, e := range tree.Entries() {
		writeFiles(t, root, e.Path, string(e.Content))
	}

	report, err := Detect(tree, root, fsops.NewRealFS(), Options{})
	require.NoError(t, err)
	assert.False(t, report.HasDrift())
	for _, e := range report.Entries {
		assert.Equal(t, Identical, e.Class, e.Path)
		assert.Empty(t, e.Diff)
	}
}

func TestDetect_MissingRoot(t *testing.T) {
	tree := newTree(t, "a.txt", "a\n", "dir/b.txt", "b\n")
	report, err := Detect(tree, filepath.Join(t.TempDir(), "absent"), fsops.NewRealFS(), Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]Class{"a.txt": Missing, "dir/b.txt": Missing}, classes(report))
}

func TestDetect_NoDiff(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.txt", "old\n")
	report, err := Detect(newTree(t, "a.txt", "new\n", "b.txt", "b\n"), root, fsops.NewRealFS(), Options{NoDiff: true})
	require.NoError(t, err)
	for _, e := range report.Entries {
		assert.Empty(t, e.Diff)
	}
	assert.Equal(t, Modified, report.Entries[0].Class)
}

func TestDetect_BinaryContent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "logo.png", "\x89PNG\x00old")

	tree := vtree.New()
	require.NoError(t, tree.Add(vtree.Entry{Path: "logo.png", Content: []byte("\x89PNG\x00new"), Opaque: true}))

	report, err := Detect(tree, root, fsops.NewRealFS(), Options{})
	require.NoError(t, err)
	assert.Equal(t, Modified, report.Entries[0].Class)
	assert.Contains(t, report.Entries[0].Diff, "Binary files a/logo.png and b/logo.png differ")
}

func TestDetect_SymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	writeFiles(t, outside, "secret.txt", "s3cret")

	t.Run("file symlink", func(t *testing.T) {
		root := t.TempDir()
		if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "a.txt")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		_, err := Detect(newTree(t, "a.txt", "x"), root, fsops.NewRealFS(), Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrSecurity), "got %v", err)
	})

	t.Run("directory symlink", func(t *testing.T) {
		root := t.TempDir()
		if err := os.Symlink(outside, filepath.Join(root, "docs")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		_, err := Detect(newTree(t, "docs/secret.txt", "x"), root, fsops.NewRealFS(), Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrSecurity), "got %v", err)
	})

	t.Run("symlink inside root is followed", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "real.txt", "x")
		if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "a.txt")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		report, err := Detect(newTree(t, "a.txt", "x"), root, fsops.NewRealFS(), Options{})
		require.NoError(t, err)
		assert.Equal(t, Identical, report.Entries[0].Class)
	})
}

func TestDetect_DirectoryAtFilePath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a.txt"), 0o755))
	_, err := Detect(newTree(t, "a.txt", "x"), root, fsops.NewRealFS(), Options{})
	assert.True(t, errors.Is(err, errs.ErrDriftIO))
}

func TestDetect_ParentIsAFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "ci", "a file\n", "docs/ci", "another file\n")

	report, err := Detect(newTree(t, "ci/x.yml", "x\n", "docs/ci/y.yml", "y\n"), root, fsops.NewRealFS(), Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]Class{
		"ci/x.yml":      Missing,
		"docs/ci/y.yml": Missing,
		"docs/ci":       Unmanaged,
	}, classes(report))
}

func TestDetect_TrailingNewlineOnly(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "README.md", "# foo")

	report, err := Detect(newTree(t, "README.md", "# foo\n"), root, fsops.NewRealFS(), Options{})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)

	e := report.Entries[0]
	assert.Equal(t, Modified, e.Class)
	assert.Contains(t, e.Diff, "\\ No newline at end of file")
	assert.Equal(t, 1, e.Additions)
	assert.Equal(t, 1, e.Deletions)
}

// failingFS wraps RealFS and fails reads of one path.
type failingFS struct {
	*fsops.RealFS
	failPath string
}

func (f *failingFS) ReadFile(path string) ([]byte, error) {
	if filepath.Base(path) == f.failPath {
		return nil, os.ErrPermission
	}
	return f.RealFS.ReadFile(path)
}

func (f *failingFS) ReadDir(path string) ([]os.DirEntry, error) {
	if filepath.Base(path) == f.failPath {
		return nil, os.ErrPermission
	}
	return f.RealFS.ReadDir(path)
}

func TestDetect_UnreadablePath(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.txt", "a", "locked/b.txt", "b")

	_, err := Detect(newTree(t, "a.txt", "a"), root, &failingFS{RealFS: fsops.NewRealFS(), failPath: "a.txt"}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDriftIO))
	assert.ErrorContains(t, err, "a.txt")

	_, err = Detect(newTree(t, "locked/b.txt", "b"), root, &failingFS{RealFS: fsops.NewRealFS(), failPath: "locked"}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDriftIO))
}

func TestManagedDirs(t *testing.T) {
	tree := newTree(t, "z/a", "", "README.md", "", "a/b/c", "", "z/b", "")
	assert.Equal(t, []string{"a/b", "z"}, managedDirs(tree))
}
