package integration

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/danieljhkim/stencil/internal/engine"
	"github.com/danieljhkim/stencil/internal/fsops"
	"github.com/danieljhkim/stencil/internal/hash"
	"github.com/danieljhkim/stencil/internal/packs"
)

// testFS is a filesystem implementation that tracks files in memory for testing
type testFS struct {
	files    map[string][]byte
	dirs     map[string]bool
	symlinks map[string]string
}

func newTestFS() *testFS {
	return &testFS{
		files:    make(map[string][]byte),
		dirs:     make(map[string]bool),
		symlinks: make(map[string]string),
	}
}

func notExist(path string) error {
	return &os.PathError{Op: "lstat", Path: path, Err: os.ErrNotExist}
}

func (fs *testFS) Exists(path string) (bool, error) {
	path = fs.resolveParent(path)
	_, hasFile := fs.files[path]
	_, hasDir := fs.dirs[path]
	_, hasSymlink := fs.symlinks[path]
	return hasFile || hasDir || hasSymlink, nil
}

func (fs *testFS) Lstat(path string) (os.FileInfo, error) {
	path = fs.resolveParent(path)
	if _, ok := fs.symlinks[path]; ok {
		return &mockFileInfo{name: filepath.Base(path), mode: os.ModeSymlink}, nil
	}
	if _, ok := fs.dirs[path]; ok {
		return &mockFileInfo{name: filepath.Base(path), mode: os.ModeDir | 0755, isDir: true}, nil
	}
	if content, ok := fs.files[path]; ok {
		return &mockFileInfo{name: filepath.Base(path), size: int64(len(content)), mode: 0644}, nil
	}
	return nil, notExist(path)
}

// EvalSymlinks replaces the deepest symlinked prefix of path until none is
// left, like filepath.EvalSymlinks.
func (fs *testFS) EvalSymlinks(path string) (string, error) {
	path = filepath.Clean(path)
	for i := 0; i < 16; i++ {
		resolved, changed := fs.resolveOnce(path)
		if !changed {
			break
		}
		path = resolved
	}
	_, hasFile := fs.files[path]
	if !hasFile && !fs.dirs[path] {
		return "", notExist(path)
	}
	return path, nil
}

// resolveParent follows symlinks in every component but the last, as lstat
// does.
func (fs *testFS) resolveParent(path string) string {
	dir, base := filepath.Dir(path), filepath.Base(path)
	if dir == path {
		return path
	}
	if resolved, err := fs.EvalSymlinks(dir); err == nil {
		return filepath.Join(resolved, base)
	}
	return path
}

func (fs *testFS) resolveOnce(path string) (string, bool) {
	p := path
	var rest []string
	for {
		if target, ok := fs.symlinks[p]; ok {
			return filepath.Join(append([]string{target}, rest...)...), true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path, false
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}

func (fs *testFS) ReadDir(path string) ([]os.DirEntry, error) {
	if !fs.dirs[path] {
		return nil, notExist(path)
	}

	seen := make(map[string]bool)
	var entries []os.DirEntry
	collect := func(p string) {
		if filepath.Dir(p) != path || seen[p] {
			return
		}
		seen[p] = true
		info, err := fs.Lstat(p)
		if err == nil {
			entries = append(entries, iofs.FileInfoToDirEntry(info))
		}
	}
	for p := range fs.files {
		collect(p)
	}
	for p := range fs.dirs {
		collect(p)
	}
	for p := range fs.symlinks {
		collect(p)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (fs *testFS) MkdirAll(path string, perm os.FileMode) error {
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		fs.dirs[p] = true
		if filepath.Dir(p) == p {
			return nil
		}
	}
}

func (fs *testFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	fs.files[path] = append([]byte(nil), data...)
	return nil
}

func (fs *testFS) ReadFile(path string) ([]byte, error) {
	if resolved, err := fs.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if content, ok := fs.files[path]; ok {
		return append([]byte(nil), content...), nil
	}
	return nil, notExist(path)
}

func (fs *testFS) ValidateIdentifier(id string) error {
	return fsops.ValidateIdentifier(id)
}

// writeFile adds a file and its parent directories.
func (fs *testFS) writeFile(path, content string) {
	_ = fs.AtomicWrite(path, []byte(content), 0644)
}

// mockFileInfo implements os.FileInfo
type mockFileInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	isDir bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() interface{}   { return nil }

// testHasher hashes files held by a testFS.
type testHasher struct {
	fs *testFS
}

func (h *testHasher) HashFile(path string) (string, error) {
	content, err := h.fs.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	return hash.Bytes(content), nil
}

func (h *testHasher) HashBytes(data []byte) string {
	return hash.Bytes(data)
}

// testPackRepo is an in-memory pack repository for testing. Load returns a
// fresh Pack each time, as FilePackRepo does.
type testPackRepo struct {
	manifests map[string]*packs.Manifest
	sources   map[string]map[string][]byte
}

func newTestPackRepo() *testPackRepo {
	return &testPackRepo{
		manifests: make(map[string]*packs.Manifest),
		sources:   make(map[string]map[string][]byte),
	}
}

func (r *testPackRepo) addPack(m *packs.Manifest, sources map[string]string) {
	r.manifests[m.Name] = m
	r.sources[m.Name] = make(map[string][]byte, len(sources))
	for name, content := range sources {
		r.sources[m.Name][name] = []byte(content)
	}
}

func (r *testPackRepo) List() ([]string, error) {
	names := make([]string, 0, len(r.manifests))
	for name := range r.manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *testPackRepo) Exists(name string) (bool, error) {
	_, ok := r.manifests[name]
	return ok, nil
}

func (r *testPackRepo) Load(name string) (*packs.Pack, error) {
	m, ok := r.manifests[name]
	if !ok {
		return nil, fmt.Errorf("pack not found: %s", name)
	}
	mCopy := *m
	return packs.New(&mCopy, r.sources[name]), nil
}

func setupTestEngine(t *testing.T) (*engine.Engine, *testFS, *testPackRepo) {
	t.Helper()

	fs := newTestFS()
	repo := newTestPackRepo()
	eng := engine.New(repo, fs, &testHasher{fs: fs})
	return eng, fs, repo
}
