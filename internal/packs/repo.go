package packs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/danieljhkim/stencil/internal/fsops"
	"github.com/danieljhkim/stencil/internal/sanitize"
)

// PackRepo provides an interface for locating and loading packs.
type PackRepo interface {
	// List returns all pack names, sorted.
	List() ([]string, error)

	// Exists checks if a pack with the given name exists.
	Exists(name string) (bool, error)

	// Load reads a pack's manifest and every template source it names.
	Load(name string) (*Pack, error)
}

// FilePackRepo implements PackRepo over a directory of pack directories.
type FilePackRepo struct {
	fs       fsops.FS
	packsDir string
}

// NewFilePackRepo creates a new FilePackRepo.
func NewFilePackRepo(fs fsops.FS, packsDir string) *FilePackRepo {
	return &FilePackRepo{
		fs:       fs,
		packsDir: packsDir,
	}
}

// List returns all pack names.
func (r *FilePackRepo) List() ([]string, error) {
	entries, err := r.fs.ReadDir(r.packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read packs directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ok, err := r.fs.Exists(filepath.Join(r.packsDir, entry.Name(), ManifestFile))
		if err != nil {
			return nil, fmt.Errorf("failed to check pack %s: %w", entry.Name(), err)
		}
		if ok {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

// Exists checks if a pack with the given name exists.
func (r *FilePackRepo) Exists(name string) (bool, error) {
	if err := r.fs.ValidateIdentifier(name); err != nil {
		return false, fmt.Errorf("invalid pack name: %w", err)
	}
	return r.fs.Exists(filepath.Join(r.packsDir, name, ManifestFile))
}

// Load reads a pack's manifest and every template source it names.
func (r *FilePackRepo) Load(name string) (*Pack, error) {
	if err := r.fs.ValidateIdentifier(name); err != nil {
		return nil, fmt.Errorf("invalid pack name: %w", err)
	}

	dir := filepath.Join(r.packsDir, name)
	data, err := r.fs.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pack not found: %s", name)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}
	if m.Name != name {
		return nil, fmt.Errorf("pack %s: manifest name %q does not match directory", name, m.Name)
	}

	templatesRoot := filepath.Join(dir, TemplatesDir)
	sources := make(map[string][]byte, len(m.Templates))
	for i, d := range m.Templates {
		rel, err := sanitize.CleanRelPath(d.Source)
		if err != nil {
			// Reported with its descriptor id by Compile.
			continue
		}
		if _, done := sources[rel]; done {
			continue
		}
		path, err := sanitize.ResolvePath(templatesRoot, rel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", DescriptorID(name, i), err)
		}
		content, err := r.fs.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				// Reported as a missing source by Compile.
				continue
			}
			return nil, fmt.Errorf("failed to read template %s: %w", rel, err)
		}
		sources[rel] = content
	}

	p := New(m, sources)
	p.Dir = dir
	return p, nil
}

// MultiPackRepo searches several repos in order; the first that has a pack
// wins. This lets project packs shadow user-level packs of the same name.
type MultiPackRepo struct {
	repos []PackRepo
}

// NewMultiPackRepo creates a MultiPackRepo searching repos in order.
func NewMultiPackRepo(repos ...PackRepo) *MultiPackRepo {
	return &MultiPackRepo{repos: repos}
}

func (m *MultiPackRepo) repoFor(name string) (PackRepo, error) {
	for _, repo := range m.repos {
		ok, err := repo.Exists(name)
		if err != nil {
			return nil, err
		}
		if ok {
			return repo, nil
		}
	}
	return nil, nil
}

// List returns the union of pack names, sorted.
func (m *MultiPackRepo) List() ([]string, error) {
	seen := make(map[string]bool)
	var result []string
	for _, repo := range m.repos {
		names, err := repo.List()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				result = append(result, name)
			}
		}
	}
	sort.Strings(result)
	return result, nil
}

func (m *MultiPackRepo) Exists(name string) (bool, error) {
	repo, err := m.repoFor(name)
	return repo != nil, err
}

func (m *MultiPackRepo) Load(name string) (*Pack, error) {
	repo, err := m.repoFor(name)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("pack not found: %s", name)
	}
	return repo.Load(name)
}

// Resolve loads the named packs, base, and every pack they transitively
// depend on. A dependency that no repo provides is skipped here so that
// ValidateSet can report it against the pack that declared it; a pack named
// explicitly must exist.
func Resolve(repo PackRepo, names []string) ([]*Pack, error) {
	loaded := make(map[string]*Pack)
	var out []*Pack

	queue := append([]string{BaseName}, names...)
	explicit := make(map[string]bool, len(queue))
	for _, n := range queue {
		explicit[n] = true
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, done := loaded[name]; done {
			continue
		}

		ok, err := repo.Exists(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			if explicit[name] {
				return nil, fmt.Errorf("pack not found: %s", name)
			}
			loaded[name] = nil
			continue
		}

		p, err := repo.Load(name)
		if err != nil {
			return nil, err
		}
		loaded[name] = p
		out = append(out, p)
		queue = append(queue, p.Manifest.DependsOn...)
	}

	return out, nil
}
