package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/fsops"
)

func TestResolveTargetRoot(t *testing.T) {
	cwd := filepath.FromSlash("/work/project")

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "empty target is cwd", target: "", want: cwd},
		{name: "dot", target: ".", want: cwd},
		{name: "relative", target: "out/site", want: filepath.Join(cwd, "out", "site")},
		{name: "relative with dot-dot", target: "../other", want: filepath.FromSlash("/work/other")},
		{name: "absolute", target: filepath.FromSlash("/srv/app/"), want: filepath.FromSlash("/srv/app")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTargetRoot(tt.target, cwd)
			if err != nil {
				t.Fatalf("resolveTargetRoot(%q) error = %v", tt.target, err)
			}
			if got != tt.want {
				t.Errorf("resolveTargetRoot(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestCheckConfined(t *testing.T) {
	fs := fsops.NewRealFS()
	root := t.TempDir()
	outside := t.TempDir()

	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "src"), filepath.Join(root, "alias")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	tests := []struct {
		name       string
		rel        string
		wantSecure bool
	}{
		{name: "existing directory", rel: "src/main.go"},
		{name: "missing directories", rel: "a/b/c.txt"},
		{name: "symlink inside root", rel: "alias/main.go"},
		{name: "symlink leaving root", rel: "escape/main.go", wantSecure: true},
		{name: "nested under escaping symlink", rel: "escape/x/y.txt", wantSecure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs := filepath.Join(root, filepath.FromSlash(tt.rel))
			err := checkConfined(fs, root, abs, tt.rel)
			if tt.wantSecure {
				if !errors.Is(err, errs.ErrSecurity) {
					t.Errorf("checkConfined(%q) = %v, want security rejection", tt.rel, err)
				}
				return
			}
			if err != nil {
				t.Errorf("checkConfined(%q) = %v, want nil", tt.rel, err)
			}
		})
	}
}
