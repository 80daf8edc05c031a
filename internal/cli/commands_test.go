package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/danieljhkim/stencil/internal/config"
	"github.com/danieljhkim/stencil/internal/engine"
	"github.com/danieljhkim/stencil/internal/errs"
)

const testBaseManifest = `name: base
version: 1.0.0
description: Project skeleton
variables:
  - name: project_name
    type: string
    required: true
    identifier: true
  - name: languages
    type: list(string)
    default: []
templates:
  - source: README.md.tmpl
    dest: README.md
`

const testCIManifest = `name: ci
version: 0.2.0
depends_on: [base]
templates:
  - source: workflow.yml.tmpl
    dest: .github/workflows/ci-{{ lang }}.yml
    loop: languages
    as: lang
hooks:
  - name: lint
    run: actionlint
`

// resetFlags restores every flag of every command to its default, since
// rootCmd and its flag variables are shared across tests.
func resetFlags(t *testing.T) {
	t.Helper()
	var walk func(c *cobra.Command)
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else if err := f.Value.Set(f.DefValue); err != nil {
			t.Fatalf("failed to reset --%s: %v", f.Name, err)
		}
		f.Changed = false
	}
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// setupProject creates a project directory holding packs and a spec, and
// makes it the working directory.
func setupProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"packs/base/manifest.yaml":             testBaseManifest,
		"packs/base/templates/README.md.tmpl":  "# ${project_name}\n",
		"packs/ci/manifest.yaml":               testCIManifest,
		"packs/ci/templates/workflow.yml.tmpl": "name: ci-${lang}\n",
		"stencil.spec.yaml":                    "project_name: demo\nlanguages: [py, go]\n",
		"invalid.spec.yaml":                    "languages: py\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}

	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvPacksDir, "")
	t.Setenv(config.EnvLogLevel, "")
	chdir(t, dir)
	return dir
}

// execute runs the root command with args and returns what it printed to
// stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)

	var errBuf bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(&errBuf)

	var err error
	out := captureStdout(t, func() {
		err = rootCmd.Execute()
	})
	return out, err
}

func TestValidateCommand(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "validate", "--pack", "ci")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "Spec is valid") {
		t.Errorf("expected success message, got:\n%s", out)
	}

	out, err = execute(t, "validate", "--pack", "ci", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var result struct {
		Valid bool     `json:"valid"`
		Packs []string `json:"packs"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v, output: %q", err, out)
	}
	if !result.Valid || strings.Join(result.Packs, ",") != "base,ci" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestValidateCommand_Violations(t *testing.T) {
	setupProject(t)

	_, err := execute(t, "validate", "--spec", "invalid.spec.yaml")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, errs.ErrSchema) {
		t.Errorf("expected schema violation, got %v", err)
	}
	if !strings.Contains(err.Error(), "project_name") || !strings.Contains(err.Error(), "languages") {
		t.Errorf("expected every violation to be reported, got %v", err)
	}
	if ExitCode(err) != 2 {
		t.Errorf("ExitCode = %d, want 2", ExitCode(err))
	}
}

func TestValidateCommand_UnknownPack(t *testing.T) {
	setupProject(t)

	if _, err := execute(t, "validate", "--pack", "nonexistent"); err == nil {
		t.Error("expected error for unknown pack")
	}
}

func TestPlanCommand_JSONOutput(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "plan", "--pack", "ci", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var view planView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v, output: %q", err, out)
	}

	var dests []string
	for _, task := range view.Tasks {
		dests = append(dests, task.Dest)
	}
	want := "README.md,.github/workflows/ci-py.yml,.github/workflows/ci-go.yml"
	if strings.Join(dests, ",") != want {
		t.Errorf("dests = %v, want %s", dests, want)
	}
	if view.Tasks[0].LoopIndex != nil || view.Tasks[2].LoopIndex == nil || *view.Tasks[2].LoopIndex != 1 {
		t.Errorf("unexpected loop indexes: %+v", view.Tasks)
	}
	if len(view.Hooks) != 1 || view.Hooks[0].Command != "actionlint" {
		t.Errorf("hooks = %+v", view.Hooks)
	}
}

func TestPlanCommand_Table(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "plan", "--pack", "ci")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"DEST", ".github/workflows/ci-go.yml", "Hooks (not run)", "3 files from 2 packs"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderCommand_PreviewWritesNothing(t *testing.T) {
	dir := setupProject(t)

	out, err := execute(t, "render", "--pack", "ci", "--print")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "==> README.md <==\n# demo\n") {
		t.Errorf("expected printed content, got:\n%s", out)
	}
	if !strings.Contains(out, "Digest") {
		t.Errorf("expected tree digest, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "README.md")); !os.IsNotExist(err) {
		t.Errorf("preview must not write files, stat err = %v", err)
	}
}

func TestRenderCommand_Out(t *testing.T) {
	dir := setupProject(t)
	outDir := filepath.Join(dir, "out")

	if _, err := execute(t, "render", "--pack", "ci", "--out", outDir); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, ".github", "workflows", "ci-go.yml"))
	if err != nil {
		t.Fatalf("expected rendered workflow: %v", err)
	}
	if string(data) != "name: ci-go\n" {
		t.Errorf("content = %q", data)
	}

	readme := filepath.Join(outDir, "README.md")
	if err := os.WriteFile(readme, []byte("# edited\n"), 0644); err != nil {
		t.Fatalf("failed to edit file: %v", err)
	}

	_, err = execute(t, "render", "--pack", "ci", "--out", outDir)
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	data, _ = os.ReadFile(readme)
	if string(data) != "# edited\n" {
		t.Errorf("conflicting file was overwritten: %q", data)
	}

	out, err := execute(t, "render", "--pack", "ci", "--out", outDir, "--force", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var result renderOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v, output: %q", err, out)
	}
	if result.Write == nil || strings.Join(result.Write.Written, ",") != "README.md" || len(result.Write.Unchanged) != 2 {
		t.Errorf("unexpected write result: %+v", result.Write)
	}
	data, _ = os.ReadFile(readme)
	if string(data) != "# demo\n" {
		t.Errorf("forced write did not restore content: %q", data)
	}
}

func TestDriftCommand(t *testing.T) {
	dir := setupProject(t)

	out, err := execute(t, "drift", "--pack", "ci", "--name-status")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "A\tREADME.md") {
		t.Errorf("expected missing files reported as added, got:\n%s", out)
	}

	if _, err := execute(t, "render", "--pack", "ci", "--out", dir); err != nil {
		t.Fatalf("render error = %v", err)
	}

	out, err = execute(t, "drift", "--pack", "ci", "--exit-code")
	if err != nil {
		t.Fatalf("expected no drift right after render, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "No drift detected") {
		t.Errorf("expected no-drift message, got:\n%s", out)
	}

	workflows := filepath.Join(dir, ".github", "workflows")
	if err := os.WriteFile(filepath.Join(workflows, "ci-py.yml"), []byte("name: changed\n"), 0644); err != nil {
		t.Fatalf("failed to edit file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workflows, "release.yml"), []byte("x\n"), 0644); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}

	out, err = execute(t, "drift", "--pack", "ci", "--exit-code")
	if !errors.Is(err, engine.ErrDrift) {
		t.Fatalf("expected drift error, got %v", err)
	}
	if ExitCode(err) != 1 || ErrorMessage(err) != "" {
		t.Errorf("drift exit should be 1 and silent, got %d %q", ExitCode(err), ErrorMessage(err))
	}
	for _, want := range []string{"-name: changed", "+name: ci-py", "release.yml", "2 files drifted"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	out, err = execute(t, "drift", "--pack", "ci", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var report struct {
		Entries []struct {
			Path  string `json:"path"`
			Class string `json:"class"`
		} `json:"entries"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v, output: %q", err, out)
	}
	var classes []string
	for _, e := range report.Entries {
		classes = append(classes, e.Path+"="+e.Class)
	}
	want := "README.md=identical,.github/workflows/ci-py.yml=modified,.github/workflows/ci-go.yml=identical,.github/workflows/release.yml=unmanaged"
	if strings.Join(classes, ",") != want {
		t.Errorf("entries = %v", classes)
	}
}

func TestPacksCommand_JSONOutput(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "packs", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var infos []engine.PackInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v, output: %q", err, out)
	}
	if len(infos) != 2 || infos[0].Name != "base" || infos[1].Name != "ci" {
		t.Fatalf("unexpected packs: %+v", infos)
	}
	if infos[1].DependsOn[0] != "base" || infos[1].Templates != 1 {
		t.Errorf("unexpected ci info: %+v", infos[1])
	}
}

func TestPacksCommand_Empty(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "packs", "--packs-dir", "nowhere")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "No packs found") {
		t.Errorf("expected empty state, got:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(out) != "1.2.3" {
		t.Errorf("version output = %q", out)
	}
}

func TestCommandHelp(t *testing.T) {
	commands := []string{"validate", "plan", "render", "drift", "packs"}

	for _, cmd := range commands {
		t.Run(cmd, func(t *testing.T) {
			resetFlags(t)
			rootCmd.SetArgs([]string{cmd, "--help"})
			var buf bytes.Buffer
			rootCmd.SetOut(&buf)

			if err := rootCmd.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.Contains(buf.String(), "Usage:") {
				t.Errorf("expected usage in help for %s, got:\n%s", cmd, buf.String())
			}
		})
	}
}
