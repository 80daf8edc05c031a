package drift

import (
	"strings"
	"testing"
)

func TestGenerateUnifiedDiff_ModifiedFile(t *testing.T) {
	diff, additions, deletions := generateUnifiedDiff(
		"test.txt",
		[]byte("line1\nline2\nline3\n"),
		[]byte("line1\nline-two\nline3\n"),
		"modified",
		0,
	)

	if additions != 1 {
		t.Fatalf("additions = %d, want 1", additions)
	}
	if deletions != 1 {
		t.Fatalf("deletions = %d, want 1", deletions)
	}

	checks := []string{
		"diff --git a/test.txt b/test.txt",
		"--- a/test.txt",
		"+++ b/test.txt",
		"@@",
		"-line2",
		"+line-two",
	}
	for _, want := range checks {
		if !strings.Contains(diff, want) {
			t.Fatalf("diff missing %q:\n%s", want, diff)
		}
	}
}

func TestGenerateUnifiedDiff_AddedFile(t *testing.T) {
	diff, additions, deletions := generateUnifiedDiff(
		"new.txt",
		nil,
		[]byte("first\nsecond\n"),
		"added",
		0,
	)

	if additions != 2 {
		t.Fatalf("additions = %d, want 2", additions)
	}
	if deletions != 0 {
		t.Fatalf("deletions = %d, want 0", deletions)
	}

	checks := []string{
		"--- /dev/null",
		"+++ b/new.txt",
		"+first",
		"+second",
	}
	for _, want := range checks {
		if !strings.Contains(diff, want) {
			t.Fatalf("diff missing %q:\n%s", want, diff)
		}
	}
}

func TestGenerateUnifiedDiff_Identical(t *testing.T) {
	diff, additions, deletions := generateUnifiedDiff("same.txt", []byte("a\n"), []byte("a\n"), "modified", 0)
	if diff != "" || additions != 0 || deletions != 0 {
		t.Fatalf("expected empty diff, got +%d/-%d:\n%s", additions, deletions, diff)
	}
}

func TestGenerateUnifiedDiff_MissingTrailingNewline(t *testing.T) {
	diff, additions, deletions := generateUnifiedDiff("f", []byte("a\nb"), []byte("a\nc"), "modified", 0)
	if additions != 1 || deletions != 1 {
		t.Fatalf("line stats = +%d/-%d, want +1/-1", additions, deletions)
	}
	if !strings.Contains(diff, "-b\n\\ No newline at end of file\n") || !strings.Contains(diff, "+c\n\\ No newline at end of file\n") {
		t.Fatalf("unexpected diff:\n%s", diff)
	}

	diff, additions, deletions = generateUnifiedDiff("README.md", []byte("# foo"), []byte("# foo\n"), "modified", 0)
	if additions != 1 || deletions != 1 {
		t.Fatalf("line stats = +%d/-%d, want +1/-1", additions, deletions)
	}
	want := "-# foo\n\\ No newline at end of file\n+# foo\n"
	if !strings.Contains(diff, want) {
		t.Fatalf("diff missing %q:\n%s", want, diff)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a\n\\ No newline at end of file\n"}},
		{"a\nb", []string{"a\n", "b\n\\ No newline at end of file\n"}},
		{"a\n", []string{"a\n"}},
		{"a\nb\n", []string{"a\n", "b\n"}},
		{"a\n\n", []string{"a\n", "\n"}},
	}
	for _, tt := range tests {
		got := splitLines(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
