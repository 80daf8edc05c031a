package drift

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// defaultContext is the number of unchanged lines shown around each hunk.
const defaultContext = 3

// generateUnifiedDiff renders a git-style diff from oldContent to newContent.
// status "added" diffs from /dev/null. It also returns the number of added
// and deleted lines.
func generateUnifiedDiff(path string, oldContent, newContent []byte, status string, context int) (string, int, int) {
	if context <= 0 {
		context = defaultContext
	}

	a := splitLines(string(oldContent))
	b := splitLines(string(newContent))

	fromFile := "a/" + path
	if status == "added" {
		fromFile = "/dev/null"
		a = nil
	}

	body, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: fromFile,
		ToFile:   "b/" + path,
		Context:  context,
	})
	if err != nil || body == "" {
		return "", 0, 0
	}

	additions, deletions := 0, 0
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'r':
			deletions += op.I2 - op.I1
			additions += op.J2 - op.J1
		case 'd':
			deletions += op.I2 - op.I1
		case 'i':
			additions += op.J2 - op.J1
		}
	}

	return fmt.Sprintf("diff --git a/%s b/%s\n%s", path, path, body), additions, deletions
}

// noNewlineMarker follows a final line that lacks a newline, as in git.
const noNewlineMarker = "\\ No newline at end of file\n"

// splitLines splits s after each newline. A final line without a newline
// carries the git marker, so content differing only in its trailing newline
// still produces a hunk.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n" + noNewlineMarker
	}
	return lines
}

// binaryDiff is the git placeholder for content that is not shown as text.
func binaryDiff(path string) string {
	return fmt.Sprintf("diff --git a/%s b/%s\nBinary files a/%s and b/%s differ\n", path, path, path, path)
}
