package sanitize

import (
	"strings"
	"unicode"

	"github.com/danieljhkim/stencil/internal/errs"
)

// controlSequences are template-control openers and closers recognized by the
// renderer and by the formats packs commonly emit (workflow expressions,
// Jinja, Go templates).
var controlSequences = []string{"${", "%{", "{{", "}}", "{%", "%}"}

// CheckValue rejects a spec-originated string that carries template-control
// syntax or NUL bytes. Pack-authored template bodies are trusted and never
// pass through here; spec values are not.
func CheckValue(field, value string) error {
	if strings.ContainsRune(value, 0) {
		return errs.Securityf(field, "NUL byte in value")
	}
	for _, seq := range controlSequences {
		if strings.Contains(value, seq) {
			return errs.Securityf(field, "template control sequence %q in value %q", seq, value)
		}
	}
	return nil
}

// ShellArg returns value quoted as a single POSIX shell word. Values carrying
// control characters (newlines included) are rejected rather than escaped.
func ShellArg(field, value string) (string, error) {
	for _, r := range value {
		if unicode.IsControl(r) {
			return "", errs.Securityf(field, "control character %U in shell argument", r)
		}
	}
	if value == "" {
		return "''", nil
	}
	if isShellSafe(value) {
		return value, nil
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'", nil
}

func isShellSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./=:,+@%", r):
		default:
			return false
		}
	}
	return true
}
