package sanitize

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/danieljhkim/stencil/internal/errs"
)

// maxUnescapeRounds bounds repeated percent-decoding of nested encodings.
const maxUnescapeRounds = 4

// ResolvePath resolves candidate against base and returns the absolute path.
//
// candidate must be a relative, slash-separated path. It is rejected if it, or
// any decoded form of it, contains:
//   - NUL or other control characters
//   - an absolute override ("/etc", "C:\x", "\\host\share")
//   - a backslash separator
//   - a ".." segment
//
// Decoded forms are percent-decoding (applied until stable) and NFKC folding,
// which turns fullwidth "．．／" into "../". The cleaned result must still lie
// inside base. Every rejection is errs.ErrSecurity.
func ResolvePath(base, candidate string) (string, error) {
	rel, err := CleanRelPath(candidate)
	if err != nil {
		return "", err
	}

	base = filepath.Clean(base)
	abs := filepath.Join(base, filepath.FromSlash(rel))

	within, err := filepath.Rel(base, abs)
	if err != nil {
		return "", errs.Securityf(candidate, "cannot relate %q to target root: %v", candidate, err)
	}
	if within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", errs.Securityf(candidate, "path %q resolves to %q which is outside the target root", candidate, abs)
	}
	if within == "." {
		return "", errs.Securityf(candidate, "path %q resolves to the target root itself", candidate)
	}

	return abs, nil
}

// CleanRelPath applies every ResolvePath check that does not need a base and
// returns the cleaned slash-separated relative path.
func CleanRelPath(candidate string) (string, error) {
	if strings.TrimSpace(candidate) == "" {
		return "", errs.Securityf(candidate, "empty path")
	}

	for _, form := range decodedForms(candidate) {
		if err := checkPathForm(candidate, form); err != nil {
			return "", err
		}
	}

	cleaned := path.Clean(candidate)
	if cleaned == "." {
		return "", errs.Securityf(candidate, "path %q resolves to the target root itself", candidate)
	}
	return cleaned, nil
}

// decodedForms returns candidate plus every distinct decoding of it.
func decodedForms(candidate string) []string {
	forms := []string{candidate}
	current := candidate
	for i := 0; i < maxUnescapeRounds; i++ {
		decoded, err := url.PathUnescape(current)
		if err != nil || decoded == current {
			break
		}
		forms = append(forms, decoded)
		current = decoded
	}

	n := len(forms)
	for _, f := range forms[:n] {
		if folded := norm.NFKC.String(f); folded != f {
			forms = append(forms, folded)
		}
	}
	return forms
}

func checkPathForm(original, form string) error {
	for _, r := range form {
		if r == 0 || unicode.IsControl(r) {
			return errs.Securityf(original, "control character %U in path %q", r, original)
		}
	}

	if strings.Contains(form, `\`) {
		return errs.Securityf(original, "backslash in path %q", original)
	}
	if strings.HasPrefix(form, "/") || filepath.IsAbs(form) || hasDriveLetter(form) {
		return errs.Securityf(original, "absolute path %q not allowed", original)
	}
	for _, segment := range strings.Split(form, "/") {
		if segment == ".." {
			return errs.Securityf(original, "path traversal not allowed in %q", original)
		}
	}
	return nil
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Within reports whether target lies strictly inside base. Both must be
// absolute and already cleaned.
func Within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
