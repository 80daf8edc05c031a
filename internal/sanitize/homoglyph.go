// Package sanitize validates and normalizes untrusted strings and paths.
//
// Everything that reaches a destination path or an identifier-like field
// (pack names, spec identifiers, path segments) passes through this package:
//   - Normalize: homoglyph canonicalization with rejection of ambiguous input
//   - ResolvePath: containment of a candidate path within a base directory
//   - CheckValue / ShellArg: injection guards for spec-originated values
//
// All rejections are errs.ErrSecurity.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/danieljhkim/stencil/internal/errs"
)

// confusables maps Cyrillic and Greek letters that render like Latin letters
// to their ASCII counterpart.
var confusables = map[rune]rune{
	// Cyrillic lowercase
	'а': 'a', 'е': 'e', 'һ': 'h', 'і': 'i', 'ј': 'j', 'к': 'k', 'о': 'o',
	'р': 'p', 'с': 'c', 'ѕ': 's', 'у': 'y', 'х': 'x', 'ԁ': 'd', 'ԛ': 'q',
	'ԝ': 'w',
	// Cyrillic uppercase
	'А': 'A', 'В': 'B', 'Е': 'E', 'І': 'I', 'Ј': 'J', 'К': 'K', 'М': 'M',
	'Н': 'H', 'О': 'O', 'Р': 'P', 'С': 'C', 'Т': 'T', 'Ѕ': 'S', 'Х': 'X',
	'Ү': 'Y',
	// Greek
	'α': 'a', 'ο': 'o', 'ρ': 'p', 'ν': 'v', 'ι': 'i', 'κ': 'k',
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Ζ': 'Z', 'Η': 'H', 'Ι': 'I', 'Κ': 'K',
	'Μ': 'M', 'Ν': 'N', 'Ο': 'O', 'Ρ': 'P', 'Τ': 'T', 'Υ': 'Y', 'Χ': 'X',
}

type script int

const (
	scriptNone script = iota
	scriptLatin
	scriptCyrillic
	scriptGreek
	scriptOther
)

func scriptOf(r rune) script {
	switch {
	case !unicode.IsLetter(r):
		return scriptNone
	case unicode.Is(unicode.Latin, r):
		return scriptLatin
	case unicode.Is(unicode.Cyrillic, r):
		return scriptCyrillic
	case unicode.Is(unicode.Greek, r):
		return scriptGreek
	default:
		return scriptOther
	}
}

// Normalize canonicalizes an identifier-like string.
//
// The input is NFKC-normalized (folding fullwidth and compatibility forms),
// then Cyrillic/Greek look-alikes mixed into Latin text are replaced by their
// ASCII counterpart. It rejects:
//   - invisible format characters (zero-width joiners, bidi overrides)
//   - control characters
//   - mixed-script text with a non-Latin letter that has no Latin counterpart
//   - single non-Latin-script text made entirely of Latin look-alikes
//
// field names the value in the returned error.
func Normalize(field, text string) (string, error) {
	folded := norm.NFKC.String(text)

	scripts := make(map[script]bool)
	for _, r := range folded {
		if unicode.Is(unicode.Cf, r) {
			return "", errs.Securityf(field, "invisible format character %U in %q", r, text)
		}
		if unicode.IsControl(r) {
			return "", errs.Securityf(field, "control character %U in %q", r, text)
		}
		if s := scriptOf(r); s != scriptNone {
			scripts[s] = true
		}
	}

	nonLatin := 0
	for s := range scripts {
		if s != scriptLatin {
			nonLatin++
		}
	}

	switch {
	case nonLatin == 0:
		return folded, nil

	case scripts[scriptLatin] || nonLatin > 1:
		// Mixed scripts: every foreign letter must have an unambiguous Latin twin.
		var b strings.Builder
		for _, r := range folded {
			if s := scriptOf(r); s == scriptNone || s == scriptLatin {
				b.WriteRune(r)
				continue
			}
			latin, ok := confusables[r]
			if !ok {
				return "", errs.Securityf(field, "ambiguous mixed-script identifier %q (%c has no Latin equivalent)", text, r)
			}
			b.WriteRune(latin)
		}
		return b.String(), nil

	default:
		// A single non-Latin script is legitimate unless it spoofs a Latin word.
		for _, r := range folded {
			if scriptOf(r) == scriptNone {
				continue
			}
			if _, ok := confusables[r]; !ok {
				return folded, nil
			}
		}
		return "", errs.Securityf(field, "whole-script confusable identifier %q", text)
	}
}
