// Package errs defines the error taxonomy shared by every pipeline stage.
//
// Each failure carries one of a small set of kinds so callers can branch on
// errors.Is without parsing messages:
//   - ErrSchema: a spec or manifest field has the wrong shape
//   - ErrSemantic: unresolved reference, missing dependency, dependency cycle
//   - ErrSecurity: path escape, disallowed homoglyph, injection attempt
//   - ErrPlanConflict: two tasks resolve to the same destination
//   - ErrRender: undefined variable or template syntax error
//   - ErrDriftIO: a required path under the existing root is unreadable
//
// Field-level findings are collected into Violations so a single validation
// pass can report all of them together.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema indicates a schema violation.
	ErrSchema = errors.New("schema violation")

	// ErrSemantic indicates a semantic error.
	ErrSemantic = errors.New("semantic error")

	// ErrSecurity indicates a security rejection. It is never downgraded.
	ErrSecurity = errors.New("security rejection")

	// ErrPlanConflict indicates a duplicate destination path in a plan.
	ErrPlanConflict = errors.New("plan conflict")

	// ErrRender indicates a template could not be rendered.
	ErrRender = errors.New("render error")

	// ErrDriftIO indicates a required path could not be read during drift detection.
	ErrDriftIO = errors.New("drift io error")
)

// Error is a single classified failure.
type Error struct {
	// Kind is one of the package sentinels.
	Kind error

	// Field is the dotted path of the offending field (optional).
	Field string

	// Expected describes what was required (optional).
	Expected string

	// Actual describes what was found (optional).
	Actual string

	// Msg is a human-readable description.
	Msg string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		fmt.Fprintf(&b, " at %s", e.Field)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, " (expected %s, got %s)", orNone(e.Expected), orNone(e.Actual))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Schemaf returns a schema violation for field.
func Schemaf(field, expected, actual, format string, args ...any) *Error {
	return &Error{Kind: ErrSchema, Field: field, Expected: expected, Actual: actual, Msg: fmt.Sprintf(format, args...)}
}

// Semanticf returns a semantic error.
func Semanticf(field, format string, args ...any) *Error {
	return &Error{Kind: ErrSemantic, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Securityf returns a security rejection.
func Securityf(field, format string, args ...any) *Error {
	return &Error{Kind: ErrSecurity, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Renderf returns a render error.
func Renderf(template, field, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if template != "" {
		msg = fmt.Sprintf("template %s: %s", template, msg)
	}
	return &Error{Kind: ErrRender, Field: field, Msg: msg}
}

// DriftIOf returns a drift io error.
func DriftIOf(path, format string, args ...any) *Error {
	return &Error{Kind: ErrDriftIO, Field: path, Msg: fmt.Sprintf(format, args...)}
}

// Violations aggregates independent findings from one validation pass.
type Violations []*Error

// Add appends err if it is non-nil. Errors that are not *Error are wrapped as
// schema violations so nothing is dropped.
func (v *Violations) Add(err error) {
	if err == nil {
		return
	}
	var e *Error
	if errors.As(err, &e) {
		*v = append(*v, e)
		return
	}
	var nested Violations
	if errors.As(err, &nested) {
		*v = append(*v, nested...)
		return
	}
	*v = append(*v, &Error{Kind: ErrSchema, Msg: err.Error()})
}

// Err returns nil when there are no violations.
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v Violations) Error() string {
	if len(v) == 1 {
		return v[0].Error()
	}
	lines := make([]string, 0, len(v))
	for _, e := range v {
		lines = append(lines, e.Error())
	}
	return fmt.Sprintf("%d violations:\n- %s", len(v), strings.Join(lines, "\n- "))
}

// Kind reports the most severe kind contained.
func (v Violations) Kind() error {
	var kind error
	for _, e := range v {
		if rank(e.Kind) > rank(kind) {
			kind = e.Kind
		}
	}
	return kind
}

// Is matches any contained kind, so errors.Is(v, ErrSecurity) holds when a
// single security finding is present among schema violations.
func (v Violations) Is(target error) bool {
	for _, e := range v {
		if e.Kind == target {
			return true
		}
	}
	return false
}

func rank(kind error) int {
	switch kind {
	case ErrSecurity:
		return 3
	case ErrSemantic:
		return 2
	case ErrSchema:
		return 1
	default:
		return 0
	}
}

// KindOf returns the taxonomy kind of err, or nil if err is unclassified.
func KindOf(err error) error {
	var v Violations
	if errors.As(err, &v) {
		return v.Kind()
	}
	for _, kind := range []error{ErrSecurity, ErrSemantic, ErrSchema, ErrPlanConflict, ErrRender, ErrDriftIO} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
