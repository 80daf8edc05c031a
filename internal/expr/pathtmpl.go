package expr

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// PathTemplate is a destination path with `{{ field }}` placeholders. Only
// bare field references are allowed inside the braces.
type PathTemplate struct {
	raw   string
	parts []pathPart
}

type pathPart struct {
	text string
	ref  *FieldRef
}

// ParsePathTemplate splits src into literal text and placeholders.
func ParsePathTemplate(src string) (*PathTemplate, error) {
	t := &PathTemplate{raw: src}
	rest := src
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			if strings.Contains(rest, "}}") {
				return nil, fmt.Errorf("unmatched }} in %q", src)
			}
			if rest != "" {
				t.parts = append(t.parts, pathPart{text: rest})
			}
			return t, nil
		}
		if strings.Contains(rest[:open], "}}") {
			return nil, fmt.Errorf("unmatched }} in %q", src)
		}
		if open > 0 {
			t.parts = append(t.parts, pathPart{text: rest[:open]})
		}
		rest = rest[open+2:]

		end := strings.Index(rest, "}}")
		if end < 0 {
			return nil, fmt.Errorf("unterminated {{ in %q", src)
		}
		inner := strings.TrimSpace(rest[:end])
		if inner == "" {
			return nil, fmt.Errorf("empty placeholder in %q", src)
		}
		ref, err := ParseReference(inner, src)
		if err != nil {
			return nil, err
		}
		t.parts = append(t.parts, pathPart{ref: ref})
		rest = rest[end+2:]
	}
}

func (t *PathTemplate) String() string { return t.raw }

// References returns the placeholders in source order.
func (t *PathTemplate) References() []*FieldRef {
	var refs []*FieldRef
	for _, p := range t.parts {
		if p.ref != nil {
			refs = append(refs, p.ref)
		}
	}
	return refs
}

// Render substitutes every placeholder. Each substituted value is passed
// through filter (with the placeholder path as field name) before it is
// spliced in; a filter error aborts rendering.
func (t *PathTemplate) Render(scope Scope, filter func(field, value string) (string, error)) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.ref == nil {
			b.WriteString(p.text)
			continue
		}
		v, err := p.ref.Eval(scope)
		if err != nil {
			return "", fmt.Errorf("placeholder {{ %s }}: %w", p.ref.Path(), err)
		}
		if v.IsNull() {
			return "", fmt.Errorf("placeholder {{ %s }} is null", p.ref.Path())
		}
		if !v.Type().IsPrimitiveType() {
			return "", fmt.Errorf("placeholder {{ %s }} must be a string, number or bool, got %s", p.ref.Path(), v.Type().FriendlyName())
		}
		s := FormatValue(v)
		if filter != nil {
			s, err = filter(p.ref.Path(), s)
			if err != nil {
				return "", err
			}
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// CheckPrimitive reports whether ty can be substituted into a path.
func CheckPrimitive(ty cty.Type) bool {
	return ty == cty.DynamicPseudoType || ty.IsPrimitiveType()
}
