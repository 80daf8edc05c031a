// Package spec holds the validated project spec and the schema it is checked
// against. Values are cty values typed by the HCL type expressions that packs
// declare in their `variables` blocks.
package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/expr"
	"github.com/danieljhkim/stencil/internal/sanitize"
)

// Spec is a validated, immutable set of field values.
type Spec struct {
	values map[string]cty.Value
}

// Get returns the value of a field.
func (s *Spec) Get(name string) (cty.Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Names returns field names in sorted order.
func (s *Spec) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scope returns a fresh evaluation scope holding every field. Callers may add
// engine variables to it without affecting the Spec.
func (s *Spec) Scope() expr.Scope {
	scope := make(expr.Scope, len(s.values)+2)
	for k, v := range s.values {
		scope[k] = v
	}
	return scope
}

// ToNative returns the spec as plain Go values.
func (s *Spec) ToNative() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = ToNative(v)
	}
	return out
}

// Validate checks raw against schema and returns the typed Spec.
//
// Every field-level finding is collected in one pass: unknown fields,
// missing required fields, type mismatches, enum violations, homoglyphs in
// identifier fields and template-control sequences in any string. The
// returned error is an errs.Violations.
func Validate(raw map[string]any, schema *Schema) (*Spec, error) {
	var violations errs.Violations

	for _, name := range sortedKeys(raw) {
		if _, ok := schema.Field(name); ok {
			continue
		}
		if IsReserved(name) {
			violations.Add(errs.Semanticf(name, "%q is an engine variable and cannot be set by a spec", name))
			continue
		}
		violations.Add(errs.Schemaf(name, "a declared variable", describeNative(raw[name]), "unknown field"))
	}

	values := make(map[string]cty.Value, len(schema.fields))
	for _, name := range schema.Names() {
		f, _ := schema.Field(name)
		rawVal, present := raw[name]

		var v cty.Value
		switch {
		case present && rawVal != nil:
			converted, err := toType(rawVal, f.Type)
			if err != nil {
				violations.Add(errs.Schemaf(name, f.Type.FriendlyName(), describeNative(rawVal), "%v", err))
				continue
			}
			v = converted
		case f.HasDefault():
			v = f.Default
		case f.Required:
			violations.Add(errs.Schemaf(name, f.Type.FriendlyName(), "", "required field is missing"))
			continue
		default:
			v = cty.NullVal(f.Type)
		}

		if !inEnum(f.Enum, v) {
			violations.Add(errs.Schemaf(name, "one of "+enumList(f.Enum), expr.FormatValue(v), "value is not allowed"))
			continue
		}

		clean, findings := sanitizeStrings(name, v, f.Identifier)
		if len(findings) > 0 {
			violations = append(violations, findings...)
			continue
		}
		values[name] = clean
	}

	if err := violations.Err(); err != nil {
		return nil, err
	}
	return &Spec{values: values}, nil
}

// sanitizeStrings applies homoglyph normalization (identifier fields only)
// and the injection guard to every string inside v.
func sanitizeStrings(name string, v cty.Value, identifier bool) (cty.Value, errs.Violations) {
	var findings errs.Violations
	out, _ := cty.Transform(v, func(path cty.Path, leaf cty.Value) (cty.Value, error) {
		if leaf.IsNull() || !leaf.IsKnown() || leaf.Type() != cty.String {
			return leaf, nil
		}
		field := formatPath(name, path)
		s := leaf.AsString()
		if identifier {
			normalized, err := sanitize.Normalize(field, s)
			if err != nil {
				findings.Add(err)
				return leaf, nil
			}
			s = normalized
		}
		if err := sanitize.CheckValue(field, s); err != nil {
			findings.Add(err)
			return leaf, nil
		}
		return cty.StringVal(s), nil
	})
	return out, findings
}

func formatPath(name string, path cty.Path) string {
	var b strings.Builder
	b.WriteString(name)
	for _, step := range path {
		switch s := step.(type) {
		case cty.GetAttrStep:
			b.WriteString("." + s.Name)
		case cty.IndexStep:
			if s.Key.Type() == cty.String {
				b.WriteString("." + s.Key.AsString())
			} else {
				fmt.Fprintf(&b, "[%s]", expr.FormatValue(s.Key))
			}
		}
	}
	return b.String()
}
