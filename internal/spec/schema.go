package spec

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/expr"
)

// Reserved names are bound by the engine and may not be declared as spec
// variables.
const (
	PackVar = "pack"
	LoopVar = "loop"
)

// IsReserved reports whether name is an engine-provided variable.
func IsReserved(name string) bool {
	return name == PackVar || name == LoopVar
}

// Variable is a spec field declaration as written in a pack manifest.
type Variable struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Enum        []any  `yaml:"enum,omitempty" json:"enum,omitempty"`
	Identifier  bool   `yaml:"identifier,omitempty" json:"identifier,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Declaration ties a Variable to the pack that declared it.
type Declaration struct {
	Pack     string
	Variable Variable
}

// Field is a resolved schema entry.
type Field struct {
	Name        string
	Type        cty.Type
	Required    bool
	Default     cty.Value // cty.NilVal when no default is declared
	Enum        []cty.Value
	Identifier  bool
	Description string
	DeclaredBy  []string
}

// HasDefault reports whether a default value was declared.
func (f *Field) HasDefault() bool {
	return f.Default != cty.NilVal
}

// Schema is the union of the variables declared by every pack in a run.
type Schema struct {
	fields map[string]*Field
}

// Field returns the named field.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Names returns field names in sorted order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Types returns the declared type of every field, for static checking of
// conditions.
func (s *Schema) Types() expr.Types {
	types := make(expr.Types, len(s.fields))
	for name, f := range s.fields {
		types[name] = f.Type
	}
	return types
}

// BuildSchema resolves declarations, in the order given, into a Schema.
// A variable declared by several packs must agree on type, default and enum;
// required and identifier flags are combined.
func BuildSchema(decls []Declaration) (*Schema, error) {
	s := &Schema{fields: make(map[string]*Field)}
	var violations errs.Violations

	for _, d := range decls {
		f, err := resolveField(d)
		if err != nil {
			violations.Add(err)
			continue
		}

		existing, ok := s.fields[f.Name]
		if !ok {
			s.fields[f.Name] = f
			continue
		}
		if err := merge(existing, f); err != nil {
			violations.Add(err)
		}
	}

	if err := violations.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func resolveField(d Declaration) (*Field, error) {
	v := d.Variable
	where := fmt.Sprintf("%s:variables.%s", d.Pack, v.Name)

	// Hyphens are valid HCL identifier characters but would read as
	// subtraction inside a condition.
	if !hclsyntax.ValidIdentifier(v.Name) || strings.Contains(v.Name, "-") {
		return nil, errs.Schemaf(where, "identifier", v.Name, "invalid variable name %q", v.Name)
	}
	if IsReserved(v.Name) {
		return nil, errs.Semanticf(where, "variable name %q is reserved", v.Name)
	}

	ty, err := ParseType(v.Type)
	if err != nil {
		return nil, errs.Schemaf(where+".type", "type expression", v.Type, "%v", err)
	}

	f := &Field{
		Name:        v.Name,
		Type:        ty,
		Required:    v.Required,
		Default:     cty.NilVal,
		Identifier:  v.Identifier,
		Description: v.Description,
		DeclaredBy:  []string{d.Pack},
	}

	if len(v.Enum) > 0 {
		if !ty.IsPrimitiveType() {
			return nil, errs.Schemaf(where+".enum", "primitive type", ty.FriendlyName(), "enum requires a string, number or bool type")
		}
		for i, raw := range v.Enum {
			ev, err := toType(raw, ty)
			if err != nil {
				return nil, errs.Schemaf(fmt.Sprintf("%s.enum[%d]", where, i), ty.FriendlyName(), describeNative(raw), "%v", err)
			}
			f.Enum = append(f.Enum, ev)
		}
	}

	if v.Default != nil {
		dv, err := toType(v.Default, ty)
		if err != nil {
			return nil, errs.Schemaf(where+".default", ty.FriendlyName(), describeNative(v.Default), "%v", err)
		}
		if !inEnum(f.Enum, dv) {
			return nil, errs.Schemaf(where+".default", "one of "+enumList(f.Enum), expr.FormatValue(dv), "default is not an allowed value")
		}
		f.Default = dv
	}

	if v.Identifier && !(ty == cty.String || ty == cty.DynamicPseudoType || (ty.IsCollectionType() && ty.ElementType() == cty.String)) {
		return nil, errs.Schemaf(where+".identifier", "string", ty.FriendlyName(), "identifier applies to string fields only")
	}

	return f, nil
}

func merge(into, f *Field) error {
	where := fmt.Sprintf("%s:variables.%s", f.DeclaredBy[0], f.Name)
	if !into.Type.Equals(f.Type) {
		return errs.Semanticf(where, "variable %q is declared as %s by %v and as %s here",
			f.Name, into.Type.FriendlyName(), into.DeclaredBy, f.Type.FriendlyName())
	}
	if f.HasDefault() {
		if into.HasDefault() && into.Default.Equals(f.Default).False() {
			return errs.Semanticf(where, "variable %q has conflicting defaults across packs %v", f.Name, into.DeclaredBy)
		}
		into.Default = f.Default
	}
	if len(f.Enum) > 0 {
		if len(into.Enum) > 0 && !slices.EqualFunc(into.Enum, f.Enum, func(a, b cty.Value) bool { return a.RawEquals(b) }) {
			return errs.Semanticf(where, "variable %q has conflicting enums across packs %v", f.Name, into.DeclaredBy)
		}
		into.Enum = f.Enum
	}
	if into.Description == "" {
		into.Description = f.Description
	}
	into.Required = into.Required || f.Required
	into.Identifier = into.Identifier || f.Identifier
	into.DeclaredBy = append(into.DeclaredBy, f.DeclaredBy...)
	return nil
}

func toType(raw any, ty cty.Type) (cty.Value, error) {
	v, err := FromNative(raw)
	if err != nil {
		return cty.NilVal, err
	}
	out, err := convert.Convert(v, ty)
	if err != nil {
		return cty.NilVal, err
	}
	return out, nil
}

func inEnum(enum []cty.Value, v cty.Value) bool {
	if len(enum) == 0 || v.IsNull() {
		return true
	}
	for _, e := range enum {
		if e.Equals(v).True() {
			return true
		}
	}
	return false
}

func enumList(enum []cty.Value) string {
	out := "["
	for i, e := range enum {
		if i > 0 {
			out += ", "
		}
		out += expr.FormatValue(e)
	}
	return out + "]"
}
