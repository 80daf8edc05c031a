// Package render evaluates a RenderPlan into a VirtualTree.
//
// Template bodies use HCL template syntax: `${ field }` interpolation,
// `%{ if cond }...%{ endif }` and `%{ for x in list }...%{ endfor }`. They are
// evaluated with no functions in scope, so a template can read variables but
// cannot call code. Rendering performs no I/O and reads no clock, randomness
// or environment; identical plans render to identical trees.
package render

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/packs"
	"github.com/danieljhkim/stencil/internal/planner"
	"github.com/danieljhkim/stencil/internal/vtree"
)

// Sources looks up template bytes by pack and source id.
type Sources interface {
	Lookup(pack, source string) ([]byte, bool)
}

// PackSources serves sources from loaded packs.
type PackSources map[string]*packs.Pack

// FromPacks indexes packs by name.
func FromPacks(set []*packs.Pack) PackSources {
	out := make(PackSources, len(set))
	for _, p := range set {
		out[p.Name()] = p
	}
	return out
}

// Lookup returns the bytes of source in pack.
func (s PackSources) Lookup(pack, source string) ([]byte, bool) {
	p, ok := s[pack]
	if !ok {
		return nil, false
	}
	return p.Source(source)
}

// Render renders every task of plan, in order, into a new tree. It stops at
// the first error.
func Render(plan *planner.RenderPlan, sources Sources) (*vtree.Tree, error) {
	r := &renderer{sources: sources, parsed: make(map[string]hclsyntax.Expression)}
	tree := vtree.New()

	for _, task := range plan.Tasks {
		content, opaque, err := r.renderTask(task)
		if err != nil {
			return nil, err
		}
		err = tree.Add(vtree.Entry{
			Path:       task.Dest,
			Content:    content,
			Pack:       task.Pack,
			Descriptor: task.Descriptor,
			Source:     task.Source,
			Opaque:     opaque,
		})
		if err != nil {
			return nil, err
		}
	}
	return tree, nil
}

type renderer struct {
	sources Sources

	// parsed caches templates by name so loop instances parse once
	parsed map[string]hclsyntax.Expression
}

func (r *renderer) renderTask(task planner.RenderTask) ([]byte, bool, error) {
	name := templateName(task.Pack, task.Source)
	data, ok := r.sources.Lookup(task.Pack, task.Source)
	if !ok {
		return nil, false, errs.Renderf(name, task.Descriptor, "template source not loaded")
	}

	if IsOpaque(data) || task.Raw {
		out := make([]byte, len(data))
		copy(out, data)
		return out, true, nil
	}

	tmpl, err := r.parse(name, data)
	if err != nil {
		return nil, false, err
	}
	out, err := Evaluate(name, tmpl, task.Context)
	if err != nil {
		return nil, false, err
	}
	return out, false, nil
}

func (r *renderer) parse(name string, data []byte) (hclsyntax.Expression, error) {
	if tmpl, ok := r.parsed[name]; ok {
		return tmpl, nil
	}
	tmpl, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	r.parsed[name] = tmpl
	return tmpl, nil
}

// IsOpaque reports whether data must be copied without evaluation: it is not
// valid UTF-8 or it contains a NUL byte.
func IsOpaque(data []byte) bool {
	return !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0
}

// Parse parses a template body.
func Parse(name string, data []byte) (hclsyntax.Expression, error) {
	tmpl, diags := hclsyntax.ParseTemplate(data, name, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errs.Renderf(name, "", "syntax error: %s", diags.Error())
	}
	return tmpl, nil
}

// Evaluate renders a parsed template against vars. Every root variable the
// template reads must be present; the first missing one is reported by name.
func Evaluate(name string, tmpl hclsyntax.Expression, vars map[string]cty.Value) ([]byte, error) {
	for _, traversal := range hclsyntax.Variables(tmpl) {
		root := traversal.RootName()
		if _, ok := vars[root]; !ok {
			rng := traversal.SourceRange()
			return nil, errs.Renderf(name, root, "undefined variable %q at line %d", root, rng.Start.Line)
		}
	}

	ctx := &hcl.EvalContext{
		Variables: vars,
		Functions: nil,
	}
	val, diags := tmpl.Value(ctx)
	if diags.HasErrors() {
		return nil, errs.Renderf(name, "", "%s", diags.Error())
	}

	if val.IsNull() {
		return nil, errs.Renderf(name, "", "template evaluated to null")
	}
	if !val.IsWhollyKnown() {
		return nil, errs.Renderf(name, "", "template result is not known")
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return nil, errs.Renderf(name, "", "template result must be a string, got %s", val.Type().FriendlyName())
	}
	return []byte(str.AsString()), nil
}

func templateName(pack, source string) string {
	return fmt.Sprintf("%s/%s", pack, source)
}
