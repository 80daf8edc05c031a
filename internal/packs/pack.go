package packs

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/expr"
	"github.com/danieljhkim/stencil/internal/sanitize"
	"github.com/danieljhkim/stencil/internal/spec"
)

// Pack is a manifest plus its template sources, held in memory.
type Pack struct {
	Manifest *Manifest

	// Dir is where the pack was loaded from; empty for in-memory packs.
	Dir string

	// Sources maps cleaned source ids to raw template bytes.
	Sources map[string][]byte

	templates []*Template
	hooks     []*CompiledHook
	compiled  bool
}

// Template is a descriptor with its expressions parsed.
type Template struct {
	ID     string
	Index  int
	Source string
	Dest   *expr.PathTemplate
	When   expr.Expr // nil means always
	Loop   *expr.FieldRef
	Alias  string
	Raw    bool
}

// CompiledHook is a hook with its argument templates parsed.
type CompiledHook struct {
	ID   string
	Name string
	Run  string
	Args []*expr.PathTemplate
	When expr.Expr
}

// New wraps a manifest and its sources. Source keys are cleaned so lookups
// match descriptors regardless of spelling ("./a.tmpl" vs "a.tmpl").
func New(m *Manifest, sources map[string][]byte) *Pack {
	p := &Pack{Manifest: m, Sources: make(map[string][]byte, len(sources))}
	for id, data := range sources {
		if clean, err := sanitize.CleanRelPath(id); err == nil {
			p.Sources[clean] = data
		}
	}
	return p
}

// Name returns the manifest name.
func (p *Pack) Name() string { return p.Manifest.Name }

// Source returns the bytes of a template source.
func (p *Pack) Source(id string) ([]byte, bool) {
	data, ok := p.Sources[id]
	return data, ok
}

// Templates returns the compiled descriptors in manifest order. Compile must
// have succeeded first.
func (p *Pack) Templates() []*Template { return p.templates }

// Hooks returns the compiled hooks in manifest order.
func (p *Pack) Hooks() []*CompiledHook { return p.hooks }

// Compile parses every descriptor and hook. A source path that escapes the
// templates directory aborts immediately; other findings are collected.
func (p *Pack) Compile() error {
	if p.compiled {
		return nil
	}

	var violations errs.Violations
	templates := make([]*Template, 0, len(p.Manifest.Templates))

	for i, d := range p.Manifest.Templates {
		id := DescriptorID(p.Name(), i)
		tmpl, err := compileDescriptor(id, i, d)
		if err != nil {
			if errs.KindOf(err) == errs.ErrSecurity {
				return err
			}
			violations.Add(err)
			continue
		}
		if _, ok := p.Sources[tmpl.Source]; !ok {
			violations.Add(errs.Semanticf(id+".source", "template source %q not found in pack %q", d.Source, p.Name()))
			continue
		}
		templates = append(templates, tmpl)
	}

	hooks := make([]*CompiledHook, 0, len(p.Manifest.Hooks))
	for i, h := range p.Manifest.Hooks {
		hook, err := compileHook(HookID(p.Name(), i), h)
		if err != nil {
			violations.Add(err)
			continue
		}
		hooks = append(hooks, hook)
	}

	if err := violations.Err(); err != nil {
		return err
	}

	p.templates = templates
	p.hooks = hooks
	p.compiled = true
	return nil
}

func compileDescriptor(id string, index int, d Descriptor) (*Template, error) {
	if d.Source == "" {
		return nil, errs.Schemaf(id+".source", "template source id", "", "source is required")
	}
	source, err := sanitize.CleanRelPath(d.Source)
	if err != nil {
		return nil, err
	}
	if d.Dest == "" {
		return nil, errs.Schemaf(id+".dest", "destination path", "", "dest is required")
	}

	var violations errs.Violations
	t := &Template{ID: id, Index: index, Source: source, Raw: d.Raw}

	if t.Dest, err = expr.ParsePathTemplate(d.Dest); err != nil {
		violations.Add(errs.Schemaf(id+".dest", "path template", d.Dest, "%v", err))
	}

	if strings.TrimSpace(d.When) != "" {
		if t.When, err = expr.ParseCondition(d.When, id+".when"); err != nil {
			violations.Add(errs.Schemaf(id+".when", "condition", d.When, "%v", err))
		}
	}

	switch {
	case d.Loop != "":
		if t.Loop, err = expr.ParseReference(d.Loop, id+".loop"); err != nil {
			violations.Add(errs.Schemaf(id+".loop", "field reference", d.Loop, "%v", err))
		}
		t.Alias = d.As
		if t.Alias == "" {
			t.Alias = DefaultAlias
		}
		if !validAlias(t.Alias) {
			violations.Add(errs.Schemaf(id+".as", "identifier", d.As, "invalid loop variable name"))
		} else if spec.IsReserved(t.Alias) {
			violations.Add(errs.Semanticf(id+".as", "loop variable %q shadows an engine variable", t.Alias))
		}
	case d.As != "":
		violations.Add(errs.Schemaf(id+".as", "loop", "", "as requires loop"))
	}

	if err := violations.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func compileHook(id string, h Hook) (*CompiledHook, error) {
	var violations errs.Violations
	if h.Name == "" {
		violations.Add(errs.Schemaf(id+".name", "hook name", "", "name is required"))
	}
	if strings.TrimSpace(h.Run) == "" {
		violations.Add(errs.Schemaf(id+".run", "command", "", "run is required"))
	} else if strings.Contains(h.Run, "{{") || strings.ContainsAny(h.Run, " \t\r\n") {
		violations.Add(errs.Schemaf(id+".run", "a single command name", h.Run, "arguments and placeholders belong in args"))
	}

	hook := &CompiledHook{ID: id, Name: h.Name, Run: h.Run}
	for i, arg := range h.Args {
		tmpl, err := expr.ParsePathTemplate(arg)
		if err != nil {
			violations.Add(errs.Schemaf(fmt.Sprintf("%s.args[%d]", id, i), "argument template", arg, "%v", err))
			continue
		}
		hook.Args = append(hook.Args, tmpl)
	}
	if strings.TrimSpace(h.When) != "" {
		when, err := expr.ParseCondition(h.When, id+".when")
		if err != nil {
			violations.Add(errs.Schemaf(id+".when", "condition", h.When, "%v", err))
		}
		hook.When = when
	}

	if err := violations.Err(); err != nil {
		return nil, err
	}
	return hook, nil
}

func validAlias(name string) bool {
	return hclsyntax.ValidIdentifier(name) && !strings.Contains(name, "-")
}
