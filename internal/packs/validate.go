package packs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/mod/semver"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/expr"
	"github.com/danieljhkim/stencil/internal/fsops"
	"github.com/danieljhkim/stencil/internal/graph"
	"github.com/danieljhkim/stencil/internal/sanitize"
	"github.com/danieljhkim/stencil/internal/spec"
)

// ValidateSet checks the structure of a pack set and returns it in dependency
// order (dependencies first, ties broken by name).
//
// Findings on names, versions, descriptors and dependencies are collected. A
// template source that escapes its pack and a dependency cycle abort
// immediately.
func ValidateSet(set []*Pack) ([]*Pack, error) {
	var violations errs.Violations
	byName := make(map[string]*Pack, len(set))
	names := make([]string, 0, len(set))

	for _, p := range set {
		name := p.Name()
		where := name + ":name"

		if err := fsops.ValidateIdentifier(name); err != nil {
			violations.Add(errs.Schemaf(where, "pack name", name, "%v", err))
			continue
		}
		normalized, err := sanitize.Normalize(where, name)
		if err != nil {
			violations.Add(err)
			continue
		}
		if normalized != name {
			violations.Add(errs.Securityf(where, "pack name %q is not in normalized form (%q)", name, normalized))
			continue
		}
		if _, dup := byName[name]; dup {
			violations.Add(errs.Semanticf(where, "pack %q is declared more than once", name))
			continue
		}
		byName[name] = p
		names = append(names, name)

		if !semver.IsValid(canonicalVersion(p.Manifest.Version)) {
			violations.Add(errs.Schemaf(name+":version", "semantic version", p.Manifest.Version, "invalid version"))
		}

		if err := p.Compile(); err != nil {
			if errs.KindOf(err) == errs.ErrSecurity && !isViolations(err) {
				return nil, err
			}
			violations.Add(err)
		}

		for i, glob := range p.Manifest.Ignore {
			if !doublestar.ValidatePattern(glob) {
				violations.Add(errs.Schemaf(fmt.Sprintf("%s:ignore[%d]", name, i), "glob pattern", glob, "invalid ignore pattern"))
			}
		}
	}

	base, ok := byName[BaseName]
	switch {
	case !ok:
		violations.Add(errs.Semanticf(BaseName, "pack %q is required", BaseName))
	case len(base.Manifest.DependsOn) > 0:
		violations.Add(errs.Semanticf(BaseName+":depends_on", "pack %q must not depend on other packs, got %v", BaseName, base.Manifest.DependsOn))
	}

	g := graph.New(names)
	for _, name := range names {
		for i, dep := range byName[name].Manifest.DependsOn {
			where := fmt.Sprintf("%s:depends_on[%d]", name, i)
			if !g.Has(dep) {
				violations.Add(errs.Semanticf(where, "pack %q depends on %q, which is not part of this run", name, dep))
				continue
			}
			if err := g.AddEdge(dep, name); err != nil {
				return nil, fmt.Errorf("failed to build pack graph: %w", err)
			}
		}
	}

	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	if ok {
		for _, name := range names {
			if name != BaseName && !g.Reachable(BaseName, name) {
				violations.Add(errs.Semanticf(name+":depends_on", "pack %q does not depend on %q, directly or transitively", name, BaseName))
			}
		}
	}

	if err := violations.Err(); err != nil {
		return nil, err
	}

	ordered := make([]*Pack, len(order))
	for i, name := range order {
		ordered[i] = byName[name]
	}
	return ordered, nil
}

// Declarations returns every pack's variables in pack order, for
// spec.BuildSchema.
func Declarations(ordered []*Pack) []spec.Declaration {
	var decls []spec.Declaration
	for _, p := range ordered {
		for _, v := range p.Manifest.Variables {
			decls = append(decls, spec.Declaration{Pack: p.Name(), Variable: v})
		}
	}
	return decls
}

// ValidateReferences checks every expression in the pack set against the
// schema: conditions must type-check to bool, loops must name a sequence
// field, and placeholders must resolve to a primitive value. Packs must be
// compiled.
func ValidateReferences(ordered []*Pack, schema *spec.Schema) error {
	var violations errs.Violations

	for _, p := range ordered {
		types := schema.Types()
		types[spec.PackVar] = spec.PackType

		for _, t := range p.Templates() {
			if t.When != nil {
				violations.Add(checkCondition(t.ID+".when", t.When, types))
			}

			scope := types
			if t.Loop != nil {
				scope = make(expr.Types, len(types)+2)
				for k, v := range types {
					scope[k] = v
				}

				elem := cty.DynamicPseudoType
				ty, err := t.Loop.Check(types)
				switch {
				case err != nil:
					violations.Add(referenceError(t.ID+".loop", err))
				case !spec.IsSequence(ty):
					violations.Add(errs.Schemaf(t.ID+".loop", "list", ty.FriendlyName(), "loop %s must name a sequence", t.Loop.Path()))
				default:
					elem = spec.ElementType(ty)
				}

				if _, clash := types[t.Alias]; clash {
					violations.Add(errs.Semanticf(t.ID+".as", "loop variable %q shadows a spec field", t.Alias))
				}
				scope[t.Alias] = elem
				scope[spec.LoopVar] = spec.LoopType
			}

			violations.Add(checkPlaceholders(t.ID+".dest", t.Dest, scope))
		}

		for _, h := range p.Hooks() {
			if h.When != nil {
				violations.Add(checkCondition(h.ID+".when", h.When, types))
			}
			for i, arg := range h.Args {
				violations.Add(checkPlaceholders(fmt.Sprintf("%s.args[%d]", h.ID, i), arg, types))
			}
		}
	}

	return violations.Err()
}

func checkCondition(where string, e expr.Expr, types expr.Types) error {
	ty, err := e.Check(types)
	if err != nil {
		return referenceError(where, err)
	}
	if ty != cty.Bool && ty != cty.DynamicPseudoType {
		return errs.Schemaf(where, "bool", ty.FriendlyName(), "condition %s is not a boolean", e)
	}
	return nil
}

func checkPlaceholders(where string, t *expr.PathTemplate, types expr.Types) error {
	var violations errs.Violations
	for _, ref := range t.References() {
		ty, err := ref.Check(types)
		if err != nil {
			violations.Add(referenceError(where, err))
			continue
		}
		if !expr.CheckPrimitive(ty) {
			violations.Add(errs.Schemaf(where, "string, number or bool", ty.FriendlyName(), "placeholder {{ %s }} cannot be used in a path", ref.Path()))
		}
	}
	return violations.Err()
}

func referenceError(where string, err error) error {
	var undef *expr.UndefinedError
	if errors.As(err, &undef) {
		return errs.Semanticf(where, "unresolved reference %q", undef.Name)
	}
	return errs.Semanticf(where, "%v", err)
}

// canonicalVersion adds the leading v semver expects.
func canonicalVersion(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func isViolations(err error) bool {
	var v errs.Violations
	return errors.As(err, &v)
}
