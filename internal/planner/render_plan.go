package planner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/stencil/internal/errs"
	"github.com/danieljhkim/stencil/internal/expr"
	"github.com/danieljhkim/stencil/internal/packs"
	"github.com/danieljhkim/stencil/internal/sanitize"
	"github.com/danieljhkim/stencil/internal/spec"
)

// BuildRenderPlan generates a deterministic plan for rendering orderedPacks
// against s into targetRoot.
//
// Packs must be compiled and in dependency order (packs.ValidateSet). Tasks
// follow pack order, then manifest order, then loop element order. Planning
// stops at the first error; path escapes are errs.ErrSecurity and collisions
// are a *ConflictError.
func BuildRenderPlan(s *spec.Spec, orderedPacks []*packs.Pack, targetRoot string) (*RenderPlan, error) {
	root := filepath.Clean(targetRoot)
	names := make([]string, len(orderedPacks))
	for i, p := range orderedPacks {
		names[i] = p.Name()
	}

	plan := NewRenderPlan(root, names)
	checker := NewConflictChecker()

	for _, p := range orderedPacks {
		scope := s.Scope()
		scope[spec.PackVar] = spec.PackValue(p.Name(), p.Manifest.Version)

		for _, t := range p.Templates() {
			tasks, err := expand(p, t, scope, root)
			if err != nil {
				return nil, err
			}
			for _, task := range tasks {
				if err := checker.Claim(task.Dest, task.Descriptor); err != nil {
					return nil, err
				}
				plan.AddTask(task)
			}
		}

		for _, h := range p.Hooks() {
			hook, ok, err := planHook(p, h, scope)
			if err != nil {
				return nil, err
			}
			if ok {
				plan.AddHook(hook)
			}
		}
	}

	return plan, nil
}

// expand produces the tasks of one descriptor: none when its condition is
// false, one per element when it loops, one otherwise.
func expand(p *packs.Pack, t *packs.Template, scope expr.Scope, root string) ([]RenderTask, error) {
	if t.When != nil {
		ok, err := expr.EvalBool(t.When, scope)
		if err != nil {
			return nil, errs.Semanticf(t.ID+".when", "cannot evaluate %s: %v", t.When, err)
		}
		if !ok {
			return nil, nil
		}
	}

	if t.Loop == nil {
		task, err := newTask(p, t, scope, root, -1)
		if err != nil {
			return nil, err
		}
		return []RenderTask{task}, nil
	}

	seq, err := t.Loop.Eval(scope)
	if err != nil {
		return nil, errs.Semanticf(t.ID+".loop", "cannot evaluate %s: %v", t.Loop.Path(), err)
	}
	if seq.IsNull() {
		return nil, nil
	}
	ty := seq.Type()
	if !ty.IsListType() && !ty.IsTupleType() {
		return nil, errs.Schemaf(t.ID+".loop", "list", ty.FriendlyName(), "loop %s must be a sequence", t.Loop.Path())
	}

	length := seq.LengthInt()
	tasks := make([]RenderTask, 0, length)
	it := seq.ElementIterator()
	for i := 0; it.Next(); i++ {
		_, elem := it.Element()

		local := make(expr.Scope, len(scope)+2)
		for k, v := range scope {
			local[k] = v
		}
		local[t.Alias] = elem
		local[spec.LoopVar] = spec.LoopValue(i, length)

		task, err := newTask(p, t, local, root, i)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func newTask(p *packs.Pack, t *packs.Template, scope expr.Scope, root string, ordinal int) (RenderTask, error) {
	where := t.ID + ".dest"
	if ordinal >= 0 {
		where = fmt.Sprintf("%s[%d].dest", t.ID, ordinal)
	}

	dest, err := t.Dest.Render(scope, func(field, value string) (string, error) {
		return sanitize.Normalize(where, value)
	})
	if err != nil {
		if errs.KindOf(err) == errs.ErrSecurity {
			return RenderTask{}, err
		}
		return RenderTask{}, errs.Semanticf(where, "cannot resolve %q: %v", t.Dest, err)
	}

	rel, err := sanitize.CleanRelPath(dest)
	if err != nil {
		return RenderTask{}, err
	}
	abs, err := sanitize.ResolvePath(root, rel)
	if err != nil {
		return RenderTask{}, err
	}

	return RenderTask{
		Pack:       p.Name(),
		Descriptor: t.ID,
		Index:      t.Index,
		Source:     t.Source,
		Dest:       rel,
		AbsDest:    abs,
		Context:    scope,
		LoopIndex:  ordinal,
		Raw:        t.Raw,
	}, nil
}

func planHook(p *packs.Pack, h *packs.CompiledHook, scope expr.Scope) (PlannedHook, bool, error) {
	if h.When != nil {
		ok, err := expr.EvalBool(h.When, scope)
		if err != nil {
			return PlannedHook{}, false, errs.Semanticf(h.ID+".when", "cannot evaluate %s: %v", h.When, err)
		}
		if !ok {
			return PlannedHook{}, false, nil
		}
	}

	words := []string{h.Run}
	for i, arg := range h.Args {
		where := fmt.Sprintf("%s.args[%d]", h.ID, i)
		value, err := arg.Render(scope, nil)
		if err != nil {
			return PlannedHook{}, false, errs.Semanticf(where, "cannot resolve %q: %v", arg, err)
		}
		quoted, err := sanitize.ShellArg(where, value)
		if err != nil {
			return PlannedHook{}, false, err
		}
		words = append(words, quoted)
	}

	return PlannedHook{
		Pack:    p.Name(),
		ID:      h.ID,
		Name:    h.Name,
		Command: strings.Join(words, " "),
	}, true, nil
}
