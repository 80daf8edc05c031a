// Package engine provides the core orchestration for stencil operations.
//
// The engine package sits between the CLI and the pipeline packages. It
// resolves packs, validates manifests and the spec, builds the render plan,
// renders the VirtualTree, detects drift, and persists a tree on request.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Validate: packs -> schema -> spec -> references, producing a Run
//   - Plan/Render: pure, deterministic stages over a Run
//   - DetectDrift: re-plans and re-renders, then compares with disk
//   - Write: the caller-side writer with overwrite protection
package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/danieljhkim/stencil/internal/ctxlog"
	"github.com/danieljhkim/stencil/internal/drift"
	"github.com/danieljhkim/stencil/internal/fsops"
	"github.com/danieljhkim/stencil/internal/hash"
	"github.com/danieljhkim/stencil/internal/packs"
	"github.com/danieljhkim/stencil/internal/planner"
	"github.com/danieljhkim/stencil/internal/render"
	"github.com/danieljhkim/stencil/internal/spec"
	"github.com/danieljhkim/stencil/internal/vtree"
)

// Engine orchestrates all stencil operations.
// It is the main API surface called by the CLI.
type Engine struct {
	packRepo packs.PackRepo
	fs       fsops.FS
	hasher   hash.Hasher
}

// New creates a new Engine with the given dependencies.
func New(packRepo packs.PackRepo, fs fsops.FS, hasher hash.Hasher) *Engine {
	return &Engine{
		packRepo: packRepo,
		fs:       fs,
		hasher:   hasher,
	}
}

// Validate resolves and validates everything a render needs: the pack set,
// the schema their variables form, the spec against that schema, and every
// expression in the packs against the schema.
func (e *Engine) Validate(ctx context.Context, req *ValidateRequest) (*Run, error) {
	log := ctxlog.FromContext(ctx)

	root, err := resolveTargetRoot(req.Target, req.CWD)
	if err != nil {
		return nil, err
	}

	raw := req.Spec
	if raw == nil {
		if req.SpecPath == "" {
			return nil, fmt.Errorf("%w: no spec given", ErrValidation)
		}
		log.Debug("loading spec", "path", req.SpecPath)
		raw, err = spec.Load(req.SpecPath)
		if err != nil {
			return nil, err
		}
	}

	log.Debug("resolving packs", "requested", req.Packs)
	set, err := packs.Resolve(e.packRepo, req.Packs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve packs: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ordered, err := packs.ValidateSet(set)
	if err != nil {
		return nil, err
	}

	schema, err := spec.BuildSchema(packs.Declarations(ordered))
	if err != nil {
		return nil, err
	}

	validated, err := spec.Validate(raw, schema)
	if err != nil {
		return nil, err
	}

	if err := packs.ValidateReferences(ordered, schema); err != nil {
		return nil, err
	}

	run := &Run{Packs: ordered, Schema: schema, Spec: validated, Root: root}
	log.Info("validated", "packs", run.PackNames(), "fields", len(schema.Names()), "root", root)
	return run, nil
}

// Plan builds the render plan for a validated run.
func (e *Engine) Plan(ctx context.Context, run *Run) (*planner.RenderPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := ctxlog.FromContext(ctx)
	log.Debug("planning", "packs", run.PackNames())

	plan, err := planner.BuildRenderPlan(run.Spec, run.Packs, run.Root)
	if err != nil {
		return nil, err
	}

	log.Info("planned", "tasks", len(plan.Tasks), "hooks", len(plan.Hooks))
	return plan, nil
}

// Render renders plan into a VirtualTree.
func (e *Engine) Render(ctx context.Context, run *Run, plan *planner.RenderPlan) (*vtree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := ctxlog.FromContext(ctx)
	log.Debug("rendering", "tasks", len(plan.Tasks))

	tree, err := render.Render(plan, render.FromPacks(run.Packs))
	if err != nil {
		return nil, err
	}

	log.Info("rendered", "files", tree.Len(), "digest", tree.Digest())
	return tree, nil
}

// Generate runs Plan and Render.
func (e *Engine) Generate(ctx context.Context, run *Run) (*planner.RenderPlan, *vtree.Tree, error) {
	plan, err := e.Plan(ctx, run)
	if err != nil {
		return nil, nil, err
	}
	tree, err := e.Render(ctx, run, plan)
	if err != nil {
		return nil, nil, err
	}
	return plan, tree, nil
}

// DetectDrift re-plans and re-renders run, then compares the tree with the
// project at existingRoot (the run's target root when empty).
func (e *Engine) DetectDrift(ctx context.Context, run *Run, existingRoot string, opts drift.Options) (*drift.Report, error) {
	_, tree, err := e.Generate(ctx, run)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root := run.Root
	if existingRoot != "" {
		root, err = resolveTargetRoot(existingRoot, "")
		if err != nil {
			return nil, err
		}
	}

	opts.Ignore = append(slices.Clone(opts.Ignore), run.IgnorePatterns()...)

	log := ctxlog.FromContext(ctx)
	log.Debug("detecting drift", "root", root, "ignore", opts.Ignore)

	report, err := drift.Detect(tree, root, e.fs, opts)
	if err != nil {
		return nil, err
	}

	log.Info("drift detected", "summary", report.Summary(), "drift", report.HasDrift())
	return report, nil
}
