package planner

import (
	"github.com/danieljhkim/stencil/internal/expr"
)

// RenderPlan represents the ordered set of files a render will produce.
type RenderPlan struct {
	// Root is the absolute target root every destination lies within
	Root string

	// Packs is the dependency-ordered list of packs that were planned
	Packs []string

	// Tasks is the ordered list of render tasks
	Tasks []RenderTask

	// Hooks is the ordered list of post-render commands; stencil never runs them
	Hooks []PlannedHook
}

// RenderTask is one template rendered to one destination.
type RenderTask struct {
	// Pack is the name of the pack contributing this task
	Pack string

	// Descriptor identifies the manifest entry ("pack:templates[i]")
	Descriptor string

	// Index is the descriptor's position in the manifest
	Index int

	// Source is the template source id within the pack
	Source string

	// Dest is the slash-separated path relative to the target root
	Dest string

	// AbsDest is Dest resolved against the target root
	AbsDest string

	// Context is the variable scope the template is evaluated in
	Context expr.Scope

	// LoopIndex is the element ordinal for looped descriptors, -1 otherwise
	LoopIndex int

	// Raw marks the source as an opaque passthrough
	Raw bool
}

// PlannedHook is a hook whose arguments have been interpolated and quoted.
type PlannedHook struct {
	Pack string `json:"pack"`
	ID   string `json:"id"`
	Name string `json:"name"`

	// Command is the shell command line, each argument quoted as one word
	Command string `json:"command"`
}

// NewRenderPlan creates a new empty RenderPlan.
func NewRenderPlan(root string, packs []string) *RenderPlan {
	return &RenderPlan{
		Root:  root,
		Packs: packs,
		Tasks: []RenderTask{},
		Hooks: []PlannedHook{},
	}
}

// AddTask adds a task to the plan.
func (p *RenderPlan) AddTask(task RenderTask) {
	p.Tasks = append(p.Tasks, task)
}

// AddHook adds a planned hook to the plan.
func (p *RenderPlan) AddHook(hook PlannedHook) {
	p.Hooks = append(p.Hooks, hook)
}

// Destinations returns every task's Dest in plan order.
func (p *RenderPlan) Destinations() []string {
	out := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		out[i] = t.Dest
	}
	return out
}
