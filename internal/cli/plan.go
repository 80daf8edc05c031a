package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/stencil/internal/planner"
)

// planView is the JSON form of a render plan. Task contexts hold typed
// values and are left out.
type planView struct {
	Root  string                `json:"root"`
	Packs []string              `json:"packs"`
	Tasks []taskView            `json:"tasks"`
	Hooks []planner.PlannedHook `json:"hooks"`
}

type taskView struct {
	Pack       string `json:"pack"`
	Descriptor string `json:"descriptor"`
	Source     string `json:"source"`
	Dest       string `json:"dest"`
	LoopIndex  *int   `json:"loopIndex,omitempty"`
	Raw        bool   `json:"raw,omitempty"`
}

func newPlanView(plan *planner.RenderPlan) planView {
	view := planView{
		Root:  plan.Root,
		Packs: plan.Packs,
		Tasks: make([]taskView, 0, len(plan.Tasks)),
		Hooks: plan.Hooks,
	}
	if view.Hooks == nil {
		view.Hooks = []planner.PlannedHook{}
	}
	for _, t := range plan.Tasks {
		tv := taskView{
			Pack:       t.Pack,
			Descriptor: t.Descriptor,
			Source:     t.Source,
			Dest:       t.Dest,
			Raw:        t.Raw,
		}
		if t.LoopIndex >= 0 {
			idx := t.LoopIndex
			tv.LoopIndex = &idx
		}
		view.Tasks = append(view.Tasks, tv)
	}
	return view
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show which files the packs would render",
	Long: `Validate, then expand every template descriptor into render tasks: conditions
are evaluated, loops expanded and destinations resolved. Nothing is rendered
or written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, eng, run, err := validateRun(cmd)
		if err != nil {
			return err
		}

		plan, err := eng.Plan(ctx, run)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(newPlanView(plan))
		}

		PrintSection(fmt.Sprintf("Render plan for %s", plan.Root))
		if len(plan.Tasks) == 0 {
			PrintEmptyState("No files to render")
		} else {
			rows := make([][]string, 0, len(plan.Tasks))
			for _, t := range plan.Tasks {
				loop := "-"
				if t.LoopIndex >= 0 {
					loop = strconv.Itoa(t.LoopIndex)
				}
				rows = append(rows, []string{t.Dest, t.Pack, t.Source, loop})
			}
			PrintTable([]string{"DEST", "PACK", "SOURCE", "LOOP"}, rows)
		}

		if len(plan.Hooks) > 0 {
			PrintSection("Hooks (not run)")
			for _, h := range plan.Hooks {
				PrintLabelValue(h.Pack+"/"+h.Name, h.Command)
			}
		}

		fmt.Println()
		PrintInfo(fmt.Sprintf("%s from %s", countOf(len(plan.Tasks), "file"), countOf(len(plan.Packs), "pack")))
		return nil
	},
}
