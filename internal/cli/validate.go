package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the spec against the selected packs",
	Long: `Resolve the pack set, check every manifest, build the variable schema and
validate the spec against it. Every violation found is reported; security
rejections stop validation immediately.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, run, err := validateRun(cmd)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(map[string]any{
				"valid":  true,
				"root":   run.Root,
				"packs":  run.PackNames(),
				"fields": run.Schema.Names(),
				"spec":   run.Spec.ToNative(),
			})
		}

		PrintSuccess("Spec is valid")
		PrintLabelValue("Packs", fmt.Sprintf("%v", run.PackNames()))
		PrintLabelValue("Fields", countOf(len(run.Schema.Names()), "field"))
		PrintLabelValue("Target", run.Root)
		return nil
	},
}
