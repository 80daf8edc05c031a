package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "List available packs",
	Long: `Display every pack found in the project pack directory and the user-level
pack directory. A project pack shadows a user-level pack of the same name.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, eng, _, err := setup(cmd)
		if err != nil {
			return err
		}

		infos, err := eng.ListPacks(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(infos)
		}

		if len(infos) == 0 {
			PrintEmptyState("No packs found")
			return nil
		}

		PrintSection("Available packs")
		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			version := info.Version
			if version == "" {
				version = "(unreadable)"
			}
			deps := strings.Join(info.DependsOn, ",")
			if deps == "" {
				deps = "-"
			}
			rows = append(rows, []string{info.Name, version, deps, strconv.Itoa(info.Templates), info.Description})
		}
		PrintTable([]string{"NAME", "VERSION", "DEPENDS ON", "TEMPLATES", "DESCRIPTION"}, rows, 4)
		return nil
	},
}
