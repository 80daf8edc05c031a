package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danieljhkim/stencil/internal/drift"
	"github.com/danieljhkim/stencil/internal/engine"
)

var (
	driftRoot       string
	driftNameOnly   bool
	driftNameStatus bool
	driftExitCode   bool
	driftContext    int
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Show how a project differs from what its packs render",
	Long: `Re-render the packs and compare the result with an existing project. Files are
reported as modified, missing, or unmanaged (present in a directory the packs
write to, but produced by no template). Only rendered paths and their
directories are read; nothing is written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, eng, run, err := validateRun(cmd)
		if err != nil {
			return err
		}

		report, err := eng.DetectDrift(ctx, run, driftRoot, drift.Options{
			Context: driftContext,
			NoDiff:  driftNameOnly || driftNameStatus,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			if err := outputJSON(report); err != nil {
				return err
			}
		} else if err := formatDriftOutput(report); err != nil {
			return err
		}

		if driftExitCode && report.HasDrift() {
			return fmt.Errorf("%w: %s", engine.ErrDrift, report.Summary())
		}
		return nil
	},
}

func init() {
	driftCmd.Flags().StringVar(&driftRoot, "root", "", "Existing project to compare (default: --target)")
	driftCmd.Flags().BoolVar(&driftNameOnly, "name-only", false, "Show only file names")
	driftCmd.Flags().BoolVar(&driftNameStatus, "name-status", false, "Show file names with status")
	driftCmd.Flags().BoolVar(&driftExitCode, "exit-code", false, "Exit with status 1 when drift is found")
	driftCmd.Flags().IntVarP(&driftContext, "unified", "U", 3, "Lines of diff context")
}

// formatDriftOutput formats the drift report for display.
func formatDriftOutput(report *drift.Report) error {
	if driftNameOnly {
		return formatNameOnly(report)
	}

	if driftNameStatus {
		return formatNameStatus(report)
	}

	return formatDefaultDrift(report)
}

// formatNameOnly outputs only filenames (no status indicators).
func formatNameOnly(report *drift.Report) error {
	for _, entry := range driftedEntries(report) {
		fmt.Println(entry.Path)
	}
	return nil
}

// formatNameStatus outputs filenames with status indicators (M, A, ?).
func formatNameStatus(report *drift.Report) error {
	for _, entry := range driftedEntries(report) {
		_, _ = classColor(entry.Class).Printf("%s\t%s\n", getStatusChar(entry.Class), entry.Path)
	}
	return nil
}

// formatDefaultDrift outputs a git-like unified patch plus a drift summary.
func formatDefaultDrift(report *drift.Report) error {
	entries := driftedEntries(report)
	if len(entries) == 0 {
		PrintSuccess(fmt.Sprintf("No drift detected (%s)", report.Summary()))
		return nil
	}

	fmt.Println()
	_, _ = dimColor.Printf("  root: ")
	_, _ = infoColor.Printf("%s\n", report.Root)

	insertions := 0
	deletions := 0

	for _, entry := range entries {
		fmt.Println()
		printDriftFileHeader(entry)

		if entry.Diff != "" {
			printUnifiedDiff(entry.Diff)
		}

		insertions += entry.Additions
		deletions += entry.Deletions
	}

	fmt.Println()
	_, _ = dimColor.Print("  ")
	fmt.Printf("%d file%s drifted", len(entries), plural(len(entries)))
	if insertions > 0 {
		_, _ = successColor.Printf(", %d insertion%s(+)", insertions, plural(insertions))
	}
	if deletions > 0 {
		_, _ = errorColor.Printf(", %d deletion%s(-)", deletions, plural(deletions))
	}
	_, _ = dimColor.Printf(" [%s]", report.Summary())
	fmt.Println()

	return nil
}

// driftedEntries keeps the report order: rendered paths first, then
// unmanaged files by path.
func driftedEntries(report *drift.Report) []drift.Entry {
	entries := make([]drift.Entry, 0, len(report.Entries))
	for _, entry := range report.Entries {
		if entry.Class != drift.Identical {
			entries = append(entries, entry)
		}
	}
	return entries
}

// getStatusChar returns the single-character status indicator. Missing files
// show as added because rendering would add them.
func getStatusChar(class drift.Class) string {
	switch class {
	case drift.Modified:
		return "M"
	case drift.Missing:
		return "A"
	case drift.Unmanaged:
		return "?"
	case drift.Identical:
		return "="
	default:
		return " "
	}
}

func classColor(class drift.Class) *color.Color {
	switch class {
	case drift.Missing:
		return successColor
	case drift.Unmanaged:
		return errorColor
	case drift.Modified:
		return warningColor
	default:
		return dimColor
	}
}

func printDriftFileHeader(entry drift.Entry) {
	_, _ = classColor(entry.Class).Printf("  %s ", getStatusChar(entry.Class))
	_, _ = headerColor.Printf("%s", entry.Path)

	if entry.Pack != "" {
		_, _ = dimColor.Printf("  (%s)", entry.Pack)
	}
	if entry.Additions > 0 {
		_, _ = successColor.Printf("  +%d", entry.Additions)
	}
	if entry.Deletions > 0 {
		_, _ = errorColor.Printf("  -%d", entry.Deletions)
	}
	if entry.Class == drift.Unmanaged {
		_, _ = dimColor.Printf("  not produced by any template")
	}
	fmt.Println()

	_, _ = dimColor.Println("  " + strings.Repeat("─", 50))
}

func printUnifiedDiff(diffText string) {
	lines := strings.Split(diffText, "\n")
	for i, line := range lines {
		// Preserve trailing newline semantics from generated patches.
		if i == len(lines)-1 && line == "" {
			continue
		}

		switch {
		// Skip redundant diff header lines, already shown in file header
		case strings.HasPrefix(line, "diff --git "),
			strings.HasPrefix(line, "+++ "),
			strings.HasPrefix(line, "--- "):
			continue
		case strings.HasPrefix(line, "@@"):
			_, _ = infoColor.Printf("  %s\n", line)
		case strings.HasPrefix(line, "+"):
			_, _ = successColor.Printf("  %s\n", line)
		case strings.HasPrefix(line, "-"):
			_, _ = errorColor.Printf("  %s\n", line)
		default:
			fmt.Printf("  %s\n", line)
		}
	}
}
