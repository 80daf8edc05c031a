package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/danieljhkim/stencil/internal/engine"
	"github.com/danieljhkim/stencil/internal/vtree"
)

type writeOptions struct {
	out    string
	force  bool
	dryRun bool
	print  bool
}

var renderOpts writeOptions

func addWriteFlags(fs *pflag.FlagSet, o *writeOptions) {
	fs.StringVarP(&o.out, "out", "o", "", "Write the rendered files under this directory")
	fs.BoolVarP(&o.force, "force", "f", false, "Overwrite existing files whose content differs")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Report what --out would write without writing")
	fs.BoolVar(&o.print, "print", false, "Print the content of every rendered file")
}

type renderedFile struct {
	Path   string `json:"path"`
	Pack   string `json:"pack"`
	Source string `json:"source"`
	Bytes  int    `json:"bytes"`
	Digest string `json:"digest"`
	Binary bool   `json:"binary,omitempty"`
}

type renderOutput struct {
	Digest string              `json:"digest"`
	Files  []renderedFile      `json:"files"`
	Write  *engine.WriteResult `json:"write,omitempty"`
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the packs into a virtual tree",
	Long: `Validate, plan and render every template in memory. Without --out the
rendered tree is only previewed. With --out the files are written atomically;
existing files that differ are left alone unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, eng, run, err := validateRun(cmd)
		if err != nil {
			return err
		}

		_, tree, err := eng.Generate(ctx, run)
		if err != nil {
			return err
		}

		output := renderOutput{Digest: tree.Digest(), Files: renderedFiles(tree)}

		var writeErr error
		if renderOpts.out != "" {
			output.Write, writeErr = eng.Write(ctx, tree, &engine.WriteRequest{
				Root:   renderOpts.out,
				Force:  renderOpts.force,
				DryRun: renderOpts.dryRun,
			})
			if writeErr != nil && !errors.Is(writeErr, engine.ErrConflict) {
				return writeErr
			}
		}

		if jsonOutput {
			if err := outputJSON(output); err != nil {
				return err
			}
			return writeErr
		}

		printRenderedTree(tree, output)
		if output.Write != nil {
			printWriteResult(output.Write, renderOpts.dryRun)
		}
		return writeErr
	},
}

func init() {
	addWriteFlags(renderCmd.Flags(), &renderOpts)
}

func renderedFiles(tree *vtree.Tree) []renderedFile {
	files := make([]renderedFile, 0, tree.Len())
	for _, e := range tree.Entries() {
		files = append(files, renderedFile{
			Path:   e.Path,
			Pack:   e.Pack,
			Source: e.Source,
			Bytes:  len(e.Content),
			Digest: e.Digest,
			Binary: e.Opaque,
		})
	}
	return files
}

func printRenderedTree(tree *vtree.Tree, output renderOutput) {
	PrintSection("Rendered tree")
	if tree.Len() == 0 {
		PrintEmptyState("No files rendered")
		return
	}

	if renderOpts.print {
		for _, e := range tree.Entries() {
			_, _ = headerColor.Printf("==> %s <==\n", e.Path)
			if e.Opaque {
				_, _ = dimColor.Printf("(%d bytes, not shown)\n", len(e.Content))
				continue
			}
			fmt.Print(string(e.Content))
			if len(e.Content) > 0 && e.Content[len(e.Content)-1] != '\n' {
				fmt.Println()
			}
		}
		fmt.Println()
	}

	rows := make([][]string, 0, len(output.Files))
	for _, f := range output.Files {
		rows = append(rows, []string{f.Path, f.Pack, strconv.Itoa(f.Bytes)})
	}
	PrintTable([]string{"PATH", "PACK", "BYTES"}, rows)
	fmt.Println()
	PrintLabelValue("Digest", output.Digest)
}

func printWriteResult(result *engine.WriteResult, dryRun bool) {
	fmt.Println()
	if len(result.Conflicts) > 0 {
		PrintError(fmt.Sprintf("%s differ from the rendered output:", countOf(len(result.Conflicts), "existing file")))
		PrintList(result.Conflicts, 1)
		return
	}

	verb := "Wrote"
	if dryRun {
		verb = "Would write"
	}
	PrintSuccess(fmt.Sprintf("%s %s (%d unchanged)", verb, countOf(len(result.Written), "file"), len(result.Unchanged)))
	PrintList(result.Written, 1)
}
