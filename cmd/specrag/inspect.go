package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specrag/internal/vectorstore"
)

func init() {
	inspectCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the live index generation",
	Long: `Print the manifest of the live index generation: collection, embedding
model and dimension, entry count and build time. Does not load the model.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	vc := vectorstore.Config{Path: e.cfg.Index.Path}
	root, err := vc.Root()
	if err != nil {
		return err
	}
	m, err := vectorstore.ReadManifest(root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, map[string]any{
			"path":       root,
			"generation": m.Generation,
			"manifest":   m,
		})
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "path\t%s\n", root)
	fmt.Fprintf(tw, "generation\t%s\n", m.Generation)
	fmt.Fprintf(tw, "collection\t%s\n", m.Collection)
	fmt.Fprintf(tw, "model\t%s\n", m.Model)
	fmt.Fprintf(tw, "dimension\t%d\n", m.Dimension)
	fmt.Fprintf(tw, "entries\t%d\n", m.Count)
	fmt.Fprintf(tw, "built\t%s\n", m.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(tw, "format\t%d\n", m.FormatVersion)
	return tw.Flush()
}
