package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/services"
)

var buildInput string

func init() {
	buildCmd.Flags().StringVar(&buildInput, "input", "", "JSONL chunk file (default chunks.path)")
	rootCmd.AddCommand(buildCmd)
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed the chunks into a new index generation",
	Long: `Embed every chunk with the configured provider and write a new index
generation under index.path. The generation becomes live only after it is
complete; a failed build leaves the previous one in place. Older generations
beyond index.keep_generations are pruned.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	chunks, err := chunk.ReadFile(firstNonEmpty(buildInput, e.cfg.Chunks.Path))
	if err != nil {
		return err
	}

	reg, err := services.New(cmd.Context(), e.cfg, e.logger, services.WithoutIndex())
	if err != nil {
		return err
	}
	defer reg.Close()

	ix, err := reg.Build(cmd.Context(), chunks)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	m := ix.Manifest()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d entries, %s (%d dims)\n",
		okStyle.Render("built"), m.Generation, m.Count, m.Model, m.Dimension)
	return nil
}
