package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specrag/internal/services"
	"github.com/fyrsmithlabs/specrag/internal/tui"
)

func init() {
	rootCmd.AddCommand(replCmd)
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Ask questions interactively",
	Long: `Open an interactive session that answers questions from the index.
Logs go to logging.output; redirect stderr to keep the screen clean.`,
	Args: cobra.NoArgs,
	RunE: runREPL,
}

func runREPL(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	reg, err := services.New(cmd.Context(), e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	summary := "no index loaded: run specrag build"
	if ix := reg.Index().Load(); ix != nil {
		m := ix.Manifest()
		summary = fmt.Sprintf("%s • %d criteria • %s • refuse above %.2f",
			m.Generation, m.Count, m.Model, reg.Gate().Threshold)
	}

	model := tui.New(reg.Answers(), tui.Options{
		TopK:    e.cfg.Retrieval.TopK,
		Timeout: e.cfg.LLM.Timeout,
		Summary: summary,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running repl: %w", err)
	}
	return nil
}
