package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specrag/internal/answer"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
	"github.com/fyrsmithlabs/specrag/internal/services"
)

var (
	topK       int
	jsonOutput bool
)

func init() {
	for _, c := range []*cobra.Command{retrieveCmd, askCmd} {
		c.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default retrieval.top_k)")
		c.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
		rootCmd.AddCommand(c)
	}
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Show the criteria closest to a query",
	Long: `Embed the query and list the k nearest success criteria with their cosine
distances, closest first, and whether the confidence gate would refuse.

Examples:
  specrag retrieve "minimum contrast for body text"
  specrag retrieve -k 10 --json "focus indicator"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the normative text",
	Long: `Retrieve the criteria closest to the question and answer from them, citing
each. If the closest criterion is farther than retrieval.refusal_threshold the
question is refused instead.

Examples:
  specrag ask "How large must pointer targets be?"
  specrag ask --json "Is 2.4.11 level AA?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runRetrieve(cmd *cobra.Command, args []string) error {
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

	k := topK
	if k == 0 {
		k = e.cfg.Retrieval.TopK
	}
	query := strings.Join(args, " ")
	results, err := reg.Retriever().Retrieve(cmd.Context(), query, k)
	if err != nil {
		return err
	}
	refused := reg.Gate().ShouldRefuse(results)

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, map[string]any{
			"query":     query,
			"results":   results,
			"refused":   refused,
			"threshold": reg.Gate().Threshold,
		})
	}
	printResults(out, results, reg.Gate(), refused)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	ans, err := reg.Answers().Ask(cmd.Context(), strings.Join(args, " "), topK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, ans)
	}
	printAnswer(out, ans)
	return nil
}

func printResults(w io.Writer, results []retrieval.Result, gate retrieval.Gate, refused bool) {
	if len(results) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no results"))
	}
	for i, r := range results {
		c := r.Chunk()
		fmt.Fprintf(w, "%2d. %s %s %s\n    %s\n",
			i+1,
			idStyle.Render(c.ID),
			c.Title,
			distanceStyle(r.Distance, gate.Threshold).Render(fmt.Sprintf("%.4f", r.Distance)),
			dimStyle.Render(c.URL),
		)
	}
	if refused {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("refused: closest distance exceeds %.2f", gate.Threshold)))
	}
}

func printAnswer(w io.Writer, ans *answer.Answer) {
	if ans.Refused {
		fmt.Fprintln(w, warnStyle.Render(ans.Text))
		return
	}
	fmt.Fprintln(w, ans.Text)
	if len(ans.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Sources"))
	}
	for _, c := range ans.Citations {
		level := ""
		if c.Level != "" {
			level = " (Level " + c.Level + ")"
		}
		fmt.Fprintf(w, "  %s %s%s %s\n", idStyle.Render(c.ID), c.Title, level, dimStyle.Render(c.URL))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
