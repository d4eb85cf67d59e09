package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specrag/internal/fetch"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Download the source document",
	Long: `Download the source document into fetch.root, mirroring the URL's host and
path. A URL ending in "/" is stored as index.html.

Examples:
  # Fetch the configured document.source_url
  specrag fetch

  # Fetch another snapshot
  specrag fetch https://www.w3.org/TR/2023/REC-WCAG22-20231005/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	url := e.cfg.Document.SourceURL
	if len(args) == 1 {
		url = args[0]
	}

	f := fetch.New(fetch.Config{
		Root:      e.cfg.Fetch.Root,
		UserAgent: e.cfg.Fetch.UserAgent,
		Timeout:   e.cfg.Fetch.Timeout,
	}, e.logger)

	path, err := f.Fetch(cmd.Context(), url)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("saved"), path)
	return nil
}
