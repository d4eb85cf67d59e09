package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specrag/internal/config"
	"github.com/fyrsmithlabs/specrag/internal/mcp"
	"github.com/fyrsmithlabs/specrag/internal/services"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve spec_retrieve and spec_ask as MCP tools over stdio",
	Long: `Run an MCP server on stdin/stdout exposing two tools:

  spec_retrieve  ranked criteria for a query, with the gate's verdict
  spec_ask       a cited answer, or the refusal

Logs always go to stderr in this mode.

Example client configuration:
  {"command": "specrag", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, func(cfg *config.Config) {
		// stdout carries the protocol.
		cfg.Logging.Output = "stderr"
		if logLevel == "" {
			cfg.Logging.Level = "warn"
		}
	})
	if err != nil {
		return err
	}
	defer e.close()

	reg, err := services.New(cmd.Context(), e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:        "specrag",
		Version:     version,
		DefaultTopK: e.cfg.Retrieval.TopK,
		Meter:       e.tel.Meter("github.com/fyrsmithlabs/specrag/internal/mcp"),
		Logger:      e.logger,
	}, reg.Retriever(), reg.Answers(), reg.Gate())
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}
