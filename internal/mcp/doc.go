// Package mcp exposes retrieval and question answering as MCP tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp) on
// the stdio transport and registers two tools:
//
//   - spec_retrieve returns the ranked chunks for a query together with the
//     confidence gate's verdict.
//   - spec_ask returns a cited answer or the fixed refusal.
//
// A refusal is a successful tool result with refused set. Operational
// failures (no index, model mismatch, embedding errors) are tool errors.
package mcp
