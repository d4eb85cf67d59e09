package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/specrag/internal/answer"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
)

const (
	toolRetrieve = "spec_retrieve"
	toolAsk      = "spec_ask"
)

type retrieveInput struct {
	Query string `json:"query" jsonschema:"Natural-language query about WCAG 2.2 success criteria"`
	K     int    `json:"k,omitempty" jsonschema:"Number of results to return (default: 5)"`
}

type resultOutput struct {
	ID       string  `json:"id" jsonschema:"Success criterion number, e.g. 1.4.3"`
	Title    string  `json:"title" jsonschema:"Success criterion title"`
	Level    string  `json:"level,omitempty" jsonschema:"Conformance level: A, AA or AAA"`
	URL      string  `json:"url" jsonschema:"Link to the criterion in the WCAG 2.2 recommendation"`
	Distance float64 `json:"distance" jsonschema:"Cosine distance to the query; lower is closer"`
	Text     string  `json:"text" jsonschema:"Normative text of the criterion"`
}

type retrieveOutput struct {
	Query     string         `json:"query" jsonschema:"Query used"`
	Results   []resultOutput `json:"results" jsonschema:"Ranked results, closest first"`
	Refused   bool           `json:"refused" jsonschema:"True when the closest result is too far to answer from"`
	Threshold float64        `json:"threshold" jsonschema:"Distance above which answers are refused"`
}

type askInput struct {
	Question string `json:"question" jsonschema:"Question about WCAG 2.2"`
	K        int    `json:"k,omitempty" jsonschema:"Number of results to retrieve (default: 5)"`
}

type askOutput struct {
	Answer    string            `json:"answer" jsonschema:"Answer text, or the fixed refusal message"`
	Refused   bool              `json:"refused" jsonschema:"True when no sufficiently relevant criterion was found"`
	Citations []answer.Citation `json:"citations" jsonschema:"Criteria the answer draws on"`
	Composer  string            `json:"composer,omitempty" jsonschema:"Composer that wrote the answer"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolRetrieve,
		Description: "Retrieve the WCAG 2.2 success criteria closest to a query, with cosine distances and the confidence gate's verdict",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args retrieveInput) (*mcp.CallToolResult, retrieveOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, toolRetrieve)
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, toolRetrieve)
			s.metrics.RecordInvocation(ctx, toolRetrieve, time.Since(start), toolErr)
		}()

		k, err := s.resolveTopK(args.K)
		if err != nil {
			toolErr = err
			return nil, retrieveOutput{}, err
		}

		results, err := s.retriever.Retrieve(ctx, args.Query, k)
		if err != nil {
			toolErr = fmt.Errorf("retrieve failed: %w", err)
			return nil, retrieveOutput{}, toolErr
		}

		out := retrieveOutput{
			Query:     strings.TrimSpace(args.Query),
			Results:   make([]resultOutput, 0, len(results)),
			Refused:   s.gate.ShouldRefuse(results),
			Threshold: s.gate.Threshold,
		}
		for _, r := range results {
			c := r.Chunk()
			out.Results = append(out.Results, resultOutput{
				ID:       c.ID,
				Title:    c.Title,
				Level:    c.Level,
				URL:      c.URL,
				Distance: r.Distance,
				Text:     c.Text,
			})
		}
		if out.Refused {
			s.metrics.RecordRefusal(ctx, toolRetrieve)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: formatResults(out)},
			},
		}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolAsk,
		Description: "Answer a question about WCAG 2.2 from the normative text, with citations. Refuses when no criterion is close enough",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args askInput) (*mcp.CallToolResult, askOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, toolAsk)
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, toolAsk)
			s.metrics.RecordInvocation(ctx, toolAsk, time.Since(start), toolErr)
		}()

		k, err := s.resolveTopK(args.K)
		if err != nil {
			toolErr = err
			return nil, askOutput{}, err
		}

		ans, err := s.asker.Ask(ctx, args.Question, k)
		if err != nil {
			toolErr = fmt.Errorf("ask failed: %w", err)
			return nil, askOutput{}, toolErr
		}
		if ans.Refused {
			s.metrics.RecordRefusal(ctx, toolAsk)
		}

		out := askOutput{
			Answer:    ans.Text,
			Refused:   ans.Refused,
			Citations: ans.Citations,
			Composer:  ans.Composer,
		}
		if out.Citations == nil {
			out.Citations = []answer.Citation{}
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: formatAnswer(out)},
			},
		}, out, nil
	})
}

func (s *Server) resolveTopK(k int) (int, error) {
	switch {
	case k == 0:
		return s.topK, nil
	case k < 0:
		return 0, fmt.Errorf("%w: got %d", retrieval.ErrInvalidTopK, k)
	default:
		return k, nil
	}
}

func formatResults(out retrieveOutput) string {
	if len(out.Results) == 0 {
		return "No results."
	}
	var b strings.Builder
	for i, r := range out.Results {
		fmt.Fprintf(&b, "%d. %s %s (distance %.4f) %s\n", i+1, r.ID, r.Title, r.Distance, r.URL)
	}
	if out.Refused {
		fmt.Fprintf(&b, "Closest result is beyond the %.2f distance threshold.\n", out.Threshold)
	}
	return b.String()
}

func formatAnswer(out askOutput) string {
	if len(out.Citations) == 0 {
		return out.Answer
	}
	var b strings.Builder
	b.WriteString(out.Answer)
	b.WriteString("\n\nSources:\n")
	for _, c := range out.Citations {
		fmt.Fprintf(&b, "- %s %s: %s\n", c.ID, c.Title, c.URL)
	}
	return b.String()
}
