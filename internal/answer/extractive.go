package answer

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/specrag/internal/retrieval"
)

// Extractive answers by quoting the top result verbatim.
type Extractive struct {
	// ExcerptChars caps the quoted text, in runes. Default: 1200.
	ExcerptChars int
}

func (Extractive) Name() string { return "extractive" }

// Compose quotes results[0].
func (e Extractive) Compose(_ context.Context, _ string, results []retrieval.Result) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("%w: no results to quote", ErrGenerationFailed)
	}
	limit := e.ExcerptChars
	if limit <= 0 {
		limit = 1200
	}

	top := results[0].Chunk()
	return fmt.Sprintf(
		"Based on the WCAG 2.2 normative text I retrieved, the most relevant requirement is:\n**%s**\n\n**Normative excerpt:**\n%s",
		heading(top.ID, top.Title, top.Level),
		Excerpt(top.Text, limit),
	), nil
}

// Excerpt truncates text to limit runes, marking the cut with "…".
func Excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
