package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/specrag/internal/chunk"
	"github.com/fyrsmithlabs/specrag/internal/embeddings"
	"github.com/fyrsmithlabs/specrag/internal/logging"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
)

func result(id, title, level string, distance float64, text string) retrieval.Result {
	c := chunk.Chunk{ID: id, Title: title, Level: level, URL: "https://www.w3.org/TR/WCAG22/#" + id, Text: text}
	return retrieval.Result{ID: id, Distance: distance, Text: text, Metadata: c.Metadata()}
}

type stubRetriever struct {
	results []retrieval.Result
	err     error
	gotK    int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, k int) ([]retrieval.Result, error) {
	s.gotK = k
	return s.results, s.err
}

type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestService_Ask(t *testing.T) {
	ctx := context.Background()
	accepted := []retrieval.Result{
		result("2.4.11", "Focus Not Obscured (Minimum)", "AA", 0.21, "When a user interface component receives keyboard focus..."),
		result("2.4.12", "Focus Not Obscured (Enhanced)", "AAA", 0.30, "When a user interface component receives keyboard focus, no part..."),
		result("2.4.7", "Focus Visible", "AA", 0.33, "Any keyboard operable user interface has a mode of operation..."),
		result("2.4.13", "Focus Appearance", "AAA", 0.45, "When the keyboard focus indicator is visible..."),
	}

	t.Run("accepted", func(t *testing.T) {
		r := &stubRetriever{results: accepted}
		svc := NewService(r, retrieval.NewGate(0.40), Extractive{}, Config{}, nil)

		ans, err := svc.Ask(ctx, " focus hidden by sticky header ", 0)
		require.NoError(t, err)
		assert.False(t, ans.Refused)
		assert.Equal(t, 5, r.gotK)
		assert.Equal(t, "focus hidden by sticky header", ans.Question)
		assert.Contains(t, ans.Text, "**2.4.11 — Focus Not Obscured (Minimum) (Level AA)**")
		assert.Equal(t, "extractive", ans.Composer)
		require.Len(t, ans.Citations, 3)
		assert.Equal(t, Citation{ID: "2.4.11", Title: "Focus Not Obscured (Minimum)", Level: "AA",
			URL: "https://www.w3.org/TR/WCAG22/#2.4.11", Distance: 0.21}, ans.Citations[0])
		assert.Len(t, ans.Results, 4)
	})

	t.Run("refused above threshold", func(t *testing.T) {
		svc := NewService(&stubRetriever{results: accepted[3:]}, retrieval.NewGate(0.40), Extractive{}, Config{}, nil)
		ans, err := svc.Ask(ctx, "what colour is the sky", 2)
		require.NoError(t, err)
		assert.True(t, ans.Refused)
		assert.Equal(t, RefusalMessage, ans.Text)
		assert.Empty(t, ans.Citations)
		assert.Len(t, ans.Results, 1)
	})

	t.Run("refused on empty results", func(t *testing.T) {
		svc := NewService(&stubRetriever{results: []retrieval.Result{}}, retrieval.NewGate(0.40), Extractive{}, Config{}, nil)
		ans, err := svc.Ask(ctx, "anything", 0)
		require.NoError(t, err)
		assert.True(t, ans.Refused)
	})

	t.Run("retrieval failure is not a refusal", func(t *testing.T) {
		svc := NewService(&stubRetriever{err: embeddings.ErrEmbeddingFailed}, retrieval.NewGate(0.40), Extractive{}, Config{}, nil)
		ans, err := svc.Ask(ctx, "focus", 0)
		assert.ErrorIs(t, err, embeddings.ErrEmbeddingFailed)
		assert.Nil(t, ans)
	})

	t.Run("generation failure is not a refusal", func(t *testing.T) {
		llm := NewLLMWithModel(&fakeModel{err: errors.New("502 bad gateway")}, LLMConfig{Model: "gpt-4o-mini"}, nil)
		svc := NewService(&stubRetriever{results: accepted}, retrieval.NewGate(0.40), llm, Config{}, nil)
		ans, err := svc.Ask(ctx, "focus", 0)
		assert.ErrorIs(t, err, ErrGenerationFailed)
		assert.Nil(t, ans)
	})

	t.Run("empty question", func(t *testing.T) {
		svc := NewService(&stubRetriever{}, retrieval.NewGate(0.40), Extractive{}, Config{}, nil)
		_, err := svc.Ask(ctx, "   ", 0)
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	})

	t.Run("logs refusal", func(t *testing.T) {
		logger := logging.NewTestLogger()
		svc := NewService(&stubRetriever{}, retrieval.NewGate(0.40), Extractive{}, Config{}, logger.Underlying())
		_, err := svc.Ask(logging.WithRequestID(ctx, "req-11"), "anything", 0)
		require.NoError(t, err)
		logger.AssertLogged(t, zapcore.InfoLevel, "refused")
		logger.AssertRequestID(t, "refused", "req-11")
	})
}

func TestExtractive(t *testing.T) {
	ctx := context.Background()

	t.Run("format", func(t *testing.T) {
		text, err := Extractive{}.Compose(ctx, "q", []retrieval.Result{
			result("1.4.3", "Contrast (Minimum)", "AA", 0.1, "The visual presentation of text has a contrast ratio of at least 4.5:1"),
		})
		require.NoError(t, err)
		assert.Equal(t,
			"Based on the WCAG 2.2 normative text I retrieved, the most relevant requirement is:\n"+
				"**1.4.3 — Contrast (Minimum) (Level AA)**\n\n"+
				"**Normative excerpt:**\nThe visual presentation of text has a contrast ratio of at least 4.5:1",
			text)
	})

	t.Run("unknown level omitted", func(t *testing.T) {
		text, err := Extractive{}.Compose(ctx, "q", []retrieval.Result{result("9.9.9", "Mystery", "", 0.1, "body")})
		require.NoError(t, err)
		assert.Contains(t, text, "**9.9.9 — Mystery**")
		assert.NotContains(t, text, "Level")
	})

	t.Run("truncated", func(t *testing.T) {
		text, err := Extractive{ExcerptChars: 10}.Compose(ctx, "q", []retrieval.Result{result("1.1.1", "T", "A", 0.1, strings.Repeat("é", 25))})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(text, strings.Repeat("é", 10)+"…"))
	})

	t.Run("no results", func(t *testing.T) {
		_, err := Extractive{}.Compose(ctx, "q", nil)
		assert.ErrorIs(t, err, ErrGenerationFailed)
	})
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "exactly10!", Excerpt("exactly10!", 10))
	assert.Equal(t, "abc…", Excerpt("abcdef", 3))
}

func TestLLM_Compose(t *testing.T) {
	model := &fakeModel{reply: "  Keep focused components visible [S1].  "}
	llm := NewLLMWithModel(model, LLMConfig{Model: "gpt-4o-mini", Timeout: time.Second, RequestsPerSecond: 100}, nil)

	results := []retrieval.Result{
		result("2.4.11", "Focus Not Obscured (Minimum)", "AA", 0.2, "focus body"),
		result("2.4.7", "Focus Visible", "", 0.3, "visible body"),
	}
	text, err := llm.Compose(context.Background(), "is focus required to be visible?", results)
	require.NoError(t, err)
	assert.Equal(t, "Keep focused components visible [S1].", text)
	assert.Equal(t, "llm:gpt-4o-mini", llm.Name())

	require.Len(t, model.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)

	prompt := UserPrompt("is focus required to be visible?", results)
	assert.Equal(t, llms.TextContent{Text: prompt}, model.messages[1].Parts[0])
	assert.Contains(t, prompt, "[S1] 2.4.11 — Focus Not Obscured (Minimum) (Level AA)\nURL: https://www.w3.org/TR/WCAG22/#2.4.11\n\nfocus body\n")
	assert.Contains(t, prompt, "\n---\n[S2] 2.4.7 — Focus Visible\nURL:")
}

func TestLLM_EmptyReply(t *testing.T) {
	llm := NewLLMWithModel(&fakeModel{reply: "  "}, LLMConfig{Model: "m"}, nil)
	_, err := llm.Compose(context.Background(), "q", []retrieval.Result{result("1.1.1", "T", "A", 0.1, "x")})
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestLLM_CancelledWhileWaiting(t *testing.T) {
	llm := NewLLMWithModel(&fakeModel{reply: "ok"}, LLMConfig{Model: "m", RequestsPerSecond: 0.001}, nil)
	_, err := llm.Compose(context.Background(), "q", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = llm.Compose(ctx, "q", nil)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}
