package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/specrag/internal/logging"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
)

const systemPrompt = `You are a WCAG 2.2 compliance assistant.
You MUST answer using only the provided Sources.
If the Sources do not contain the answer, say you don’t have enough information.
When you make a claim, cite it using the source labels like [S1], [S2].
Do not cite anything outside the provided Sources.`

// LLMConfig configures the generation path.
type LLMConfig struct {
	Model   string
	BaseURL string
	APIKey  string
	// Timeout bounds one generation call. Default: 120s.
	Timeout time.Duration
	// RequestsPerSecond limits calls to the model. Default: 1.
	RequestsPerSecond float64
}

// LLM phrases an answer with a chat model, grounded on the retrieved text.
type LLM struct {
	model   llms.Model
	name    string
	limiter *rate.Limiter
	timeout time.Duration
	logger  *logging.Logger
}

// NewLLM creates an LLM composer over an OpenAI-compatible endpoint.
func NewLLM(cfg LLMConfig, logger *zap.Logger) (*LLM, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	return NewLLMWithModel(client, cfg, logger), nil
}

// NewLLMWithModel creates an LLM composer over any langchaingo model.
func NewLLMWithModel(model llms.Model, cfg LLMConfig, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	return &LLM{
		model:   model,
		name:    cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		timeout: cfg.Timeout,
		logger:  logging.FromZap(logger.Named("llm")),
	}
}

func (l *LLM) Name() string { return "llm:" + l.name }

// Compose asks the model to answer from results only.
func (l *LLM) Compose(ctx context.Context, question string, results []retrieval.Result) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", ErrGenerationFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, UserPrompt(question, results)),
	}

	start := time.Now()
	resp, err := l.model.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		l.logger.Warn(ctx, "generation failed", zap.String("model", l.name), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	l.logger.Debug(ctx, "generated",
		zap.String("model", l.name),
		zap.Int("sources", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// UserPrompt renders the question and the numbered source blocks.
func UserPrompt(question string, results []retrieval.Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		c := r.Chunk()
		blocks[i] = fmt.Sprintf("[S%d] %s\nURL: %s\n\n%s\n", i+1, heading(c.ID, c.Title, c.Level), c.URL, c.Text)
	}
	return fmt.Sprintf("Question: %s\n\nSources:\n%s\n\n"+
		"Write a concise answer. Then include a 'Citations' section listing the cited sources with SC id + title + URL.",
		question, strings.Join(blocks, "\n---\n"))
}
