// Package answer turns ranked retrieval results into a user-facing answer
// with citations, or a refusal when the confidence gate rejects them.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/logging"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
)

// RefusalMessage is returned as the answer text when the gate refuses.
const RefusalMessage = "I can’t answer that confidently from the WCAG 2.2 normative text I retrieved. " +
	"Try rephrasing or mention the relevant success criterion number (e.g., 2.4.11)."

var (
	// ErrGenerationFailed is returned when the language model call fails. It
	// is an operational error, never a refusal.
	ErrGenerationFailed = errors.New("answer generation failed")

	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Citation identifies a success criterion an answer draws on.
type Citation struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Level    string  `json:"level"`
	URL      string  `json:"url"`
	Distance float64 `json:"distance"`
}

// Answer is the result of Ask. A refusal has Refused set, RefusalMessage as
// Text and no citations.
type Answer struct {
	Question  string             `json:"question"`
	Text      string             `json:"answer"`
	Refused   bool               `json:"refused"`
	Citations []Citation         `json:"citations"`
	Results   []retrieval.Result `json:"results"`
	Composer  string             `json:"composer,omitempty"`
}

// Composer writes answer text from accepted results.
type Composer interface {
	Compose(ctx context.Context, question string, results []retrieval.Result) (string, error)
	Name() string
}

// Retriever is the retrieval capability Ask needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

// Config shapes answers.
type Config struct {
	// TopK is how many results are retrieved. Default: 5.
	TopK int
	// Citations is how many top results are cited. Default: 3.
	Citations int
}

// Service runs retrieve, gate and compose.
type Service struct {
	retriever Retriever
	gate      retrieval.Gate
	composer  Composer
	cfg       Config
	logger    *logging.Logger
}

// NewService creates a Service.
func NewService(r Retriever, gate retrieval.Gate, composer Composer, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Citations <= 0 {
		cfg.Citations = 3
	}
	return &Service{retriever: r, gate: gate, composer: composer, cfg: cfg, logger: logging.FromZap(logger.Named("answer"))}
}

// Ask answers question from the index. k overrides the configured top k
// when positive.
func (s *Service) Ask(ctx context.Context, question string, k int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if k <= 0 {
		k = s.cfg.TopK
	}

	start := time.Now()
	results, err := s.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	ans := &Answer{Question: question, Results: results, Citations: []Citation{}}
	if s.gate.Decide(results) {
		ans.Refused = true
		ans.Text = RefusalMessage
		s.logger.Info(ctx, "refused",
			zap.Int("results", len(results)),
			zap.Float64("threshold", s.gate.Threshold),
			topDistance(results),
		)
		return ans, nil
	}

	text, err := s.composer.Compose(ctx, question, results)
	if err != nil {
		return nil, err
	}
	ans.Text = text
	ans.Composer = s.composer.Name()
	ans.Citations = Citations(results, s.cfg.Citations)

	s.logger.Info(ctx, "answered",
		zap.String("top_id", results[0].ID),
		topDistance(results),
		zap.String("composer", ans.Composer),
		zap.Duration("duration", time.Since(start)),
	)
	return ans, nil
}

func topDistance(results []retrieval.Result) zap.Field {
	if len(results) == 0 {
		return zap.Skip()
	}
	return zap.Float64("top_distance", results[0].Distance)
}

// Citations returns citations for the first n results.
func Citations(results []retrieval.Result, n int) []Citation {
	n = min(n, len(results))
	out := make([]Citation, n)
	for i, r := range results[:n] {
		c := r.Chunk()
		out[i] = Citation{ID: c.ID, Title: c.Title, Level: c.Level, URL: c.URL, Distance: r.Distance}
	}
	return out
}

// heading renders "id — title (Level X)", omitting the level when unknown.
func heading(id, title, level string) string {
	h := fmt.Sprintf("%s — %s", id, title)
	if level != "" {
		h += fmt.Sprintf(" (Level %s)", level)
	}
	return h
}
