package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/answer"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
)

// Retriever runs k-nearest-neighbor retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string, k int) (*answer.Answer, error)
}

// Server is an MCP server backed by a Retriever and an Asker.
type Server struct {
	mcp       *mcp.Server
	retriever Retriever
	asker     Asker
	gate      retrieval.Gate
	metrics   *Metrics
	topK      int
	logger    *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "specrag")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// DefaultTopK is used when a call omits k (default: 5)
	DefaultTopK int

	// Meter for tool metrics. Nil uses the global meter provider.
	Meter metric.Meter

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:        "specrag",
		Version:     "dev",
		DefaultTopK: 5,
		Logger:      zap.NewNop(),
	}
}

// NewServer creates a new MCP server with the given services.
func NewServer(cfg *Config, retriever Retriever, asker Asker, gate retrieval.Gate) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if asker == nil {
		return nil, fmt.Errorf("asker is required")
	}
	if cfg.Name == "" {
		cfg.Name = "specrag"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:       mcpServer,
		retriever: retriever,
		asker:     asker,
		gate:      gate,
		metrics:   NewMetrics(meter, logger),
		topK:      cfg.DefaultTopK,
		logger:    logger,
	}
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport and blocks until the
// client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session over transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, transport, nil)
}
