// Package http serves retrieval and question answering over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/specrag/internal/answer"
	"github.com/fyrsmithlabs/specrag/internal/logging"
	"github.com/fyrsmithlabs/specrag/internal/retrieval"
	"github.com/fyrsmithlabs/specrag/internal/telemetry"
	"github.com/fyrsmithlabs/specrag/internal/vectorstore"
)

// maxBodySize bounds request bodies.
const maxBodySize = "64K"

// Retriever runs k-nearest-neighbor retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string, k int) (*answer.Answer, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is requests per second per client IP on /api. Zero disables.
	RateLimit float64
	// DefaultTopK is used when a request omits k. Default: 5.
	DefaultTopK int
}

// Deps are the services the server exposes.
type Deps struct {
	Retriever Retriever
	Asker     Asker
	Gate      retrieval.Gate
	Index     *vectorstore.Handle
	Telemetry *telemetry.Telemetry
	// Gatherer backs /api/v1/stats. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server provides HTTP endpoints for specrag.
type Server struct {
	echo     *echo.Echo
	deps     Deps
	gatherer prometheus.Gatherer
	started  time.Time
	logger   *zap.Logger
	log      *logging.Logger
	config   *Config
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Retriever == nil || deps.Asker == nil {
		return nil, fmt.Errorf("retriever and asker are required")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("index handle is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 9191}
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, deps: deps, gatherer: deps.Gatherer, started: time.Now(), logger: logger, log: logging.FromZap(logger), config: cfg}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(s.logRequests)
	e.Use(NewHTTPMetrics(deps.Telemetry.Meter(instrumentationName), logger).Middleware())
	e.Use(middleware.BodyLimit(maxBodySize))

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	if s.config.RateLimit > 0 {
		v1.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(s.config.RateLimit))))
	}
	v1.GET("/index", s.handleIndex)
	v1.GET("/stats", s.handleStats)
	v1.POST("/retrieve", s.handleRetrieve)
	v1.POST("/ask", s.handleAsk)
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		s.log.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// handleError renders every error as ErrorResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if status >= http.StatusInternalServerError {
		s.log.Error(c.Request().Context(), "request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	resp := ErrorResponse{Error: msg, RequestID: c.Response().Header().Get(echo.HeaderXRequestID)}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		s.log.Warn(c.Request().Context(), "failed to write error response", zap.Error(err))
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", IndexLoaded: s.deps.Index.Load() != nil})
}

func (s *Server) handleIndex(c echo.Context) error {
	ix := s.deps.Index.Load()
	if ix == nil {
		return retrieval.ErrNoIndex
	}
	m := ix.Manifest()
	return c.JSON(http.StatusOK, IndexResponse{
		Generation:    m.Generation,
		Collection:    m.Collection,
		Model:         m.Model,
		Dimension:     m.Dimension,
		Count:         ix.Count(),
		BuiltAt:       m.BuiltAt,
		FormatVersion: m.FormatVersion,
	})
}

func (s *Server) handleRetrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	k, err := s.topK(req.K)
	if err != nil {
		return err
	}

	results, err := s.deps.Retriever.Retrieve(c.Request().Context(), req.Query, k)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, RetrieveResponse{
		Query:     strings.TrimSpace(req.Query),
		Results:   results,
		Refused:   s.deps.Gate.ShouldRefuse(results),
		Threshold: s.deps.Gate.Threshold,
	})
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	k, err := s.topK(req.K)
	if err != nil {
		return err
	}

	ans, err := s.deps.Asker.Ask(c.Request().Context(), req.Question, k)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ans)
}

func (s *Server) topK(k int) (int, error) {
	switch {
	case k == 0:
		return s.config.DefaultTopK, nil
	case k < 0:
		return 0, fmt.Errorf("%w: got %d", retrieval.ErrInvalidTopK, k)
	default:
		return k, nil
	}
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
