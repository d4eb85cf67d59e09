// Package main implements the specrag CLI.
//
// specrag turns the WCAG 2.2 Recommendation into a queryable index and
// answers questions from its normative text:
//
//	specrag fetch      # download the source document
//	specrag segment    # split it into one chunk per success criterion
//	specrag build      # embed the chunks into a new index generation
//	specrag ask "..."  # answer, citing criteria, or refuse
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/config"
	"github.com/fyrsmithlabs/specrag/internal/logging"
	"github.com/fyrsmithlabs/specrag/internal/services"
	"github.com/fyrsmithlabs/specrag/internal/telemetry"
)

var (
	// configPath overrides the default config file location
	configPath string
	// logLevel overrides logging.level
	logLevel string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "specrag",
	Short: "Retrieval-augmented answers from the WCAG 2.2 normative text",
	Long: `specrag fetches the WCAG 2.2 Recommendation, segments it into one chunk per
success criterion, embeds the chunks into a local vector index and answers
questions from it. Answers cite the criteria they draw on; questions the index
cannot answer confidently are refused.

Configuration is read from ~/.config/specrag/config.yaml and SPECRAG_*
environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/specrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
}

// env is the per-invocation ambient stack.
type env struct {
	cfg    *config.Config
	log    *logging.Logger
	logger *zap.Logger
	tel    *telemetry.Telemetry
}

// setup loads configuration and starts logging and telemetry. adjust runs
// after flags are applied. Callers must defer close.
func setup(cmd *cobra.Command, adjust ...func(*config.Config)) (*env, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	for _, fn := range adjust {
		fn(cfg)
	}

	log, err := services.NewLogger(cfg, map[string]string{"command": cmd.Name()})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	tel, err := services.NewTelemetry(cmd.Context(), cfg, version, log.Underlying())
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	if log, err = log.WithOTEL(tel.LoggerProvider()); err != nil {
		return nil, fmt.Errorf("bridging logs to telemetry: %w", err)
	}

	return &env{cfg: cfg, log: log, logger: log.Underlying(), tel: tel}, nil
}

func (e *env) close() {
	if err := e.tel.Shutdown(context.Background()); err != nil {
		e.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	_ = e.log.Sync()
}
