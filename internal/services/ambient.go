package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specrag/internal/config"
	"github.com/fyrsmithlabs/specrag/internal/logging"
	"github.com/fyrsmithlabs/specrag/internal/telemetry"
)

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg *config.Config, fields map[string]string) (*logging.Logger, error) {
	lc, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.Caller)
	if err != nil {
		return nil, err
	}
	lc.Fields = fields
	lc.Sampling = logging.SamplingConfig{
		Enabled:    cfg.Logging.Sampling.Enabled,
		Initial:    cfg.Logging.Sampling.Initial,
		Thereafter: cfg.Logging.Sampling.Thereafter,
		Tick:       cfg.Logging.Sampling.Tick,
	}
	return logging.NewLogger(lc)
}

// NewTelemetry starts OpenTelemetry export from the telemetry section.
// Disabled telemetry yields no-op providers.
func NewTelemetry(ctx context.Context, cfg *config.Config, version string, logger *zap.Logger) (*telemetry.Telemetry, error) {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.Endpoint != "" {
		tc.Endpoint = cfg.Telemetry.Endpoint
	}
	if cfg.Telemetry.Protocol != "" {
		tc.Protocol = cfg.Telemetry.Protocol
	}
	tc.Insecure = cfg.Telemetry.Insecure
	if cfg.Telemetry.SamplingRate > 0 {
		tc.SamplingRate = cfg.Telemetry.SamplingRate
	}
	if cfg.Telemetry.ServiceName != "" {
		tc.ServiceName = cfg.Telemetry.ServiceName
	}
	if version != "" {
		tc.ServiceVersion = version
	}
	return telemetry.New(ctx, tc, logger)
}
