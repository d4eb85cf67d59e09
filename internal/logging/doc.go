// Package logging wraps zap with context-aware methods for specrag.
//
// Every method takes a context.Context so that request IDs and OpenTelemetry
// trace/span IDs are attached to each entry without the caller passing them
// explicitly:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig())
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.Info(ctx, "query answered", zap.Int("results", 5))
//
// Packages below the command layer accept a plain *zap.Logger and wrap it
// with FromZap where they log on a request path. Keys listed in the
// redaction config (api_key, token, ...) are masked by the stream encoder.
//
// With telemetry enabled, WithOTEL tees entries into an OpenTelemetry log
// provider through the otelzap bridge. Sampling, when configured, throttles
// repeated entries below error level.
//
// Tests use NewTestLogger and its AssertRequestID / AssertTraced helpers to
// check correlation.
package logging
