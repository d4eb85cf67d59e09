package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/logtest"
)

func bridgedRecords(rec *logtest.Recorder) []logtest.Record {
	var out []logtest.Record
	for scope, records := range rec.Result() {
		if scope.Name == bridgeName {
			out = append(out, records...)
		}
	}
	return out
}

func TestWithOTEL_NilProviderIsNoop(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig())
	require.NoError(t, err)

	bridged, err := logger.WithOTEL(nil)
	require.NoError(t, err)
	assert.Same(t, logger, bridged)
}

func TestWithOTEL_EmitsAtConfiguredLevel(t *testing.T) {
	rec := logtest.NewRecorder()
	logger, err := NewLogger(NewDefaultConfig())
	require.NoError(t, err)

	logger, err = logger.WithOTEL(rec)
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), "req-9")
	logger.Debug(ctx, "cache miss")
	logger.Info(ctx, "index loaded")
	logger.Error(ctx, "reload failed")

	records := bridgedRecords(rec)
	require.Len(t, records, 2)

	bodies := []string{records[0].Body.AsString(), records[1].Body.AsString()}
	assert.ElementsMatch(t, []string{"index loaded", "reload failed"}, bodies)

	for _, r := range records {
		attrs := map[string]string{}
		for _, kv := range r.Attributes {
			if kv.Value.Kind() == log.KindString {
				attrs[kv.Key] = kv.Value.AsString()
			}
		}
		assert.Equal(t, "req-9", attrs["request.id"], r.Body.AsString())
		assert.Equal(t, "specrag", attrs["service"], r.Body.AsString())
	}
}

func TestWithOTEL_SeverityMapping(t *testing.T) {
	rec := logtest.NewRecorder()
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger, err = logger.WithOTEL(rec)
	require.NoError(t, err)

	logger.Warn(context.Background(), "index stale")

	records := bridgedRecords(rec)
	require.Len(t, records, 1)
	assert.Equal(t, log.SeverityWarn, records[0].Severity)
}
