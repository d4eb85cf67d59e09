package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestNew_DisabledTelemetry(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := &Config{Enabled: true}

	tel, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "disabled skips checks", mutate: func(c *Config) { c.Endpoint = "" }},
		{name: "local insecure", mutate: func(c *Config) { c.Enabled = true }},
		{name: "local with scheme", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "http://127.0.0.1:4318"; c.Protocol = "http/protobuf" }},
		{name: "ipv6 loopback", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }},
		{name: "remote insecure", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, wantErr: "insecure"},
		{name: "remote tls", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317"; c.Insecure = false }},
		{name: "bad protocol", mutate: func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, wantErr: "protocol"},
		{name: "bad sampling", mutate: func(c *Config) { c.Enabled = true; c.SamplingRate = 1.5 }, wantErr: "sampling_rate"},
		{name: "no service name", mutate: func(c *Config) { c.Enabled = true; c.ServiceName = "" }, wantErr: "service_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.LoggerProvider()
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})
	assert.Equal(t, HealthStatus{Healthy: false, Degraded: true}, tel.Health())
}

func TestNew_EnabledDoesNotBlockWithoutCollector(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "localhost:1"
	cfg.ShutdownTimeout = 100 * time.Millisecond

	tel, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.NotNil(t, tel.LoggerProvider())

	// Nothing was recorded, so shutdown has nothing to push.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = tel.Shutdown(ctx)
	assert.False(t, tel.IsEnabled())
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "vectorstore.Query")
	span.SetAttributes(attribute.Int("k", 5))
	span.End()

	tt.AssertSpanExists(t, "vectorstore.Query")
	tt.AssertSpanAttribute(t, "vectorstore.Query", "k", int64(5))

	counter, err := tt.Meter("test").Int64Counter("specrag.test.count")
	require.NoError(t, err)
	counter.Add(ctx, 2, metric.WithAttributes(attribute.String("route", "/a")))
	counter.Add(ctx, 3, metric.WithAttributes(attribute.String("route", "/b")))

	total, found := tt.SumValue(t, "specrag.test.count")
	assert.True(t, found)
	assert.Equal(t, int64(5), total)

	total, _ = tt.SumValue(t, "specrag.test.count", attribute.String("route", "/b"))
	assert.Equal(t, int64(3), total)

	_, found = tt.SumValue(t, "specrag.test.missing")
	assert.False(t, found)
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))
}
