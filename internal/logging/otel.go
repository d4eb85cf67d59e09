package logging

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// bridgeName is the instrumentation scope of records sent over OTLP.
const bridgeName = "github.com/fyrsmithlabs/specrag"

// WithOTEL returns a logger that also emits every entry at or above the
// configured level as an OpenTelemetry log record through provider. A nil
// provider returns l unchanged.
//
// The result is rebuilt from l's config, so fields added with With or
// Named are not carried over.
func (l *Logger) WithOTEL(provider log.LoggerProvider) (*Logger, error) {
	if provider == nil {
		return l, nil
	}
	return newLogger(l.config, newBridgeCore(provider, l.config.Level))
}

// newBridgeCore gates the otelzap core to [level, fatal]; the bridge itself
// only asks the provider.
func newBridgeCore(provider log.LoggerProvider, level zapcore.Level) zapcore.Core {
	return &levelFilterCore{
		Core: otelzap.NewCore(bridgeName, otelzap.WithLoggerProvider(provider)),
		min:  level,
		max:  zapcore.FatalLevel,
	}
}
