package logging

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// SamplingConfig throttles repeated entries below error level.
type SamplingConfig struct {
	Enabled bool
	// Initial entries with the same level and message are logged per Tick,
	// then every Thereafter-th one.
	Initial    int
	Thereafter int
	Tick       time.Duration
}

// newSampledCore samples everything below error. Error and above always
// pass through.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = time.Second
	}

	errors := &levelFilterCore{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel}
	chatter := &levelFilterCore{Core: core, min: TraceLevel, max: zapcore.WarnLevel}
	return zapcore.NewTee(
		errors,
		zapcore.NewSamplerWithOptions(chatter, tick, cfg.Initial, cfg.Thereafter),
	)
}

// levelFilterCore passes entries with min <= level <= max.
type levelFilterCore struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && lvl <= c.max && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), min: c.min, max: c.max}
}
