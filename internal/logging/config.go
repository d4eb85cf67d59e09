package logging

import (
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level
	Format    string // json or console
	Output    string // stderr or stdout
	Caller    bool
	Fields    map[string]string
	Redaction RedactionConfig
	Sampling  SamplingConfig
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: "stderr",
		Caller: false,
		Fields: map[string]string{
			"service": "specrag",
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"api_key", "token", "secret", "authorization", "password",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`\bsk-[A-Za-z0-9_-]{8,}`,
			},
		},
		Sampling: SamplingConfig{Initial: 100, Thereafter: 100, Tick: time.Second},
	}
}

// FromSettings builds a Config from the flat logging section of the
// application config.
func FromSettings(level, format, output string, caller bool) (*Config, error) {
	cfg := NewDefaultConfig()
	lvl, err := LevelFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl
	if format != "" {
		cfg.Format = format
	}
	if output != "" {
		cfg.Output = output
	}
	cfg.Caller = caller
	return cfg, nil
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if c.Output != "stderr" && c.Output != "stdout" {
		return fmt.Errorf("output must be 'stderr' or 'stdout', got %q", c.Output)
	}

	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > 200 {
				return fmt.Errorf("redaction pattern too long (max 200 chars): %q", pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
	}

	if c.Sampling.Enabled && (c.Sampling.Initial < 1 || c.Sampling.Thereafter < 1) {
		return fmt.Errorf("sampling initial and thereafter must be positive")
	}

	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}

	return nil
}
