// Package config loads specrag configuration from YAML and the environment.
//
// Every section has a usable default, so a missing config file is not an
// error. Defaults target the WCAG 2.2 Recommendation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultRefusalThreshold is the cosine distance above which the top result is
// considered too far from the question to answer from. It applies to every
// answer path, extractive and LLM alike.
const DefaultRefusalThreshold = 0.40

// Config holds the complete specrag configuration.
type Config struct {
	Document   DocumentConfig   `koanf:"document"`
	Segmenter  SegmenterConfig  `koanf:"segmenter"`
	Chunks     ChunksConfig     `koanf:"chunks"`
	Index      IndexConfig      `koanf:"index"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Answer     AnswerConfig     `koanf:"answer"`
	LLM        LLMConfig        `koanf:"llm"`
	Fetch      FetchConfig      `koanf:"fetch"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// DocumentConfig describes the single source document and the provenance
// stamped onto every chunk segmented from it.
type DocumentConfig struct {
	SourceURL   string `koanf:"source_url"`
	RawPath     string `koanf:"raw_path"`
	BaseURL     string `koanf:"base_url"`
	DocSet      string `koanf:"doc_set"`
	Source      string `koanf:"source"`
	Normativity string `koanf:"normativity"`
	Version     string `koanf:"version"`
}

// SegmenterConfig controls heading recognition and body accumulation.
type SegmenterConfig struct {
	Label            string   `koanf:"label"`
	ReservedSections []string `koanf:"reserved_sections"`
	CandidateTags    []string `koanf:"candidate_tags"`
	ContentTags      []string `koanf:"content_tags"`
	StopTags         []string `koanf:"stop_tags"`
	SkipTags         []string `koanf:"skip_tags"`
}

// ChunksConfig locates the JSONL chunk file.
type ChunksConfig struct {
	Path string `koanf:"path"`
}

// IndexConfig locates the persisted vector index.
type IndexConfig struct {
	Path            string `koanf:"path"`
	Collection      string `koanf:"collection"`
	Compress        bool   `koanf:"compress"`
	KeepGenerations int    `koanf:"keep_generations"`
}

// EmbeddingsConfig selects and tunes the embedding provider.
type EmbeddingsConfig struct {
	Provider    string `koanf:"provider"` // fastembed, tei, openai, hash
	Model       string `koanf:"model"`
	BaseURL     string `koanf:"base_url"`
	APIKey      Secret `koanf:"api_key"`
	CacheDir    string `koanf:"cache_dir"`
	BatchSize   int    `koanf:"batch_size"`
	Concurrency int    `koanf:"concurrency"`
	Dimension   int    `koanf:"dimension"` // hash provider only
}

// RetrievalConfig holds query-time parameters.
type RetrievalConfig struct {
	TopK             int     `koanf:"top_k"`
	RefusalThreshold float64 `koanf:"refusal_threshold"`
}

// AnswerConfig shapes the extractive answer and its citations.
type AnswerConfig struct {
	ExcerptChars int `koanf:"excerpt_chars"`
	Citations    int `koanf:"citations"`
}

// LLMConfig configures the optional grounded generation path.
type LLMConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Model             string        `koanf:"model"`
	BaseURL           string        `koanf:"base_url"`
	APIKey            Secret        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// FetchConfig configures the raw document download.
type FetchConfig struct {
	UserAgent string        `koanf:"user_agent"`
	Timeout   time.Duration `koanf:"timeout"`
	Root      string        `koanf:"root"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimit       float64       `koanf:"rate_limit"`
	DisableWatch    bool          `koanf:"disable_watch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Output string `koanf:"output"` // stderr or stdout
	Caller bool   `koanf:"caller"`

	Sampling LogSamplingConfig `koanf:"sampling"`
}

// LogSamplingConfig limits repeated entries below error level. Within each
// tick the first Initial entries with the same message pass, then every
// Thereafter-th one.
type LogSamplingConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Initial    int           `koanf:"initial"`
	Thereafter int           `koanf:"thereafter"`
	Tick       time.Duration `koanf:"tick"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	Protocol     string  `koanf:"protocol"` // grpc or http/protobuf
	Insecure     bool    `koanf:"insecure"`
	SamplingRate float64 `koanf:"sampling_rate"`
	ServiceName  string  `koanf:"service_name"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Document.RawPath == "" {
		errs = append(errs, errors.New("document.raw_path is required"))
	}
	if c.Chunks.Path == "" {
		errs = append(errs, errors.New("chunks.path is required"))
	}
	if c.Index.Path == "" {
		errs = append(errs, errors.New("index.path is required"))
	}
	if c.Index.Collection == "" {
		errs = append(errs, errors.New("index.collection is required"))
	}
	if c.Index.KeepGenerations < 0 {
		errs = append(errs, fmt.Errorf("index.keep_generations must be >= 0, got %d", c.Index.KeepGenerations))
	}
	if len(c.Segmenter.CandidateTags) == 0 {
		errs = append(errs, errors.New("segmenter.candidate_tags must not be empty"))
	}
	if len(c.Segmenter.ContentTags) == 0 {
		errs = append(errs, errors.New("segmenter.content_tags must not be empty"))
	}

	switch c.Embeddings.Provider {
	case "fastembed", "hash":
	case "tei", "openai":
		if c.Embeddings.BaseURL == "" && c.Embeddings.Provider == "tei" {
			errs = append(errs, errors.New("embeddings.base_url is required for the tei provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider must be fastembed, tei, openai or hash, got %q", c.Embeddings.Provider))
	}
	if c.Embeddings.Model == "" {
		errs = append(errs, errors.New("embeddings.model is required"))
	}
	if c.Embeddings.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize))
	}
	if c.Embeddings.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("embeddings.concurrency must be positive, got %d", c.Embeddings.Concurrency))
	}

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.RefusalThreshold < 0 || c.Retrieval.RefusalThreshold > 2 {
		errs = append(errs, fmt.Errorf("retrieval.refusal_threshold must be within [0, 2], got %v", c.Retrieval.RefusalThreshold))
	}

	if c.LLM.Enabled && c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required when llm.enabled"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}
	switch c.Logging.Output {
	case "stderr", "stdout":
	default:
		errs = append(errs, fmt.Errorf("logging.output must be 'stderr' or 'stdout', got %q", c.Logging.Output))
	}

	if c.Logging.Sampling.Enabled && (c.Logging.Sampling.Initial < 1 || c.Logging.Sampling.Thereafter < 1) {
		errs = append(errs, errors.New("logging.sampling.initial and logging.sampling.thereafter must be positive"))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sampling_rate must be between 0 and 1, got %v", c.Telemetry.SamplingRate))
		}
	}

	return errors.Join(errs...)
}

// ServerAddr returns the host:port the HTTP server listens on.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
