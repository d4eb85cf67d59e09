package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SPECRAG_"
)

// DefaultPath returns ~/.config/specrag/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "specrag", "config.yaml"), nil
}

// Load loads configuration from the default path and the environment.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SPECRAG_RETRIEVAL_TOP_K, SPECRAG_INDEX_PATH, ...)
//  2. YAML config file
//  3. Defaults
//
// A missing file is not an error. An existing file must be at most 1MB and,
// outside Windows, must not be writable by group or others.
//
// Environment variables map onto section.field by splitting on the first
// underscore after the prefix:
//
//	SPECRAG_RETRIEVAL_REFUSAL_THRESHOLD -> retrieval.refusal_threshold
//	SPECRAG_LLM_API_KEY                 -> llm.api_key
//
// List values accept comma-separated strings.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); err == nil {
		// Validate on the open descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps SPECRAG_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o022 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	d := &cfg.Document
	if d.SourceURL == "" {
		d.SourceURL = "https://www.w3.org/TR/WCAG22/"
	}
	if d.RawPath == "" {
		d.RawPath = "data/raw/www.w3.org/TR/WCAG22/index.html"
	}
	if d.BaseURL == "" {
		d.BaseURL = d.SourceURL
	}
	if d.DocSet == "" {
		d.DocSet = "wcag22"
	}
	if d.Source == "" {
		d.Source = "wcag_spec"
	}
	if d.Normativity == "" {
		d.Normativity = "normative"
	}
	if d.Version == "" {
		d.Version = "2.2"
	}

	s := &cfg.Segmenter
	if s.Label == "" {
		s.Label = "Success Criterion"
	}
	if len(s.ReservedSections) == 0 {
		s.ReservedSections = []string{"5"}
	}
	if len(s.CandidateTags) == 0 {
		s.CandidateTags = []string{"h2", "h3", "h4", "h5", "dt"}
	}
	if len(s.ContentTags) == 0 {
		s.ContentTags = []string{"p", "li", "dt", "dd", "blockquote"}
	}
	if len(s.StopTags) == 0 {
		s.StopTags = []string{"h1", "h2"}
	}
	if len(s.SkipTags) == 0 {
		s.SkipTags = []string{"nav", "header", "footer"}
	}
	s.ReservedSections = splitList(s.ReservedSections)
	s.CandidateTags = splitList(s.CandidateTags)
	s.ContentTags = splitList(s.ContentTags)
	s.StopTags = splitList(s.StopTags)
	s.SkipTags = splitList(s.SkipTags)

	if cfg.Chunks.Path == "" {
		cfg.Chunks.Path = "data/processed/wcag22_spec_sc.jsonl"
	}

	if cfg.Index.Path == "" {
		cfg.Index.Path = "data/vectorstore/chroma_wcag22"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "wcag22_spec"
	}
	if cfg.Index.KeepGenerations == 0 {
		cfg.Index.KeepGenerations = 1
	}

	e := &cfg.Embeddings
	if e.Provider == "" {
		e.Provider = "fastembed"
	}
	if e.Model == "" {
		e.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if e.CacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			e.CacheDir = filepath.Join(home, ".config", "specrag", "models")
		}
	}
	if e.BatchSize == 0 {
		e.BatchSize = 64
	}
	if e.Concurrency == 0 {
		e.Concurrency = 4
	}
	if e.Dimension == 0 {
		e.Dimension = 384
	}

	// A zero threshold would refuse everything but exact matches, so zero is
	// read as unset.
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.RefusalThreshold == 0 {
		cfg.Retrieval.RefusalThreshold = DefaultRefusalThreshold
	}

	if cfg.Answer.ExcerptChars == 0 {
		cfg.Answer.ExcerptChars = 1200
	}
	if cfg.Answer.Citations == 0 {
		cfg.Answer.Citations = 3
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.LLM.RequestsPerSecond == 0 {
		cfg.LLM.RequestsPerSecond = 1
	}

	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "specrag-downloader/1.0 (+https://github.com/fyrsmithlabs/specrag)"
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 30 * time.Second
	}
	if cfg.Fetch.Root == "" {
		cfg.Fetch.Root = "data/raw"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	if cfg.Logging.Sampling.Initial == 0 {
		cfg.Logging.Sampling.Initial = 100
	}
	if cfg.Logging.Sampling.Thereafter == 0 {
		cfg.Logging.Sampling.Thereafter = 100
	}
	if cfg.Logging.Sampling.Tick <= 0 {
		cfg.Logging.Sampling.Tick = time.Second
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "specrag"
	}
}
