package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider types recognized by the registry.
const (
	TypeOpenAI    = "openai"
	TypeGroq      = "groq"
	TypeAnthropic = "anthropic"
	TypeGemini    = "gemini"
)

// ProviderConfig holds the connection settings for one inference backend.
// APIKey and BaseURL are opaque to the core; the adapter for Type
// interprets them.
type ProviderConfig struct {
	Name           string  `yaml:"name"`
	Type           string  `yaml:"type"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Weight         int     `yaml:"weight"`
	MaxContextSize int     `yaml:"max_context_size"`
	MaxTokens      int     `yaml:"max_tokens"`
	RateLimit      float64 `yaml:"rate_limit"`
}

// SelectionConfig picks the provider fairness policy.
type SelectionConfig struct {
	Strategy string `yaml:"strategy"`
	Seed     int64  `yaml:"seed"`
}

// ChunkingConfig bounds the work units the chunk builder produces.
type ChunkingConfig struct {
	MaxChunkBytes int `yaml:"max_chunk_bytes"`
	MaxChunkItems int `yaml:"max_chunk_items"`
}

// RetryConfig controls the dispatcher's backoff between attempts.
// Durations are given as Go duration strings in the YAML file and parsed
// into the exported duration fields during validation.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BackoffBase string `yaml:"backoff_base"`
	BackoffMax  string `yaml:"backoff_max"`

	BackoffBaseDuration time.Duration `yaml:"-"`
	BackoffMaxDuration  time.Duration `yaml:"-"`
}

// TimeoutsConfig bounds individual calls and whole queries.
type TimeoutsConfig struct {
	PerUnit string `yaml:"per_unit"`
	Overall string `yaml:"overall"`

	PerUnitDuration time.Duration `yaml:"-"`
	OverallDuration time.Duration `yaml:"-"`
}

// TriageConfig tunes the suspicion heuristics and summary bounds.
type TriageConfig struct {
	FloodThreshold   int      `yaml:"flood_threshold"`
	BlacklistedPorts []uint16 `yaml:"blacklisted_ports"`
	TopN             int      `yaml:"top_n"`
	SampleSize       int      `yaml:"sample_size"`
}

// ClickHouseConfig holds the connection settings for the audit store.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AuditConfig selects where finished queries are recorded.
type AuditConfig struct {
	Sink       string           `yaml:"sink"`
	Path       string           `yaml:"path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// NotifyConfig enables completion events over NATS when a URL is set.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// APIConfig configures the HTTP gateway.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
	Selection SelectionConfig  `yaml:"selection"`
	Chunking  ChunkingConfig   `yaml:"chunking"`
	Retry     RetryConfig      `yaml:"retry"`
	Timeouts  TimeoutsConfig   `yaml:"timeouts"`
	Triage    TriageConfig     `yaml:"triage"`
	Audit     AuditConfig      `yaml:"audit"`
	Notify    NotifyConfig     `yaml:"notify"`
	API       APIConfig        `yaml:"api"`
}

// Defaults applied when the file leaves a knob unset.
const (
	DefaultStrategy       = "rotation"
	DefaultWeight         = 33
	DefaultMaxChunkBytes  = 5 * 1024 * 1024
	DefaultMaxChunkItems  = 5000
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 500 * time.Millisecond
	DefaultBackoffMax     = 30 * time.Second
	DefaultPerUnitTimeout = 2 * time.Minute
	DefaultOverallTimeout = 10 * time.Minute
	DefaultFloodThreshold = 10
	DefaultTopN           = 5
	DefaultSampleSize     = 5
	DefaultListenAddr     = ":8080"
)

// DefaultBlacklistedPorts are placeholder and historically abused ports
// the filter treats as hostile regardless of direction.
var DefaultBlacklistedPorts = []uint16{0, 65535, 31337, 6667}

// LoadConfig reads the configuration from a YAML file, fills defaults and
// validates every field before returning.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Selection.Strategy == "" {
		c.Selection.Strategy = DefaultStrategy
	}
	if c.Chunking.MaxChunkBytes == 0 {
		c.Chunking.MaxChunkBytes = DefaultMaxChunkBytes
	}
	if c.Chunking.MaxChunkItems == 0 {
		c.Chunking.MaxChunkItems = DefaultMaxChunkItems
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retry.BackoffBase == "" {
		c.Retry.BackoffBaseDuration = DefaultBackoffBase
	}
	if c.Retry.BackoffMax == "" {
		c.Retry.BackoffMaxDuration = DefaultBackoffMax
	}
	if c.Timeouts.PerUnit == "" {
		c.Timeouts.PerUnitDuration = DefaultPerUnitTimeout
	}
	if c.Timeouts.Overall == "" {
		c.Timeouts.OverallDuration = DefaultOverallTimeout
	}
	if c.Triage.FloodThreshold == 0 {
		c.Triage.FloodThreshold = DefaultFloodThreshold
	}
	if len(c.Triage.BlacklistedPorts) == 0 {
		c.Triage.BlacklistedPorts = DefaultBlacklistedPorts
	}
	if c.Triage.TopN == 0 {
		c.Triage.TopN = DefaultTopN
	}
	if c.Triage.SampleSize == 0 {
		c.Triage.SampleSize = DefaultSampleSize
	}
	if c.Audit.Sink == "" {
		c.Audit.Sink = "none"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = DefaultListenAddr
	}
	for i := range c.Providers {
		if c.Providers[i].Weight == 0 {
			c.Providers[i].Weight = DefaultWeight
		}
	}
}

// Validate range-checks every field so downstream components can trust
// the struct without re-checking.
func (c *Config) Validate() error {
	switch c.Selection.Strategy {
	case "rotation", "weighted":
	default:
		return fmt.Errorf("selection.strategy must be 'rotation' or 'weighted', got %q", c.Selection.Strategy)
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case TypeOpenAI, TypeGroq, TypeAnthropic, TypeGemini:
		default:
			return fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
		}
		if p.Weight < 0 || p.Weight > 100 {
			return fmt.Errorf("provider %q: weight must be within [0,100], got %d", p.Name, p.Weight)
		}
		if p.RateLimit < 0 {
			return fmt.Errorf("provider %q: rate_limit must not be negative", p.Name)
		}
	}

	if c.Chunking.MaxChunkBytes <= 0 {
		return fmt.Errorf("chunking.max_chunk_bytes must be positive, got %d", c.Chunking.MaxChunkBytes)
	}
	if c.Chunking.MaxChunkItems <= 0 {
		return fmt.Errorf("chunking.max_chunk_items must be positive, got %d", c.Chunking.MaxChunkItems)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}

	var err error
	if c.Retry.BackoffBaseDuration, err = parseDuration(c.Retry.BackoffBase, c.Retry.BackoffBaseDuration, "retry.backoff_base"); err != nil {
		return err
	}
	if c.Retry.BackoffMaxDuration, err = parseDuration(c.Retry.BackoffMax, c.Retry.BackoffMaxDuration, "retry.backoff_max"); err != nil {
		return err
	}
	if c.Timeouts.PerUnitDuration, err = parseDuration(c.Timeouts.PerUnit, c.Timeouts.PerUnitDuration, "timeouts.per_unit"); err != nil {
		return err
	}
	if c.Timeouts.OverallDuration, err = parseDuration(c.Timeouts.Overall, c.Timeouts.OverallDuration, "timeouts.overall"); err != nil {
		return err
	}
	if c.Retry.BackoffMaxDuration < c.Retry.BackoffBaseDuration {
		return fmt.Errorf("retry.backoff_max must not be below retry.backoff_base")
	}

	if c.Triage.FloodThreshold < 1 {
		return fmt.Errorf("triage.flood_threshold must be at least 1, got %d", c.Triage.FloodThreshold)
	}
	if c.Triage.TopN < 1 {
		return fmt.Errorf("triage.top_n must be at least 1, got %d", c.Triage.TopN)
	}
	if c.Triage.SampleSize < 1 {
		return fmt.Errorf("triage.sample_size must be at least 1, got %d", c.Triage.SampleSize)
	}

	switch c.Audit.Sink {
	case "none", "file", "clickhouse":
	default:
		return fmt.Errorf("audit.sink must be 'none', 'file' or 'clickhouse', got %q", c.Audit.Sink)
	}
	if c.Audit.Sink == "file" && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required for the file sink")
	}

	return nil
}

// parseDuration parses a YAML duration string, keeping the already-set
// default when the string is empty.
func parseDuration(raw string, fallback time.Duration, field string) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, d)
	}
	return d, nil
}

// Weights maps provider names to their configured target weights.
func (c *Config) Weights() map[string]int {
	weights := make(map[string]int, len(c.Providers))
	for _, p := range c.Providers {
		weights[p.Name] = p.Weight
	}
	return weights
}
