package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
providers:
  - name: groq
    type: groq
    api_key: test-key
    model: llama-3.3-70b-versatile
`))
	require.NoError(t, err)

	assert.Equal(t, "rotation", cfg.Selection.Strategy)
	assert.Equal(t, DefaultMaxChunkBytes, cfg.Chunking.MaxChunkBytes)
	assert.Equal(t, DefaultMaxChunkItems, cfg.Chunking.MaxChunkItems)
	assert.Equal(t, DefaultMaxAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, DefaultBackoffBase, cfg.Retry.BackoffBaseDuration)
	assert.Equal(t, DefaultBackoffMax, cfg.Retry.BackoffMaxDuration)
	assert.Equal(t, DefaultPerUnitTimeout, cfg.Timeouts.PerUnitDuration)
	assert.Equal(t, DefaultOverallTimeout, cfg.Timeouts.OverallDuration)
	assert.Equal(t, DefaultFloodThreshold, cfg.Triage.FloodThreshold)
	assert.Equal(t, DefaultBlacklistedPorts, cfg.Triage.BlacklistedPorts)
	assert.Equal(t, "none", cfg.Audit.Sink)
	assert.Equal(t, DefaultWeight, cfg.Providers[0].Weight)
}

func TestLoadConfigExplicitValues(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
providers:
  - name: openai
    type: openai
    api_key: key-a
    model: gpt-4o-mini
    weight: 35
    rate_limit: 2
  - name: anthropic
    type: anthropic
    api_key: key-b
    model: claude-sonnet-4-0
    weight: 30
selection:
  strategy: weighted
  seed: 42
chunking:
  max_chunk_bytes: 1048576
  max_chunk_items: 100
retry:
  max_attempts: 5
  backoff_base: 250ms
  backoff_max: 10s
timeouts:
  per_unit: 90s
  overall: 5m
audit:
  sink: file
  path: audit.jsonl
`))
	require.NoError(t, err)

	assert.Equal(t, "weighted", cfg.Selection.Strategy)
	assert.Equal(t, int64(42), cfg.Selection.Seed)
	assert.Equal(t, 100, cfg.Chunking.MaxChunkItems)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BackoffBaseDuration)
	assert.Equal(t, 10*time.Second, cfg.Retry.BackoffMaxDuration)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.PerUnitDuration)
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.OverallDuration)
	assert.Equal(t, map[string]int{"openai": 35, "anthropic": 30}, cfg.Weights())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown strategy",
			yaml: `
selection:
  strategy: fastest
`,
			wantErr: "selection.strategy",
		},
		{
			name: "missing provider name",
			yaml: `
providers:
  - type: openai
    api_key: k
`,
			wantErr: "name is required",
		},
		{
			name: "duplicate provider name",
			yaml: `
providers:
  - name: a
    type: openai
    api_key: k
  - name: a
    type: groq
    api_key: k
`,
			wantErr: "duplicate name",
		},
		{
			name: "unknown provider type",
			yaml: `
providers:
  - name: a
    type: cohere
    api_key: k
`,
			wantErr: "unknown type",
		},
		{
			name: "weight out of range",
			yaml: `
providers:
  - name: a
    type: openai
    api_key: k
    weight: 120
`,
			wantErr: "weight must be within",
		},
		{
			name: "negative chunk cap",
			yaml: `
chunking:
  max_chunk_items: -4
`,
			wantErr: "max_chunk_items must be positive",
		},
		{
			name: "bad duration",
			yaml: `
retry:
  backoff_base: soon
`,
			wantErr: "invalid duration",
		},
		{
			name: "file sink without path",
			yaml: `
audit:
  sink: file
`,
			wantErr: "audit.path is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
