package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.RunBudget())
	assert.Equal(t, 10*time.Second, cfg.SourceTimeout())
	assert.Equal(t, "ja", cfg.Translation.DefaultLanguage)
	assert.Equal(t, 30, cfg.Translation.BatchSize)
	assert.Equal(t, "gpt-4o-mini", cfg.Translation.OpenAIModel)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Translation.AnthropicModel)
	assert.Equal(t, "noop", cfg.Archive.Provider)
	assert.Equal(t, 2, cfg.Sources.GoogleNews.MaxConcurrent)
	assert.Equal(t, 0.5, cfg.Sources.CiNii.RPS)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
batch:
  concurrency: 8
translation:
  default_language: en
archive:
  provider: local
  local_dir: /tmp/payloads
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, "en", cfg.Translation.DefaultLanguage)
	assert.Equal(t, "local", cfg.Archive.Provider)
	assert.Equal(t, "/tmp/payloads", cfg.Archive.LocalDir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NEWSDISPATCH_SERVER_PORT", "9090")
	t.Setenv("NEWSDISPATCH_TRANSLATION_BATCH_SIZE", "10")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Translation.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server:      ServerConfig{Port: 8080},
		Batch:       BatchConfig{Concurrency: 4},
		HTTP:        HTTPConfig{TimeoutSeconds: 10},
		Translation: TranslationConfig{BatchSize: 30},
		Archive:     ArchiveConfig{Provider: "noop"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero concurrency", func(c *Config) { c.Batch.Concurrency = 0 }},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"zero batch size", func(c *Config) { c.Translation.BatchSize = 0 }},
		{"unknown archive provider", func(c *Config) { c.Archive.Provider = "s3" }},
		{"gcs without bucket", func(c *Config) { c.Archive.Provider = "gcs" }},
		{"local without dir", func(c *Config) { c.Archive.Provider = "local" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
