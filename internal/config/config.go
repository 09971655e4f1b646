// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Batch       BatchConfig       `mapstructure:"batch"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Translation TranslationConfig `mapstructure:"translation"`
	DB          DBConfig          `mapstructure:"db"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// BatchConfig governs the worker pool driving SearchConfig runs.
type BatchConfig struct {
	Concurrency   int `mapstructure:"concurrency"`
	BudgetSeconds int `mapstructure:"budget_seconds"`
}

// HTTPConfig configures outbound HTTP behavior for source clients.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// SourceLimitConfig caps outbound pressure on one source API.
type SourceLimitConfig struct {
	MaxConcurrent int     `mapstructure:"max_concurrent"`
	RPS           float64 `mapstructure:"rps"`
}

// SourcesConfig holds per-source credentials and limits.
type SourcesConfig struct {
	GoogleNews SourceLimitConfig `mapstructure:"google_news"`
	CiNii      SourceLimitConfig `mapstructure:"cinii"`
	Arxiv      SourceLimitConfig `mapstructure:"arxiv"`
	CiNiiAppID string            `mapstructure:"cinii_app_id"`
}

// TranslationConfig selects providers and batching for title translation.
// DefaultLanguage is the target language for users without a preference.
type TranslationConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
	BatchSize       int    `mapstructure:"batch_size"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	OpenAIModel     string `mapstructure:"openai_model"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ArchiveConfig sets where raw provider payloads are archived.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-outcome event publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSDISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.budget_seconds", 600)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("sources.google_news.max_concurrent", 2)
	v.SetDefault("sources.google_news.rps", 1)
	v.SetDefault("sources.cinii.max_concurrent", 1)
	v.SetDefault("sources.cinii.rps", 0.5)
	v.SetDefault("sources.arxiv.max_concurrent", 1)
	v.SetDefault("sources.arxiv.rps", 0.5)
	v.SetDefault("translation.default_language", "ja")
	v.SetDefault("translation.batch_size", 30)
	v.SetDefault("translation.openai_model", "gpt-4o-mini")
	v.SetDefault("translation.anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "payloads")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Translation.BatchSize <= 0 {
		return fmt.Errorf("translation.batch_size must be > 0")
	}
	switch c.Archive.Provider {
	case "noop", "local", "gcs":
	default:
		return fmt.Errorf("unknown archive provider %q", c.Archive.Provider)
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
	}
	if c.Archive.Provider == "local" && c.Archive.LocalDir == "" {
		return fmt.Errorf("archive.local_dir must be set when archive.provider is local")
	}
	return nil
}

// RunBudget returns the overall batch deadline.
func (c Config) RunBudget() time.Duration {
	return time.Duration(c.Batch.BudgetSeconds) * time.Second
}

// SourceTimeout returns the per-source-call timeout.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
