// Package config loads process-wide engine configuration from a YAML file
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/personacore/persona-memory/internal/embedding"
	"github.com/personacore/persona-memory/internal/recall"
)

// Config holds all runtime configuration.
type Config struct {
	Cache    CacheConfig    `mapstructure:"cache"`
	Budgets  recall.Budgets `mapstructure:"budgets"`
	Embedder EmbedderConfig `mapstructure:"embedder"`
}

// CacheConfig holds the two query-cache tunables. Values outside their
// clamp ranges are corrected by the cache constructor.
type CacheConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
	TTLMs    int64 `mapstructure:"ttl_ms"`
}

// TTL returns the configured TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// EmbedderConfig selects and configures the embedding provider.
// Provider is one of "ollama", "openai", or "" (vector channel disabled).
type EmbedderConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Dims     int    `mapstructure:"dims"`
}

// NewEmbedder constructs the configured embedding provider, or nil when the
// vector channel is disabled.
func (c EmbedderConfig) NewEmbedder() embedding.Embedder {
	switch c.Provider {
	case "ollama":
		model := c.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return embedding.NewOllamaEmbedder(c.BaseURL, model)
	case "openai":
		key := c.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		return embedding.NewOpenAIEmbedder(c.BaseURL, key, c.Model, c.Dims)
	default:
		return nil
	}
}

// Load reads config.yaml from the given directory (or the default data dir
// when empty), applying defaults and PERSONA_MEMORY_* env overrides. A
// missing file yields the defaults.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".persona-memory")
	}
	v.AddConfigPath(dir)

	v.SetDefault("cache.max_bytes", int64(recall.DefaultCacheMaxBytes))
	v.SetDefault("cache.ttl_ms", recall.DefaultCacheTTL.Milliseconds())
	v.SetDefault("budgets.candidate_max", recall.DefaultCandidateMax)
	v.SetDefault("budgets.rerank_max", recall.DefaultRerankMax)
	v.SetDefault("budgets.inject_max", recall.DefaultInjectMax)
	v.SetDefault("budgets.inject_char_max", recall.DefaultInjectCharMax)
	v.SetDefault("embedder.provider", "")
	v.SetDefault("embedder.model", "")
	v.SetDefault("embedder.base_url", "")
	v.SetDefault("embedder.dims", 0)

	v.SetEnvPrefix("PERSONA_MEMORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
