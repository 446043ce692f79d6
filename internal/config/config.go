package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Reviews   ReviewsConfig   `yaml:"reviews" mapstructure:"reviews"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the artifact store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ReviewsConfig holds review feed API settings.
type ReviewsConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateRPS   float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	PageSize  int     `yaml:"page_size" mapstructure:"page_size"`
}

// EmbeddingConfig holds embedding API settings.
type EmbeddingConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	RateRPS   float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures the analysis run.
type PipelineConfig struct {
	ReviewCount        int      `yaml:"review_count" mapstructure:"review_count"`
	ClusterCount       int      `yaml:"cluster_count" mapstructure:"cluster_count"`
	TopicCount         int      `yaml:"topic_count" mapstructure:"topic_count"`
	Seed               int64    `yaml:"seed" mapstructure:"seed"`
	EnabledStages      []string `yaml:"enabled_stages" mapstructure:"enabled_stages"`
	KeywordDictionary  []string `yaml:"keyword_dictionary" mapstructure:"keyword_dictionary"`
	MaxFindings        int      `yaml:"max_findings" mapstructure:"max_findings"`
	MaxRecommendations int      `yaml:"max_recommendations" mapstructure:"max_recommendations"`
	MaxEvidence        int      `yaml:"max_evidence" mapstructure:"max_evidence"`
	Representatives    int      `yaml:"representatives" mapstructure:"representatives"`
	RulesPath          string   `yaml:"rules_path" mapstructure:"rules_path"`
}

// BatchConfig configures the batched external calls.
type BatchConfig struct {
	Size            int   `yaml:"size" mapstructure:"size"`
	Concurrency     int   `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries      int   `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffBaseMS   int   `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	CallTimeoutSecs int   `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	MaxPayloadBytes int64 `yaml:"max_payload_bytes" mapstructure:"max_payload_bytes"`

	// Circuit breaker guarding each external service.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ExportConfig configures report output.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AllStages lists every pipeline stage in execution order.
var AllStages = []string{
	"fetch", "clean", "sentiment", "topics", "embed",
	"cluster", "categorize", "aggregate", "synthesize", "export",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("APPSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "appsight.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("reviews.base_url", "https://reviews.appsight.dev/v1")
	v.SetDefault("reviews.rate_rps", 2.0)
	v.SetDefault("reviews.rate_burst", 4)
	v.SetDefault("reviews.page_size", 100)
	v.SetDefault("embedding.base_url", "https://api.appsight.dev/embeddings/v1")
	v.SetDefault("embedding.model", "text-embed-3")
	v.SetDefault("embedding.rate_rps", 5.0)
	v.SetDefault("embedding.rate_burst", 10)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("pipeline.review_count", 500)
	v.SetDefault("pipeline.cluster_count", 8)
	v.SetDefault("pipeline.topic_count", 10)
	v.SetDefault("pipeline.seed", 42)
	v.SetDefault("pipeline.enabled_stages", AllStages)
	v.SetDefault("pipeline.keyword_dictionary", []string{
		"crash", "freeze", "bug", "slow", "battery",
		"ads", "payment", "refund", "login", "privacy",
	})
	v.SetDefault("pipeline.max_findings", 5)
	v.SetDefault("pipeline.max_recommendations", 5)
	v.SetDefault("pipeline.max_evidence", 3)
	v.SetDefault("pipeline.representatives", 5)
	v.SetDefault("batch.size", 32)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.max_retries", 3)
	v.SetDefault("batch.backoff_base_ms", 500)
	v.SetDefault("batch.call_timeout_secs", 60)
	v.SetDefault("batch.breaker_threshold", 5)
	v.SetDefault("batch.breaker_reset_secs", 30)
	v.SetDefault("export.dir", "out")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
