// Package config loads application configuration and initializes logging.
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
	Temporal  TemporalConfig  `yaml:"temporal" mapstructure:"temporal"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// TemporalConfig configures the task-queue client and worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ServerConfig configures the HTTP trigger/status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// NormalizeConfig configures line-item name normalization.
type NormalizeConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	ManualMappingsPath  string  `yaml:"manual_mappings_path" mapstructure:"manual_mappings_path"`
}

// AnthropicConfig holds Anthropic API settings for line-item extraction.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// FetchConfig configures document retrieval.
type FetchConfig struct {
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	IndexBaseURL    string  `yaml:"index_base_url" mapstructure:"index_base_url"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond   float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst       int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	DownloadDir     string  `yaml:"download_dir" mapstructure:"download_dir"`
	FTPTimeoutSecs  int     `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
	MaxDocumentSize int64   `yaml:"max_document_size" mapstructure:"max_document_size"`
}

// WorkerConfig configures orchestration task behavior.
type WorkerConfig struct {
	ActivityTimeoutSecs  int `yaml:"activity_timeout_secs" mapstructure:"activity_timeout_secs"`
	HeartbeatTimeoutSecs int `yaml:"heartbeat_timeout_secs" mapstructure:"heartbeat_timeout_secs"`
	MaxAttempts          int `yaml:"max_attempts" mapstructure:"max_attempts"`
	LeaseTTLSecs         int `yaml:"lease_ttl_secs" mapstructure:"lease_ttl_secs"`
	DocumentConcurrency  int `yaml:"document_concurrency" mapstructure:"document_concurrency"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "finstat.db")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "finstat-compile")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("normalize.similarity_threshold", 85)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("fetch.user_agent", "finstat/1.0 research@sellsadvisors.com")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.rate_per_second", 5)
	v.SetDefault("fetch.rate_burst", 5)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.download_dir", "/tmp/finstat")
	v.SetDefault("fetch.ftp_timeout_secs", 30)
	v.SetDefault("worker.activity_timeout_secs", 600)
	v.SetDefault("worker.heartbeat_timeout_secs", 60)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.lease_ttl_secs", 1800)
	v.SetDefault("worker.document_concurrency", 4)

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
