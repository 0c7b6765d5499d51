package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the docchat service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Databases DatabasesConfig `mapstructure:"databases"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Listen        string `mapstructure:"listen"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
	Debug         bool   `mapstructure:"debug"`
}

// ProvidersConfig contains upstream model provider settings.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig configures the completion/embedding provider.
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

func (c OpenAIConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("providers.openai.api_key is required")
	}
	return nil
}

// UploadsConfig controls the scratch directory for uploaded documents.
type UploadsConfig struct {
	Dir       string `mapstructure:"dir"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

func (c UploadsConfig) MaxSizeBytes() int64 { return int64(c.MaxSizeMB) << 20 }

// SessionsConfig controls the session store and its eviction policy.
type SessionsConfig struct {
	Store         string        `mapstructure:"store"` // inmemory, redis or postgres
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func (c SessionsConfig) Validate() error {
	switch c.Store {
	case "inmemory", "redis", "postgres":
	default:
		return fmt.Errorf("sessions.store must be inmemory, redis or postgres, got %q", c.Store)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("sessions.ttl must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sessions.sweep_interval must be positive")
	}
	return nil
}

// RetrievalConfig tunes chunking and retrieval.
type RetrievalConfig struct {
	TopK          int `mapstructure:"top_k"`
	ChunkSize     int `mapstructure:"chunk_size"`
	ChunkOverlap  int `mapstructure:"chunk_overlap"`
	HistoryTurns  int `mapstructure:"history_turns"`
	SummaryChunks int `mapstructure:"summary_chunks"`
}

func (c RetrievalConfig) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap must be smaller than retrieval.chunk_size")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	return nil
}

// RateLimitConfig caps requests per client over a fixed window.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Burst    int           `mapstructure:"burst"`
}

// DatabasesConfig holds settings for the optional session store backends.
type DatabasesConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", c.Host, c.Port) }

// PostgresConfig contains postgres connection settings.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection string from the configured fields.
func (c PostgresConfig) DSN() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	if c.Host == "" || c.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, port, c.DBName, ssl), nil
}

// LoadConfig reads configuration from the given file (or the default search
// paths when empty), applies DOCCHAT_* environment overrides and validates
// the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.listen", ":8080")
	v.SetDefault("general.allowed_origin", "*")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	v.SetDefault("providers.openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("providers.openai.temperature", 0.2)
	v.SetDefault("providers.openai.max_tokens", 1024)
	v.SetDefault("providers.openai.timeout", 30*time.Second)
	v.SetDefault("providers.openai.max_retries", 3)
	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.max_size_mb", 10)
	v.SetDefault("sessions.store", "inmemory")
	v.SetDefault("sessions.ttl", time.Hour)
	v.SetDefault("sessions.sweep_interval", time.Hour)
	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.chunk_size", 2000)
	v.SetDefault("retrieval.chunk_overlap", 200)
	v.SetDefault("retrieval.history_turns", 2)
	v.SetDefault("retrieval.summary_chunks", 4)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", 15*time.Minute)
	v.SetDefault("rate_limit.burst", 10)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("DOCCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// a config file is optional; env vars and defaults may be enough
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Providers.OpenAI.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Sessions.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Retrieval.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
