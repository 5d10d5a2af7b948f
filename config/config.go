package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the document chat backend.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Session   SessionConfig   `mapstructure:"session"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// UploadConfig carries the intake limits enforced before extraction starts.
type UploadConfig struct {
	MaxFileBytes    int64 `mapstructure:"max_file_bytes"`
	MaxSessionBytes int64 `mapstructure:"max_session_bytes"`
	MaxSessionFiles int   `mapstructure:"max_session_files"`
}

// ExtractConfig controls PDF text extraction.
type ExtractConfig struct {
	MaxPages int `mapstructure:"max_pages"`
	// MinPageChars is the character floor below which a page is treated as
	// scanned (no usable text layer).
	MinPageChars int `mapstructure:"min_page_chars"`
}

// ChunkingConfig controls the token sliding window.
type ChunkingConfig struct {
	WindowTokens  int     `mapstructure:"window_tokens"`
	MinTokens     int     `mapstructure:"min_tokens"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Overlap       float64 `mapstructure:"overlap"`
	TokenizerName string  `mapstructure:"tokenizer"` // "tiktoken" or "words"
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"` // openai, ollama, local
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Dimension  int           `mapstructure:"dimension"`
	BatchSize  int           `mapstructure:"batch_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RetrievalConfig tunes the hybrid query engine.
type RetrievalConfig struct {
	CandidateK    int     `mapstructure:"candidate_k"`
	TopN          int     `mapstructure:"top_n"`
	VectorWeight  float64 `mapstructure:"vector_weight"`
	KeywordWeight float64 `mapstructure:"keyword_weight"`
}

// SessionConfig controls session lifecycle.
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ArchiveConfig enables the optional redis chunk archive.
type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c UploadConfig) Validate() error {
	if c.MaxFileBytes <= 0 || c.MaxSessionBytes <= 0 || c.MaxSessionFiles <= 0 {
		return fmt.Errorf("upload limits must be > 0")
	}
	if c.MaxFileBytes > c.MaxSessionBytes {
		return fmt.Errorf("upload.max_file_bytes exceeds upload.max_session_bytes")
	}
	return nil
}

func (c ChunkingConfig) Validate() error {
	if c.WindowTokens < c.MinTokens || c.WindowTokens > c.MaxTokens {
		return fmt.Errorf("chunking.window_tokens %d outside [%d,%d]", c.WindowTokens, c.MinTokens, c.MaxTokens)
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		return fmt.Errorf("chunking.overlap must be in [0,1)")
	}
	return nil
}

func (c RetrievalConfig) Validate() error {
	if c.VectorWeight+c.KeywordWeight <= 0 {
		return fmt.Errorf("retrieval weights must sum to > 0")
	}
	if c.CandidateK <= 0 || c.TopN <= 0 {
		return fmt.Errorf("retrieval.candidate_k and retrieval.top_n must be > 0")
	}
	return nil
}

// Validate checks cross-field constraints after unmarshalling.
func (c *Config) Validate() error {
	if err := c.Upload.Validate(); err != nil {
		return err
	}
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	return c.Retrieval.Validate()
}

// LoadConfig reads configuration from the given file, falling back to
// config.json in the working directory. Environment variables with the
// DOCCHAT_ prefix override file values (DOCCHAT_SERVER_ADDRESS, ...).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("server.address", ":10010")
	v.SetDefault("upload.max_file_bytes", int64(50<<20))
	v.SetDefault("upload.max_session_bytes", int64(100<<20))
	v.SetDefault("upload.max_session_files", 10)
	v.SetDefault("extract.max_pages", 500)
	v.SetDefault("extract.min_page_chars", 16)
	v.SetDefault("chunking.window_tokens", 512)
	v.SetDefault("chunking.min_tokens", 400)
	v.SetDefault("chunking.max_tokens", 600)
	v.SetDefault("chunking.overlap", 0.15)
	v.SetDefault("chunking.tokenizer", "tiktoken")
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 256)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("retrieval.candidate_k", 20)
	v.SetDefault("retrieval.top_n", 8)
	v.SetDefault("retrieval.vector_weight", 0.6)
	v.SetDefault("retrieval.keyword_weight", 0.4)
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.db", 0)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("DOCCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Defaults plus environment are a complete configuration; a missing
		// file is only fatal when the caller named one explicitly.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
