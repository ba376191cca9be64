package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the codemem server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	VectorDB  VectorDBConfig  `yaml:"vectordb"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Summary   SummaryConfig   `yaml:"summary"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	SLA       SLAConfig       `yaml:"sla"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds MCP transport settings.
type ServerConfig struct {
	Mode string `yaml:"mode"` // stdio, sse (default: stdio)
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// VectorDBConfig holds the Qdrant connection settings.
type VectorDBConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxRetries int    `yaml:"max_retries"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string  `yaml:"provider"` // openai, ollama (default: ollama)
	BaseURL    string  `yaml:"base_url"`
	APIKey     string  `yaml:"api_key"`
	Model      string  `yaml:"model"`
	Dimensions int     `yaml:"dimensions"`
	BatchSize  int     `yaml:"batch_size"`
	RateLimit  float64 `yaml:"rate_limit"` // requests/sec, 0 = unlimited
}

// SummaryConfig holds overflow summarization settings.
type SummaryConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// RetrievalConfig holds retrieve-path defaults.
type RetrievalConfig struct {
	DefaultK         int `yaml:"default_k"`
	DefaultMaxTokens int `yaml:"default_max_tokens"`
	MaxInFlight      int `yaml:"max_in_flight"` // embedding batch fan-out bound
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
	TTLSec   int `yaml:"ttl_sec"`
}

// SLAConfig holds deadline and heartbeat settings.
type SLAConfig struct {
	SoftThresholdSec int `yaml:"soft_threshold_sec"`
	HardDeadlineSec  int `yaml:"hard_deadline_sec"`
	HeartbeatSec     int `yaml:"heartbeat_sec"`
}

// MetricsConfig holds the optional Prometheus listener settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file path. A missing path yields
// the defaults only.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Server.Mode == "" {
		c.Server.Mode = "stdio"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.VectorDB.URL == "" {
		c.VectorDB.URL = "http://localhost:6333"
	}
	if c.VectorDB.Collection == "" {
		c.VectorDB.Collection = "codemem_chunks"
	}
	if c.VectorDB.TimeoutSec <= 0 {
		c.VectorDB.TimeoutSec = 3
	}
	if c.VectorDB.MaxRetries <= 0 {
		c.VectorDB.MaxRetries = 3
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "mxbai-embed-large"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 96
	}
	if c.Summary.Model == "" {
		c.Summary.Model = "gpt-4o-mini"
	}
	if c.Retrieval.DefaultK <= 0 {
		c.Retrieval.DefaultK = 24
	}
	if c.Retrieval.DefaultMaxTokens <= 0 {
		c.Retrieval.DefaultMaxTokens = 1000
	}
	if c.Retrieval.MaxInFlight <= 0 {
		c.Retrieval.MaxInFlight = 4
	}
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = 256
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 600
	}
	if c.SLA.SoftThresholdSec <= 0 {
		c.SLA.SoftThresholdSec = 240
	}
	if c.SLA.HardDeadlineSec <= 0 {
		c.SLA.HardDeadlineSec = 300
	}
	if c.SLA.HeartbeatSec <= 0 {
		c.SLA.HeartbeatSec = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "stdio", "sse":
	default:
		return fmt.Errorf("server.mode must be \"stdio\" or \"sse\", got %q", c.Server.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"ollama\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required for the openai provider")
	}
	if c.Summary.Enabled && c.Summary.APIKey == "" {
		return fmt.Errorf("summary.api_key is required when summary.enabled is true")
	}
	if c.SLA.SoftThresholdSec >= c.SLA.HardDeadlineSec {
		return fmt.Errorf("sla.soft_threshold_sec (%d) must be below sla.hard_deadline_sec (%d)",
			c.SLA.SoftThresholdSec, c.SLA.HardDeadlineSec)
	}
	return nil
}

// QdrantTimeout returns the per-call vector store timeout.
func (c *Config) QdrantTimeout() time.Duration {
	return time.Duration(c.VectorDB.TimeoutSec) * time.Second
}

// CacheTTL returns the response cache time-to-live.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

// SLASoft returns the soft threshold after which heartbeats start.
func (c *Config) SLASoft() time.Duration {
	return time.Duration(c.SLA.SoftThresholdSec) * time.Second
}

// SLAHard returns the hard per-request deadline.
func (c *Config) SLAHard() time.Duration {
	return time.Duration(c.SLA.HardDeadlineSec) * time.Second
}

// SLAHeartbeat returns the heartbeat period.
func (c *Config) SLAHeartbeat() time.Duration {
	return time.Duration(c.SLA.HeartbeatSec) * time.Second
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment
// variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
