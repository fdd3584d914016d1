package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/smolvec/api"
	"github.com/dshills/smolvec/core"
	"github.com/dshills/smolvec/persistence"
	"gopkg.in/yaml.v3"
)

// Config represents the complete smolvec configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Persistence configuration
	Persistence persistence.PersistenceConfig `yaml:"persistence" json:"persistence"`

	// Vector store configuration
	VectorStore VectorStoreConfig `yaml:"vector_store" json:"vector_store"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host            string          `yaml:"host" json:"host"`
	Port            int             `yaml:"port" json:"port"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes" json:"max_body_bytes"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig configures the token bucket in front of the API.
// A zero RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// VectorStoreConfig contains vector store configuration
type VectorStoreConfig struct {
	// Codec used for persisted records: json or msgpack
	Codec string `yaml:"codec" json:"codec"`

	// BatchConcurrency bounds concurrent writes in batch adds
	BatchConcurrency int `yaml:"batch_concurrency" json:"batch_concurrency"`

	// MaxK caps the k accepted by the query endpoint
	MaxK int `yaml:"max_k" json:"max_k"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig contains Prometheus configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LoadConfig loads configuration from various sources with the following precedence:
// 1. Environment variables
// 2. Configuration file (~/.smolvec.yml or specified path)
// 3. Default values
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// If no config path specified, try default location
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(homeDir, ".smolvec.yml")
		}
	}

	// Load from file if it exists
	if configPath != "" {
		if err := loadConfigFromFile(configPath, config); err != nil {
			// Only return error if file exists but can't be read
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		}
	}

	// Override with environment variables
	if err := loadConfigFromEnv(config); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a YAML file
func loadConfigFromFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// loadConfigFromEnv loads configuration from environment variables
func loadConfigFromEnv(config *Config) error {
	// Server configuration
	if host := os.Getenv("SMOLVEC_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SMOLVEC_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SMOLVEC_PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}
	if rps := os.Getenv("SMOLVEC_RATE_LIMIT_RPS"); rps != "" {
		v, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return fmt.Errorf("invalid SMOLVEC_RATE_LIMIT_RPS %q: %w", rps, err)
		}
		config.Server.RateLimit.RequestsPerSecond = v
	}

	// Persistence configuration
	if backend := os.Getenv("SMOLVEC_PERSISTENCE_BACKEND"); backend != "" {
		config.Persistence.Type = persistence.PersistenceType(backend)
	}
	if path := os.Getenv("SMOLVEC_PERSISTENCE_PATH"); path != "" {
		config.Persistence.Path = path
	}
	if dsn := os.Getenv("SMOLVEC_POSTGRES_DSN"); dsn != "" {
		config.Persistence.Postgres.DSN = dsn
	}

	// Blob store configuration for the object backend
	blob := &config.Persistence.Object.Blob
	if t := os.Getenv("SMOLVEC_BLOB_TYPE"); t != "" {
		blob.Type = persistence.BlobType(t)
	}
	if bucket := os.Getenv("SMOLVEC_BLOB_BUCKET"); bucket != "" {
		blob.Bucket = bucket
	}
	if endpoint := os.Getenv("SMOLVEC_BLOB_ENDPOINT"); endpoint != "" {
		blob.Endpoint = endpoint
	}
	if key := os.Getenv("SMOLVEC_BLOB_ACCESS_KEY_ID"); key != "" {
		blob.AccessKeyID = key
	}
	if secret := os.Getenv("SMOLVEC_BLOB_SECRET_ACCESS_KEY"); secret != "" {
		blob.SecretAccessKey = secret
	}

	// Logging configuration
	if level := os.Getenv("SMOLVEC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("SMOLVEC_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    32 << 20,
		},
		Persistence: persistence.PersistenceConfig{
			Type:     persistence.PersistenceMemory,
			Path:     "data/smolvec",
			Bolt:     persistence.BoltConfig{Timeout: 1 * time.Second},
			Badger:   persistence.BadgerConfig{NumVersionsToKeep: 1},
			SQLite:   persistence.SQLiteConfig{BusyTimeout: 5 * time.Second},
			Postgres: persistence.PostgresConfig{MigrateOnStart: true},
			Object: persistence.ObjectConfig{
				Compression: persistence.CompressionZstd,
				Blob:        persistence.BlobConfig{Type: persistence.BlobMemory},
			},
		},
		VectorStore: VectorStoreConfig{
			Codec:            core.CodecJSON,
			BatchConcurrency: core.DefaultBatchConcurrency,
			MaxK:             1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Server.Port)
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid rate limit: %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Validate persistence config
	if err := persistence.ValidateConfig(c.Persistence); err != nil {
		return fmt.Errorf("persistence config validation failed: %w", err)
	}

	// Validate vector store config
	if _, err := core.CodecByName(c.VectorStore.Codec); err != nil {
		return err
	}
	if c.VectorStore.MaxK < 1 {
		return fmt.Errorf("invalid max_k: %d", c.VectorStore.MaxK)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /: %q", c.Metrics.Path)
	}

	return nil
}

// StoreOptions converts the vector store configuration to core options
func (c *Config) StoreOptions() ([]core.Option, error) {
	codec, err := core.CodecByName(c.VectorStore.Codec)
	if err != nil {
		return nil, err
	}
	return []core.Option{
		core.WithCodec(codec),
		core.WithBatchConcurrency(c.VectorStore.BatchConcurrency),
	}, nil
}

// ToServerConfig converts to api.ServerConfig
func (c *Config) ToServerConfig() api.ServerConfig {
	return api.ServerConfig{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		IdleTimeout:     c.Server.IdleTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		MaxBodyBytes:    c.Server.MaxBodyBytes,
		MaxK:            c.VectorStore.MaxK,
		RateLimit:       c.Server.RateLimit.RequestsPerSecond,
		RateBurst:       c.Server.RateLimit.Burst,
		MetricsPath:     c.metricsPath(),
	}
}

func (c *Config) metricsPath() string {
	if !c.Metrics.Enabled {
		return ""
	}
	return c.Metrics.Path
}

// NewLogger builds the slog logger described by the logging configuration
func (l LoggingConfig) NewLogger() (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)
	switch l.Output {
	case "", "stdout":
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(l.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log output: %w", err)
		}
		out, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts)), closer, nil
	}
	return slog.New(slog.NewJSONHandler(out, opts)), closer, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
	return level, nil
}
