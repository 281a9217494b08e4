// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"GRID_HOST" yaml:"host"`
	Port int    `envconfig:"GRID_PORT" yaml:"port"`

	// CatalogPath points at a YAML dimension catalog. Empty means the
	// built-in default catalog.
	CatalogPath string `envconfig:"GRID_CATALOG" yaml:"catalog"`

	// Scoring holds scoring service settings.
	Scoring ScoringConfig `yaml:"scoring"`

	// Engine holds scheduler settings.
	Engine EngineConfig `yaml:"engine"`

	// Store holds evaluation record persistence settings.
	Store StoreConfig `yaml:"store"`

	// Bus holds event bus settings.
	Bus BusConfig `yaml:"bus"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log"`

	// Security holds HTTP security settings.
	Security SecurityConfig `yaml:"security"`
}

// ScoringConfig holds scoring service connection settings.
type ScoringConfig struct {
	URL            string `envconfig:"GRID_SCORING_URL" yaml:"url"`
	TimeoutSeconds int    `envconfig:"GRID_SCORING_TIMEOUT" yaml:"timeout_seconds"`
	Workers        int    `envconfig:"GRID_SCORING_WORKERS" yaml:"workers"`
}

// EngineConfig holds evaluation scheduler settings.
type EngineConfig struct {
	// BatchSize is how many evaluations are issued concurrently per
	// batch. Independent of the total column count.
	BatchSize int `envconfig:"GRID_BATCH_SIZE" yaml:"batch_size"`

	// BatchIntervalMS is the fixed delay between batch issues, in
	// milliseconds. It bounds call-issue rate, not call duration.
	BatchIntervalMS int `envconfig:"GRID_BATCH_INTERVAL_MS" yaml:"batch_interval_ms"`

	// Metric is the initial display metric.
	Metric string `envconfig:"GRID_METRIC" yaml:"metric"`
}

// StoreConfig holds evaluation record persistence settings.
type StoreConfig struct {
	Type     string `envconfig:"GRID_STORE_TYPE" yaml:"type"`
	RedisURL string `envconfig:"GRID_REDIS_URL" yaml:"redis_url"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"GRID_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"GRID_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"GRID_KAFKA_GROUP" yaml:"kafka_group"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"GRID_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"GRID_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds HTTP security settings.
type SecurityConfig struct {
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit int `envconfig:"GRID_RATE_LIMIT" yaml:"rate_limit"`
}

// Load loads configuration from an optional YAML file and environment
// variables. Environment variables take precedence over the file, which
// takes precedence over defaults.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Scoring = ScoringConfig{
		URL:            "http://localhost:6006",
		TimeoutSeconds: 600,
		Workers:        4,
	}

	// Batch size and interval were tuned against one scoring backend's
	// rate limits; both are deployment-specific.
	cfg.Engine = EngineConfig{
		BatchSize:       3,
		BatchIntervalMS: 2000,
		Metric:          "accuracy",
	}

	cfg.Store = StoreConfig{
		Type:     "memory",
		RedisURL: "redis://localhost:6379",
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit: 0,
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Scoring.URL == "" {
		return fmt.Errorf("scoring URL cannot be empty")
	}
	if c.Engine.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Engine.BatchSize)
	}
	if c.Engine.BatchIntervalMS < 0 {
		return fmt.Errorf("batch interval cannot be negative, got %d", c.Engine.BatchIntervalMS)
	}
	switch c.Store.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}
	switch c.Bus.Type {
	case "memory", "kafka":
	default:
		return fmt.Errorf("unknown bus type: %s", c.Bus.Type)
	}
	return nil
}
