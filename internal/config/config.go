// Package config loads tradeqc configuration from environment variables,
// an optional YAML file and an optional .env file. CLI flags override
// whatever is loaded here; the engine itself never applies defaults.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Windows WindowsConfig `yaml:"windows" envconfig:"WINDOWS"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Storage StorageConfig `yaml:"storage" envconfig:"STORAGE"`
}

// WindowsConfig holds the rolling-statistics parameters.
type WindowsConfig struct {
	VWAP     int     `yaml:"vwap" envconfig:"VWAP"`
	Median   int     `yaml:"median" envconfig:"MEDIAN"`
	AnomalyK float64 `yaml:"anomaly_k" envconfig:"ANOMALY_K"`
}

// PathsConfig holds file system locations.
type PathsConfig struct {
	Input  string `yaml:"input" envconfig:"INPUT"`
	OutDir string `yaml:"out_dir" envconfig:"OUT_DIR"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// ServerConfig configures the results API server.
type ServerConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR"`
}

// StorageConfig configures the optional Postgres bar sink.
type StorageConfig struct {
	DSN string `yaml:"dsn" envconfig:"DSN"`
}

// Load reads configuration in ascending precedence: YAML file (if path is
// non-empty and the file exists), then environment variables with the
// TRADEQC_ prefix. A .env file in the working directory is loaded into the
// environment first when present.
func Load(yamlPath string) (*Config, error) {
	// Best effort: a missing .env is the normal case.
	_ = godotenv.Load()

	var cfg Config
	if yamlPath != "" {
		if _, err := os.Stat(yamlPath); err == nil {
			data, err := os.ReadFile(yamlPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", yamlPath, err)
			}
		}
	}

	if err := envconfig.Process("TRADEQC", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills zero values left unset by both the YAML file and
// the environment.
func applyDefaults(cfg *Config) {
	if cfg.Windows.VWAP == 0 {
		cfg.Windows.VWAP = 5
	}
	if cfg.Windows.Median == 0 {
		cfg.Windows.Median = 60
	}
	if cfg.Windows.AnomalyK == 0 {
		cfg.Windows.AnomalyK = 10
	}
	if cfg.Paths.Input == "" {
		cfg.Paths.Input = "trades_big.csv"
	}
	if cfg.Paths.OutDir == "" {
		cfg.Paths.OutDir = "output"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

// Validate checks the configuration for usability.
func (c *Config) Validate() error {
	if c.Windows.VWAP <= 0 {
		return fmt.Errorf("windows.vwap must be positive, got %d", c.Windows.VWAP)
	}
	if c.Windows.Median <= 0 {
		return fmt.Errorf("windows.median must be positive, got %d", c.Windows.Median)
	}
	if c.Windows.AnomalyK <= 0 {
		return fmt.Errorf("windows.anomaly_k must be positive, got %g", c.Windows.AnomalyK)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
