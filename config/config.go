package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyConfig selects one strategy run.
type StrategyConfig struct {
	Name    string         `yaml:"name"`
	Symbol  string         `yaml:"symbol"`
	Period  string         `yaml:"period"`
	Options map[string]any `yaml:"options"`
}

// Config holds the backtest runner configuration: a YAML file with
// environment variable overrides.
type Config struct {
	// Infrastructure
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisStream   string `yaml:"redis_stream"`
	SQLitePath    string `yaml:"sqlite_path"`
	MetricsAddr   string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
	RunMode  string `yaml:"run_mode"` // batch | streaming

	Strategies []StrategyConfig `yaml:"strategies"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.RunMode = getEnv("RUN_MODE", cfg.RunMode)

	// Defaults
	if cfg.RedisStream == "" {
		cfg.RedisStream = "signals"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RunMode == "" {
		cfg.RunMode = "batch"
	}
	for i := range cfg.Strategies {
		if cfg.Strategies[i].Period == "" {
			cfg.Strategies[i].Period = "1h"
		}
	}

	return cfg, nil
}

// Validate checks the run mode and the strategy list.
func (c *Config) Validate() error {
	switch c.RunMode {
	case "batch", "streaming":
	default:
		return fmt.Errorf("run_mode must be batch or streaming, got %q", c.RunMode)
	}
	seen := make(map[string]bool, len(c.Strategies))
	for i, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategies[%d].name is required", i)
		}
		id := s.Name + "/" + s.Symbol + "/" + s.Period
		if seen[id] {
			return fmt.Errorf("strategies[%d]: duplicate %s", i, id)
		}
		seen[id] = true
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
