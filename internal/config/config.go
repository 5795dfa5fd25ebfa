// Package config holds all Haystack configuration. Settings load from
// an optional YAML file and are then overridden by environment
// variables, which is how deployments configure the service.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all Haystack configuration.
type Config struct {
	// LLM backends
	LLM LLMConfig `yaml:"llm"`

	// Store (pipeline database) and downstream editorial API
	Store     StoreConfig     `yaml:"store"`
	Editorial EditorialConfig `yaml:"editorial"`

	// Collector settings and vendor API keys
	Collect CollectConfig `yaml:"collect"`

	// Cycle cadences
	Schedule ScheduleConfig `yaml:"schedule"`

	// Quality thresholds
	Thresholds ThresholdConfig `yaml:"thresholds"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration used when no file or
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		LLM:        defaultLLMConfig(),
		Store:      defaultStoreConfig(),
		Editorial:  defaultEditorialConfig(),
		Collect:    defaultCollectConfig(),
		Schedule:   defaultScheduleConfig(),
		Thresholds: defaultThresholdConfig(),
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from the given YAML file (if it exists) on
// top of defaults, then applies environment overrides. An empty path
// skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	c.applyLLMEnv()
	c.applyStoreEnv()
	c.applyCollectEnv()
	c.applyScheduleEnv()
	c.applyThresholdEnv()

	if level := os.Getenv("HAYSTACK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Store.BaseURL == "" {
		return fmt.Errorf("store base URL is required (STORE_URL)")
	}
	if c.LLM.Ollama.BaseURL == "" && c.LLM.Anthropic.APIKey == "" && c.LLM.OpenAI.APIKey == "" {
		return fmt.Errorf("at least one LLM provider must be configured")
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
