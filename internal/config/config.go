// Package config loads the backend configuration from a YAML file with
// environment-variable overrides, validated before use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment selects runtime behavior (logger encoding, hot reload).
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the full backend configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"required,oneof=development production"`
	Server      Server      `yaml:"server"`
	LLM         LLM         `yaml:"llm"`
	Layout      Layout      `yaml:"layout"`
	History     History     `yaml:"history"`
	Cascade     Cascade     `yaml:"cascade"`
}

// Server configures the HTTP listener.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LLM configures the chat backend connection.
type LLM struct {
	BaseURL string        `yaml:"baseUrl"`
	APIKey  string        `yaml:"apiKey"`
	Model   string        `yaml:"model" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// Layout configures the placement engine.
type Layout struct {
	Gap         float64 `yaml:"gap" validate:"min=0"`
	RingStep    float64 `yaml:"ringStep" validate:"gt=0"`
	MaxRings    int     `yaml:"maxRings" validate:"min=1"`
	MaxStep     float64 `yaml:"maxStep" validate:"gt=0"`
	PinnedNudge float64 `yaml:"pinnedNudge" validate:"min=0"`
}

// History configures undo retention.
type History struct {
	Capacity int `yaml:"capacity" validate:"min=1"`
}

// Cascade configures regeneration concurrency.
type Cascade struct {
	MaxParallel int `yaml:"maxParallel" validate:"min=1"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLM{
			BaseURL: "http://localhost:11434/v1",
			Model:   "gpt-4o-mini",
			Timeout: 120 * time.Second,
		},
		Layout: Layout{
			Gap:         24,
			RingStep:    60,
			MaxRings:    8,
			MaxStep:     18,
			PinnedNudge: 2,
		},
		History: History{Capacity: 3},
		Cascade: Cascade{MaxParallel: 4},
	}
}

// Load reads path (when it exists) over the defaults, applies environment
// overrides and validates the result. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables, the highest-priority source.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TANGENT_ENV"); v != "" {
		cfg.Environment = Environment(v)
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}
	if v := os.Getenv("CASCADE_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cascade.MaxParallel = n
		}
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
