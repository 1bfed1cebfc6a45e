package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables honored for overrides, matching the deployment
// contract of the adapter.
const (
	EnvTritonBase  = "TRITON_BASE"
	EnvTritonModel = "TRITON_MODEL"
	EnvPort        = "PORT"
)

// Built-in defaults used when neither file nor environment provides values.
const (
	DefaultTritonBase     = "http://172.17.0.2:8000"
	DefaultTritonModel    = "vllm_model"
	DefaultPort           = 8000
	DefaultTimeoutSeconds = 300
)

// Config represents the application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Triton TritonConfig `yaml:"triton"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// TritonConfig locates the backend inference server. All values are read
// once at startup and never mutated afterwards.
type TritonConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: DefaultPort},
		Triton: TritonConfig{
			BaseURL:        DefaultTritonBase,
			Model:          DefaultTritonModel,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
	}
}

// Load reads YAML configuration from disk on top of the defaults and
// validates the result. Environment overrides are not applied here; see
// ApplyEnv.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays TRITON_BASE, TRITON_MODEL and PORT from the process
// environment. Empty variables are ignored.
func (c *Config) ApplyEnv() error {
	if base := strings.TrimSpace(os.Getenv(EnvTritonBase)); base != "" {
		c.Triton.BaseURL = base
	}
	if model := strings.TrimSpace(os.Getenv(EnvTritonModel)); model != "" {
		c.Triton.Model = model
	}
	if port := strings.TrimSpace(os.Getenv(EnvPort)); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", EnvPort, port, err)
		}
		c.Server.Port = parsed
	}

	c.Triton.BaseURL = strings.TrimRight(c.Triton.BaseURL, "/")
	return nil
}

// Validate performs sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Triton.BaseURL) == "" {
		return fmt.Errorf("triton.base_url must be provided")
	}
	if strings.TrimSpace(c.Triton.Model) == "" {
		return fmt.Errorf("triton.model must be provided")
	}
	if c.Triton.TimeoutSeconds <= 0 {
		return fmt.Errorf("triton.timeout_seconds must be positive, got %d", c.Triton.TimeoutSeconds)
	}
	return nil
}
