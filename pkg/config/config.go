// Package config loads and validates tracewire service configuration
// from YAML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
)

// Config is the top-level tracewire collector configuration.
type Config struct {
	// Service is the service name stamped on collector-own spans and logs.
	Service string `json:"service" yaml:"service"`

	// Listen is the HTTP listen address for ingest and query APIs.
	Listen string `json:"listen" yaml:"listen"`

	// GRPCListen is the OTLP gRPC ingest listen address. Empty disables
	// the gRPC listener.
	GRPCListen string `json:"grpcListen" yaml:"grpcListen"`

	// Capacity bounds the in-memory span store.
	Capacity int `json:"capacity" yaml:"capacity"`

	// FilterRule is an optional expr-lang rule; only spans matching the
	// rule are kept by the collector.
	FilterRule string `json:"filterRule" yaml:"filterRule"`

	// AuthSecret enables bearer-token authentication on the query API
	// when non-empty. Ingest stays open: instrumented services are not
	// expected to hold credentials.
	AuthSecret string `json:"authSecret" yaml:"authSecret"`

	// Log configures collector logging.
	Log LogConfig `json:"log" yaml:"log"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns the default collector configuration.
func Default() Config {
	return Config{
		Service:  "tracewire-collector",
		Listen:   ":4318",
		Capacity: 8192,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile reads a Config from a JSON or YAML file. The format is
// auto-detected from the file extension (.yaml/.yml for YAML, otherwise
// JSON). Missing fields keep their defaults.
func LoadFromFile(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return Config{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return Config{}, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return Config{}, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return ParseYAML(data)
	}
	return ParseJSON(data)
}

// ParseYAML parses a Config from YAML bytes on top of the defaults.
func ParseYAML(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return cfg, cfg.Validate()
}

// ParseJSON parses a Config from JSON bytes on top of the defaults.
func ParseJSON(data []byte) (Config, error) {
	cfg := Default()
	if !json.Valid(data) {
		return Config{}, ErrInvalidJSON
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address must not be empty")
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	return nil
}
