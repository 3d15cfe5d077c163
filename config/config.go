// Package config provides configuration parsing and validation for the
// weft control-message subsystem.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/weftmesh/weft/icmp6"
)

// Config is the subsystem configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Buffers BufferConfig  `yaml:"buffers"`
	ICMP    icmp6.Config  `yaml:"icmp6"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// BufferConfig sizes the message-buffer pool.
type BufferConfig struct {
	Count int `yaml:"count"` // number of buffers in the pool
	Size  int `yaml:"size"`  // bytes per buffer
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Buffers: BufferConfig{
			Count: 64,
			Size:  1280, // IPv6 minimum MTU
		},
		ICMP: icmp6.DefaultConfig(),
	}
}

// Load reads a YAML configuration file. Absent fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}

	if c.Buffers.Count <= 0 {
		return fmt.Errorf("buffer count must be positive, got %d", c.Buffers.Count)
	}
	if c.Buffers.Size < icmp6.EchoHeaderSize {
		return fmt.Errorf("buffer size %d cannot hold an ICMPv6 echo header", c.Buffers.Size)
	}

	if c.ICMP.ErrorBurst < 0 {
		return fmt.Errorf("error burst must not be negative, got %d", c.ICMP.ErrorBurst)
	}

	return nil
}
