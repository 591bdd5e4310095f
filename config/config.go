// Package config loads nalixd's YAML configuration, grounded on
// progressdb's server/pkg/config package: a flat Config struct tagged
// yaml:"...", loaded with gopkg.in/yaml.v3, with environment-variable
// overrides for anything secret. Cipher keys are never read from YAML —
// only from env — so a config file committed to source control can never
// leak key material.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the dispatch daemon's recognized options plus the
// ambient-only fields nalixd itself needs (listen address, log
// level/format).
type Config struct {
	Workers                uint32    `yaml:"workers"`
	ChannelCapacityPerLane [5]uint32 `yaml:"channel_capacity_per_lane"`
	DropPolicy             string    `yaml:"drop_policy"`
	DefaultTimeoutMS       uint32    `yaml:"default_timeout_ms"`
	EnableMetrics          bool      `yaml:"enable_metrics"`
	CompressionThreshold   uint32    `yaml:"compression_threshold"`

	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	// EncryptionKeyHex is never populated from YAML (see
	// applyEnvOverrides); it is filled in exclusively by Load from
	// NALIXD_ENCRYPTION_KEY.
	EncryptionKeyHex string `yaml:"-"`
}

// Default returns the configuration nalixd runs with when no file is
// supplied: one worker per CPU (left to the caller to size), strict
// priority with no fairness knob, DropNewest backpressure, and metrics on.
func Default() Config {
	return Config{
		Workers:              0, // 0 means "caller decides, typically runtime.NumCPU()"
		DropPolicy:           "DropNewest",
		DefaultTimeoutMS:     5000,
		EnableMetrics:        true,
		CompressionThreshold: 1024,
		ListenAddr:           ":7777",
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load reads path (if non-empty) as YAML over Default(), then applies
// environment-variable overrides for everything security-sensitive.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NALIXD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("NALIXD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("NALIXD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("NALIXD_ENCRYPTION_KEY"); v != "" {
		cfg.EncryptionKeyHex = v
	}
}
