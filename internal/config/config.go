// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GraphVault Contributors

// Package config loads service configuration. Precedence, lowest to
// highest: built-in defaults, YAML config file, command-line flags.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full service configuration.
type Config struct {
	API      APIConfig      `koanf:"api"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Index    IndexConfig    `koanf:"index"`
	Seed     SeedConfig     `koanf:"seed"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the connection string; the DATABASE_URL environment variable
	// overrides an empty value.
	URL string `koanf:"url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig holds the observability endpoint settings.
type MetricsConfig struct {
	// Addr is the metrics/health listen address; empty disables the server.
	Addr string `koanf:"addr"`
}

// IndexConfig holds the async index settings.
type IndexConfig struct {
	QueueSize int `koanf:"queue_size"`
}

// SeedConfig holds the schema seed settings.
type SeedConfig struct {
	// Path names a YAML seed file of property types, entity types,
	// association types, and entity sets loaded at startup.
	Path string `koanf:"path"`
}

// Defaults for settings not present in any source.
const (
	defaultAPIAddr        = "127.0.0.1:9200"
	defaultLogFormat      = "json"
	defaultLogLevel       = "info"
	defaultMetricsAddr    = "127.0.0.1:9100"
	defaultIndexQueueSize = 256
)

// Load reads configuration. path may be empty (no file); flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
	}

	applyDefaults(&cfg)

	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return nil, oops.Code("CONFIG_INVALID").
			With("log_format", cfg.Log.Format).
			Errorf("log format must be \"json\" or \"text\", got %q", cfg.Log.Format)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.Addr == "" {
		cfg.API.Addr = defaultAPIAddr
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = defaultMetricsAddr
	}
	if cfg.Index.QueueSize <= 0 {
		cfg.Index.QueueSize = defaultIndexQueueSize
	}
}
