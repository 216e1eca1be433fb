package config

import (
	"github.com/stco/stationrecon/internal/metrics"
	"github.com/stco/stationrecon/internal/store"
)

// EmbeddedConfig holds the raw bytes of the configuration file compiled into
// the binary.
type EmbeddedConfig []byte

// SourceConfig points at one upstream dataset: a local path or an HTTP URL.
type SourceConfig struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// Config is the full application configuration.
type Config struct {
	System struct {
		Logging struct {
			Level string `yaml:"level"`
		} `yaml:"logging"`
	} `yaml:"system"`

	Sources struct {
		Planned   SourceConfig `yaml:"planned"`
		Overrides SourceConfig `yaml:"overrides"`
		Joined    SourceConfig `yaml:"joined"`
		Telemetry SourceConfig `yaml:"telemetry"`
		// TimezoneTable maps station codes to IANA zone names.
		TimezoneTable map[string]string `yaml:"timezone_table"`
		FetchRetry    struct {
			MaxAttempts       int `yaml:"max_attempts"`
			InitialIntervalMs int `yaml:"initial_interval_ms"`
		} `yaml:"fetch_retry"`
	} `yaml:"sources"`

	// Window bounds override modifications, RFC 3339; empty bounds are open.
	Window struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"window"`

	Database store.DatabaseConfig `yaml:"database"`

	Export struct {
		Enabled bool   `yaml:"enabled"`
		BaseDir string `yaml:"base_dir"`
		Bucket  string `yaml:"bucket"`
		Prefix  string `yaml:"prefix"`
	} `yaml:"export"`

	Server struct {
		Addr string `yaml:"addr"`
		Mode string `yaml:"mode"`
	} `yaml:"server"`

	Telemetry metrics.TelemetryConfig `yaml:"telemetry"`

	// SetupRunID selects the prior run used for the setup comparison;
	// "latest" resolves through the snapshot store, empty disables it.
	SetupRunID string `yaml:"setup_run_id"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.System.Logging.Level = "INFO"
	cfg.Sources.FetchRetry.MaxAttempts = 3
	cfg.Sources.FetchRetry.InitialIntervalMs = 2000
	cfg.Database.Type = "sqlite"
	cfg.Database.Database = "stationrecon.db"
	cfg.Export.BaseDir = "exports"
	cfg.Export.Bucket = "cells"
	cfg.Server.Addr = ":8080"
	cfg.Server.Mode = "release"
	cfg.Telemetry.ServiceName = "stationrecon"
	cfg.Telemetry.Protocol = "http"
	return cfg
}
