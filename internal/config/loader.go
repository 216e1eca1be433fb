package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/stco/stationrecon/internal/support/exception"
	"github.com/stco/stationrecon/internal/support/logger"
)

const moduleName = "config"

// Load builds the configuration in layers: defaults, then the embedded YAML,
// then a .env file, then process environment variables. Later layers win.
func Load(envFilePath string, embedded EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()
	if len(embedded) > 0 {
		// Unmarshalling over the defaults only touches keys the YAML
		// actually sets.
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, exception.New(moduleName, "failed to unmarshal embedded config", err, false, false)
		}
	}
	applyEnvOverrides(cfg)

	logger.SetLogLevel(cfg.System.Logging.Level)
	return cfg, nil
}

// applyEnvOverrides maps STATIONRECON_* variables onto the config.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, target *string) {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}
	setBool := func(key string, target *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*target = b
			} else {
				logger.Warnf("ignoring %s=%q: not a boolean", key, v)
			}
		}
	}
	setInt := func(key string, target *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			} else {
				logger.Warnf("ignoring %s=%q: not an integer", key, v)
			}
		}
	}

	setString("STATIONRECON_LOG_LEVEL", &cfg.System.Logging.Level)
	setString("STATIONRECON_PLANNED_PATH", &cfg.Sources.Planned.Path)
	setString("STATIONRECON_PLANNED_URL", &cfg.Sources.Planned.URL)
	setString("STATIONRECON_OVERRIDES_PATH", &cfg.Sources.Overrides.Path)
	setString("STATIONRECON_OVERRIDES_URL", &cfg.Sources.Overrides.URL)
	setString("STATIONRECON_JOINED_PATH", &cfg.Sources.Joined.Path)
	setString("STATIONRECON_JOINED_URL", &cfg.Sources.Joined.URL)
	setString("STATIONRECON_TELEMETRY_PATH", &cfg.Sources.Telemetry.Path)
	setString("STATIONRECON_TELEMETRY_URL", &cfg.Sources.Telemetry.URL)
	setString("STATIONRECON_WINDOW_START", &cfg.Window.Start)
	setString("STATIONRECON_WINDOW_END", &cfg.Window.End)
	setString("STATIONRECON_DB_TYPE", &cfg.Database.Type)
	setString("STATIONRECON_DB_HOST", &cfg.Database.Host)
	setInt("STATIONRECON_DB_PORT", &cfg.Database.Port)
	setString("STATIONRECON_DB_USER", &cfg.Database.User)
	setString("STATIONRECON_DB_PASSWORD", &cfg.Database.Password)
	setString("STATIONRECON_DB_NAME", &cfg.Database.Database)
	setBool("STATIONRECON_EXPORT_ENABLED", &cfg.Export.Enabled)
	setString("STATIONRECON_EXPORT_BASE_DIR", &cfg.Export.BaseDir)
	setString("STATIONRECON_SERVER_ADDR", &cfg.Server.Addr)
	setString("STATIONRECON_OTLP_ENDPOINT", &cfg.Telemetry.Endpoint)
	setString("STATIONRECON_OTLP_PROTOCOL", &cfg.Telemetry.Protocol)
	setString("STATIONRECON_SETUP_RUN_ID", &cfg.SetupRunID)
}
