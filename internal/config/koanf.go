// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"gigateer.yaml",
	"gigateer.yml",
	"/etc/gigateer/config.yaml",
	"/etc/gigateer/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "INGESTOR_CONFIG_PATH"

// Load builds the configuration from defaults, an optional YAML file and
// INGESTOR_* environment variables, then validates it.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("INGESTOR_", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Ingest.TimeoutMS > 0 {
		cfg.Ingest.Timeout = time.Duration(cfg.Ingest.TimeoutMS) * time.Millisecond
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file present, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are config paths parsed as comma-separated slices when
// they arrive as env var strings.
var sliceConfigPaths = []string{
	"scheduler.enabled_sources",
	"scheduler.disabled_sources",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw := k.Get(path)
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var values []string
		for _, v := range strings.Split(s, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings routes each documented INGESTOR_* variable to its config
// path. Variables not in the table are ignored rather than guessed at, so
// a typo surfaces as "default still in effect" instead of a silent
// mis-binding.
var envMappings = map[string]string{
	"INGESTOR_MODE":       "mode",
	"INGESTOR_LOG_LEVEL":  "logging.level",
	"INGESTOR_LOG_FORMAT": "logging.format",

	"INGESTOR_DEFAULT_SCHEDULE": "scheduler.default_schedule",
	"INGESTOR_STAGGER_MINUTES":  "scheduler.stagger_minutes",
	"INGESTOR_ENABLED_SOURCES":  "scheduler.enabled_sources",
	"INGESTOR_DISABLED_SOURCES": "scheduler.disabled_sources",
	"INGESTOR_PID_FILE":         "scheduler.pid_file",
	"INGESTOR_GRACE_PERIOD":     "scheduler.grace_period",

	"INGESTOR_RATE_LIMIT_PER_MIN": "ingest.rate_limit_per_min",
	"INGESTOR_TIMEOUT_MS":         "ingest.timeout_ms",

	"INGESTOR_MIN_CONFIDENCE":       "dedup.min_confidence",
	"INGESTOR_DATE_TOLERANCE_HOURS": "dedup.date_tolerance_hours",
	"INGESTOR_REQUIRE_SAME_DAY":     "dedup.require_same_day",
	"INGESTOR_MAX_SNAPSHOT_AGE":     "dedup.max_snapshot_age",

	"INGESTOR_RAW_DATA_DIR":        "storage.raw_data_dir",
	"INGESTOR_NORMALIZED_DATA_DIR": "storage.normalized_data_dir",
	"INGESTOR_CATALOG_PATH":        "storage.catalog_path",
	"INGESTOR_USE_DATABASE":        "storage.use_database",
	"INGESTOR_USE_FILE_STORAGE":    "storage.use_file_storage",

	"INGESTOR_DATABASE_PATH":              "database.path",
	"INGESTOR_DATABASE_NAME":              "database.name",
	"INGESTOR_DATABASE_POOL_MIN":          "database.pool_min",
	"INGESTOR_DATABASE_POOL_MAX":          "database.pool_max",
	"INGESTOR_DATABASE_IDLE_TIMEOUT":      "database.idle_timeout",
	"INGESTOR_DATABASE_CONNECT_TIMEOUT":   "database.connect_timeout",
	"INGESTOR_DATABASE_SOCKET_TIMEOUT":    "database.socket_timeout",
	"INGESTOR_DATABASE_SELECTION_TIMEOUT": "database.selection_timeout",

	"INGESTOR_LOG_DIR":             "observe.log_dir",
	"INGESTOR_LOG_RETENTION_DAYS":  "observe.log_retention_days",
	"INGESTOR_LISTEN_ADDR":         "observe.listen_addr",
	"INGESTOR_HEALTHY_MIN_RECORDS": "observe.healthy_min_records",
}

// envTransformFunc maps INGESTOR_* environment variable names to koanf
// config paths. Unknown variables map to "" and are dropped.
func envTransformFunc(key string) string {
	if path, ok := envMappings[key]; ok {
		return path
	}
	return ""
}
