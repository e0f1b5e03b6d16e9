// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package config loads and validates Gigateer configuration.
//
// Configuration is layered: struct defaults, then an optional YAML config
// file, then INGESTOR_* environment variables. Later layers win.
package config

import (
	"fmt"
	"time"
)

// Mode values select log format and development conveniences.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config is the root configuration for the ingestion daemon and CLI.
type Config struct {
	Mode      string          `koanf:"mode"`
	Logging   LoggingConfig   `koanf:"logging"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Cache     CacheConfig     `koanf:"cache"`
	Database  DatabaseConfig  `koanf:"database"`
	Storage   StorageConfig   `koanf:"storage"`
	Observe   ObserveConfig   `koanf:"observe"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console; empty follows Mode
}

// SchedulerConfig drives cron scheduling of per-source ingestion runs.
type SchedulerConfig struct {
	// DefaultSchedule is a 5-field cron expression used for sources that do
	// not declare their own.
	DefaultSchedule string `koanf:"default_schedule"`

	// StaggerMinutes offsets each source's activation to avoid thundering
	// herds when many sources share a schedule.
	StaggerMinutes int `koanf:"stagger_minutes"`

	// EnabledSources / DisabledSources are allow / deny lists. Overlap is a
	// configuration error.
	EnabledSources  []string `koanf:"enabled_sources"`
	DisabledSources []string `koanf:"disabled_sources"`

	PIDFile     string        `koanf:"pid_file"`
	GracePeriod time.Duration `koanf:"grace_period"`
}

// IngestConfig bounds individual ingestion runs.
type IngestConfig struct {
	// RateLimitPerMin is the fallback per-source request budget when a
	// plugin does not declare one.
	RateLimitPerMin int `koanf:"rate_limit_per_min"`

	// Timeout is the hard per-fetch timeout.
	Timeout time.Duration `koanf:"timeout"`

	// TimeoutMS mirrors INGESTOR_TIMEOUT_MS. When set (> 0) it overrides
	// Timeout during load.
	TimeoutMS int `koanf:"timeout_ms"`
}

// DedupConfig tunes cross-source duplicate detection.
type DedupConfig struct {
	MinConfidence      float64            `koanf:"min_confidence"`
	DateToleranceHours int                `koanf:"date_tolerance_hours"`
	RequireSameDay     bool               `koanf:"require_same_day"`
	TrustScores        map[string]float64 `koanf:"trust_scores"`

	// MaxSnapshotAge excludes stale per-source snapshots from catalog
	// generation.
	MaxSnapshotAge time.Duration `koanf:"max_snapshot_age"`
}

// CacheConfig sizes the tiered read cache.
type CacheConfig struct {
	HotSize int           `koanf:"hot_size"`
	HotTTL  time.Duration `koanf:"hot_ttl"`

	WarmSize int           `koanf:"warm_size"`
	WarmTTL  time.Duration `koanf:"warm_ttl"`

	// PromoteAfter is the warm access count above which an entry moves to
	// the hot tier.
	PromoteAfter int `koanf:"promote_after"`

	// FrequencyCap bounds the access-frequency map; ClearInterval clears it
	// periodically so it cannot grow without bound.
	FrequencyCap  int           `koanf:"frequency_cap"`
	ClearInterval time.Duration `koanf:"clear_interval"`

	PrefetchDelay time.Duration `koanf:"prefetch_delay"`
	WarmingDelay  time.Duration `koanf:"warming_delay"`
}

// DatabaseConfig configures the DuckDB-backed document store.
type DatabaseConfig struct {
	Path string `koanf:"path"`
	Name string `koanf:"name"`

	PoolMin int `koanf:"pool_min"`
	PoolMax int `koanf:"pool_max"`

	IdleTimeout      time.Duration `koanf:"idle_timeout"`
	ConnectTimeout   time.Duration `koanf:"connect_timeout"`
	SocketTimeout    time.Duration `koanf:"socket_timeout"`
	SelectionTimeout time.Duration `koanf:"selection_timeout"`
}

// StorageConfig selects the persistence back ends and their directories.
type StorageConfig struct {
	UseDatabase    bool `koanf:"use_database"`
	UseFileStorage bool `koanf:"use_file_storage"`

	RawDataDir        string `koanf:"raw_data_dir"`
	NormalizedDataDir string `koanf:"normalized_data_dir"`
	CatalogPath       string `koanf:"catalog_path"`

	// FixturesDir feeds the built-in staticfile plugin; each
	// subdirectory registers as one source.
	FixturesDir string `koanf:"fixtures_dir"`
}

// ObserveConfig configures run/error/perf logs and the operational HTTP
// listener.
type ObserveConfig struct {
	LogDir           string `koanf:"log_dir"`
	LogRetentionDays int    `koanf:"log_retention_days"`

	// ListenAddr serves /metrics, /healthz, /readyz and /debug/cache.
	// Empty disables the listener.
	ListenAddr string `koanf:"listen_addr"`

	// HealthyMinRecords is the record count at or above which a source's
	// last run counts as healthy.
	HealthyMinRecords int `koanf:"healthy_min_records"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Mode: ModeDevelopment,
		Logging: LoggingConfig{
			Level: "info",
		},
		Scheduler: SchedulerConfig{
			DefaultSchedule: "0 */6 * * *", // every six hours
			StaggerMinutes:  2,
			PIDFile:         "/tmp/gigateer-ingestor.pid",
			GracePeriod:     30 * time.Second,
		},
		Ingest: IngestConfig{
			RateLimitPerMin: 30,
			Timeout:         30 * time.Second,
		},
		Dedup: DedupConfig{
			MinConfidence:      0.7,
			DateToleranceHours: 2,
			RequireSameDay:     false,
			MaxSnapshotAge:     24 * time.Hour,
		},
		Cache: CacheConfig{
			HotSize:       100,
			HotTTL:        5 * time.Minute,
			WarmSize:      500,
			WarmTTL:       30 * time.Minute,
			PromoteAfter:  3,
			FrequencyCap:  10000,
			ClearInterval: 30 * time.Minute,
			PrefetchDelay: 100 * time.Millisecond,
			WarmingDelay:  50 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path:             "data/gigateer.duckdb",
			Name:             "gigateer",
			PoolMin:          2,
			PoolMax:          10,
			IdleTimeout:      30 * time.Second,
			ConnectTimeout:   10 * time.Second,
			SocketTimeout:    30 * time.Second,
			SelectionTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			UseDatabase:       false,
			UseFileStorage:    true,
			RawDataDir:        "data/raw",
			NormalizedDataDir: "data/normalized",
			CatalogPath:       "data/catalog.json",
			FixturesDir:       "data/fixtures",
		},
		Observe: ObserveConfig{
			LogDir:            "data/logs",
			LogRetentionDays:  14,
			ListenAddr:        "",
			HealthyMinRecords: 2,
		},
	}
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.Mode)
	}

	enabled := make(map[string]struct{}, len(c.Scheduler.EnabledSources))
	for _, s := range c.Scheduler.EnabledSources {
		enabled[s] = struct{}{}
	}
	for _, s := range c.Scheduler.DisabledSources {
		if _, ok := enabled[s]; ok {
			return fmt.Errorf("source %q appears in both enabled_sources and disabled_sources", s)
		}
	}

	if c.Scheduler.StaggerMinutes < 0 {
		return fmt.Errorf("stagger_minutes must be >= 0, got %d", c.Scheduler.StaggerMinutes)
	}
	if c.Ingest.RateLimitPerMin <= 0 {
		return fmt.Errorf("rate_limit_per_min must be > 0, got %d", c.Ingest.RateLimitPerMin)
	}
	if c.Ingest.Timeout <= 0 {
		return fmt.Errorf("ingest timeout must be > 0, got %s", c.Ingest.Timeout)
	}
	if c.Dedup.MinConfidence < 0 || c.Dedup.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %f", c.Dedup.MinConfidence)
	}
	for source, score := range c.Dedup.TrustScores {
		if score < 0 || score > 100 {
			return fmt.Errorf("trust score for %q must be in [0,100], got %f", source, score)
		}
	}
	if c.Database.PoolMin < 0 || c.Database.PoolMax < c.Database.PoolMin {
		return fmt.Errorf("invalid database pool bounds min=%d max=%d", c.Database.PoolMin, c.Database.PoolMax)
	}
	if !c.Storage.UseDatabase && !c.Storage.UseFileStorage {
		return fmt.Errorf("at least one of use_database and use_file_storage must be enabled")
	}

	return nil
}

// LogFormat resolves the effective log format: an explicit setting wins,
// otherwise production logs JSON and development logs to the console.
func (c *Config) LogFormat() string {
	if c.Logging.Format != "" {
		return c.Logging.Format
	}
	if c.Mode == ModeProduction {
		return "json"
	}
	return "console"
}
