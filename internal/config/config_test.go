// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.Equal(t, 30, cfg.Ingest.RateLimitPerMin)
	assert.Equal(t, 30*time.Second, cfg.Ingest.Timeout)
	assert.Equal(t, 0.7, cfg.Dedup.MinConfidence)
	assert.Equal(t, 24*time.Hour, cfg.Dedup.MaxSnapshotAge)
	assert.Equal(t, 100, cfg.Cache.HotSize)
	assert.Equal(t, 500, cfg.Cache.WarmSize)
	assert.True(t, cfg.Storage.UseFileStorage)
	assert.Equal(t, "console", cfg.LogFormat())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INGESTOR_MODE", "production")
	t.Setenv("INGESTOR_RATE_LIMIT_PER_MIN", "120")
	t.Setenv("INGESTOR_TIMEOUT_MS", "5000")
	t.Setenv("INGESTOR_ENABLED_SOURCES", "bristol-venues, headfirst")
	t.Setenv("INGESTOR_USE_DATABASE", "true")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.Equal(t, "json", cfg.LogFormat())
	assert.Equal(t, 120, cfg.Ingest.RateLimitPerMin)
	assert.Equal(t, 5*time.Second, cfg.Ingest.Timeout)
	assert.Equal(t, []string{"bristol-venues", "headfirst"}, cfg.Scheduler.EnabledSources)
	assert.True(t, cfg.Storage.UseDatabase)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gigateer.yaml")
	yaml := `
mode: production
dedup:
  min_confidence: 0.6
  require_same_day: true
  trust_scores:
    ticketmaster: 90
    web-scraper: 40
scheduler:
  stagger_minutes: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Dedup.MinConfidence)
	assert.True(t, cfg.Dedup.RequireSameDay)
	assert.Equal(t, 90.0, cfg.Dedup.TrustScores["ticketmaster"])
	assert.Equal(t, 5, cfg.Scheduler.StaggerMinutes)
}

func TestValidateRejectsOverlappingSourceLists(t *testing.T) {
	t.Setenv("INGESTOR_ENABLED_SOURCES", "headfirst")
	t.Setenv("INGESTOR_DISABLED_SOURCES", "headfirst")

	_, err := LoadFrom("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enabled_sources and disabled_sources")
}

func TestValidateRejectsBadMode(t *testing.T) {
	t.Setenv("INGESTOR_MODE", "staging")
	_, err := LoadFrom("")
	require.Error(t, err)
}

func TestValidateRejectsNoStorageBackend(t *testing.T) {
	t.Setenv("INGESTOR_USE_DATABASE", "false")
	t.Setenv("INGESTOR_USE_FILE_STORAGE", "false")
	_, err := LoadFrom("")
	require.Error(t, err)
}

func TestValidateTrustScoreBounds(t *testing.T) {
	cfg := defaultConfig()
	cfg.Dedup.TrustScores = map[string]float64{"shady": 140}
	assert.Error(t, cfg.Validate())
}
