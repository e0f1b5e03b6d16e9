// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1mitten/gigateer-sub001/internal/config"
	"github.com/1mitten/gigateer-sub001/internal/scraper"
)

func TestRegisterFixtureSourcesPerSubdirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "headfirst"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "songkick"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.json"), []byte("[]"), 0o644))

	registry := scraper.NewRegistry()
	require.NoError(t, registerFixtureSources(registry, dir))
	assert.Equal(t, []string{"headfirst", "songkick"}, registry.Sources())
}

func TestRegisterFixtureSourcesFlatDirFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gigs.json"), []byte("[]"), 0o644))

	registry := scraper.NewRegistry()
	require.NoError(t, registerFixtureSources(registry, dir))
	assert.Equal(t, []string{"staticfile"}, registry.Sources())
}

func TestRegisterFixtureSourcesMissingDir(t *testing.T) {
	registry := scraper.NewRegistry()
	err := registerFixtureSources(registry, filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
	assert.Empty(t, registry.Sources())
}

func TestCacheConfigMapping(t *testing.T) {
	cfg := config.CacheConfig{
		HotSize:       10,
		HotTTL:        time.Minute,
		WarmSize:      20,
		WarmTTL:       2 * time.Minute,
		PromoteAfter:  4,
		FrequencyCap:  100,
		ClearInterval: 5 * time.Minute,
		PrefetchDelay: 50 * time.Millisecond,
		WarmingDelay:  25 * time.Millisecond,
	}

	mapped := cacheConfig(cfg)
	assert.Equal(t, 10, mapped.HotSize)
	assert.Equal(t, 20, mapped.WarmSize)
	assert.Equal(t, 4, mapped.PromoteAfter)
	assert.Equal(t, 5*time.Minute, mapped.ClearInterval)
	assert.Equal(t, 25*time.Millisecond, mapped.WarmingDelay)
}

func TestCatalogOptionsMapping(t *testing.T) {
	cfg := config.DedupConfig{
		MinConfidence:      0.8,
		DateToleranceHours: 3,
		RequireSameDay:     true,
		TrustScores:        map[string]float64{"headfirst": 90},
		MaxSnapshotAge:     48 * time.Hour,
	}

	opts := catalogOptions(cfg)
	assert.Equal(t, 0.8, opts.MinConfidence)
	assert.Equal(t, 3*time.Hour, opts.DateTolerance)
	assert.True(t, opts.RequireSameDay)
	assert.True(t, opts.PreserveIDs)
	assert.True(t, opts.Validate)
	assert.Equal(t, 48*time.Hour, opts.MaxSnapshotAge)
}
