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

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

func TestParseTrustScores(t *testing.T) {
	scores, err := parseTrustScores("headfirst=90, songkick=70")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"headfirst": 90, "songkick": 70}, scores)

	scores, err = parseTrustScores("")
	require.NoError(t, err)
	assert.Nil(t, scores)

	_, err = parseTrustScores("headfirst")
	assert.Error(t, err)
	_, err = parseTrustScores("headfirst=150")
	assert.Error(t, err)
}

func TestRunUsageErrors(t *testing.T) {
	assert.Equal(t, exitUsage, run(nil))
	assert.Equal(t, exitUsage, run([]string{"frobnicate"}))
	assert.Equal(t, exitUsage, run([]string{"compare", "only-one.json"}))
	assert.Equal(t, exitUsage, run([]string{"validate"}))
	assert.Equal(t, exitOK, run([]string{"help"}))
}

func writeCatalog(t *testing.T, path string, gigs ...models.Gig) {
	t.Helper()
	data, err := json.Marshal(models.Catalog{
		Gigs:     gigs,
		Metadata: models.CatalogMetadata{GeneratedAt: time.Now().UTC()},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func testGig(id, title string) models.Gig {
	g := models.Gig{
		ID:        id,
		Source:    "headfirst",
		Title:     title,
		DateStart: time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC),
		Venue:     models.Venue{Name: "Thekla", City: "Bristol"},
		Status:    models.StatusScheduled,
	}
	g.Hash = models.ContentHash(g)
	return g
}

func TestCompareCatalogFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.json")
	newPath := filepath.Join(dir, "new.json")

	shared := testGig("g-1", "Show A")
	writeCatalog(t, oldPath, shared)
	writeCatalog(t, newPath, shared, testGig("g-2", "Show B"))

	assert.Equal(t, exitOK, run([]string{"compare", oldPath, newPath}))
	assert.Equal(t, exitError, run([]string{"compare", oldPath, filepath.Join(dir, "missing.json")}))
}

func TestValidateReportsInvalidRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	bad := testGig("g-bad", "Broken")
	bad.Venue.Name = ""
	writeCatalog(t, path, testGig("g-ok", "Fine"), bad)

	assert.Equal(t, exitError, run([]string{"validate", path}))

	goodOnly := filepath.Join(dir, "good.json")
	writeCatalog(t, goodOnly, testGig("g-ok", "Fine"))
	assert.Equal(t, exitOK, run([]string{"validate", goodOnly}))
}

func TestGenerateFromSnapshots(t *testing.T) {
	dir := t.TempDir()
	sources := filepath.Join(dir, "normalized")
	require.NoError(t, os.MkdirAll(sources, 0o750))

	snap := models.Snapshot{
		Gigs: []models.Gig{testGig("g-1", "Show A")},
		Metadata: models.SnapshotMetadata{
			Source:  "headfirst",
			LastRun: time.Now().UTC(),
		},
	}
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(sources, "headfirst.normalized.json"), data, 0o644))

	output := filepath.Join(dir, "catalog.json")
	code := run([]string{"generate", "-sources-dir", sources, "-output", output})
	assert.Equal(t, exitOK, code)

	written, err := loadCatalogFile(output)
	require.NoError(t, err)
	assert.Len(t, written.Gigs, 1)
}
