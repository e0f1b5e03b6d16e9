// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "normalized"), filepath.Join(dir, "catalog.json"))
	require.NoError(t, err)
	return s
}

func testSnapshot(source string, titles ...string) *models.Snapshot {
	gigs := make([]models.Gig, len(titles))
	for i, title := range titles {
		gigs[i] = models.Gig{
			ID:        source + "-" + title,
			Source:    source,
			Title:     title,
			DateStart: time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC),
			Venue:     models.Venue{Name: "The Fleece", City: "Bristol"},
			Status:    models.StatusScheduled,
		}
	}
	return &models.Snapshot{
		Gigs:     gigs,
		Metadata: models.SnapshotMetadata{Source: source, LastRun: time.Now().UTC()},
	}
}

func TestFileStoreSnapshotRoundTrip(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("headfirst", "A", "B")))

	loaded, err := s.LoadSnapshot(ctx, "headfirst")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "headfirst", loaded.Metadata.Source)
	assert.Len(t, loaded.Gigs, 2)
}

func TestFileStoreMissingSnapshotIsNil(t *testing.T) {
	s := newTestFileStore(t)

	loaded, err := s.LoadSnapshot(context.Background(), "never-ingested")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileStoreListSnapshots(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("headfirst", "A")))
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("ticketmaster", "B")))

	snaps, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestFileStoreListSkipsCorruptFiles(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("headfirst", "A")))
	corrupt := filepath.Join(s.dir, "broken"+snapshotSuffix)
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))

	snaps, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "headfirst", snaps[0].Metadata.Source)
}

func TestFileStoreSaveIsAtomic(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("headfirst", "A")))
	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("headfirst", "B", "C")))

	// No temp files left behind and the final content is the new write.
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "headfirst"+snapshotSuffix, entries[0].Name())

	loaded, err := s.LoadSnapshot(ctx, "headfirst")
	require.NoError(t, err)
	assert.Len(t, loaded.Gigs, 2)
}

func TestFileStoreCatalogRoundTrip(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	cat, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Nil(t, cat, "no catalog before first generation")

	require.NoError(t, s.SaveCatalog(ctx, &models.Catalog{
		Gigs:     testSnapshot("headfirst", "A").Gigs,
		Metadata: models.CatalogMetadata{Version: "1.0.0", GeneratedAt: time.Now().UTC()},
	}))

	cat, err = s.LoadCatalog(ctx)
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.Equal(t, "1.0.0", cat.Metadata.Version)
	assert.Len(t, cat.Gigs, 1)
}

func TestFileStoreReadCacheWithinRefreshWindow(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	require.NoError(t, s.SaveSnapshot(ctx, testSnapshot("headfirst", "A")))
	first, err := s.LoadSnapshot(ctx, "headfirst")
	require.NoError(t, err)

	// Replace the file behind the store's back. Within the refresh
	// window the cached parse is served.
	require.NoError(t, writeJSONAtomic(s.snapshotPath("headfirst"), testSnapshot("headfirst", "B", "C")))
	// The rewrite can land within the same coarse-clock tick as the
	// original write, leaving the mtime unchanged; bump it so the
	// store can see the file was modified.
	require.NoError(t, os.Chtimes(s.snapshotPath("headfirst"), time.Time{}, time.Now().Add(time.Second)))
	s.mu.Lock()
	s.snaps["headfirst"].checkedAt = now
	s.mu.Unlock()

	cached, err := s.LoadSnapshot(ctx, "headfirst")
	require.NoError(t, err)
	assert.Same(t, first, cached)

	// Past the window the modification time is re-checked and the new
	// content is loaded.
	now = base.Add(fileRefreshWindow + time.Second)
	reloaded, err := s.LoadSnapshot(ctx, "headfirst")
	require.NoError(t, err)
	assert.Len(t, reloaded.Gigs, 2)
}
