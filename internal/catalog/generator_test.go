// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

type memSnapshots struct {
	snaps []*models.Snapshot
}

func (m *memSnapshots) ListSnapshots(_ context.Context) ([]*models.Snapshot, error) {
	return m.snaps, nil
}

type memCatalog struct {
	catalog *models.Catalog
	saves   int
}

func (m *memCatalog) LoadCatalog(_ context.Context) (*models.Catalog, error) {
	return m.catalog, nil
}

func (m *memCatalog) SaveCatalog(_ context.Context, c *models.Catalog) error {
	m.catalog = c
	m.saves++
	return nil
}

func gig(id, source, title, venue, city string, start time.Time) models.Gig {
	g := models.Gig{
		ID:        id,
		Source:    source,
		Title:     title,
		DateStart: start,
		Venue:     models.Venue{Name: venue, City: city},
		Status:    models.StatusScheduled,
		UpdatedAt: start,
	}
	g.Hash = models.ContentHash(g)
	return g
}

func snapshot(source string, lastRun time.Time, gigs ...models.Gig) *models.Snapshot {
	return &models.Snapshot{
		Gigs:     gigs,
		Metadata: models.SnapshotMetadata{Source: source, LastRun: lastRun},
	}
}

func newTestGenerator(snaps *memSnapshots, store *memCatalog, now time.Time) *Generator {
	g := NewGenerator(snaps, store)
	g.now = func() time.Time { return now }
	return g
}

func TestGenerateSortsByDateStart(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(72 * time.Hour)
	sooner := now.Add(24 * time.Hour)

	snaps := &memSnapshots{snaps: []*models.Snapshot{
		snapshot("headfirst", now,
			gig("b", "headfirst", "Later Gig", "Thekla", "Bristol", later),
			gig("a", "headfirst", "Sooner Gig", "The Fleece", "Bristol", sooner),
		),
	}}
	store := &memCatalog{}

	result, err := newTestGenerator(snaps, store, now).Generate(context.Background(), Options{})
	require.NoError(t, err)

	gigs := result.Catalog.Gigs
	require.Len(t, gigs, 2)
	assert.True(t, gigs[0].DateStart.Before(gigs[1].DateStart))
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, Version, result.Catalog.Metadata.Version)
	assert.Equal(t, 1, result.Catalog.Metadata.SourceCount)
}

func TestGenerateSkipsStaleSnapshots(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	snaps := &memSnapshots{snaps: []*models.Snapshot{
		snapshot("fresh", now.Add(-time.Hour),
			gig("a", "fresh", "Current", "The Fleece", "Bristol", now.Add(24*time.Hour))),
		snapshot("stale", now.Add(-48*time.Hour),
			gig("b", "stale", "Old News", "Thekla", "Bristol", now.Add(24*time.Hour))),
	}}
	store := &memCatalog{}

	result, err := newTestGenerator(snaps, store, now).Generate(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"stale"}, result.SkippedSources)
	require.Len(t, result.Catalog.Gigs, 1)
	assert.Equal(t, "fresh", result.Catalog.Gigs[0].Source)
}

func TestGenerateCrossSourceDedupAndDiff(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	showTime := now.Add(48 * time.Hour)

	first := &memSnapshots{snaps: []*models.Snapshot{
		snapshot("ticketmaster", now,
			gig("same", "ticketmaster", "Official", "The Fleece", "Bristol", showTime)),
		snapshot("web-scraper", now,
			gig("same", "web-scraper", "Scraped", "The Fleece", "Bristol", showTime)),
	}}
	store := &memCatalog{}
	generator := newTestGenerator(first, store, now)

	result, err := generator.Generate(context.Background(), Options{PreserveIDs: true})
	require.NoError(t, err)

	require.Len(t, result.Catalog.Gigs, 1, "exact-id duplicates collapse")
	assert.Equal(t, "Official", result.Catalog.Gigs[0].Title)
	assert.Equal(t, 1, result.Catalog.Metadata.Dedup.DuplicatesRemoved)
	assert.Len(t, result.Diff.Added, 1, "first generation adds everything")

	// Second generation: the scraper stops reporting, ticketmaster's gig
	// survives. Nothing is removed because the record still exists.
	second := &memSnapshots{snaps: []*models.Snapshot{first.snaps[0]}}
	generator2 := newTestGenerator(second, store, now)
	result2, err := generator2.Generate(context.Background(), Options{PreserveIDs: true})
	require.NoError(t, err)
	assert.Empty(t, result2.Diff.Removed)

	// Third generation: every source stops reporting it. Now it is a
	// removal in the catalog diff.
	third := &memSnapshots{snaps: []*models.Snapshot{snapshot("ticketmaster", now)}}
	generator3 := newTestGenerator(third, store, now)
	result3, err := generator3.Generate(context.Background(), Options{PreserveIDs: true})
	require.NoError(t, err)
	assert.Len(t, result3.Diff.Removed, 1)
}

func TestGenerateDryRunDoesNotWrite(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	snaps := &memSnapshots{snaps: []*models.Snapshot{
		snapshot("headfirst", now,
			gig("a", "headfirst", "Gig", "The Fleece", "Bristol", now.Add(time.Hour))),
	}}
	store := &memCatalog{}

	_, err := newTestGenerator(snaps, store, now).Generate(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, store.saves)
}

func TestGenerateValidationDropsBadRecords(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	bad := gig("bad", "headfirst", "No Venue", "", "Bristol", now.Add(time.Hour))
	good := gig("good", "headfirst", "Fine", "The Fleece", "Bristol", now.Add(2*time.Hour))

	snaps := &memSnapshots{snaps: []*models.Snapshot{snapshot("headfirst", now, bad, good)}}
	store := &memCatalog{}

	result, err := newTestGenerator(snaps, store, now).Generate(context.Background(), Options{Validate: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ValidationErrors)
	require.Len(t, result.Catalog.Gigs, 1)
	assert.Equal(t, "good", result.Catalog.Gigs[0].ID)
}
