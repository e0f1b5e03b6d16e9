// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package catalog turns the per-source snapshot set into the deduplicated,
// versioned catalog that the query surface reads.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/1mitten/gigateer-sub001/internal/dedup"
	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
	"github.com/1mitten/gigateer-sub001/internal/models"
	"github.com/1mitten/gigateer-sub001/internal/validation"
)

// Version stamps generated catalog metadata.
const Version = "1.0.0"

// SnapshotLister enumerates the per-source snapshots eligible for
// cataloging.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context) ([]*models.Snapshot, error)
}

// CatalogStore reads the previous catalog and atomically replaces it.
type CatalogStore interface {
	LoadCatalog(ctx context.Context) (*models.Catalog, error)
	SaveCatalog(ctx context.Context, c *models.Catalog) error
}

// Options tunes one catalog generation.
type Options struct {
	MinConfidence  float64
	DateTolerance  time.Duration
	RequireSameDay bool
	TrustScores    map[string]float64
	PreserveIDs    bool

	// MaxSnapshotAge excludes snapshots whose last run is older. Default
	// 24h.
	MaxSnapshotAge time.Duration

	// Validate runs batch validation over each snapshot before dedup,
	// dropping records that fail.
	Validate bool

	// DryRun computes the catalog and diff without writing.
	DryRun bool
}

func (o Options) withDefaults() Options {
	if o.MaxSnapshotAge <= 0 {
		o.MaxSnapshotAge = 24 * time.Hour
	}
	return o
}

// Generator produces catalogs from snapshots.
type Generator struct {
	snapshots SnapshotLister
	store     CatalogStore

	now func() time.Time
}

// NewGenerator creates a catalog generator.
func NewGenerator(snapshots SnapshotLister, store CatalogStore) *Generator {
	return &Generator{snapshots: snapshots, store: store, now: time.Now}
}

// Result pairs the generated catalog with its diff against the previous
// generation.
type Result struct {
	Catalog *models.Catalog
	Diff    models.CatalogDiff

	// SkippedSources are sources excluded for staleness.
	SkippedSources []string

	// ValidationErrors counts records dropped by pre-dedup validation.
	ValidationErrors int
}

// Generate unions all eligible snapshots, deduplicates, sorts and writes
// the catalog atomically. Readers always see either the previous complete
// catalog or the new one.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	started := g.now()

	snaps, err := g.snapshots.ListSnapshots(ctx)
	if err != nil {
		metrics.CatalogGenerations.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	result := &Result{}
	var union []models.Gig
	perSourceInput := 0
	sourceCount := 0

	for _, snap := range snaps {
		if !validation.SnapshotFreshness(snap.Metadata.LastRun, opts.MaxSnapshotAge, g.now()) {
			logging.Warn().
				Str("source", snap.Metadata.Source).
				Time("last_run", snap.Metadata.LastRun).
				Dur("max_age", opts.MaxSnapshotAge).
				Msg("Skipping stale snapshot")
			result.SkippedSources = append(result.SkippedSources, snap.Metadata.Source)
			continue
		}

		gigs := snap.Gigs
		if opts.Validate {
			batch := validation.ValidateBatch(gigs, validation.Options{})
			result.ValidationErrors += len(batch.Invalid)
			gigs = batch.Valid
		}

		sourceCount++
		perSourceInput += len(gigs)
		union = append(union, gigs...)
	}

	deduped := dedup.Deduplicate(union, dedup.Options{
		MinConfidence:  opts.MinConfidence,
		DateTolerance:  opts.DateTolerance,
		RequireSameDay: opts.RequireSameDay,
		TrustScores:    opts.TrustScores,
		PreserveIDs:    opts.PreserveIDs,
	})

	gigs := deduped.Gigs
	sort.SliceStable(gigs, func(i, j int) bool {
		if !gigs[i].DateStart.Equal(gigs[j].DateStart) {
			return gigs[i].DateStart.Before(gigs[j].DateStart)
		}
		return gigs[i].ID < gigs[j].ID
	})

	cat := &models.Catalog{
		Gigs: gigs,
		SourceStats: models.SourceStats{
			PerSource: deduped.PerSource,
			Totals: models.SourceCounters{
				Original:          perSourceInput,
				AfterDedup:        len(gigs),
				DuplicatesRemoved: deduped.DuplicatesRemoved,
			},
		},
		Metadata: models.CatalogMetadata{
			Version:     Version,
			GeneratedAt: g.now(),
			Dedup: models.DedupSummary{
				DuplicatesRemoved: deduped.DuplicatesRemoved,
				MergedGroups:      deduped.MergedGroups,
			},
			ProcessingTimeMs: g.now().Sub(started).Milliseconds(),
			SourceCount:      sourceCount,
			TotalProcessed:   perSourceInput,
		},
	}
	result.Catalog = cat

	// Diff against the previous generation. A missing previous catalog is
	// a first generation, not an error; an unreadable one is logged and
	// diffed as absent.
	previous, err := g.store.LoadCatalog(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Previous catalog unreadable, diffing against empty")
		previous = nil
	}
	result.Diff = models.DiffCatalogs(previous, cat)

	if !opts.DryRun {
		if err := g.store.SaveCatalog(ctx, cat); err != nil {
			metrics.CatalogGenerations.WithLabelValues("failure").Inc()
			return nil, fmt.Errorf("save catalog: %w", err)
		}
	}

	metrics.CatalogGenerations.WithLabelValues("success").Inc()
	metrics.CatalogGigs.Set(float64(len(gigs)))
	metrics.CatalogDuplicatesRemoved.Set(float64(deduped.DuplicatesRemoved))
	metrics.CatalogGenerationDuration.Observe(g.now().Sub(started).Seconds())

	logging.Info().
		Int("sources", sourceCount).
		Int("input", perSourceInput).
		Int("gigs", len(gigs)).
		Int("duplicates_removed", deduped.DuplicatesRemoved).
		Int("added", len(result.Diff.Added)).
		Int("updated", len(result.Diff.Updated)).
		Int("removed", len(result.Diff.Removed)).
		Bool("dry_run", opts.DryRun).
		Msg("Catalog generated")

	return result, nil
}
