// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package ingest runs the per-source pipeline: fetch, normalize, validate,
// diff against the previous snapshot, persist, report.
package ingest

import (
	"time"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

// Changes classifies one run's records against the previous snapshot.
//
// Absence of a previously-seen ID is not a deletion at this layer;
// removals surface only in the catalog diff once every source stops
// reporting a record.
type Changes struct {
	New       []models.Gig
	Updated   []models.Gig
	Unchanged []models.Gig
}

// DetectChanges compares current records against the previous snapshot by
// ID and content hash. Previous may be empty on a first run.
func DetectChanges(current, previous []models.Gig) Changes {
	prevByID := make(map[string]models.Gig, len(previous))
	for _, g := range previous {
		prevByID[g.ID] = g
	}

	var ch Changes
	for _, g := range current {
		prev, ok := prevByID[g.ID]
		switch {
		case !ok:
			ch.New = append(ch.New, g)
		case prev.Hash != g.Hash:
			ch.Updated = append(ch.Updated, g)
		default:
			ch.Unchanged = append(ch.Unchanged, g)
		}
	}
	return ch
}

// MergeSnapshot reassembles the new snapshot from a classification:
// new records are stamped FirstSeenAt=now, updated records bump UpdatedAt
// and LastSeenAt while preserving FirstSeenAt from the previous snapshot,
// unchanged records keep their previous timestamps with LastSeenAt
// refreshed. Change markers are set for downstream consumers and cleared
// on the next run.
func MergeSnapshot(ch Changes, previous []models.Gig, now time.Time) []models.Gig {
	prevByID := make(map[string]models.Gig, len(previous))
	for _, g := range previous {
		prevByID[g.ID] = g
	}

	out := make([]models.Gig, 0, len(ch.New)+len(ch.Updated)+len(ch.Unchanged))

	for _, g := range ch.New {
		t := now
		g.FirstSeenAt = &t
		g.LastSeenAt = &t
		g.UpdatedAt = now
		g.IsNew = true
		g.IsUpdated = false
		out = append(out, g)
	}

	for _, g := range ch.Updated {
		if prev, ok := prevByID[g.ID]; ok && prev.FirstSeenAt != nil {
			t := *prev.FirstSeenAt
			g.FirstSeenAt = &t
		} else if g.FirstSeenAt == nil {
			t := now
			g.FirstSeenAt = &t
		}
		t := now
		g.LastSeenAt = &t
		g.UpdatedAt = now
		g.IsNew = false
		g.IsUpdated = true
		out = append(out, g)
	}

	for _, g := range ch.Unchanged {
		if prev, ok := prevByID[g.ID]; ok {
			g.FirstSeenAt = prev.FirstSeenAt
			g.UpdatedAt = prev.UpdatedAt
		}
		t := now
		g.LastSeenAt = &t
		g.IsNew = false
		g.IsUpdated = false
		out = append(out, g)
	}

	return out
}
