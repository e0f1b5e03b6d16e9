// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package models

import "time"

// Catalog is the deduplicated union across all source snapshots, sorted by
// DateStart ascending. It is derived data: external callers never write it.
type Catalog struct {
	Gigs        []Gig           `json:"gigs"`
	SourceStats SourceStats     `json:"sourceStats"`
	Metadata    CatalogMetadata `json:"metadata"`
}

// SourceStats carries per-source and aggregate dedup counters.
type SourceStats struct {
	PerSource map[string]SourceCounters `json:"perSource"`
	Totals    SourceCounters            `json:"totals"`
}

// SourceCounters counts one source's records before and after dedup.
type SourceCounters struct {
	Original          int `json:"original"`
	AfterDedup        int `json:"afterDedup"`
	DuplicatesRemoved int `json:"duplicatesRemoved"`
}

// CatalogMetadata describes one catalog generation.
type CatalogMetadata struct {
	Version          string       `json:"version"`
	GeneratedAt      time.Time    `json:"generatedAt"`
	Dedup            DedupSummary `json:"dedupCounters"`
	ProcessingTimeMs int64        `json:"processingTimeMs"`
	SourceCount      int          `json:"sourceCount"`
	TotalProcessed   int          `json:"totalProcessed"`
}

// DedupSummary is the aggregate outcome of a dedup pass.
type DedupSummary struct {
	DuplicatesRemoved int `json:"duplicatesRemoved"`
	MergedGroups      int `json:"mergedGroups"`
}

// CatalogDiff classifies records between two catalog generations by id and
// hash. A record absent from every source disappears here and is reported
// as removed; per-source change detection never emits removals.
type CatalogDiff struct {
	Added     []Gig `json:"added"`
	Updated   []Gig `json:"updated"`
	Removed   []Gig `json:"removed"`
	Unchanged int   `json:"unchanged"`
}

// DiffCatalogs compares a previous catalog against the next one.
// Previous may be nil, in which case every gig is added.
func DiffCatalogs(previous *Catalog, next *Catalog) CatalogDiff {
	var diff CatalogDiff
	if previous == nil {
		diff.Added = append(diff.Added, next.Gigs...)
		return diff
	}

	prevByID := make(map[string]Gig, len(previous.Gigs))
	for _, g := range previous.Gigs {
		prevByID[g.ID] = g
	}

	seen := make(map[string]struct{}, len(next.Gigs))
	for _, g := range next.Gigs {
		seen[g.ID] = struct{}{}
		prev, ok := prevByID[g.ID]
		switch {
		case !ok:
			diff.Added = append(diff.Added, g)
		case prev.Hash != g.Hash:
			diff.Updated = append(diff.Updated, g)
		default:
			diff.Unchanged++
		}
	}

	for _, g := range previous.Gigs {
		if _, ok := seen[g.ID]; !ok {
			diff.Removed = append(diff.Removed, g)
		}
	}
	return diff
}
