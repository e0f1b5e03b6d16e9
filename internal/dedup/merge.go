// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package dedup

import (
	"sort"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

// DefaultTrustScore is used for sources without an explicit score.
const DefaultTrustScore = 50.0

// defaultTrustScores seed the built-in source ranking. Per-call overrides
// take precedence.
var defaultTrustScores = map[string]float64{
	"ticketmaster": 90,
	"bandsintown":  80,
	"songkick":     75,
	"web-scraper":  40,
}

// Merger merges duplicate gig groups using per-source trust scores.
type Merger struct {
	scores map[string]float64

	// PreserveIDs keeps the most-trusted record's ID instead of
	// regenerating a composite key for the merged result.
	PreserveIDs bool
}

// NewMerger creates a merger. overrides take precedence over the built-in
// defaults; unknown sources score DefaultTrustScore.
func NewMerger(overrides map[string]float64) *Merger {
	scores := make(map[string]float64, len(defaultTrustScores)+len(overrides))
	for source, score := range defaultTrustScores {
		scores[source] = score
	}
	for source, score := range overrides {
		scores[source] = score
	}
	return &Merger{scores: scores}
}

// Trust returns the trust score for a source in [0,100].
func (m *Merger) Trust(source string) float64 {
	if score, ok := m.scores[source]; ok {
		return score
	}
	return DefaultTrustScore
}

// byTrust returns the group sorted most-trusted first. Ties break on the
// latest UpdatedAt, then lexicographic source.
func (m *Merger) byTrust(group []models.Gig) []models.Gig {
	sorted := make([]models.Gig, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := m.Trust(sorted[i].Source), m.Trust(sorted[j].Source)
		if ti != tj {
			return ti > tj
		}
		if !sorted[i].UpdatedAt.Equal(sorted[j].UpdatedAt) {
			return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
		}
		return sorted[i].Source < sorted[j].Source
	})
	return sorted
}

// MostTrusted returns the group member whose source ranks highest.
func (m *Merger) MostTrusted(group []models.Gig) models.Gig {
	return m.byTrust(group)[0]
}

// Merge collapses a duplicate group into one canonical record:
//
//   - scalar fields come from the most trusted member, with gaps filled
//     from the next most trusted member providing them;
//   - artists, tags and images are unioned preserving order of first
//     occurrence (most trusted first);
//   - FirstSeenAt is the minimum, LastSeenAt and UpdatedAt the maximum;
//   - the content hash is recomputed, and unless PreserveIDs is set the ID
//     becomes the composite key of the merged result.
func (m *Merger) Merge(group []models.Gig) models.Gig {
	ranked := m.byTrust(group)
	out := ranked[0].Clone()

	for _, next := range ranked[1:] {
		fillScalars(&out, next)
	}

	artistLists := make([][]string, len(ranked))
	tagLists := make([][]string, len(ranked))
	imageLists := make([][]string, len(ranked))
	for i, g := range ranked {
		artistLists[i] = g.Artists
		tagLists[i] = g.Tags
		imageLists[i] = g.Images
	}
	out.Artists = models.UnionStrings(artistLists...)
	out.Tags = models.UnionStrings(tagLists...)
	out.Images = models.UnionStrings(imageLists...)

	for _, g := range group {
		if g.FirstSeenAt != nil && (out.FirstSeenAt == nil || g.FirstSeenAt.Before(*out.FirstSeenAt)) {
			t := *g.FirstSeenAt
			out.FirstSeenAt = &t
		}
		if g.LastSeenAt != nil && (out.LastSeenAt == nil || g.LastSeenAt.After(*out.LastSeenAt)) {
			t := *g.LastSeenAt
			out.LastSeenAt = &t
		}
		if g.UpdatedAt.After(out.UpdatedAt) {
			out.UpdatedAt = g.UpdatedAt
		}
	}

	if !m.PreserveIDs {
		out.ID = models.CompositeKey(out)
	}
	out.Hash = models.ContentHash(out)
	return out
}

// fillScalars copies scalar fields absent on dst from src.
func fillScalars(dst *models.Gig, src models.Gig) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.SourceID == "" {
		dst.SourceID = src.SourceID
	}
	if dst.Status == "" {
		dst.Status = src.Status
	}
	if dst.Timezone == "" {
		dst.Timezone = src.Timezone
	}
	if dst.AgeRestriction == "" {
		dst.AgeRestriction = src.AgeRestriction
	}
	if dst.TicketsURL == "" {
		dst.TicketsURL = src.TicketsURL
	}
	if dst.EventURL == "" {
		dst.EventURL = src.EventURL
	}
	if dst.DateEnd == nil && src.DateEnd != nil {
		t := *src.DateEnd
		dst.DateEnd = &t
	}

	if dst.Venue.Name == "" {
		dst.Venue.Name = src.Venue.Name
	}
	if dst.Venue.Address == "" {
		dst.Venue.Address = src.Venue.Address
	}
	if dst.Venue.City == "" {
		dst.Venue.City = src.Venue.City
	}
	if dst.Venue.Country == "" {
		dst.Venue.Country = src.Venue.Country
	}
	if dst.Venue.Lat == nil && src.Venue.Lat != nil {
		v := *src.Venue.Lat
		dst.Venue.Lat = &v
	}
	if dst.Venue.Lng == nil && src.Venue.Lng != nil {
		v := *src.Venue.Lng
		dst.Venue.Lng = &v
	}

	if src.Price != nil {
		if dst.Price == nil {
			dst.Price = &models.Price{Currency: src.Price.Currency}
			if src.Price.Min != nil {
				v := *src.Price.Min
				dst.Price.Min = &v
			}
			if src.Price.Max != nil {
				v := *src.Price.Max
				dst.Price.Max = &v
			}
			return
		}
		if dst.Price.Min == nil && src.Price.Min != nil {
			v := *src.Price.Min
			dst.Price.Min = &v
		}
		if dst.Price.Max == nil && src.Price.Max != nil {
			v := *src.Price.Max
			dst.Price.Max = &v
		}
		if dst.Price.Currency == "" {
			dst.Price.Currency = src.Price.Currency
		}
	}
}
