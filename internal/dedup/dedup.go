// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package dedup

import (
	"math"
	"time"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

// Scoring weights and thresholds. These are part of the matching contract
// for reproducibility; do not tune without updating the tests.
const (
	weightVenue    = 0.3
	weightTitle    = 0.3
	weightLocation = 0.2
	weightDate     = 0.2

	venueThreshold = 0.80
	titleThreshold = 0.75

	sameDayScore   = 1.0
	tolerantScore  = 0.8
	dateMissScore  = 0.0
	exactPairScore = 1.0
)

// Options tunes the deduplicator.
type Options struct {
	// MinConfidence is the overall score at or above which a pair is a
	// duplicate. Default 0.7.
	MinConfidence float64

	// DateTolerance is the window within which differing start times still
	// contribute a partial date score. Default 2h.
	DateTolerance time.Duration

	// RequireSameDay vetoes any pair whose start dates differ by calendar
	// day, regardless of the overall score.
	RequireSameDay bool

	// TrustScores are per-call trust overrides passed to the merger.
	TrustScores map[string]float64

	// PreserveIDs keeps original IDs through merges.
	PreserveIDs bool
}

// withDefaults fills zero options.
func (o Options) withDefaults() Options {
	if o.MinConfidence == 0 {
		o.MinConfidence = 0.7
	}
	if o.DateTolerance == 0 {
		o.DateTolerance = 2 * time.Hour
	}
	return o
}

// Result is the outcome of one dedup pass.
type Result struct {
	Gigs              []models.Gig
	DuplicatesRemoved int
	MergedGroups      int
	PerSource         map[string]models.SourceCounters
}

// Deduplicate collapses duplicates across the unioned snapshot set in two
// passes: exact ID grouping, then fuzzy matching over bucketed candidates.
// Output order follows first occurrence in the input; the catalog
// generator sorts afterwards.
func Deduplicate(gigs []models.Gig, opts Options) Result {
	opts = opts.withDefaults()
	merger := NewMerger(opts.TrustScores)
	merger.PreserveIDs = opts.PreserveIDs

	original := countBySource(gigs)

	exact := exactIDPass(gigs, merger)
	mergedGroups := exact.mergedGroups

	fuzzy := fuzzyPass(exact.gigs, merger, opts)
	mergedGroups += fuzzy.mergedGroups

	afterDedup := countBySource(fuzzy.gigs)
	perSource := make(map[string]models.SourceCounters, len(original))
	for source, n := range original {
		after := afterDedup[source]
		perSource[source] = models.SourceCounters{
			Original:          n,
			AfterDedup:        after,
			DuplicatesRemoved: n - after,
		}
	}

	return Result{
		Gigs:              fuzzy.gigs,
		DuplicatesRemoved: len(gigs) - len(fuzzy.gigs),
		MergedGroups:      mergedGroups,
		PerSource:         perSource,
	}
}

type passResult struct {
	gigs         []models.Gig
	mergedGroups int
}

// exactIDPass groups records sharing an ID and collapses each multi-member
// group through the merger, preserving input order of first occurrence.
func exactIDPass(gigs []models.Gig, merger *Merger) passResult {
	order := make([]string, 0, len(gigs))
	groups := make(map[string][]models.Gig, len(gigs))
	for _, g := range gigs {
		if _, ok := groups[g.ID]; !ok {
			order = append(order, g.ID)
		}
		groups[g.ID] = append(groups[g.ID], g)
	}

	out := passResult{gigs: make([]models.Gig, 0, len(groups))}
	for _, id := range order {
		group := groups[id]
		if len(group) == 1 {
			out.gigs = append(out.gigs, group[0])
			continue
		}
		merged := merger.Merge(group)
		if merger.PreserveIDs {
			merged.ID = id
		}
		out.gigs = append(out.gigs, merged)
		out.mergedGroups++
	}
	return out
}

// fuzzyPass buckets survivors by coarse keys and scores same-bucket pairs.
// Every record is processed exactly once: once matched into a group it is
// marked handled and skipped as a later pivot.
func fuzzyPass(gigs []models.Gig, merger *Merger, opts Options) passResult {
	buckets := make(map[string][]int)
	for i, g := range gigs {
		for _, key := range bucketKeys(g) {
			buckets[key] = append(buckets[key], i)
		}
	}

	handled := make([]bool, len(gigs))
	var out passResult

	for i := range gigs {
		if handled[i] {
			continue
		}
		handled[i] = true
		group := []models.Gig{gigs[i]}

		seen := map[int]struct{}{i: {}}
		for _, key := range bucketKeys(gigs[i]) {
			for _, j := range buckets[key] {
				if handled[j] {
					continue
				}
				if _, dup := seen[j]; dup {
					continue
				}
				seen[j] = struct{}{}
				if isMatch(gigs[i], gigs[j], opts) {
					handled[j] = true
					group = append(group, gigs[j])
				}
			}
		}

		if len(group) == 1 {
			out.gigs = append(out.gigs, gigs[i])
			continue
		}
		out.gigs = append(out.gigs, merger.Merge(group))
		out.mergedGroups++
	}
	return out
}

// bucketKeys returns the coarse keys under which a gig is indexed for
// candidate lookup: venue|day, city|day and the full fuzzy digest.
func bucketKeys(g models.Gig) []string {
	day := models.DateDay(g)
	key := models.NewFuzzyKey(g)
	keys := make([]string, 0, 3)
	if key.Venue != "" {
		keys = append(keys, "v|"+key.Venue+"|"+day)
	}
	if key.City != "" {
		keys = append(keys, "c|"+key.City+"|"+day)
	}
	keys = append(keys, "k|"+key.Digest())
	return keys
}

// isMatch applies the pairwise scoring contract.
func isMatch(a, b models.Gig, opts Options) bool {
	// Same upstream record seen twice is always a match.
	if a.Source != "" && a.Source == b.Source &&
		a.SourceID != "" && a.SourceID == b.SourceID {
		return exactPairScore >= opts.MinConfidence
	}

	if opts.RequireSameDay && !models.SameDay(a, b) {
		return false
	}

	return Score(a, b, opts.DateTolerance) >= opts.MinConfidence
}

// Score computes the weighted pair confidence in [0,1]. Venue and title
// similarities contribute only above their thresholds.
func Score(a, b models.Gig, dateTolerance time.Duration) float64 {
	venue := JaroWinkler(models.NormalizeVenue(a.Venue.Name), models.NormalizeVenue(b.Venue.Name))
	if venue < venueThreshold {
		venue = 0
	}

	title := JaroWinkler(models.NormalizeText(a.Title), models.NormalizeText(b.Title))
	if title < titleThreshold {
		title = 0
	}

	location := locationScore(a, b)
	date := dateScore(a, b, dateTolerance)

	return weightVenue*venue + weightTitle*title + weightLocation*location + weightDate*date
}

// locationScore compares city, falling back to address then country when
// either side lacks one.
func locationScore(a, b models.Gig) float64 {
	ca, cb := models.NormalizeText(a.Venue.City), models.NormalizeText(b.Venue.City)
	if ca != "" && cb != "" {
		return JaroWinkler(ca, cb)
	}
	aa, ab := models.NormalizeText(a.Venue.Address), models.NormalizeText(b.Venue.Address)
	if aa != "" && ab != "" {
		return JaroWinkler(aa, ab)
	}
	na, nb := models.NormalizeText(a.Venue.Country), models.NormalizeText(b.Venue.Country)
	if na != "" && nb != "" {
		return JaroWinkler(na, nb)
	}
	return 0
}

// dateScore: full score on the same calendar day, partial within the
// tolerance window, nothing otherwise.
func dateScore(a, b models.Gig, tolerance time.Duration) float64 {
	if a.DateStart.IsZero() || b.DateStart.IsZero() {
		return dateMissScore
	}
	if models.SameDay(a, b) {
		return sameDayScore
	}
	delta := time.Duration(math.Abs(float64(a.DateStart.Sub(b.DateStart))))
	if delta <= tolerance {
		return tolerantScore
	}
	return dateMissScore
}

func countBySource(gigs []models.Gig) map[string]int {
	out := make(map[string]int)
	for _, g := range gigs {
		out[g.Source]++
	}
	return out
}
