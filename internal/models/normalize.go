// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package models

import (
	"strings"
	"unicode"
)

// stopWords are filler tokens that carry no identity for matching.
// "and" is folded to "&" before this list is applied.
var stopWords = map[string]struct{}{
	"the": {}, "live": {}, "concert": {}, "show": {}, "event": {}, "tour": {},
}

// venueSuffixes are venue-type words stripped when building venue fuzzy keys,
// so "Madison Square Garden Arena" and "Madison Square Garden" compare equal.
var venueSuffixes = map[string]struct{}{
	"club": {}, "bar": {}, "hall": {}, "arena": {}, "theatre": {},
	"theater": {}, "centre": {}, "center": {}, "venue": {},
}

// NormalizeText lowercases, collapses whitespace, strips punctuation, folds
// "and" to "&" and removes stop words. It is the shared normalization used
// for fuzzy keys and similarity scoring.
func NormalizeText(s string) string {
	return normalize(s, nil)
}

// NormalizeVenue is NormalizeText plus stripping of venue-type suffixes
// (club, bar, hall, arena, theatre, centre, venue).
func NormalizeVenue(s string) string {
	return normalize(s, venueSuffixes)
}

func normalize(s string, drop map[string]struct{}) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, w := range fields {
		if w == "and" {
			w = "&"
		}
		if _, skip := stopWords[w]; skip {
			continue
		}
		if drop != nil {
			if _, skip := drop[w]; skip {
				continue
			}
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// slugify builds the ID component form: lowercase, whitespace collapsed to
// single hyphens, everything but letters and digits stripped.
func slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "-")
}

// dedupeStrings removes duplicate entries preserving order of first
// occurrence. Used after normalization so arrays hold no duplicates.
func dedupeStrings(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// UnionStrings merges slices preserving order of first occurrence across
// inputs. The merge step uses it for artists, tags and images.
func UnionStrings(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
