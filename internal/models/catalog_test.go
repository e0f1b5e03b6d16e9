// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffCatalogsFirstGeneration(t *testing.T) {
	next := &Catalog{Gigs: []Gig{{ID: "a", Hash: "h1"}, {ID: "b", Hash: "h2"}}}
	diff := DiffCatalogs(nil, next)

	assert.Len(t, diff.Added, 2)
	assert.Empty(t, diff.Updated)
	assert.Empty(t, diff.Removed)
	assert.Zero(t, diff.Unchanged)
}

func TestDiffCatalogsClassification(t *testing.T) {
	previous := &Catalog{Gigs: []Gig{
		{ID: "keep", Hash: "h1"},
		{ID: "change", Hash: "h2"},
		{ID: "gone", Hash: "h3"},
	}}
	next := &Catalog{Gigs: []Gig{
		{ID: "keep", Hash: "h1"},
		{ID: "change", Hash: "h2-updated"},
		{ID: "fresh", Hash: "h4"},
	}}

	diff := DiffCatalogs(previous, next)

	assert.Equal(t, 1, diff.Unchanged)
	if assert.Len(t, diff.Updated, 1) {
		assert.Equal(t, "change", diff.Updated[0].ID)
	}
	if assert.Len(t, diff.Added, 1) {
		assert.Equal(t, "fresh", diff.Added[0].ID)
	}
	if assert.Len(t, diff.Removed, 1) {
		assert.Equal(t, "gone", diff.Removed[0].ID,
			"records absent from every source are removals at the catalog layer")
	}
}

func TestUnionStringsPreservesFirstOccurrence(t *testing.T) {
	got := UnionStrings(
		[]string{"a", "b"},
		[]string{"b", "c", "a"},
		[]string{"d"},
	)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and punctuation", "ROCK Concert!!!", "rock"},
		{"and folded to ampersand", "Salt and Vinegar", "salt & vinegar"},
		{"stop words stripped", "The Live Tour Show", ""},
		{"whitespace collapsed", "  night\t shift  ", "night shift"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestNormalizeVenueStripsSuffixes(t *testing.T) {
	assert.Equal(t, "fleece", NormalizeVenue("The Fleece Club"))
	assert.Equal(t, "madison square garden", NormalizeVenue("Madison Square Garden Arena"))
	assert.Equal(t, NormalizeVenue("O2 Academy"), NormalizeVenue("o2 academy"))
}
