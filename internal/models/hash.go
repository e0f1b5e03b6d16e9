// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// hashPayload is the canonical serialization used for content fingerprints.
// Field order is fixed, optional absence is omitted entirely (never encoded
// as null), and identity/metadata fields (id, updatedAt, seen timestamps,
// hash) are excluded so they can change without changing the fingerprint.
type hashPayload struct {
	Title          string     `json:"title"`
	Artists        []string   `json:"artists,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	DateStart      string     `json:"dateStart"`
	DateEnd        string     `json:"dateEnd,omitempty"`
	Venue          hashVenue  `json:"venue"`
	Price          *hashPrice `json:"price,omitempty"`
	AgeRestriction string     `json:"ageRestriction,omitempty"`
	Status         GigStatus  `json:"status,omitempty"`
	TicketsURL     string     `json:"ticketsUrl,omitempty"`
	EventURL       string     `json:"eventUrl,omitempty"`
	Images         []string   `json:"images,omitempty"`
}

type hashVenue struct {
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	City    string   `json:"city,omitempty"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

type hashPrice struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

// ContentHash returns the SHA-256 fingerprint of the gig's content-bearing
// fields. Two gigs with identical content hash identically regardless of
// their id, updatedAt, seen timestamps or prior hash.
//
// Returns the empty string when the record cannot be serialized (for
// example a NaN price); callers treat that as "non-hashable" and suppress
// the record rather than failing the run.
func ContentHash(g Gig) string {
	payload := hashPayload{
		Title:          g.Title,
		Artists:        g.Artists,
		Tags:           g.Tags,
		DateStart:      instant(g.DateStart),
		Venue:          hashVenue(g.Venue),
		AgeRestriction: g.AgeRestriction,
		Status:         g.Status,
		TicketsURL:     g.TicketsURL,
		EventURL:       g.EventURL,
		Images:         g.Images,
	}
	if g.DateEnd != nil {
		payload.DateEnd = instant(*g.DateEnd)
	}
	if g.Price != nil {
		p := hashPrice(*g.Price)
		payload.Price = &p
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StableID derives the catalog identifier from the identity tuple
// (venue name, title, start date, city). Byte-identical inputs always
// produce byte-identical IDs.
//
// An invalid (zero) start date contributes an empty date component; the ID
// is still non-empty as long as any other component is.
func StableID(g Gig) string {
	parts := []string{
		slugify(g.Venue.Name),
		slugify(g.Title),
		slugify(instant(g.DateStart)),
		slugify(g.Venue.City),
	}
	return strings.Trim(strings.Join(parts, "-"), "-")
}

// FuzzyKey is the tuple of normalized tokens used to bucket candidates for
// cross-source matching. It is derived on demand and never stored.
type FuzzyKey struct {
	Venue      string
	Title      string
	City       string
	DateHour   string
	MainArtist string
}

// NewFuzzyKey derives the fuzzy key for a gig. An invalid start date yields
// an empty DateHour component.
func NewFuzzyKey(g Gig) FuzzyKey {
	k := FuzzyKey{
		Venue: NormalizeVenue(g.Venue.Name),
		Title: NormalizeText(g.Title),
		City:  NormalizeText(g.Venue.City),
	}
	if !g.DateStart.IsZero() {
		k.DateHour = g.DateStart.UTC().Truncate(time.Hour).Format(time.RFC3339)
	}
	if len(g.Artists) > 0 {
		k.MainArtist = NormalizeText(g.Artists[0])
	}
	return k
}

// Digest returns the SHA-256 comparison hash of the fuzzy key tuple.
func (k FuzzyKey) Digest() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		k.Venue, k.Title, k.City, k.DateHour, k.MainArtist,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// CompositeKey regenerates an identifier for a merged record when the
// original IDs are not preserved. It hashes the normalized identity tuple
// so merge output remains stable across regenerations.
func CompositeKey(g Gig) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%s",
		NormalizeVenue(g.Venue.Name),
		NormalizeText(g.Title),
		instant(g.DateStart),
		NormalizeText(g.Venue.City),
	))
	return hex.EncodeToString(sum[:])
}

// DateDay returns the gig's UTC calendar day as YYYY-MM-DD, or "" for a
// zero start date. Used for fuzzy bucketing and same-day scoring.
func DateDay(g Gig) string {
	if g.DateStart.IsZero() {
		return ""
	}
	return g.DateStart.UTC().Format("2006-01-02")
}

// instant renders a timestamp in the canonical RFC3339 UTC form, or ""
// for the zero time so invalid dates degrade instead of corrupting keys.
func instant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
