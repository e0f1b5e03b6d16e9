// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package models defines the canonical Gig record shared by every layer of
// the ingestion pipeline, plus the content hashing and key derivation that
// change detection and deduplication are built on.
package models

import (
	"time"
)

// GigStatus is the lifecycle status reported by the upstream source.
type GigStatus string

const (
	StatusScheduled GigStatus = "scheduled"
	StatusCancelled GigStatus = "cancelled"
	StatusPostponed GigStatus = "postponed"
)

// Venue describes where a gig takes place. Only the name is required;
// everything else is best-effort from the upstream source.
type Venue struct {
	Name    string   `json:"name" validate:"required"`
	Address string   `json:"address,omitempty"`
	City    string   `json:"city,omitempty"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng     *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
}

// Price is the advertised ticket price range. All fields are optional;
// Currency is normalized to an uppercase ISO 4217 code when present.
type Price struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Currency string   `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
}

// Gig is the canonical event record produced by normalization and carried
// through snapshots, deduplication and the catalog.
//
// ID is derived from (venue name, title, start date, city) and is stable
// across ingestions for identical inputs. Hash fingerprints only the
// content-bearing fields; see ContentHash.
type Gig struct {
	ID       string `json:"id" validate:"required"`
	Source   string `json:"source" validate:"required"`
	SourceID string `json:"sourceId,omitempty"`

	Title   string   `json:"title" validate:"required"`
	Artists []string `json:"artists,omitempty"`
	Tags    []string `json:"tags,omitempty"`

	DateStart time.Time  `json:"dateStart" validate:"required"`
	DateEnd   *time.Time `json:"dateEnd,omitempty"`
	Timezone  string     `json:"timezone,omitempty" validate:"omitempty,timezone"`

	Venue Venue  `json:"venue"`
	Price *Price `json:"price,omitempty"`

	AgeRestriction string    `json:"ageRestriction,omitempty"`
	Status         GigStatus `json:"status,omitempty" validate:"omitempty,oneof=scheduled cancelled postponed"`
	TicketsURL     string    `json:"ticketsUrl,omitempty" validate:"omitempty,url"`
	EventURL       string    `json:"eventUrl,omitempty" validate:"omitempty,url"`
	Images         []string  `json:"images,omitempty" validate:"omitempty,dive,url"`

	UpdatedAt   time.Time  `json:"updatedAt"`
	FirstSeenAt *time.Time `json:"firstSeenAt,omitempty"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
	Hash        string     `json:"hash,omitempty"`

	// Change markers set by the change detector; cleared on the next run.
	IsNew     bool `json:"isNew,omitempty"`
	IsUpdated bool `json:"isUpdated,omitempty"`
}

// Clone returns a deep copy of the gig. Slices and pointer fields are
// duplicated so callers can mutate the copy freely.
func (g Gig) Clone() Gig {
	out := g
	out.Artists = append([]string(nil), g.Artists...)
	out.Tags = append([]string(nil), g.Tags...)
	out.Images = append([]string(nil), g.Images...)
	if g.DateEnd != nil {
		end := *g.DateEnd
		out.DateEnd = &end
	}
	if g.FirstSeenAt != nil {
		t := *g.FirstSeenAt
		out.FirstSeenAt = &t
	}
	if g.LastSeenAt != nil {
		t := *g.LastSeenAt
		out.LastSeenAt = &t
	}
	if g.Venue.Lat != nil {
		v := *g.Venue.Lat
		out.Venue.Lat = &v
	}
	if g.Venue.Lng != nil {
		v := *g.Venue.Lng
		out.Venue.Lng = &v
	}
	if g.Price != nil {
		p := *g.Price
		if g.Price.Min != nil {
			m := *g.Price.Min
			p.Min = &m
		}
		if g.Price.Max != nil {
			m := *g.Price.Max
			p.Max = &m
		}
		out.Price = &p
	}
	return out
}

// SameDay reports whether two gigs start on the same UTC calendar day.
func SameDay(a, b Gig) bool {
	ay, am, ad := a.DateStart.UTC().Date()
	by, bm, bd := b.DateStart.UTC().Date()
	return ay == by && am == bm && ad == bd
}
