// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package validation

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

// Code identifies one kind of data failure in the ingestion pipeline.
type Code string

// Failure codes raised while validating, hashing and comparing gigs.
const (
	CodeInvalidGigData       Code = "INVALID_GIG_DATA"
	CodeMissingRequiredField Code = "MISSING_REQUIRED_FIELD"
	CodeInvalidDateFormat    Code = "INVALID_DATE_FORMAT"
	CodeInvalidVenueData     Code = "INVALID_VENUE_DATA"
	CodeInvalidPriceData     Code = "INVALID_PRICE_DATA"
	CodeInvalidURLFormat     Code = "INVALID_URL_FORMAT"
	CodeHashGenerationFailed Code = "HASH_GENERATION_FAILED"
	CodeSimilarityFailed     Code = "SIMILARITY_CALCULATION_FAILED"
	CodeDataCorruption       Code = "DATA_CORRUPTION"
)

// Issue is a single validation finding for one gig.
type Issue struct {
	Code    Code   `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// InvalidGig pairs a rejected record with its findings.
type InvalidGig struct {
	Gig      models.Gig `json:"record"`
	Errors   []Issue    `json:"errors"`
	Warnings []Issue    `json:"warnings"`
}

// BatchResult is the outcome of validating a batch of gigs.
type BatchResult struct {
	Valid         []models.Gig `json:"valid"`
	Invalid       []InvalidGig `json:"invalid"`
	TotalErrors   int          `json:"totalErrors"`
	TotalWarnings int          `json:"totalWarnings"`
}

// Options tunes the sanitizer.
type Options struct {
	// AutoFix patches recoverable problems (defaults for missing fields,
	// dropped malformed URLs, upper-cased currency) and records them as
	// warnings instead of errors.
	AutoFix bool
}

// Sanitize normalizes one gig in place and reports findings. Errors mean
// the record should be dropped; warnings mean it was patched or is merely
// suspicious.
func Sanitize(g *models.Gig, opts Options) (errs []Issue, warns []Issue) {
	if strings.TrimSpace(g.Title) == "" {
		if opts.AutoFix {
			g.Title = "Untitled Event"
			warns = append(warns, Issue{CodeMissingRequiredField, "title", "title missing, defaulted"})
		} else {
			errs = append(errs, Issue{CodeMissingRequiredField, "title", "title is required"})
		}
	}

	if strings.TrimSpace(g.Venue.Name) == "" {
		errs = append(errs, Issue{CodeInvalidVenueData, "venue.name", "venue name is required"})
	}

	if g.DateStart.IsZero() {
		errs = append(errs, Issue{CodeInvalidDateFormat, "dateStart", "dateStart is required"})
	} else if g.DateEnd != nil && g.DateEnd.Before(g.DateStart) {
		if opts.AutoFix {
			g.DateEnd = nil
			warns = append(warns, Issue{CodeInvalidDateFormat, "dateEnd", "dateEnd before dateStart, cleared"})
		} else {
			errs = append(errs, Issue{CodeInvalidDateFormat, "dateEnd", "dateEnd precedes dateStart"})
		}
	}

	switch g.Status {
	case "", models.StatusScheduled, models.StatusCancelled, models.StatusPostponed:
		if g.Status == "" && opts.AutoFix {
			g.Status = models.StatusScheduled
			warns = append(warns, Issue{CodeMissingRequiredField, "status", "status missing, defaulted to scheduled"})
		}
	default:
		if opts.AutoFix {
			warns = append(warns, Issue{CodeInvalidGigData, "status", fmt.Sprintf("unknown status %q, defaulted to scheduled", g.Status)})
			g.Status = models.StatusScheduled
		} else {
			errs = append(errs, Issue{CodeInvalidGigData, "status", fmt.Sprintf("unknown status %q", g.Status)})
		}
	}

	if g.Price != nil {
		if g.Price.Currency != "" {
			cur := strings.ToUpper(strings.TrimSpace(g.Price.Currency))
			if len(cur) != 3 {
				if opts.AutoFix {
					warns = append(warns, Issue{CodeInvalidPriceData, "price.currency", fmt.Sprintf("invalid currency %q, cleared", g.Price.Currency)})
					cur = ""
				} else {
					errs = append(errs, Issue{CodeInvalidPriceData, "price.currency", fmt.Sprintf("invalid currency %q", g.Price.Currency)})
				}
			}
			g.Price.Currency = cur
		}
		if g.Price.Min != nil && g.Price.Max != nil && *g.Price.Min > *g.Price.Max {
			if opts.AutoFix {
				g.Price.Min, g.Price.Max = g.Price.Max, g.Price.Min
				warns = append(warns, Issue{CodeInvalidPriceData, "price", "min/max swapped"})
			} else {
				errs = append(errs, Issue{CodeInvalidPriceData, "price", "price min exceeds max"})
			}
		}
	}

	for _, check := range []struct {
		field string
		value *string
	}{
		{"ticketsUrl", &g.TicketsURL},
		{"eventUrl", &g.EventURL},
	} {
		if *check.value == "" {
			continue
		}
		if !validURL(*check.value) {
			if opts.AutoFix {
				warns = append(warns, Issue{CodeInvalidURLFormat, check.field, fmt.Sprintf("invalid URL %q dropped", *check.value)})
				*check.value = ""
			} else {
				errs = append(errs, Issue{CodeInvalidURLFormat, check.field, fmt.Sprintf("invalid URL %q", *check.value)})
			}
		}
	}

	images := g.Images[:0]
	for _, img := range g.Images {
		if validURL(img) {
			images = append(images, img)
			continue
		}
		if opts.AutoFix {
			warns = append(warns, Issue{CodeInvalidURLFormat, "images", fmt.Sprintf("invalid image URL %q dropped", img)})
		} else {
			errs = append(errs, Issue{CodeInvalidURLFormat, "images", fmt.Sprintf("invalid image URL %q", img)})
		}
	}
	g.Images = images

	return errs, warns
}

// ValidateBatch sanitizes and classifies a batch of gigs. Records with any
// error land in Invalid; everything else is returned sanitized in Valid.
func ValidateBatch(gigs []models.Gig, opts Options) BatchResult {
	result := BatchResult{Valid: make([]models.Gig, 0, len(gigs))}
	for _, g := range gigs {
		errs, warns := Sanitize(&g, opts)
		result.TotalErrors += len(errs)
		result.TotalWarnings += len(warns)
		if len(errs) > 0 {
			result.Invalid = append(result.Invalid, InvalidGig{Gig: g, Errors: errs, Warnings: warns})
			continue
		}
		result.Valid = append(result.Valid, g)
	}
	return result
}

// validURL accepts absolute http(s) URLs only.
func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SnapshotFreshness classifies how stale a snapshot timestamp is relative
// to a maximum age; used by the catalog generator's eligibility check.
func SnapshotFreshness(lastRun time.Time, maxAge time.Duration, now time.Time) bool {
	if lastRun.IsZero() {
		return false
	}
	return now.Sub(lastRun) <= maxAge
}
