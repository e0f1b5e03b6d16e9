// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

func validGig() models.Gig {
	return models.Gig{
		ID:        "id-1",
		Source:    "headfirst",
		Title:     "Night Shift",
		DateStart: time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
		Venue:     models.Venue{Name: "The Fleece", City: "Bristol"},
		Status:    models.StatusScheduled,
	}
}

func TestSanitizeAutoFixDefaults(t *testing.T) {
	g := validGig()
	g.Title = "  "
	g.Status = ""

	errs, warns := Sanitize(&g, Options{AutoFix: true})

	assert.Empty(t, errs)
	assert.Len(t, warns, 2)
	assert.Equal(t, "Untitled Event", g.Title)
	assert.Equal(t, models.StatusScheduled, g.Status)
}

func TestSanitizeWithoutAutoFixRecordsErrors(t *testing.T) {
	g := validGig()
	g.Title = ""

	errs, _ := Sanitize(&g, Options{})

	require.Len(t, errs, 1)
	assert.Equal(t, CodeMissingRequiredField, errs[0].Code)
	assert.Equal(t, "", g.Title, "no mutation without autofix")
}

func TestSanitizeCurrencyUppercased(t *testing.T) {
	g := validGig()
	min := 12.5
	g.Price = &models.Price{Min: &min, Currency: "gbp"}

	errs, warns := Sanitize(&g, Options{AutoFix: true})

	assert.Empty(t, errs)
	assert.Empty(t, warns)
	assert.Equal(t, "GBP", g.Price.Currency)
}

func TestSanitizeInvalidURLDropped(t *testing.T) {
	g := validGig()
	g.TicketsURL = "not a url"
	g.Images = []string{"https://cdn.example.com/a.jpg", "::bogus::"}

	errs, warns := Sanitize(&g, Options{AutoFix: true})

	assert.Empty(t, errs)
	assert.Len(t, warns, 2)
	assert.Empty(t, g.TicketsURL)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, g.Images)
}

func TestSanitizeDateEndBeforeStart(t *testing.T) {
	g := validGig()
	end := g.DateStart.Add(-2 * time.Hour)
	g.DateEnd = &end

	errs, _ := Sanitize(&g, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeInvalidDateFormat, errs[0].Code)

	g2 := validGig()
	end2 := g2.DateStart.Add(-2 * time.Hour)
	g2.DateEnd = &end2
	_, warns := Sanitize(&g2, Options{AutoFix: true})
	assert.Len(t, warns, 1)
	assert.Nil(t, g2.DateEnd)
}

func TestValidateBatchPartitions(t *testing.T) {
	good := validGig()
	bad := validGig()
	bad.Venue.Name = ""

	result := ValidateBatch([]models.Gig{good, bad}, Options{AutoFix: true})

	assert.Len(t, result.Valid, 1)
	require.Len(t, result.Invalid, 1)
	assert.Equal(t, CodeInvalidVenueData, result.Invalid[0].Errors[0].Code)
	assert.Equal(t, 1, result.TotalErrors)
}

func TestValidateStructTags(t *testing.T) {
	g := validGig()
	g.TicketsURL = "https://tickets.example.com/123"
	require.NoError(t, ValidateStruct(&g))

	g.Source = ""
	err := ValidateStruct(&g)
	require.Error(t, err)
	var serr *StructError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Source", serr.Fields[0].Field)
}
