// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1mitten/gigateer-sub001/internal/cache"
	"github.com/1mitten/gigateer-sub001/internal/models"
	"github.com/1mitten/gigateer-sub001/internal/storage"
)

type fakeDoc struct {
	gigs    []models.Gig
	queries int
	fail    bool
}

func (f *fakeDoc) Query(_ context.Context, q storage.GigQuery) (*storage.QueryResult, error) {
	f.queries++
	if f.fail {
		return nil, errors.New("connection reset")
	}
	var out []models.Gig
	for _, g := range f.gigs {
		if q.City != "" && !strings.EqualFold(g.Venue.City, q.City) {
			continue
		}
		if q.From != nil && g.DateStart.Before(*q.From) {
			continue
		}
		if q.To != nil && g.DateStart.After(*q.To) {
			continue
		}
		out = append(out, g)
	}
	return &storage.QueryResult{Gigs: out, Total: len(out)}, nil
}

func (f *fakeDoc) GetGig(_ context.Context, id string) (*models.Gig, error) {
	if f.fail {
		return nil, errors.New("connection reset")
	}
	for i := range f.gigs {
		if f.gigs[i].ID == id {
			g := f.gigs[i].Clone()
			return &g, nil
		}
	}
	return nil, nil
}

type fakeCatalog struct {
	catalog *models.Catalog
	err     error
	loads   int
}

func (f *fakeCatalog) LoadCatalog(_ context.Context) (*models.Catalog, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.catalog, nil
}

func queryCacheConfig() cache.Config {
	return cache.Config{
		HotSize: 100, WarmSize: 500,
		HotTTL: 5 * time.Minute, WarmTTL: 30 * time.Minute,
		PromoteAfter: 3, FrequencyCap: 100, ClearInterval: time.Minute,
		PrefetchDelay: time.Hour, WarmingDelay: time.Millisecond,
	}
}

func queryGig(id, title, venue, city string, start time.Time, tags ...string) models.Gig {
	return models.Gig{
		ID:        id,
		Source:    "headfirst",
		Title:     title,
		Tags:      tags,
		DateStart: start,
		Venue:     models.Venue{Name: venue, City: city},
		Status:    models.StatusScheduled,
	}
}

func futureGigs(now time.Time) []models.Gig {
	return []models.Gig{
		queryGig("a", "Alpha Night", "The Fleece", "Bristol", now.Add(2*time.Hour), "rock"),
		queryGig("b", "bravo session", "Thekla", "Bristol", now.Add(4*time.Hour), "jazz"),
		queryGig("c", "Charlie Live", "The Fleece", "Bristol", now.Add(6*time.Hour), "rock"),
		queryGig("d", "Delta", "Clwb Ifor Bach", "Cardiff", now.Add(2*time.Hour)),
	}
}

func TestListRejectsUnknownTimeRangeBeforeFetch(t *testing.T) {
	doc := &fakeDoc{}
	s, err := New(doc, nil, queryCacheConfig())
	require.NoError(t, err)

	_, err = s.List(context.Background(), "Bristol", Options{TimeRange: "fortnight"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Zero(t, doc.queries, "validation happens before any fetch")
}

func TestListClampsPageAndLimit(t *testing.T) {
	now := time.Now().UTC()
	doc := &fakeDoc{gigs: futureGigs(now)}
	s, err := New(doc, nil, queryCacheConfig())
	require.NoError(t, err)

	res, err := s.List(context.Background(), "Bristol", Options{Page: 0, Limit: -3})
	require.NoError(t, err)
	assert.Len(t, res.Data, 3, "page clamps to 1, limit to the default")
	assert.Equal(t, 3, res.TotalCount)
	assert.False(t, res.HasMore)

	res, err = s.List(context.Background(), "Bristol", Options{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
	assert.True(t, res.HasMore)
}

func TestListCacheMissThenHot(t *testing.T) {
	now := time.Now().UTC()
	doc := &fakeDoc{gigs: futureGigs(now)}
	s, err := New(doc, nil, queryCacheConfig())
	require.NoError(t, err)

	res, err := s.List(context.Background(), "Bristol", Options{})
	require.NoError(t, err)
	assert.Equal(t, cache.TierMiss, res.CacheHit)

	res, err = s.List(context.Background(), "Bristol", Options{})
	require.NoError(t, err)
	assert.Equal(t, cache.TierHot, res.CacheHit)
	assert.Equal(t, 1, doc.queries, "second read served from cache")
}

func TestListFallsBackToCatalogOnStoreFailure(t *testing.T) {
	now := time.Now().UTC()
	doc := &fakeDoc{fail: true}
	cat := &fakeCatalog{catalog: &models.Catalog{Gigs: futureGigs(now)}}
	s, err := New(doc, cat, queryCacheConfig())
	require.NoError(t, err)

	res, err := s.List(context.Background(), "Bristol", Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, 1, cat.loads)
}

func TestListMapsBackendFailuresToServiceUnavailable(t *testing.T) {
	doc := &fakeDoc{fail: true}
	cat := &fakeCatalog{err: errors.New("disk gone")}
	s, err := New(doc, cat, queryCacheConfig())
	require.NoError(t, err)

	_, err = s.List(context.Background(), "Bristol", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestListFiltersInMissPath(t *testing.T) {
	now := time.Now().UTC()
	cat := &fakeCatalog{catalog: &models.Catalog{Gigs: futureGigs(now)}}
	s, err := New(nil, cat, queryCacheConfig())
	require.NoError(t, err)

	res, err := s.List(context.Background(), "Bristol", Options{
		Filters: Filters{Genres: []string{"Rock"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount, "genre filter matches tags case-insensitively")

	res, err = s.List(context.Background(), "Bristol", Options{
		Filters: Filters{Venues: []string{"thekla"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "b", res.Data[0].ID)
}

func TestListPriceFilter(t *testing.T) {
	now := time.Now().UTC()
	ten, thirty := 10.0, 30.0
	cheap := queryGig("cheap", "Cheap", "The Fleece", "Bristol", now.Add(time.Hour))
	cheap.Price = &models.Price{Min: &ten, Max: &ten}
	dear := queryGig("dear", "Dear", "The Fleece", "Bristol", now.Add(time.Hour))
	dear.Price = &models.Price{Min: &thirty, Max: &thirty}
	free := queryGig("unpriced", "Unpriced", "The Fleece", "Bristol", now.Add(time.Hour))

	cat := &fakeCatalog{catalog: &models.Catalog{Gigs: []models.Gig{cheap, dear, free}}}
	s, err := New(nil, cat, queryCacheConfig())
	require.NoError(t, err)

	max := 20.0
	res, err := s.List(context.Background(), "Bristol", Options{
		Filters: Filters{Price: &PriceRange{Max: &max}},
	})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "cheap", res.Data[0].ID)
}

func TestListSortOrders(t *testing.T) {
	now := time.Now().UTC()
	cat := &fakeCatalog{catalog: &models.Catalog{Gigs: futureGigs(now)}}
	s, err := New(nil, cat, queryCacheConfig())
	require.NoError(t, err)

	res, err := s.List(context.Background(), "Bristol", Options{SortBy: "name"})
	require.NoError(t, err)
	require.Len(t, res.Data, 3)
	assert.Equal(t, "Alpha Night", res.Data[0].Title)
	assert.Equal(t, "bravo session", res.Data[1].Title, "name sort ignores case")

	res, err = s.List(context.Background(), "Bristol", Options{SortBy: "date"})
	require.NoError(t, err)
	assert.Equal(t, "a", res.Data[0].ID)
}

func TestListTimeRangeWindow(t *testing.T) {
	now := time.Now().UTC()
	soon := queryGig("soon", "Soon", "The Fleece", "Bristol", now.Add(2*time.Hour))
	nextWeek := queryGig("next-week", "Next Week", "The Fleece", "Bristol", now.Add(5*24*time.Hour))
	cat := &fakeCatalog{catalog: &models.Catalog{Gigs: []models.Gig{soon, nextWeek}}}
	s, err := New(nil, cat, queryCacheConfig())
	require.NoError(t, err)

	res, err := s.List(context.Background(), "Bristol", Options{TimeRange: cache.RangeToday})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "soon", res.Data[0].ID)

	res, err = s.List(context.Background(), "Bristol", Options{TimeRange: cache.RangeWeek})
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
}

func TestDetailPrefersDocumentStore(t *testing.T) {
	now := time.Now().UTC()
	doc := &fakeDoc{gigs: futureGigs(now)}
	s, err := New(doc, nil, queryCacheConfig())
	require.NoError(t, err)

	g, err := s.Detail(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "Alpha Night", g.Title)

	missing, err := s.Detail(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDetailFallsBackToCatalog(t *testing.T) {
	now := time.Now().UTC()
	doc := &fakeDoc{fail: true}
	cat := &fakeCatalog{catalog: &models.Catalog{Gigs: futureGigs(now)}}
	s, err := New(doc, cat, queryCacheConfig())
	require.NoError(t, err)

	g, err := s.Detail(context.Background(), "d")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "Cardiff", g.Venue.City)
}

func TestInvalidateCityDropsCachedPages(t *testing.T) {
	now := time.Now().UTC()
	doc := &fakeDoc{gigs: futureGigs(now)}
	s, err := New(doc, nil, queryCacheConfig())
	require.NoError(t, err)

	_, err = s.List(context.Background(), "Bristol", Options{})
	require.NoError(t, err)

	removed := s.InvalidateCity("Bristol", false)
	assert.Equal(t, 1, removed)

	res, err := s.List(context.Background(), "Bristol", Options{})
	require.NoError(t, err)
	assert.Equal(t, cache.TierMiss, res.CacheHit)
}
