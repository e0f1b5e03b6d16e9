// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package query is the read surface consumed by the HTTP shell:
// paginated, filtered, sorted list reads and ID lookups, served
// through the tiered cache with the document store preferred and the
// file catalog as fallback.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1mitten/gigateer-sub001/internal/cache"
	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/models"
	"github.com/1mitten/gigateer-sub001/internal/storage"
)

// Limit bounds per the query contract.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

var (
	// ErrInvalidQuery marks caller errors, reported unchanged to the
	// shell.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrServiceUnavailable is the single signal every backend failure
	// maps to.
	ErrServiceUnavailable = errors.New("query backend unavailable")
)

// PriceRange filters by price overlap.
type PriceRange struct {
	Min *float64
	Max *float64
}

// Filters narrow a list read inside the miss path.
type Filters struct {
	Genres []string
	Venues []string
	Price  *PriceRange
}

// Options tunes one list read. Zero values take the documented
// defaults; page and limit are clamped rather than rejected.
type Options struct {
	Page      int
	Limit     int
	TimeRange string // today, week, month, all (default)
	SortBy    string // date (default), name, venue
	Filters   Filters
}

// ListResult is one page of the list read.
type ListResult struct {
	Data       []models.Gig `json:"data"`
	TotalCount int          `json:"totalCount"`
	HasMore    bool         `json:"hasMore"`
	CacheHit   cache.Tier   `json:"cacheHit"`
}

// Page is the cached unit: one page plus the match total.
type Page struct {
	Data  []models.Gig
	Total int
}

// DocumentStore is the preferred backend.
type DocumentStore interface {
	Query(ctx context.Context, q storage.GigQuery) (*storage.QueryResult, error)
	GetGig(ctx context.Context, id string) (*models.Gig, error)
}

// CatalogReader is the file-backed fallback.
type CatalogReader interface {
	LoadCatalog(ctx context.Context) (*models.Catalog, error)
}

// Service answers list and detail reads. Either backend may be nil
// when disabled, but not both.
type Service struct {
	doc     DocumentStore
	catalog CatalogReader
	cache   *cache.Cache[*Page]

	now func() time.Time
}

// New builds the query service and its tiered cache.
func New(doc DocumentStore, catalog CatalogReader, cacheCfg cache.Config) (*Service, error) {
	if doc == nil && catalog == nil {
		return nil, errors.New("query service needs at least one backend")
	}
	s := &Service{doc: doc, catalog: catalog, now: time.Now}
	s.cache = cache.New(cacheCfg, s.fetchPage)
	return s, nil
}

// Cache exposes the underlying tiered cache for warming, invalidation
// and the janitor.
func (s *Service) Cache() *cache.Cache[*Page] { return s.cache }

// CacheStats returns current cache counters.
func (s *Service) CacheStats() cache.Stats { return s.cache.Stats() }

// InvalidateCity drops the city's cached pages; partial keeps warm.
func (s *Service) InvalidateCity(city string, partial bool) int {
	return s.cache.InvalidateCity(city, partial)
}

// List serves one page of a city's gigs. Invalid time ranges fail
// before any fetch; page and limit are clamped.
func (s *Service) List(ctx context.Context, city string, opts Options) (*ListResult, error) {
	opts = clampOptions(opts)
	if _, ok := cache.TimeRangeHours(opts.TimeRange); !ok {
		return nil, fmt.Errorf("%w: unknown time range %q", ErrInvalidQuery, opts.TimeRange)
	}

	req := cache.Request{
		City:      city,
		Page:      opts.Page,
		Limit:     opts.Limit,
		TimeRange: opts.TimeRange,
		SortBy:    opts.SortBy,
		Genres:    opts.Filters.Genres,
		Venues:    opts.Filters.Venues,
	}
	if opts.Filters.Price != nil {
		req.PriceMin = opts.Filters.Price.Min
		req.PriceMax = opts.Filters.Price.Max
	}

	p, tier, err := s.cache.Get(ctx, req)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Data:       p.Data,
		TotalCount: p.Total,
		HasMore:    opts.Page*opts.Limit < p.Total,
		CacheHit:   tier,
	}, nil
}

// Detail returns the record for an ID, or nil when absent.
func (s *Service) Detail(ctx context.Context, id string) (*models.Gig, error) {
	if s.doc != nil {
		g, err := s.doc.GetGig(ctx, id)
		if err == nil {
			return g, nil
		}
		logging.Warn().Err(err).Msg("Document store lookup failed, falling back to catalog")
	}

	if s.catalog == nil {
		return nil, ErrServiceUnavailable
	}
	cat, err := s.catalog.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if cat == nil {
		return nil, nil
	}
	for i := range cat.Gigs {
		if cat.Gigs[i].ID == id {
			g := cat.Gigs[i].Clone()
			return &g, nil
		}
	}
	return nil, nil
}

// fetchPage is the cache miss path: load the city's window from a
// backend, filter, sort and slice the requested page.
func (s *Service) fetchPage(ctx context.Context, req cache.Request) (*Page, error) {
	from := s.now().UTC()
	hours, _ := cache.TimeRangeHours(req.TimeRange)
	to := from.Add(time.Duration(hours) * time.Hour)

	gigs, err := s.loadWindow(ctx, req.City, from, to)
	if err != nil {
		return nil, err
	}

	gigs = applyFilters(gigs, req)
	sortGigs(gigs, req.SortBy)

	total := len(gigs)
	offset := (req.Page - 1) * req.Limit
	if offset > total {
		offset = total
	}
	end := offset + req.Limit
	if end > total {
		end = total
	}

	return &Page{Data: gigs[offset:end], Total: total}, nil
}

func (s *Service) loadWindow(ctx context.Context, city string, from, to time.Time) ([]models.Gig, error) {
	if s.doc != nil {
		res, err := s.doc.Query(ctx, storage.GigQuery{
			City:  city,
			From:  &from,
			To:    &to,
			Limit: 10000,
		})
		if err == nil {
			return res.Gigs, nil
		}
		logging.Warn().Err(err).Str("city", city).Msg("Document store query failed, falling back to catalog")
	}

	if s.catalog == nil {
		return nil, ErrServiceUnavailable
	}
	cat, err := s.catalog.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if cat == nil {
		return nil, nil
	}

	var gigs []models.Gig
	for _, g := range cat.Gigs {
		if !strings.EqualFold(g.Venue.City, city) {
			continue
		}
		if g.DateStart.Before(from) || g.DateStart.After(to) {
			continue
		}
		gigs = append(gigs, g.Clone())
	}
	return gigs, nil
}

func clampOptions(opts Options) Options {
	if opts.Page < 1 {
		opts.Page = 1
	}
	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultLimit
	case opts.Limit > MaxLimit:
		opts.Limit = MaxLimit
	}
	if opts.TimeRange == "" {
		opts.TimeRange = cache.RangeAll
	}
	if opts.SortBy == "" {
		opts.SortBy = "date"
	}
	return opts
}

func applyFilters(gigs []models.Gig, req cache.Request) []models.Gig {
	if len(req.Genres) == 0 && len(req.Venues) == 0 && req.PriceMin == nil && req.PriceMax == nil {
		return gigs
	}

	out := gigs[:0:0]
	for _, g := range gigs {
		if len(req.Genres) > 0 && !containsAnyFold(g.Tags, req.Genres) {
			continue
		}
		if len(req.Venues) > 0 && !containsFold(req.Venues, g.Venue.Name) {
			continue
		}
		if !priceMatches(g.Price, req.PriceMin, req.PriceMax) {
			continue
		}
		out = append(out, g)
	}
	return out
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func containsAnyFold(values, wanted []string) bool {
	for _, w := range wanted {
		if containsFold(values, w) {
			return true
		}
	}
	return false
}

// priceMatches checks overlap between the record's price span and the
// requested bounds. Records without price data pass only when no
// bounds are set.
func priceMatches(p *models.Price, min, max *float64) bool {
	if min == nil && max == nil {
		return true
	}
	if p == nil {
		return false
	}

	low := p.Min
	if low == nil {
		low = p.Max
	}
	high := p.Max
	if high == nil {
		high = p.Min
	}
	if low == nil {
		return false
	}

	if min != nil && *high < *min {
		return false
	}
	if max != nil && *low > *max {
		return false
	}
	return true
}

func sortGigs(gigs []models.Gig, sortBy string) {
	switch sortBy {
	case "name":
		sort.SliceStable(gigs, func(i, j int) bool {
			return strings.ToLower(gigs[i].Title) < strings.ToLower(gigs[j].Title)
		})
	case "venue":
		sort.SliceStable(gigs, func(i, j int) bool {
			return strings.ToLower(gigs[i].Venue.Name) < strings.ToLower(gigs[j].Venue.Name)
		})
	default:
		sort.SliceStable(gigs, func(i, j int) bool {
			if !gigs[i].DateStart.Equal(gigs[j].DateStart) {
				return gigs[i].DateStart.Before(gigs[j].DateStart)
			}
			return gigs[i].ID < gigs[j].ID
		})
	}
}
