// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
)

// Tier labels where a read was served from.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierMiss Tier = "miss"
)

// Page placement: 1-3 live in hot, 4-10 in warm, beyond 10 uncached.
const (
	hotPageMax    = 3
	cachedPageMax = 10
)

// FetchFunc loads a value on cache miss. It runs at most once per key
// across concurrent callers.
type FetchFunc[V any] func(ctx context.Context, req Request) (V, error)

// Config sizes the two tiers and the promotion machinery.
type Config struct {
	HotSize int
	HotTTL  time.Duration

	WarmSize int
	WarmTTL  time.Duration

	// PromoteAfter is the warm-hit count above which an entry moves to
	// hot.
	PromoteAfter int

	// FrequencyCap bounds the promotion-tracking map; exceeding it
	// resets the map.
	FrequencyCap int

	// ClearInterval is the janitor period that clears the frequency map.
	ClearInterval time.Duration

	// PrefetchDelay debounces background next-page fetches.
	PrefetchDelay time.Duration

	// WarmingDelay paces WarmCities requests.
	WarmingDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.HotSize <= 0 {
		c.HotSize = 100
	}
	if c.HotTTL <= 0 {
		c.HotTTL = 5 * time.Minute
	}
	if c.WarmSize <= 0 {
		c.WarmSize = 500
	}
	if c.WarmTTL <= 0 {
		c.WarmTTL = 30 * time.Minute
	}
	if c.PromoteAfter <= 0 {
		c.PromoteAfter = 3
	}
	if c.FrequencyCap <= 0 {
		c.FrequencyCap = 10000
	}
	if c.ClearInterval <= 0 {
		c.ClearInterval = 30 * time.Minute
	}
	if c.PrefetchDelay <= 0 {
		c.PrefetchDelay = 100 * time.Millisecond
	}
	if c.WarmingDelay <= 0 {
		c.WarmingDelay = 50 * time.Millisecond
	}
	return c
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	HitsHot  uint64 `json:"hitsHot"`
	HitsWarm uint64 `json:"hitsWarm"`
	Misses   uint64 `json:"misses"`

	HotEntries  int `json:"hotEntries"`
	WarmEntries int `json:"warmEntries"`
}

// Cache is the two-tier LRU. All methods are safe for concurrent use.
type Cache[V any] struct {
	cfg   Config
	fetch FetchFunc[V]

	hot  *expirable.LRU[string, V]
	warm *expirable.LRU[string, V]

	flight singleflight.Group

	// freq tracks warm-tier access counts for promotion. Bounded by
	// FrequencyCap and cleared by the janitor.
	freqMu sync.Mutex
	freq   map[string]int

	// prefetching dedupes scheduled background fetches per key.
	prefetchMu  sync.Mutex
	prefetching map[string]bool

	hitsHot  atomic.Uint64
	hitsWarm atomic.Uint64
	misses   atomic.Uint64
}

// New builds a tiered cache around the given miss-path fetcher.
func New[V any](cfg Config, fetch FetchFunc[V]) *Cache[V] {
	cfg = cfg.withDefaults()
	return &Cache[V]{
		cfg:         cfg,
		fetch:       fetch,
		hot:         expirable.NewLRU[string, V](cfg.HotSize, nil, cfg.HotTTL),
		warm:        expirable.NewLRU[string, V](cfg.WarmSize, nil, cfg.WarmTTL),
		freq:        make(map[string]int),
		prefetching: make(map[string]bool),
	}
}

// Get serves a request through the tiers. Pages beyond the cacheable
// window bypass the cache entirely. On a miss the fetch runs under a
// single-flight guard so concurrent misses coalesce, and the page N+1
// prefetch is scheduled after a hit or a successful fetch.
func (c *Cache[V]) Get(ctx context.Context, req Request) (V, Tier, error) {
	if req.Page > cachedPageMax {
		var zero V
		v, err := c.fetch(ctx, req)
		if err != nil {
			return zero, TierMiss, err
		}
		return v, TierMiss, nil
	}

	key := req.Key()

	if v, ok := c.hot.Get(key); ok {
		c.hitsHot.Add(1)
		metrics.CacheHits.WithLabelValues(string(TierHot)).Inc()
		c.schedulePrefetch(req)
		return v, TierHot, nil
	}

	if v, ok := c.warm.Get(key); ok {
		c.hitsWarm.Add(1)
		metrics.CacheHits.WithLabelValues(string(TierWarm)).Inc()
		c.notePromotion(key, v)
		c.schedulePrefetch(req)
		return v, TierWarm, nil
	}

	c.misses.Add(1)
	metrics.CacheMisses.Inc()

	v, err, _ := c.flight.Do(key, func() (any, error) {
		fetched, err := c.fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		c.store(req.Page, key, fetched)
		return fetched, nil
	})
	if err != nil {
		var zero V
		return zero, TierMiss, err
	}

	c.schedulePrefetch(req)
	return v.(V), TierMiss, nil
}

// store places a fetched value in the tier its page belongs to.
func (c *Cache[V]) store(page int, key string, v V) {
	if page <= hotPageMax {
		c.hot.Add(key, v)
	} else {
		c.warm.Add(key, v)
	}
}

// notePromotion counts a warm hit and moves the entry to hot once it
// crosses the threshold.
func (c *Cache[V]) notePromotion(key string, v V) {
	c.freqMu.Lock()
	if len(c.freq) >= c.cfg.FrequencyCap {
		c.freq = make(map[string]int)
	}
	c.freq[key]++
	promote := c.freq[key] > c.cfg.PromoteAfter
	if promote {
		delete(c.freq, key)
	}
	c.freqMu.Unlock()

	if promote {
		c.warm.Remove(key)
		c.hot.Add(key, v)
		metrics.CachePromotions.Inc()
	}
}

// InvalidateCity drops cached entries for a city. partial leaves the
// warm tier intact.
func (c *Cache[V]) InvalidateCity(city string, partial bool) int {
	prefix := cityPrefix(city)
	removed := removeByPrefix(c.hot, prefix)
	if !partial {
		removed += removeByPrefix(c.warm, prefix)
	}
	logging.Debug().
		Str("city", city).
		Bool("partial", partial).
		Int("removed", removed).
		Msg("Cache invalidated")
	return removed
}

func removeByPrefix[V any](lru *expirable.LRU[string, V], prefix string) int {
	removed := 0
	for _, key := range lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Purge empties both tiers and the frequency map.
func (c *Cache[V]) Purge() {
	c.hot.Purge()
	c.warm.Purge()
	c.freqMu.Lock()
	c.freq = make(map[string]int)
	c.freqMu.Unlock()
}

// Stats returns current counters and tier sizes.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		HitsHot:     c.hitsHot.Load(),
		HitsWarm:    c.hitsWarm.Load(),
		Misses:      c.misses.Load(),
		HotEntries:  c.hot.Len(),
		WarmEntries: c.warm.Len(),
	}
}

// cached reports whether a key is present in either tier.
func (c *Cache[V]) cached(key string) bool {
	return c.hot.Contains(key) || c.warm.Contains(key)
}
