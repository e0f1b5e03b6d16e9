// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package cache

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
)

// maxWarmCities bounds a warming pass.
const maxWarmCities = 10

const prefetchTimeout = 30 * time.Second

// schedulePrefetch queues a debounced background fetch of the next
// page, unless it is uncacheable, already cached, or already queued.
func (c *Cache[V]) schedulePrefetch(req Request) {
	next := req
	next.Page++
	if next.Page > cachedPageMax {
		return
	}
	key := next.Key()
	if c.cached(key) {
		return
	}

	c.prefetchMu.Lock()
	if c.prefetching[key] {
		c.prefetchMu.Unlock()
		return
	}
	c.prefetching[key] = true
	c.prefetchMu.Unlock()

	time.AfterFunc(c.cfg.PrefetchDelay, func() {
		defer func() {
			c.prefetchMu.Lock()
			delete(c.prefetching, key)
			c.prefetchMu.Unlock()
		}()

		// Something else may have filled it during the debounce.
		if c.cached(key) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), prefetchTimeout)
		defer cancel()

		v, err, _ := c.flight.Do(key, func() (any, error) {
			fetched, err := c.fetch(ctx, next)
			if err != nil {
				return nil, err
			}
			return fetched, nil
		})
		if err != nil {
			logging.Debug().Err(err).Str("key", key).Msg("Prefetch failed")
			return
		}
		c.store(next.Page, key, v.(V))
	})
}

// WarmCities fills pages 1-3 for each city and time-range preset,
// pacing requests with the warming delay. At most ten cities are
// warmed per call. Returns the number of entries fetched.
func (c *Cache[V]) WarmCities(ctx context.Context, cities []string) (int, error) {
	if len(cities) > maxWarmCities {
		cities = cities[:maxWarmCities]
	}

	limiter := rate.NewLimiter(rate.Every(c.cfg.WarmingDelay), 1)
	presets := []string{RangeToday, RangeWeek, RangeMonth}

	warmed := 0
	for _, city := range cities {
		for _, preset := range presets {
			for page := 1; page <= hotPageMax; page++ {
				req := Request{
					City:      city,
					Page:      page,
					Limit:     50,
					TimeRange: preset,
					SortBy:    "date",
				}
				key := req.Key()
				if c.cached(key) {
					continue
				}
				if err := limiter.Wait(ctx); err != nil {
					return warmed, err
				}

				v, err := c.fetch(ctx, req)
				if err != nil {
					logging.Warn().
						Err(err).
						Str("city", city).
						Str("time_range", preset).
						Int("page", page).
						Msg("Cache warming fetch failed")
					continue
				}
				c.store(page, key, v)
				warmed++
			}
		}
	}

	logging.Info().Int("cities", len(cities)).Int("warmed", warmed).Msg("Cache warming complete")
	return warmed, nil
}

// Serve is the cache janitor: it clears the promotion frequency map on
// the configured interval and refreshes the tier-size gauges. It
// satisfies suture.Service.
func (c *Cache[V]) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.ClearInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.freqMu.Lock()
			c.freq = make(map[string]int)
			c.freqMu.Unlock()

			metrics.CacheEntries.WithLabelValues(string(TierHot)).Set(float64(c.hot.Len()))
			metrics.CacheEntries.WithLabelValues(string(TierWarm)).Set(float64(c.warm.Len()))
		}
	}
}
