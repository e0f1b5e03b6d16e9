// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package ingest

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
	"github.com/1mitten/gigateer-sub001/internal/scraper"
)

// breakerPlugin wraps a scraper plugin's FetchRaw with a circuit breaker
// so a flapping upstream stops consuming its rate budget while open.
//
// The breaker uses real time for its interval and timeout; that governs
// recovery timing, not data integrity, so tests exercise the wrapped
// plugin directly.
type breakerPlugin struct {
	scraper.Plugin
	cb   *gobreaker.CircuitBreaker[[]scraper.RawRecord]
	name string
}

// withBreaker wraps a plugin. Configuration: 3 half-open probes, 1 minute
// closed-state window, 2 minute open timeout, trips at a 60% failure rate
// over at least 5 requests.
func withBreaker(p scraper.Plugin) scraper.Plugin {
	name := p.Meta().Name
	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]scraper.RawRecord](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &breakerPlugin{Plugin: p, cb: cb, name: name}
}

// FetchRaw executes the underlying fetch through the breaker. An open
// circuit surfaces as a rate-limited upstream so the worker applies
// backoff rather than hammering a failing source.
func (b *breakerPlugin) FetchRaw(ctx context.Context) ([]scraper.RawRecord, error) {
	raw, err := b.cb.Execute(func() ([]scraper.RawRecord, error) {
		return b.Plugin.FetchRaw(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.BreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, scraper.RateLimitedError(err)
		}
		metrics.BreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}
	metrics.BreakerRequests.WithLabelValues(b.name, "success").Inc()
	return raw, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
