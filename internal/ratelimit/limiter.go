// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package ratelimit implements the per-source request limiter used by
// ingestion workers: a rolling one-minute admission window combined with
// exponential backoff driven by upstream success and failure signals.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/1mitten/gigateer-sub001/internal/metrics"
)

const (
	// Window is the rolling admission window.
	Window = time.Minute

	// DefaultMultiplier doubles the backoff on each failure.
	DefaultMultiplier = 2.0

	// DefaultMaxBackoff caps the backoff delay.
	DefaultMaxBackoff = 60 * time.Second

	// minBackoff is the smallest non-zero backoff applied after a failure.
	minBackoff = time.Second
)

// Limiter admits at most a configured number of requests per rolling
// minute for one source. State is mutated only by that source's worker, so
// the mutex guards against status readers, not competing admitters.
type Limiter struct {
	mu sync.Mutex

	rpm   int
	burst int

	// window holds admission timestamps within the last minute.
	window []time.Time

	backoff    time.Duration
	multiplier float64
	maxBackoff time.Duration

	source string

	// now is swappable for tests.
	now func() time.Time

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Status is a point-in-time view of the limiter.
type Status struct {
	RecentRequests    int           `json:"recentRequests"`
	RemainingRequests int           `json:"remainingRequests"`
	BackoffDelay      time.Duration `json:"backoffDelay"`
	Throttled         bool          `json:"throttled"`
}

// New creates a limiter for one source. burst caps the in-window admissions
// and defaults to rpm when zero or negative.
func New(source string, rpm, burst int) *Limiter {
	if rpm <= 0 {
		rpm = 1
	}
	if burst <= 0 || burst > rpm {
		burst = rpm
	}
	return &Limiter{
		rpm:        rpm,
		burst:      burst,
		multiplier: DefaultMultiplier,
		maxBackoff: DefaultMaxBackoff,
		source:     source,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Wait blocks until the caller may issue a request: the rolling window has
// room and any pending backoff delay has elapsed. Returns the context error
// when cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.prune(l.now())

		if len(l.window) < l.burst {
			delay := l.backoff
			l.mu.Unlock()

			if delay > 0 {
				if err := l.sleep(ctx, delay); err != nil {
					return err
				}
			}

			l.mu.Lock()
			// Re-check after the backoff sleep; the window may have refilled
			// while we slept (status readers never admit, but belt and braces
			// keeps the invariant local).
			l.prune(l.now())
			if len(l.window) < l.burst {
				l.window = append(l.window, l.now())
				l.mu.Unlock()
				return nil
			}
			l.mu.Unlock()
			continue
		}

		// Window full: wait until the oldest admission leaves it.
		wait := l.window[0].Add(Window).Sub(l.now())
		l.mu.Unlock()

		metrics.RateLimitWaits.WithLabelValues(l.source).Inc()
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Success signals a successful upstream request: the backoff is halved,
// flooring at zero.
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff /= 2
	if l.backoff < minBackoff {
		l.backoff = 0
	}
	metrics.RateLimitBackoff.WithLabelValues(l.source).Set(l.backoff.Seconds())
}

// Failure signals a failed upstream request: the backoff grows to
// min(maxBackoff, max(1s, backoff × multiplier)). The next admission
// sleeps the resulting delay before proceeding.
func (l *Limiter) Failure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := time.Duration(float64(l.backoff) * l.multiplier)
	if next < minBackoff {
		next = minBackoff
	}
	if next > l.maxBackoff {
		next = l.maxBackoff
	}
	l.backoff = next
	metrics.RateLimitBackoff.WithLabelValues(l.source).Set(l.backoff.Seconds())
}

// Status reports the current window occupancy and backoff.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	remaining := l.burst - len(l.window)
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		RecentRequests:    len(l.window),
		RemainingRequests: remaining,
		BackoffDelay:      l.backoff,
		Throttled:         remaining == 0 || l.backoff > 0,
	}
}

// prune drops window entries older than one minute. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
