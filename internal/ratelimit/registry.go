// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package ratelimit

import "sync"

// Registry owns one limiter per source. It is created explicitly at
// startup and torn down with the daemon; no package-level state.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

// NewRegistry creates an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// Get returns the limiter for a source, creating it with the given
// parameters on first use. Later calls ignore rpm/burst so a source's
// window survives across runs.
func (r *Registry) Get(source string, rpm, burst int) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[source]; ok {
		return l
	}
	l := New(source, rpm, burst)
	r.limiters[source] = l
	return l
}

// Status returns the status of every registered limiter.
func (r *Registry) Status() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Status, len(r.limiters))
	for source, l := range r.limiters {
		out[source] = l.Status()
	}
	return out
}

// Reset removes a source's limiter, discarding its window and backoff.
func (r *Registry) Reset(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, source)
}
