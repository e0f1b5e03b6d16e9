// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package scraper defines the uniform plugin contract every upstream data
// source implements, and the registry the scheduler drives them through.
//
// A plugin fetches opaque raw records from its upstream and normalizes them
// into canonical gigs. Site-specific selector configuration and the
// headless-browser driver live outside this module; plugins here only see
// the fetch+normalize contract.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

// Typed upstream failures. Workers translate these into backoff and run
// severity; anything else is treated as a network failure.
var (
	// ErrNetwork indicates the upstream could not be reached.
	ErrNetwork = errors.New("upstream network failure")

	// ErrRateLimited indicates the upstream rejected us for request volume.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrParse indicates the upstream responded with unparseable content.
	ErrParse = errors.New("upstream parse failure")
)

// NetworkError wraps err as an ErrNetwork.
func NetworkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// RateLimitedError wraps err as an ErrRateLimited.
func RateLimitedError(err error) error {
	return fmt.Errorf("%w: %w", ErrRateLimited, err)
}

// ParseError wraps err as an ErrParse.
func ParseError(err error) error {
	return fmt.Errorf("%w: %w", ErrParse, err)
}

// RawRecord is one opaque upstream record, persisted as fetched for
// debugging and replay.
type RawRecord []byte

// Meta describes a plugin to the scheduler and rate limiter.
type Meta struct {
	// Name is the unique source tag stamped on every normalized gig.
	Name string `json:"name"`

	// RateLimitPerMin is the upstream request budget.
	RateLimitPerMin int `json:"rateLimitPerMin"`

	// DefaultSchedule is a 5-field cron expression. Empty falls back to
	// the scheduler's default.
	DefaultSchedule string `json:"defaultSchedule"`
}

// Plugin is the uniform contract between the ingestion worker and one
// upstream source.
//
// FetchRaw may fail with ErrNetwork, ErrRateLimited or ErrParse (wrapped).
// Normalize must enforce the gig schema and set Source on every record;
// the worker derives IDs and hashes for records the plugin leaves blank.
type Plugin interface {
	Meta() Meta
	FetchRaw(ctx context.Context) ([]RawRecord, error)
	Normalize(ctx context.Context, raw []RawRecord) ([]models.Gig, error)
}

// Cleaner is implemented by plugins holding resources that outlive a run
// (browser handles, connection pools). The registry closes them on
// shutdown.
type Cleaner interface {
	Cleanup() error
}

// Registry holds the enabled plugin set keyed by source name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin. Duplicate source names are a programming error.
func (r *Registry) Register(p Plugin) error {
	name := p.Meta().Name
	if name == "" {
		return fmt.Errorf("plugin has empty source name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[name]; ok {
		return fmt.Errorf("plugin %q already registered", name)
	}
	r.plugins[name] = p
	return nil
}

// Get returns the plugin for a source.
func (r *Registry) Get(source string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[source]
	return p, ok
}

// Sources lists registered source names, sorted for deterministic
// scheduling order.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close runs Cleanup on every plugin that has one, returning the first
// error encountered.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for name, p := range r.plugins {
		if c, ok := p.(Cleaner); ok {
			if err := c.Cleanup(); err != nil && first == nil {
				first = fmt.Errorf("cleanup %s: %w", name, err)
			}
		}
	}
	return first
}
