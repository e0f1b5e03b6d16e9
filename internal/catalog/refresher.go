// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package catalog

import (
	"context"
	"time"

	"github.com/1mitten/gigateer-sub001/internal/logging"
)

// defaultRefreshInterval drives catalog regeneration between scheduled
// ingestion runs.
const defaultRefreshInterval = time.Hour

// Refresher regenerates the catalog on a fixed interval. It satisfies
// suture.Service, so a failed generation is logged and retried on the
// next tick rather than crashing the daemon.
type Refresher struct {
	gen      *Generator
	opts     Options
	interval time.Duration

	// OnGenerate observes each successful generation (cache
	// invalidation, stats). Optional.
	OnGenerate func(*Result)
}

// NewRefresher builds a refresher. interval <= 0 uses the default hour.
func NewRefresher(gen *Generator, opts Options, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Refresher{gen: gen, opts: opts, interval: interval}
}

// Serve regenerates immediately, then on every interval until ctx is
// cancelled.
func (r *Refresher) Serve(ctx context.Context) error {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	result, err := r.gen.Generate(ctx, r.opts)
	if err != nil {
		logging.Error().Err(err).Msg("Scheduled catalog refresh failed")
		return
	}

	logging.Info().
		Int("gigs", len(result.Catalog.Gigs)).
		Int("added", len(result.Diff.Added)).
		Int("updated", len(result.Diff.Updated)).
		Int("removed", len(result.Diff.Removed)).
		Msg("Catalog refreshed")

	if r.OnGenerate != nil {
		r.OnGenerate(result)
	}
}
