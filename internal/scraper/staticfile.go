// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

// StaticFilePlugin ingests gigs from a directory of JSON fixture files.
// It exists so the daemon runs end-to-end without a headless-browser
// driver: drop `<anything>.json` files containing arrays of gig documents
// into the directory and they are picked up on the next run.
type StaticFilePlugin struct {
	name     string
	dir      string
	schedule string
}

// NewStaticFilePlugin creates a fixture-directory plugin.
func NewStaticFilePlugin(name, dir, schedule string) *StaticFilePlugin {
	return &StaticFilePlugin{name: name, dir: dir, schedule: schedule}
}

// Meta implements Plugin.
func (p *StaticFilePlugin) Meta() Meta {
	return Meta{
		Name:            p.name,
		RateLimitPerMin: 60, // local filesystem, effectively unthrottled
		DefaultSchedule: p.schedule,
	}
}

// FetchRaw implements Plugin. Each fixture file becomes one raw record.
func (p *StaticFilePlugin) FetchRaw(ctx context.Context) ([]RawRecord, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, NetworkError(fmt.Errorf("read fixture dir %s: %w", p.dir, err))
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	raw := make([]RawRecord, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(p.dir, name))
		if err != nil {
			return nil, NetworkError(fmt.Errorf("read fixture %s: %w", name, err))
		}
		raw = append(raw, RawRecord(data))
	}
	return raw, nil
}

// Normalize implements Plugin. Fixture files hold arrays of gig documents;
// the plugin stamps the source and leaves id/hash derivation to the worker.
func (p *StaticFilePlugin) Normalize(_ context.Context, raw []RawRecord) ([]models.Gig, error) {
	var out []models.Gig
	for i, record := range raw {
		var gigs []models.Gig
		if err := json.Unmarshal(record, &gigs); err != nil {
			return nil, ParseError(fmt.Errorf("fixture record %d: %w", i, err))
		}
		for _, g := range gigs {
			g.Source = p.name
			out = append(out, g)
		}
	}
	return out, nil
}
