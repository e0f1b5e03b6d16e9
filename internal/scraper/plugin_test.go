// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

type stubPlugin struct {
	name       string
	cleanups   int
	cleanupErr error
}

func (p *stubPlugin) Meta() Meta { return Meta{Name: p.name} }

func (p *stubPlugin) FetchRaw(context.Context) ([]RawRecord, error) { return nil, nil }

func (p *stubPlugin) Normalize(context.Context, []RawRecord) ([]models.Gig, error) {
	return nil, nil
}

func (p *stubPlugin) Cleanup() error {
	p.cleanups++
	return p.cleanupErr
}

func TestRegistryRejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubPlugin{name: "headfirst"}))
	assert.Error(t, r.Register(&stubPlugin{name: "headfirst"}))
	assert.Error(t, r.Register(&stubPlugin{name: ""}))
}

func TestRegistrySourcesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubPlugin{name: "songkick"}))
	require.NoError(t, r.Register(&stubPlugin{name: "headfirst"}))

	assert.Equal(t, []string{"headfirst", "songkick"}, r.Sources())

	p, ok := r.Get("headfirst")
	require.True(t, ok)
	assert.Equal(t, "headfirst", p.Meta().Name)
	_, ok = r.Get("unknown")
	assert.False(t, ok)
}

func TestRegistryCloseRunsCleaners(t *testing.T) {
	r := NewRegistry()
	ok := &stubPlugin{name: "a"}
	broken := &stubPlugin{name: "b", cleanupErr: errors.New("browser handle leaked")}
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(broken))

	err := r.Close()
	assert.Error(t, err)
	assert.Equal(t, 1, ok.cleanups)
	assert.Equal(t, 1, broken.cleanups)
}

func TestErrorWrappersClassify(t *testing.T) {
	cause := errors.New("connection reset")
	assert.ErrorIs(t, NetworkError(cause), ErrNetwork)
	assert.ErrorIs(t, RateLimitedError(cause), ErrRateLimited)
	assert.ErrorIs(t, ParseError(cause), ErrParse)
	assert.ErrorIs(t, NetworkError(cause), cause)
}
