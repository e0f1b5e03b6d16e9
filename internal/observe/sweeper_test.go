// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package observe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "run-headfirst-old.json")
	fresh := filepath.Join(dir, "run-headfirst-new.json")
	require.NoError(t, os.WriteFile(old, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("{}"), 0o644))

	stale := time.Now().Add(-20 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	s := NewSweeper(dir, 14)
	removed, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestSweepDisabledRetention(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "errors-headfirst.log")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	stale := time.Now().Add(-400 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(path, stale, stale))

	s := NewSweeper(dir, 0)
	removed, err := s.Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed, "retention <= 0 disables sweeping")
}
