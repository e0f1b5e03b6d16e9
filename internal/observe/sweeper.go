// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package observe

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/1mitten/gigateer-sub001/internal/logging"
)

const sweepInterval = 24 * time.Hour

// Sweeper deletes log files older than the retention window.
type Sweeper struct {
	dir       string
	retention time.Duration

	now func() time.Time
}

// NewSweeper builds a sweeper over the recorder's log directory.
// retentionDays <= 0 disables sweeping.
func NewSweeper(dir string, retentionDays int) *Sweeper {
	return &Sweeper{
		dir:       dir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Sweep removes expired files once and returns how many were deleted.
func (s *Sweeper) Sweep() (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.retention)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			logging.Warn().Err(err).Str("file", entry.Name()).Msg("Log sweep failed to remove file")
			continue
		}
		removed++
	}

	if removed > 0 {
		logging.Info().Int("removed", removed).Str("dir", s.dir).Msg("Log retention sweep complete")
	}
	return removed, nil
}

// Serve sweeps on startup and then daily until ctx is cancelled. It
// satisfies suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	if _, err := s.Sweep(); err != nil {
		logging.Warn().Err(err).Msg("Initial log sweep failed")
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(); err != nil {
				logging.Warn().Err(err).Msg("Log sweep failed")
			}
		}
	}
}
