// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package storage provides the persistence back ends: the file-based
// snapshot set, the DuckDB document store and the Badger raw-payload
// store.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
	"github.com/1mitten/gigateer-sub001/internal/models"
)

const snapshotSuffix = ".normalized.json"

// fileRefreshWindow is how long a parsed file is trusted before its
// modification time is re-checked.
const fileRefreshWindow = 5 * time.Minute

type snapEntry struct {
	snap      *models.Snapshot
	mtime     time.Time
	checkedAt time.Time
}

type catalogEntry struct {
	catalog   *models.Catalog
	mtime     time.Time
	checkedAt time.Time
}

// FileStore persists per-source normalized snapshots and the catalog as
// JSON files. Writes are atomic (write-new-then-rename); reads cache
// parsed files and re-check modification times on a refresh window.
type FileStore struct {
	dir         string
	catalogPath string

	mu      sync.Mutex
	snaps   map[string]*snapEntry
	catalog *catalogEntry

	now func() time.Time
}

// NewFileStore creates a file store rooted at dir for snapshots, with
// the catalog at catalogPath.
func NewFileStore(dir, catalogPath string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	if catDir := filepath.Dir(catalogPath); catDir != "" && catDir != "." {
		if err := os.MkdirAll(catDir, 0o750); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}
	return &FileStore{
		dir:         dir,
		catalogPath: catalogPath,
		snaps:       make(map[string]*snapEntry),
		now:         time.Now,
	}, nil
}

func (s *FileStore) snapshotPath(source string) string {
	return filepath.Join(s.dir, source+snapshotSuffix)
}

// SaveSnapshot atomically replaces the source's normalized file.
func (s *FileStore) SaveSnapshot(_ context.Context, snap *models.Snapshot) error {
	started := time.Now()
	path := s.snapshotPath(snap.Metadata.Source)

	if err := writeJSONAtomic(path, snap); err != nil {
		metrics.StoreErrors.WithLabelValues("file", "save_snapshot").Inc()
		return fmt.Errorf("save snapshot %s: %w", snap.Metadata.Source, err)
	}

	s.mu.Lock()
	delete(s.snaps, snap.Metadata.Source)
	s.mu.Unlock()

	metrics.StoreQueryDuration.WithLabelValues("file", "save_snapshot").Observe(time.Since(started).Seconds())
	return nil
}

// LoadSnapshot returns the source's snapshot, or nil when the source
// has never been ingested.
func (s *FileStore) LoadSnapshot(_ context.Context, source string) (*models.Snapshot, error) {
	path := s.snapshotPath(source)

	s.mu.Lock()
	entry := s.snaps[source]
	s.mu.Unlock()

	now := s.now()
	if entry != nil && now.Sub(entry.checkedAt) < fileRefreshWindow {
		return entry.snap, nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("file", "load_snapshot").Inc()
		return nil, fmt.Errorf("stat snapshot %s: %w", source, err)
	}

	if entry != nil && info.ModTime().Equal(entry.mtime) {
		s.mu.Lock()
		entry.checkedAt = now
		s.mu.Unlock()
		return entry.snap, nil
	}

	var snap models.Snapshot
	if err := readJSON(path, &snap); err != nil {
		metrics.StoreErrors.WithLabelValues("file", "load_snapshot").Inc()
		return nil, fmt.Errorf("load snapshot %s: %w", source, err)
	}

	s.mu.Lock()
	s.snaps[source] = &snapEntry{snap: &snap, mtime: info.ModTime(), checkedAt: now}
	s.mu.Unlock()
	return &snap, nil
}

// ListSnapshots loads every normalized file in the store, skipping
// unreadable ones with a warning.
func (s *FileStore) ListSnapshots(ctx context.Context) ([]*models.Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("file", "list_snapshots").Inc()
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	var snaps []*models.Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		source := strings.TrimSuffix(name, snapshotSuffix)
		snap, err := s.LoadSnapshot(ctx, source)
		if err != nil {
			logging.Warn().Err(err).Str("source", source).Msg("Skipping unreadable snapshot")
			continue
		}
		if snap != nil {
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

// LoadCatalog returns the current catalog, or nil when none has been
// generated yet.
func (s *FileStore) LoadCatalog(_ context.Context) (*models.Catalog, error) {
	s.mu.Lock()
	entry := s.catalog
	s.mu.Unlock()

	now := s.now()
	if entry != nil && now.Sub(entry.checkedAt) < fileRefreshWindow {
		return entry.catalog, nil
	}

	info, err := os.Stat(s.catalogPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("file", "load_catalog").Inc()
		return nil, fmt.Errorf("stat catalog: %w", err)
	}

	if entry != nil && info.ModTime().Equal(entry.mtime) {
		s.mu.Lock()
		entry.checkedAt = now
		s.mu.Unlock()
		return entry.catalog, nil
	}

	var cat models.Catalog
	if err := readJSON(s.catalogPath, &cat); err != nil {
		metrics.StoreErrors.WithLabelValues("file", "load_catalog").Inc()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	s.mu.Lock()
	s.catalog = &catalogEntry{catalog: &cat, mtime: info.ModTime(), checkedAt: now}
	s.mu.Unlock()
	return &cat, nil
}

// SaveCatalog atomically replaces the catalog file.
func (s *FileStore) SaveCatalog(_ context.Context, cat *models.Catalog) error {
	started := time.Now()
	if err := writeJSONAtomic(s.catalogPath, cat); err != nil {
		metrics.StoreErrors.WithLabelValues("file", "save_catalog").Inc()
		return fmt.Errorf("save catalog: %w", err)
	}

	s.mu.Lock()
	s.catalog = nil
	s.mu.Unlock()

	metrics.StoreQueryDuration.WithLabelValues("file", "save_catalog").Observe(time.Since(started).Seconds())
	return nil
}

// writeJSONAtomic writes v to path via a temp file and rename, so
// readers never observe a partial file.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
