// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
	"github.com/1mitten/gigateer-sub001/internal/scraper"
)

// rawGCInterval is how often the value-log garbage collector runs.
const rawGCInterval = time.Hour

// RawStore keeps opaque upstream payloads in Badger for debugging and
// replay. Entries expire after the configured retention.
type RawStore struct {
	db        *badger.DB
	retention time.Duration
}

// NewRawStore opens (or creates) the raw store at path. retention <= 0
// disables expiry.
func NewRawStore(path string, retention time.Duration) (*RawStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open raw store: %w", err)
	}

	logging.Info().
		Str("path", path).
		Dur("retention", retention).
		Msg("Raw payload store opened")
	return &RawStore{db: db, retention: retention}, nil
}

func rawKey(source, runID string, idx int) []byte {
	return []byte(fmt.Sprintf("raw/%s/%s/%06d", source, runID, idx))
}

// SaveRaw persists one run's payloads. It satisfies ingest.RawSink.
func (s *RawStore) SaveRaw(_ context.Context, source, runID string, records []scraper.RawRecord) error {
	started := time.Now()

	err := s.db.Update(func(txn *badger.Txn) error {
		for i, rec := range records {
			e := badger.NewEntry(rawKey(source, runID, i), rec)
			if s.retention > 0 {
				e = e.WithTTL(s.retention)
			}
			if err := txn.SetEntry(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("badger", "save_raw").Inc()
		return fmt.Errorf("save raw payloads for %s: %w", source, err)
	}

	metrics.StoreQueryDuration.WithLabelValues("badger", "save_raw").Observe(time.Since(started).Seconds())
	return nil
}

// LoadRun returns one run's payloads in write order.
func (s *RawStore) LoadRun(_ context.Context, source, runID string) ([]scraper.RawRecord, error) {
	prefix := []byte(fmt.Sprintf("raw/%s/%s/", source, runID))

	var records []scraper.RawRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			records = append(records, scraper.RawRecord(val))
		}
		return nil
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("badger", "load_raw").Inc()
		return nil, fmt.Errorf("load raw payloads for %s: %w", source, err)
	}
	return records, nil
}

// RunGC compacts the value log until Badger reports nothing to rewrite.
func (s *RawStore) RunGC() error {
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("raw store gc: %w", err)
		}
	}
}

// Serve runs the periodic garbage collector until ctx is cancelled. It
// satisfies suture.Service.
func (s *RawStore) Serve(ctx context.Context) error {
	ticker := time.NewTicker(rawGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Raw store garbage collection failed")
			}
		}
	}
}

// Close flushes and closes the underlying database.
func (s *RawStore) Close() error {
	return s.db.Close()
}
