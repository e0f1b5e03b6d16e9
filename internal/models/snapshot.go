// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package models

import "time"

// Snapshot is the validated, change-classified output of one ingestion run
// for one source. It is replaced atomically at the end of each run; the
// previous snapshot stays untouched when a run aborts.
type Snapshot struct {
	Gigs     []Gig            `json:"gigs"`
	Metadata SnapshotMetadata `json:"metadata"`
}

// SnapshotMetadata describes the run that produced a snapshot.
type SnapshotMetadata struct {
	LastRun time.Time `json:"lastRun"`
	Source  string    `json:"source"`
	Errors  []string  `json:"errors"`
}

// Age returns how long ago the snapshot was produced.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Metadata.LastRun)
}
