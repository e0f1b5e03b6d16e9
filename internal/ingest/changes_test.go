// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1mitten/gigateer-sub001/internal/models"
)

func TestDetectChangesFirstRun(t *testing.T) {
	current := []models.Gig{{ID: "a", Hash: "H1"}}

	ch := DetectChanges(current, nil)

	require.Len(t, ch.New, 1)
	assert.Equal(t, "a", ch.New[0].ID)
	assert.Empty(t, ch.Updated)
	assert.Empty(t, ch.Unchanged)
}

func TestDetectChangesHashUpdate(t *testing.T) {
	previous := []models.Gig{{ID: "a", Hash: "H1"}}
	current := []models.Gig{{ID: "a", Hash: "H2"}}

	ch := DetectChanges(current, previous)

	assert.Empty(t, ch.New)
	require.Len(t, ch.Updated, 1)
	assert.Empty(t, ch.Unchanged)
}

func TestDetectChangesUnchanged(t *testing.T) {
	previous := []models.Gig{{ID: "a", Hash: "H1"}}
	current := []models.Gig{{ID: "a", Hash: "H1"}}

	ch := DetectChanges(current, previous)
	require.Len(t, ch.Unchanged, 1)
}

func TestDetectChangesAbsenceIsNotDeletion(t *testing.T) {
	previous := []models.Gig{{ID: "a", Hash: "H1"}, {ID: "b", Hash: "H2"}}
	current := []models.Gig{{ID: "a", Hash: "H1"}}

	ch := DetectChanges(current, previous)

	assert.Len(t, ch.Unchanged, 1)
	assert.Empty(t, ch.New)
	assert.Empty(t, ch.Updated)
	total := len(ch.New) + len(ch.Updated) + len(ch.Unchanged)
	assert.Equal(t, 1, total, "the missing record is simply absent, not a deletion")
}

func TestMergeSnapshotStampsTimestamps(t *testing.T) {
	firstRun := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	secondRun := firstRun.Add(6 * time.Hour)

	// First run: everything is new.
	ch := DetectChanges([]models.Gig{{ID: "a", Hash: "H1"}}, nil)
	snap := MergeSnapshot(ch, nil, firstRun)
	require.Len(t, snap, 1)
	require.NotNil(t, snap[0].FirstSeenAt)
	assert.True(t, snap[0].FirstSeenAt.Equal(firstRun))
	assert.True(t, snap[0].IsNew)

	// Second run: same ID, changed hash. FirstSeenAt survives, UpdatedAt
	// and LastSeenAt move forward.
	ch2 := DetectChanges([]models.Gig{{ID: "a", Hash: "H2"}}, snap)
	snap2 := MergeSnapshot(ch2, snap, secondRun)
	require.Len(t, snap2, 1)
	assert.True(t, snap2[0].FirstSeenAt.Equal(firstRun), "firstSeenAt preserved from previous")
	assert.True(t, snap2[0].LastSeenAt.Equal(secondRun))
	assert.True(t, snap2[0].UpdatedAt.Equal(secondRun))
	assert.True(t, snap2[0].IsUpdated)
	assert.False(t, snap2[0].IsNew)
}

func TestMergeSnapshotUnchangedKeepsUpdatedAt(t *testing.T) {
	firstRun := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	secondRun := firstRun.Add(6 * time.Hour)

	ch := DetectChanges([]models.Gig{{ID: "a", Hash: "H1"}}, nil)
	snap := MergeSnapshot(ch, nil, firstRun)

	ch2 := DetectChanges([]models.Gig{{ID: "a", Hash: "H1"}}, snap)
	snap2 := MergeSnapshot(ch2, snap, secondRun)

	require.Len(t, snap2, 1)
	assert.True(t, snap2[0].UpdatedAt.Equal(firstRun), "unchanged records keep updatedAt")
	assert.True(t, snap2[0].LastSeenAt.Equal(secondRun), "but lastSeenAt refreshes")
	assert.False(t, snap2[0].IsUpdated)
}
