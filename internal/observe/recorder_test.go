// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package observe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1mitten/gigateer-sub001/internal/ingest"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(t.TempDir(), 2)
	require.NoError(t, err)
	return r
}

func runResult(runID string, success bool, valid int, errs ...ingest.RunError) *ingest.RunResult {
	return &ingest.RunResult{
		Source:    "headfirst",
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Success:   success,
		Valid:     valid,
		Errors:    errs,
	}
}

func TestRecordWritesRunLog(t *testing.T) {
	r := newTestRecorder(t)

	r.Record("headfirst", runResult("run-1", true, 5), nil)

	data, err := os.ReadFile(filepath.Join(r.dir, "run-headfirst-run-1.json"))
	require.NoError(t, err)

	var logged ingest.RunResult
	require.NoError(t, json.Unmarshal(data, &logged))
	assert.Equal(t, "run-1", logged.RunID)
	assert.Equal(t, 5, logged.Valid)
}

func TestRecordAppendsPerfAndErrorLines(t *testing.T) {
	r := newTestRecorder(t)

	r.Record("headfirst", runResult("run-1", true, 3,
		ingest.RunError{Message: "bad venue", Severity: ingest.SeverityMedium}), nil)
	r.Record("headfirst", runResult("run-2", true, 3), nil)

	perf, err := os.ReadFile(filepath.Join(r.dir, "perf-headfirst.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(perf), "\n"), "one perf line per run")

	errLog, err := os.ReadFile(filepath.Join(r.dir, "errors-headfirst.log"))
	require.NoError(t, err)

	var entry errorEntry
	require.NoError(t, json.Unmarshal([]byte(strings.SplitN(string(errLog), "\n", 2)[0]), &entry))
	assert.Equal(t, "medium", entry.Severity)
	assert.Equal(t, "bad venue", entry.Message)
}

func TestHealthRollupLadder(t *testing.T) {
	r := newTestRecorder(t)

	r.Record("healthy", runResult("r1", true, 5), nil)
	r.Record("degraded", runResult("r2", true, 1), nil)
	r.Record("empty", runResult("r3", true, 0), nil)
	r.Record("broken", runResult("r4", false, 0), errors.New("connection refused"))

	bySource := map[string]SourceStatus{}
	for _, s := range r.Health() {
		bySource[s.Source] = s
	}

	assert.Equal(t, HealthHealthy, bySource["healthy"].Health)
	assert.Equal(t, HealthDegraded, bySource["degraded"].Health)
	assert.Equal(t, HealthFailed, bySource["empty"].Health, "success with zero records is failed")
	assert.Equal(t, HealthFailed, bySource["broken"].Health)
	assert.Equal(t, "connection refused", bySource["broken"].Error)
}

func TestRecordNilResultIsFailed(t *testing.T) {
	r := newTestRecorder(t)

	r.Record("headfirst", nil, errors.New("panic during run"))

	statuses := r.Health()
	require.Len(t, statuses, 1)
	assert.Equal(t, HealthFailed, statuses[0].Health)
}

func TestWriteBatchSummary(t *testing.T) {
	r := newTestRecorder(t)
	r.Record("a", runResult("r1", true, 5), nil)
	r.Record("b", runResult("r2", true, 1), nil)
	r.Record("c", runResult("r3", false, 0), errors.New("boom"))

	r.WriteBatchSummary("batch-1")

	data, err := os.ReadFile(filepath.Join(r.dir, "run-ingest_all-batch-1.json"))
	require.NoError(t, err)

	var summary batchSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 3, summary.Sources)
	assert.Equal(t, 1, summary.Healthy)
	assert.Equal(t, 1, summary.Degraded)
	assert.Equal(t, 1, summary.Failed)
}
