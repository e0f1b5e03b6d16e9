// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package observe writes the run/error/performance log files, keeps
// the per-source health rollup and serves the operational HTTP
// endpoints.
package observe

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/1mitten/gigateer-sub001/internal/ingest"
	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
)

// Health states for the source rollup.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthFailed   Health = "failed"
)

// DefaultHealthyMinRecords is the record count at or above which a
// successful run counts as healthy.
const DefaultHealthyMinRecords = 2

// SourceStatus is one source's place in the health rollup.
type SourceStatus struct {
	Source    string    `json:"source"`
	Health    Health    `json:"health"`
	LastRunAt time.Time `json:"lastRunAt"`
	LastRunID string    `json:"lastRunId"`
	Records   int       `json:"records"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// memorySnapshot is the heap picture attached to each perf entry.
type memorySnapshot struct {
	HeapAllocBytes uint64 `json:"heapAllocBytes"`
	HeapSysBytes   uint64 `json:"heapSysBytes"`
	NumGC          uint32 `json:"numGC"`
}

// perfEntry is one line of a source's performance log.
type perfEntry struct {
	RunID            string              `json:"runId"`
	Timestamp        time.Time           `json:"timestamp"`
	Timings          ingest.StageTimings `json:"timings"`
	Memory           memorySnapshot      `json:"memory"`
	ThroughputPerSec float64             `json:"throughputPerSec"`
}

// errorEntry is one line of a source's error log.
type errorEntry struct {
	RunID     string    `json:"runId"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Stack     string    `json:"stack,omitempty"`
}

// Recorder persists run results as JSON log files and maintains the
// health rollup. Safe for concurrent use; the scheduler calls Record
// from per-source goroutines.
type Recorder struct {
	dir        string
	healthyMin int

	mu     sync.Mutex
	health map[string]SourceStatus

	now func() time.Time
}

// NewRecorder creates the log directory and an empty rollup.
func NewRecorder(dir string, healthyMin int) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if healthyMin <= 0 {
		healthyMin = DefaultHealthyMinRecords
	}
	return &Recorder{
		dir:        dir,
		healthyMin: healthyMin,
		health:     make(map[string]SourceStatus),
		now:        time.Now,
	}, nil
}

// Record writes the run, error and performance logs for one completed
// run and refreshes the source's health. It satisfies
// scheduler.ResultFunc.
func (r *Recorder) Record(source string, result *ingest.RunResult, runErr error) {
	now := r.now()

	if result != nil {
		r.writeRunLog(source, result)
		r.appendPerfLog(source, result)
		r.appendErrorLog(source, result, runErr)
	}

	status := r.rollup(source, result, runErr, now)

	r.mu.Lock()
	r.health[source] = status
	r.mu.Unlock()

	metrics.SourceHealth.WithLabelValues(source).Set(healthGaugeValue(status.Health))
}

func (r *Recorder) rollup(source string, result *ingest.RunResult, runErr error, now time.Time) SourceStatus {
	status := SourceStatus{Source: source, LastRunAt: now}
	if runErr != nil {
		status.Error = runErr.Error()
	}
	if result == nil {
		status.Health = HealthFailed
		return status
	}

	status.LastRunID = result.RunID
	status.Records = result.Valid
	status.Success = result.Success

	switch {
	case !result.Success:
		status.Health = HealthFailed
	case result.Valid >= r.healthyMin:
		status.Health = HealthHealthy
	case result.Valid >= 1:
		status.Health = HealthDegraded
	default:
		status.Health = HealthFailed
	}
	return status
}

func healthGaugeValue(h Health) float64 {
	switch h {
	case HealthHealthy:
		return 2
	case HealthDegraded:
		return 1
	default:
		return 0
	}
}

// Health returns the current rollup, one entry per recorded source.
func (r *Recorder) Health() []SourceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SourceStatus, 0, len(r.health))
	for _, s := range r.health {
		out = append(out, s)
	}
	return out
}

func (r *Recorder) writeRunLog(source string, result *ingest.RunResult) {
	name := fmt.Sprintf("run-%s-%s.json", source, result.RunID)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logging.Error().Err(err).Str("source", source).Msg("Run log marshal failed")
		return
	}
	if err := os.WriteFile(filepath.Join(r.dir, name), data, 0o644); err != nil {
		logging.Error().Err(err).Str("source", source).Msg("Run log write failed")
	}
}

func (r *Recorder) appendPerfLog(source string, result *ingest.RunResult) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	entry := perfEntry{
		RunID:     result.RunID,
		Timestamp: r.now(),
		Timings:   result.Timings,
		Memory: memorySnapshot{
			HeapAllocBytes: mem.HeapAlloc,
			HeapSysBytes:   mem.HeapSys,
			NumGC:          mem.NumGC,
		},
		ThroughputPerSec: result.ThroughputPerSec,
	}
	r.appendLine(fmt.Sprintf("perf-%s.log", source), entry)
}

func (r *Recorder) appendErrorLog(source string, result *ingest.RunResult, runErr error) {
	for _, e := range result.Errors {
		r.appendLine(fmt.Sprintf("errors-%s.log", source), errorEntry{
			RunID:     result.RunID,
			Timestamp: r.now(),
			Severity:  string(e.Severity),
			Message:   e.Message,
		})
	}
	if runErr != nil && len(result.Errors) == 0 {
		r.appendLine(fmt.Sprintf("errors-%s.log", source), errorEntry{
			RunID:     result.RunID,
			Timestamp: r.now(),
			Severity:  string(ingest.SeverityCritical),
			Message:   runErr.Error(),
		})
	}
}

// appendLine appends one JSON line to a log file in the recorder's
// directory.
func (r *Recorder) appendLine(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Str("file", name).Msg("Log entry marshal failed")
		return
	}

	f, err := os.OpenFile(filepath.Join(r.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Error().Err(err).Str("file", name).Msg("Log file open failed")
		return
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Error().Err(err).Str("file", name).Msg("Log append failed")
	}
}

// batchSummary is the run log written after an ingest-all pass.
type batchSummary struct {
	RunID     string         `json:"runId"`
	Kind      string         `json:"kind"` // ingest_all
	Timestamp time.Time      `json:"timestamp"`
	Sources   int            `json:"sources"`
	Healthy   int            `json:"healthy"`
	Degraded  int            `json:"degraded"`
	Failed    int            `json:"failed"`
	PerSource []SourceStatus `json:"perSource"`
}

// WriteBatchSummary writes the ingest_all run log from the current
// rollup.
func (r *Recorder) WriteBatchSummary(runID string) {
	summary := batchSummary{
		RunID:     runID,
		Kind:      "ingest_all",
		Timestamp: r.now(),
		PerSource: r.Health(),
	}
	summary.Sources = len(summary.PerSource)
	for _, s := range summary.PerSource {
		switch s.Health {
		case HealthHealthy:
			summary.Healthy++
		case HealthDegraded:
			summary.Degraded++
		default:
			summary.Failed++
		}
	}

	name := fmt.Sprintf("run-ingest_all-%s.json", runID)
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logging.Error().Err(err).Msg("Batch summary marshal failed")
		return
	}
	if err := os.WriteFile(filepath.Join(r.dir, name), data, 0o644); err != nil {
		logging.Error().Err(err).Msg("Batch summary write failed")
	}
}
