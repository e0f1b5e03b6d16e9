// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
	"github.com/1mitten/gigateer-sub001/internal/models"
	"github.com/1mitten/gigateer-sub001/internal/ratelimit"
	"github.com/1mitten/gigateer-sub001/internal/scraper"
	"github.com/1mitten/gigateer-sub001/internal/validation"
)

// Severity grades run problems for the error log and health rollup.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SnapshotStore loads and atomically replaces per-source snapshots.
type SnapshotStore interface {
	// LoadSnapshot returns the previous snapshot, or nil when none exists.
	LoadSnapshot(ctx context.Context, source string) (*models.Snapshot, error)

	// SaveSnapshot replaces the source's snapshot atomically.
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
}

// RawSink persists opaque upstream payloads for debugging and replay.
type RawSink interface {
	SaveRaw(ctx context.Context, source, runID string, records []scraper.RawRecord) error
}

// GigUpserter mirrors snapshot writes into the document store when that
// back end is enabled.
type GigUpserter interface {
	UpsertGigs(ctx context.Context, gigs []models.Gig, batchID string) error
}

// RunError is one problem recorded during a run.
type RunError struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// StageTimings are the per-stage durations of one run, in milliseconds.
type StageTimings struct {
	FetchMs     int64 `json:"fetchMs"`
	NormalizeMs int64 `json:"normalizeMs"`
	ValidateMs  int64 `json:"validateMs"`
	SaveMs      int64 `json:"saveMs"`
	TotalMs     int64 `json:"totalMs"`
}

// RunResult summarizes one ingestion run for the run log and health
// rollup.
type RunResult struct {
	Source    string    `json:"source"`
	RunID     string    `json:"runId"`
	StartedAt time.Time `json:"startedAt"`
	Success   bool      `json:"success"`
	Severity  Severity  `json:"severity,omitempty"`

	RawCount   int `json:"rawCount"`
	Normalized int `json:"normalized"`
	Valid      int `json:"valid"`
	Invalid    int `json:"invalid"`
	New        int `json:"new"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`

	Timings StageTimings `json:"timings"`

	// ThroughputPerSec is normalized records per second of total runtime.
	ThroughputPerSec float64 `json:"throughputPerSec"`

	Errors []RunError `json:"errors,omitempty"`
}

// Worker runs the ingestion pipeline for one source. Within a source the
// stages are strictly sequential; parallelism exists only across sources.
type Worker struct {
	source  string
	plugin  scraper.Plugin
	limiter *ratelimit.Limiter

	snapshots SnapshotStore
	raw       RawSink     // optional
	upserter  GigUpserter // optional

	fetchTimeout time.Duration
	autoFix      bool

	now func() time.Time
}

// WorkerConfig assembles a Worker.
type WorkerConfig struct {
	Plugin    scraper.Plugin
	Limiter   *ratelimit.Limiter
	Snapshots SnapshotStore
	Raw       RawSink
	Upserter  GigUpserter

	// FetchTimeout bounds each FetchRaw attempt. Default 30s.
	FetchTimeout time.Duration

	// AutoFix enables the sanitizer's recoverable patching.
	AutoFix bool

	// DisableBreaker skips the circuit breaker wrap (tests).
	DisableBreaker bool
}

// NewWorker creates a worker for the plugin's source.
func NewWorker(cfg WorkerConfig) *Worker {
	plugin := cfg.Plugin
	if !cfg.DisableBreaker {
		plugin = withBreaker(plugin)
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Worker{
		source:       cfg.Plugin.Meta().Name,
		plugin:       plugin,
		limiter:      cfg.Limiter,
		snapshots:    cfg.Snapshots,
		raw:          cfg.Raw,
		upserter:     cfg.Upserter,
		fetchTimeout: timeout,
		autoFix:      cfg.AutoFix,
		now:          time.Now,
	}
}

// Source returns the worker's source name.
func (w *Worker) Source() string { return w.source }

// Run executes one ingestion run. Network and parse failures abort the
// run, leave the prior snapshot untouched and raise the limiter backoff;
// partial validation failures are recorded but do not abort. The returned
// error is non-nil only for aborted runs.
func (w *Worker) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.New().String()
	ctx = logging.ContextWithRunID(logging.ContextWithSource(ctx, w.source), runID[:8])
	log := logging.Ctx(ctx)

	started := w.now()
	result := &RunResult{Source: w.source, RunID: runID, StartedAt: started}

	fail := func(stage string, err error) (*RunResult, error) {
		w.limiter.Failure()
		result.Success = false
		result.Severity = SeverityCritical
		result.Errors = append(result.Errors, RunError{
			Message:  fmt.Sprintf("%s: %v", stage, err),
			Severity: SeverityCritical,
		})
		result.Timings.TotalMs = w.sinceMs(started)
		metrics.IngestRuns.WithLabelValues(w.source, "failure").Inc()
		log.Error().Err(err).Str("stage", stage).Msg("Ingestion run aborted")
		return result, fmt.Errorf("%s %s: %w", w.source, stage, err)
	}

	// Stage 1: rate-limited fetch under a hard timeout.
	if err := w.limiter.Wait(ctx); err != nil {
		return fail("admission", err)
	}
	fetchStart := w.now()
	fetchCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
	raw, err := w.plugin.FetchRaw(fetchCtx)
	cancel()
	result.Timings.FetchMs = w.sinceMs(fetchStart)
	metrics.IngestStageDuration.WithLabelValues(w.source, "fetch").
		Observe(float64(result.Timings.FetchMs) / 1000)
	if err != nil {
		return fail("fetch", err)
	}
	w.limiter.Success()
	result.RawCount = len(raw)

	// Stage 2: persist the raw payload for replay. Best effort: a raw sink
	// failure is logged but never aborts the run.
	if w.raw != nil {
		if err := w.raw.SaveRaw(ctx, w.source, runID, raw); err != nil {
			log.Warn().Err(err).Msg("Failed to persist raw payload")
			result.Errors = append(result.Errors, RunError{
				Message:  fmt.Sprintf("raw persist: %v", err),
				Severity: SeverityLow,
			})
		}
	}

	// Stage 3: normalize.
	normalizeStart := w.now()
	gigs, err := w.plugin.Normalize(ctx, raw)
	result.Timings.NormalizeMs = w.sinceMs(normalizeStart)
	metrics.IngestStageDuration.WithLabelValues(w.source, "normalize").
		Observe(float64(result.Timings.NormalizeMs) / 1000)
	if err != nil {
		return fail("normalize", err)
	}
	result.Normalized = len(gigs)

	// Stage 4: validate, then derive identity for survivors.
	validateStart := w.now()
	batch := validation.ValidateBatch(gigs, validation.Options{AutoFix: w.autoFix})
	valid := w.stampIdentity(batch.Valid, result)
	result.Timings.ValidateMs = w.sinceMs(validateStart)
	metrics.IngestStageDuration.WithLabelValues(w.source, "validate").
		Observe(float64(result.Timings.ValidateMs) / 1000)

	result.Valid = len(valid)
	result.Invalid = result.Normalized - result.Valid
	metrics.IngestRecords.WithLabelValues(w.source, "invalid").Add(float64(result.Invalid))

	for _, inv := range batch.Invalid {
		for _, issue := range inv.Errors {
			result.Errors = append(result.Errors, RunError{
				Message:  fmt.Sprintf("%s (%s)", issue.Message, inv.Gig.Title),
				Severity: SeverityMedium,
			})
		}
	}
	switch {
	case result.Normalized > 0 && result.Invalid*2 > result.Normalized:
		result.Severity = SeverityHigh
	case result.Invalid > 0:
		result.Severity = SeverityMedium
	}

	// Stage 5: diff against the previous snapshot. An unreadable previous
	// snapshot is treated as empty with a critical note; the run proceeds.
	var previous []models.Gig
	if prev, err := w.snapshots.LoadSnapshot(ctx, w.source); err != nil {
		log.Error().Err(err).Msg("Previous snapshot unreadable, treating as empty")
		result.Errors = append(result.Errors, RunError{
			Message:  fmt.Sprintf("corrupt snapshot: %v", err),
			Severity: SeverityCritical,
		})
		if result.Severity != SeverityHigh {
			result.Severity = SeverityHigh
		}
	} else if prev != nil {
		previous = prev.Gigs
	}

	changes := DetectChanges(valid, previous)
	result.New = len(changes.New)
	result.Updated = len(changes.Updated)
	result.Unchanged = len(changes.Unchanged)
	metrics.IngestRecords.WithLabelValues(w.source, "new").Add(float64(result.New))
	metrics.IngestRecords.WithLabelValues(w.source, "updated").Add(float64(result.Updated))
	metrics.IngestRecords.WithLabelValues(w.source, "unchanged").Add(float64(result.Unchanged))

	merged := MergeSnapshot(changes, previous, w.now())

	// Stage 6: persist the snapshot atomically, mirroring into the
	// document store when enabled.
	saveStart := w.now()
	snap := &models.Snapshot{
		Gigs: merged,
		Metadata: models.SnapshotMetadata{
			LastRun: w.now(),
			Source:  w.source,
			Errors:  errorMessages(result.Errors),
		},
	}
	if err := w.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return fail("save", err)
	}
	if w.upserter != nil {
		if err := w.upserter.UpsertGigs(ctx, merged, runID); err != nil {
			log.Error().Err(err).Msg("Document store upsert failed")
			result.Errors = append(result.Errors, RunError{
				Message:  fmt.Sprintf("store upsert: %v", err),
				Severity: SeverityHigh,
			})
			if result.Severity == "" || result.Severity == SeverityMedium {
				result.Severity = SeverityHigh
			}
		}
	}
	result.Timings.SaveMs = w.sinceMs(saveStart)
	metrics.IngestStageDuration.WithLabelValues(w.source, "save").
		Observe(float64(result.Timings.SaveMs) / 1000)

	// Stage 7: summary.
	result.Success = true
	result.Timings.TotalMs = w.sinceMs(started)
	if result.Timings.TotalMs > 0 {
		result.ThroughputPerSec = float64(result.Normalized) / (float64(result.Timings.TotalMs) / 1000)
	}
	metrics.IngestRuns.WithLabelValues(w.source, "success").Inc()

	log.Info().
		Int("raw", result.RawCount).
		Int("valid", result.Valid).
		Int("invalid", result.Invalid).
		Int("new", result.New).
		Int("updated", result.Updated).
		Int("unchanged", result.Unchanged).
		Int64("total_ms", result.Timings.TotalMs).
		Msg("Ingestion run complete")

	return result, nil
}

// stampIdentity derives hash and ID for records the plugin left blank.
// Non-hashable records are suppressed with a recorded error; this is not
// fatal for the run.
func (w *Worker) stampIdentity(gigs []models.Gig, result *RunResult) []models.Gig {
	out := gigs[:0]
	for _, g := range gigs {
		if g.Source == "" {
			g.Source = w.source
		}
		hash := models.ContentHash(g)
		if hash == "" {
			result.Errors = append(result.Errors, RunError{
				Message:  fmt.Sprintf("%s: record %q not hashable", validation.CodeHashGenerationFailed, g.Title),
				Severity: SeverityMedium,
			})
			continue
		}
		g.Hash = hash
		if g.ID == "" {
			g.ID = models.StableID(g)
		}
		out = append(out, g)
	}
	return out
}

func (w *Worker) sinceMs(t time.Time) int64 {
	return w.now().Sub(t).Milliseconds()
}

func errorMessages(errs []RunError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Message
	}
	return out
}

// IsUpstreamFailure reports whether an error is one of the typed upstream
// failures that should abort a run and raise backoff.
func IsUpstreamFailure(err error) bool {
	return errors.Is(err, scraper.ErrNetwork) ||
		errors.Is(err, scraper.ErrRateLimited) ||
		errors.Is(err, scraper.ErrParse)
}
