// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1mitten/gigateer-sub001/internal/config"
	"github.com/1mitten/gigateer-sub001/internal/ingest"
	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
)

// Runner executes one ingestion run for one source. ingest.Worker
// satisfies it.
type Runner interface {
	Source() string
	Run(ctx context.Context) (*ingest.RunResult, error)
}

// Entry pairs a runner with its cron override. An empty Schedule falls
// back to the configured default.
type Entry struct {
	Runner   Runner
	Schedule string
}

// ResultFunc observes completed runs. err is non-nil when the run
// aborted.
type ResultFunc func(source string, result *ingest.RunResult, err error)

type entry struct {
	runner  Runner
	sched   *Schedule
	stagger time.Duration
	next    time.Time
	running atomic.Bool
}

// Scheduler fires per-source ingestion runs on their cron schedules.
// One logical worker per source; a tick that lands while the source's
// previous run is still in flight is skipped and logged, never queued.
type Scheduler struct {
	cfg      config.SchedulerConfig
	entries  []*entry
	onResult ResultFunc

	// checkInterval is how often due schedules are evaluated.
	checkInterval time.Duration
	now           func() time.Time

	wg sync.WaitGroup
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithResultFunc registers a completed-run observer.
func WithResultFunc(fn ResultFunc) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// New builds a scheduler over the given entries, applying the
// enabled/disabled source lists and assigning each admitted source a
// stagger offset in registration order.
func New(cfg config.SchedulerConfig, entries []Entry, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cfg:           cfg,
		checkInterval: 30 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Runner.Source() < sorted[j].Runner.Source()
	})

	offset := 0
	for _, e := range sorted {
		source := e.Runner.Source()
		if !sourceAllowed(cfg, source) {
			logging.Info().Str("source", source).Msg("Source disabled by configuration")
			metrics.ScheduledRuns.WithLabelValues(source, "skipped_disabled").Inc()
			continue
		}

		expr := e.Schedule
		if expr == "" {
			expr = cfg.DefaultSchedule
		}
		sched, err := ParseSchedule(expr)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", source, err)
		}

		s.entries = append(s.entries, &entry{
			runner:  e.Runner,
			sched:   sched,
			stagger: time.Duration(offset*cfg.StaggerMinutes) * time.Minute,
		})
		offset++
	}

	return s, nil
}

// Sources returns the admitted sources in scheduling order.
func (s *Scheduler) Sources() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.runner.Source()
	}
	return out
}

func sourceAllowed(cfg config.SchedulerConfig, source string) bool {
	for _, d := range cfg.DisabledSources {
		if d == source {
			return false
		}
	}
	if len(cfg.EnabledSources) == 0 {
		return true
	}
	for _, e := range cfg.EnabledSources {
		if e == source {
			return true
		}
	}
	return false
}

// Serve runs the scheduling loop until ctx is cancelled, then drains
// in-flight runs bounded by the configured grace period. It satisfies
// suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	now := s.now()
	for _, e := range s.entries {
		e.next = e.sched.Next(now, nil).Add(e.stagger)
		logging.Debug().
			Str("source", e.runner.Source()).
			Time("next_run", e.next).
			Msg("Source scheduled")
	}

	// Runs outlive loop cancellation so the grace period can drain them.
	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer runCancel()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	logging.Info().
		Int("sources", len(s.entries)).
		Str("default_schedule", s.cfg.DefaultSchedule).
		Msg("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.drain(runCancel)
			return ctx.Err()
		case <-ticker.C:
			s.tick(runCtx)
		}
	}
}

func (s *Scheduler) tick(runCtx context.Context) {
	now := s.now()
	for _, e := range s.entries {
		if now.Before(e.next) {
			continue
		}
		source := e.runner.Source()
		e.next = e.sched.Next(now, nil).Add(e.stagger)

		if !e.running.CompareAndSwap(false, true) {
			logging.Warn().
				Str("source", source).
				Msg("Previous run still in progress, skipping tick")
			metrics.ScheduledRuns.WithLabelValues(source, "skipped_running").Inc()
			continue
		}

		metrics.ScheduledRuns.WithLabelValues(source, "run").Inc()
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			defer e.running.Store(false)
			s.runOne(runCtx, e.runner)
		}(e)
	}
}

func (s *Scheduler) runOne(ctx context.Context, r Runner) {
	ctx = logging.ContextWithNewRunID(ctx)
	result, err := r.Run(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Str("source", r.Source()).
			Msg("Scheduled run failed")
	}
	if s.onResult != nil {
		s.onResult(r.Source(), result, err)
	}
}

// drain waits for in-flight runs up to the grace period, then cancels
// the stragglers and waits for them to unwind.
func (s *Scheduler) drain(cancel context.CancelFunc) {
	grace := s.cfg.GracePeriod
	if grace <= 0 {
		grace = 30 * time.Second
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info().Msg("Scheduler drained cleanly")
	case <-time.After(grace):
		logging.Warn().
			Dur("grace_period", grace).
			Msg("Grace period expired, cancelling in-flight runs")
		cancel()
		<-done
	}
}

// RunAll executes every admitted source once, in parallel, one worker
// per source. Individual failures are collected rather than aborting
// the batch.
func (s *Scheduler) RunAll(ctx context.Context) error {
	var g errgroup.Group
	var mu sync.Mutex
	var errs []error

	for _, e := range s.entries {
		g.Go(func() error {
			if !e.running.CompareAndSwap(false, true) {
				return nil
			}
			defer e.running.Store(false)

			runCtx := logging.ContextWithNewRunID(ctx)
			result, err := e.runner.Run(runCtx)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("source %s: %w", e.runner.Source(), err))
				mu.Unlock()
			}
			if s.onResult != nil {
				s.onResult(e.runner.Source(), result, err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}
