// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package main is the entry point for the Gigateer ingestion daemon.
//
// The ingestor runs scraper plugins on cron schedules, persists
// per-source snapshots, regenerates the deduplicated catalog and serves
// the operational HTTP surface. Components start under a suture
// supervision tree:
//
//  1. Configuration: koanf defaults → optional YAML file → INGESTOR_* env
//  2. Storage: file snapshot store, optional DuckDB document store,
//     Badger raw-payload store
//  3. Scraper registry: one source per fixture subdirectory
//  4. Scheduler: staggered cron runs with re-entrancy skip
//  5. Catalog refresher: periodic dedup + atomic catalog rewrite
//  6. Observe server: /metrics, /healthz, /readyz, /debug/cache
//
// A PID file with a liveness probe prevents concurrent daemons; a stale
// file left by a dead process is reclaimed. Shutdown on SIGINT/SIGTERM
// drains in-flight runs bounded by the configured grace period.
//
// Run every source once and exit (cron-friendly):
//
//	ingestor -once
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/1mitten/gigateer-sub001/internal/cache"
	"github.com/1mitten/gigateer-sub001/internal/catalog"
	"github.com/1mitten/gigateer-sub001/internal/config"
	"github.com/1mitten/gigateer-sub001/internal/ingest"
	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/models"
	"github.com/1mitten/gigateer-sub001/internal/observe"
	"github.com/1mitten/gigateer-sub001/internal/query"
	"github.com/1mitten/gigateer-sub001/internal/ratelimit"
	"github.com/1mitten/gigateer-sub001/internal/scheduler"
	"github.com/1mitten/gigateer-sub001/internal/scraper"
	"github.com/1mitten/gigateer-sub001/internal/storage"
	"github.com/1mitten/gigateer-sub001/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	once := flag.Bool("once", false, "run every source once, write the batch summary and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.LogFormat(),
	})

	logging.Info().
		Str("mode", cfg.Mode).
		Bool("database", cfg.Storage.UseDatabase).
		Bool("file_storage", cfg.Storage.UseFileStorage).
		Msg("Starting Gigateer ingestor")

	pid, err := scheduler.AcquirePIDFile(cfg.Scheduler.PIDFile)
	if errors.Is(err, scheduler.ErrLockHeld) {
		logging.Fatal().Str("pid_file", cfg.Scheduler.PIDFile).Msg("Another ingestor is already running")
	} else if err != nil {
		logging.Fatal().Err(err).Msg("Failed to acquire PID file")
	}
	defer func() {
		if err := pid.Release(); err != nil {
			logging.Error().Err(err).Msg("Error releasing PID file")
		}
	}()

	fileStore, err := storage.NewFileStore(cfg.Storage.NormalizedDataDir, cfg.Storage.CatalogPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open snapshot store")
	}

	var duck *storage.DuckStore
	if cfg.Storage.UseDatabase {
		duck, err = storage.NewDuckStore(cfg.Database)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open document store")
		}
		defer func() {
			if err := duck.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing document store")
			}
		}()
	}

	retention := time.Duration(cfg.Observe.LogRetentionDays) * 24 * time.Hour
	rawStore, err := storage.NewRawStore(cfg.Storage.RawDataDir, retention)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open raw payload store")
	}
	defer func() {
		if err := rawStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing raw payload store")
		}
	}()

	registry := scraper.NewRegistry()
	if err := registerFixtureSources(registry, cfg.Storage.FixturesDir); err != nil {
		logging.Warn().Err(err).Str("dir", cfg.Storage.FixturesDir).Msg("No fixture sources registered")
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing plugin registry")
		}
	}()

	recorder, err := observe.NewRecorder(cfg.Observe.LogDir, cfg.Observe.HealthyMinRecords)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open run log directory")
	}

	entries := buildEntries(cfg, registry, fileStore, rawStore, duck)
	sched, err := scheduler.New(cfg.Scheduler, entries, scheduler.WithResultFunc(recorder.Record))
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid schedule configuration")
	}
	logging.Info().Strs("sources", sched.Sources()).Msg("Sources admitted")

	var doc query.DocumentStore
	if duck != nil {
		doc = duck
	}
	querySvc, err := query.New(doc, fileStore, cacheConfig(cfg.Cache))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build query service")
	}

	generator := catalog.NewGenerator(fileStore, fileStore)
	genOpts := catalogOptions(cfg.Dedup)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		code := runOnce(ctx, sched, recorder, generator, genOpts)
		// os.Exit skips deferred cleanup, so close stores explicitly.
		registry.Close() //nolint:errcheck
		rawStore.Close() //nolint:errcheck
		if duck != nil {
			duck.Close() //nolint:errcheck
		}
		pid.Release() //nolint:errcheck
		os.Exit(code)
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddIngestService(sched)

	refresher := catalog.NewRefresher(generator, genOpts, time.Hour)
	refresher.OnGenerate = func(res *catalog.Result) {
		invalidateChangedCities(querySvc, res.Diff)
	}
	tree.AddCatalogService(refresher)
	tree.AddCatalogService(rawStore)
	tree.AddCatalogService(observe.NewSweeper(cfg.Observe.LogDir, cfg.Observe.LogRetentionDays))

	tree.AddAPIService(querySvc.Cache())
	if cfg.Observe.ListenAddr != "" {
		server := observe.NewServer(cfg.Observe.ListenAddr, recorder, querySvc.CacheStats, readyChecks(cfg, duck)...)
		tree.AddAPIService(server)
		logging.Info().Str("addr", cfg.Observe.ListenAddr).Msg("Observe server enabled")
	}

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, draining")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Ingestor stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// registerFixtureSources registers one staticfile plugin per
// subdirectory of dir. A flat directory of JSON files registers as the
// single source "staticfile".
func registerFixtureSources(registry *scraper.Registry, dir string) error {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read fixtures dir: %w", err)
	}

	registered := 0
	for _, e := range dirEntries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		plugin := scraper.NewStaticFilePlugin(name, filepath.Join(dir, name), "")
		if err := registry.Register(plugin); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		registered++
	}

	if registered == 0 {
		if err := registry.Register(scraper.NewStaticFilePlugin("staticfile", dir, "")); err != nil {
			return err
		}
		registered = 1
	}

	logging.Info().Int("sources", registered).Str("dir", dir).Msg("Fixture sources registered")
	return nil
}

func buildEntries(cfg *config.Config, registry *scraper.Registry, fileStore *storage.FileStore, rawStore *storage.RawStore, duck *storage.DuckStore) []scheduler.Entry {
	limiters := ratelimit.NewRegistry()

	var upserter ingest.GigUpserter
	if duck != nil {
		upserter = duck
	}

	var entries []scheduler.Entry
	for _, source := range registry.Sources() {
		plugin, ok := registry.Get(source)
		if !ok {
			continue
		}
		meta := plugin.Meta()

		rpm := meta.RateLimitPerMin
		if rpm <= 0 {
			rpm = cfg.Ingest.RateLimitPerMin
		}

		worker := ingest.NewWorker(ingest.WorkerConfig{
			Plugin:       plugin,
			Limiter:      limiters.Get(source, rpm, 0),
			Snapshots:    fileStore,
			Raw:          rawStore,
			Upserter:     upserter,
			FetchTimeout: cfg.Ingest.Timeout,
			AutoFix:      true,
		})
		entries = append(entries, scheduler.Entry{Runner: worker, Schedule: meta.DefaultSchedule})
	}
	return entries
}

func cacheConfig(cfg config.CacheConfig) cache.Config {
	return cache.Config{
		HotSize:       cfg.HotSize,
		HotTTL:        cfg.HotTTL,
		WarmSize:      cfg.WarmSize,
		WarmTTL:       cfg.WarmTTL,
		PromoteAfter:  cfg.PromoteAfter,
		FrequencyCap:  cfg.FrequencyCap,
		ClearInterval: cfg.ClearInterval,
		PrefetchDelay: cfg.PrefetchDelay,
		WarmingDelay:  cfg.WarmingDelay,
	}
}

func catalogOptions(cfg config.DedupConfig) catalog.Options {
	return catalog.Options{
		MinConfidence:  cfg.MinConfidence,
		DateTolerance:  time.Duration(cfg.DateToleranceHours) * time.Hour,
		RequireSameDay: cfg.RequireSameDay,
		TrustScores:    cfg.TrustScores,
		MaxSnapshotAge: cfg.MaxSnapshotAge,
		PreserveIDs:    true,
		Validate:       true,
	}
}

func readyChecks(cfg *config.Config, duck *storage.DuckStore) []observe.ReadyCheck {
	checks := []observe.ReadyCheck{{
		Name: "snapshots",
		Check: func(context.Context) error {
			_, err := os.Stat(cfg.Storage.NormalizedDataDir)
			return err
		},
	}}
	if duck != nil {
		checks = append(checks, observe.ReadyCheck{Name: "duckdb", Check: duck.Ping})
	}
	return checks
}

func invalidateChangedCities(svc *query.Service, diff models.CatalogDiff) {
	cities := map[string]struct{}{}
	for _, set := range [][]models.Gig{diff.Added, diff.Updated, diff.Removed} {
		for _, g := range set {
			if city := strings.TrimSpace(g.Venue.City); city != "" {
				cities[strings.ToLower(city)] = struct{}{}
			}
		}
	}
	for city := range cities {
		n := svc.InvalidateCity(city, false)
		logging.Debug().Str("city", city).Int("entries", n).Msg("Cache invalidated after catalog refresh")
	}
}

// runOnce executes every admitted source once, writes the ingest_all
// batch summary and regenerates the catalog. Exit code 1 when any
// source aborted or the catalog could not be written.
func runOnce(ctx context.Context, sched *scheduler.Scheduler, recorder *observe.Recorder, generator *catalog.Generator, opts catalog.Options) int {
	batchID := uuid.NewString()
	logging.Info().Str("batch_id", batchID).Msg("Running all sources once")

	code := 0
	if err := sched.RunAll(ctx); err != nil {
		logging.Error().Err(err).Msg("One or more sources failed")
		code = 1
	}
	recorder.WriteBatchSummary(batchID)

	result, err := generator.Generate(ctx, opts)
	if err != nil {
		logging.Error().Err(err).Msg("Catalog generation failed")
		return 1
	}
	logging.Info().
		Int("gigs", len(result.Catalog.Gigs)).
		Int("added", len(result.Diff.Added)).
		Int("updated", len(result.Diff.Updated)).
		Int("removed", len(result.Diff.Removed)).
		Msg("Catalog written")
	return code
}
