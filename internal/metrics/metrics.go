// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package metrics provides Prometheus instrumentation for the ingestion
// pipeline, the dedup/catalog batch job and the tiered read cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics

	IngestStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_stage_duration_seconds",
			Help:    "Duration of each ingestion stage per source",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "stage"}, // fetch, normalize, validate, save
	)

	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Total ingestion runs by outcome",
		},
		[]string{"source", "outcome"}, // success, failure, skipped
	)

	IngestRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_total",
			Help: "Records seen per source by change classification",
		},
		[]string{"source", "change"}, // new, updated, unchanged, invalid
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Ingestion errors by source and severity",
		},
		[]string{"source", "severity"},
	)

	// Rate limiter metrics

	RateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_waits_total",
			Help: "Admissions that had to wait for the rolling window",
		},
		[]string{"source"},
	)

	RateLimitBackoff = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rate_limit_backoff_seconds",
			Help: "Current backoff delay per source",
		},
		[]string{"source"},
	)

	// Circuit breaker metrics

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scraper_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	BreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_breaker_requests_total",
			Help: "Requests through the per-source circuit breaker",
		},
		[]string{"source", "result"}, // success, failure, rejected
	)

	// Catalog metrics

	CatalogGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_generations_total",
			Help: "Catalog generations by outcome",
		},
		[]string{"outcome"},
	)

	CatalogGigs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_gigs",
			Help: "Gigs in the most recently generated catalog",
		},
	)

	CatalogDuplicatesRemoved = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_duplicates_removed",
			Help: "Duplicates removed in the most recent dedup pass",
		},
	)

	CatalogGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_generation_duration_seconds",
			Help:    "Duration of catalog generation including dedup",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Tiered cache metrics

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_hits_total",
			Help: "Tiered cache hits by tier",
		},
		[]string{"tier"}, // hot, warm
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "query_cache_misses_total",
			Help: "Tiered cache misses",
		},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "query_cache_entries",
			Help: "Current entries per cache tier",
		},
		[]string{"tier"},
	)

	CachePromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "query_cache_promotions_total",
			Help: "Entries promoted from warm to hot",
		},
	)

	// Storage metrics

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of persistence queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Persistence errors by backend and operation",
		},
		[]string{"backend", "operation"},
	)

	StoreReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_reconnects_total",
			Help: "Document store reconnects after a failed health probe",
		},
	)

	// Scheduler metrics

	ScheduledRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Scheduler ticks by result",
		},
		[]string{"source", "result"}, // run, skipped_running, skipped_disabled
	)

	SourceHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_health",
			Help: "Source health (0=failed, 1=degraded, 2=healthy)",
		},
		[]string{"source"},
	)
)
