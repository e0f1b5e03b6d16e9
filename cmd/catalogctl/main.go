// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

// Package main is the catalog CLI: cross-source deduplication and
// catalog maintenance outside the daemon.
//
//	catalogctl generate -sources-dir data/normalized -output data/catalog.json
//	catalogctl update   -old-catalog data/catalog.json -output data/catalog.json
//	catalogctl validate data/normalized/headfirst.normalized.json
//	catalogctl compare  old.json new.json
//
// Exit codes: 0 success, 1 fatal error or validation errors present,
// 2 usage error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/1mitten/gigateer-sub001/internal/catalog"
	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/models"
	"github.com/1mitten/gigateer-sub001/internal/storage"
	"github.com/1mitten/gigateer-sub001/internal/validation"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	switch args[0] {
	case "generate":
		return cmdGenerate(args[1:], false)
	case "update":
		return cmdGenerate(args[1:], true)
	case "validate":
		return cmdValidate(args[1:])
	case "compare":
		return cmdCompare(args[1:])
	case "help", "-h", "--help":
		usage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: catalogctl <command> [flags]

Commands:
  generate   build a fresh deduplicated catalog from source snapshots
  update     regenerate the catalog preserving IDs from the previous one
  validate   batch-validate a snapshot or catalog file
  compare    print the diff between two catalog files

Run "catalogctl <command> -h" for command flags.
`)
}

// generateFlags holds the shared generate/update flag set.
type generateFlags struct {
	sourcesDir    string
	output        string
	oldCatalog    string
	minConfidence float64
	dateTolerance time.Duration
	sameDay       bool
	noValidate    bool
	maxAge        time.Duration
	trustScores   string
	verbose       bool
	dryRun        bool
}

func newGenerateFlagSet(name string, gf *generateFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&gf.sourcesDir, "sources-dir", "data/normalized", "directory of per-source snapshot files")
	fs.StringVar(&gf.output, "output", "data/catalog.json", "catalog output path")
	fs.StringVar(&gf.oldCatalog, "old-catalog", "", "previous catalog to diff against (default: the output path)")
	fs.Float64Var(&gf.minConfidence, "min-confidence", 0.7, "fuzzy-match confidence threshold [0,1]")
	fs.DurationVar(&gf.dateTolerance, "date-tolerance", 2*time.Hour, "start-time window for fuzzy matches")
	fs.BoolVar(&gf.sameDay, "same-day", false, "veto matches whose start dates differ by calendar day")
	fs.BoolVar(&gf.noValidate, "no-validate", false, "skip pre-dedup batch validation")
	fs.DurationVar(&gf.maxAge, "max-age", 24*time.Hour, "exclude snapshots with older last runs")
	fs.StringVar(&gf.trustScores, "trust-scores", "", "per-source trust overrides, e.g. headfirst=90,songkick=70")
	fs.BoolVar(&gf.verbose, "verbose", false, "debug logging")
	fs.BoolVar(&gf.dryRun, "dry-run", false, "compute the catalog and diff without writing")
	return fs
}

func cmdGenerate(args []string, preserveIDs bool) int {
	name := "generate"
	if preserveIDs {
		name = "update"
	}
	var gf generateFlags
	fs := newGenerateFlagSet(name, &gf)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no positional arguments\n", name)
		return exitUsage
	}
	initLogging(gf.verbose)

	trust, err := parseTrustScores(gf.trustScores)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	store, err := buildCatalogStore(gf)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open stores")
		return exitError
	}

	gen := catalog.NewGenerator(store.snapshots, store)
	result, err := gen.Generate(context.Background(), catalog.Options{
		MinConfidence:  gf.minConfidence,
		DateTolerance:  gf.dateTolerance,
		RequireSameDay: gf.sameDay,
		TrustScores:    trust,
		PreserveIDs:    preserveIDs,
		MaxSnapshotAge: gf.maxAge,
		Validate:       !gf.noValidate,
		DryRun:         gf.dryRun,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Catalog generation failed")
		return exitError
	}

	printGenerateSummary(result, gf.dryRun)
	if result.ValidationErrors > 0 {
		return exitError
	}
	return exitOK
}

// splitCatalogStore reads the previous catalog from one path and writes
// the new one to another, so update can diff against an explicit
// -old-catalog.
type splitCatalogStore struct {
	snapshots *storage.FileStore
	read      *storage.FileStore
	write     *storage.FileStore
}

func (s *splitCatalogStore) LoadCatalog(ctx context.Context) (*models.Catalog, error) {
	return s.read.LoadCatalog(ctx)
}

func (s *splitCatalogStore) SaveCatalog(ctx context.Context, c *models.Catalog) error {
	return s.write.SaveCatalog(ctx, c)
}

func buildCatalogStore(gf generateFlags) (*splitCatalogStore, error) {
	write, err := storage.NewFileStore(gf.sourcesDir, gf.output)
	if err != nil {
		return nil, err
	}
	read := write
	if gf.oldCatalog != "" && gf.oldCatalog != gf.output {
		read, err = storage.NewFileStore(gf.sourcesDir, gf.oldCatalog)
		if err != nil {
			return nil, err
		}
	}
	return &splitCatalogStore{snapshots: write, read: read, write: write}, nil
}

func printGenerateSummary(result *catalog.Result, dryRun bool) {
	c := result.Catalog
	fmt.Printf("gigs:               %d\n", len(c.Gigs))
	fmt.Printf("duplicates removed: %d\n", c.Metadata.Dedup.DuplicatesRemoved)
	fmt.Printf("added / updated / removed / unchanged: %d / %d / %d / %d\n",
		len(result.Diff.Added), len(result.Diff.Updated), len(result.Diff.Removed), result.Diff.Unchanged)
	if len(result.SkippedSources) > 0 {
		fmt.Printf("skipped stale sources: %s\n", strings.Join(result.SkippedSources, ", "))
	}
	if result.ValidationErrors > 0 {
		fmt.Printf("records dropped by validation: %d\n", result.ValidationErrors)
	}
	if dryRun {
		fmt.Println("dry run: catalog not written")
	}
}

func cmdValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	autoFix := fs.Bool("auto-fix", false, "patch recoverable problems before validating")
	verbose := fs.Bool("verbose", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "validate takes exactly one snapshot or catalog file")
		return exitUsage
	}
	initLogging(*verbose)

	gigs, err := loadGigsFile(fs.Arg(0))
	if err != nil {
		logging.Error().Err(err).Str("file", fs.Arg(0)).Msg("Failed to load file")
		return exitError
	}

	result := validation.ValidateBatch(gigs, validation.Options{AutoFix: *autoFix})
	fmt.Printf("valid: %d  invalid: %d  errors: %d  warnings: %d\n",
		len(result.Valid), len(result.Invalid), result.TotalErrors, result.TotalWarnings)

	for _, inv := range result.Invalid {
		for _, issue := range inv.Errors {
			fmt.Printf("  %s (%s): %s\n", inv.Gig.Title, inv.Gig.Source, issue.Error())
		}
	}

	if len(result.Invalid) > 0 {
		return exitError
	}
	return exitOK
}

func cmdCompare(args []string) int {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "list changed records rather than counts only")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "compare takes exactly two catalog files: old new")
		return exitUsage
	}
	initLogging(false)

	previous, err := loadCatalogFile(fs.Arg(0))
	if err != nil {
		logging.Error().Err(err).Str("file", fs.Arg(0)).Msg("Failed to load catalog")
		return exitError
	}
	next, err := loadCatalogFile(fs.Arg(1))
	if err != nil {
		logging.Error().Err(err).Str("file", fs.Arg(1)).Msg("Failed to load catalog")
		return exitError
	}

	diff := models.DiffCatalogs(previous, next)
	fmt.Printf("added: %d  updated: %d  removed: %d  unchanged: %d\n",
		len(diff.Added), len(diff.Updated), len(diff.Removed), diff.Unchanged)

	if *verbose {
		printDiffSection("added", diff.Added)
		printDiffSection("updated", diff.Updated)
		printDiffSection("removed", diff.Removed)
	}
	return exitOK
}

func printDiffSection(label string, gigs []models.Gig) {
	for _, g := range gigs {
		fmt.Printf("  %s %s | %s @ %s, %s | %s\n",
			label, g.ID, g.Title, g.Venue.Name, g.Venue.City, g.DateStart.Format(time.RFC3339))
	}
}

// loadGigsFile accepts either a snapshot or a catalog file; both carry a
// top-level "gigs" array.
func loadGigsFile(path string) ([]models.Gig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Gigs []models.Gig `json:"gigs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Gigs == nil {
		return nil, errors.New("file has no gigs array")
	}
	return doc.Gigs, nil
}

func loadCatalogFile(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c models.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// parseTrustScores parses "source=score" pairs; scores are [0,100].
func parseTrustScores(raw string) (map[string]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	scores := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid trust score %q, want source=score", pair)
		}
		score, err := strconv.ParseFloat(value, 64)
		if err != nil || score < 0 || score > 100 {
			return nil, fmt.Errorf("invalid trust score %q, want a number in [0,100]", pair)
		}
		scores[strings.TrimSpace(name)] = score
	}
	return scores, nil
}

func initLogging(verbose bool) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console"})
}
