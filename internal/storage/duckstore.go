// Gigateer - Live Event Aggregation and Catalog Platform
// Copyright 2026 1mitten
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/1mitten/gigateer-sub001

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	json "github.com/goccy/go-json"

	"github.com/1mitten/gigateer-sub001/internal/config"
	"github.com/1mitten/gigateer-sub001/internal/logging"
	"github.com/1mitten/gigateer-sub001/internal/metrics"
	"github.com/1mitten/gigateer-sub001/internal/models"
)

// GigQuery is the document-store predicate set. Zero-value fields are
// unconstrained. When no date bounds are given the query defaults to
// future-only.
type GigQuery struct {
	City   string // case-insensitive equality
	Tag    string // tag-contains
	Venue  string // case-insensitive venue name equality
	Source string
	Text   string // substring across title/artists/venue/tags

	From *time.Time
	To   *time.Time

	// IncludePast disables the default future-only window when no
	// explicit bounds are set.
	IncludePast bool

	SortBy string // date (default), name, venue
	Offset int
	Limit  int
}

// QueryResult is one page plus the unpaginated match count.
type QueryResult struct {
	Gigs  []models.Gig
	Total int
}

const gigsSchema = `
CREATE TABLE IF NOT EXISTS gigs (
	gig_id      VARCHAR PRIMARY KEY,
	source      VARCHAR NOT NULL,
	title       VARCHAR NOT NULL,
	venue_name  VARCHAR,
	city        VARCHAR,
	date_start  TIMESTAMP NOT NULL,
	status      VARCHAR,
	tags_key    VARCHAR,
	search_text VARCHAR,
	doc         VARCHAR NOT NULL,
	batch_id    VARCHAR,
	updated_at  TIMESTAMP
)`

// DuckStore is the DuckDB-backed document store, indexed by gig ID. A
// health probe runs before each reuse; a failed probe forces a
// reconnect.
type DuckStore struct {
	cfg config.DatabaseConfig

	mu   sync.Mutex
	conn *sql.DB

	now func() time.Time
}

// NewDuckStore opens (or creates) the store at cfg.Path and ensures the
// schema.
func NewDuckStore(cfg config.DatabaseConfig) (*DuckStore, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	s := &DuckStore{cfg: cfg, now: time.Now}
	conn, err := s.open()
	if err != nil {
		return nil, err
	}
	s.conn = conn

	logging.Info().Str("path", cfg.Path).Msg("Document store opened")
	return s, nil
}

func (s *DuckStore) open() (*sql.DB, error) {
	conn, err := sql.Open("duckdb", s.cfg.Path+"?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if s.cfg.PoolMax > 0 {
		conn.SetMaxOpenConns(s.cfg.PoolMax)
	}
	if s.cfg.PoolMin > 0 {
		conn.SetMaxIdleConns(s.cfg.PoolMin)
	}
	if s.cfg.IdleTimeout > 0 {
		conn.SetConnMaxIdleTime(s.cfg.IdleTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.connectTimeout())
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, gigsSchema); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return conn, nil
}

func (s *DuckStore) connectTimeout() time.Duration {
	if s.cfg.ConnectTimeout > 0 {
		return s.cfg.ConnectTimeout
	}
	return 10 * time.Second
}

func (s *DuckStore) probeTimeout() time.Duration {
	if s.cfg.SelectionTimeout > 0 {
		return s.cfg.SelectionTimeout
	}
	return 5 * time.Second
}

// healthy probes the connection before reuse and reconnects when the
// probe fails.
func (s *DuckStore) healthy(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout())
	defer cancel()
	if err := s.conn.PingContext(probeCtx); err == nil {
		return s.conn, nil
	}

	logging.Warn().Str("path", s.cfg.Path).Msg("Document store probe failed, reconnecting")
	s.conn.Close() //nolint:errcheck

	conn, err := s.open()
	if err != nil {
		metrics.StoreErrors.WithLabelValues("duckdb", "reconnect").Inc()
		return nil, fmt.Errorf("reconnect: %w", err)
	}
	s.conn = conn
	metrics.StoreReconnects.Inc()
	return conn, nil
}

// Ping probes the connection, reconnecting first when the probe fails.
func (s *DuckStore) Ping(ctx context.Context) error {
	_, err := s.healthy(ctx)
	return err
}

// Close releases the underlying connection pool.
func (s *DuckStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// UpsertGigs writes records through to the store, replacing rows with
// the same gig ID. It satisfies ingest.GigUpserter.
func (s *DuckStore) UpsertGigs(ctx context.Context, gigs []models.Gig, batchID string) error {
	if len(gigs) == 0 {
		return nil
	}
	started := time.Now()

	conn, err := s.healthy(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("duckdb", "upsert").Inc()
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO gigs
		(gig_id, source, title, venue_name, city, date_start, status, tags_key, search_text, doc, batch_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("duckdb", "upsert").Inc()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, g := range gigs {
		doc, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshal gig %s: %w", g.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			g.ID, g.Source, g.Title, g.Venue.Name, g.Venue.City,
			g.DateStart.UTC(), string(g.Status), tagsKey(g.Tags), searchText(g),
			string(doc), batchID, g.UpdatedAt.UTC())
		if err != nil {
			metrics.StoreErrors.WithLabelValues("duckdb", "upsert").Inc()
			return fmt.Errorf("upsert gig %s: %w", g.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.StoreErrors.WithLabelValues("duckdb", "upsert").Inc()
		return fmt.Errorf("commit upsert: %w", err)
	}

	metrics.StoreQueryDuration.WithLabelValues("duckdb", "upsert").Observe(time.Since(started).Seconds())
	return nil
}

// Query runs the predicate set, sorted and paginated.
func (s *DuckStore) Query(ctx context.Context, q GigQuery) (*QueryResult, error) {
	started := time.Now()

	conn, err := s.healthy(ctx)
	if err != nil {
		return nil, err
	}

	where, args := buildWhere(q, s.now())

	var total int
	countSQL := "SELECT COUNT(*) FROM gigs" + where
	if err := conn.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		metrics.StoreErrors.WithLabelValues("duckdb", "query").Inc()
		return nil, fmt.Errorf("count gigs: %w", err)
	}

	pageSQL := "SELECT doc FROM gigs" + where + orderClause(q.SortBy) + " LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset)

	rows, err := conn.QueryContext(ctx, pageSQL, pageArgs...)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("duckdb", "query").Inc()
		return nil, fmt.Errorf("query gigs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var gigs []models.Gig
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan gig: %w", err)
		}
		var g models.Gig
		if err := json.Unmarshal([]byte(doc), &g); err != nil {
			return nil, fmt.Errorf("unmarshal gig: %w", err)
		}
		gigs = append(gigs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gigs: %w", err)
	}

	metrics.StoreQueryDuration.WithLabelValues("duckdb", "query").Observe(time.Since(started).Seconds())
	return &QueryResult{Gigs: gigs, Total: total}, nil
}

// GetGig returns the record for an ID, or nil when absent.
func (s *DuckStore) GetGig(ctx context.Context, id string) (*models.Gig, error) {
	conn, err := s.healthy(ctx)
	if err != nil {
		return nil, err
	}

	var doc string
	err = conn.QueryRowContext(ctx, "SELECT doc FROM gigs WHERE gig_id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("duckdb", "get").Inc()
		return nil, fmt.Errorf("get gig %s: %w", id, err)
	}

	var g models.Gig
	if err := json.Unmarshal([]byte(doc), &g); err != nil {
		return nil, fmt.Errorf("unmarshal gig %s: %w", id, err)
	}
	return &g, nil
}

// Count returns the total number of stored records.
func (s *DuckStore) Count(ctx context.Context) (int, error) {
	conn, err := s.healthy(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM gigs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count gigs: %w", err)
	}
	return n, nil
}

func buildWhere(q GigQuery, now time.Time) (string, []any) {
	var clauses []string
	var args []any

	if q.City != "" {
		clauses = append(clauses, "lower(city) = lower(?)")
		args = append(args, q.City)
	}
	if q.Venue != "" {
		clauses = append(clauses, "lower(venue_name) = lower(?)")
		args = append(args, q.Venue)
	}
	if q.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, q.Source)
	}
	if q.Tag != "" {
		clauses = append(clauses, "tags_key LIKE ?")
		args = append(args, "%|"+strings.ToLower(q.Tag)+"|%")
	}
	if q.Text != "" {
		clauses = append(clauses, "search_text LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Text)+"%")
	}

	switch {
	case q.From != nil || q.To != nil:
		if q.From != nil {
			clauses = append(clauses, "date_start >= ?")
			args = append(args, q.From.UTC())
		}
		if q.To != nil {
			clauses = append(clauses, "date_start <= ?")
			args = append(args, q.To.UTC())
		}
	case !q.IncludePast:
		// Default window: future-only.
		clauses = append(clauses, "date_start >= ?")
		args = append(args, now.UTC())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderClause(sortBy string) string {
	switch sortBy {
	case "name":
		return " ORDER BY lower(title) ASC, gig_id ASC"
	case "venue":
		return " ORDER BY lower(venue_name) ASC, gig_id ASC"
	default:
		return " ORDER BY date_start ASC, gig_id ASC"
	}
}

// tagsKey joins lowercased tags with pipe delimiters so tag-contains
// becomes a LIKE on |tag|.
func tagsKey(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	lowered := make([]string, len(tags))
	for i, t := range tags {
		lowered[i] = strings.ToLower(t)
	}
	return "|" + strings.Join(lowered, "|") + "|"
}

// searchText is the lowercased haystack for free-text search across
// title, artists, venue and tags.
func searchText(g models.Gig) string {
	parts := []string{g.Title}
	parts = append(parts, g.Artists...)
	parts = append(parts, g.Venue.Name)
	parts = append(parts, g.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}
