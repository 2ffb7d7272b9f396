package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// missKeep caps the persisted list of queries that found nothing.
const missKeep = 100

// MetricsStore persists query telemetry in the shared index database. It
// is the sink behind the CLI query commands; the read side feeds
// 'mathdex stats queries'.
type MetricsStore struct {
	db *sql.DB
}

var _ MetricsSink = (*MetricsStore)(nil)

// NewMetricsStore wraps an open database handle. The telemetry tables must
// already exist; the index store creates them through its migrations.
func NewMetricsStore(db *sql.DB) (*MetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database handle")
	}
	return &MetricsStore{db: db}, nil
}

// InitSchema creates the telemetry tables when they are missing. The index
// store runs it from its own migrations so telemetry lands in the same
// database file.
func InitSchema(db *sql.DB) error {
	ddl := `
	-- Searches per surface, one row per day
	CREATE TABLE IF NOT EXISTS query_surface_daily (
		day     TEXT NOT NULL,
		surface TEXT NOT NULL,
		hits    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, surface)
	);

	-- How often each search term comes up
	CREATE TABLE IF NOT EXISTS term_frequency (
		term     TEXT PRIMARY KEY,
		hits     INTEGER NOT NULL DEFAULT 1,
		last_hit TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_term_frequency_hits ON term_frequency(hits DESC);

	-- Most recent queries that found nothing
	CREATE TABLE IF NOT EXISTS zero_hit_queries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		query_text TEXT NOT NULL,
		seen_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Latency histogram, one row per day and bucket
	CREATE TABLE IF NOT EXISTS latency_daily (
		day     TEXT NOT NULL,
		bucket  TEXT NOT NULL,
		hits    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, bucket)
	);
	`

	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("init telemetry schema: %w", err)
	}
	return nil
}

// execBatch runs one prepared statement over every row inside a single
// transaction. A nil or empty row set is a no-op.
func (s *MetricsStore) execBatch(q string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(q)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		if _, err := stmt.Exec(row...); err != nil {
			return fmt.Errorf("exec batch row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// sumByKey totals the hits column per key over a day range.
func (s *MetricsStore) sumByKey(q, since, until string) (map[string]int64, error) {
	rows, err := s.db.Query(q, since, until)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	totals := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan total: %w", err)
		}
		totals[key] = n
	}
	return totals, rows.Err()
}

// AddSurfaceCounts folds counts into the daily per-surface totals.
func (s *MetricsStore) AddSurfaceCounts(day string, counts map[Surface]int64) error {
	rows := make([][]any, 0, len(counts))
	for surface, n := range counts {
		rows = append(rows, []any{day, string(surface), n})
	}
	return s.execBatch(`
		INSERT INTO query_surface_daily (day, surface, hits) VALUES (?, ?, ?)
		ON CONFLICT(day, surface) DO UPDATE SET hits = hits + excluded.hits`,
		rows)
}

// SurfaceCounts totals per-surface counts over a day range, both ends
// inclusive.
func (s *MetricsStore) SurfaceCounts(since, until string) (map[Surface]int64, error) {
	totals, err := s.sumByKey(`
		SELECT surface, SUM(hits) FROM query_surface_daily
		WHERE day >= ? AND day <= ? GROUP BY surface`, since, until)
	if err != nil {
		return nil, err
	}

	counts := make(map[Surface]int64, len(totals))
	for k, v := range totals {
		counts[Surface(k)] = v
	}
	return counts, nil
}

// AddTermCounts folds counts into the term frequency table.
func (s *MetricsStore) AddTermCounts(byTerm map[string]int64) error {
	rows := make([][]any, 0, len(byTerm))
	for term, n := range byTerm {
		rows = append(rows, []any{term, n})
	}
	return s.execBatch(`
		INSERT INTO term_frequency (term, hits, last_hit) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET hits = hits + excluded.hits, last_hit = CURRENT_TIMESTAMP`,
		rows)
}

// TopTerms returns the most frequent terms, highest count first.
func (s *MetricsStore) TopTerms(n int) ([]TermCount, error) {
	rows, err := s.db.Query(
		`SELECT term, hits FROM term_frequency ORDER BY hits DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("load top terms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TermCount
	for rows.Next() {
		var entry TermCount
		if err := rows.Scan(&entry.Term, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan term row: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// RecordMiss records a query that found nothing, keeping only the newest
// missKeep entries.
func (s *MetricsStore) RecordMiss(text string, at time.Time) error {
	if _, err := s.db.Exec(
		`INSERT INTO zero_hit_queries (query_text, seen_at) VALUES (?, ?)`,
		text, at); err != nil {
		return fmt.Errorf("record zero-hit query: %w", err)
	}

	if _, err := s.db.Exec(`
		DELETE FROM zero_hit_queries WHERE id NOT IN
			(SELECT id FROM zero_hit_queries ORDER BY id DESC LIMIT ?)`,
		missKeep); err != nil {
		return fmt.Errorf("trim zero-hit queries: %w", err)
	}
	return nil
}

// RecentMisses returns recent queries that found nothing, newest first.
func (s *MetricsStore) RecentMisses(n int) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT query_text FROM zero_hit_queries ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("load zero-hit queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan zero-hit row: %w", err)
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// AddLatencyCounts folds counts into the daily latency histogram.
func (s *MetricsStore) AddLatencyCounts(day string, counts map[Bucket]int64) error {
	rows := make([][]any, 0, len(counts))
	for bucket, n := range counts {
		rows = append(rows, []any{day, string(bucket), n})
	}
	return s.execBatch(`
		INSERT INTO latency_daily (day, bucket, hits) VALUES (?, ?, ?)
		ON CONFLICT(day, bucket) DO UPDATE SET hits = hits + excluded.hits`,
		rows)
}

// LatencyCounts totals the latency histogram over a day range, both ends
// inclusive.
func (s *MetricsStore) LatencyCounts(since, until string) (map[Bucket]int64, error) {
	totals, err := s.sumByKey(`
		SELECT bucket, SUM(hits) FROM latency_daily
		WHERE day >= ? AND day <= ? GROUP BY bucket`, since, until)
	if err != nil {
		return nil, err
	}

	counts := make(map[Bucket]int64, len(totals))
	for k, v := range totals {
		counts[Bucket(k)] = v
	}
	return counts, nil
}
