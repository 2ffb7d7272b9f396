package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go driver, no cgo
)

// SQLiteCatalog implements Catalog using SQLite FTS5.
// WAL mode allows the watch daemon and ad-hoc lookups to share the catalog
// across processes.
type SQLiteCatalog struct {
	mu      sync.RWMutex
	db      *sql.DB
	path    string
	conf    CatalogConfig
	stopSet map[string]struct{}
	closed  bool
}

var _ Catalog = (*SQLiteCatalog)(nil)

// NewSQLiteCatalog creates a SQLite FTS5-backed catalog at path, or an
// in-memory one when path is empty. A database file that fails the
// integrity probe is wiped and rebuilt empty.
func NewSQLiteCatalog(path string, cfg CatalogConfig) (*SQLiteCatalog, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultCatalogConfig().MaxResults
	}
	if cfg.StopWords == nil {
		cfg.StopWords = DefaultMathStopWords
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		if probeErr := ftsCatalogIntact(path); probeErr != nil {
			if err := discardFTSCatalog(path, probeErr); err != nil {
				return nil, err
			}
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := openCatalogDB(dsn)
	if err != nil {
		return nil, err
	}

	cat := &SQLiteCatalog{
		db:      db,
		path:    path,
		conf:    cfg,
		stopSet: StopWordSet(cfg.StopWords),
	}
	if err := cat.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init catalog schema: %w", err)
	}
	return cat, nil
}

// ftsCatalogIntact probes an existing catalog database before it is opened
// for real. A missing file is fine, the schema will be created; anything
// that fails the integrity check or lacks the FTS5 table has to go.
func ftsCatalogIntact(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	probe, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open catalog for validation: %w", err)
	}
	defer func() { _ = probe.Close() }()

	var verdict string
	if err := probe.QueryRow("PRAGMA integrity_check").Scan(&verdict); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if verdict != "ok" {
		return fmt.Errorf("integrity check reports: %s", verdict)
	}

	var tables int
	err = probe.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'catalog_fts'`).Scan(&tables)
	switch {
	case err != nil:
		return fmt.Errorf("schema lookup failed: %w", err)
	case tables == 0:
		return fmt.Errorf("FTS5 table 'catalog_fts' missing")
	}
	return nil
}

// discardFTSCatalog removes a corrupted catalog database along with its WAL
// sidecar files so a fresh one can be built in its place.
func discardFTSCatalog(path string, cause error) error {
	slog.Warn("catalog_corrupted",
		slog.String("path", path),
		slog.String("error", cause.Error()))

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("catalog corrupted at %s and cannot remove: %w (original error: %v)", path, err, cause)
	}
	for _, sidecar := range []string{path + "-wal", path + "-shm"} {
		_ = os.Remove(sidecar)
	}

	slog.Info("catalog_cleared",
		slog.String("path", path),
		slog.String("reason", "corruption detected, please re-analyze"))
	return nil
}

// openCatalogDB opens the SQLite handle with the pool and pragma settings
// the catalog needs. modernc.org/sqlite ignores some DSN parameters, so the
// pragmas are applied as statements as well.
func openCatalogDB(dsn string) (*sql.DB, error) {
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	// One writer keeps FTS5 updates from fighting over the file lock.
	handle.SetMaxOpenConns(1)
	handle.SetMaxIdleConns(1)
	handle.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := handle.Exec(pragma); err != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return handle, nil
}

// initSchema creates the FTS5 table and its companions when missing.
func (c *SQLiteCatalog) initSchema() error {
	const schema = `
	-- Schema revision stamp, checked by future migrations
	CREATE TABLE IF NOT EXISTS schema_info (
		rev INTEGER PRIMARY KEY
	);

	-- FTS5 virtual table for full-text search with BM25 scoring.
	-- Identity columns are UNINDEXED (stored but not searchable); terms
	-- stores pre-tokenized text. Prefix indexes speed up short-term lookups.
	CREATE VIRTUAL TABLE IF NOT EXISTS catalog_fts USING fts5(
		equation_id UNINDEXED,
		document_id UNINDEXED,
		equation_type UNINDEXED,
		terms,
		tokenize='unicode61',
		prefix='2 3'
	);

	-- Auxiliary table tracking entries per document (Count, DeleteDocument).
	-- FTS5 doesn't expose rowid reliably for external content tables.
	CREATE TABLE IF NOT EXISTS catalog_entries (
		equation_id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_catalog_entries_document ON catalog_entries(document_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return err
	}
	_, err := c.db.Exec(`INSERT OR IGNORE INTO schema_info (rev) VALUES (1)`)
	return err
}

// searchTerms runs text through the LaTeX-aware tokenizer and the stop word
// filter. Index and Search share it so queries tokenize exactly like the
// cataloged side.
func (c *SQLiteCatalog) searchTerms(text string) []string {
	return DropStopWords(TokenizeMath(text), c.stopSet)
}

// withTx runs fn inside a transaction. The transaction is rolled back
// unless fn succeeds and the commit goes through.
func (c *SQLiteCatalog) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if cerr := tx.Commit(); cerr != nil {
		return fmt.Errorf("failed to commit: %w", cerr)
	}
	return nil
}

// Index adds entries to the catalog.
// An existing entry with the same equation id is updated (delete + insert).
func (c *SQLiteCatalog) Index(ctx context.Context, entries []*CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errCatalogClosed
	}

	return c.withTx(ctx, func(tx *sql.Tx) error {
		// FTS5 virtual tables don't support REPLACE, so clear first.
		purge, err := tx.PrepareContext(ctx, `DELETE FROM catalog_fts WHERE equation_id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare fts delete: %w", err)
		}
		defer purge.Close()

		insert, err := tx.PrepareContext(ctx,
			`INSERT INTO catalog_fts(equation_id, document_id, equation_type, terms) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare fts insert: %w", err)
		}
		defer insert.Close()

		track, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO catalog_entries(equation_id, document_id) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare entry upsert: %w", err)
		}
		defer track.Close()

		for _, entry := range entries {
			terms := strings.Join(c.searchTerms(entry.searchText()), " ")

			if _, err := purge.ExecContext(ctx, entry.EquationID); err != nil {
				return fmt.Errorf("failed to delete existing entry %s: %w", entry.EquationID, err)
			}
			if _, err := insert.ExecContext(ctx, entry.EquationID, entry.DocumentID, entry.EquationType, terms); err != nil {
				return fmt.Errorf("failed to index entry %s: %w", entry.EquationID, err)
			}
			if _, err := track.ExecContext(ctx, entry.EquationID, entry.DocumentID); err != nil {
				return fmt.Errorf("failed to track entry %s: %w", entry.EquationID, err)
			}
		}
		return nil
	})
}

// Search returns entries matching query, scored by BM25.
// The query goes through the same tokenization as indexing.
func (c *SQLiteCatalog) Search(ctx context.Context, queryStr string, limit int) ([]*CatalogResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errCatalogClosed
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*CatalogResult{}, nil
	}

	tokens := c.searchTerms(queryStr)
	if len(tokens) == 0 {
		return []*CatalogResult{}, nil
	}
	if limit < 1 {
		limit = c.conf.MaxResults
	}

	// FTS5 treats space-separated terms as AND. Its bm25() is negative
	// with lower meaning better, so ordering ascending puts the best
	// matches first.
	const searchSQL = `
		SELECT equation_id, document_id, equation_type, bm25(catalog_fts) AS score
		FROM catalog_fts
		WHERE terms MATCH ?
		ORDER BY score LIMIT ?`

	rows, err := c.db.QueryContext(ctx, searchSQL, strings.Join(tokens, " "), limit)
	switch {
	case err == nil:
	case strings.Contains(err.Error(), "fts5:"), strings.Contains(err.Error(), "syntax error"):
		// FTS5 rejects exotic query syntax; treat that as no matches.
		return []*CatalogResult{}, nil
	default:
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []*CatalogResult{}
	for rows.Next() {
		var r CatalogResult
		var rank float64
		if err := rows.Scan(&r.EquationID, &r.DocumentID, &r.EquationType, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		// Negate so higher means better, consistent with the Bleve backend.
		r.Score = -rank
		r.MatchedTerms = tokens
		results = append(results, &r)
	}

	return results, rows.Err()
}

// Delete removes entries by equation id.
func (c *SQLiteCatalog) Delete(ctx context.Context, equationIDs []string) error {
	if len(equationIDs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errCatalogClosed
	}

	return c.withTx(ctx, func(tx *sql.Tx) error {
		args := make([]any, len(equationIDs))
		for i := range equationIDs {
			args[i] = equationIDs[i]
		}
		in := strings.TrimSuffix(strings.Repeat("?,", len(equationIDs)), ",")

		for _, table := range []string{"catalog_fts", "catalog_entries"} {
			stmt := fmt.Sprintf("DELETE FROM %s WHERE equation_id IN (%s)", table, in)
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
		return nil
	})
}

// DeleteDocument removes every entry indexed for a document.
func (c *SQLiteCatalog) DeleteDocument(ctx context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errCatalogClosed
	}

	return c.withTx(ctx, func(tx *sql.Tx) error {
		// document_id is stored UNINDEXED; FTS5 still allows filtering on it.
		for _, table := range []string{"catalog_fts", "catalog_entries"} {
			stmt := fmt.Sprintf("DELETE FROM %s WHERE document_id = ?", table)
			if _, err := tx.ExecContext(ctx, stmt, documentID); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
		return nil
	})
}

// Count returns the number of cataloged equations.
func (c *SQLiteCatalog) Count() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, errCatalogClosed
	}

	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM catalog_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// AllIDs returns all cataloged equation ids.
// Used for consistency checking against the document store.
func (c *SQLiteCatalog) AllIDs() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errCatalogClosed
	}

	rows, err := c.db.Query(`SELECT equation_id FROM catalog_entries ORDER BY equation_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the catalog, checkpointing the WAL so everything lands in
// the main database file.
func (c *SQLiteCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.db == nil {
		c.closed = true
		return nil
	}
	c.closed = true

	_, _ = c.db.Exec(checkpointStmt)
	return c.db.Close()
}
