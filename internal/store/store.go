package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/paperlens/mathdex/internal/concept"
	"github.com/paperlens/mathdex/internal/equation"
	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/graph"
	"github.com/paperlens/mathdex/internal/telemetry"
)

// storedTimeFormat keeps nanoseconds fixed-width so lexicographic order on
// the created_at column matches chronological order.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// checkpointStmt folds the WAL back into the main database file.
const checkpointStmt = "PRAGMA wal_checkpoint(TRUNCATE)"

var errStoreClosed = errors.New("store is closed")

// SQLiteStore implements DocumentStore on a single SQLite database.
// WAL mode allows a watch daemon and ad-hoc readers to share the file.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	file   string
	closed bool
}

var _ DocumentStore = (*SQLiteStore)(nil)

// StoreConfig configures the SQLite document store.
type StoreConfig struct {
	// CacheMB is the SQLite page cache size in megabytes (default: 64).
	CacheMB int
}

// DefaultStoreConfig returns default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{CacheMB: 64}
}

// validateStoreIntegrity reports whether an existing database file is
// usable. A file that is missing entirely passes; the open will create it.
func validateStoreIntegrity(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	ro := path + "?mode=ro"
	db, err := sql.Open("sqlite", ro)
	if err != nil {
		return fmt.Errorf("open read-only: %w", err)
	}
	defer func() { _ = db.Close() }()

	var verdict string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&verdict); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if verdict != "ok" {
		return fmt.Errorf("integrity check reports %q", verdict)
	}

	var n int
	err = db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'documents'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if n == 0 {
		return errors.New("documents table missing")
	}
	return nil
}

// clearIfCorrupt removes an unreadable database file along with its WAL
// sidecars. The index is derived data, so a rebuild via 'mathdex analyze'
// beats refusing to start.
func clearIfCorrupt(dbPath string) error {
	verr := validateStoreIntegrity(dbPath)
	if verr == nil {
		return nil
	}
	slog.Warn("store_corrupted",
		slog.String("path", dbPath),
		slog.String("detail", verr.Error()))

	if rmErr := os.Remove(dbPath); rmErr != nil && !os.IsNotExist(rmErr) {
		return mderrors.New(mderrors.CodeStoreCorrupt,
			fmt.Sprintf("store corrupted at %s and cannot be cleared: %v (corruption: %v)",
				dbPath, rmErr, verr), verr).
			WithHint("delete the file by hand and run 'mathdex analyze' again")
	}
	for _, sidecar := range []string{dbPath + "-wal", dbPath + "-shm"} {
		_ = os.Remove(sidecar)
	}

	slog.Info("store_cleared", slog.String("path", dbPath), slog.String("reason", verr.Error()))
	return nil
}

// NewSQLiteStore creates a document store with default configuration.
// An empty path opens a throwaway in-memory store, handy in tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(dbPath, DefaultStoreConfig())
}

// NewSQLiteStoreWithConfig creates a document store at dbPath. A corrupted
// database at that path is cleared and recreated rather than reported.
func NewSQLiteStoreWithConfig(dbPath string, cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.CacheMB <= 0 {
		cfg.CacheMB = DefaultStoreConfig().CacheMB
	}

	dsn := ":memory:"
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		if err := clearIfCorrupt(dbPath); err != nil {
			return nil, err
		}
		dsn = dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps
	// our own goroutines from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, file: dbPath}
	if err := s.setup(cfg); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// setup issues the session PRAGMAs and creates the tables. modernc.org/sqlite
// ignores some DSN parameters, WAL mode among them, so every PRAGMA is issued
// explicitly here.
func (s *SQLiteStore) setup(cfg StoreConfig) error {
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheMB*1024), // negative means KB
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON", // document deletes cascade to derived rows
	} {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply %q: %w", p, err)
		}
	}
	if err := s.initSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// initSchema creates the document tables and the shared telemetry tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Bumped when the table layout changes
	CREATE TABLE IF NOT EXISTS schema_info (version INTEGER PRIMARY KEY);

	-- One row per analyzed document
	CREATE TABLE IF NOT EXISTS documents (
		document_id    TEXT PRIMARY KEY,
		created_at     TEXT NOT NULL,
		equation_count INTEGER NOT NULL DEFAULT 0,
		concept_count  INTEGER NOT NULL DEFAULT 0,
		graph_nodes    INTEGER NOT NULL DEFAULT 0,
		graph_edges    INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

	-- Extracted equations; list-valued fields stored as JSON arrays
	CREATE TABLE IF NOT EXISTS equations (
		equation_id       TEXT NOT NULL,
		document_id       TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
		raw_markup        TEXT NOT NULL,
		normalized_markup TEXT NOT NULL,
		equation_type     TEXT NOT NULL,
		complexity        REAL NOT NULL DEFAULT 0,
		context           TEXT NOT NULL DEFAULT '',
		variables         TEXT NOT NULL DEFAULT '[]',
		functions         TEXT NOT NULL DEFAULT '[]',
		operators         TEXT NOT NULL DEFAULT '[]',
		constants         TEXT NOT NULL DEFAULT '[]',
		labels            TEXT NOT NULL DEFAULT '[]',
		refs              TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (document_id, equation_id)
	);

	-- Recognized concepts
	CREATE TABLE IF NOT EXISTS concepts (
		concept_id   TEXT NOT NULL,
		document_id  TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
		name         TEXT NOT NULL,
		concept_type TEXT NOT NULL,
		notation     TEXT NOT NULL DEFAULT '[]',
		related      TEXT NOT NULL DEFAULT '[]',
		equations    TEXT NOT NULL DEFAULT '[]',
		frequency    INTEGER NOT NULL DEFAULT 0,
		importance   REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (document_id, concept_id)
	);

	-- Concept graph edges, stored once with source < target
	CREATE TABLE IF NOT EXISTS graph_edges (
		document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
		source      TEXT NOT NULL,
		target      TEXT NOT NULL,
		weight      REAL NOT NULL,
		PRIMARY KEY (document_id, source, target)
	);

	-- Pairwise similarity, upper triangle only with id_a < id_b
	CREATE TABLE IF NOT EXISTS similarity (
		document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
		id_a        TEXT NOT NULL,
		id_b        TEXT NOT NULL,
		score       REAL NOT NULL,
		PRIMARY KEY (document_id, id_a, id_b)
	);

	INSERT OR IGNORE INTO schema_info (version) VALUES (1);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	// Telemetry shares the database file
	return telemetry.InitSchema(s.db)
}

// DB exposes the underlying database handle so the telemetry store can
// persist its tables in the same file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// forEachRow runs query and feeds every result row to scan. Errors from the
// query, from scan, and from the iteration itself all surface unwrapped so
// callers can add the operation context once.
func (s *SQLiteStore) forEachRow(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// marshalStrings stores a string slice as a JSON array. Nil is stored as the
// empty array so loads always return non-nil slices.
func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode string list: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings decodes a JSON array column back into a string slice.
func unmarshalStrings(src string) ([]string, error) {
	if src == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(src), &values); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// SaveDocument stores a snapshot, replacing any previous version of the same
// document. The replace is transactional: readers see either the old document
// or the new one, never a mix.
func (s *SQLiteStore) SaveDocument(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is required")
	}
	if snap.DocumentID == "" {
		return fmt.Errorf("document id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Delete-then-insert; foreign keys cascade the old derived rows
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE document_id = ?`, snap.DocumentID); err != nil {
		return fmt.Errorf("clear previous document: %w", err)
	}

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	graphNodes, graphEdges := 0, 0
	if snap.Graph != nil {
		graphNodes = snap.Graph.NodeCount()
		graphEdges = snap.Graph.EdgeCount()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (document_id, created_at, equation_count, concept_count, graph_nodes, graph_edges)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.DocumentID, createdAt.Format(storedTimeFormat),
		len(snap.Equations), len(snap.Concepts), graphNodes, graphEdges); err != nil {
		return fmt.Errorf("insert document row: %w", err)
	}

	if err := s.insertEquations(ctx, tx, snap.DocumentID, snap.Equations); err != nil {
		return err
	}
	if err := s.insertConcepts(ctx, tx, snap.DocumentID, snap.Concepts); err != nil {
		return err
	}

	if snap.Graph != nil {
		edgeStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO graph_edges (document_id, source, target, weight) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare edge insert: %w", err)
		}
		defer func() { _ = edgeStmt.Close() }()

		// Edges() already yields each edge once with source < target
		for _, e := range snap.Graph.Edges() {
			if _, err := edgeStmt.ExecContext(ctx, snap.DocumentID, e.Source, e.Target, e.Weight); err != nil {
				return fmt.Errorf("insert edge %s-%s: %w", e.Source, e.Target, err)
			}
		}
	}

	simStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO similarity (document_id, id_a, id_b, score) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare similarity insert: %w", err)
	}
	defer func() { _ = simStmt.Close() }()

	// The matrix is symmetric; store the upper triangle only
	for a, row := range snap.Similarity {
		for b, score := range row {
			if a < b {
				if _, err := simStmt.ExecContext(ctx, snap.DocumentID, a, b, score); err != nil {
					return fmt.Errorf("insert similarity %s-%s: %w", a, b, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) insertEquations(ctx context.Context, tx *sql.Tx, documentID string, equations []equation.Equation) error {
	if len(equations) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO equations (equation_id, document_id, raw_markup, normalized_markup, equation_type,
		 complexity, context, variables, functions, operators, constants, labels, refs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare equation insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, eq := range equations {
		cols := make([]string, 0, 6)
		for _, list := range [][]string{eq.Variables, eq.Functions, eq.Operators, eq.Constants, eq.Labels, eq.References} {
			encoded, err := marshalStrings(list)
			if err != nil {
				return err
			}
			cols = append(cols, encoded)
		}

		if _, err := stmt.ExecContext(ctx,
			eq.ID, documentID, eq.RawMarkup, eq.NormalizedMarkup, string(eq.Type),
			eq.Complexity, eq.Context,
			cols[0], cols[1], cols[2], cols[3], cols[4], cols[5]); err != nil {
			return fmt.Errorf("insert equation %s: %w", eq.ID, err)
		}
	}

	return nil
}

func (s *SQLiteStore) insertConcepts(ctx context.Context, tx *sql.Tx, documentID string, concepts []concept.Concept) error {
	if len(concepts) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO concepts (concept_id, document_id, name, concept_type, notation, related, equations, frequency, importance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare concept insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range concepts {
		notation, err := marshalStrings(c.Notation)
		if err != nil {
			return err
		}
		related, err := marshalStrings(c.RelatedConcepts)
		if err != nil {
			return err
		}
		linked, err := marshalStrings(c.Equations)
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx,
			c.ID, documentID, c.Name, string(c.Type),
			notation, related, linked, c.Frequency, c.Importance); err != nil {
			return fmt.Errorf("insert concept %s: %w", c.ID, err)
		}
	}

	return nil
}

// LoadDocument reconstructs a stored snapshot. Graph nodes are the stored
// concept ids, edges restore weights in both directions, and the similarity
// matrix comes back symmetric with an empty row for every equation, matching
// the shape the scorer produces.
func (s *SQLiteStore) LoadDocument(ctx context.Context, documentID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errStoreClosed
	}

	var stamp string
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM documents WHERE document_id = ?`, documentID).Scan(&stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mderrors.New(mderrors.CodeUnknownDocument,
			fmt.Sprintf("no stored document with id %s", documentID), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read document row: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	equations, err := s.loadEquations(ctx, documentID)
	if err != nil {
		return nil, err
	}
	concepts, err := s.loadConcepts(ctx, documentID)
	if err != nil {
		return nil, err
	}

	g := graph.New()
	for _, c := range concepts {
		g.AddNode(c.ID)
	}
	if err := s.loadEdges(ctx, documentID, g); err != nil {
		return nil, err
	}

	similarity := make(map[string]map[string]float64, len(equations))
	for _, eq := range equations {
		similarity[eq.ID] = make(map[string]float64)
	}
	if err := s.loadSimilarity(ctx, documentID, similarity); err != nil {
		return nil, err
	}

	return &Snapshot{
		DocumentID: documentID,
		CreatedAt:  createdAt,
		Equations:  equations,
		Concepts:   concepts,
		Graph:      g,
		Similarity: similarity,
	}, nil
}

func (s *SQLiteStore) loadEquations(ctx context.Context, documentID string) ([]equation.Equation, error) {
	var equations []equation.Equation
	err := s.forEachRow(ctx,
		`SELECT equation_id, raw_markup, normalized_markup, equation_type, complexity, context,
		        variables, functions, operators, constants, labels, refs
		 FROM equations WHERE document_id = ? ORDER BY equation_id`,
		func(rows *sql.Rows) error {
			var eq equation.Equation
			var eqType string
			var variables, functions, operators, constants, labels, refs string

			err := rows.Scan(&eq.ID, &eq.RawMarkup, &eq.NormalizedMarkup, &eqType, &eq.Complexity, &eq.Context,
				&variables, &functions, &operators, &constants, &labels, &refs)
			if err != nil {
				return err
			}

			eq.Type = equation.ParseType(eqType)
			if eq.Variables, err = unmarshalStrings(variables); err != nil {
				return err
			}
			if eq.Functions, err = unmarshalStrings(functions); err != nil {
				return err
			}
			if eq.Operators, err = unmarshalStrings(operators); err != nil {
				return err
			}
			if eq.Constants, err = unmarshalStrings(constants); err != nil {
				return err
			}
			if eq.Labels, err = unmarshalStrings(labels); err != nil {
				return err
			}
			if eq.References, err = unmarshalStrings(refs); err != nil {
				return err
			}

			equations = append(equations, eq)
			return nil
		}, documentID)
	if err != nil {
		return nil, fmt.Errorf("load equations: %w", err)
	}
	return equations, nil
}

func (s *SQLiteStore) loadConcepts(ctx context.Context, documentID string) ([]concept.Concept, error) {
	var concepts []concept.Concept
	err := s.forEachRow(ctx,
		`SELECT concept_id, name, concept_type, notation, related, equations, frequency, importance
		 FROM concepts WHERE document_id = ? ORDER BY concept_id`,
		func(rows *sql.Rows) error {
			var c concept.Concept
			var conceptType string
			var notation, related, linked string

			err := rows.Scan(&c.ID, &c.Name, &conceptType, &notation, &related, &linked,
				&c.Frequency, &c.Importance)
			if err != nil {
				return err
			}

			c.Type = concept.ParseType(conceptType)
			if c.Notation, err = unmarshalStrings(notation); err != nil {
				return err
			}
			if c.RelatedConcepts, err = unmarshalStrings(related); err != nil {
				return err
			}
			if c.Equations, err = unmarshalStrings(linked); err != nil {
				return err
			}

			concepts = append(concepts, c)
			return nil
		}, documentID)
	if err != nil {
		return nil, fmt.Errorf("load concepts: %w", err)
	}
	return concepts, nil
}

func (s *SQLiteStore) loadEdges(ctx context.Context, documentID string, g *graph.ConceptGraph) error {
	err := s.forEachRow(ctx,
		`SELECT source, target, weight FROM graph_edges WHERE document_id = ?`,
		func(rows *sql.Rows) error {
			var source, target string
			var weight float64
			if err := rows.Scan(&source, &target, &weight); err != nil {
				return err
			}
			g.AddEdge(source, target, weight)
			return nil
		}, documentID)
	if err != nil {
		return fmt.Errorf("load graph edges: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadSimilarity(ctx context.Context, documentID string, matrix map[string]map[string]float64) error {
	err := s.forEachRow(ctx,
		`SELECT id_a, id_b, score FROM similarity WHERE document_id = ?`,
		func(rows *sql.Rows) error {
			var a, b string
			var score float64
			if err := rows.Scan(&a, &b, &score); err != nil {
				return err
			}
			if matrix[a] == nil {
				matrix[a] = make(map[string]float64)
			}
			if matrix[b] == nil {
				matrix[b] = make(map[string]float64)
			}
			matrix[a][b] = score
			matrix[b][a] = score
			return nil
		}, documentID)
	if err != nil {
		return fmt.Errorf("load similarity: %w", err)
	}
	return nil
}

// ListDocuments returns stored documents, most recent first.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errStoreClosed
	}

	var infos []*DocumentInfo
	err := s.forEachRow(ctx,
		`SELECT document_id, created_at, equation_count, concept_count, graph_nodes, graph_edges
		 FROM documents ORDER BY created_at DESC, document_id`,
		func(rows *sql.Rows) error {
			info := &DocumentInfo{}
			var stamp string
			err := rows.Scan(&info.DocumentID, &stamp, &info.EquationCount,
				&info.ConceptCount, &info.GraphNodes, &info.GraphEdges)
			if err != nil {
				return err
			}
			if info.CreatedAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
				return fmt.Errorf("parse created_at: %w", err)
			}
			infos = append(infos, info)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return infos, nil
}

// LatestDocumentID returns the id of the most recently analyzed document.
func (s *SQLiteStore) LatestDocumentID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", errStoreClosed
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id FROM documents ORDER BY created_at DESC, document_id LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", mderrors.New(mderrors.CodeUnknownDocument,
			"no documents have been analyzed yet", nil)
	}
	if err != nil {
		return "", fmt.Errorf("read latest document: %w", err)
	}

	return id, nil
}

// DeleteDocument removes a document; foreign keys cascade to equations,
// concepts, edges, and similarity rows.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read delete result: %w", err)
	}
	if affected == 0 {
		return mderrors.New(mderrors.CodeUnknownDocument,
			fmt.Sprintf("no stored document with id %s", documentID), nil)
	}

	return nil
}

// AllEquationIDs returns the distinct equation ids across all stored
// documents. Used for consistency checking against the catalog.
func (s *SQLiteStore) AllEquationIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errStoreClosed
	}

	var ids []string
	err := s.forEachRow(ctx,
		`SELECT DISTINCT equation_id FROM equations ORDER BY equation_id`,
		func(rows *sql.Rows) error {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list equation ids: %w", err)
	}
	return ids, nil
}

// Checkpoint forces a WAL checkpoint so long-running writers (the watch
// daemon) keep the log from growing without bound.
func (s *SQLiteStore) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed
	}

	_, err := s.db.Exec(checkpointStmt)
	return err
}

// Close checkpoints the WAL and closes the store. Repeated calls are no-ops.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec(checkpointStmt)
	return s.db.Close()
}

// GetStorePath returns the database path inside a data directory.
func GetStorePath(dataDir string) string {
	return filepath.Join(dataDir, "index.db")
}

// describeSize renders a byte count for status output.
func describeSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// SizeOnDisk reports the store file size including the WAL, 0 for in-memory
// stores. The rendered form feeds status output.
func (s *SQLiteStore) SizeOnDisk() (int64, string) {
	if s.file == "" {
		return 0, "in-memory"
	}
	var total int64
	for _, p := range []string{s.file, s.file + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total, describeSize(total)
}
