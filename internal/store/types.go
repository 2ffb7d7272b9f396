// Package store persists analyzed documents in SQLite and serves the
// lexical equation catalog (BM25 keyword search over equation contexts,
// markup terms, and concept names). This is the persistence layer for all
// indexed data.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/paperlens/mathdex/internal/concept"
	"github.com/paperlens/mathdex/internal/equation"
	"github.com/paperlens/mathdex/internal/graph"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// Snapshot is the persisted form of one analyzed document: everything an
// Index holds, flattened for storage. Similarity is saved as its upper
// triangle and restored symmetric on load.
type Snapshot struct {
	DocumentID string
	CreatedAt  time.Time
	Equations  []equation.Equation
	Concepts   []concept.Concept
	Graph      *graph.ConceptGraph
	Similarity map[string]map[string]float64
}

// DocumentInfo summarizes a stored document for listings.
type DocumentInfo struct {
	DocumentID    string
	CreatedAt     time.Time
	EquationCount int
	ConceptCount  int
	GraphNodes    int
	GraphEdges    int
}

// DocumentStore persists analyzed documents.
type DocumentStore interface {
	// SaveDocument stores a snapshot, replacing any previous version of the
	// same document in a single transaction.
	SaveDocument(ctx context.Context, snap *Snapshot) error

	// LoadDocument reconstructs a stored snapshot.
	LoadDocument(ctx context.Context, documentID string) (*Snapshot, error)

	// ListDocuments returns stored documents, most recent first.
	ListDocuments(ctx context.Context) ([]*DocumentInfo, error)

	// LatestDocumentID returns the id of the most recently analyzed document.
	LatestDocumentID(ctx context.Context) (string, error)

	// DeleteDocument removes a document and everything derived from it.
	DeleteDocument(ctx context.Context, documentID string) error

	// AllEquationIDs returns the distinct equation ids across all stored
	// documents (for consistency checks).
	AllEquationIDs(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
}

// CatalogEntry is one searchable unit in the lexical catalog. An equation
// appearing in several documents keeps the most recently indexed entry.
type CatalogEntry struct {
	EquationID   string
	DocumentID   string
	EquationType string
	Markup       string
	Context      string
	Concepts     []string
}

// searchText joins the searchable parts of an entry into one text blob.
func (e *CatalogEntry) searchText() string {
	parts := make([]string, 0, 3)
	if e.Context != "" {
		parts = append(parts, e.Context)
	}
	if e.Markup != "" {
		parts = append(parts, e.Markup)
	}
	if len(e.Concepts) > 0 {
		parts = append(parts, strings.Join(e.Concepts, " "))
	}
	return strings.Join(parts, " ")
}

// CatalogResult is a single catalog search hit.
type CatalogResult struct {
	EquationID   string
	DocumentID   string
	EquationType string
	Score        float64
	MatchedTerms []string
}

// Catalog provides keyword search over cataloged equations using BM25.
type Catalog interface {
	// Index adds entries to the catalog. An existing entry with the same
	// equation id is replaced.
	Index(ctx context.Context, entries []*CatalogEntry) error

	// Search returns entries matching query, scored by BM25. A limit <= 0
	// falls back to the configured maximum.
	Search(ctx context.Context, query string, limit int) ([]*CatalogResult, error)

	// Delete removes entries by equation id.
	Delete(ctx context.Context, equationIDs []string) error

	// DeleteDocument removes every entry indexed for a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of cataloged equations.
	Count() (int, error)

	// AllIDs returns all cataloged equation ids (for consistency checks).
	AllIDs() ([]string, error)

	// Lifecycle
	Close() error
}

// CatalogConfig configures catalog backends.
type CatalogConfig struct {
	// StopWords is a list of terms to filter out during tokenization.
	StopWords []string

	// MaxResults caps Search results when the caller passes limit <= 0
	// (default: 20).
	MaxResults int
}

// DefaultCatalogConfig returns default catalog configuration.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		StopWords:  DefaultMathStopWords,
		MaxResults: 20,
	}
}

// DefaultMathStopWords contains LaTeX layout commands and common prose words
// that carry no search signal in equation contexts.
var DefaultMathStopWords = []string{
	"begin", "end", "left", "right", "quad", "qquad", "nonumber", "notag",
	"label", "text", "mathrm", "displaystyle",
	"the", "and", "for", "with", "that", "this", "where", "which", "from", "are",
}
