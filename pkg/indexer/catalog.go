package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/paperlens/mathdex/internal/index"
	"github.com/paperlens/mathdex/internal/store"
)

// ErrNilCatalog means a CatalogIndexer was built without a catalog.
var ErrNilCatalog = errors.New("catalog is required")

// CatalogIndexer feeds analyzed documents into the lexical equation
// catalog.
//
// Callers hand it whole index.Index values; each equation becomes one
// catalog entry carrying its surrounding context, normalized markup,
// and the names of every concept linked to it. The indexer adds no
// locking of its own. Both catalog backends serialize writes
// internally, so it may be shared across goroutines.
type CatalogIndexer struct {
	catalog store.Catalog
	closed  atomic.Bool
}

// NewCatalogIndexer wraps cat. A nil catalog returns ErrNilCatalog.
func NewCatalogIndexer(cat store.Catalog) (*CatalogIndexer, error) {
	if cat == nil {
		return nil, ErrNilCatalog
	}
	return &CatalogIndexer{catalog: cat}, nil
}

// IndexDocument catalogs every equation of an analyzed document.
// Re-indexing a document replaces its entries. A nil or empty index is
// a no-op.
func (i *CatalogIndexer) IndexDocument(ctx context.Context, idx *index.Index) error {
	if idx == nil || len(idx.Equations) == 0 {
		return nil
	}

	if err := i.catalog.Index(ctx, entriesFromIndex(idx)); err != nil {
		return fmt.Errorf("catalog index: %w", err)
	}
	return nil
}

// Delete removes catalog entries by equation id. Unknown ids and empty
// slices are no-ops.
func (i *CatalogIndexer) Delete(ctx context.Context, equationIDs []string) error {
	if len(equationIDs) == 0 {
		return nil
	}

	if err := i.catalog.Delete(ctx, equationIDs); err != nil {
		return fmt.Errorf("catalog delete: %w", err)
	}
	return nil
}

// DeleteDocument removes every entry cataloged for one document.
// Unknown and empty document ids are no-ops.
func (i *CatalogIndexer) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return nil
	}

	if err := i.catalog.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("catalog delete document: %w", err)
	}
	return nil
}

// Count reports how many equations the catalog holds. The number is a
// snapshot and may be stale by the time the caller reads it.
func (i *CatalogIndexer) Count() (int, error) {
	n, err := i.catalog.Count()
	if err != nil {
		return 0, fmt.Errorf("catalog count: %w", err)
	}
	return n, nil
}

// Close closes the underlying catalog. Only the first call reaches the
// catalog; later calls return nil.
func (i *CatalogIndexer) Close() error {
	if i.closed.Swap(true) {
		return nil
	}

	if err := i.catalog.Close(); err != nil {
		return fmt.Errorf("catalog close: %w", err)
	}
	return nil
}

// entriesFromIndex flattens an index into catalog entries. Equations are
// emitted in id order and concept names in concept-id order, so the same
// index always produces the same entries.
func entriesFromIndex(idx *index.Index) []*store.CatalogEntry {
	// Invert the concept-to-equation links so each entry can carry the
	// names of the concepts discussed alongside it.
	conceptNames := make(map[string][]string)
	for _, c := range idx.SortedConcepts() {
		for _, eqID := range c.Equations {
			conceptNames[eqID] = append(conceptNames[eqID], c.Name)
		}
	}

	entries := make([]*store.CatalogEntry, 0, len(idx.Equations))
	for _, eq := range idx.SortedEquations() {
		entries = append(entries, &store.CatalogEntry{
			EquationID:   eq.ID,
			DocumentID:   idx.DocumentID,
			EquationType: string(eq.Type),
			Markup:       eq.NormalizedMarkup,
			Context:      eq.Context,
			Concepts:     conceptNames[eq.ID],
		})
	}

	return entries
}

var _ Indexer = (*CatalogIndexer)(nil)
