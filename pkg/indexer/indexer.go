package indexer

import (
	"context"

	"github.com/paperlens/mathdex/internal/index"
)

// Indexer is the write side of the equation catalog.
//
// The analysis pipeline talks to the catalog only through this
// interface: it hands over whole analyzed documents and never sees the
// entry layout underneath. Implementations are safe for concurrent use
// and honor context cancellation on every mutating call.
type Indexer interface {
	// IndexDocument catalogs every equation of idx. Re-indexing a
	// document replaces its entries; a nil or empty index is a no-op.
	IndexDocument(ctx context.Context, idx *index.Index) error

	// Delete removes entries by equation id. Unknown ids are ignored.
	Delete(ctx context.Context, equationIDs []string) error

	// DeleteDocument drops every entry cataloged for one document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count reports the number of cataloged equations.
	Count() (int, error)

	// Close releases the backing catalog. Safe to call more than once.
	Close() error
}
