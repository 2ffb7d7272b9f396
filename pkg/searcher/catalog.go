package searcher

import (
	"context"
	"fmt"

	"github.com/paperlens/mathdex/internal/store"
)

// CatalogSearcher answers keyword queries from the equation catalog.
//
// Queries match against equation contexts, markup terms, and concept
// names with BM25 ranking. The searcher holds no state of its own, so
// it is as safe under concurrency as the catalog behind it.
type CatalogSearcher struct {
	catalog store.Catalog
}

// NewCatalogSearcher wraps cat. A nil catalog returns ErrNilCatalog.
func NewCatalogSearcher(cat store.Catalog) (*CatalogSearcher, error) {
	if cat == nil {
		return nil, ErrNilCatalog
	}
	return &CatalogSearcher{catalog: cat}, nil
}

// Search forwards the query to the catalog and reshapes its hits. A
// query with no matches yields an empty slice.
func (s *CatalogSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	hits, err := s.catalog.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			EquationID:   h.EquationID,
			DocumentID:   h.DocumentID,
			EquationType: h.EquationType,
			Score:        h.Score,
			MatchedTerms: h.MatchedTerms,
		}
	}

	return results, nil
}

var _ Searcher = (*CatalogSearcher)(nil)
