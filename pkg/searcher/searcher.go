package searcher

import (
	"context"
	"errors"
)

// Constructor errors. Each names a collaborator the searcher cannot
// work without.
var (
	// ErrNilCatalog means a CatalogSearcher was built without a catalog.
	ErrNilCatalog = errors.New("catalog is required")

	// ErrNilBuilder means a SimilaritySearcher was built without a builder.
	ErrNilBuilder = errors.New("builder is required")

	// ErrNilIndex means a SimilaritySearcher was built without an index.
	ErrNilIndex = errors.New("index is required")

	// ErrNoBackends means a Blend was built with neither side.
	ErrNoBackends = errors.New("no backend searcher configured")
)

// Searcher is the common query surface of the catalog, similarity, and
// blend searchers. Implementations are safe for concurrent use.
type Searcher interface {
	// Search runs one query and returns at most limit results, best
	// match first. The query carries keyword terms on the lexical side
	// and raw equation markup on the similarity side. No matches is an
	// empty slice, not an error.
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Result is one ranked hit.
type Result struct {
	// EquationID identifies the matched equation.
	EquationID string

	// DocumentID names the document the equation was indexed from.
	DocumentID string

	// EquationType carries the classifier's label for the equation.
	EquationType string

	// Score ranks the hit, higher being better. Scales differ per
	// searcher; blended results carry RRF scores.
	Score float64

	// MatchedTerms lists the query terms that hit. Only the lexical
	// side fills it.
	MatchedTerms []string
}
