package searcher

import (
	"context"

	"github.com/paperlens/mathdex/internal/index"
)

// SimilaritySearcher ranks one document's indexed equations by
// structural similarity to the query markup.
//
// The builder parses and scores; the index is the analyzed document,
// read-only after build. Neither is mutated here, so concurrent
// searches are safe.
type SimilaritySearcher struct {
	builder *index.Builder
	idx     *index.Index
}

// NewSimilaritySearcher wraps a builder and the index it will search.
// Nil dependencies return ErrNilBuilder or ErrNilIndex.
func NewSimilaritySearcher(b *index.Builder, idx *index.Index) (*SimilaritySearcher, error) {
	if b == nil {
		return nil, ErrNilBuilder
	}
	if idx == nil {
		return nil, ErrNilIndex
	}
	return &SimilaritySearcher{builder: b, idx: idx}, nil
}

// Search ranks the indexed equations against the query markup. One
// enclosing delimiter layer is stripped first; the query then either
// matches a stored equation or is parsed as a transient one, and every
// other stored equation is scored against it. When the index holds no
// other equations the result is an empty slice.
func (s *SimilaritySearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	// The ranking itself is pure in-memory work and cannot be
	// interrupted partway, so cancellation is checked up front.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := s.builder.SearchSimilar(s.idx, query, limit)

	results := make([]Result, len(matches))
	for i, m := range matches {
		r := Result{
			EquationID: m.EquationID,
			DocumentID: s.idx.DocumentID,
			Score:      m.Score,
		}
		if eq, ok := s.idx.Equations[m.EquationID]; ok {
			r.EquationType = string(eq.Type)
		}
		results[i] = r
	}

	return results, nil
}

var _ Searcher = (*SimilaritySearcher)(nil)
