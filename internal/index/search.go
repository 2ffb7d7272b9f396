package index

import (
	"sort"
	"strings"
	"time"

	"github.com/paperlens/mathdex/internal/equation"
	"github.com/paperlens/mathdex/internal/telemetry"
)

// SearchResult is one scored equation from a similarity search.
type SearchResult struct {
	EquationID string  `json:"equation_id"`
	Score      float64 `json:"score"`
}

// SearchSimilar ranks the indexed equations by similarity to the query
// markup and returns the top k. A query matching an indexed equation reuses
// its precomputed matrix row; anything else is parsed as a transient
// equation and scored against every indexed one. The query equation itself
// never appears in the results.
func (b *Builder) SearchSimilar(idx *Index, queryMarkup string, topK int) []SearchResult {
	if idx == nil || topK <= 0 {
		return nil
	}
	startTime := time.Now()

	trimmed := stripDelimiters(queryMarkup)
	queryID := equation.ContentID(trimmed)

	var query equation.Equation
	var hits []SearchResult

	if row, ok := idx.Similarity[queryID]; ok {
		// The matrix omits the diagonal, so the row is exactly the
		// scores against every other equation.
		query = idx.Equations[queryID]
		hits = make([]SearchResult, 0, len(row))
		for id, score := range row {
			hits = append(hits, SearchResult{EquationID: id, Score: score})
		}
	} else {
		if stored, ok := idx.Equations[queryID]; ok {
			query = stored
		} else {
			query = b.extractor.Parse(trimmed)
		}
		hits = make([]SearchResult, 0, len(idx.Equations))
		for id, eq := range idx.Equations {
			if id == queryID {
				continue
			}
			hits = append(hits, SearchResult{
				EquationID: id,
				Score:      b.calculator.Score(query, eq),
			})
		}
	}

	rankResults(hits)
	if topK < len(hits) {
		hits = hits[:topK]
	}

	if b.metrics != nil {
		b.metrics.Record(telemetry.Event{
			Query:      queryMarkup,
			Surface:    telemetry.SurfaceSimilarity,
			Results:    len(hits),
			Latency:    time.Since(startTime),
			At:         time.Now(),
			Normalized: query.NormalizedMarkup,
		})
	}

	return hits
}

// rankResults orders by score descending, breaking ties by equation id so
// equal scores always rank the same way.
func rankResults(rs []SearchResult) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Score != rs[j].Score {
			return rs[i].Score > rs[j].Score
		}
		return rs[i].EquationID < rs[j].EquationID
	})
}

// stripDelimiters removes one enclosing delimiter layer from query markup.
// Queries arrive both ways: bare markup from programmatic callers, delimited
// markup pasted straight out of a document.
func stripDelimiters(markup string) string {
	s := strings.TrimSpace(markup)
	switch {
	case len(s) >= 4 && strings.HasPrefix(s, "$$") && strings.HasSuffix(s, "$$"):
		s = s[2 : len(s)-2]
	case len(s) >= 2 && strings.HasPrefix(s, "$") && strings.HasSuffix(s, "$"):
		s = s[1 : len(s)-1]
	case len(s) >= 4 && strings.HasPrefix(s, `\[`) && strings.HasSuffix(s, `\]`):
		s = s[2 : len(s)-2]
	case len(s) >= 4 && strings.HasPrefix(s, `\(`) && strings.HasSuffix(s, `\)`):
		s = s[2 : len(s)-2]
	}
	return strings.TrimSpace(s)
}
