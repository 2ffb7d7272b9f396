package searcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Blend merges a catalog keyword ranking with an equation similarity
// ranking using Reciprocal Rank Fusion.
//
// Either side may be absent, in which case every query degrades to the
// remaining side. The struct is immutable after construction, so it is
// safe for concurrent use.
type Blend struct {
	lexical Searcher
	similar Searcher
	mix     Mix
}

// Mix sets how much each ranking contributes to Reciprocal Rank
// Fusion.
type Mix struct {
	// Lexical scales the catalog ranking's contribution.
	Lexical float64

	// Similarity scales the similarity ranking's contribution.
	Similarity float64

	// K damps the influence of deep ranks. 60 is the value from the
	// original RRF paper.
	K int
}

// DefaultMix weighs both rankings equally: a hybrid lookup supplies
// both keyword terms and query markup, and neither ranking is
// inherently more trustworthy.
func DefaultMix() Mix {
	return Mix{Lexical: 0.5, Similarity: 0.5, K: 60}
}

// withDefaults fills unset fields, so a zero Mix, a K-only override,
// and a weights-only override all behave sensibly.
func (m Mix) withDefaults() Mix {
	if m.Lexical == 0 && m.Similarity == 0 {
		d := DefaultMix()
		m.Lexical, m.Similarity = d.Lexical, d.Similarity
	}
	if m.K <= 0 {
		m.K = DefaultMix().K
	}
	return m
}

// NewBlend wires the two sides of a hybrid lookup. Either searcher may
// be nil; passing nil for both returns ErrNoBackends. Zero fields in m
// fall back to DefaultMix.
func NewBlend(lexical, similar Searcher, m Mix) (*Blend, error) {
	if lexical == nil && similar == nil {
		return nil, ErrNoBackends
	}
	return &Blend{lexical: lexical, similar: similar, mix: m.withDefaults()}, nil
}

// Search runs the same query through both sides and fuses the results.
//
// This satisfies the Searcher interface for callers with a single query
// string. LaTeX markup works on both sides: the catalog indexes markup
// terms, and the similarity searcher parses the markup directly.
// Callers with distinct keyword terms and query markup should use
// SearchHybrid.
func (b *Blend) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return b.SearchHybrid(ctx, query, query, limit)
}

// SearchHybrid routes keyword terms to the lexical side and equation
// markup to the similarity side, then fuses the two rankings. With only
// one side configured it degrades to that side's plain query.
//
// In hybrid mode one failing side is tolerated: the other side's
// ranking is returned alone, and an error surfaces only when both sides
// fail.
func (b *Blend) SearchHybrid(ctx context.Context, terms, markup string, limit int) ([]Result, error) {
	if b.lexical == nil {
		return b.similar.Search(ctx, markup, limit)
	}
	if b.similar == nil {
		return b.lexical.Search(ctx, terms, limit)
	}
	return b.searchBoth(ctx, terms, markup, limit)
}

func (b *Blend) searchBoth(ctx context.Context, terms, markup string, limit int) ([]Result, error) {
	// Pull extra rows from both sides so the rankings overlap enough
	// for fusion to matter.
	fetch := max(limit*2, 20)

	var (
		lexHits, simHits []Result
		lexErr, simErr   error
	)

	// Each side keeps its own error so one failure cannot mask the
	// other side's ranking.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		lexHits, lexErr = b.lexical.Search(ctx, terms, fetch)
	}()
	go func() {
		defer wg.Done()
		simHits, simErr = b.similar.Search(ctx, markup, fetch)
	}()
	wg.Wait()

	switch {
	case lexErr != nil && simErr != nil:
		return nil, fmt.Errorf("lexical and similarity searches both failed: %v; %v", lexErr, simErr)
	case lexErr != nil:
		return capResults(simHits, limit), nil
	case simErr != nil:
		return capResults(lexHits, limit), nil
	}

	return capResults(b.mergeRankings(lexHits, simHits), limit), nil
}

// rrfTally accumulates one equation's fused score.
type rrfTally struct {
	hit   Result
	score float64
}

// mergeRankings combines both rankings with Reciprocal Rank Fusion:
// score(e) = Σ weight_side / (k + rank_side). Ranks are 1-indexed and
// the constant k damps the contribution of deep ranks.
func (b *Blend) mergeRankings(lexHits, simHits []Result) []Result {
	tallies := make(map[string]*rrfTally, len(lexHits)+len(simHits))

	for rank, r := range lexHits {
		tallies[r.EquationID] = &rrfTally{
			hit:   r,
			score: b.mix.Lexical / float64(b.mix.K+rank+1),
		}
	}

	for rank, r := range simHits {
		add := b.mix.Similarity / float64(b.mix.K+rank+1)
		t, seen := tallies[r.EquationID]
		if !seen {
			tallies[r.EquationID] = &rrfTally{hit: r, score: add}
			continue
		}
		t.score += add
		// The lexical row keeps its matched terms; take the fields
		// only the similarity side knows.
		if t.hit.EquationType == "" {
			t.hit.EquationType = r.EquationType
		}
		if t.hit.DocumentID == "" {
			t.hit.DocumentID = r.DocumentID
		}
	}

	merged := make([]Result, 0, len(tallies))
	for _, t := range tallies {
		r := t.hit
		r.Score = t.score
		merged = append(merged, r)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		// Equal scores fall back to id order so ties are stable.
		return merged[i].EquationID < merged[j].EquationID
	})
	return merged
}

// capResults bounds hits to the requested limit.
func capResults(hits []Result, limit int) []Result {
	if len(hits) <= limit {
		return hits
	}
	return hits[:limit]
}

var _ Searcher = (*Blend)(nil)
