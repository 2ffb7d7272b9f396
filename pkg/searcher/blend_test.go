package searcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// scripted is a canned Searcher: it always answers with the same results
// and error, counting calls and remembering the last query it saw.
type scripted struct {
	results []Result
	fail    error

	calls     atomic.Int32
	lastQuery atomic.Value
}

var _ Searcher = (*scripted)(nil)

func (s *scripted) Search(_ context.Context, query string, _ int) ([]Result, error) {
	s.calls.Add(1)
	s.lastQuery.Store(query)
	return s.results, s.fail
}

func (s *scripted) query() string {
	q, _ := s.lastQuery.Load().(string)
	return q
}

// newBlend wires both sides scripted, with default weights.
func newBlend(tb testing.TB, lexical, similar *scripted) *Blend {
	tb.Helper()
	b, err := NewBlend(lexical, similar, Mix{})
	if err != nil {
		tb.Fatalf("NewBlend: %v", err)
	}
	return b
}

// rankedResults fabricates n results with descending scores.
func rankedResults(prefix string, n int) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = Result{
			EquationID: fmt.Sprintf("%s-%04d", prefix, i),
			Score:      float64(n-i) / float64(n),
		}
	}
	return out
}

func TestNewBlend(t *testing.T) {
	tests := []struct {
		name    string
		lexical Searcher
		similar Searcher
		wantErr error
	}{
		{"both sides", &scripted{}, &scripted{}, nil},
		{"lexical only", &scripted{}, nil, nil},
		{"similarity only", nil, &scripted{}, nil},
		{"no backends", nil, nil, ErrNoBackends},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBlend(tt.lexical, tt.similar, Mix{})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got error %v, want %v", err, tt.wantErr)
				}
				if b != nil {
					t.Error("want a nil searcher alongside the error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBlend: %v", err)
			}
			if b == nil {
				t.Fatal("want a searcher")
			}
		})
	}
}

func TestMix_Defaulting(t *testing.T) {
	tests := []struct {
		name string
		in   Mix
		want Mix
	}{
		{"zero value", Mix{}, Mix{Lexical: 0.5, Similarity: 0.5, K: 60}},
		{"k only", Mix{K: 100}, Mix{Lexical: 0.5, Similarity: 0.5, K: 100}},
		{"weights only", Mix{Lexical: 0.8, Similarity: 0.2}, Mix{Lexical: 0.8, Similarity: 0.2, K: 60}},
		{"negative k", Mix{Lexical: 0.6, Similarity: 0.4, K: -1}, Mix{Lexical: 0.6, Similarity: 0.4, K: 60}},
		{"fully set", Mix{Lexical: 0.7, Similarity: 0.3, K: 30}, Mix{Lexical: 0.7, Similarity: 0.3, K: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.withDefaults(); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBlend_SearchHybrid_RoutesQueries(t *testing.T) {
	lexical := &scripted{results: []Result{}}
	similar := &scripted{results: []Result{}}
	b := newBlend(t, lexical, similar)

	if _, err := b.SearchHybrid(context.Background(), "energy mass", `E = mc^2`, 10); err != nil {
		t.Fatalf("SearchHybrid: %v", err)
	}

	if got := lexical.query(); got != "energy mass" {
		t.Errorf("lexical side saw %q, want the keyword terms", got)
	}
	if got := similar.query(); got != `E = mc^2` {
		t.Errorf("similarity side saw %q, want the markup", got)
	}
}

func TestBlend_SearchHybrid_SingleSide(t *testing.T) {
	hit := []Result{{EquationID: "eq1", Score: 0.9}}

	t.Run("lexical only sees the terms", func(t *testing.T) {
		lexical := &scripted{results: hit}
		b, err := NewBlend(lexical, nil, Mix{})
		if err != nil {
			t.Fatalf("NewBlend: %v", err)
		}

		results, err := b.SearchHybrid(context.Background(), "energy mass", `E = mc^2`, 10)

		if err != nil {
			t.Fatalf("SearchHybrid: %v", err)
		}
		if got := lexical.query(); got != "energy mass" {
			t.Errorf("lexical side saw %q, want the keyword terms", got)
		}
		if got := len(results); got != 1 {
			t.Fatalf("got %d results, want 1", got)
		}
	})

	t.Run("similarity only sees the markup", func(t *testing.T) {
		similar := &scripted{results: hit}
		b, err := NewBlend(nil, similar, Mix{})
		if err != nil {
			t.Fatalf("NewBlend: %v", err)
		}

		results, err := b.SearchHybrid(context.Background(), "energy mass", `E = mc^2`, 10)

		if err != nil {
			t.Fatalf("SearchHybrid: %v", err)
		}
		if got := similar.query(); got != `E = mc^2` {
			t.Errorf("similarity side saw %q, want the markup", got)
		}
		if got := len(results); got != 1 {
			t.Fatalf("got %d results, want 1", got)
		}
	})
}

func TestBlend_Search_FusesBothRankings(t *testing.T) {
	lexical := &scripted{results: []Result{
		{EquationID: "eq1", Score: 12.5, MatchedTerms: []string{"integral"}},
		{EquationID: "eq2", Score: 8.1, MatchedTerms: []string{"bounded"}},
	}}
	similar := &scripted{results: []Result{
		{EquationID: "eq2", Score: 0.95},
		{EquationID: "eq3", Score: 0.8},
	}}
	b := newBlend(t, lexical, similar)

	results, err := b.Search(context.Background(), "bounded integral", 10)

	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := len(results); got != 3 {
		t.Fatalf("got %d fused results, want 3", got)
	}
	if results[0].EquationID != "eq2" {
		t.Errorf("got %s first, want eq2 (present in both rankings)", results[0].EquationID)
	}
	if lexical.calls.Load() != 1 || similar.calls.Load() != 1 {
		t.Errorf("got %d lexical and %d similarity calls, want one each",
			lexical.calls.Load(), similar.calls.Load())
	}
}

func TestBlend_Search_CapsAtLimit(t *testing.T) {
	b := newBlend(t,
		&scripted{results: rankedResults("lex", 20)},
		&scripted{results: rankedResults("sim", 20)})

	results, err := b.Search(context.Background(), "series expansion", 5)

	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := len(results); got > 5 {
		t.Errorf("got %d results, want at most 5", got)
	}
}

func TestBlend_Search_MergesResultFields(t *testing.T) {
	lexical := &scripted{results: []Result{
		{EquationID: "eq1", Score: 9.3, MatchedTerms: []string{"integral", "bounded"}},
	}}
	similar := &scripted{results: []Result{
		{EquationID: "eq1", DocumentID: "thesis", EquationType: "integral", Score: 0.9},
	}}
	b := newBlend(t, lexical, similar)

	results, err := b.Search(context.Background(), "bounded integral", 10)

	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := len(results); got != 1 {
		t.Fatalf("got %d results, want 1", got)
	}
	merged := results[0]
	if len(merged.MatchedTerms) != 2 {
		t.Errorf("got %d matched terms, want the lexical side's 2", len(merged.MatchedTerms))
	}
	if merged.DocumentID != "thesis" {
		t.Errorf("got document %q, want it filled from the similarity side", merged.DocumentID)
	}
	if merged.EquationType != "integral" {
		t.Errorf("got type %q, want it filled from the similarity side", merged.EquationType)
	}
}

func TestBlend_Search_Degradation(t *testing.T) {
	boom := errors.New("backend down")
	hit := []Result{{EquationID: "eq1", Score: 0.9}}

	t.Run("lexical failure falls back to similarity", func(t *testing.T) {
		b := newBlend(t, &scripted{fail: boom}, &scripted{results: hit})

		results, err := b.Search(context.Background(), "laplace transform", 10)

		if err != nil {
			t.Fatalf("want degradation, got error %v", err)
		}
		if len(results) != 1 || results[0].EquationID != "eq1" {
			t.Fatalf("got %v, want the similarity hit", results)
		}
	})

	t.Run("similarity failure falls back to lexical", func(t *testing.T) {
		b := newBlend(t, &scripted{results: hit}, &scripted{fail: boom})

		results, err := b.Search(context.Background(), "laplace transform", 10)

		if err != nil {
			t.Fatalf("want degradation, got error %v", err)
		}
		if got := len(results); got != 1 {
			t.Fatalf("got %v, want the lexical hit", results)
		}
	})

	t.Run("both failing is an error", func(t *testing.T) {
		b := newBlend(t, &scripted{fail: boom}, &scripted{fail: boom})

		results, err := b.Search(context.Background(), "laplace transform", 10)

		if err == nil {
			t.Fatal("want an error when both sides fail")
		}
		if results != nil {
			t.Error("want nil results alongside the error")
		}
	})

	t.Run("cancelled context is an error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		b := newBlend(t, &scripted{fail: ctx.Err()}, &scripted{fail: ctx.Err()})

		if _, err := b.Search(ctx, "laplace transform", 10); err == nil {
			t.Fatal("want an error for a cancelled context")
		}
	})
}

func TestBlend_Search_BothEmpty(t *testing.T) {
	b := newBlend(t, &scripted{results: []Result{}}, &scripted{results: []Result{}})

	results, err := b.Search(context.Background(), "no such term", 10)

	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("got %v, want an empty non-nil slice", results)
	}
}

func TestBlend_Search_RRFOrdering(t *testing.T) {
	// Defaults: k=60 with equal 0.5 weights.
	lexical := &scripted{results: []Result{
		{EquationID: "A", Score: 9.1},
		{EquationID: "B", Score: 7.4},
	}}
	similar := &scripted{results: []Result{
		{EquationID: "B", Score: 0.95},
		{EquationID: "C", Score: 0.85},
	}}
	b := newBlend(t, lexical, similar)

	results, err := b.Search(context.Background(), "convergence", 10)

	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := len(results); got != 3 {
		t.Fatalf("got %d results, want 3", got)
	}
	// B: 0.5/61 + 0.5/62, A: 0.5/61, C: 0.5/62.
	for i, want := range []string{"B", "A", "C"} {
		if results[i].EquationID != want {
			t.Errorf("rank %d: got %s, want %s", i+1, results[i].EquationID, want)
		}
	}
}

func TestBlend_Search_TieBreaksByID(t *testing.T) {
	b := newBlend(t,
		&scripted{results: []Result{{EquationID: "zzz", Score: 9.1}}},
		&scripted{results: []Result{{EquationID: "aaa", Score: 0.9}}})

	results, err := b.Search(context.Background(), "euler identity", 10)

	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].EquationID != "aaa" || results[1].EquationID != "zzz" {
		t.Errorf("got %v, want deterministic id order [aaa zzz]", results)
	}
}

func TestBlend_ConcurrentSearches(t *testing.T) {
	b := newBlend(t,
		&scripted{results: []Result{{EquationID: "eq1", Score: 0.5}}},
		&scripted{results: []Result{{EquationID: "eq2", Score: 0.5}}})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Search(context.Background(), "gradient", 10); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
}

func benchmarkBlendSearch(b *testing.B, n int) {
	bl := newBlend(b,
		&scripted{results: rankedResults("lex", n)},
		&scripted{results: rankedResults("sim", n)})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := bl.Search(context.Background(), "integral convergence", n); err != nil {
			b.Fatalf("Search: %v", err)
		}
	}
}

func BenchmarkBlendSearch_20x20(b *testing.B)     { benchmarkBlendSearch(b, 20) }
func BenchmarkBlendSearch_100x100(b *testing.B)   { benchmarkBlendSearch(b, 100) }
func BenchmarkBlendSearch_1000x1000(b *testing.B) { benchmarkBlendSearch(b, 1000) }
