package similarity

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/paperlens/mathdex/internal/equation"
)

// pairScore is one computed unordered pair, staged before the merge.
type pairScore struct {
	a, b  string
	score float64
}

// BuildMatrix scores every unordered pair of equations and returns a
// symmetric nested map: matrix[a][b] == matrix[b][a], with no self
// entries. Pairs are split into contiguous index ranges and scored by a
// worker pool; workers write into disjoint slices of a preallocated
// buffer, so the only synchronization point is Wait. Returns the context
// error if canceled mid-build.
func (c *Calculator) BuildMatrix(ctx context.Context, equations []equation.Equation) (map[string]map[string]float64, error) {
	n := len(equations)
	matrix := make(map[string]map[string]float64, n)
	for _, eq := range equations {
		if _, ok := matrix[eq.ID]; !ok {
			matrix[eq.ID] = make(map[string]float64, n-1)
		}
	}

	total := n * (n - 1) / 2
	if total == 0 {
		return matrix, nil
	}

	// rowStart[i] is the linear index of pair (i, i+1); row i holds the
	// pairs (i, i+1) .. (i, n-1).
	rowStart := make([]int, n)
	for i := 1; i < n; i++ {
		rowStart[i] = rowStart[i-1] + n - i
	}

	scores := make([]pairScore, total)
	workers := c.cfg.Workers
	if workers > total {
		workers = total
	}
	chunk := (total + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > total {
			end = total
		}
		if start >= end {
			break
		}
		g.Go(func() error {
			i := rowFor(rowStart, start)
			j := i + 1 + (start - rowStart[i])
			for k := start; k < end; k++ {
				if k%1024 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				scores[k] = pairScore{
					a:     equations[i].ID,
					b:     equations[j].ID,
					score: c.Score(equations[i], equations[j]),
				}
				j++
				if j == n {
					i++
					j = i + 1
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range scores {
		if s.a == s.b {
			continue // duplicate markup in the input, not a real pair
		}
		matrix[s.a][s.b] = s.score
		matrix[s.b][s.a] = s.score
	}
	return matrix, nil
}

// rowFor finds the row containing linear pair index k.
func rowFor(rowStart []int, k int) int {
	idx := sort.Search(len(rowStart), func(i int) bool { return rowStart[i] > k })
	return idx - 1
}
