package similarity

import (
	"runtime"

	"github.com/paperlens/mathdex/internal/config"
	"github.com/paperlens/mathdex/internal/equation"
)

// Default component weights. Structure dominates: two equations that look
// alike character for character are similar even when their letters differ.
const (
	DefaultStructuralWeight = 0.4
	DefaultSemanticWeight   = 0.3
	DefaultVariableWeight   = 0.2
	DefaultFunctionWeight   = 0.1
)

// Breakdown reports the four component scores and their weighted sum. Every
// field is in [0, 1].
type Breakdown struct {
	Structural float64 `json:"structural"`
	Semantic   float64 `json:"semantic"`
	Variable   float64 `json:"variable"`
	Function   float64 `json:"function"`
	Overall    float64 `json:"overall"`
}

// Calculator scores pairwise equation similarity with fixed weights.
// Stateless and safe for concurrent use.
type Calculator struct {
	cfg config.SimilarityConfig
}

// NewCalculator builds a Calculator. A zero-value config gets the default
// weights and one worker per CPU.
func NewCalculator(cfg config.SimilarityConfig) *Calculator {
	zero := cfg.StructuralWeight == 0 && cfg.SemanticWeight == 0 &&
		cfg.VariableWeight == 0 && cfg.FunctionWeight == 0
	if zero {
		cfg.StructuralWeight = DefaultStructuralWeight
		cfg.SemanticWeight = DefaultSemanticWeight
		cfg.VariableWeight = DefaultVariableWeight
		cfg.FunctionWeight = DefaultFunctionWeight
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Calculator{cfg: cfg}
}

// Score returns the overall similarity of a and b. Symmetric: Score(a, b)
// always equals Score(b, a).
func (c *Calculator) Score(a, b equation.Equation) float64 {
	return c.Breakdown(a, b).Overall
}

// Breakdown computes all four component scores plus the weighted overall.
func (c *Calculator) Breakdown(a, b equation.Equation) Breakdown {
	breakdown := Breakdown{
		Structural: structuralScore(a.NormalizedMarkup, b.NormalizedMarkup),
		Semantic:   semanticScore(a, b),
		Variable:   jaccard(a.Variables, b.Variables),
		Function:   jaccard(a.Functions, b.Functions),
	}

	overall := c.cfg.StructuralWeight*breakdown.Structural +
		c.cfg.SemanticWeight*breakdown.Semantic +
		c.cfg.VariableWeight*breakdown.Variable +
		c.cfg.FunctionWeight*breakdown.Function
	if overall > 1 {
		overall = 1
	}
	if overall < 0 {
		overall = 0
	}
	breakdown.Overall = overall
	return breakdown
}

// structuralScore compares normalized markup position by position over the
// shorter length, divided by the longer length so trailing extra content
// dilutes the score. Two empty strings are vacuously identical.
func structuralScore(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	minLen, maxLen := len(a), len(b)
	if minLen > maxLen {
		minLen, maxLen = maxLen, minLen
	}
	matches := 0
	for i := 0; i < minLen; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(maxLen)
}

// semanticScore blends type agreement, operator overlap, and complexity
// closeness: 0.5 for a shared non-unknown type, 0.3 times operator Jaccard,
// 0.2 times complexity closeness. Two unknowns get no type bonus; unknown
// is the absence of a classification, not a shared property.
func semanticScore(a, b equation.Equation) float64 {
	score := 0.0
	if a.Type == b.Type && a.Type != equation.TypeUnknown {
		score += 0.5
	}
	score += 0.3 * jaccard(a.Operators, b.Operators)

	diff := a.Complexity - b.Complexity
	if diff < 0 {
		diff = -diff
	}
	closeness := 1 - diff/10
	if closeness < 0 {
		closeness = 0
	}
	score += 0.2 * closeness
	return score
}

// jaccard is intersection over union with set semantics. Two empty sets
// count as identical; one empty set against a populated one shares nothing.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]bool, len(a))
	for _, token := range a {
		set[token] = true
	}
	intersection := 0
	union := len(set)
	for _, token := range b {
		if set[token] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}
