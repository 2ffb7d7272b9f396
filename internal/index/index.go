// Package index assembles the per-document analysis artifacts into a
// queryable Index: equations, concepts, the concept graph, and the pairwise
// similarity matrix. It also provides the JSON export/import round-trip.
package index

import (
	"sort"
	"time"

	"github.com/paperlens/mathdex/internal/concept"
	"github.com/paperlens/mathdex/internal/equation"
	"github.com/paperlens/mathdex/internal/graph"
)

// Index is the complete analysis of one document. Equations and Concepts are
// keyed by their content-derived ids, so re-analyzing the same document
// yields the same keys.
type Index struct {
	DocumentID string
	CreatedAt  time.Time

	Equations map[string]equation.Equation
	Concepts  map[string]concept.Concept

	// Graph connects concepts that share at least one equation.
	Graph *graph.ConceptGraph

	// Similarity stores pairwise equation scores keyed both ways, so
	// Similarity[a][b] == Similarity[b][a]. The diagonal is omitted.
	Similarity map[string]map[string]float64
}

// New returns an empty but fully usable Index for the given document.
func New(documentID string) *Index {
	return &Index{
		DocumentID: documentID,
		CreatedAt:  time.Now().UTC(),
		Equations:  make(map[string]equation.Equation),
		Concepts:   make(map[string]concept.Concept),
		Graph:      graph.New(),
		Similarity: make(map[string]map[string]float64),
	}
}

// Stats summarizes index contents for status output and exports.
type Stats struct {
	TotalEquations  int `json:"total_equations"`
	TotalConcepts   int `json:"total_concepts"`
	GraphNodes      int `json:"graph_nodes"`
	GraphEdges      int `json:"graph_edges"`
	SimilarityPairs int `json:"similarity_pairs"`
}

// Stats computes summary counts. SimilarityPairs counts unordered pairs;
// the matrix stores each pair twice, so the entry count is halved.
func (idx *Index) Stats() Stats {
	s := Stats{
		TotalEquations: len(idx.Equations),
		TotalConcepts:  len(idx.Concepts),
	}
	if idx.Graph != nil {
		s.GraphNodes = idx.Graph.NodeCount()
		s.GraphEdges = idx.Graph.EdgeCount()
	}
	entries := 0
	for _, row := range idx.Similarity {
		entries += len(row)
	}
	s.SimilarityPairs = entries / 2
	return s
}

// EquationsByType counts equations per classified type.
func (idx *Index) EquationsByType() map[equation.Type]int {
	counts := make(map[equation.Type]int)
	for _, eq := range idx.Equations {
		counts[eq.Type]++
	}
	return counts
}

// SortedEquations returns all equations ordered by id, for deterministic
// exports and stable test output.
func (idx *Index) SortedEquations() []equation.Equation {
	equations := make([]equation.Equation, 0, len(idx.Equations))
	for _, eq := range idx.Equations {
		equations = append(equations, eq)
	}
	sort.Slice(equations, func(i, j int) bool {
		return equations[i].ID < equations[j].ID
	})
	return equations
}

// SortedConcepts returns all concepts ordered by id.
func (idx *Index) SortedConcepts() []concept.Concept {
	concepts := make([]concept.Concept, 0, len(idx.Concepts))
	for _, c := range idx.Concepts {
		concepts = append(concepts, c)
	}
	sort.Slice(concepts, func(i, j int) bool {
		return concepts[i].ID < concepts[j].ID
	})
	return concepts
}

// TopConcepts returns the n highest-importance concepts. The stable sort
// over the id-ordered base makes ties deterministic.
func (idx *Index) TopConcepts(n int) []concept.Concept {
	if n <= 0 {
		return nil
	}
	concepts := idx.SortedConcepts()
	sort.SliceStable(concepts, func(i, j int) bool {
		return concepts[i].Importance > concepts[j].Importance
	})
	if n > len(concepts) {
		n = len(concepts)
	}
	return concepts[:n]
}
