package graph

import (
	"sort"

	"github.com/paperlens/mathdex/internal/concept"
)

// ConceptGraph is an undirected weighted graph over concept ids. Both
// directions of every edge are stored so neighbor lookup is O(1) either
// way; self-loops are rejected and parallel edges are impossible because
// the adjacency map upserts. Not safe for concurrent mutation; read-only
// use after Build is safe.
type ConceptGraph struct {
	adjacency map[string]map[string]float64
}

// Edge is one unique undirected edge, reported with Source < Target.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

func New() *ConceptGraph {
	return &ConceptGraph{adjacency: make(map[string]map[string]float64)}
}

// Build constructs the graph for a set of concepts: one node each, and an
// edge between every pair sharing at least one linked equation. Edge weight
// is the shared count over the larger of the two concepts' equation counts,
// so weights land in (0, 1].
func Build(concepts []concept.Concept) *ConceptGraph {
	g := New()
	for _, c := range concepts {
		g.AddNode(c.ID)
	}
	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			shared := sharedCount(concepts[i].Equations, concepts[j].Equations)
			if shared == 0 {
				continue
			}
			larger := len(concepts[i].Equations)
			if len(concepts[j].Equations) > larger {
				larger = len(concepts[j].Equations)
			}
			g.AddEdge(concepts[i].ID, concepts[j].ID, float64(shared)/float64(larger))
		}
	}
	return g
}

func sharedCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	shared := 0
	for _, id := range b {
		if set[id] {
			shared++
		}
	}
	return shared
}

// AddNode inserts an isolated node. Adding an existing node is a no-op and
// keeps its edges.
func (g *ConceptGraph) AddNode(id string) {
	if _, ok := g.adjacency[id]; !ok {
		g.adjacency[id] = make(map[string]float64)
	}
}

// AddEdge upserts the undirected edge between a and b, creating either node
// as needed. Self-loops are ignored.
func (g *ConceptGraph) AddEdge(a, b string, weight float64) {
	if a == b {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	g.adjacency[a][b] = weight
	g.adjacency[b][a] = weight
}

func (g *ConceptGraph) HasNode(id string) bool {
	_, ok := g.adjacency[id]
	return ok
}

// Neighbors returns the ids adjacent to id, sorted. Unknown ids have no
// neighbors.
func (g *ConceptGraph) Neighbors(id string) []string {
	edges := g.adjacency[id]
	if len(edges) == 0 {
		return nil
	}
	neighbors := make([]string, 0, len(edges))
	for neighbor := range edges {
		neighbors = append(neighbors, neighbor)
	}
	sort.Strings(neighbors)
	return neighbors
}

// Weight reports the edge weight between a and b, and whether the edge
// exists.
func (g *ConceptGraph) Weight(a, b string) (float64, bool) {
	w, ok := g.adjacency[a][b]
	return w, ok
}

func (g *ConceptGraph) NodeCount() int {
	return len(g.adjacency)
}

// EdgeCount counts unique undirected edges.
func (g *ConceptGraph) EdgeCount() int {
	total := 0
	for _, edges := range g.adjacency {
		total += len(edges)
	}
	return total / 2
}

// Nodes returns all node ids, sorted.
func (g *ConceptGraph) Nodes() []string {
	nodes := make([]string, 0, len(g.adjacency))
	for id := range g.adjacency {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// Edges returns every unique edge with Source < Target, sorted by source
// then target. Stable output for exports and tests.
func (g *ConceptGraph) Edges() []Edge {
	var edges []Edge
	for a, adjacent := range g.adjacency {
		for b, w := range adjacent {
			if a < b {
				edges = append(edges, Edge{Source: a, Target: b, Weight: w})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}
