package index

import (
	"github.com/paperlens/mathdex/internal/store"
)

// Snapshot converts the index to its persisted form. Equations and concepts
// are emitted in id order, so snapshotting the same index twice yields
// identical snapshots.
func (idx *Index) Snapshot() *store.Snapshot {
	return &store.Snapshot{
		DocumentID: idx.DocumentID,
		CreatedAt:  idx.CreatedAt,
		Equations:  idx.SortedEquations(),
		Concepts:   idx.SortedConcepts(),
		Graph:      idx.Graph,
		Similarity: idx.Similarity,
	}
}

// FromSnapshot reconstructs an Index from its persisted form. The result is
// fully usable even when the snapshot predates some sections: a nil graph or
// similarity matrix comes back empty, not nil.
func FromSnapshot(snap *store.Snapshot) *Index {
	idx := New(snap.DocumentID)
	if !snap.CreatedAt.IsZero() {
		idx.CreatedAt = snap.CreatedAt
	}
	for _, eq := range snap.Equations {
		idx.Equations[eq.ID] = eq
	}
	for _, c := range snap.Concepts {
		idx.Concepts[c.ID] = c
	}
	if snap.Graph != nil {
		idx.Graph = snap.Graph
	}
	if snap.Similarity != nil {
		idx.Similarity = snap.Similarity
	}
	return idx
}
