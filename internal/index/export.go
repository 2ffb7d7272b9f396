package index

import (
	"encoding/json"
	"io"
	"time"

	"github.com/paperlens/mathdex/internal/concept"
	"github.com/paperlens/mathdex/internal/equation"
	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/graph"
)

// exportDocument is the JSON shape of a serialized index. The similarity
// matrix stays out of the file: it is derived data and Import recomputes it,
// which also means exports survive changes to the similarity weights.
type exportDocument struct {
	DocumentID   string                       `json:"document_id"`
	CreatedAt    string                       `json:"created_at"`
	Equations    map[string]equation.Equation `json:"equations"`
	Concepts     map[string]concept.Concept   `json:"concepts"`
	ConceptGraph exportGraph                  `json:"concept_graph"`
	Statistics   Stats                        `json:"statistics"`
}

type exportGraph struct {
	Nodes []string     `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// Export writes the index to w as indented JSON.
func (idx *Index) Export(w io.Writer) error {
	doc := exportDocument{
		DocumentID: idx.DocumentID,
		CreatedAt:  idx.CreatedAt.Format(time.RFC3339),
		Equations:  idx.Equations,
		Concepts:   idx.Concepts,
		Statistics: idx.Stats(),
	}
	if idx.Graph != nil {
		doc.ConceptGraph = exportGraph{
			Nodes: idx.Graph.Nodes(),
			Edges: idx.Graph.Edges(),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return mderrors.New(mderrors.CodeExportFailed, "failed to write index export", err)
	}
	return nil
}
