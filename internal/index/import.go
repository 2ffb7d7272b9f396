package index

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/paperlens/mathdex/internal/concept"
	"github.com/paperlens/mathdex/internal/equation"
	mderrors "github.com/paperlens/mathdex/internal/errors"
)

// Import reads a JSON export and reconstructs the Index. Equation and
// concept types are clamped back to the known vocabularies so a hand-edited
// file cannot smuggle in new ones, and the similarity matrix is recomputed
// from the imported equations rather than trusted from the file.
func (b *Builder) Import(ctx context.Context, r io.Reader) (*Index, error) {
	var doc exportDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, mderrors.New(mderrors.CodeImportFailed, "failed to parse index export", err)
	}
	if doc.DocumentID == "" {
		return nil, mderrors.New(mderrors.CodeImportFailed, "export is missing document_id", nil)
	}

	idx := New(doc.DocumentID)
	if doc.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339, doc.CreatedAt)
		if err != nil {
			return nil, mderrors.New(mderrors.CodeImportFailed, "export has a malformed created_at timestamp", err)
		}
		idx.CreatedAt = createdAt
	}

	// Records win over map keys when both carry an id; the map key fills
	// in when the embedded id is empty.
	for key, eq := range doc.Equations {
		if eq.ID == "" {
			eq.ID = key
		}
		eq.Type = equation.ParseType(string(eq.Type))
		idx.Equations[eq.ID] = eq
	}
	for key, c := range doc.Concepts {
		if c.ID == "" {
			c.ID = key
		}
		c.Type = concept.ParseType(string(c.Type))
		idx.Concepts[c.ID] = c
	}

	for _, node := range doc.ConceptGraph.Nodes {
		idx.Graph.AddNode(node)
	}
	for _, edge := range doc.ConceptGraph.Edges {
		idx.Graph.AddEdge(edge.Source, edge.Target, edge.Weight)
	}

	matrix, err := b.calculator.BuildMatrix(ctx, idx.SortedEquations())
	if err != nil {
		return nil, mderrors.New(mderrors.CodeImportFailed, "failed to recompute similarity scores", err)
	}
	idx.Similarity = matrix

	return idx, nil
}
