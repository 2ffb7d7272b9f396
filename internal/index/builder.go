package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paperlens/mathdex/internal/concept"
	"github.com/paperlens/mathdex/internal/config"
	"github.com/paperlens/mathdex/internal/equation"
	"github.com/paperlens/mathdex/internal/graph"
	"github.com/paperlens/mathdex/internal/similarity"
	"github.com/paperlens/mathdex/internal/telemetry"
	"github.com/paperlens/mathdex/internal/ui"
)

// BuilderDependencies contains the injected dependencies for Builder.
type BuilderDependencies struct {
	// Config carries the loaded project settings (required).
	Config *config.Config

	// Renderer draws pipeline progress (optional; nil runs silently).
	Renderer ui.Renderer

	// Telemetry records similarity query events (optional).
	Telemetry *telemetry.Tracker
}

// Builder runs the analysis pipeline over document text and assembles an
// Index. It accepts injected dependencies for testability and reusability.
type Builder struct {
	config     *config.Config
	renderer   ui.Renderer
	metrics    *telemetry.Tracker
	extractor  *equation.Extractor
	concepts   *concept.Extractor
	calculator *similarity.Calculator
}

// NewBuilder creates a Builder with injected dependencies.
func NewBuilder(d BuilderDependencies) (*Builder, error) {
	if d.Config == nil {
		return nil, fmt.Errorf("builder requires a config")
	}

	classifier := equation.NewClassifier(d.Config.Classification.CacheSize)

	return &Builder{
		config:     d.Config,
		renderer:   d.Renderer,
		metrics:    d.Telemetry,
		extractor:  equation.NewExtractor(d.Config.Extraction, classifier),
		concepts:   concept.NewExtractor(d.Config.Concepts),
		calculator: similarity.NewCalculator(d.Config.Similarity),
	}, nil
}

// Build executes the full analysis pipeline: extract equations, recognize
// concepts, build the concept graph, and score pairwise similarity.
//
// Build never fails. A stage that cannot complete leaves its section of the
// Index empty, and a panic anywhere in the pipeline is caught and logged,
// yielding an empty Index for the document. One malformed document must not
// take down a batch run.
func (b *Builder) Build(ctx context.Context, text, documentID string) (idx *Index) {
	startTime := time.Now()
	var timing ui.StageTimings

	defer func() {
		if r := recover(); r != nil {
			slog.Error("analysis_failed",
				slog.String("document_id", documentID),
				slog.Any("error", r))
			if b.renderer != nil {
				b.renderer.AddError(ui.ErrorEvent{
					File: documentID,
					Err:  fmt.Errorf("analysis panic: %v", r),
				})
			}
			idx = New(documentID)
		}
	}()

	idx = New(documentID)

	// Stage 1: Extract equations
	extractStart := time.Now()
	b.progress(ui.ProgressEvent{
		Stage: ui.StageExtracting,
		Note:  fmt.Sprintf("Extracting equations from %s...", documentID),
	})
	slog.Info("analysis_extract_started", slog.String("document_id", documentID))

	matches := b.extractor.Extract(text)

	// Dedupe by content id, keeping first occurrence order for the
	// similarity stage.
	equations := make([]equation.Equation, 0, len(matches))
	for _, eq := range matches {
		if _, seen := idx.Equations[eq.ID]; seen {
			continue
		}
		idx.Equations[eq.ID] = eq
		equations = append(equations, eq)
	}
	timing.Extract = time.Since(extractStart)
	slog.Info("analysis_extract_complete",
		slog.Int("matches", len(matches)),
		slog.Int("equations", len(equations)))

	// Stage 2: Recognize concepts
	conceptStart := time.Now()
	b.progress(ui.ProgressEvent{
		Stage: ui.StageConcepts,
		Note:  "Recognizing concepts...",
	})
	concepts := b.concepts.Extract(ctx, text, equations)
	timing.Concepts = time.Since(conceptStart)
	slog.Info("analysis_concepts_complete", slog.Int("concepts", len(concepts)))

	// Stage 3: Build concept graph
	graphStart := time.Now()
	b.progress(ui.ProgressEvent{
		Stage: ui.StageGraph,
		Note:  "Building concept graph...",
	})
	idx.Graph = graph.Build(concepts)
	for _, c := range concepts {
		if related := idx.Graph.Neighbors(c.ID); related != nil {
			c.RelatedConcepts = related
		}
		idx.Concepts[c.ID] = c
	}
	timing.Graph = time.Since(graphStart)
	slog.Info("analysis_graph_complete",
		slog.Int("nodes", idx.Graph.NodeCount()),
		slog.Int("edges", idx.Graph.EdgeCount()))

	// Stage 4: Score pairwise similarity
	similarityStart := time.Now()
	b.progress(ui.ProgressEvent{
		Stage: ui.StageSimilarity,
		Total: len(equations) * (len(equations) - 1) / 2,
		Note:  "Scoring equation similarity...",
	})
	matrix, err := b.calculator.BuildMatrix(ctx, equations)
	if err != nil {
		slog.Warn("similarity scoring aborted, index keeps an empty matrix",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()))
	} else {
		idx.Similarity = matrix
	}
	timing.Similarity = time.Since(similarityStart)

	took := time.Since(startTime)
	counts := idx.Stats()

	if b.renderer != nil {
		b.renderer.Complete(ui.CompletionStats{
			Equations: counts.TotalEquations,
			Concepts:  counts.TotalConcepts,
			Duration:  took,
			Stages:    timing,
		})
	}

	pairsPerSec := 0.0
	if timing.Similarity.Seconds() > 0 {
		pairsPerSec = float64(counts.SimilarityPairs) / timing.Similarity.Seconds()
	}

	slog.Info("analysis_complete",
		slog.String("document_id", documentID),
		slog.Int("equations", counts.TotalEquations),
		slog.Int("concepts", counts.TotalConcepts),
		slog.Int("graph_nodes", counts.GraphNodes),
		slog.Int("graph_edges", counts.GraphEdges),
		slog.Int("similarity_pairs", counts.SimilarityPairs),
		slog.String("duration", took.String()),
		slog.Int64("duration_ms", took.Milliseconds()),
		slog.Int64("duration_extract_ms", timing.Extract.Milliseconds()),
		slog.Int64("duration_concepts_ms", timing.Concepts.Milliseconds()),
		slog.Int64("duration_graph_ms", timing.Graph.Milliseconds()),
		slog.Int64("duration_similarity_ms", timing.Similarity.Milliseconds()),
		slog.Float64("pairs_per_sec", pairsPerSec))

	return idx
}

func (b *Builder) progress(event ui.ProgressEvent) {
	if b.renderer != nil {
		b.renderer.Advance(event)
	}
}
