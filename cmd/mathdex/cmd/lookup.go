package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperlens/mathdex/internal/config"
	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/index"
	"github.com/paperlens/mathdex/internal/output"
	"github.com/paperlens/mathdex/internal/store"
	"github.com/paperlens/mathdex/internal/telemetry"
	"github.com/paperlens/mathdex/pkg/searcher"
)

// lookupFlags holds CLI flags for lookup.
type lookupFlags struct {
	hybridMarkup string
	docID        string
	limit        int
	jsonOut      bool
}

func newLookupCmd() *cobra.Command {
	var opts lookupFlags

	cmd := &cobra.Command{
		Use:   "lookup <terms...>",
		Short: "Search cataloged equations by keyword",
		Long: `Search the equation catalog by keyword.

Terms match against equation markup, surrounding context, and linked
concept names using BM25 ranking. With --hybrid, a LaTeX query runs
through the similarity scorer in parallel and both rankings are fused
with reciprocal rank fusion.

Examples:
  mathdex lookup heat equation
  mathdex lookup fourier --limit 10 --json
  mathdex lookup diffusion --hybrid '\frac{\partial u}{\partial t} = \alpha \nabla^2 u'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			terms := strings.Join(args, " ")
			return runLookup(cmd.Context(), cmd, terms, opts)
		},
	}

	cmd.Flags().StringVar(&opts.hybridMarkup, "hybrid", "", "LaTeX query to fuse with the keyword ranking")
	cmd.Flags().StringVar(&opts.docID, "doc", "", "Document for the similarity side of --hybrid (default: most recently analyzed)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: catalog max_results)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output results as JSON")

	return cmd
}

func runLookup(ctx context.Context, cmd *cobra.Command, terms string, opts lookupFlags) error {
	root := resolveProjectRoot()
	cfg := loadProjectConfig(root)
	defer setupFileLogging(cfg.Logging.Level)()

	slog.Info("lookup_started", slog.String("terms", terms), slog.Bool("hybrid", opts.hybridMarkup != ""))
	out := output.New(cmd.OutOrStdout())

	dataDir := cfg.DataDir(root)

	if store.DetectCatalogBackend(filepath.Join(dataDir, "catalog")) == "" {
		return mderrors.New(mderrors.CodeCatalogUnavailable,
			fmt.Sprintf("no catalog found in %s", dataDir), nil).
			WithHint("run 'mathdex analyze' to create one")
	}

	catalog, err := openCatalog(dataDir, cfg)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = catalog.Close() }()

	lexical, err := searcher.NewCatalogSearcher(catalog)
	if err != nil {
		return fmt.Errorf("failed to create catalog searcher: %w", err)
	}

	limit := opts.limit
	switch {
	case limit > 0:
	case cfg.Catalog.MaxResults > 0:
		limit = cfg.Catalog.MaxResults
	default:
		limit = store.DefaultCatalogConfig().MaxResults
	}

	// The index store resolves result markup for display and backs the
	// query telemetry. Plain keyword lookups work without it.
	var docStore *store.SQLiteStore
	indexPath := store.GetStorePath(dataDir)
	if fileExists(indexPath) {
		if docStore, err = store.NewSQLiteStoreWithConfig(indexPath, store.StoreConfig{
			CacheMB: cfg.Performance.SQLiteCacheMB,
		}); err != nil {
			return fmt.Errorf("failed to open index store: %w", err)
		}
		defer func() { _ = docStore.Close() }()
	}

	metrics := telemetry.NewTracker(nil)
	if docStore != nil {
		metrics = openTracker(docStore)
	}
	defer func() { _ = metrics.Close() }()

	var (
		results []searcher.Result
		surface telemetry.Surface
	)
	startTime := time.Now()

	if opts.hybridMarkup != "" {
		if docStore == nil {
			return fmt.Errorf("hybrid lookup needs an analyzed document. Run 'mathdex analyze' first")
		}
		results, err = runHybridLookup(ctx, docStore, cfg, lexical, terms, opts.hybridMarkup, opts.docID, limit)
		surface = telemetry.SurfaceHybrid
	} else {
		results, err = lexical.Search(ctx, terms, limit)
		surface = telemetry.SurfaceLexical
	}
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	metrics.Record(telemetry.Event{
		Query:   terms,
		Surface: surface,
		Results: len(results),
		Latency: time.Since(startTime),
		At:      time.Now(),
	})

	slog.Info("lookup_complete",
		slog.String("surface", string(surface)),
		slog.Int("results", len(results)))

	previews := loadEquationPreviews(ctx, docStore, results)

	if opts.jsonOut {
		return printLookupJSON(cmd, results, previews)
	}
	return printLookupText(out, terms, results, previews)
}

// runHybridLookup fuses the keyword ranking with a similarity ranking over
// one document's equations.
func runHybridLookup(ctx context.Context, docStore *store.SQLiteStore, cfg *config.Config, lexical *searcher.CatalogSearcher, terms, markup, docID string, limit int) ([]searcher.Result, error) {
	var err error
	if docID == "" {
		if docID, err = docStore.LatestDocumentID(ctx); err != nil {
			return nil, fmt.Errorf("failed to pick a document: %w", err)
		}
	}
	snap, err := docStore.LoadDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", docID, err)
	}

	builder, err := index.NewBuilder(index.BuilderDependencies{Config: cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to create builder: %w", err)
	}
	similarity, err := searcher.NewSimilaritySearcher(builder, index.FromSnapshot(snap))
	if err != nil {
		return nil, fmt.Errorf("failed to create similarity searcher: %w", err)
	}

	blend, err := searcher.NewBlend(lexical, similarity, searcher.Mix{K: cfg.Catalog.RRFSmoothing})
	if err != nil {
		return nil, fmt.Errorf("failed to create hybrid searcher: %w", err)
	}

	return blend.SearchHybrid(ctx, terms, markup, limit)
}

// loadEquationPreviews resolves result equation ids to their markup for
// display. Each referenced document snapshot loads once; a missing store or
// document just leaves the preview empty.
func loadEquationPreviews(ctx context.Context, docStore *store.SQLiteStore, results []searcher.Result) map[string]string {
	previews := make(map[string]string)
	if docStore == nil {
		return previews
	}

	wanted := make(map[string]map[string]bool) // document id -> equation ids
	for _, r := range results {
		if r.DocumentID == "" {
			continue
		}
		if wanted[r.DocumentID] == nil {
			wanted[r.DocumentID] = make(map[string]bool)
		}
		wanted[r.DocumentID][r.EquationID] = true
	}

	for docID, ids := range wanted {
		snap, err := docStore.LoadDocument(ctx, docID)
		if err != nil {
			slog.Debug("preview load failed",
				slog.String("document_id", docID),
				slog.String("error", err.Error()))
			continue
		}
		for _, eq := range snap.Equations {
			if ids[eq.ID] {
				previews[eq.ID] = eq.RawMarkup
			}
		}
	}

	return previews
}

// printLookupText outputs results in human-readable format.
func printLookupText(out *output.Console, terms string, results []searcher.Result, previews map[string]string) error {
	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No equations found for %q", terms))
		return nil
	}

	out.Statusf("🔍", "Found %d equations for %q:", len(results), terms)
	out.Newline()

	for i, r := range results {
		display := previews[r.EquationID]
		if display == "" {
			display = r.EquationID
		} else {
			display = equationPreview(display)
		}
		out.Statusf("", "%d. [%s] %s (score: %.3f)", i+1, r.EquationType, display, r.Score)

		details := "document: " + r.DocumentID
		if m := r.MatchedTerms; len(m) > 0 {
			details += "  matched: " + strings.Join(m, ", ")
		}
		out.Status("", "   "+details)
		out.Newline()
	}

	return nil
}

// printLookupJSON outputs results in JSON format.
func printLookupJSON(cmd *cobra.Command, results []searcher.Result, previews map[string]string) error {
	type row struct {
		EquationID string   `json:"equation_id"`
		DocumentID string   `json:"document_id"`
		Type       string   `json:"equation_type"`
		Markup     string   `json:"markup,omitempty"`
		Score      float64  `json:"score"`
		Matched    []string `json:"matched_terms,omitempty"`
	}

	rows := make([]row, 0, len(results))
	for _, r := range results {
		rows = append(rows, row{
			EquationID: r.EquationID,
			DocumentID: r.DocumentID,
			Type:       r.EquationType,
			Markup:     previews[r.EquationID],
			Score:      r.Score,
			Matched:    r.MatchedTerms,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
