package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/index"
	"github.com/paperlens/mathdex/internal/output"
	"github.com/paperlens/mathdex/internal/store"
	"github.com/paperlens/mathdex/internal/telemetry"
)

// searchFlags carries the flag values for the search command.
type searchFlags struct {
	docID   string
	limit   int
	jsonOut bool
}

func newSearchCmd() *cobra.Command {
	var opts searchFlags

	cmd := &cobra.Command{
		Use:   "search <markup>",
		Short: "Find equations similar to a LaTeX query",
		Long: `Find the indexed equations most similar to a LaTeX query.

Similarity blends structural markup overlap, semantic agreement (type,
operators, complexity), and shared variables and functions. Delimiters
around the query are optional: '\frac{x}{2}' and '$\frac{x}{2}$' rank
identically.

Examples:
  mathdex search '\frac{\partial u}{\partial t} = \alpha \nabla^2 u'
  mathdex search 'E = mc^2' --limit 3
  mathdex search 'a^2 + b^2 = c^2' --doc chapters/pythagoras --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.docID, "doc", "", "Document to search (default: most recently analyzed)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 5, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, markup string, opts searchFlags) error {
	root := resolveProjectRoot()
	cfg := loadProjectConfig(root)
	defer setupFileLogging(cfg.Logging.Level)()

	slog.Info("search_started", slog.String("markup", markup), slog.Int("limit", opts.limit))
	out := output.New(cmd.OutOrStdout())

	dataDir := cfg.DataDir(root)
	indexPath := store.GetStorePath(dataDir)
	if !fileExists(indexPath) {
		return mderrors.New(mderrors.CodeFileNotFound,
			fmt.Sprintf("no index found in %s", dataDir), nil).
			WithHint("run 'mathdex analyze' to create one")
	}

	docStore, err := store.NewSQLiteStoreWithConfig(indexPath, store.StoreConfig{
		CacheMB: cfg.Performance.SQLiteCacheMB,
	})
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer func() { _ = docStore.Close() }()

	// Query telemetry feeds 'mathdex stats queries'. A telemetry failure
	// never blocks the search itself.
	metrics := openTracker(docStore)
	defer func() { _ = metrics.Close() }()

	docID := opts.docID
	if docID == "" {
		if docID, err = docStore.LatestDocumentID(ctx); err != nil {
			return fmt.Errorf("failed to pick a document: %w", err)
		}
	}

	snap, err := docStore.LoadDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to load document %s: %w", docID, err)
	}
	idx := index.FromSnapshot(snap)

	builder, err := index.NewBuilder(index.BuilderDependencies{
		Config:    cfg,
		Telemetry: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	results := builder.SearchSimilar(idx, markup, opts.limit)
	slog.Info("search_complete",
		slog.String("document_id", docID),
		slog.Int("results", len(results)))

	if opts.jsonOut {
		return printSearchJSON(cmd, idx, docID, results)
	}
	return printSearchText(out, idx, docID, markup, results)
}

// openTracker wires query telemetry to the index database. Falls back to
// in-memory aggregation when the telemetry tables cannot be reached.
func openTracker(docStore *store.SQLiteStore) *telemetry.Tracker {
	sink, err := telemetry.NewMetricsStore(docStore.DB())
	if err != nil {
		slog.Warn("query telemetry not persisted", slog.String("error", err.Error()))
		return telemetry.NewTracker(nil)
	}
	return telemetry.NewTracker(sink)
}

// printSearchText outputs results in human-readable format.
func printSearchText(out *output.Console, idx *index.Index, docID, markup string, results []index.SearchResult) error {
	if len(results) == 0 {
		out.Status("", fmt.Sprintf("No similar equations found for %q", markup))
		return nil
	}

	out.Statusf("🔍", "Found %d similar equations in %s:", len(results), docID)
	out.Newline()

	for i, r := range results {
		eq, ok := idx.Equations[r.EquationID]
		if !ok {
			continue
		}

		out.Statusf("", "%d. [%s] %s (score: %.3f)", i+1, eq.Type, equationPreview(eq.RawMarkup), r.Score)
		if snippet := equationPreview(eq.Context); snippet != "" {
			out.Status("", "   near: "+snippet)
		}
		out.Newline()
	}

	return nil
}

// printSearchJSON outputs results in JSON format.
func printSearchJSON(cmd *cobra.Command, idx *index.Index, docID string, results []index.SearchResult) error {
	type row struct {
		EquationID string  `json:"equation_id"`
		DocumentID string  `json:"document_id"`
		Type       string  `json:"equation_type"`
		Markup     string  `json:"markup"`
		Score      float64 `json:"score"`
		Context    string  `json:"context,omitempty"`
	}

	rows := make([]row, 0, len(results))
	for _, r := range results {
		eq, ok := idx.Equations[r.EquationID]
		if !ok {
			continue
		}
		rows = append(rows, row{
			EquationID: r.EquationID,
			DocumentID: docID,
			Type:       string(eq.Type),
			Markup:     eq.RawMarkup,
			Score:      r.Score,
			Context:    eq.Context,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// equationPreview flattens markup onto one line and truncates it so a
// result row stays readable.
func equationPreview(markup string) string {
	s := strings.Join(strings.Fields(markup), " ")
	const max = 80
	if len(s) > max {
		s = s[:max-3] + "..."
	}
	return s
}
