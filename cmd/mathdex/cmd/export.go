package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/index"
	"github.com/paperlens/mathdex/internal/output"
	"github.com/paperlens/mathdex/internal/store"
)

func newExportCmd() *cobra.Command {
	var (
		docID   string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an analyzed document as JSON",
		Long: `Export an analyzed document's index as JSON.

The export carries equations, concepts, and the concept graph. The
similarity matrix is derived data and stays out of the export; import
recomputes it. Without --output the JSON goes to stdout, so exports
pipe cleanly into jq or other tools.

Examples:
  mathdex export > index.json
  mathdex export --doc chapters/heat -o heat.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd, docID, outPath)
		},
	}

	cmd.Flags().StringVar(&docID, "doc", "", "Document to export (default: most recently analyzed)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}

func runExport(ctx context.Context, cmd *cobra.Command, docID, outPath string) error {
	// File-only logging so stdout stays valid JSON.
	root := resolveProjectRoot()
	cfg := loadProjectConfig(root)
	defer setupFileLogging(cfg.Logging.Level)()

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

	if outPath == "" {
		if err := idx.Export(cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("failed to export %s: %w", docID, err)
		}
		slog.Info("export_complete", slog.String("document_id", docID), slog.String("target", "stdout"))
		return nil
	}

	if err := writeIndexJSON(idx, outPath); err != nil {
		return err
	}
	slog.Info("export_complete", slog.String("document_id", docID), slog.String("target", outPath))

	out := output.New(cmd.OutOrStdout())
	stats := idx.Stats()
	out.Statusf("📤", "Exported %s (%d equations, %d concepts) to %s",
		docID, stats.TotalEquations, stats.TotalConcepts, outPath)

	return nil
}
