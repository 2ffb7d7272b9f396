package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/index"
	"github.com/paperlens/mathdex/internal/output"
	"github.com/paperlens/mathdex/internal/store"
	"github.com/paperlens/mathdex/pkg/indexer"
)

func newImportCmd() *cobra.Command {
	var overrideDoc string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a previously exported document index",
		Long: `Import a document index from a JSON export.

The imported document is persisted under its exported id (or --doc)
and cataloged for lookup, replacing any previous analysis stored under
that id. Similarity scores are recomputed from the imported equations,
so an edited export cannot carry stale scores. Use "-" to read the
export from stdin.

Examples:
  mathdex import index.json
  mathdex export --doc thesis | mathdex import --doc thesis-copy -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runImport(ctx, cmd, args[0], overrideDoc)
		},
	}

	cmd.Flags().StringVar(&overrideDoc, "doc", "", "Store the import under this document id instead of the exported one")

	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, path, docID string) error {
	root := resolveProjectRoot()
	cfg := loadProjectConfig(root)
	defer setupFileLogging(cfg.Logging.Level)()

	out := output.New(cmd.OutOrStdout())

	var reader io.Reader
	if path == "-" {
		reader = cmd.InOrStdin()
	} else {
		in, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open export file: %w", err)
		}
		defer func() { _ = in.Close() }()
		reader = in
	}

	builder, err := index.NewBuilder(index.BuilderDependencies{Config: cfg})
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	idx, err := builder.Import(ctx, reader)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if docID != "" {
		idx.DocumentID = docID
	}

	dataDir := cfg.DataDir(root)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dataDir, err)
	}

	// One writer at a time. A held lock usually means a watch session.
	lk := store.NewWriterLock(dataDir)
	if err := lk.Acquire(ctx); err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			return mderrors.New(mderrors.CodeStoreLocked,
				fmt.Sprintf("another mathdex process is writing to %s", dataDir), err).
				WithHint("stop 'mathdex watch' or wait for the other process to finish")
		}
		return fmt.Errorf("failed to acquire writer lock: %w", err)
	}
	defer func() { _ = lk.Unlock() }()

	docStore, err := store.NewSQLiteStoreWithConfig(store.GetStorePath(dataDir), store.StoreConfig{
		CacheMB: cfg.Performance.SQLiteCacheMB,
	})
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer func() { _ = docStore.Close() }()

	catalog, err := openCatalog(dataDir, cfg)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	catalogIndexer, err := indexer.NewCatalogIndexer(catalog)
	if err != nil {
		return fmt.Errorf("failed to create catalog indexer: %w", err)
	}
	defer func() { _ = catalogIndexer.Close() }()

	if err := docStore.SaveDocument(ctx, idx.Snapshot()); err != nil {
		return fmt.Errorf("failed to persist %s: %w", idx.DocumentID, err)
	}
	if err := catalogIndexer.IndexDocument(ctx, idx); err != nil {
		return fmt.Errorf("failed to catalog %s: %w", idx.DocumentID, err)
	}
	if err := docStore.Checkpoint(); err != nil {
		slog.Warn("wal checkpoint failed", slog.String("error", err.Error()))
	}

	stats := idx.Stats()
	slog.Info("import_complete",
		slog.String("document_id", idx.DocumentID),
		slog.Int("equations", stats.TotalEquations),
		slog.Int("concepts", stats.TotalConcepts))

	out.Successf("Imported %s: %d equations, %d concepts, %d similarity pairs recomputed",
		idx.DocumentID, stats.TotalEquations, stats.TotalConcepts, stats.SimilarityPairs)
	out.Statusf("💾", "Index: %s", store.GetStorePath(dataDir))

	return nil
}
