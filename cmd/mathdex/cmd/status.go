package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperlens/mathdex/internal/config"
	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/index"
	"github.com/paperlens/mathdex/internal/output"
	"github.com/paperlens/mathdex/internal/store"
	"github.com/paperlens/mathdex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var asJSON, verify, repair bool

	cmd := &cobra.Command{
		Use: "status", Short: "Report index health and contents",
		Long: `Inspect the current index:
  - Analyzed documents with their equation and concept counts
  - Storage sizes (index, catalog)
  - Catalog backend, health, and whether it is in sync with the store
  - Whether a writer (usually 'mathdex watch') is active

With --verify, cross-checks the index and catalog instead: every stored
equation should be cataloged, and every catalog entry should belong to a
stored document. --repair removes stale catalog entries found this way.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if repair && !verify {
				return fmt.Errorf("--repair requires --verify")
			}
			return runStatus(cmd.Context(), cmd, asJSON, verify, repair)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&verify, "verify", false, "Cross-check index and catalog instead of showing status")
	cmd.Flags().BoolVar(&repair, "repair", false, "With --verify, remove stale catalog entries")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, asJSON, verify, repair bool) error {
	root := resolveProjectRoot()
	cfg := loadProjectConfig(root)
	dataDir := cfg.DataDir(root)

	indexPath := store.GetStorePath(dataDir)
	if !fileExists(indexPath) {
		return mderrors.New(mderrors.CodeFileNotFound,
			fmt.Sprintf("no index found in %s", root), nil).
			WithHint("run 'mathdex analyze' to create one")
	}

	if verify {
		return runStatusVerify(ctx, cmd, dataDir, cfg, asJSON, repair)
	}

	info, err := collectStatus(ctx, root, dataDir, cfg)
	if err != nil {
		return fmt.Errorf("collect status: %w", err)
	}

	w := ui.NewStatusWriter(cmd.OutOrStdout(), ui.NoColorEnv())
	if asJSON {
		return w.WriteJSON(info)
	}
	return w.WriteText(info)
}

// verifyIssue is the JSON form of one detected drift.
type verifyIssue struct {
	Kind       string `json:"kind"`
	EquationID string `json:"equation_id"`
	Details    string `json:"details"`
}

// verifyOutput is the JSON form of a verification scan.
type verifyOutput struct {
	Checked    int           `json:"checked"`
	Drift      []verifyIssue `json:"drift"`
	Repaired   bool          `json:"repaired"`
	DurationMS int64         `json:"duration_ms"`
}

// runStatusVerify cross-checks the document store against the catalog and
// optionally repairs what it finds. Orphaned catalog entries are deletable;
// missing ones need a re-analyze to rebuild their search terms.
func runStatusVerify(ctx context.Context, cmd *cobra.Command, dataDir string, cfg *config.Config, asJSON, repair bool) error {
	indexPath := store.GetStorePath(dataDir)
	docStore, err := store.NewSQLiteStore(indexPath)
	if err != nil {
		return fmt.Errorf("open index store: %w", err)
	}
	defer func() { _ = docStore.Close() }()

	catalog, err := openCatalog(dataDir, cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = catalog.Close() }()

	verifier := index.NewVerifier(docStore, catalog)
	result, err := verifier.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verify index: %w", err)
	}

	repaired := false
	if repair && len(result.Drifts) > 0 {
		if err := verifier.Repair(ctx, result.Drifts); err != nil {
			return fmt.Errorf("repair catalog: %w", err)
		}
		repaired = true
	}

	if asJSON {
		report := verifyOutput{
			Checked:    result.Checked,
			Drift:      make([]verifyIssue, 0, len(result.Drifts)),
			Repaired:   repaired,
			DurationMS: result.Elapsed.Milliseconds(),
		}
		for _, d := range result.Drifts {
			report.Drift = append(report.Drift, verifyIssue{
				Kind:       d.Kind.String(),
				EquationID: d.EquationID,
				Details:    d.Details,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("🔍", "Verified %d stored equations in %s",
		result.Checked, result.Elapsed.Round(time.Millisecond))

	if len(result.Drifts) == 0 {
		out.Success("Index and catalog are in sync")
		return nil
	}

	out.Warningf("Found %d drifted entries:", len(result.Drifts))
	for _, d := range result.Drifts {
		fmt.Fprintf(cmd.OutOrStdout(), "  - [%s] %s: %s\n",
			d.Kind, d.EquationID, d.Details)
	}

	if repaired {
		out.Success("Removed stale catalog entries. Run 'mathdex analyze' to rebuild missing ones.")
	} else {
		out.Status("💡", "Run 'mathdex status --verify --repair' to remove stale catalog entries")
	}

	return nil
}

func collectStatus(ctx context.Context, root, dataDir string, cfg *config.Config) (ui.StatusReport, error) {
	rep := ui.StatusReport{ProjectName: filepath.Base(root), DataDir: dataDir}

	indexPath := store.GetStorePath(dataDir)
	docStore, err := store.NewSQLiteStore(indexPath)
	if err != nil {
		return rep, fmt.Errorf("open index store: %w", err)
	}
	defer func() { _ = docStore.Close() }()

	docs, err := docStore.ListDocuments(ctx)
	if err != nil {
		return rep, fmt.Errorf("list documents: %w", err)
	}
	for _, d := range docs {
		rep.Documents = append(rep.Documents, ui.DocumentStatus{
			DocumentID: d.DocumentID,
			CreatedAt:  d.CreatedAt,
			Equations:  d.EquationCount,
			Concepts:   d.ConceptCount,
			GraphNodes: d.GraphNodes,
			GraphEdges: d.GraphEdges,
		})
	}

	rep.IndexSize, _ = docStore.SizeOnDisk()

	// Catalog health: count entries through the real backend so a corrupt
	// or locked catalog shows as an error here rather than during lookup.
	switch backend := store.DetectCatalogBackend(filepath.Join(dataDir, "catalog")); backend {
	case "":
		rep.CatalogBackend = cfg.Catalog.Backend
		if rep.CatalogBackend == "" {
			rep.CatalogBackend = string(store.CatalogBackendSQLite)
		}
		rep.CatalogStatus = "empty"
	default:
		rep.CatalogBackend = string(backend)
		rep.CatalogSize = diskUsage(store.GetCatalogPath(dataDir, string(backend)))
		rep.CatalogStatus = probeCatalog(ctx, docStore, dataDir, cfg)
	}
	rep.TotalSize = rep.IndexSize + rep.CatalogSize

	rep.WatcherStatus = probeWriterLock(dataDir)
	return rep, nil
}

// probeCatalog opens the catalog, counts entries, and compares the count
// against the stored equations. A populated catalog that disagrees with the
// store reports "stale" so 'status --verify' gets pointed at before lookups
// start missing results.
func probeCatalog(ctx context.Context, docs store.DocumentStore, dataDir string, cfg *config.Config) string {
	catalog, err := openCatalog(dataDir, cfg)
	if err != nil {
		return "error"
	}
	defer func() { _ = catalog.Close() }()

	n, err := catalog.Count()
	switch {
	case err != nil:
		return "error"
	case n == 0:
		return "empty"
	}

	state := "ready"
	if inSync, err := index.NewVerifier(docs, catalog).InSync(ctx); err == nil && !inSync {
		state = "stale"
	}
	return state
}

// probeWriterLock reports whether another process holds the writer lock.
// Releasing a flock leaves the lock file behind, so only a held lock means
// anything is running.
func probeWriterLock(dataDir string) string {
	lock := store.NewWriterLock(dataDir)
	if !fileExists(lock.Path()) {
		return "n/a"
	}

	got, err := lock.TryLock()
	if err != nil {
		return "n/a"
	}
	if got {
		_ = lock.Unlock()
		return "n/a"
	}
	return "running"
}

// diskUsage totals the size of a file, or of every file under a directory.
// Missing paths count as zero.
func diskUsage(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
