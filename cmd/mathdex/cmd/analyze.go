package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paperlens/mathdex/internal/config"
	"github.com/paperlens/mathdex/internal/equation"
	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/gitignore"
	"github.com/paperlens/mathdex/internal/index"
	"github.com/paperlens/mathdex/internal/output"
	"github.com/paperlens/mathdex/internal/store"
	"github.com/paperlens/mathdex/internal/ui"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		noTUI      bool
		exportPath string
		docID      string
	)

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze documents and build the equation index",
		Long: `Analyze documents, extracting their mathematical content into the index.

This extracts LaTeX equations, classifies them by mathematical type,
recognizes the concepts discussed around them, links related concepts
into a graph, and scores pairwise equation similarity. Results are
persisted under .mathdex/ and fed into the lexical catalog so that
'mathdex search' and 'mathdex lookup' can query them.

The path may be a directory (analyzed recursively), a single document,
or "-" to read one document from stdin. With no path, the current
directory is analyzed.

Document ids default to the path relative to the project root with the
extension dropped. Re-analyzing a document replaces its previous index.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Signal handling so Ctrl+C cancels the similarity workers
			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			return runAnalyze(ctx, cmd, path, noTUI, exportPath, docID)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable the TUI and print plain text")
	cmd.Flags().StringVar(&exportPath, "export", "", "Also write the analyzed index as JSON to this file")
	cmd.Flags().StringVar(&docID, "doc", "", "Document id to store the analysis under (single document or stdin only)")

	return cmd
}

// analysisInput is one document ready for the pipeline.
type analysisInput struct {
	documentID string
	text       string
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, path string, noTUI bool, exportPath, docID string) error {
	out := output.New(cmd.OutOrStdout())

	// The project root anchors document ids and the data directory. For
	// stdin there is no path to walk up from, so the working directory
	// decides.
	var root string
	if path == "-" {
		root = resolveProjectRoot()
	} else {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		fi, err := os.Stat(absPath)
		if err != nil {
			return mderrors.New(mderrors.CodeFileNotFound,
				fmt.Sprintf("cannot access %s", absPath), err).
				WithHint("check that the path exists and is readable")
		}
		searchDir := absPath
		if !fi.IsDir() {
			searchDir = filepath.Dir(absPath)
		}
		if root, err = config.FindProjectRoot(searchDir); err != nil {
			root = searchDir
		}
		path = absPath
	}

	cfg := loadProjectConfig(root)
	defer setupFileLogging(cfg.Logging.Level)()

	inputs, err := collectInputs(cmd, root, cfg, path, docID)
	if err != nil {
		return err
	}
	if exportPath != "" && len(inputs) > 1 {
		return mderrors.New(mderrors.CodeInvalidInput,
			fmt.Sprintf("--export applies to a single document, found %d", len(inputs)), nil)
	}
	if len(inputs) == 0 {
		out.Statusf("ℹ️", "No documents with extensions %s under %s",
			strings.Join(cfg.Extraction.Extensions, ", "), path)
		return nil
	}

	// One writer at a time. A held lock usually means a watch session.
	stores, err := openWriterStores(ctx, root, cfg,
		"stop 'mathdex watch' or wait for the other process to finish")
	if err != nil {
		return err
	}
	defer stores.release()

	// The TUI panel models a single analysis run and quits when that run
	// completes, so batch runs always use plain output.
	forcePlain := noTUI || len(inputs) > 1
	uiCfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(forcePlain), ui.WithProjectDir(root))
	panel := ui.NewRenderer(uiCfg)
	if err := panel.Start(ctx); err != nil {
		slog.Warn("progress renderer failed to start", slog.String("error", err.Error()))
	}
	defer func() { _ = panel.Stop() }()

	builder, err := index.NewBuilder(index.BuilderDependencies{Config: cfg, Renderer: panel})
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	analyzed := make([]*index.Index, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		idx := builder.Build(ctx, in.text, in.documentID)

		panel.Advance(ui.ProgressEvent{
			Stage: ui.StagePersisting,
			Note:  fmt.Sprintf("Persisting %s...", in.documentID),
		})
		if err := stores.docs.SaveDocument(ctx, idx.Snapshot()); err != nil {
			return fmt.Errorf("failed to persist %s: %w", in.documentID, err)
		}
		if err := stores.cataloger.IndexDocument(ctx, idx); err != nil {
			return fmt.Errorf("failed to catalog %s: %w", in.documentID, err)
		}

		analyzed = append(analyzed, idx)
	}

	if err := stores.docs.Checkpoint(); err != nil {
		slog.Warn("wal checkpoint failed", slog.String("error", err.Error()))
	}

	// Make sure the terminal is back to normal before the summary prints
	_ = panel.Stop()

	printAnalysisSummary(out, analyzed, stores.dataDir)

	if exportPath != "" {
		if err := writeIndexJSON(analyzed[0], exportPath); err != nil {
			return err
		}
		out.Statusf("📤", "Exported %s to %s", analyzed[0].DocumentID, exportPath)
	}

	return nil
}

// collectInputs gathers the documents to analyze: stdin for "-", the single
// file for a file path, or every matching document under a directory.
func collectInputs(cmd *cobra.Command, root string, cfg *config.Config, path, docID string) ([]analysisInput, error) {
	if path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		id := docID
		if id == "" {
			id = "stdin"
		}
		return []analysisInput{{documentID: id, text: string(raw)}}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}

	if !info.IsDir() {
		if maxBytes := maxDocumentBytes(cfg); maxBytes > 0 && info.Size() > maxBytes {
			return nil, fmt.Errorf("%s exceeds the %d MB document size limit", path, cfg.Performance.MaxFileSizeMB)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		id := docID
		if id == "" {
			id = documentIDForPath(root, path)
		}
		return []analysisInput{{documentID: id, text: string(raw)}}, nil
	}

	if docID != "" {
		return nil, fmt.Errorf("--doc names a single document, but %s is a directory", path)
	}

	return collectDirectoryInputs(root, path, cfg)
}

func collectDirectoryInputs(root, dir string, cfg *config.Config) ([]analysisInput, error) {
	extensions := make(map[string]bool, len(cfg.Extraction.Extensions))
	for _, ext := range cfg.Extraction.Extensions {
		extensions[strings.ToLower(ext)] = true
	}
	maxBytes := maxDocumentBytes(cfg)

	// Ignore files are folded in as directories are entered, so their
	// rules are loaded before any path they could exclude is visited.
	ignores := gitignore.New()
	honorGitignore := cfg.Paths.HonorGitignore()

	var inputs []analysisInput
	werr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == dir {
				if honorGitignore {
					loadIgnoreFile(ignores, path, "")
				}
				return nil
			}
			if rel := walkRel(root, path); underRoot(rel) && cfg.Paths.ExcludesDir(rel) {
				slog.Debug("skipping excluded directory", slog.String("path", path))
				return filepath.SkipDir
			}
			rel := walkRel(dir, path)
			if ignores.Match(rel, true) {
				slog.Debug("skipping ignored directory", slog.String("path", path))
				return filepath.SkipDir
			}
			if honorGitignore {
				loadIgnoreFile(ignores, path, rel)
			}
			return nil
		}
		if !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if rel := walkRel(root, path); underRoot(rel) && (!cfg.Paths.Included(rel) || cfg.Paths.ExcludesFile(rel)) {
			slog.Debug("skipping excluded document", slog.String("path", path))
			return nil
		}
		if ignores.Match(walkRel(dir, path), false) {
			slog.Debug("skipping ignored document", slog.String("path", path))
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			slog.Warn("skipping oversized document",
				slog.String("path", path),
				slog.Int64("size_bytes", info.Size()),
				slog.Int("limit_mb", cfg.Performance.MaxFileSizeMB))
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable document",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		inputs = append(inputs, analysisInput{
			documentID: documentIDForPath(root, path),
			text:       string(raw),
		})
		return nil
	})
	if werr != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, werr)
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].documentID < inputs[j].documentID })
	return inputs, nil
}

// walkRel is the walk path relative to the walk origin, slash
// normalized for ignore matching.
func walkRel(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// underRoot reports whether a root-relative walk path stayed inside the
// project tree. Include and exclude patterns speak root-relative paths,
// so they never apply outside it.
func underRoot(rel string) bool {
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// loadIgnoreFile folds a directory's .gitignore into the ruleset when
// one exists.
func loadIgnoreFile(ignores *gitignore.Ruleset, dirPath, base string) {
	path := filepath.Join(dirPath, ".gitignore")
	if err := ignores.LoadFile(path, base); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("skipping unreadable ignore file",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func maxDocumentBytes(cfg *config.Config) int64 {
	return int64(cfg.Performance.MaxFileSizeMB) * 1024 * 1024
}

// documentIDForPath derives a stable document id from a file path: the path
// relative to the project root, extension dropped, forward slashes. Analyzing
// the same file again replaces its earlier index under the same id.
func documentIDForPath(root, path string) string {
	id := path
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		id = rel
	} else {
		id = filepath.Base(path)
	}
	id = strings.TrimSuffix(id, filepath.Ext(id))
	return filepath.ToSlash(id)
}

// openCatalog opens the lexical catalog under dataDir. An existing catalog
// keeps the backend it was created with; the configured backend only applies
// when no catalog exists yet.
func openCatalog(dataDir string, cfg *config.Config) (store.Catalog, error) {
	basePath := filepath.Join(dataDir, "catalog")
	backend := cfg.Catalog.Backend
	if detected := store.DetectCatalogBackend(basePath); detected != "" {
		backend = string(detected)
	}

	catalogCfg := store.DefaultCatalogConfig()
	if cfg.Catalog.MaxResults > 0 {
		catalogCfg.MaxResults = cfg.Catalog.MaxResults
	}

	return store.NewCatalogWithBackend(basePath, catalogCfg, backend)
}

func printAnalysisSummary(out *output.Console, analyzed []*index.Index, dataDir string) {
	out.Newline()

	if len(analyzed) == 1 {
		printDocumentSummary(out, analyzed[0])
	} else {
		var equations, concepts int
		for _, idx := range analyzed {
			stats := idx.Stats()
			equations += stats.TotalEquations
			concepts += stats.TotalConcepts
			out.Statusf("📄", "%s: %d equations, %d concepts",
				idx.DocumentID, stats.TotalEquations, stats.TotalConcepts)
		}
		out.Newline()
		out.Successf("Analyzed %d documents: %d equations, %d concepts",
			len(analyzed), equations, concepts)
	}

	out.Statusf("💾", "Index: %s", store.GetStorePath(dataDir))
}

func printDocumentSummary(out *output.Console, idx *index.Index) {
	stats := idx.Stats()
	out.Successf("Analyzed %s: %d equations, %d concepts, %d graph edges",
		idx.DocumentID, stats.TotalEquations, stats.TotalConcepts, stats.GraphEdges)

	if stats.TotalEquations == 0 {
		out.Status("", `No equations found. Supported delimiters include $...$, $$...$$, \[...\] and equation environments.`)
		return
	}

	if byType := idx.EquationsByType(); len(byType) > 0 {
		out.Newline()
		out.Status("🧮", "Equations by type:")
		for _, tc := range sortedTypeCounts(byType) {
			out.Statusf("", "%-16s %d", tc.name, tc.count)
		}
	}

	if top := idx.TopConcepts(5); len(top) > 0 {
		out.Newline()
		out.Status("🧠", "Top concepts:")
		for _, c := range top {
			out.Statusf("", "%s (%d equations)", c.Name, len(c.Equations))
		}
	}
}

type typeCount struct {
	name  string
	count int
}

// sortedTypeCounts orders equation types by count descending, then name, so
// the summary is stable across runs.
func sortedTypeCounts(byType map[equation.Type]int) []typeCount {
	counts := make([]typeCount, 0, len(byType))
	for t, n := range byType {
		counts = append(counts, typeCount{name: string(t), count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})
	return counts
}

// writeIndexJSON exports an index as JSON to the given file.
func writeIndexJSON(idx *index.Index, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := idx.Export(out); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to export %s: %w", idx.DocumentID, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
