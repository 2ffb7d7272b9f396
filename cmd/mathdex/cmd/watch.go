package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paperlens/mathdex/internal/async"
	"github.com/paperlens/mathdex/internal/config"
	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/gitignore"
	"github.com/paperlens/mathdex/internal/index"
	"github.com/paperlens/mathdex/internal/output"
	"github.com/paperlens/mathdex/internal/store"
	"github.com/paperlens/mathdex/internal/watcher"
	"github.com/paperlens/mathdex/pkg/indexer"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Watch documents and re-analyze on change",
		Long: `Watch documents and keep the index current as they change.

Directories are watched recursively, individual files by name. Rapid
bursts of writes (editor saves, latexmk runs) are debounced into a
single re-analysis per document. Deleting or renaming a document away
removes it from the index and catalog. Documents matched by the project
.gitignore are left alone.

With no paths, the project root is watched and a catch-up analysis runs
in the background first, so edits made while no watch was running still
reach the index. Stop with Ctrl+C.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmd, args)
		},
	}

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, paths []string) error {
	root := resolveProjectRoot()
	cfg := loadProjectConfig(root)
	defer setupFileLogging(cfg.Logging.Level)()

	out := output.New(cmd.OutOrStdout())

	// Catch-up covers the whole project tree, which only lines up with
	// the default invocation. Explicit paths may reach outside it, and
	// pruning would then drop documents the scan never saw.
	catchUpWanted := len(paths) == 0
	if catchUpWanted {
		paths = []string{root}
	}

	// The watch session is the writer for its whole lifetime.
	stores, err := openWriterStores(ctx, root, cfg,
		"only one watch or analyze session can write at a time")
	if err != nil {
		return err
	}
	defer stores.release()

	// Rebuilds run silently; the session prints one line per document.
	builder, err := index.NewBuilder(index.BuilderDependencies{Config: cfg})
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	debounce := 500 * time.Millisecond
	if cfg.Performance.CoalesceWindow != "" {
		if d, parseErr := time.ParseDuration(cfg.Performance.CoalesceWindow); parseErr == nil && d > 0 {
			debounce = d
		}
	}

	w, err := watcher.NewDocumentWatcher(watcher.Config{
		Debounce:   debounce,
		Extensions: cfg.Extraction.Extensions,
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	ignores := gitignore.New()
	if cfg.Paths.HonorGitignore() {
		loadIgnoreFile(ignores, root, "")
	}

	session := &watchSession{
		root:           root,
		maxBytes:       maxDocumentBytes(cfg),
		cfg:            cfg,
		ignores:        ignores,
		docStore:       stores.docs,
		catalogIndexer: stores.cataloger,
		builder:        builder,
		out:            out,
	}

	var catchUp *async.BackgroundAnalyzer
	if catchUpWanted {
		if async.HasIncompleteAnalysis(stores.dataDir) {
			slog.Warn("previous catch-up analysis did not finish")
		}
		catchUp = async.NewBackgroundAnalyzer(async.AnalyzerConfig{DataDir: stores.dataDir})
		catchUp.AnalyzeFunc = session.catchUp
		catchUp.Start(ctx)
	}

	// Event and error channels close when the watcher stops, ending both
	// consumer goroutines.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for batch := range w.Events() {
			session.handleBatch(ctx, batch)
		}
	}()
	go func() {
		defer wg.Done()
		for watchErr := range w.Errors() {
			slog.Warn("watch error", slog.String("error", watchErr.Error()))
			out.Warningf("watch: %v", watchErr)
		}
	}()

	out.Statusf("👀", "Watching %s (debounce %s, Ctrl+C to stop)", strings.Join(paths, ", "), debounce)
	slog.Info("watch_started",
		slog.String("paths", strings.Join(paths, ", ")),
		slog.String("debounce", debounce.String()))

	err = w.Start(ctx, paths...)
	wg.Wait()

	if catchUp != nil {
		catchUp.Stop()
		if cuErr := catchUp.Wait(); cuErr != nil && !errors.Is(cuErr, context.Canceled) {
			out.Warningf("catch-up analysis failed: %v", cuErr)
		}
	}

	if checkpointErr := stores.docs.Checkpoint(); checkpointErr != nil {
		slog.Warn("wal checkpoint failed", slog.String("error", checkpointErr.Error()))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	out.Newline()
	out.Success("Watch stopped")
	return nil
}

// watchSession holds the long-lived pieces a watch run re-analyzes with.
// Event handling runs on a single goroutine, so the breaker map needs no
// locking.
type watchSession struct {
	root           string
	maxBytes       int64
	cfg            *config.Config
	ignores        *gitignore.Ruleset
	docStore       *store.SQLiteStore
	catalogIndexer *indexer.CatalogIndexer
	builder        *index.Builder
	out            *output.Console
	breakers       map[string]*mderrors.Breaker
}

// catchUp re-analyzes the project tree once at session start, so edits
// made while no watch was running still reach the index, and prunes
// stored documents whose files are gone.
func (s *watchSession) catchUp(ctx context.Context, progress *async.AnalysisProgress) error {
	inputs, err := collectDirectoryInputs(s.root, s.root, s.cfg)
	if err != nil {
		return err
	}
	progress.SetStage(async.StageExtracting, len(inputs))

	seen := make(map[string]bool, len(inputs))
	equations := 0
	for i, input := range inputs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		seen[input.documentID] = true
		idx := s.builder.Build(ctx, input.text, input.documentID)
		if err := s.docStore.SaveDocument(ctx, idx.Snapshot()); err != nil {
			return fmt.Errorf("failed to persist %s: %w", input.documentID, err)
		}
		if err := s.catalogIndexer.IndexDocument(ctx, idx); err != nil {
			return fmt.Errorf("failed to catalog %s: %w", input.documentID, err)
		}

		equations += idx.Stats().TotalEquations
		progress.UpdateDocuments(i + 1)
		progress.UpdateEquations(equations)
		if (i+1)%25 == 0 {
			cur := progress.Snapshot()
			slog.Info("catch_up_progress",
				slog.Int("processed", cur.DocumentsProcessed),
				slog.Int("total", cur.DocumentsTotal),
				slog.Float64("pct", cur.ProgressPct))
		}
	}

	progress.SetStage(async.StagePruning, len(inputs))
	removed, err := s.pruneMissing(ctx, seen)
	if err != nil {
		return err
	}

	progress.SetStage(async.StagePersisting, len(inputs))
	if err := s.docStore.Checkpoint(); err != nil {
		slog.Warn("wal checkpoint failed", slog.String("error", err.Error()))
	}

	s.out.Statusf("📚", "Caught up: %d documents, %d equations, %d removed", len(inputs), equations, removed)
	slog.Info("catch_up_complete",
		slog.Int("documents", len(inputs)),
		slog.Int("equations", equations),
		slog.Int("removed", removed))
	return nil
}

// pruneMissing drops stored documents that the catch-up scan did not
// find on disk anymore.
func (s *watchSession) pruneMissing(ctx context.Context, seen map[string]bool) (int, error) {
	stored, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, doc := range stored {
		if seen[doc.DocumentID] {
			continue
		}
		if err := s.docStore.DeleteDocument(ctx, doc.DocumentID); err != nil {
			slog.Warn("failed to prune document",
				slog.String("document", doc.DocumentID),
				slog.String("error", err.Error()))
			continue
		}
		if err := s.catalogIndexer.DeleteDocument(ctx, doc.DocumentID); err != nil {
			slog.Warn("failed to prune catalog entries",
				slog.String("document", doc.DocumentID),
				slog.String("error", err.Error()))
		}
		removed++
	}
	return removed, nil
}

// handleBatch applies one debounced batch of file events to the index.
func (s *watchSession) handleBatch(ctx context.Context, batch []watcher.Event) {
	for _, ev := range batch {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ev.IsDir {
			// Only removals surface for directories. Everything indexed
			// under the old path is gone.
			s.removeDirectory(ctx, ev.Path)
			continue
		}

		switch ev.Change {
		case watcher.Deleted, watcher.Renamed:
			s.removeDocument(ctx, documentIDForPath(s.root, ev.Path))
		case watcher.Created, watcher.Modified:
			s.reanalyze(ctx, ev.Path)
		}
	}

	if err := s.docStore.Checkpoint(); err != nil {
		slog.Warn("wal checkpoint failed", slog.String("error", err.Error()))
	}
}

// reanalyze runs the pipeline over one changed document and persists the
// result. Errors warn and keep the session alive; a document that fails
// on every save trips its breaker and stops being re-analyzed until the
// breaker cools down.
func (s *watchSession) reanalyze(ctx context.Context, path string) {
	rel := walkRel(s.root, path)
	if underRoot(rel) && (!s.cfg.Paths.Included(rel) || s.cfg.Paths.ExcludesFile(rel)) {
		slog.Debug("skipping excluded document", slog.String("path", path))
		return
	}
	if s.ignores.Match(rel, false) {
		slog.Debug("skipping ignored document", slog.String("path", path))
		return
	}

	err := s.breakerFor(path).Execute(func() error {
		return s.analyzeFile(ctx, path)
	})
	switch {
	case err == nil:
	case errors.Is(err, mderrors.ErrBreakerOpen):
		slog.Debug("breaker open, skipping document", slog.String("path", path))
	default:
		s.out.Warningf("failed to re-analyze %s: %v", documentIDForPath(s.root, path), err)
		slog.Debug("document analysis failed",
			slog.String("path", path),
			slog.Any("details", mderrors.Attrs(err)))
	}
}

// analyzeFile runs the pipeline over one document. Skip conditions (file
// gone, oversized) return nil; real failures count against the breaker.
func (s *watchSession) analyzeFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		// Deleted again between the event and now. The delete event is
		// already behind this one in the batch or the next.
		return nil
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		slog.Warn("skipping oversized document",
			slog.String("path", path),
			slog.Int64("size_bytes", info.Size()))
		return nil
	}

	// Editor saves can truncate and rewrite; a failed read gets a couple
	// of quick retries before counting as a failure.
	data, err := mderrors.RetryWithResult(ctx, mderrors.ReadBackoff(), func() ([]byte, error) {
		return os.ReadFile(path)
	})
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	docID := documentIDForPath(s.root, path)
	idx := s.builder.Build(ctx, string(data), docID)

	if err := s.docStore.SaveDocument(ctx, idx.Snapshot()); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := s.catalogIndexer.IndexDocument(ctx, idx); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	stats := idx.Stats()
	s.out.Statusf("🔄", "%s: %d equations, %d concepts", docID, stats.TotalEquations, stats.TotalConcepts)
	return nil
}

// breakerFor returns the per-document circuit breaker, creating it on
// first use.
func (s *watchSession) breakerFor(path string) *mderrors.Breaker {
	if b, ok := s.breakers[path]; ok {
		return b
	}
	b := mderrors.NewBreaker(path,
		mderrors.WithFailureLimit(3),
		mderrors.WithCooldown(time.Minute))
	if s.breakers == nil {
		s.breakers = make(map[string]*mderrors.Breaker)
	}
	s.breakers[path] = b
	return b
}

// removeDocument drops one document from the index and catalog.
func (s *watchSession) removeDocument(ctx context.Context, docID string) {
	if err := s.docStore.DeleteDocument(ctx, docID); err != nil {
		s.out.Warningf("failed to remove %s from index: %v", docID, err)
		return
	}
	if err := s.catalogIndexer.DeleteDocument(ctx, docID); err != nil {
		s.out.Warningf("failed to remove %s from catalog: %v", docID, err)
		return
	}
	s.out.Statusf("🗑️ ", "Removed %s", docID)
}

// removeDirectory drops every document indexed under a removed directory.
func (s *watchSession) removeDirectory(ctx context.Context, path string) {
	prefix := directoryPrefix(s.root, path)

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		s.out.Warningf("failed to list documents: %v", err)
		return
	}
	for _, doc := range docs {
		if strings.HasPrefix(doc.DocumentID, prefix) {
			s.removeDocument(ctx, doc.DocumentID)
		}
	}
}

// directoryPrefix derives the document id prefix for paths under a
// directory. Unlike document ids, directory names keep any extension-like
// suffix.
func directoryPrefix(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(rel) + "/"
}
