package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paperlens/mathdex/internal/config"
	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/store"
	"github.com/paperlens/mathdex/pkg/indexer"
)

// writerStores bundles everything a writing command opens under the data
// directory: the writer lock, the document store, and the catalog indexer
// wrapping the lexical catalog.
type writerStores struct {
	dataDir   string
	lock      *store.WriterLock
	docs      *store.SQLiteStore
	cataloger *indexer.CatalogIndexer
}

// openWriterStores creates the data directory, takes the writer lock, and
// opens the document store and catalog indexer. suggestion is the hint
// shown when another process already holds the lock.
func openWriterStores(ctx context.Context, root string, cfg *config.Config, suggestion string) (*writerStores, error) {
	dir := cfg.DataDir(root)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	lk := store.NewWriterLock(dir)
	if err := lk.Acquire(ctx); err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			return nil, mderrors.New(mderrors.CodeStoreLocked,
				fmt.Sprintf("another mathdex process is writing to %s", dir), err).
				WithHint(suggestion)
		}
		return nil, fmt.Errorf("failed to acquire writer lock: %w", err)
	}

	docs, err := store.NewSQLiteStoreWithConfig(store.GetStorePath(dir), store.StoreConfig{
		CacheMB: cfg.Performance.SQLiteCacheMB,
	})
	if err != nil {
		_ = lk.Unlock()
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	catalog, err := openCatalog(dir, cfg)
	if err != nil {
		_ = docs.Close()
		_ = lk.Unlock()
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	cataloger, err := indexer.NewCatalogIndexer(catalog)
	if err != nil {
		_ = catalog.Close()
		_ = docs.Close()
		_ = lk.Unlock()
		return nil, fmt.Errorf("failed to create catalog indexer: %w", err)
	}

	return &writerStores{dataDir: dir, lock: lk, docs: docs, cataloger: cataloger}, nil
}

// release closes the stores and drops the writer lock, in reverse order
// of acquisition. Closing the cataloger closes the catalog under it.
func (w *writerStores) release() {
	_ = w.cataloger.Close()
	_ = w.docs.Close()
	_ = w.lock.Unlock()
}
