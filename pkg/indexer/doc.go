// Package indexer is the write-side facade over the equation catalog.
//
// The analyze, import, and watch commands push whole analyzed documents
// through an Indexer, and this package flattens them into the entries
// the catalog stores. Queries never come through here; the read side
// lives in pkg/searcher.
//
//	catalog, _ := store.NewCatalogWithBackend(dataDir, cfg, "sqlite")
//	ci, _ := indexer.NewCatalogIndexer(catalog)
//	defer ci.Close()
//
//	err := ci.IndexDocument(ctx, idx)
//
// Keeping the facade between the pipeline and store.Catalog means the
// catalog backend (bleve or SQLite FTS5) can change without touching
// any command, and tests can drive the pipeline against a mock catalog.
package indexer
