package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// CatalogBackend selects the lexical catalog engine.
type CatalogBackend string

const (
	// CatalogBackendSQLite backs the catalog with SQLite FTS5. WAL mode
	// lets readers work while a writer holds the catalog.
	CatalogBackendSQLite CatalogBackend = "sqlite"

	// CatalogBackendBleve backs the catalog with Bleve v2. BoltDB takes
	// an exclusive file lock, so only one process can have it open.
	CatalogBackendBleve CatalogBackend = "bleve"
)

// NewCatalogWithBackend creates a Catalog on the requested backend.
// basePath carries no extension; each backend appends its own (.db for
// SQLite, .bleve for Bleve). An empty basePath gives an in-memory
// catalog, an empty backend means SQLite.
func NewCatalogWithBackend(basePath string, cfg CatalogConfig, backend string) (Catalog, error) {
	switch CatalogBackend(backend) {
	case CatalogBackendSQLite, "":
		return NewSQLiteCatalog(withExt(basePath, ".db"), cfg)
	case CatalogBackendBleve:
		return NewBleveCatalog(withExt(basePath, ".bleve"), cfg)
	default:
		return nil, fmt.Errorf("unknown catalog backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// withExt appends ext unless basePath is empty, which stays empty to
// request in-memory storage.
func withExt(basePath, ext string) string {
	if basePath == "" {
		return ""
	}
	return basePath + ext
}

// DetectCatalogBackend reports which backend wrote the catalog at
// basePath, preferring SQLite when both exist. An empty result means no
// catalog is there. Detection keeps an existing catalog readable after
// the configured backend changes.
func DetectCatalogBackend(basePath string) CatalogBackend {
	if isFile(basePath + ".db") {
		return CatalogBackendSQLite
	}
	if isDir(basePath + ".bleve") {
		return CatalogBackendBleve
	}
	return ""
}

// GetCatalogPath returns where the catalog lives inside dataDir for the
// given backend, extension included.
func GetCatalogPath(dataDir string, backend string) string {
	base := filepath.Join(dataDir, "catalog")
	if backend == string(CatalogBackendBleve) {
		return base + ".bleve"
	}
	return base + ".db"
}

// isFile reports whether path is an existing regular file.
func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// isDir reports whether path is an existing directory.
func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
