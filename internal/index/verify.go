package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/paperlens/mathdex/internal/store"
)

// DriftKind classifies a store/catalog mismatch.
type DriftKind int

const (
	// DriftOrphanEntry indicates a catalog entry whose equation is not in
	// any stored document.
	DriftOrphanEntry DriftKind = iota
	// DriftMissingEntry indicates a stored equation missing from the
	// catalog.
	DriftMissingEntry
)

// String returns the snake_case label used in verify output.
func (k DriftKind) String() string {
	switch k {
	case DriftOrphanEntry:
		return "orphan_entry"
	case DriftMissingEntry:
		return "missing_entry"
	default:
		return "unknown"
	}
}

// Drift is one detected store/catalog mismatch.
type Drift struct {
	Kind       DriftKind
	EquationID string
	Details    string
}

// VerifyResult is the outcome of a full verification scan. Checked counts
// the stored equations verified.
type VerifyResult struct {
	Checked int
	Drifts  []Drift
	Elapsed time.Duration
}

// Verifier validates that the document store and the lexical catalog
// agree. It detects orphaned catalog entries (cataloged but in no stored
// document) and missing entries (stored but never cataloged).
type Verifier struct {
	docs    store.DocumentStore
	catalog store.Catalog
}

// NewVerifier creates a verifier over the given store and catalog.
func NewVerifier(docs store.DocumentStore, catalog store.Catalog) *Verifier {
	return &Verifier{docs: docs, catalog: catalog}
}

// Verify scans both sides for drift.
// This is O(n) in the total number of equations across store and catalog.
func (v *Verifier) Verify(ctx context.Context) (*VerifyResult, error) {
	began := time.Now()

	// The document store is the source of truth.
	storedIDs, err := v.docs.AllEquationIDs(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(storedIDs))
	for _, id := range storedIDs {
		stored[id] = true
	}

	catalogIDs, err := v.catalog.AllIDs()
	if err != nil {
		// A broken catalog still leaves the missing-entry scan meaningful.
		slog.Warn("listing catalog ids for verification failed", slog.String("error", err.Error()))
	}
	cataloged := make(map[string]bool, len(catalogIDs))
	for _, id := range catalogIDs {
		cataloged[id] = true
	}

	var drifts []Drift
	report := func(k DriftKind, id, details string) {
		drifts = append(drifts, Drift{Kind: k, EquationID: id, Details: details})
	}
	for _, id := range catalogIDs {
		if !stored[id] {
			report(DriftOrphanEntry, id, "catalog entry without a stored equation")
		}
	}
	for _, id := range storedIDs {
		if !cataloged[id] {
			report(DriftMissingEntry, id, "stored equation missing from catalog")
		}
	}

	return &VerifyResult{Checked: len(storedIDs), Drifts: drifts, Elapsed: time.Since(began)}, nil
}

// Repair fixes what Verify found. Orphans are deleted from the catalog
// best-effort; missing entries only get a warning, since rebuilding their
// search terms takes a re-analyze.
func (v *Verifier) Repair(ctx context.Context, drifts []Drift) error {
	var orphans []string
	missing := 0
	for _, d := range drifts {
		switch d.Kind {
		case DriftOrphanEntry:
			orphans = append(orphans, d.EquationID)
		case DriftMissingEntry:
			missing++
		}
	}

	if len(orphans) > 0 {
		if err := v.catalog.Delete(ctx, orphans); err != nil {
			slog.Warn("deleting orphan catalog entries failed",
				slog.Int("count", len(orphans)), slog.String("error", err.Error()))
		} else {
			slog.Info("deleted orphan catalog entries", slog.Int("count", len(orphans)))
		}
	}
	if missing > 0 {
		slog.Warn("catalog is missing stored equations, run 'mathdex analyze' to rebuild",
			slog.Int("missing", missing))
	}
	return nil
}

// InSync reports whether store and catalog hold the same number of
// equations. Matching counts can still hide paired drift; the full Verify
// compares ids.
func (v *Verifier) InSync(ctx context.Context) (bool, error) {
	storedIDs, err := v.docs.AllEquationIDs(ctx)
	if err != nil {
		return false, err
	}
	cataloged, err := v.catalog.Count()
	if err != nil {
		return false, err
	}

	if len(storedIDs) != cataloged {
		slog.Debug("store and catalog counts diverge",
			slog.Int("stored", len(storedIDs)), slog.Int("catalog", cataloged))
		return false, nil
	}
	return true, nil
}
