package telemetry

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// openTestStore opens a fresh database with the telemetry schema applied.
func openTestStore(t *testing.T) *MetricsStore {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// WAL must be set via PRAGMA; modernc.org/sqlite ignores DSN params
	_, err = db.Exec("PRAGMA journal_mode = WAL")
	require.NoError(t, err)

	require.NoError(t, InitSchema(db))

	store, err := NewMetricsStore(db)
	require.NoError(t, err)
	return store
}

func TestNewMetricsStore_RequiresHandle(t *testing.T) {
	_, err := NewMetricsStore(nil)
	assert.Error(t, err)
}

func TestInitSchema_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, InitSchema(db))
	require.NoError(t, InitSchema(db))
}

func TestMetricsStore_SurfaceCounts_Accumulate(t *testing.T) {
	store := openTestStore(t)

	// Given: two flushes landing on the same day
	require.NoError(t, store.AddSurfaceCounts("2026-08-20", map[Surface]int64{
		SurfaceSimilarity: 10,
		SurfaceLexical:    5,
	}))
	require.NoError(t, store.AddSurfaceCounts("2026-08-20", map[Surface]int64{
		SurfaceSimilarity: 4,
		SurfaceHybrid:     2,
	}))

	// Then: per-surface counts add up instead of overwriting
	counts, err := store.SurfaceCounts("2026-08-20", "2026-08-20")
	require.NoError(t, err)
	assert.Equal(t, int64(14), counts[SurfaceSimilarity])
	assert.Equal(t, int64(5), counts[SurfaceLexical])
	assert.Equal(t, int64(2), counts[SurfaceHybrid])
}

func TestMetricsStore_SurfaceCounts_DayRange(t *testing.T) {
	store := openTestStore(t)

	for day, n := range map[string]int64{
		"2026-08-18": 10,
		"2026-08-19": 20,
		"2026-08-20": 30,
	} {
		require.NoError(t, store.AddSurfaceCounts(day, map[Surface]int64{SurfaceSimilarity: n}))
	}

	// The range is inclusive on both ends
	counts, err := store.SurfaceCounts("2026-08-18", "2026-08-19")
	require.NoError(t, err)
	assert.Equal(t, int64(30), counts[SurfaceSimilarity])

	counts, err = store.SurfaceCounts("2026-08-21", "2026-08-22")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestMetricsStore_TermCounts(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.AddTermCounts(map[string]int64{
		"laplace": 10,
		"kernel":  5,
		"series":  3,
	}))
	require.NoError(t, store.AddTermCounts(map[string]int64{
		"kernel": 7,
	}))

	// Top terms come back highest count first, with repeat adds summed
	terms, err := store.TopTerms(2)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, TermCount{Term: "kernel", Count: 12}, terms[0])
	assert.Equal(t, TermCount{Term: "laplace", Count: 10}, terms[1])
}

func TestMetricsStore_Misses_NewestFirst(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.RecordMiss("missing identity", now))
	require.NoError(t, store.RecordMiss("nonexistent operator", now.Add(time.Minute)))

	queries, err := store.RecentMisses(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"nonexistent operator", "missing identity"}, queries)
}

func TestMetricsStore_Misses_TrimsToCap(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	for i := 0; i < missKeep+12; i++ {
		require.NoError(t, store.RecordMiss(fmt.Sprintf("miss-%d", i), now))
	}

	queries, err := store.RecentMisses(missKeep * 2)
	require.NoError(t, err)
	require.Len(t, queries, missKeep)

	// The oldest entries are the ones trimmed
	assert.Equal(t, fmt.Sprintf("miss-%d", missKeep+11), queries[0])
	assert.NotContains(t, queries, "miss-0")
	assert.NotContains(t, queries, "miss-11")
}

func TestMetricsStore_LatencyCounts_Accumulate(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.AddLatencyCounts("2026-08-20", map[Bucket]int64{
		BucketP10: 100,
		BucketP50: 50,
	}))
	require.NoError(t, store.AddLatencyCounts("2026-08-20", map[Bucket]int64{
		BucketP10:   1,
		BucketP1000: 2,
	}))

	counts, err := store.LatencyCounts("2026-08-20", "2026-08-20")
	require.NoError(t, err)
	assert.Equal(t, int64(101), counts[BucketP10])
	assert.Equal(t, int64(50), counts[BucketP50])
	assert.Equal(t, int64(2), counts[BucketP1000])
}

func TestMetricsStore_EmptyBatchesAreNoOps(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.AddSurfaceCounts("2026-08-20", nil))
	require.NoError(t, store.AddTermCounts(map[string]int64{}))
	require.NoError(t, store.AddLatencyCounts("2026-08-20", nil))

	terms, err := store.TopTerms(10)
	require.NoError(t, err)
	assert.Empty(t, terms)
}
