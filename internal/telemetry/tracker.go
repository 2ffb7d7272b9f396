package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MetricsSink receives aggregated query telemetry at flush time. Sinks
// accumulate: they add what they are given to what they already hold, so
// the tracker hands over growth since the previous flush rather than
// running totals.
type MetricsSink interface {
	// AddSurfaceCounts folds per-surface query counts into the given day.
	AddSurfaceCounts(day string, counts map[Surface]int64) error

	// AddTermCounts folds counts into the term frequencies.
	AddTermCounts(byTerm map[string]int64) error

	// RecordMiss appends one query that found nothing.
	RecordMiss(text string, at time.Time) error

	// AddLatencyCounts folds histogram counts into the given day.
	AddLatencyCounts(day string, counts map[Bucket]int64) error
}

// TrackerConfig sizes the tracker's in-memory windows.
type TrackerConfig struct {
	TermWindow   int           // LRU size for term frequencies
	MissWindow   int           // ring size for queries that found nothing
	RepeatWindow int           // LRU size for repeat detection, raw and normalized
	FlushEvery   time.Duration // 0 disables the background flush
}

// DefaultTrackerConfig returns the window sizes the CLI commands run with.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		TermWindow:   100,
		MissWindow:   100,
		RepeatWindow: 500,
		FlushEvery:   60 * time.Second,
	}
}

// withDefaults fills non-positive windows from the defaults. A zero
// FlushEvery stays zero: that is how callers turn the flush loop off.
func (c TrackerConfig) withDefaults() TrackerConfig {
	def := DefaultTrackerConfig()
	if c.TermWindow <= 0 {
		c.TermWindow = def.TermWindow
	}
	if c.MissWindow <= 0 {
		c.MissWindow = def.MissWindow
	}
	if c.RepeatWindow <= 0 {
		c.RepeatWindow = def.RepeatWindow
	}
	return c
}

// Tracker aggregates query telemetry in memory and, when a sink is
// attached, persists it in the background. Safe for concurrent use.
type Tracker struct {
	mu sync.RWMutex

	bySurface map[Surface]int64
	byBucket  map[Bucket]int64
	terms     *lru.Cache[string, int64]
	misses    *Ring[string]
	total     int64
	missed    int64
	since     time.Time

	// Repeat detection windows, keyed by short hashes of the raw query
	// and of its normalized markup.
	seenRaw  *lru.Cache[string, struct{}]
	seenNorm *lru.Cache[string, struct{}]
	exact    int64
	similar  int64

	// Flush watermarks. The sink adds deltas to what it already holds,
	// so each flush writes only the growth since the previous one.
	sentSurfaces map[Surface]int64
	sentBuckets  map[Bucket]int64
	sentTerms    map[string]int64

	sink   MetricsSink
	stop   chan struct{}
	closed bool
}

// NewTracker creates a tracker with default window sizes. A nil sink keeps
// everything in memory.
func NewTracker(sink MetricsSink) *Tracker {
	return NewTrackerWithConfig(sink, DefaultTrackerConfig())
}

// NewTrackerWithConfig creates a tracker with explicit window sizes.
func NewTrackerWithConfig(sink MetricsSink, cfg TrackerConfig) *Tracker {
	cfg = cfg.withDefaults()

	terms, _ := lru.New[string, int64](cfg.TermWindow)
	seenRaw, _ := lru.New[string, struct{}](cfg.RepeatWindow)
	seenNorm, _ := lru.New[string, struct{}](cfg.RepeatWindow)

	t := &Tracker{
		bySurface:    make(map[Surface]int64),
		byBucket:     make(map[Bucket]int64),
		terms:        terms,
		misses:       NewRing[string](cfg.MissWindow),
		since:        time.Now(),
		seenRaw:      seenRaw,
		seenNorm:     seenNorm,
		sentSurfaces: make(map[Surface]int64),
		sentBuckets:  make(map[Bucket]int64),
		sentTerms:    make(map[string]int64),
		sink:         sink,
	}

	if sink != nil && cfg.FlushEvery > 0 {
		t.stop = make(chan struct{})
		go t.flushEvery(cfg.FlushEvery)
	}
	return t
}

// flushEvery runs the background flush until Close.
func (t *Tracker) flushEvery(interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			_ = t.Flush()
		case <-t.stop:
			return
		}
	}
}

// Record folds one query into the aggregates. Cheap enough to call inline
// on the query path.
func (t *Tracker) Record(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.bySurface[ev.Surface]++
	t.byBucket[BucketFor(ev.Latency)]++
	t.total++

	for _, term := range SplitTerms(ev.Query) {
		n, _ := t.terms.Get(term)
		t.terms.Add(term, n+1)
	}

	if ev.Missed() {
		t.misses.Add(ev.Query)
		t.missed++
	}

	t.noteRepeat(ev)
}

// noteRepeat classifies the query against the recently seen windows. A raw
// repeat counts as exact; a query new in raw form whose normalized markup
// matches a recent one counts as similar. The two counters never overlap.
// Caller must hold mu.
func (t *Tracker) noteRepeat(ev Event) {
	raw := queryKey(ev.Query)
	_, rawSeen := t.seenRaw.Get(raw)
	if rawSeen {
		t.exact++
	}
	t.seenRaw.Add(raw, struct{}{})

	if ev.Normalized == "" {
		return
	}
	norm := queryKey(ev.Normalized)
	if _, ok := t.seenNorm.Get(norm); ok && !rawSeen {
		t.similar++
	}
	t.seenNorm.Add(norm, struct{}{})
}

// queryKey hashes a query with case and surrounding space folded. The
// first 16 bytes of sha256 keep the LRU keys short.
func queryKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns the current aggregates for reporting.
func (t *Tracker) Snapshot() *Report {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rep := &Report{
		SurfaceCounts:  cloneCounts(t.bySurface),
		TopTerms:       t.rankedTerms(),
		Misses:         t.misses.Items(),
		Latencies:      cloneCounts(t.byBucket),
		Total:          t.total,
		MissCount:      t.missed,
		Since:          t.since,
		ExactRepeats:   t.exact,
		SimilarRepeats: t.similar,
		Unique:         int64(t.seenRaw.Len()),
	}
	if t.total > 0 {
		rep.ExactRate = float64(t.exact) / float64(t.total)
		rep.SimilarRate = float64(t.similar) / float64(t.total)
	}
	return rep
}

// rankedTerms lists tracked terms most frequent first. Caller must hold mu.
func (t *Tracker) rankedTerms() []TermCount {
	var ranked []TermCount
	for _, term := range t.terms.Keys() {
		if n, ok := t.terms.Peek(term); ok {
			ranked = append(ranked, TermCount{Term: term, Count: n})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	return ranked
}

// cloneCounts copies a count map so reports do not alias live state.
func cloneCounts[K comparable](src map[K]int64) map[K]int64 {
	dst := make(map[K]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// diffCounts returns the entries of current that grew past their flushed
// watermark.
func diffCounts[K comparable](current, flushed map[K]int64) map[K]int64 {
	deltas := make(map[K]int64)
	for k, v := range current {
		if d := v - flushed[k]; d > 0 {
			deltas[k] = d
		}
	}
	return deltas
}

// Flush hands the sink the growth since the previous flush. The sink
// accumulates counts across runs, so flushing running totals would
// double-count. A failed flush drops that window rather than risk
// double-counting later. Safe to call with no sink attached.
func (t *Tracker) Flush() error {
	if t.sink == nil {
		return nil
	}

	t.mu.Lock()
	surfaces := diffCounts(t.bySurface, t.sentSurfaces)
	buckets := diffCounts(t.byBucket, t.sentBuckets)
	terms := t.termDeltas()
	misses := t.misses.Items()
	t.misses.Reset()
	t.sentSurfaces = cloneCounts(t.bySurface)
	t.sentBuckets = cloneCounts(t.byBucket)
	t.mu.Unlock()

	day := time.Now().Format("2006-01-02")
	if len(surfaces) > 0 {
		if err := t.sink.AddSurfaceCounts(day, surfaces); err != nil {
			return err
		}
	}
	if err := t.sink.AddTermCounts(terms); err != nil {
		return err
	}
	for _, q := range misses {
		if err := t.sink.RecordMiss(q, time.Now()); err != nil {
			return err
		}
	}
	if len(buckets) > 0 {
		if err := t.sink.AddLatencyCounts(day, buckets); err != nil {
			return err
		}
	}
	return nil
}

// termDeltas computes per-term growth since the last flush and advances the
// watermark. Terms evicted from the LRU drop out of the watermark too, so
// it cannot grow without bound. Caller must hold mu.
func (t *Tracker) termDeltas() map[string]int64 {
	deltas := make(map[string]int64)
	current := make(map[string]int64, t.terms.Len())
	for _, term := range t.terms.Keys() {
		if n, ok := t.terms.Peek(term); ok {
			current[term] = n
			if d := n - t.sentTerms[term]; d > 0 {
				deltas[term] = d
			}
		}
	}
	t.sentTerms = current
	return deltas
}

// Close stops the flush loop, logs the session's totals, and writes
// anything still pending.
func (t *Tracker) Close() error {
	t.mu.Lock()
	wasClosed := t.closed
	t.closed = true
	t.mu.Unlock()
	if wasClosed {
		return nil
	}

	if t.stop != nil {
		close(t.stop)
	}
	if rep := t.Snapshot(); rep.Total > 0 {
		slog.Debug("query_session",
			slog.Int64("queries", rep.Total),
			slog.Float64("miss_pct", rep.MissPercent()),
			slog.String("repeats", rep.RepeatSummary()))
	}
	return t.Flush()
}
