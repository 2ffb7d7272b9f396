// Package telemetry aggregates query patterns for the search surfaces.
// Everything stays on the local machine; aggregates persist into the same
// SQLite file as the catalog.
package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Surface identifies which search surface served a query.
type Surface string

const (
	SurfaceLexical    Surface = "lexical"    // catalog term search
	SurfaceSimilarity Surface = "similarity" // equation-to-equation scoring
	SurfaceHybrid     Surface = "hybrid"     // fused lexical + similarity ranking
)

// Event is one query as seen by a search surface.
type Event struct {
	Query   string
	Surface Surface
	Results int
	Latency time.Duration
	At      time.Time

	// Normalized is the canonical form of an equation query, when the
	// surface has one. A query that is new as raw markup but matches a
	// recent normalized form counts as similar rather than exact.
	Normalized string
}

// Missed reports whether the query came back empty.
func (e Event) Missed() bool {
	return e.Results == 0
}

// Bucket names a bucket in the query latency histogram.
type Bucket string

const (
	BucketP10   Bucket = "p10"
	BucketP50   Bucket = "p50"
	BucketP100  Bucket = "p100"
	BucketP500  Bucket = "p500"
	BucketP1000 Bucket = "p1000"
)

// bucketEdges holds bucket upper bounds in milliseconds, ascending.
// Durations past the last edge land in BucketP1000.
var bucketEdges = []struct {
	belowMs int64
	bucket  Bucket
}{
	{10, BucketP10},
	{50, BucketP50},
	{100, BucketP100},
	{500, BucketP500},
}

// BucketFor places a duration in its histogram bucket.
func BucketFor(d time.Duration) Bucket {
	b := BucketP1000
	for _, edge := range bucketEdges {
		if d.Milliseconds() < edge.belowMs {
			b = edge.bucket
			break
		}
	}
	return b
}

// SplitTerms breaks a query into the terms worth counting. Terms are
// lowercased and trimmed of delimiter punctuation at the edges, and anything
// shorter than three characters is dropped. Backslashes stay, so command
// terms like \int remain distinct from the word "int".
func SplitTerms(query string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, "$.,;:")
		if len(tok) < 3 {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// TermCount pairs a term with its running frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Report is a point-in-time view of a tracker's aggregates.
type Report struct {
	SurfaceCounts map[Surface]int64 `json:"surface_counts"`
	TopTerms      []TermCount       `json:"top_terms"`
	Misses        []string          `json:"misses"`
	Latencies     map[Bucket]int64  `json:"latencies"`
	Total         int64             `json:"total"`
	MissCount     int64             `json:"miss_count"`
	Since         time.Time         `json:"since"`

	// Repeat detection, from the raw and normalized LRU windows.
	ExactRepeats   int64   `json:"exact_repeats"`
	ExactRate      float64 `json:"exact_rate"`
	SimilarRepeats int64   `json:"similar_repeats"`
	SimilarRate    float64 `json:"similar_rate"`
	Unique         int64   `json:"unique"`
}

// MissPercent returns the share of queries that found nothing, as a
// percentage.
func (r *Report) MissPercent() float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.MissCount) / float64(r.Total)
}

// RepeatSummary condenses the repeat counters into one log-friendly line.
func (r *Report) RepeatSummary() string {
	if r.Total == 0 {
		return "no queries yet"
	}
	return fmt.Sprintf("%.1f%% exact, %.1f%% similar, %d unique",
		100*r.ExactRate, 100*r.SimilarRate, r.Unique)
}
