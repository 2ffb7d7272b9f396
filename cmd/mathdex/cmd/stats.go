package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/store"
	"github.com/paperlens/mathdex/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	root := &cobra.Command{Use: "stats", Short: "Show usage statistics"}
	root.AddCommand(newStatsQueriesCmd())
	return root
}

func newStatsQueriesCmd() *cobra.Command {
	var (
		asJSON bool
		days   int
	)

	cmd := &cobra.Command{
		Use: "queries", Short: "Summarize recorded query telemetry",
		Long: `Report how the index is being queried: the lexical/similarity/hybrid
split, the most frequent query terms, recent queries that found nothing,
and the latency histogram.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatsQueries(cmd, asJSON, days)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Telemetry window in days")

	return cmd
}

// queryStatsReport is the payload behind 'stats queries --json'.
type queryStatsReport struct {
	Summary             queryStatsSummary     `json:"summary"`
	QueryTypeCounts     map[string]int64      `json:"query_type_counts"`
	TopTerms            []telemetry.TermCount `json:"top_terms"`
	ZeroResultQueries   []string              `json:"zero_result_queries"`
	LatencyDistribution map[string]int64      `json:"latency_distribution"`
}

// queryStatsSummary holds the headline numbers.
type queryStatsSummary struct {
	TotalQueries      int64 `json:"total_queries"`
	RecentZeroResults int   `json:"recent_zero_results"`
}

func runStatsQueries(cmd *cobra.Command, asJSON bool, days int) error {
	root := resolveProjectRoot()
	cfg := loadProjectConfig(root)

	indexPath := store.GetStorePath(cfg.DataDir(root))
	if !fileExists(indexPath) {
		return mderrors.New(mderrors.CodeFileNotFound,
			fmt.Sprintf("no index found in %s", root), nil).
			WithHint("run 'mathdex analyze' to create one")
	}

	docStore, err := store.NewSQLiteStore(indexPath)
	if err != nil {
		return fmt.Errorf("open index store: %w", err)
	}
	defer func() { _ = docStore.Close() }()

	// Telemetry tables live in the index database.
	metrics, err := telemetry.NewMetricsStore(docStore.DB())
	if err != nil {
		return fmt.Errorf("open metrics store: %w", err)
	}

	report, err := collectQueryStats(metrics, days)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	renderQueryStats(cmd.OutOrStdout(), report)
	return nil
}

// telemetryWindow converts a day count into the inclusive date range the
// telemetry tables are keyed by.
func telemetryWindow(days int) (from, to string) {
	if days < 1 {
		days = 1
	}
	today := time.Now()
	return today.AddDate(0, 0, 1-days).Format("2006-01-02"), today.Format("2006-01-02")
}

func collectQueryStats(metrics *telemetry.MetricsStore, days int) (*queryStatsReport, error) {
	from, to := telemetryWindow(days)

	bySurface, err := metrics.SurfaceCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("query surface counts: %w", err)
	}
	terms, err := metrics.TopTerms(10)
	if err != nil {
		return nil, fmt.Errorf("frequent terms: %w", err)
	}
	zeroHits, err := metrics.RecentMisses(10)
	if err != nil {
		return nil, fmt.Errorf("zero-hit queries: %w", err)
	}
	byBucket, err := metrics.LatencyCounts(from, to)
	if err != nil {
		return nil, fmt.Errorf("latency histogram: %w", err)
	}

	// An empty term list still serializes as [] rather than null.
	if terms == nil {
		terms = []telemetry.TermCount{}
	}

	report := &queryStatsReport{
		Summary:             queryStatsSummary{RecentZeroResults: len(zeroHits)},
		TopTerms:            terms,
		ZeroResultQueries:   zeroHits,
		QueryTypeCounts:     make(map[string]int64, len(bySurface)),
		LatencyDistribution: make(map[string]int64, len(byBucket)),
	}
	for surface, n := range bySurface {
		report.QueryTypeCounts[string(surface)] = n
		report.Summary.TotalQueries += n
	}
	for bucket, n := range byBucket {
		report.LatencyDistribution[string(bucket)] = n
	}
	return report, nil
}

func renderQueryStats(dst io.Writer, r *queryStatsReport) {
	fmt.Fprintln(dst, "Query Telemetry")
	fmt.Fprintln(dst, "---------------")
	fmt.Fprintln(dst)
	fmt.Fprintf(dst, "Total Queries: %d\n", r.Summary.TotalQueries)
	fmt.Fprintln(dst)

	renderSurfaceMix(dst, r.QueryTypeCounts)
	renderTopTerms(dst, r.TopTerms)
	renderZeroHits(dst, r.ZeroResultQueries)
	renderLatency(dst, r.LatencyDistribution)
}

// surfaceOrder fixes the display order of the query type breakdown.
var surfaceOrder = []telemetry.Surface{
	telemetry.SurfaceLexical, telemetry.SurfaceSimilarity, telemetry.SurfaceHybrid,
}

func renderSurfaceMix(dst io.Writer, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(dst, "Queries by Type:")
	for _, surface := range surfaceOrder {
		if n, ok := counts[string(surface)]; ok {
			fmt.Fprintf(dst, "  %s: %d\n", surface, n)
		}
	}
	fmt.Fprintln(dst)
}

func renderTopTerms(dst io.Writer, terms []telemetry.TermCount) {
	if len(terms) == 0 {
		fmt.Fprintln(dst, "Most Searched Terms: (none recorded yet)")
		fmt.Fprintln(dst)
		return
	}
	fmt.Fprintln(dst, "Most Searched Terms:")
	for i, term := range terms {
		fmt.Fprintf(dst, "  %d. %s (%d)\n", i+1, term.Term, term.Count)
	}
	fmt.Fprintln(dst)
}

func renderZeroHits(dst io.Writer, queries []string) {
	if len(queries) == 0 {
		fmt.Fprintln(dst, "Zero-Result Queries: (none)")
		fmt.Fprintln(dst)
		return
	}
	fmt.Fprintln(dst, "Zero-Result Queries (newest first):")
	for _, q := range queries {
		fmt.Fprintf(dst, "  - %q\n", q)
	}
	fmt.Fprintln(dst)
}

// latencyRows orders the histogram and carries its display labels.
var latencyRows = []struct {
	bucket telemetry.Bucket
	label  string
}{
	{telemetry.BucketP10, "<10ms"},
	{telemetry.BucketP50, "10-50ms"},
	{telemetry.BucketP100, "50-100ms"},
	{telemetry.BucketP500, "100-500ms"},
	{telemetry.BucketP1000, ">500ms"},
}

func renderLatency(dst io.Writer, dist map[string]int64) {
	if len(dist) == 0 {
		return
	}
	fmt.Fprintln(dst, "Query Latency:")
	for _, row := range latencyRows {
		if n, ok := dist[string(row.bucket)]; ok {
			fmt.Fprintf(dst, "  %s: %d\n", row.label, n)
		}
	}
}
