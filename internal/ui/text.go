package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// TextRenderer writes one line per event. It is the renderer for
// pipes, CI, and --no-tui: no ANSI codes, no redrawing.
type TextRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTextRenderer creates a line-oriented renderer for cfg.Output.
func NewTextRenderer(cfg Config) *TextRenderer {
	return &TextRenderer{out: cfg.Output}
}

// Start implements Renderer. Text output needs no setup.
func (r *TextRenderer) Start(context.Context) error { return nil }

// Advance writes a "[STAGE] current/total - detail" line.
// Events carrying neither a total nor any detail are dropped rather
// than printing an empty line.
func (r *TextRenderer) Advance(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	detail := event.Note
	if detail == "" {
		detail = event.Doc
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Tag(), event.Current, event.Total, detail)
	case detail != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Tag(), detail)
	}
}

// AddError writes an ERROR or WARN line as soon as the event arrives.
func (r *TextRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	level := "ERROR"
	if event.Warn {
		level = "WARN"
	}
	where := ""
	if event.File != "" {
		where = event.File + ": "
	}
	_, _ = fmt.Fprintf(r.out, "%s: %s%v\n", level, where, event.Err)
}

// Complete writes the summary line and, when stage timings were
// recorded, a per-stage breakdown.
func (r *TextRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	suffix := ""
	if stats.Errors+stats.Warnings > 0 {
		suffix = fmt.Sprintf(" (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	_, _ = fmt.Fprintf(r.out, "Complete: %d equations, %d concepts indexed in %s%s\n",
		stats.Equations, stats.Concepts, roundTiming(stats.Duration), suffix)

	if stats.Stages.Extract > 0 || stats.Stages.Similarity > 0 {
		r.writeBreakdown(stats)
	}
}

// writeBreakdown prints per-stage wall times. The similarity line adds
// pair throughput since that stage is quadratic in equation count.
func (r *TextRenderer) writeBreakdown(stats CompletionStats) {
	_, _ = fmt.Fprintf(r.out, "\nStage Breakdown:\n")
	_, _ = fmt.Fprintf(r.out, "  Extract:    %s (equations parsed)\n", roundTiming(stats.Stages.Extract))
	_, _ = fmt.Fprintf(r.out, "  Concepts:   %s (entities recognized)\n", roundTiming(stats.Stages.Concepts))
	_, _ = fmt.Fprintf(r.out, "  Graph:      %s (concepts linked)\n", roundTiming(stats.Stages.Graph))

	if stats.Stages.Similarity > 0 && stats.Equations > 1 {
		pairs := stats.Equations * (stats.Equations - 1) / 2
		rate := float64(pairs) / stats.Stages.Similarity.Seconds()
		_, _ = fmt.Fprintf(r.out, "  Similarity: %s (%d pairs @ %.1f/sec)\n",
			roundTiming(stats.Stages.Similarity), pairs, rate)
	}
	if stats.Stages.Persist > 0 {
		_, _ = fmt.Fprintf(r.out, "  Persist:    %s (index + catalog)\n", roundTiming(stats.Stages.Persist))
	}
}

// Stop implements Renderer. Nothing to tear down.
func (r *TextRenderer) Stop() error { return nil }

// roundTiming trims durations to a tenth of a second for display.
func roundTiming(d time.Duration) time.Duration {
	return d.Round(100 * time.Millisecond)
}
