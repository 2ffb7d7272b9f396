package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DocumentStatus summarizes one stored document index.
type DocumentStatus struct {
	DocumentID string    `json:"document_id"`
	CreatedAt  time.Time `json:"created_at"`
	Equations  int       `json:"equations"`
	Concepts   int       `json:"concepts"`
	GraphNodes int       `json:"graph_nodes"`
	GraphEdges int       `json:"graph_edges"`
}

// StatusReport is everything the status command reports: stored
// documents, on-disk sizes, and component health.
type StatusReport struct {
	ProjectName string           `json:"project_name"`
	DataDir     string           `json:"data_dir"`
	Documents   []DocumentStatus `json:"documents"`

	IndexSize   int64 `json:"index_size"`
	CatalogSize int64 `json:"catalog_size"`
	TotalSize   int64 `json:"total_size"`

	CatalogBackend string `json:"catalog_backend"`
	CatalogStatus  string `json:"catalog_status"` // "ready", "empty", "stale", "error"
	WatcherStatus  string `json:"watcher_status"` // "running", "stopped", or "n/a"
}

// StatusWriter prints index status reports.
type StatusWriter struct {
	out   io.Writer
	theme Theme
}

// NewStatusWriter creates a status writer printing to out.
func NewStatusWriter(out io.Writer, noColor bool) *StatusWriter {
	return &StatusWriter{out: out, theme: NewTheme(noColor)}
}

// WriteText prints the human-readable status report.
func (w *StatusWriter) WriteText(report StatusReport) error {
	title := w.theme.Header.Render("Index Status: " + report.ProjectName)
	_, _ = fmt.Fprintf(w.out, "%s\n\n", title)
	if report.DataDir != "" {
		_, _ = fmt.Fprintf(w.out, "  Data dir: %s\n\n", report.DataDir)
	}

	w.writeDocuments(report.Documents)
	w.writeStorage(report)
	w.writeCatalog(report)

	if ws := report.WatcherStatus; ws != "" && ws != "n/a" {
		_, _ = fmt.Fprintf(w.out, "  Watcher: %s\n", w.colorStatus(ws))
	}
	return nil
}

func (w *StatusWriter) writeDocuments(docs []DocumentStatus) {
	if len(docs) == 0 {
		_, _ = fmt.Fprint(w.out, "  No documents analyzed yet. Run 'mathdex analyze <path>' first.\n\n")
		return
	}

	_, _ = fmt.Fprintf(w.out, "  Documents: %d\n", len(docs))
	for _, d := range docs {
		line := fmt.Sprintf("    %s  %d equations, %d concepts, %d/%d graph",
			d.DocumentID, d.Equations, d.Concepts, d.GraphNodes, d.GraphEdges)
		if !d.CreatedAt.IsZero() {
			line += fmt.Sprintf("  (%s)", timeAgo(d.CreatedAt))
		}
		_, _ = fmt.Fprintln(w.out, line)
	}
	_, _ = fmt.Fprintln(w.out)
}

func (w *StatusWriter) writeStorage(report StatusReport) {
	_, _ = fmt.Fprint(w.out, "  Storage:\n")
	_, _ = fmt.Fprintf(w.out, "    Index:   %s\n", formatBytes(report.IndexSize))
	_, _ = fmt.Fprintf(w.out, "    Catalog: %s\n", formatBytes(report.CatalogSize))
	_, _ = fmt.Fprintf(w.out, "    Total:   %s\n\n", formatBytes(report.TotalSize))
}

func (w *StatusWriter) writeCatalog(report StatusReport) {
	_, _ = fmt.Fprint(w.out, "  Catalog:\n")
	_, _ = fmt.Fprintf(w.out, "    Backend: %s\n", report.CatalogBackend)
	_, _ = fmt.Fprintf(w.out, "    Status:  %s\n\n", w.colorStatus(report.CatalogStatus))
}

// WriteJSON prints the status report as indented JSON.
func (w *StatusWriter) WriteJSON(report StatusReport) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// colorStatus colors well-known status words; unknown values pass
// through unstyled.
func (w *StatusWriter) colorStatus(word string) string {
	var paint lipgloss.Style
	switch word {
	case "running", "ready":
		paint = w.theme.Success
	case "empty", "stopped", "stale":
		paint = w.theme.Warning
	case "error":
		paint = w.theme.Error
	default:
		return word
	}
	return paint.Render(word)
}

// timeAgo renders document age relative to now, switching to an
// absolute date after a week.
func timeAgo(t time.Time) string {
	age := time.Since(t)
	switch {
	case age >= 7*24*time.Hour:
		return t.Format("2006-01-02")
	case age >= 24*time.Hour:
		return agoString(int(age.Hours()/24), "day")
	case age >= time.Hour:
		return agoString(int(age.Hours()), "hour")
	case age >= time.Minute:
		return agoString(int(age.Minutes()), "minute")
	default:
		return "just now"
	}
}

func agoString(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// formatBytes renders a byte count with a binary unit ("1.5 KB"),
// capped at gigabytes.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(n)/float64(div), [...]string{"KB", "MB", "GB"}[exp])
}
