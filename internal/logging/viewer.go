package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"
)

// maxLineBytes bounds a single log line; attr-heavy entries can get long.
const maxLineBytes = 1 << 20

// followPollInterval is how often Follow checks the file for new lines.
const followPollInterval = 100 * time.Millisecond

// Line is one parsed line of the JSON log.
type Line struct {
	Time  time.Time      `json:"time"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	Attrs map[string]any `json:"-"` // Attributes beyond time/level/msg
	Raw   string         `json:"-"` // Original text
	Valid bool           `json:"-"` // False when the text is not JSON
}

// ViewOptions holds the filters applied while reading the log.
type ViewOptions struct {
	Level   string         // Minimum level (debug, info, warn, error)
	Pattern *regexp.Regexp // Raw-line pattern filter
	NoColor bool
}

// Tailer reads, filters, and formats log lines for the logs command.
type Tailer struct {
	opts ViewOptions
	out  io.Writer
}

// NewTailer creates a tailer writing formatted lines to out.
func NewTailer(opts ViewOptions, out io.Writer) *Tailer {
	return &Tailer{opts: opts, out: out}
}

// Tail returns the matching entries among the last n lines of the file.
// Only a window of n lines is held in memory while scanning.
func (t *Tailer) Tail(path string, n int) ([]Line, error) {
	f, err := openLog(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if n <= 0 {
		n = 1
	}
	window := make([]string, 0, n)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, maxLineBytes), maxLineBytes)
	for sc.Scan() {
		if len(window) == n {
			copy(window, window[1:])
			window = window[:n-1]
		}
		window = append(window, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var kept []Line
	for _, raw := range window {
		if ln := parseLine(raw); t.opts.admits(ln) {
			kept = append(kept, ln)
		}
	}
	return kept, nil
}

// Follow sends matching lines appended to the file after the call, until
// the context is cancelled. The file is polled; rotation mid-follow ends
// the stream at the old file.
func (t *Tailer) Follow(ctx context.Context, path string, ch chan<- Line) error {
	f, err := openLog(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek log end: %w", err)
	}

	r := bufio.NewReader(f)
	poll := time.NewTicker(followPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll.C:
			if !t.forward(ctx, r, ch) {
				return nil
			}
		}
	}
}

// forward sends every complete line currently available in r. Returns
// false once the context is cancelled mid-send.
func (t *Tailer) forward(ctx context.Context, r *bufio.Reader, ch chan<- Line) bool {
	for {
		raw, err := r.ReadString('\n')
		if err != nil {
			return true
		}
		if raw = strings.TrimRight(raw, "\r\n"); raw == "" {
			continue
		}

		ln := parseLine(raw)
		if !t.opts.admits(ln) {
			continue
		}
		select {
		case ch <- ln:
		case <-ctx.Done():
			return false
		}
	}
}

// Format renders a line as "HH:MM:SS.mmm LEVEL msg k=v ...".
// Unparseable lines pass through untouched.
func (t *Tailer) Format(ln Line) string {
	if !ln.Valid {
		return ln.Raw
	}

	var sb strings.Builder
	sb.WriteString(ln.Time.Format("15:04:05.000"))
	sb.WriteByte(' ')
	sb.WriteString(t.paintLevel(ln.Level))
	sb.WriteByte(' ')
	sb.WriteString(ln.Msg)

	// Attributes print in sorted order so repeated runs line up
	for _, k := range slices.Sorted(maps.Keys(ln.Attrs)) {
		fmt.Fprintf(&sb, " %s=%v", k, ln.Attrs[k])
	}

	return sb.String()
}

// Print writes formatted lines to the tailer's output.
func (t *Tailer) Print(lines []Line) {
	for _, ln := range lines {
		_, _ = fmt.Fprintln(t.out, t.Format(ln))
	}
}

// openLog opens a log file, wrapping the error with the path.
func openLog(path string) (*os.File, error) {
	lf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return lf, nil
}

// parseLine decodes one JSON log line. Lines that fail to parse come back
// with Valid false and the raw text preserved.
func parseLine(raw string) Line {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Line{Raw: raw}
	}

	ln := Line{Raw: raw, Valid: true, Attrs: map[string]any{}}
	for k, val := range fields {
		switch k {
		case "time":
			if s, ok := val.(string); ok {
				ln.Time, _ = time.Parse(time.RFC3339Nano, s)
			}
		case "level":
			ln.Level, _ = val.(string)
		case "msg":
			ln.Msg, _ = val.(string)
		default:
			ln.Attrs[k] = val
		}
	}
	return ln
}

// admits applies the level and pattern filters.
func (o ViewOptions) admits(ln Line) bool {
	if o.Level != "" && ParseLevel(ln.Level) < ParseLevel(o.Level) {
		return false
	}
	if o.Pattern != nil && !o.Pattern.MatchString(ln.Raw) {
		return false
	}
	return true
}

// levelColors holds the ANSI sequence per level name.
var levelColors = map[string]string{
	"debug":   "\033[90m", // Gray
	"info":    "\033[32m", // Green
	"warn":    "\033[33m", // Yellow
	"warning": "\033[33m",
	"error":   "\033[31m", // Red
}

// paintLevel pads the level to five columns, colored unless disabled.
func (t *Tailer) paintLevel(level string) string {
	name := strings.ToUpper(level)
	if len(name) > 5 {
		name = name[:5]
	}
	name = fmt.Sprintf("%-5s", name)

	if t.opts.NoColor {
		return name
	}
	if color, ok := levelColors[strings.ToLower(level)]; ok {
		return color + name + "\033[0m"
	}
	return name
}
