package ui

import (
	"strings"
)

// sparkGlyphs maps normalized sample heights to block characters, from
// baseline to full height.
var sparkGlyphs = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Trend keeps a rolling window of throughput samples and renders them
// as a sparkline row of Unicode block characters. The analysis TUI
// feeds it equations-per-second readings once per tick.
type Trend struct {
	samples []float64 // Ring buffer, oldest sample at next once filled
	next    int       // Next write position
	filled  bool      // True once the buffer has wrapped
}

// NewTrend returns a trend holding width samples. Width defaults to 60
// when non-positive, one minute of history at one sample per second.
func NewTrend(width int) *Trend {
	if width <= 0 {
		width = 60
	}
	return &Trend{samples: make([]float64, width)}
}

// Add records a sample, evicting the oldest once the window is full.
// Negative readings clamp to zero.
func (t *Trend) Add(value float64) {
	if value < 0 {
		value = 0
	}
	t.samples[t.next] = value
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.filled = true
	}
}

// Clear discards all samples.
func (t *Trend) Clear() {
	for i := range t.samples {
		t.samples[i] = 0
	}
	t.next = 0
	t.filled = false
}

// window returns the recorded samples in insertion order, oldest first.
func (t *Trend) window() []float64 {
	if !t.filled {
		return t.samples[:t.next]
	}
	out := make([]float64, 0, len(t.samples))
	out = append(out, t.samples[t.next:]...)
	out = append(out, t.samples[:t.next]...)
	return out
}

// Render draws the most recent width samples. A width of zero or less,
// or wider than the window, draws the whole window. Before any sample
// arrives the row is all baseline glyphs; positions not yet reached
// render as spaces so the row keeps a stable width from the first tick.
func (t *Trend) Render(width int) string {
	if width <= 0 || width > len(t.samples) {
		width = len(t.samples)
	}

	window := t.window()
	if len(window) == 0 {
		return strings.Repeat(string(sparkGlyphs[0]), width)
	}
	if len(window) > width {
		window = window[len(window)-width:]
	}

	// Bars scale against the window maximum, not the all-time maximum.
	max := 0.0
	for _, v := range window {
		if v > max {
			max = v
		}
	}
	if max < 1 {
		max = 1
	}

	var sb strings.Builder
	sb.Grow(width * 3) // Block glyphs are 3 bytes in UTF-8

	for _, v := range window {
		idx := int(v / max * float64(len(sparkGlyphs)-1))
		if idx >= len(sparkGlyphs) {
			idx = len(sparkGlyphs) - 1
		}
		sb.WriteRune(sparkGlyphs[idx])
	}
	for i := len(window); i < width; i++ {
		sb.WriteByte(' ')
	}
	return sb.String()
}
