// Package output formats the plain status lines mathdex commands print.
//
// Rich rendering (sparklines, styled search results) lives in internal/ui.
// This package covers the line-at-a-time output every command shares:
// glyph-prefixed status lines and the blank lines between them.
package output

import (
	"fmt"
	"io"
)

// Glyphs for the two standard levels. The warning sign is a narrow
// emoji, so it carries a trailing space to keep message columns aligned.
const (
	glyphSuccess = "✅"
	glyphWarning = "⚠️ "
)

// Console prints glyph-prefixed status lines to a terminal or captured
// buffer. Write errors are ignored; terminal output is best effort.
type Console struct {
	w io.Writer
}

// New creates a Console writing to w.
func New(w io.Writer) *Console {
	return &Console{w: w}
}

// Status prints msg behind a glyph. With an empty glyph the message is
// indented so it lines up under glyphed lines.
func (c *Console) Status(glyph, msg string) {
	if glyph == "" {
		glyph = "  "
	}
	_, _ = fmt.Fprintf(c.w, "%s %s\n", glyph, msg)
}

// Statusf prints a formatted status line behind a glyph.
func (c *Console) Statusf(glyph, format string, args ...any) {
	c.Status(glyph, fmt.Sprintf(format, args...))
}

// Success prints msg behind a checkmark.
func (c *Console) Success(msg string) {
	c.Status(glyphSuccess, msg)
}

// Successf prints a formatted success line.
func (c *Console) Successf(format string, args ...any) {
	c.Statusf(glyphSuccess, format, args...)
}

// Warning prints msg behind a warning sign.
func (c *Console) Warning(msg string) {
	c.Status(glyphWarning, msg)
}

// Warningf prints a formatted warning line.
func (c *Console) Warningf(format string, args ...any) {
	c.Statusf(glyphWarning, format, args...)
}

// Newline prints a blank line.
func (c *Console) Newline() {
	_, _ = fmt.Fprintln(c.w)
}
