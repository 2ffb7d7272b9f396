package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsole_StatusLines(t *testing.T) {
	tests := []struct {
		name string
		emit func(c *Console)
		want string
	}{
		{
			name: "custom glyph",
			emit: func(c *Console) { c.Status("🔍", "Scanning documents...") },
			want: "🔍 Scanning documents...\n",
		},
		{
			name: "empty glyph indents to align with glyphed lines",
			emit: func(c *Console) { c.Status("", "12 equations") },
			want: "   12 equations\n",
		},
		{
			name: "success",
			emit: func(c *Console) { c.Success("Analysis complete!") },
			want: "✅ Analysis complete!\n",
		},
		{
			name: "warning",
			emit: func(c *Console) { c.Warning("Catalog backend not found, rebuilding") },
			want: "⚠️  Catalog backend not found, rebuilding\n",
		},
		{
			name: "formatted status",
			emit: func(c *Console) { c.Statusf("📂", "Found %d documents in %s", 42, "/path/to/papers") },
			want: "📂 Found 42 documents in /path/to/papers\n",
		},
		{
			name: "formatted success",
			emit: func(c *Console) { c.Successf("Indexed %d equations", 7) },
			want: "✅ Indexed 7 equations\n",
		},
		{
			name: "formatted warning",
			emit: func(c *Console) { c.Warningf("skipped %s", "draft.tex") },
			want: "⚠️  skipped draft.tex\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.emit(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestConsole_Transcript(t *testing.T) {
	buf := &bytes.Buffer{}
	c := New(buf)

	c.Statusf("📁", "Project: %s", "/home/ada/papers")
	c.Status("", "3 documents, 41 equations")
	c.Newline()
	c.Success("Ready to search")

	want := "📁 Project: /home/ada/papers\n" +
		"   3 documents, 41 equations\n" +
		"\n" +
		"✅ Ready to search\n"
	assert.Equal(t, want, buf.String())
}
