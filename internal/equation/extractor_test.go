package equation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlens/mathdex/internal/config"
)

func newTestExtractor() *Extractor {
	return NewExtractor(config.ExtractionConfig{}, nil)
}

// =============================================================================
// Delimiter Tests
// =============================================================================

func TestExtract_InlineDollar(t *testing.T) {
	text := "The identity $x^2+y^2=z^2$ appears in number theory."

	equations := newTestExtractor().Extract(text)

	require.Len(t, equations, 1)
	eq := equations[0]
	assert.Equal(t, "x^2+y^2=z^2", eq.RawMarkup)
	assert.Len(t, eq.ID, 16)
	assert.Equal(t, TypeQuadratic, eq.Type)
	assert.Equal(t, []string{"x", "y", "z"}, eq.Variables)
	assert.Contains(t, eq.Context, "identity")
	assert.Contains(t, eq.Context, "appears")
	assert.NotContains(t, eq.Context, "$")
}

func TestExtract_DisplayDollar(t *testing.T) {
	equations := newTestExtractor().Extract("Einstein wrote $$E = mc^2$$ in 1905.")

	require.Len(t, equations, 1)
	assert.Equal(t, "E = mc^2", equations[0].RawMarkup)
}

func TestExtract_BracketDisplay(t *testing.T) {
	equations := newTestExtractor().Extract(`Consider \[ \int_0^1 x \, dx = \frac{1}{2} \] next.`)

	require.Len(t, equations, 1)
	assert.Equal(t, `\int_0^1 x \, dx = \frac{1}{2}`, equations[0].RawMarkup)
	assert.Equal(t, TypeIntegral, equations[0].Type)
}

func TestExtract_ParenInline(t *testing.T) {
	equations := newTestExtractor().Extract(`where \( a + b \) is the total`)

	require.Len(t, equations, 1)
	assert.Equal(t, "a + b", equations[0].RawMarkup)
}

func TestExtract_EquationEnvironment(t *testing.T) {
	text := `\begin{equation}\label{eq:euler} e^{i\pi} + 1 = 0 \end{equation}`

	equations := newTestExtractor().Extract(text)

	require.Len(t, equations, 1)
	assert.Equal(t, []string{"eq:euler"}, equations[0].Labels)
	assert.Contains(t, equations[0].RawMarkup, `e^{i\pi}`)
}

func TestExtract_StarredEnvironments(t *testing.T) {
	text := `\begin{align*} x &= 1 \\ y &= 2 \end{align*} and \begin{gather*} z = 3 \end{gather*}`

	equations := newTestExtractor().Extract(text)

	require.Len(t, equations, 2)
	assert.Contains(t, equations[0].RawMarkup, "x &= 1")
	assert.Contains(t, equations[1].RawMarkup, "z = 3")
}

func TestExtract_NestedEnvironment(t *testing.T) {
	text := `\begin{align} \begin{pmatrix} a \\ b \end{pmatrix} &= v \end{align}`

	equations := newTestExtractor().Extract(text)

	require.Len(t, equations, 1)
	assert.Equal(t, TypeMatrix, equations[0].Type)
	assert.Contains(t, equations[0].RawMarkup, "pmatrix")
}

func TestExtract_MaskingPreventsDoubleCapture(t *testing.T) {
	// A $$ block must not be re-captured by the inline $ pattern.
	equations := newTestExtractor().Extract("$$E=mc^2$$")
	require.Len(t, equations, 1)

	equations = newTestExtractor().Extract("$$a+b$$ and $c+d$")
	require.Len(t, equations, 2)
	assert.Equal(t, "a+b", equations[0].RawMarkup)
	assert.Equal(t, "c+d", equations[1].RawMarkup)
}

func TestExtract_SourceOrder(t *testing.T) {
	text := `first $a+b$ then $$c+d$$ finally \(g+h\)`

	equations := newTestExtractor().Extract(text)

	require.Len(t, equations, 3)
	assert.Equal(t, "a+b", equations[0].RawMarkup)
	assert.Equal(t, "c+d", equations[1].RawMarkup)
	assert.Equal(t, "g+h", equations[2].RawMarkup)
}

// =============================================================================
// Fail-Soft Tests
// =============================================================================

func TestExtract_NoMath(t *testing.T) {
	assert.Empty(t, newTestExtractor().Extract("Just prose, nothing else."))
	assert.Empty(t, newTestExtractor().Extract(""))
}

func TestExtract_WhitespaceOnlySkipped(t *testing.T) {
	assert.Empty(t, newTestExtractor().Extract("$   $"))
	assert.Empty(t, newTestExtractor().Extract("$$ $$"))
}

func TestExtract_UnclosedDelimiters(t *testing.T) {
	assert.Empty(t, newTestExtractor().Extract("an unpaired $x + y with no close"))
	assert.Empty(t, newTestExtractor().Extract(`\begin{equation} x = 1`))
	assert.Empty(t, newTestExtractor().Extract(`dangling \[ bracket`))
}

func TestExtract_OversizedSkipped(t *testing.T) {
	extractor := NewExtractor(config.ExtractionConfig{MaxEquationLength: 8}, nil)

	equations := extractor.Extract("$aaaaaaaaaaaaaaaa$ but $x+y$ stays")

	require.Len(t, equations, 1)
	assert.Equal(t, "x+y", equations[0].RawMarkup)
}

// =============================================================================
// Record Assembly Tests
// =============================================================================

func TestExtract_DuplicateMarkupSameID(t *testing.T) {
	equations := newTestExtractor().Extract("once $x+y$ and again $x+y$ here")

	require.Len(t, equations, 2)
	assert.Equal(t, equations[0].ID, equations[1].ID)
}

func TestExtract_References(t *testing.T) {
	text := `\[ z = w \ref{eq:first} \eqref{eq:second} \]`

	equations := newTestExtractor().Extract(text)

	require.Len(t, equations, 1)
	assert.Equal(t, []string{"eq:first", "eq:second"}, equations[0].References)
	assert.Empty(t, equations[0].Labels)
}

func TestExtract_ContextWindow(t *testing.T) {
	text := strings.Repeat("x", 50) + " alpha $a=b$ beta " + strings.Repeat("y", 50)
	extractor := NewExtractor(config.ExtractionConfig{ContextWindow: 12}, nil)

	equations := extractor.Extract(text)

	require.Len(t, equations, 1)
	context := equations[0].Context
	assert.Contains(t, context, "alpha")
	assert.Contains(t, context, "beta")
	assert.NotContains(t, context, strings.Repeat("x", 13))
	assert.NotContains(t, context, strings.Repeat("y", 13))
}

func TestExtract_ContextDrivesClassification(t *testing.T) {
	text := "We compute the probability that $g(n)$ exceeds the sample mean."

	equations := newTestExtractor().Extract(text)

	require.Len(t, equations, 1)
	assert.Equal(t, TypeProbability, equations[0].Type)
}

func TestExtract_SpecimenTypes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Type
	}{
		{"derivative", `$$\frac{d}{dx} f(x) = f'(x)$$`, TypeDifferential},
		{"summation", `$\sum_{i=1}^{n} i$`, TypeSummation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equations := newTestExtractor().Extract(tt.text)
			require.Len(t, equations, 1)
			assert.Equal(t, tt.want, equations[0].Type)
		})
	}
}

func TestExtract_ComplexityWithinRange(t *testing.T) {
	text := `$x$ $$\sum_{i=1}^{n} \frac{1}{i^2}$$ \( \sqrt{a^2+b^2} \)`

	for _, eq := range newTestExtractor().Extract(text) {
		assert.GreaterOrEqual(t, eq.Complexity, 0.0)
		assert.LessOrEqual(t, eq.Complexity, 10.0)
	}
}

// =============================================================================
// ContentID Tests
// =============================================================================

func TestContentID(t *testing.T) {
	id := ContentID("x^2+y^2=z^2")

	assert.Len(t, id, 16)
	assert.Equal(t, id, ContentID("x^2+y^2=z^2"))
	assert.NotEqual(t, id, ContentID("a^2+b^2=c^2"))

	for _, r := range id {
		assert.Contains(t, "0123456789abcdef", string(r))
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func benchmarkDocument(equations int) string {
	var sb strings.Builder
	for i := 0; i < equations; i += 4 {
		fmt.Fprintf(&sb, "Section %d studies the relation $%dx + %d = 0$ over the reals.\n\n", i/4+1, i+1, i+2)
		fmt.Fprintf(&sb, "$$\\int_0^%d x^2 \\, dx = \\frac{%d}{3}$$\n\n", i+1, (i+1)*(i+1)*(i+1))
		fmt.Fprintf(&sb, "\\begin{equation}\n\\sum_{n=1}^{%d} \\frac{1}{n^2}\n\\end{equation}\n\n", i+10)
		fmt.Fprintf(&sb, "The derivative \\( \\frac{dy}{dx} = %dy \\) models exponential growth.\n\n", i+3)
	}
	return sb.String()
}

func benchmarkExtract(b *testing.B, equations int) {
	text := benchmarkDocument(equations)
	extractor := newTestExtractor()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		extractor.Extract(text)
	}
}

func BenchmarkExtract_20Equations(b *testing.B)  { benchmarkExtract(b, 20) }
func BenchmarkExtract_100Equations(b *testing.B) { benchmarkExtract(b, 100) }
func BenchmarkExtract_500Equations(b *testing.B) { benchmarkExtract(b, 500) }
