package equation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Function Scan Tests
// =============================================================================

func TestScanFunctions(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   []string
	}{
		{"latex commands", `\sin(x) + \cos(y)`, []string{"cos", "sin"}},
		{"call heads", `f(x) = g(h(x))`, []string{"f", "g", "h"}},
		{"plain known name", `sin(x)`, []string{"sin"}},
		{"command without parens", `\log x + \ln y`, []string{"ln", "log"}},
		{"greek command call is not a function", `\alpha(x + 1)`, nil},
		{"duplicates collapse", `f(x) + f(y) + f(z)`, []string{"f"}},
		{"no functions", `x + y = z`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanFunctions(tt.markup)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// =============================================================================
// Variable Scan Tests
// =============================================================================

func TestScanVariables(t *testing.T) {
	tests := []struct {
		name      string
		markup    string
		functions []string
		want      []string
	}{
		{"single letters", `x + y = z`, nil, []string{"x", "y", "z"}},
		{"multi letter run splits", `y = mx + b`, nil, []string{"b", "m", "x", "y"}},
		{"greek commands", `\alpha + \beta = \gamma`, nil, []string{"alpha", "beta", "gamma"}},
		{"function names excluded", `\sin(x)`, []string{"sin"}, []string{"x"}},
		{"call head excluded", `f(x) = f'(x)`, []string{"f"}, []string{"x"}},
		{"standalone e excluded", `e^{i\pi} + 1 = 0`, nil, []string{"i"}},
		{"e inside a run is a variable", `en`, nil, []string{"e", "n"}},
		{"command letters do not leak", `\frac{a}{b}`, nil, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanVariables(tt.markup, tt.functions))
		})
	}
}

// =============================================================================
// Operator and Constant Scan Tests
// =============================================================================

func TestScanOperators(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   []string
	}{
		{"ascii", `a + b = c`, []string{"+", "="}},
		{"commands keep backslash", `a \times b \cdot c`, []string{`\cdot`, `\times`}},
		{"mixed", `\sum_{i} i < n`, []string{"<", `\sum`}},
		{"conditional bar", `P(A|B)`, []string{"|"}},
		{"none", `x`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanOperators(tt.markup)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestScanConstants(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   []string
	}{
		{"integers", `2x + 17`, []string{"17", "2"}},
		{"decimals", `3.14 r^2`, []string{"2", "3.14"}},
		{"pi and infinity", `\int_0^\infty e^{-\pi x}`, []string{"0", `\infty`, `\pi`, "e"}},
		{"standalone e", `e^x`, []string{"e"}},
		{"e in a longer run is not a constant", `exp`, nil},
		{"none", `x + y`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanConstants(tt.markup)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTokenScans_AreIndependent(t *testing.T) {
	markup := `\sin(x) \times 2\pi`

	functions := scanFunctions(markup)
	assert.Equal(t, []string{"sin"}, functions)
	assert.Equal(t, []string{"x"}, scanVariables(markup, functions))
	assert.Equal(t, []string{`\times`}, scanOperators(markup))
	assert.Equal(t, []string{"2", `\pi`}, scanConstants(markup))
}
