package equation

import "regexp"

// Compiled patterns for delimiter scanning and token-class extraction.
var (
	// Display math: $$...$$ and \[...\]
	displayDollarPattern  = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	displayBracketPattern = regexp.MustCompile(`(?s)\\\[(.+?)\\\]`)

	// Inline math: \(...\) and $...$
	inlineParenPattern  = regexp.MustCompile(`(?s)\\\((.+?)\\\)`)
	inlineDollarPattern = regexp.MustCompile(`\$([^$]+?)\$`)

	// Cross-references: \label{eq:name}, \ref{eq:name}, \eqref{eq:name}
	labelPattern     = regexp.MustCompile(`\\label\{([^}]+)\}`)
	referencePattern = regexp.MustCompile(`\\(?:eq)?ref\{([^}]+)\}`)

	// Token scans: LaTeX commands, letter runs, numeric literals, call heads
	commandPattern    = regexp.MustCompile(`\\[a-zA-Z]+`)
	identifierPattern = regexp.MustCompile(`[a-zA-Z]+`)
	numberPattern     = regexp.MustCompile(`\d+(?:\.\d+)?`)
	callHeadPattern   = regexp.MustCompile(`([a-zA-Z]+)\s*\(`)

	// Whitespace runs, collapsed during normalization and context capture
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Equation-like environments recognized alongside dollar and bracket
// delimiters. Starred forms suppress numbering but delimit the same content.
var equationEnvironments = []string{
	"equation", "equation*",
	"align", "align*",
	"gather", "gather*",
}

// delimiterPatterns is evaluated in order, most specific delimiter first.
// Environments run before $$, and $$ before $, so a display block is never
// re-captured as inline fragments. Each pattern has exactly one capture
// group holding the markup between the delimiters.
var delimiterPatterns = buildDelimiterPatterns()

func buildDelimiterPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(equationEnvironments)+4)
	for _, env := range equationEnvironments {
		quoted := regexp.QuoteMeta(env)
		patterns = append(patterns, regexp.MustCompile(`(?s)\\begin\{`+quoted+`\}(.*?)\\end\{`+quoted+`\}`))
	}
	return append(patterns,
		displayDollarPattern,
		displayBracketPattern,
		inlineParenPattern,
		inlineDollarPattern,
	)
}

// classificationRule maps one equation type to the structural patterns and
// context keywords that identify it. Patterns match the raw markup; keywords
// match anywhere in the lowercased markup plus surrounding context.
type classificationRule struct {
	equationType Type
	patterns     []*regexp.Regexp
	keywords     []string
}

// classificationRules is evaluated in order and the first hit wins, so more
// specific shapes come first: a derivative of x^2 must classify as
// differential, not quadratic, and an integral of a square as integral.
var classificationRules = []classificationRule{
	{
		equationType: TypeDifferential,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\\frac\{\s*d[^}]*\}\{\s*d[^}]*\}`),
			regexp.MustCompile(`\\frac\{\s*\\partial[^}]*\}\{\s*\\partial[^}]*\}`),
			regexp.MustCompile(`\\partial`),
			regexp.MustCompile(`[a-zA-Z]'`),
			regexp.MustCompile(`\\d?dot\{`),
			regexp.MustCompile(`\\nabla`),
			regexp.MustCompile(`\bd[a-zA-Z]\s*/\s*d[a-zA-Z]\b`),
		},
		keywords: []string{"derivative", "differential", "rate of change", "gradient"},
	},
	{
		equationType: TypeIntegral,
		patterns: []*regexp.Regexp{
			// \int, \iint, \iiint followed by a bound, space, brace, or end;
			// \b is useless here because "_" counts as a word character.
			regexp.MustCompile(`\\i+nt([^a-zA-Z]|$)`),
			regexp.MustCompile(`\\oint([^a-zA-Z]|$)`),
		},
		keywords: []string{"integral", "integration", "integrate", "area under"},
	},
	{
		equationType: TypeSummation,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\\sum([^a-zA-Z]|$)`),
			regexp.MustCompile(`\\prod([^a-zA-Z]|$)`),
		},
		keywords: []string{"summation", "series", "sum of", "partial sum"},
	},
	{
		equationType: TypeMatrix,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\\begin\{[pbvB]?matrix\*?\}`),
			regexp.MustCompile(`\\det([^a-zA-Z]|$)`),
		},
		keywords: []string{"matrix", "matrices", "determinant", "eigenvalue", "eigenvector"},
	},
	{
		equationType: TypeProbability,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:^|[^a-zA-Z\\])P\s*\(`),
			regexp.MustCompile(`\\Pr([^a-zA-Z]|$)`),
			regexp.MustCompile(`\\mathbb\{[EP]\}`),
			regexp.MustCompile(`\\mathcal\{N\}`),
		},
		keywords: []string{"probability", "random variable", "distribution", "expectation", "expected value", "variance", "likelihood"},
	},
	{
		equationType: TypeQuadratic,
		patterns: []*regexp.Regexp{
			// ^ binds a single token, so any ^2 is a square; ^{2} needs the
			// braced form and ^{25} correctly stays unmatched.
			regexp.MustCompile(`\^2`),
			regexp.MustCompile(`\^\{2\}`),
			regexp.MustCompile(`\\sqrt`),
		},
		keywords: []string{"quadratic", "parabola", "second degree"},
	},
	{
		equationType: TypeLinear,
		patterns: []*regexp.Regexp{
			// One "=", degree-one terms only: letters, digits, basic
			// arithmetic, no exponents, no LaTeX commands.
			regexp.MustCompile(`^[0-9a-zA-Z+\-*/., !()\s]*[a-zA-Z][0-9a-zA-Z+\-*/., !()\s]*=[0-9a-zA-Z+\-*/., !()\s]*$`),
		},
		keywords: []string{"linear", "slope", "straight line"},
	},
}
