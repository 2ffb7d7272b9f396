package concept

import "regexp"

// Named-entity patterns, grouped by pass. Prose patterns are case
// insensitive and capture the original casing; name hygiene happens in
// cleanName, not here.
var (
	// Pass A: theorem-like declarations.
	// "Theorem 3.1 (Cauchy Integral Formula)", "Lemma 2 (Key Estimate)"
	numberedTheoremPattern = regexp.MustCompile(`\b(Theorem|Lemma|Corollary|Proposition)\s+\d+(?:\.\d+)*\s*\(([^)]+)\)`)
	// "by the Pythagorean theorem", "the central limit theorem"
	namedTheoremPattern = regexp.MustCompile(`(?i)\bthe\s+((?:[a-z'-]+\s+){1,5}?)(?:theorem|lemma|corollary|proposition)s?\b`)
	// \begin{theorem}[Banach Fixed Point]
	theoremEnvPattern = regexp.MustCompile(`\\begin\{(?:theorem|lemma|corollary|proposition)\}\[([^\]]+)\]`)

	// Pass B: definition declarations.
	// "Definition 2 (Spectral Radius)"
	numberedDefinitionPattern = regexp.MustCompile(`\bDefinition\s+\d+(?:\.\d+)*\s*\(([^)]+)\)`)
	// "we define the spectral radius as", "we define the norm to be"
	weDefinePattern = regexp.MustCompile(`(?i)\bwe\s+define\s+((?:[a-z'-]+\s+){1,6}?)(?:as|to\s+be|by)\b`)
	// "the Frobenius norm is defined as"
	isDefinedPattern = regexp.MustCompile(`(?i)\b((?:[a-z'-]+\s+){1,5}?)is\s+defined\s+(?:as|by)\b`)
	// \begin{definition}[Open Set]
	definitionEnvPattern = regexp.MustCompile(`\\begin\{definition\}\[([^\]]+)\]`)

	// Pass C: function declarations and mathematical objects.
	// "f: X \to Y", "g : \mathbb{R} \to \mathbb{R}"
	mappingPattern = regexp.MustCompile(`\b([a-zA-Z])\s*:\s*[A-Za-z\\{}()^_0-9]+\s*\\to\s*[A-Za-z\\{}()^_0-9]+`)
	// "the function f", "the map g"
	functionProsePattern = regexp.MustCompile(`(?i)\bthe\s+(?:function|map|mapping)\s+([a-zA-Z])\b`)
	// \mathbb{R}, \mathbb{N}: number sets and friends
	mathbbPattern = regexp.MustCompile(`\\mathbb\{([A-Z])\}`)
	// "Hilbert space", "Banach spaces"
	spacePattern = regexp.MustCompile(`\b((?:[A-Z][a-zA-Z'-]*\s+)+[Ss]paces?)\b`)
)
