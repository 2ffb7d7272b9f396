package equation

import "strings"

// Complexity term weights. Fractions and roots introduce nested structure,
// so they weigh more than flat operator chains.
const (
	functionWeight = 2
	fractionWeight = 3
	rootWeight     = 2
	operatorWeight = 1
	scriptWeight   = 1
)

// complexityScore measures structural density of raw markup on a 0 to 10
// scale: weighted counts of function calls, fractions, roots, operators,
// and sub/superscripts, normalized by markup length and capped at 10.
// Empty markup scores 0.
func complexityScore(markup string) float64 {
	if len(markup) == 0 {
		return 0
	}

	fractions := strings.Count(markup, `\frac`) +
		strings.Count(markup, `\dfrac`) +
		strings.Count(markup, `\tfrac`)
	roots := strings.Count(markup, `\sqrt`)
	scripts := strings.Count(markup, "^") + strings.Count(markup, "_")

	operators := 0
	for _, r := range markup {
		if asciiOperators[r] {
			operators++
		}
	}
	for _, match := range commandPattern.FindAllString(markup, -1) {
		if operatorCommands[strings.TrimPrefix(match, `\`)] {
			operators++
		}
	}

	raw := functionWeight*countFunctionCalls(markup) +
		fractionWeight*fractions +
		rootWeight*roots +
		operatorWeight*operators +
		scriptWeight*scripts

	score := float64(raw) * 10.0 / float64(len(markup))
	if score > 10 {
		score = 10
	}
	return score
}

// countFunctionCalls counts occurrences, not distinct names: sin appearing
// twice is two calls.
func countFunctionCalls(markup string) int {
	calls := 0
	for _, match := range commandPattern.FindAllString(markup, -1) {
		if knownFunctions[strings.TrimPrefix(match, `\`)] {
			calls++
		}
	}
	for _, loc := range callHeadPattern.FindAllStringSubmatchIndex(markup, -1) {
		if loc[2] > 0 && markup[loc[2]-1] == '\\' {
			continue
		}
		calls++
	}
	return calls
}
