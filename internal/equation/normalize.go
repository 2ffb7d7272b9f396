package equation

import "strings"

// Spacing macros carry no structure, so they collapse to plain spaces before
// whitespace folding. \qquad is listed before \quad; the replacer tries
// patterns in order at each position.
var spacingReplacer = strings.NewReplacer(
	`\qquad`, " ",
	`\quad`, " ",
	`\,`, " ",
	`\;`, " ",
	`\:`, " ",
	`\!`, " ",
)

// \left and \right size brackets for display but do not change meaning.
var bracketReplacer = strings.NewReplacer(
	`\left(`, "(",
	`\right)`, ")",
	`\left[`, "[",
	`\right]`, "]",
	`\left\{`, "{",
	`\right\}`, "}",
)

// Normalize produces the comparison form of raw markup: spacing macros
// stripped, \left/\right bracket sizing removed, whitespace runs collapsed
// to single spaces, ends trimmed. Structural similarity compares these
// strings position by position, so two renderings of the same expression
// must normalize identically.
func Normalize(markup string) string {
	normalized := spacingReplacer.Replace(markup)
	normalized = bracketReplacer.Replace(normalized)
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}
