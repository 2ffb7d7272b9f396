package store

import (
	"regexp"
	"strings"
	"unicode"
)

// minMathTokenLen filters one-letter variables out of the index; a
// bare "x" or "a" matches everything and means nothing.
const minMathTokenLen = 2

// mathTokenPattern matches LaTeX control sequences and alphanumeric
// identifier runs. Underscores stay in the run so subscripts split in
// SplitMathToken rather than in the scan.
var mathTokenPattern = regexp.MustCompile(`\\[a-zA-Z]+|[a-zA-Z0-9_]+`)

// TokenizeMath splits mathematical text with LaTeX-aware rules.
// Control sequences index whole with the backslash stripped (\frac
// becomes "frac", never case-split), identifier runs split on case
// changes and underscores, and everything is lowercased. Tokens
// shorter than two characters are dropped.
func TokenizeMath(text string) []string {
	var tokens []string
	keep := func(tok string) {
		if len(tok) >= minMathTokenLen {
			tokens = append(tokens, tok)
		}
	}

	for _, raw := range mathTokenPattern.FindAllString(text, -1) {
		if raw[0] == '\\' {
			keep(strings.ToLower(raw[1:]))
			continue
		}
		for _, part := range SplitMathToken(raw) {
			keep(strings.ToLower(part))
		}
	}
	return tokens
}

// SplitMathToken breaks an identifier on underscores and case
// boundaries. Casing is preserved; TokenizeMath lowercases afterwards.
func SplitMathToken(token string) []string {
	if !strings.ContainsRune(token, '_') {
		return SplitCaseRuns(token)
	}

	var parts []string
	for _, piece := range strings.Split(token, "_") {
		if piece == "" {
			continue
		}
		parts = append(parts, SplitCaseRuns(piece)...)
	}
	return parts
}

// SplitCaseRuns splits camelCase and PascalCase runs, keeping
// acronyms together: "parseODESystem" becomes parse, ODE, System.
func SplitCaseRuns(s string) []string {
	runes := []rune(s)
	words := []string{}

	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		// An upper rune opens a word when it follows a lower rune or
		// when the rune after it is lower (the end of an acronym).
		if unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1])) {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	if start < len(runes) {
		words = append(words, string(runes[start:]))
	}
	return words
}

// DropStopWords drops tokens found in stopWords, comparing
// case-insensitively while preserving token casing.
func DropStopWords(tokens []string, stopWords map[string]struct{}) []string {
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopWords[strings.ToLower(tok)]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

// StopWordSet lowercases words into a lookup set.
func StopWordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
