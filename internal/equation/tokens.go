package equation

import (
	"sort"
	"strings"
)

// Fixed token tables. The scans below never guess: a command is a function,
// operator, constant, or greek variable only if it appears here.
var (
	// Function command names, without the leading backslash. Matching plain
	// words (sin without a backslash) hit the same table so "sin(x)" in
	// sloppy markup still counts as a function, not variables s, i, n.
	knownFunctions = map[string]bool{
		"sin": true, "cos": true, "tan": true, "cot": true, "sec": true, "csc": true,
		"arcsin": true, "arccos": true, "arctan": true,
		"sinh": true, "cosh": true, "tanh": true, "coth": true,
		"log": true, "ln": true, "lg": true, "exp": true,
		"lim": true, "limsup": true, "liminf": true,
		"det": true, "dim": true, "ker": true, "deg": true,
		"gcd": true, "max": true, "min": true, "sup": true, "inf": true, "arg": true,
	}

	// Greek letter commands classed as variables. \pi is absent: it lives in
	// the constant table.
	greekLetters = map[string]bool{
		"alpha": true, "beta": true, "gamma": true, "delta": true,
		"epsilon": true, "varepsilon": true, "zeta": true, "eta": true,
		"theta": true, "vartheta": true, "iota": true, "kappa": true,
		"lambda": true, "mu": true, "nu": true, "xi": true,
		"rho": true, "varrho": true, "sigma": true, "varsigma": true,
		"tau": true, "upsilon": true, "phi": true, "varphi": true,
		"chi": true, "psi": true, "omega": true,
		"Gamma": true, "Delta": true, "Theta": true, "Lambda": true,
		"Xi": true, "Sigma": true, "Upsilon": true, "Phi": true,
		"Psi": true, "Omega": true,
	}

	// Operator command names, without the leading backslash.
	operatorCommands = map[string]bool{
		"times": true, "cdot": true, "div": true, "pm": true, "mp": true,
		"leq": true, "le": true, "geq": true, "ge": true, "neq": true, "ne": true,
		"approx": true, "equiv": true, "sim": true, "simeq": true, "propto": true,
		"sum": true, "prod": true, "int": true, "iint": true, "iiint": true, "oint": true,
		"partial": true, "nabla": true,
		"cup": true, "cap": true, "setminus": true,
		"in": true, "notin": true, "subset": true, "supset": true,
		"subseteq": true, "supseteq": true,
		"to": true, "rightarrow": true, "leftarrow": true,
		"Rightarrow": true, "Leftarrow": true, "mapsto": true,
		"land": true, "lor": true, "neg": true, "forall": true, "exists": true,
		"circ": true, "oplus": true, "otimes": true, "wedge": true, "vee": true,
	}

	// Single-character ascii operators. ^ and _ are deliberately absent:
	// complexity scoring counts them as scripts, not operators.
	asciiOperators = map[rune]bool{
		'+': true, '-': true, '=': true, '<': true, '>': true,
		'/': true, '*': true, '!': true, '|': true,
	}

	constantCommands = map[string]bool{
		"pi": true, "infty": true,
	}
)

// scanFunctions collects function tokens: known function commands plus
// name( call heads. A call head preceded by a backslash is a LaTeX command
// and is left to the command scan, so \alpha(x) does not make alpha a
// function.
func scanFunctions(markup string) []string {
	set := make(map[string]struct{})
	for _, match := range commandPattern.FindAllString(markup, -1) {
		if name := strings.TrimPrefix(match, `\`); knownFunctions[name] {
			set[name] = struct{}{}
		}
	}
	for _, loc := range callHeadPattern.FindAllStringSubmatchIndex(markup, -1) {
		start, end := loc[2], loc[3]
		if start > 0 && markup[start-1] == '\\' {
			continue
		}
		set[markup[start:end]] = struct{}{}
	}
	return sortedTokens(set)
}

// scanVariables collects single latin letters and greek commands. Letters
// already claimed by the function scan are excluded, as is standalone e,
// which counts as a constant.
func scanVariables(markup string, functions []string) []string {
	isFunction := make(map[string]bool, len(functions))
	for _, f := range functions {
		isFunction[f] = true
	}

	set := make(map[string]struct{})
	for _, match := range commandPattern.FindAllString(markup, -1) {
		if name := strings.TrimPrefix(match, `\`); greekLetters[name] && !isFunction[name] {
			set[name] = struct{}{}
		}
	}

	stripped := commandPattern.ReplaceAllString(markup, " ")
	for _, word := range identifierPattern.FindAllString(stripped, -1) {
		if word == "e" || isFunction[word] || knownFunctions[word] {
			continue
		}
		// A multi-letter run like mx is implicit multiplication: one
		// variable per letter.
		for _, r := range word {
			letter := string(r)
			if isFunction[letter] {
				continue
			}
			set[letter] = struct{}{}
		}
	}
	return sortedTokens(set)
}

// scanOperators collects ascii operator characters and operator commands.
// Command tokens keep their backslash so \sum and a literal s never collide.
func scanOperators(markup string) []string {
	set := make(map[string]struct{})
	for _, match := range commandPattern.FindAllString(markup, -1) {
		if operatorCommands[strings.TrimPrefix(match, `\`)] {
			set[match] = struct{}{}
		}
	}
	for _, r := range markup {
		if asciiOperators[r] {
			set[string(r)] = struct{}{}
		}
	}
	return sortedTokens(set)
}

// scanConstants collects numeric literals, constant commands, and
// standalone e.
func scanConstants(markup string) []string {
	set := make(map[string]struct{})
	for _, match := range commandPattern.FindAllString(markup, -1) {
		if constantCommands[strings.TrimPrefix(match, `\`)] {
			set[match] = struct{}{}
		}
	}
	for _, num := range numberPattern.FindAllString(markup, -1) {
		set[num] = struct{}{}
	}
	stripped := commandPattern.ReplaceAllString(markup, " ")
	for _, word := range identifierPattern.FindAllString(stripped, -1) {
		if word == "e" {
			set["e"] = struct{}{}
		}
	}
	return sortedTokens(set)
}

func sortedTokens(set map[string]struct{}) []string {
	tokens := make([]string, 0, len(set))
	for token := range set {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}
