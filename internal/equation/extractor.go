package equation

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/paperlens/mathdex/internal/config"
)

// Extractor scans raw text for delimited mathematical expressions and turns
// each into an Equation record. Safe for concurrent use: all state is
// immutable after construction except the classifier's internal cache,
// which locks on its own.
type Extractor struct {
	cfg        config.ExtractionConfig
	classifier *Classifier
}

// NewExtractor builds an Extractor. A nil classifier gets a default-sized
// one; zero config values fall back to package defaults so a zero-value
// ExtractionConfig still behaves.
func NewExtractor(cfg config.ExtractionConfig, classifier *Classifier) *Extractor {
	if classifier == nil {
		classifier = NewClassifier(DefaultCacheSize)
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.MaxEquationLength <= 0 {
		cfg.MaxEquationLength = DefaultMaxLength
	}
	return &Extractor{cfg: cfg, classifier: classifier}
}

// Extract returns one Equation per recognized expression, in source order.
// A malformed match is logged and skipped; Extract never fails on arbitrary
// input. Duplicate markup yields duplicate records with identical IDs, and
// the index layer dedupes by ID.
func (e *Extractor) Extract(text string) []Equation {
	matches := findMatches(text)
	equations := make([]Equation, 0, len(matches))
	for _, m := range matches {
		eq, ok := e.buildEquation(text, m)
		if !ok {
			continue
		}
		equations = append(equations, eq)
	}
	return equations
}

// mathMatch is one delimited span located in the source text. Offsets cover
// the full delimited expression including the delimiters themselves.
type mathMatch struct {
	raw   string
	start int
	end   int
}

// findMatches locates delimited expressions, most specific delimiter first.
// Each matched span is masked with spaces before the next pattern runs, so
// a $$ block is never re-captured by the inline $ pattern. Masking keeps
// byte offsets stable for context capture.
func findMatches(text string) []mathMatch {
	masked := []byte(text)
	var matches []mathMatch
	for _, pattern := range delimiterPatterns {
		for _, loc := range pattern.FindAllSubmatchIndex(masked, -1) {
			matches = append(matches, mathMatch{
				raw:   string(masked[loc[2]:loc[3]]),
				start: loc[0],
				end:   loc[1],
			})
			for i := loc[0]; i < loc[1]; i++ {
				masked[i] = ' '
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	return matches
}

// buildEquation assembles the full record for one match. Any panic from
// pathological markup is recovered here so one bad match cannot abort the
// scan.
func (e *Extractor) buildEquation(text string, m mathMatch) (eq Equation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("skipping unparsable equation", "error", fmt.Sprint(r), "offset", m.start)
			ok = false
		}
	}()

	raw := strings.TrimSpace(m.raw)
	if raw == "" {
		return Equation{}, false
	}
	if len(raw) > e.cfg.MaxEquationLength {
		slog.Warn("skipping oversized equation",
			"length", len(raw),
			"max", e.cfg.MaxEquationLength)
		return Equation{}, false
	}

	context := e.contextAround(text, m.start, m.end)
	return e.newEquation(raw, context), true
}

// Parse builds an Equation from bare markup with no surrounding document,
// as needed for ad-hoc query expressions. Classification sees an empty
// context, so structural patterns alone decide the type.
func (e *Extractor) Parse(markup string) Equation {
	return e.newEquation(strings.TrimSpace(markup), "")
}

func (e *Extractor) newEquation(raw, context string) Equation {
	functions := scanFunctions(raw)
	return Equation{
		ID:               ContentID(raw),
		RawMarkup:        raw,
		NormalizedMarkup: Normalize(raw),
		Variables:        scanVariables(raw, functions),
		Functions:        functions,
		Operators:        scanOperators(raw),
		Constants:        scanConstants(raw),
		Type:             e.classifier.Classify(raw, context),
		Complexity:       complexityScore(raw),
		Context:          context,
		Labels:           captureAll(labelPattern, raw),
		References:       captureAll(referencePattern, raw),
	}
}

// contextAround returns the text surrounding a match, up to ContextWindow
// bytes on each side, whitespace-collapsed. The equation itself is excluded
// so context reflects only the prose around it.
func (e *Extractor) contextAround(text string, start, end int) string {
	from := start - e.cfg.ContextWindow
	if from < 0 {
		from = 0
	}
	to := end + e.cfg.ContextWindow
	if to > len(text) {
		to = len(text)
	}
	context := text[from:start] + " " + text[end:to]
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(context, " "))
}

// captureAll returns the first capture group of every match, in order of
// appearance.
func captureAll(pattern *regexp.Regexp, s string) []string {
	matches := pattern.FindAllStringSubmatch(s, -1)
	captured := make([]string, 0, len(matches))
	for _, m := range matches {
		captured = append(captured, m[1])
	}
	return captured
}
