package concept

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/paperlens/mathdex/internal/config"
	"github.com/paperlens/mathdex/internal/equation"
)

// DefaultMaxNameWords caps concept name length when config leaves it unset.
const DefaultMaxNameWords = 6

// Leading articles are stripped from captured names; a name that still
// contains filler afterwards is regex spillover, not a concept, and the
// match is dropped.
var (
	articles = map[string]bool{"the": true, "a": true, "an": true}

	fillerWords = map[string]bool{
		"the": true, "a": true, "an": true, "of": true, "and": true,
		"or": true, "this": true, "that": true, "above": true,
		"below": true, "following": true, "previous": true, "same": true,
	}
)

// Base importance by concept type. Frequency and equation links add to the
// base, capped at 1.0.
var typeBaseImportance = map[Type]float64{
	TypeTheorem:    0.30,
	TypeDefinition: 0.25,
	TypeFunction:   0.15,
	TypeObject:     0.10,
}

// candidate is one raw pattern hit before merging.
type candidate struct {
	name     string
	ctype    Type
	notation string
}

// Extractor finds named mathematical concepts in prose and links them to
// previously extracted equations.
type Extractor struct {
	maxNameWords int
}

func NewExtractor(cfg config.ConceptsConfig) *Extractor {
	if cfg.MaxNameWords <= 0 {
		cfg.MaxNameWords = DefaultMaxNameWords
	}
	return &Extractor{maxNameWords: cfg.MaxNameWords}
}

// Extract runs the three named-entity passes concurrently, merges their
// hits by concept id, then computes frequency, equation links, and
// importance for each merged concept. A failing pass contributes an empty
// list; the other passes are unaffected. Results are sorted by id.
func (e *Extractor) Extract(ctx context.Context, text string, equations []equation.Equation) []Concept {
	if ctx.Err() != nil || text == "" {
		return nil
	}

	passes := []struct {
		name string
		run  func(string) []candidate
	}{
		{"theorems", e.theoremPass},
		{"definitions", e.definitionPass},
		{"functions_objects", e.functionObjectPass},
	}

	results := make([][]candidate, len(passes))
	g, _ := errgroup.WithContext(ctx)
	for i, pass := range passes {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("concept pass failed", "pass", pass.name, "error", fmt.Sprint(r))
					results[i] = nil
				}
			}()
			results[i] = pass.run(text)
			return nil
		})
	}
	_ = g.Wait() // passes recover their own panics and never return errors

	merged := make(map[string]*Concept)
	for _, candidates := range results {
		for _, cand := range candidates {
			id := ConceptID(cand.name, cand.ctype)
			c, ok := merged[id]
			if !ok {
				c = &Concept{
					ID:              id,
					Name:            cand.name,
					Type:            cand.ctype,
					Notation:        []string{},
					RelatedConcepts: []string{},
					Equations:       []string{},
				}
				merged[id] = c
			}
			if cand.notation != "" && !contains(c.Notation, cand.notation) {
				c.Notation = append(c.Notation, cand.notation)
			}
		}
	}

	concepts := make([]Concept, 0, len(merged))
	for _, c := range merged {
		c.Frequency = countFrequency(c.Name, text)
		linkEquations(c, equations)
		c.Importance = importanceScore(c)
		concepts = append(concepts, *c)
	}
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].ID < concepts[j].ID })
	return concepts
}

// =============================================================================
// Passes
// =============================================================================

func (e *Extractor) theoremPass(text string) []candidate {
	var out []candidate
	for _, m := range numberedTheoremPattern.FindAllStringSubmatch(text, -1) {
		out = e.appendNamed(out, m[2], TypeTheorem, "")
	}
	for _, m := range namedTheoremPattern.FindAllStringSubmatch(text, -1) {
		out = e.appendNamed(out, m[1], TypeTheorem, "")
	}
	for _, m := range theoremEnvPattern.FindAllStringSubmatch(text, -1) {
		out = e.appendNamed(out, m[1], TypeTheorem, "")
	}
	return out
}

func (e *Extractor) definitionPass(text string) []candidate {
	var out []candidate
	for _, m := range numberedDefinitionPattern.FindAllStringSubmatch(text, -1) {
		out = e.appendNamed(out, m[1], TypeDefinition, "")
	}
	for _, m := range weDefinePattern.FindAllStringSubmatch(text, -1) {
		out = e.appendNamed(out, m[1], TypeDefinition, "")
	}
	for _, m := range isDefinedPattern.FindAllStringSubmatch(text, -1) {
		out = e.appendNamed(out, m[1], TypeDefinition, "")
	}
	for _, m := range definitionEnvPattern.FindAllStringSubmatch(text, -1) {
		out = e.appendNamed(out, m[1], TypeDefinition, "")
	}
	return out
}

func (e *Extractor) functionObjectPass(text string) []candidate {
	var out []candidate
	for _, m := range mappingPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, candidate{name: m[1], ctype: TypeFunction, notation: strings.TrimSpace(m[0])})
	}
	for _, m := range functionProsePattern.FindAllStringSubmatch(text, -1) {
		out = append(out, candidate{name: m[1], ctype: TypeFunction})
	}
	for _, m := range mathbbPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, candidate{name: m[1], ctype: TypeObject, notation: m[0]})
	}
	for _, m := range spacePattern.FindAllStringSubmatch(text, -1) {
		name, ok := e.cleanName(m[1])
		if !ok {
			continue
		}
		name = strings.TrimSuffix(name, "s") // "Banach spaces" names the "Banach space"
		out = append(out, candidate{name: name, ctype: TypeObject})
	}
	return out
}

// appendNamed cleans a captured prose name and appends the candidate when
// the name survives.
func (e *Extractor) appendNamed(out []candidate, raw string, ctype Type, notation string) []candidate {
	name, ok := e.cleanName(raw)
	if !ok {
		return out
	}
	return append(out, candidate{name: name, ctype: ctype, notation: notation})
}

// cleanName collapses whitespace, strips leading articles, and rejects
// captures that are too long, too short, or still contain filler words.
func (e *Extractor) cleanName(raw string) (string, bool) {
	words := strings.Fields(raw)
	for len(words) > 0 && articles[strings.ToLower(words[0])] {
		words = words[1:]
	}
	if len(words) == 0 || len(words) > e.maxNameWords {
		return "", false
	}
	for _, w := range words {
		if fillerWords[strings.ToLower(w)] {
			return "", false
		}
	}
	name := strings.Join(words, " ")
	if len(name) < 2 {
		return "", false
	}
	return name, true
}

// =============================================================================
// Enrichment
// =============================================================================

// countFrequency counts case-insensitive whole-word occurrences of name.
func countFrequency(name, text string) int {
	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return 0
	}
	return len(pattern.FindAllStringIndex(text, -1))
}

// linkEquations attaches every equation whose context mentions the concept
// name or whose variables include it. Containment matching, not semantic:
// good enough to seed the concept graph.
func linkEquations(c *Concept, equations []equation.Equation) {
	lowerName := strings.ToLower(c.Name)
	seen := make(map[string]bool)
	for _, eq := range equations {
		if seen[eq.ID] {
			continue
		}
		if strings.Contains(strings.ToLower(eq.Context), lowerName) || contains(eq.Variables, c.Name) {
			c.Equations = append(c.Equations, eq.ID)
			seen[eq.ID] = true
		}
	}
}

func importanceScore(c *Concept) float64 {
	freq := c.Frequency
	if freq > 6 {
		freq = 6
	}
	linked := len(c.Equations)
	if linked > 5 {
		linked = 5
	}

	score := typeBaseImportance[c.Type] + 0.05*float64(freq) + 0.06*float64(linked)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
