//go:build ignore

// Package main generates a synthetic mathematical corpus for benchmarking
// and manual indexing runs.
// Usage: go run scripts/generate-test-corpus.go -files 200 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 200, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var rng *rand.Rand

// Equation pools keyed by the classifier vocabulary they exercise. The map
// is only ever indexed through equationTypes so output stays reproducible
// for a fixed seed.
var equationTypes = []string{
	"linear", "quadratic", "differential", "integral",
	"summation", "matrix", "probability",
}

var equationPools = map[string][]string{
	"linear": {
		`3x + 2 = 11`,
		`2y - 7 = 3`,
		`ax + by = c`,
		`5t - 4 = 0`,
	},
	"quadratic": {
		`x^2 - 5x + 6 = 0`,
		`a^2 + b^2 = c^2`,
		`y = x^2 + 2x + 1`,
		`z^2 = 4z - 3`,
	},
	"differential": {
		`\frac{dy}{dx} = ky`,
		`y'' + 4y = 0`,
		`\frac{\partial u}{\partial t} = \alpha \nabla^2 u`,
	},
	"integral": {
		`\int_0^1 x^2 \, dx = \frac{1}{3}`,
		`\int e^x \, dx = e^x + C`,
		`\oint_C \mathbf{F} \cdot d\mathbf{r} = 0`,
	},
	"summation": {
		`\sum_{n=1}^{\infty} \frac{1}{n^2} = \frac{\pi^2}{6}`,
		`\sum_{k=0}^{n} \binom{n}{k} = 2^n`,
		`\prod_{i=1}^{n} i = n!`,
	},
	"matrix": {
		`\det(A) = ad - bc`,
		`\begin{pmatrix} 1 & 0 \\ 0 & 1 \end{pmatrix}`,
		`A^T A = I`,
	},
	"probability": {
		`P(A \mid B) = \frac{P(A)P(B \mid A)}{P(B)}`,
		`E[X] = \sum_i x_i p_i`,
		`\mathrm{Var}(X) = E[X^2] - E[X]^2`,
	},
}

// Prose pools shaped so the concept recognizer has theorems, definitions,
// and spaces to find.
var theorems = []string{
	"Pythagorean", "Cauchy-Schwarz", "Fubini", "Green", "Stokes",
	"Bayes", "Taylor", "Rolle", "Lagrange", "Fermat",
}

var topics = []string{
	"convergence", "continuity", "orthogonality", "curvature",
	"stability", "compactness", "independence", "integrability",
}

var spaces = []string{"Hilbert", "Banach", "Euclidean", "metric", "probability"}

var terms = []string{
	"norm", "inner product", "spectral radius",
	"expectation", "Laplacian", "resolvent",
}

var texHeader = `\documentclass{article}
\usepackage{amsmath,amsthm}
\newtheorem{theorem}{Theorem}
\title{%s}
\begin{document}
\maketitle

`

func main() {
	flag.Parse()
	rng = rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	// Create subdirectories
	subdirs := []string{"markdown", "latex", "notes"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(*outputDir, subdir), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating subdirectory %s: %v\n", subdir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d documents in %s...\n", *numFiles, *outputDir)

	// Distribute documents across formats
	mdFiles := *numFiles * 50 / 100  // 50% Markdown notes
	texFiles := *numFiles * 30 / 100 // 30% LaTeX papers
	txtFiles := *numFiles - mdFiles - texFiles // ~20% plain text

	generated := 0

	for i := 0; i < mdFiles; i++ {
		if err := generateMarkdownFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating markdown file %d: %v\n", i, err)
			continue
		}
		generated++
	}

	for i := 0; i < texFiles; i++ {
		if err := generateLatexFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating latex file %d: %v\n", i, err)
			continue
		}
		generated++
	}

	for i := 0; i < txtFiles; i++ {
		if err := generateTextFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating text file %d: %v\n", i, err)
			continue
		}
		generated++
	}

	fmt.Printf("Generated %d documents successfully.\n", generated)
}

func randomWord(pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func randomEquation() string {
	pool := equationPools[equationTypes[rng.Intn(len(equationTypes))]]
	return pool[rng.Intn(len(pool))]
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func generateMarkdownFile(index int) error {
	topic := randomWord(topics)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Notes on %s\n\n", title(topic))
	fmt.Fprintf(&sb, "These notes collect standard results about %s.\n\n", topic)

	sections := 3 + rng.Intn(3)
	for s := 1; s <= sections; s++ {
		name := randomWord(theorems)
		fmt.Fprintf(&sb, "## Section %d\n\n", s)
		fmt.Fprintf(&sb, "Theorem %d.1 (%s Criterion). If the sequence is bounded, then\n\n", s, name)
		fmt.Fprintf(&sb, "$$%s$$\n\n", randomEquation())
		fmt.Fprintf(&sb, "By the %s theorem, the bound $%s$ holds in any %s space.\n\n",
			name, randomEquation(), randomWord(spaces))
		fmt.Fprintf(&sb, "We define the %s as $%s$ whenever the limit exists.\n\n",
			randomWord(terms), randomEquation())
	}

	filename := filepath.Join(*outputDir, "markdown", fmt.Sprintf("%s_notes_%d.md", topic, index))
	return os.WriteFile(filename, []byte(sb.String()), 0644)
}

func generateLatexFile(index int) error {
	topic := randomWord(topics)

	var sb strings.Builder
	fmt.Fprintf(&sb, texHeader, "A Survey of "+title(topic))

	sections := 2 + rng.Intn(3)
	for s := 0; s < sections; s++ {
		name := randomWord(theorems)
		fmt.Fprintf(&sb, "\\section{%s}\n\n", title(randomWord(topics)))
		fmt.Fprintf(&sb, "\\begin{theorem}[%s]\nFor every bounded operator,\n\\begin{equation}\n%s\n\\end{equation}\n\\end{theorem}\n\n",
			name, randomEquation())
		fmt.Fprintf(&sb, "The proof reduces to \\[ %s \\] on a %s space.\n\n",
			randomEquation(), randomWord(spaces))
	}

	sb.WriteString("\\end{document}\n")

	filename := filepath.Join(*outputDir, "latex", fmt.Sprintf("%s_survey_%d.tex", topic, index))
	return os.WriteFile(filename, []byte(sb.String()), 0644)
}

func generateTextFile(index int) error {
	topic := randomWord(topics)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Lecture notes: %s\n\n", topic)

	entries := 4 + rng.Intn(4)
	for e := 0; e < entries; e++ {
		fmt.Fprintf(&sb, "Recall that the %s is defined as $%s$.\n",
			randomWord(terms), randomEquation())
		fmt.Fprintf(&sb, "By the %s theorem, $%s$ follows directly.\n\n",
			randomWord(theorems), randomEquation())
	}

	filename := filepath.Join(*outputDir, "notes", fmt.Sprintf("%s_lecture_%d.txt", topic, index))
	return os.WriteFile(filename, []byte(sb.String()), 0644)
}
