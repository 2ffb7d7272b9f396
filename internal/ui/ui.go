// Package ui renders analysis progress, either as a live terminal
// dashboard or as plain line output for pipes and CI.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage identifies a phase of the analysis pipeline.
type Stage int

// Pipeline phases in execution order. StageComplete is terminal.
const (
	StageExtracting Stage = iota
	StageConcepts
	StageGraph
	StageSimilarity
	StagePersisting
	StageComplete
)

var stageNames = [...]string{
	StageExtracting: "Extracting",
	StageConcepts:   "Concepts",
	StageGraph:      "Graph",
	StageSimilarity: "Similarity",
	StagePersisting: "Persisting",
	StageComplete:   "Complete",
}

// stageTags are the bracketed tags plain output prefixes lines with.
var stageTags = [...]string{
	StageExtracting: "EXTRACT",
	StageConcepts:   "CONCEPT",
	StageGraph:      "GRAPH",
	StageSimilarity: "SIMIL",
	StagePersisting: "SAVE",
	StageComplete:   "DONE",
}

// String names the stage for display.
func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Tag returns the short marker used in plain text output.
func (s Stage) Tag() string {
	if s >= 0 && int(s) < len(stageTags) {
		return stageTags[s]
	}
	return "STAGE"
}

// ProgressEvent reports pipeline position to a renderer.
type ProgressEvent struct {
	Stage          Stage
	Current, Total int

	// Doc names the document being analyzed. Note, when set, takes
	// precedence over it in plain output.
	Doc  string
	Note string
}

// ErrorEvent reports a per-document failure.
type ErrorEvent struct {
	File string
	Err  error

	// Warn marks documents that were skipped or only partially
	// analyzed rather than failed outright.
	Warn bool
}

// StageTimings breaks the total wall time down by pipeline phase.
type StageTimings struct {
	Extract, Concepts, Graph, Similarity, Persist time.Duration
}

// CompletionStats summarizes a finished analysis run.
type CompletionStats struct {
	Equations, Concepts int
	Errors, Warnings    int
	Duration            time.Duration
	Stages              StageTimings
}

// Renderer displays analysis progress. Implementations decide how much
// of the event stream to surface; all of them must tolerate events
// arriving from multiple goroutines.
type Renderer interface {
	Start(ctx context.Context) error
	Advance(ev ProgressEvent)
	AddError(ev ErrorEvent)
	Complete(final CompletionStats)
	Stop() error
}

// Config selects and parameterizes a renderer.
type Config struct {
	Output io.Writer

	ForcePlain bool
	NoColor    bool

	Spinner    string
	ProjectDir string
}

// Option modifies a Config.
type Option func(*Config)

// WithForcePlain forces plain line output even on a terminal.
func WithForcePlain(on bool) Option {
	return func(c *Config) { c.ForcePlain = on }
}

// WithNoColor disables colored output in the dashboard.
func WithNoColor(on bool) Option {
	return func(c *Config) { c.NoColor = on }
}

// WithSpinner picks the dashboard spinner ("dots", "line", "minidot",
// "jump", "points").
func WithSpinner(name string) Option {
	return func(c *Config) { c.Spinner = name }
}

// WithProjectDir shows the project path in the dashboard header.
func WithProjectDir(path string) Option {
	return func(c *Config) { c.ProjectDir = path }
}

// NewConfig builds a Config writing to out, with options applied.
func NewConfig(out io.Writer, opts ...Option) Config {
	cfg := Config{Output: out, Spinner: "dots"}
	for _, apply := range opts {
		apply(&cfg)
	}
	return cfg
}

// NewRenderer picks the renderer for the environment: the live
// dashboard on interactive terminals, plain line output for pipes, CI,
// and --no-tui.
func NewRenderer(cfg Config) Renderer {
	if !cfg.ForcePlain && !inCI() && isTerminal(cfg.Output) {
		if dash, err := NewDashboardRenderer(cfg); err == nil {
			return dash
		}
	}
	return NewTextRenderer(cfg)
}

// isTerminal reports whether out writes to an interactive terminal.
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok || f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ciEnvVars mark continuous integration environments. Every major CI
// system sets at least one of these.
var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}

// inCI reports whether the process appears to run under CI.
func inCI() bool {
	for _, name := range ciEnvVars {
		if _, ok := os.LookupEnv(name); ok {
			return true
		}
	}
	return false
}

// NoColorEnv honors the NO_COLOR convention (https://no-color.org).
func NoColorEnv() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}
