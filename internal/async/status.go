// Package async runs deferred analysis passes in the background and
// tracks their progress for status reporting.
package async

import (
	"sync"
	"time"
)

// AnalysisStage names the phase a catch-up pass is in. The values are
// wire strings served verbatim in status payloads.
type AnalysisStage string

const (
	// StageExtracting covers re-analyzing changed documents one by one.
	StageExtracting AnalysisStage = "extracting"
	// StagePruning covers dropping entries whose source files are gone.
	StagePruning AnalysisStage = "pruning"
	// StagePersisting covers flushing the refreshed index to disk.
	StagePersisting AnalysisStage = "persisting"
)

// AnalysisProgressSnapshot is one self-consistent reading of a pass.
type AnalysisProgressSnapshot struct {
	Status             string  `json:"status"`
	Stage              string  `json:"stage"`
	DocumentsTotal     int     `json:"documents_total"`
	DocumentsProcessed int     `json:"documents_processed"`
	EquationsIndexed   int     `json:"equations_indexed"`
	ProgressPct        float64 `json:"progress_pct"`
	ElapsedSeconds     int     `json:"elapsed_seconds"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// AnalysisProgress tracks one analysis pass. The reported status is
// derived rather than stored: "error" once a failure is recorded,
// "ready" once the pass finished, "analyzing" until then.
type AnalysisProgress struct {
	mu      sync.Mutex
	started time.Time
	stage   AnalysisStage
	done    bool
	failure string

	docsDone  int
	docsTotal int
	eqsDone   int
}

// NewAnalysisProgress returns a tracker starting at the extraction stage.
func NewAnalysisProgress() *AnalysisProgress {
	return &AnalysisProgress{started: time.Now(), stage: StageExtracting}
}

// SetStage moves the pass to s and resets the document total.
func (p *AnalysisProgress) SetStage(s AnalysisStage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = s
	p.docsTotal = total
}

// UpdateDocuments records how many documents the pass has handled.
func (p *AnalysisProgress) UpdateDocuments(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docsDone = processed
}

// UpdateEquations records how many equations are indexed so far.
func (p *AnalysisProgress) UpdateEquations(indexed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eqsDone = indexed
}

// SetError records the failure that ended the pass.
func (p *AnalysisProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failure = message
}

// SetReady marks the pass finished and the index usable.
func (p *AnalysisProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
}

// IsAnalyzing reports whether the pass is still going.
func (p *AnalysisProgress) IsAnalyzing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.done && p.failure == ""
}

// Snapshot reads the whole tracker under one lock hold, so the fields
// of the result are consistent with each other.
func (p *AnalysisProgress) Snapshot() AnalysisProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := AnalysisProgressSnapshot{
		Status:             "analyzing",
		Stage:              string(p.stage),
		DocumentsTotal:     p.docsTotal,
		DocumentsProcessed: p.docsDone,
		EquationsIndexed:   p.eqsDone,
		ElapsedSeconds:     int(time.Since(p.started).Seconds()),
		ErrorMessage:       p.failure,
	}
	if p.docsTotal > 0 {
		snap.ProgressPct = 100 * float64(p.docsDone) / float64(p.docsTotal)
	}
	switch {
	case p.failure != "":
		snap.Status = "error"
	case p.done:
		snap.Status = "ready"
	}
	return snap
}
