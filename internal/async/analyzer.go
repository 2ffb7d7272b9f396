package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AnalyzeFunc does the actual analysis work. The progress tracker it
// receives is the one returned by Progress, so callers can poll it while
// the work runs.
type AnalyzeFunc func(ctx context.Context, progress *AnalysisProgress) error

// AnalyzerConfig configures the BackgroundAnalyzer.
type AnalyzerConfig struct {
	DataDir string
}

// BackgroundAnalyzer runs one document analysis pass in a goroutine.
// Start returns immediately; Wait or Stop block until the pass ends.
type BackgroundAnalyzer struct {
	cfg  AnalyzerConfig
	prog *AnalysisProgress

	// AnalyzeFunc is swapped out in tests. A nil func completes
	// immediately with a ready status.
	AnalyzeFunc AnalyzeFunc

	stop chan struct{}
	done chan struct{}

	mu       sync.Mutex
	running  bool
	stopping bool
	runErr   error
}

// NewBackgroundAnalyzer creates an analyzer that keeps its sentinel file
// under cfg.DataDir.
func NewBackgroundAnalyzer(cfg AnalyzerConfig) *BackgroundAnalyzer {
	return &BackgroundAnalyzer{
		cfg:  cfg,
		prog: NewAnalysisProgress(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Progress returns the progress tracker for this analyzer.
func (a *BackgroundAnalyzer) Progress() *AnalysisProgress {
	return a.prog
}

// IsRunning reports whether an analysis pass is in flight.
func (a *BackgroundAnalyzer) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Start launches the analysis pass. Only the first call takes effect;
// later calls while the pass runs are ignored.
func (a *BackgroundAnalyzer) Start(ctx context.Context) {
	a.mu.Lock()
	already := a.running
	a.running = true
	a.mu.Unlock()

	if already {
		return
	}
	go a.runPass(ctx)
}

func (a *BackgroundAnalyzer) setRunning(v bool) {
	a.mu.Lock()
	a.running = v
	a.mu.Unlock()
}

// fail records the error on both the progress tracker and the analyzer,
// so it surfaces through Snapshot as well as Wait.
func (a *BackgroundAnalyzer) fail(err error) {
	a.prog.SetError(err.Error())
	a.mu.Lock()
	a.runErr = err
	a.mu.Unlock()
}

// cancelWhenStopped cancels the run context once Stop fires.
func (a *BackgroundAnalyzer) cancelWhenStopped(ctx context.Context, cancel context.CancelFunc) {
	select {
	case <-a.stop:
		cancel()
	case <-ctx.Done():
	}
}

// markInFlight drops the sentinel file and returns its cleanup. A run
// that dies without cleaning up leaves the sentinel behind, which
// HasIncompleteAnalysis reports on the next startup.
func (a *BackgroundAnalyzer) markInFlight() (func(), error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	path := sentinelPath(a.cfg.DataDir)
	stamp := time.Now().Format(time.RFC3339)
	if err := os.WriteFile(path, []byte(stamp), 0o644); err != nil {
		return nil, err
	}
	return func() { _ = os.Remove(path) }, nil
}

func (a *BackgroundAnalyzer) runPass(ctx context.Context) {
	defer close(a.done)
	defer a.setRunning(false)

	// The pass stops on whichever comes first, parent cancellation or Stop.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.cancelWhenStopped(runCtx, cancel)

	cleanup, err := a.markInFlight()
	if err != nil {
		a.fail(err)
		return
	}
	defer cleanup()

	if a.AnalyzeFunc != nil {
		if err := a.AnalyzeFunc(runCtx, a.prog); err != nil {
			a.fail(err)
			return
		}
	}

	a.prog.SetReady()
}

// Stop cancels a running pass and waits for it to wind down. Calling it
// again, or with nothing running, is harmless.
func (a *BackgroundAnalyzer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	first := !a.stopping
	a.stopping = true
	a.mu.Unlock()

	if first {
		close(a.stop)
	}
	<-a.done
}

// Wait blocks until the pass completes and returns its error, if any.
func (a *BackgroundAnalyzer) Wait() error {
	<-a.done
	a.mu.Lock()
	err := a.runErr
	a.mu.Unlock()
	return err
}

func sentinelPath(dataDir string) string {
	return filepath.Join(dataDir, "analysis.lock")
}

// HasIncompleteAnalysis reports whether an earlier run left its sentinel
// behind, meaning it was interrupted before finishing.
func HasIncompleteAnalysis(dataDir string) bool {
	_, err := os.Stat(sentinelPath(dataDir))
	return err == nil
}
