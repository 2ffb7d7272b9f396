// Package profiling wraps the runtime CPU, heap, and execution trace
// profilers behind a single start/stop session.
package profiling

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options names the output files for each profile. Empty paths leave
// that profile off.
type Options struct {
	// CPUPath receives a CPU profile covering the whole session.
	CPUPath string

	// HeapPath receives a heap snapshot taken at Stop.
	HeapPath string

	// TracePath receives an execution trace covering the whole session.
	TracePath string
}

func (o Options) enabled() bool {
	return o.CPUPath != "" || o.HeapPath != "" || o.TracePath != ""
}

// Session is a running set of profilers. Stop must be called to flush
// the profile files.
type Session struct {
	heapPath string
	stops    []func() error
}

// Start begins the profiles named in opts. A nil session with no error
// means nothing was requested.
func Start(opts Options) (*Session, error) {
	if !opts.enabled() {
		return nil, nil
	}

	s := &Session{heapPath: opts.HeapPath}

	if opts.CPUPath != "" {
		out, err := beginProfile(opts.CPUPath, "cpu profile", pprof.StartCPUProfile)
		if err != nil {
			return nil, err
		}
		s.stops = append(s.stops, func() error {
			pprof.StopCPUProfile()
			return out.Close()
		})
	}

	if opts.TracePath != "" {
		out, err := beginProfile(opts.TracePath, "trace", trace.Start)
		if err != nil {
			s.unwind()
			return nil, err
		}
		s.stops = append(s.stops, func() error {
			trace.Stop()
			return out.Close()
		})
	}

	return s, nil
}

// beginProfile creates the output file and hands it to the collector,
// closing the file again if the collector refuses to start.
func beginProfile(path, kind string, begin func(io.Writer) error) (*os.File, error) {
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", kind, err)
	}
	if err := begin(out); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("start %s: %w", kind, err)
	}
	return out, nil
}

// Stop ends the running profiles and writes the heap snapshot if one
// was requested. Safe on a nil session.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}

	var err error
	for i := len(s.stops) - 1; i >= 0; i-- {
		err = errors.Join(err, s.stops[i]())
	}
	s.stops = nil

	if s.heapPath != "" {
		err = errors.Join(err, writeHeap(s.heapPath))
		s.heapPath = ""
	}
	return err
}

// unwind stops whatever Start managed to begin before failing.
func (s *Session) unwind() {
	for i := len(s.stops) - 1; i >= 0; i-- {
		_ = s.stops[i]()
	}
	s.stops = nil
}

func writeHeap(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile file: %w", err)
	}
	defer func() { _ = out.Close() }()

	// Collect first so the snapshot shows live objects, not garbage.
	runtime.GC()

	if err := pprof.WriteHeapProfile(out); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}
