package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileWithContent asserts the profile file exists and is non-empty.
func fileWithContent(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

// burnCPU gives the profilers something to record.
func burnCPU() {
	sum := 0
	for i := 0; i < 1_000_000; i++ {
		sum += i
	}
	_ = sum
}

func TestStart_NothingRequested(t *testing.T) {
	s, err := Start(Options{})

	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, s.Stop())
}

func TestSession_CPUProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.prof")

	s, err := Start(Options{CPUPath: path})
	require.NoError(t, err)
	require.NotNil(t, s)

	burnCPU()
	require.NoError(t, s.Stop())

	fileWithContent(t, path)
}

func TestSession_HeapSnapshotAtStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")

	s, err := Start(Options{HeapPath: path})
	require.NoError(t, err)

	// Nothing written until Stop takes the snapshot
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, s.Stop())
	fileWithContent(t, path)
}

func TestSession_Trace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.out")

	s, err := Start(Options{TracePath: path})
	require.NoError(t, err)

	burnCPU()
	require.NoError(t, s.Stop())

	fileWithContent(t, path)
}

func TestSession_AllProfilesTogether(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CPUPath:   filepath.Join(dir, "cpu.prof"),
		HeapPath:  filepath.Join(dir, "heap.prof"),
		TracePath: filepath.Join(dir, "trace.out"),
	}

	s, err := Start(opts)
	require.NoError(t, err)

	burnCPU()
	require.NoError(t, s.Stop())

	fileWithContent(t, opts.CPUPath)
	fileWithContent(t, opts.HeapPath)
	fileWithContent(t, opts.TracePath)
}

func TestStart_UncreatableCPUPath(t *testing.T) {
	_, err := Start(Options{CPUPath: filepath.Join(t.TempDir(), "missing", "cpu.prof")})
	assert.Error(t, err)
}

func TestStart_UncreatableTracePathUnwindsCPU(t *testing.T) {
	dir := t.TempDir()
	cpuPath := filepath.Join(dir, "cpu.prof")

	// Given: a trace path that cannot be created after CPU started
	_, err := Start(Options{
		CPUPath:   cpuPath,
		TracePath: filepath.Join(dir, "missing", "trace.out"),
	})
	require.Error(t, err)

	// Then: the CPU profiler was released, so a fresh session can start
	s, err := Start(Options{CPUPath: cpuPath})
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}
