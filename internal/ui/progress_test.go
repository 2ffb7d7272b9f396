package ui

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracker_StartsAtExtraction(t *testing.T) {
	tr := NewTracker()

	stats := tr.Stats()
	assert.Equal(t, StageExtracting, stats.Stage)
	assert.Zero(t, stats.Done)
	assert.Zero(t, stats.Goal)
	assert.Zero(t, stats.Speed.Current)
}

func TestTracker_BeginStage_ResetsCounters(t *testing.T) {
	// Given: a tr partway through extraction
	tr := NewTracker()
	tr.BeginStage(StageExtracting, 40)
	tr.Update(25, "chapters/eigen.md")

	// When: moving to the concepts stage
	tr.BeginStage(StageConcepts, 120)

	// Then: position and document reset, the stage total carries
	stats := tr.Stats()
	assert.Equal(t, StageConcepts, stats.Stage)
	assert.Equal(t, 120, stats.Goal)
	assert.Zero(t, stats.Done)
	assert.Empty(t, stats.Doc)
}

func TestTracker_Update_KeepsLastDocumentName(t *testing.T) {
	tr := NewTracker()
	tr.BeginStage(StageExtracting, 10)

	tr.Update(3, "papers/spectral.tex")
	tr.Update(4, "")

	stats := tr.Stats()
	assert.Equal(t, 4, stats.Done)
	assert.Equal(t, "papers/spectral.tex", stats.Doc,
		"an empty update keeps showing the last document")
}

func TestTracker_Fraction(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    float64
	}{
		{"nothing to do", 0, 0, 0.0},
		{"not started", 0, 80, 0.0},
		{"partway", 20, 80, 0.25},
		{"finished", 80, 80, 1.0},
		{"overshoot clamps", 90, 80, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			tr.BeginStage(StageExtracting, tt.total)
			tr.Update(tt.current, "")

			assert.InDelta(t, tt.want, tr.Stats().Fraction, 0.001)
		})
	}
}

func TestTracker_SeparatesErrorsAndWarnings(t *testing.T) {
	tr := NewTracker()

	tr.AddError(ErrorEvent{File: "broken.tex", Err: assert.AnError})
	tr.AddError(ErrorEvent{File: "odd.md", Err: assert.AnError, Warn: true})
	tr.AddError(ErrorEvent{File: "worse.tex", Err: assert.AnError})

	stats := tr.Stats()
	assert.Equal(t, 2, stats.Errs)
	assert.Equal(t, 1, stats.Warns)
}

func TestTracker_ETA_UnknownWithoutProgress(t *testing.T) {
	tr := NewTracker()
	tr.BeginStage(StageExtracting, 100)

	assert.Equal(t, time.Duration(0), tr.Stats().ETA)
}

func TestTracker_ETA_ProjectsFromElapsed(t *testing.T) {
	// Given: half the stage done after a measurable delay
	tr := NewTracker()
	tr.BeginStage(StageExtracting, 100)
	time.Sleep(40 * time.Millisecond)
	tr.Update(50, "notes.md")

	// When: estimating
	eta := tr.Stats().ETA

	// Then: remaining time is in the order of the elapsed time
	assert.Greater(t, eta, time.Duration(0))
	assert.Less(t, eta, 400*time.Millisecond)
}

func TestTracker_ETA_SmoothsAcrossCalls(t *testing.T) {
	// Given: an ETA already established
	tr := NewTracker()
	tr.BeginStage(StageExtracting, 1000)
	time.Sleep(20 * time.Millisecond)
	tr.Update(500, "")
	first := tr.Stats().ETA
	require.Greater(t, first, time.Duration(0))

	// When: progress jumps far ahead an instant later
	tr.Update(999, "")
	second := tr.Stats().ETA

	// Then: the estimate moves, but is pulled toward the previous value
	assert.Less(t, second, first)
	assert.Greater(t, second, time.Duration(0))
}

func TestSpeedMeter_ObservesAfterInterval(t *testing.T) {
	m := &speedMeter{spark: NewTrend(10)}
	start := time.Now()
	m.lastCalc = start

	// Too soon: nothing sampled
	m.observe(10, start.Add(100*time.Millisecond))
	assert.Zero(t, m.current)

	// One second in: 10 documents become 10 docs/sec
	m.observe(10, start.Add(1*time.Second))
	assert.InDelta(t, 10.0, m.current, 0.001)
	assert.InDelta(t, 10.0, m.avg, 0.001)
	assert.InDelta(t, 10.0, m.peak, 0.001)

	// A faster second: peak moves, average is smoothed
	m.observe(40, start.Add(2*time.Second))
	assert.InDelta(t, 30.0, m.current, 0.001)
	assert.InDelta(t, 30.0, m.peak, 0.001)
	assert.InDelta(t, 0.2*30.0+0.8*10.0, m.avg, 0.001)
}

func TestSpeedMeter_ResetClearsEverything(t *testing.T) {
	m := &speedMeter{spark: NewTrend(10)}
	start := time.Now()
	m.lastCalc = start
	m.observe(25, start.Add(time.Second))
	require.Positive(t, m.current)

	m.reset(start)

	stats := m.stats()
	assert.Zero(t, stats.Current)
	assert.Zero(t, stats.Avg)
	assert.Zero(t, stats.Peak)
}

func TestTracker_BeginStage_ResetsSpeed(t *testing.T) {
	// Given: a tr with observed throughput
	tr := NewTracker()
	tr.BeginStage(StageExtracting, 100)
	tr.rw.Lock()
	tr.speed.observe(50, time.Now().Add(time.Second))
	tr.rw.Unlock()
	require.Positive(t, tr.Speed().Current)

	// When: the stage changes
	tr.BeginStage(StageConcepts, 100)

	// Then: the meter starts over
	stats := tr.Speed()
	assert.Zero(t, stats.Current)
	assert.Zero(t, stats.Peak)
}

func TestTracker_RenderTrend(t *testing.T) {
	tr := NewTracker()

	// A fresh tr renders an all-baseline strip at the asked width
	assert.Equal(t, strings.Repeat("▁", 8), tr.RenderTrend(8))
	assert.Len(t, []rune(tr.RenderTrend(0)), 60)
}

func TestTracker_ConcurrentUse(t *testing.T) {
	tr := NewTracker()
	tr.BeginStage(StageExtracting, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tr.Update(n, "notes.md")
			tr.AddError(ErrorEvent{File: "x.md", Err: assert.AnError, Warn: n%2 == 0})
			tr.Stats()
		}(i)
	}
	wg.Wait()

	stats := tr.Stats()
	assert.Equal(t, 100, stats.Errs+stats.Warns)
}

func TestTracker_StageWalk(t *testing.T) {
	tr := NewTracker()

	for _, stage := range []Stage{StageExtracting, StageConcepts, StageSimilarity, StagePersisting} {
		tr.BeginStage(stage, 10)
		tr.Update(10, "")
		assert.Equal(t, stage, tr.Stats().Stage)
	}

	tr.BeginStage(StageComplete, 0)
	assert.Equal(t, StageComplete, tr.Stats().Stage)
}
