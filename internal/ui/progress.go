package ui

import (
	"sync"
	"time"
)

// speedSampleInterval spaces out throughput samples so short bursts of
// small documents don't swamp the meter.
const speedSampleInterval = 500 * time.Millisecond

// etaBlendFactor weights new ETA estimates against the previous one.
// 0.3 keeps the display steady when per-document analysis times vary.
const etaBlendFactor = 0.3

// speedMeter tracks documents-per-second throughput for the live view.
// Callers hold the tracker's lock.
type speedMeter struct {
	lastCount int
	lastCalc  time.Time
	current   float64
	avg       float64
	peak      float64
	samples   int
	spark     *Trend
}

func (m *speedMeter) reset(now time.Time) {
	m.lastCount = 0
	m.lastCalc = now
	m.current = 0
	m.avg = 0
	m.peak = 0
	m.samples = 0
	m.spark.Clear()
}

// observe folds a progress count into the meter, sampling at most once
// per speedSampleInterval.
func (m *speedMeter) observe(count int, now time.Time) {
	elapsed := now.Sub(m.lastCalc)
	if elapsed < speedSampleInterval {
		return
	}

	if delta := count - m.lastCount; delta > 0 {
		rate := float64(delta) / elapsed.Seconds()
		m.current = rate

		m.samples++
		if m.samples == 1 {
			m.avg = rate
		} else {
			m.avg = 0.2*rate + 0.8*m.avg
		}
		if rate > m.peak {
			m.peak = rate
		}
		m.spark.Add(rate)
	}

	m.lastCount = count
	m.lastCalc = now
}

func (m *speedMeter) stats() Throughput {
	return Throughput{Current: m.current, Avg: m.avg, Peak: m.peak}
}

// Throughput is a rate snapshot in documents per second.
type Throughput struct {
	Current float64
	Avg     float64
	Peak    float64
}

// Snapshot captures analysis progress for one render frame.
type Snapshot struct {
	Stage    Stage
	Done     int
	Goal     int
	Fraction float64
	ETA      time.Duration
	Doc      string
	Errs     int
	Warns    int
	Speed    Throughput
}

// Tracker follows an analysis run through its stages. Safe for
// concurrent use; the analysis pipeline updates it while the UI reads.
type Tracker struct {
	rw    sync.RWMutex
	phase Stage
	done  int
	goal  int
	doc   string

	stageStart time.Time

	errs  int
	warns int

	prevETA time.Duration
	speed   speedMeter
}

// NewTracker creates a tracker positioned at the extraction stage.
func NewTracker() *Tracker {
	now := time.Now()
	t := &Tracker{
		phase:      StageExtracting,
		stageStart: now,
	}
	t.speed.spark = NewTrend(60)
	t.speed.lastCalc = now
	return t
}

// BeginStage moves to a new stage, resetting per-stage counters and the
// throughput meter.
func (t *Tracker) BeginStage(stage Stage, total int) {
	t.rw.Lock()
	defer t.rw.Unlock()

	t.phase = stage
	t.goal = total
	t.done = 0
	t.doc = ""
	t.stageStart = time.Now()
	t.prevETA = 0
	t.speed.reset(t.stageStart)
}

// Update records progress within the current stage. An empty doc keeps
// the previously shown document name.
func (t *Tracker) Update(n int, doc string) {
	t.rw.Lock()
	defer t.rw.Unlock()

	t.done = n
	if doc != "" {
		t.doc = doc
	}
	t.speed.observe(n, time.Now())
}

// AddError records an error or warning for the summary panel.
func (t *Tracker) AddError(event ErrorEvent) {
	t.rw.Lock()
	defer t.rw.Unlock()

	if event.Warn {
		t.warns++
	} else {
		t.errs++
	}
}

// Stats returns a full snapshot for one render frame.
// Takes the write lock: smoothing updates prevETA.
func (t *Tracker) Stats() Snapshot {
	t.rw.Lock()
	defer t.rw.Unlock()

	return Snapshot{
		Stage:    t.phase,
		Done:     t.done,
		Goal:     t.goal,
		Fraction: clampFraction(t.done, t.goal),
		ETA:      t.projectETA(),
		Doc:      t.doc,
		Errs:     t.errs,
		Warns:    t.warns,
		Speed:    t.speed.stats(),
	}
}

func clampFraction(done, goal int) float64 {
	if goal == 0 {
		return 0.0
	}
	frac := float64(done) / float64(goal)
	if frac > 1 {
		return 1.0
	}
	return frac
}

// projectETA extrapolates remaining stage time from throughput so far,
// blended exponentially. Callers hold the write lock.
func (t *Tracker) projectETA() time.Duration {
	if t.done == 0 || t.goal == 0 {
		return 0
	}

	frac := float64(t.done) / float64(t.goal)
	if frac <= 0 || frac >= 1 {
		return 0
	}

	elapsed := time.Since(t.stageStart)
	remaining := time.Duration(float64(elapsed)/frac) - elapsed
	if remaining < 0 {
		return 0
	}

	if t.prevETA == 0 {
		t.prevETA = remaining
		return remaining
	}

	blended := etaBlendFactor*float64(remaining) + (1-etaBlendFactor)*float64(t.prevETA)
	t.prevETA = time.Duration(blended)
	return t.prevETA
}

// RenderTrend renders the throughput strip. A width of zero or less
// uses the meter's full sample window.
func (t *Tracker) RenderTrend(width int) string {
	t.rw.RLock()
	defer t.rw.RUnlock()

	if t.speed.spark == nil {
		return ""
	}
	return t.speed.spark.Render(width)
}

// Speed returns the current throughput numbers.
func (t *Tracker) Speed() Throughput {
	t.rw.RLock()
	defer t.rw.RUnlock()

	return t.speed.stats()
}
