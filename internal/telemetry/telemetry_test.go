package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Ring
// =============================================================================

func TestRing_KeepsInsertionOrder(t *testing.T) {
	ring := NewRing[string](4)

	ring.Add(`\alpha`)
	ring.Add(`\beta`)
	ring.Add(`\gamma`)

	assert.Equal(t, 3, ring.Len())
	assert.Equal(t, []string{`\alpha`, `\beta`, `\gamma`}, ring.Items())
}

func TestRing_EvictsOldestWhenFull(t *testing.T) {
	ring := NewRing[int](3)

	for n := 1; n <= 5; n++ {
		ring.Add(n)
	}

	assert.Equal(t, 3, ring.Len())
	assert.Equal(t, []int{3, 4, 5}, ring.Items())
}

func TestRing_EmptyItemsNonNil(t *testing.T) {
	ring := NewRing[string](8)

	items := ring.Items()
	require.NotNil(t, items)
	assert.Empty(t, items)
	assert.Equal(t, 0, ring.Len())
}

func TestRing_ResetEmpties(t *testing.T) {
	ring := NewRing[string](8)
	ring.Add("x=y")
	ring.Add("y=z")

	ring.Reset()

	assert.Equal(t, 0, ring.Len())
	assert.Empty(t, ring.Items())

	ring.Add("z=w")
	assert.Equal(t, []string{"z=w"}, ring.Items())
}

func TestRing_DefaultCapacity(t *testing.T) {
	ring := NewRing[int](0)

	for n := 0; n < 150; n++ {
		ring.Add(n)
	}

	assert.Equal(t, 100, ring.Len())
	assert.Equal(t, 50, ring.Items()[0])
}

// =============================================================================
// Latency Histogram
// =============================================================================

func TestBucketFor_Boundaries(t *testing.T) {
	cases := map[Bucket][]time.Duration{
		BucketP10:   {0, 9 * time.Millisecond},
		BucketP50:   {10 * time.Millisecond, 49 * time.Millisecond},
		BucketP100:  {50 * time.Millisecond, 99 * time.Millisecond},
		BucketP500:  {100 * time.Millisecond, 499 * time.Millisecond},
		BucketP1000: {500 * time.Millisecond, 3 * time.Second},
	}

	for want, durations := range cases {
		for _, d := range durations {
			assert.Equal(t, want, BucketFor(d), "latency %s", d)
		}
	}
}

// =============================================================================
// Term Splitting
// =============================================================================

func TestSplitTerms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain words", "laplace transform", []string{"laplace", "transform"}},
		{"folds case", "FourierSeries", []string{"fourierseries"}},
		{"ignores padding", "  spaces  around  ", []string{"spaces", "around"}},
		{"empty", "", nil},
		{"below minimum length", "ab", nil},
		{"at minimum length", "abc", []string{"abc"}},
		{"strips dollar delimiters", "$e = mc^2$", []string{"mc^2"}},
		{"keeps command backslash", `\sum_{i=1}^n i`, []string{`\sum_{i=1}^n`}},
		{"trailing punctuation", "riemann hypothesis.", []string{"riemann", "hypothesis"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitTerms(tt.in))
		})
	}
}

// =============================================================================
// Events and Reports
// =============================================================================

func TestEvent_Missed(t *testing.T) {
	assert.True(t, Event{Results: 0}.Missed())
	assert.False(t, Event{Results: 12}.Missed())
}

func TestReport_MissPercent(t *testing.T) {
	empty := &Report{}
	assert.Zero(t, empty.MissPercent())

	rep := &Report{Total: 40, MissCount: 10}
	assert.InDelta(t, 25.0, rep.MissPercent(), 0.001)
}

func TestReport_RepeatSummary(t *testing.T) {
	assert.Equal(t, "no queries yet", (&Report{}).RepeatSummary())

	rep := &Report{
		Total:       200,
		ExactRate:   0.125,
		SimilarRate: 0.05,
		Unique:      150,
	}
	assert.Equal(t, "12.5% exact, 5.0% similar, 150 unique", rep.RepeatSummary())
}
