package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelAt builds a model whose tracker sits at stage with the given
// progress.
func modelAt(stage Stage, current, total int, file string) *analysisModel {
	tracker := NewTracker()
	tracker.BeginStage(stage, total)
	if current > 0 || file != "" {
		tracker.Update(current, file)
	}
	return newAnalysisModel(tracker, "")
}

func TestNewDashboardRenderer_RequiresTTY(t *testing.T) {
	// Given: output that is not a terminal
	cfg := NewConfig(&bytes.Buffer{})

	// When: creating the dashboard renderer
	r, err := NewDashboardRenderer(cfg)

	// Then: construction fails so NewRenderer can fall back to plain
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestDashboardRenderer_StopBeforeStart(t *testing.T) {
	r := &DashboardRenderer{done: make(chan struct{})}
	assert.NoError(t, r.Stop())
}

func TestAnalysisModel_ViewShowsPipelineStages(t *testing.T) {
	view := modelAt(StageExtracting, 0, 100, "").View()

	for _, label := range []string{"Extract", "Concepts", "Graph", "Similarity"} {
		assert.Contains(t, view, label)
	}
}

func TestAnalysisModel_ViewShowsCountsAndFile(t *testing.T) {
	view := modelAt(StageExtracting, 50, 100, "papers/spectral.tex").View()

	assert.Contains(t, view, "50")
	assert.Contains(t, view, "100")
	assert.Contains(t, view, "spectral.tex")
}

func TestAnalysisModel_ZeroTotalShowsPreparing(t *testing.T) {
	view := modelAt(StageConcepts, 0, 0, "").View()

	assert.Contains(t, view, "Preparing...")
}

func TestAnalysisModel_StatusBarCountsErrors(t *testing.T) {
	model := modelAt(StageExtracting, 0, 100, "")
	model.tracker.AddError(ErrorEvent{File: "broken.tex", Err: assert.AnError})
	model.tracker.AddError(ErrorEvent{File: "odd.tex", Err: assert.AnError, Warn: true})

	view := model.View()

	assert.Contains(t, view, "1 errors")
	assert.Contains(t, view, "1 warnings")
}

func TestAnalysisModel_CompletionView(t *testing.T) {
	model := modelAt(StageComplete, 0, 0, "")
	model.finished = true
	model.stats = CompletionStats{Equations: 100, Concepts: 40}

	view := model.View()

	assert.Contains(t, view, "Analysis Complete")
	assert.Contains(t, view, "100")
	assert.Contains(t, view, "40")
}

func TestAnalysisModel_QuitKeys(t *testing.T) {
	model := modelAt(StageExtracting, 0, 0, "")

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Equal(t, "Analysis cancelled.\n", model.View())
}

func TestAnalysisModel_ResizeClampsProgressBar(t *testing.T) {
	model := modelAt(StageExtracting, 0, 0, "")

	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 100, model.bar.Width)

	model.Update(tea.WindowSizeMsg{Width: 24, Height: 40})
	assert.Equal(t, 20, model.bar.Width)
}

func TestAnalysisModel_DoneMsgQuits(t *testing.T) {
	model := modelAt(StageExtracting, 0, 0, "")

	_, cmd := model.Update(doneMsg{stats: CompletionStats{Equations: 7}})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, model.finished)
	assert.Equal(t, 7, model.stats.Equations)
}

func TestSpinnerByName(t *testing.T) {
	assert.Equal(t, spinner.Line.Frames, spinnerByName("line").Frames)
	assert.Equal(t, spinner.MiniDot.Frames, spinnerByName("minidot").Frames)
	assert.Equal(t, spinner.Dot.Frames, spinnerByName("dots").Frames)
	// Unknown styles fall back to dots.
	assert.Equal(t, spinner.Dot.Frames, spinnerByName("disco").Frames)
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{59700 * time.Millisecond, "1m"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 15*time.Second, "2m 15s"},
		{time.Hour + 3*time.Minute, "1h 3m"},
		{90 * time.Minute, "1h 30m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, humanDuration(tt.d), "humanDuration(%v)", tt.d)
	}
}

func TestShortenPath(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		limit int
		want  string
	}{
		{"short path unchanged", "papers/main.tex", 50, "papers/main.tex"},
		{"empty path", "", 50, ""},
		{"no separator", "aaaaaaaaaaaaaaaaaaaa.tex", 10, "...aaa.tex"},
		{
			"deep directory trimmed from the left",
			"papers/chapters/very/deeply/nested/directory/file.tex",
			30,
			"...y/nested/directory/file.tex",
		},
		{"exact fit keeps bare marker", "abc/def/filename.tex", 16, ".../filename.tex"},
		{"oversized filename trimmed", "dir/averyverylongfilename.tex", 12, "...ename.tex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shortenPath(tt.path, tt.limit))
		})
	}
}
