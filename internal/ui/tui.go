package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DashboardRenderer drives the live bubbletea dashboard on interactive
// terminals.
type DashboardRenderer struct {
	mu sync.Mutex

	cfg     Config
	prog    *tea.Program
	model   *analysisModel
	tracker *Tracker
	active  bool
	done    chan struct{}
}

// tuiShutdownGrace bounds how long Stop waits for the dashboard
// goroutine after Quit, so an unresponsive terminal cannot hang
// Ctrl+C.
const tuiShutdownGrace = 2 * time.Second

// NewDashboardRenderer creates the dashboard renderer. It fails when
// the output is not a terminal; NewRenderer falls back to plain output
// then.
func NewDashboardRenderer(cfg Config) (*DashboardRenderer, error) {
	if !isTerminal(cfg.Output) {
		return nil, fmt.Errorf("output is not a terminal")
	}

	r := &DashboardRenderer{cfg: cfg, done: make(chan struct{}), tracker: NewTracker()}
	r.model = newAnalysisModel(r.tracker, cfg.ProjectDir)
	r.model.spin.Spinner = spinnerByName(cfg.Spinner)
	r.model.theme = NewTheme(cfg.NoColor || NoColorEnv())
	return r, nil
}

// spinnerByName maps a config style name to a bubbles spinner,
// defaulting to dots.
func spinnerByName(style string) spinner.Spinner {
	switch style {
	case "line":
		return spinner.Line
	case "minidot":
		return spinner.MiniDot
	case "jump":
		return spinner.Jump
	case "points":
		return spinner.Points
	default:
		return spinner.Dot
	}
}

// Start launches the dashboard goroutine. The dashboard exits when
// the context is canceled, the run completes, or the user quits.
// Calling Start twice is a no-op.
func (r *DashboardRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if out, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(out))
	}

	r.prog = tea.NewProgram(r.model, opts...)
	r.active = true

	go func() {
		defer close(r.done)
		_, _ = r.prog.Run()
	}()
	return nil
}

// send forwards a message once the dashboard loop exists. Callers hold
// r.mu.
func (r *DashboardRenderer) send(msg tea.Msg) {
	if r.prog != nil {
		r.prog.Send(msg)
	}
}

// Advance feeds the tracker and wakes the dashboard.
func (r *DashboardRenderer) Advance(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Stage != r.tracker.Stats().Stage {
		r.tracker.BeginStage(ev.Stage, ev.Total)
	}
	r.tracker.Update(ev.Current, ev.Doc)
	r.send(progressUpdateMsg(ev))
}

// AddError records the event for the status bar and error summary.
func (r *DashboardRenderer) AddError(ev ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(ev)
	r.send(errorMsg(ev))
}

// Complete switches the dashboard to the summary view.
func (r *DashboardRenderer) Complete(final CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.BeginStage(StageComplete, 0)
	r.send(doneMsg{stats: final})
}

// Stop quits the dashboard and waits briefly for its goroutine.
func (r *DashboardRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.prog == nil {
		return nil
	}
	r.prog.Quit()

	select {
	case <-r.done:
	case <-time.After(tuiShutdownGrace):
	}
	return nil
}

// Messages delivered to the bubbletea event loop.
type (
	progressUpdateMsg ProgressEvent
	errorMsg          ErrorEvent
	redrawMsg         time.Time
)

// doneMsg carries the final stats into the event loop.
type doneMsg struct{ stats CompletionStats }

// redrawEvery is the repaint cadence. The tracker advances between
// bubbletea messages, so the view refreshes on a timer rather than
// only on events.
const redrawEvery = 100 * time.Millisecond

// analysisModel renders the dashboard. All analysis state lives in the
// shared tracker; the model only holds presentation state.
type analysisModel struct {
	tracker *Tracker
	theme   Theme
	project string

	termWidth int
	cancelled bool
	finished  bool
	stats     CompletionStats

	spin spinner.Model
	bar  progress.Model
}

func newAnalysisModel(tracker *Tracker, projectDir string) *analysisModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	bar := progress.New(progress.WithSolidFill(ColorAccent),
		progress.WithWidth(50), progress.WithoutPercentage())

	return &analysisModel{
		tracker: tracker, spin: sp, bar: bar,
		theme: NewTheme(false), termWidth: 80, project: projectDir,
	}
}

// Init starts the spinner tick and the repaint timer.
func (m *analysisModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, redrawTick())
}

// redrawTick schedules the next repaint.
func redrawTick() tea.Cmd {
	return tea.Tick(redrawEvery, func(t time.Time) tea.Msg {
		return redrawMsg(t)
	})
}

// Update reacts to key presses, resizes, and pipeline messages.
func (m *analysisModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s := msg.String(); s == "ctrl+c" || s == "q" {
			m.cancelled = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.bar.Width = max(msg.Width-20, 20)

	case doneMsg:
		m.finished = true
		m.stats = msg.stats
		return m, tea.Quit

	case redrawMsg:
		return m, redrawTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progressUpdateMsg, errorMsg:
		// State already lives in the tracker; the message only
		// forces a redraw.
	}

	return m, nil
}

// View draws either the live dashboard or the final summary.
func (m *analysisModel) View() string {
	if m.cancelled {
		return "Analysis cancelled.\n"
	}
	if m.finished {
		return m.finalView()
	}

	snap := m.tracker.Stats()
	contentWidth := max(m.termWidth-4, 40)
	rule := m.rule(contentWidth)

	sections := []string{
		m.stageHeader(snap.Stage),
		rule,
		m.progressRow(snap),
		m.speedRow(snap),
		rule,
		m.trendRow(contentWidth),
	}
	if snap.Doc != "" {
		sections = append(sections, rule, m.docRow(snap.Doc, contentWidth))
	}

	title := "Mathdex Analyzer"
	if m.project != "" {
		title = fmt.Sprintf("Mathdex Analyzer • %s", m.project)
	}

	return m.boxed(title, strings.Join(sections, "\n"), contentWidth) +
		"\n" + m.statusBar(snap)
}

// pipelineStages are the phases shown in the dashboard header, in
// order. Persisting is brief and folds into the completion view.
var pipelineStages = []struct {
	stage Stage
	label string
}{
	{StageExtracting, "Extract"},
	{StageConcepts, "Concepts"},
	{StageGraph, "Graph"},
	{StageSimilarity, "Similarity"},
}

func (m *analysisModel) stageHeader(current Stage) string {
	marks := make([]string, 0, len(pipelineStages))
	for _, ps := range pipelineStages {
		marks = append(marks, m.stageIndicator(ps.stage, ps.label, current))
	}
	return strings.Join(marks, m.theme.Dim.Render(" → "))
}

// stageIndicator renders one header entry: a filled dot for finished
// stages, the spinner for the active one, a hollow dot for pending.
func (m *analysisModel) stageIndicator(stage Stage, label string, current Stage) string {
	switch {
	case stage < current:
		return m.theme.Success.Render("● " + label)
	case stage == current:
		return m.theme.Active.Render(m.spin.View() + " " + label)
	default:
		return m.theme.Dim.Render("○ " + label)
	}
}

func (m *analysisModel) progressRow(s Snapshot) string {
	if s.Goal == 0 {
		return fmt.Sprintf("%s %s...\n%s", m.spin.View(), s.Stage, m.theme.Dim.Render("Preparing..."))
	}

	pb := m.bar.ViewAs(s.Fraction)
	pct := m.theme.Active.Render(fmt.Sprintf("%3.0f%%", s.Fraction*100))
	count := m.theme.Label.Render(fmt.Sprintf("%d / %d items", s.Done, s.Goal))

	return fmt.Sprintf("%s  %s\n%s", pb, pct, count)
}

func (m *analysisModel) speedRow(s Snapshot) string {
	speed := fmt.Sprintf("Speed: %.0f/s", s.Speed.Current)
	if s.Speed.Avg > 0 {
		speed += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", s.Speed.Avg, s.Speed.Peak)
	}

	cells := []string{m.theme.Speed.Render(speed)}
	if s.ETA > 0 {
		cells = append(cells, m.theme.Label.Render("ETA: "+humanDuration(s.ETA)))
	}
	return strings.Join(cells, m.theme.Dim.Render("  •  "))
}

func (m *analysisModel) trendRow(width int) string {
	spark := m.tracker.RenderTrend(max(width-10, 10))
	return m.theme.Trend.Render(spark) + " " + m.theme.Dim.Render("throughput ─")
}

func (m *analysisModel) docRow(file string, width int) string {
	return m.theme.Dim.Render(shortenPath(file, width-2))
}

func (m *analysisModel) rule(width int) string {
	return m.theme.Border.Render(strings.Repeat("─", width))
}

// boxed draws content inside a rounded box with the title above.
func (m *analysisModel) boxed(title, content string, width int) string {
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).Padding(0, 1).Width(width)

	return lipgloss.JoinVertical(lipgloss.Left, m.theme.Header.Render(title), box.Render(content))
}

func (m *analysisModel) statusBar(s Snapshot) string {
	hint := m.theme.Dim.Render("q to quit")

	var badges []string
	if s.Errs > 0 {
		badges = append(badges, m.theme.Error.Render(fmt.Sprintf("✗ %d errors", s.Errs)))
	}
	if s.Warns > 0 {
		badges = append(badges, m.theme.Warning.Render(fmt.Sprintf("⚠ %d warnings", s.Warns)))
	}
	if len(badges) == 0 {
		return hint
	}

	sep := m.theme.Dim.Render("  │  ")
	return strings.Join(badges, sep) + sep + hint
}

// finalView draws the completion summary panel.
func (m *analysisModel) finalView() string {
	contentWidth := max(m.termWidth-4, 40)

	row := func(label, value string) string {
		return m.theme.Label.Render(fmt.Sprintf("%-10s", label)) + " " + value
	}

	rows := []string{
		m.theme.Success.Render("✓ Analysis Complete"),
		"",
		row("Equations:", m.theme.Active.Render(fmt.Sprintf("%d", m.stats.Equations))),
		row("Concepts:", m.theme.Active.Render(fmt.Sprintf("%d", m.stats.Concepts))),
		row("Duration:", m.theme.Active.Render(humanDuration(m.stats.Duration))),
	}

	if speed := m.tracker.Speed(); speed.Avg > 0 {
		rows = append(rows, row("Avg Speed:", m.theme.Speed.Render(fmt.Sprintf("%.0f items/sec", speed.Avg))))
	}

	if m.stats.Errors+m.stats.Warnings > 0 {
		rows = append(rows, "")
		if n := m.stats.Errors; n > 0 {
			rows = append(rows, m.theme.Error.Render(fmt.Sprintf("✗ %d errors", n)))
		}
		if n := m.stats.Warnings; n > 0 {
			rows = append(rows, m.theme.Warning.Render(fmt.Sprintf("⚠ %d warnings", n)))
		}
	}

	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccent)).Padding(1, 2).Width(contentWidth)

	return box.Render(strings.Join(rows, "\n")) + "\n"
}

// humanDuration renders an ETA-style duration ("45s", "2m 15s",
// "1h 3m").
func humanDuration(dur time.Duration) string {
	dur = dur.Round(time.Second)
	h, rem := dur/time.Hour, dur%time.Hour
	mnt, s := rem/time.Minute, rem%time.Minute/time.Second

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, mnt)
	case mnt > 0 && s == 0:
		return fmt.Sprintf("%dm", mnt)
	case mnt > 0:
		return fmt.Sprintf("%dm %ds", mnt, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// shortenPath trims path to at most limit characters by dropping
// leading directories. The filename always survives.
func shortenPath(path string, limit int) string {
	if len(path) <= limit {
		return path
	}
	if limit < 4 {
		return "..."
	}

	// tail keeps the last n characters behind an ellipsis.
	tail := func(s string, n int) string { return "..." + s[len(s)-n:] }

	i := strings.LastIndex(path, "/")
	if i < 0 {
		return tail(path, limit-3)
	}

	file := path[i+1:]
	if len(file)+4 > limit {
		return tail(file, limit-3)
	}

	keep := limit - len(file) - 4
	if keep == 0 {
		return ".../" + file
	}
	return tail(path[:i], keep) + "/" + file
}

var _ Renderer = (*DashboardRenderer)(nil)
