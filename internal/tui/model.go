// Package tui is a terminal browser for one saved run: summary records on
// the left, transcript lines on the right, with a player following the
// selection.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/forPelevin/vidbrief/internal/domain/timecode"
	"github.com/forPelevin/vidbrief/internal/domain/timeline"
	"github.com/forPelevin/vidbrief/internal/types"
)

type Focus int

const (
	FocusSummary Focus = iota
	FocusTranscript
)

const (
	keyQuit  = "q"
	keyCtrlC = "ctrl+c"
	keyTab   = "tab"
	keyDown  = "j"
	keyUp    = "k"
	keyEnter = "enter"
	keySpace = " "
)

// seekedMsg reports the outcome of a jump or pause toggle.
type seekedMsg struct {
	seconds float64
	paused  bool
	err     error
}

type Model struct {
	ctx    context.Context
	run    types.Run
	index  *timeline.Index
	nav    timeline.Navigator
	player timeline.Player

	focus     Focus
	record    int
	utterance int
	paused    bool
	position  float64
	status    string
	errText   string

	width  int
	height int
}

// New fails when the run's segments and records do not line up.
func New(ctx context.Context, run types.Run, player timeline.Player) (Model, error) {
	idx, err := timeline.NewIndex(run.Transcript, run.Segments, run.Summary)
	if err != nil {
		return Model{}, err
	}
	return Model{
		ctx:    ctx,
		run:    run,
		index:  idx,
		nav:    timeline.Navigator{Index: idx, Player: player},
		player: player,
		paused: true,
		status: fmt.Sprintf("%d points, %d lines", len(run.Summary), len(run.Transcript)),
	}, nil
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case seekedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.position = msg.seconds
		m.paused = msg.paused
		if m.paused {
			m.status = "paused at " + timecode.Encode(int64(msg.seconds*1000))
		} else {
			m.status = "playing from " + timecode.Encode(int64(msg.seconds*1000))
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyQuit, keyCtrlC:
		return m, tea.Quit

	case keyTab:
		if m.focus == FocusSummary {
			m.focus = FocusTranscript
		} else {
			m.focus = FocusSummary
		}
		return m, nil

	case keyDown, "down":
		m.move(1)
		return m, nil

	case keyUp, "up":
		m.move(-1)
		return m, nil

	case keyEnter:
		return m, m.jumpCmd()

	case keySpace:
		return m, m.toggleCmd()
	}
	return m, nil
}

// move shifts the focused selection and mirrors it in the other panel.
func (m *Model) move(delta int) {
	if m.focus == FocusSummary {
		n := len(m.run.Summary)
		if n == 0 {
			return
		}
		m.record = clamp(m.record+delta, 0, n-1)
		if u := m.index.FirstUtteranceOf(m.record); u >= 0 {
			m.utterance = u
		}
		return
	}
	n := len(m.run.Transcript)
	if n == 0 {
		return
	}
	m.utterance = clamp(m.utterance+delta, 0, n-1)
	if r := m.index.RecordOf(m.utterance); r >= 0 {
		m.record = r
	}
}

func (m Model) jumpCmd() tea.Cmd {
	ctx, nav, focus := m.ctx, m.nav, m.focus
	record, utterance := m.record, m.utterance
	return func() tea.Msg {
		var (
			sec float64
			err error
		)
		if focus == FocusSummary {
			sec, err = nav.JumpToRecord(ctx, record)
		} else {
			sec, err = nav.JumpToUtterance(ctx, utterance)
		}
		return seekedMsg{seconds: sec, err: err}
	}
}

func (m Model) toggleCmd() tea.Cmd {
	ctx, player, paused, pos := m.ctx, m.player, m.paused, m.position
	return func() tea.Msg {
		var err error
		if paused {
			err = player.Play(ctx)
		} else {
			err = player.Pause(ctx)
		}
		return seekedMsg{seconds: pos, paused: !paused, err: err}
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	var sections []string
	header := titleStyle.Render(m.run.Title)
	if m.run.Title == "" {
		header = titleStyle.Render("untitled")
	}
	header += dimStyle.Render(fmt.Sprintf("  %s  %s", timecode.EncodeDuration(m.run.Duration), m.run.Source))
	sections = append(sections, header, dimStyle.Render(m.status))
	sections = append(sections, dividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderPanels())
	sections = append(sections, dividerStyle.Render(strings.Repeat("─", m.width)))
	if m.errText != "" {
		sections = append(sections, errorStyle.Render(m.errText))
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) contentHeight() int {
	h := m.height - 6
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) renderPanels() string {
	leftW := m.width * 2 / 5
	rightW := m.width - leftW - 1
	h := m.contentHeight()

	var left []string
	for i, r := range m.run.Summary {
		left = append(left, m.line(i == m.record, m.focus == FocusSummary, r.Timestamp, r.Content, leftW))
	}
	var right []string
	for i, u := range m.run.Transcript {
		right = append(right, m.line(i == m.utterance, m.focus == FocusTranscript, timecode.Encode(u.StartTimeMs), u.Text, rightW))
	}

	leftCol := panel(fmt.Sprintf("SUMMARY (%d)", len(m.run.Summary)), m.focus == FocusSummary, left, m.record, leftW, h)
	rightCol := panel(fmt.Sprintf("TRANSCRIPT (%d)", len(m.run.Transcript)), m.focus == FocusTranscript, right, m.utterance, rightW, h)
	divider := dividerStyle.Render(strings.Repeat("│\n", h-1) + "│")
	return lipgloss.JoinHorizontal(lipgloss.Top, leftCol, divider, rightCol)
}

func (m Model) line(selected, focused bool, ts, text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	body := truncate(text, width-len(ts)-3)
	switch {
	case selected && focused:
		return selectedStyle.Render("▸ "+ts+" "+body)
	case selected:
		return "▸ " + timestampStyle.Render(ts) + " " + body
	default:
		return "  " + timestampStyle.Render(ts) + " " + body
	}
}

// panel renders a titled column scrolled so the selection stays visible.
func panel(title string, active bool, lines []string, selected, width, height int) string {
	style := panelTitleStyle
	if active {
		style = panelTitleActiveStyle
	}
	visible := height - 1
	start := 0
	if selected >= visible {
		start = selected - visible + 1
	}
	end := min(start+visible, len(lines))

	out := []string{style.Render(title)}
	if start < end {
		out = append(out, lines[start:end]...)
	}
	for len(out) < height {
		out = append(out, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(out, "\n"))
}

func (m Model) renderFooter() string {
	parts := []string{
		footerKeyStyle.Render("Tab") + footerDescStyle.Render(" Focus"),
		footerKeyStyle.Render("j/k") + footerDescStyle.Render(" Nav"),
		footerKeyStyle.Render("Enter") + footerDescStyle.Render(" Seek"),
	}
	if m.paused {
		parts = append(parts, footerKeyStyle.Render("Space")+footerDescStyle.Render(" Play"))
	} else {
		parts = append(parts, footerKeyStyle.Render("Space")+footerDescStyle.Render(" Pause"))
	}
	parts = append(parts, footerKeyStyle.Render("q")+footerDescStyle.Render(" Quit"))
	return strings.Join(parts, "  ")
}

func truncate(s string, width int) string {
	if width < 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Run blocks until the user quits.
func Run(ctx context.Context, m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
