package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

const ellipsis = "…"

var (
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#5C5C5C", Dark: "#A8A8A8"}).
			Background(lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"})

	speakingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	pausedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ECFD65"))
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	counterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// statusView is what the status bar shows.
type statusView struct {
	state   tts.StateType
	paused  bool
	spinner string
	index   int
	total   int
	mode    tts.HighlightMode
	current string
	source  string
	err     error
}

// indicator returns the state icon and label.
func (s statusView) indicator() string {
	switch {
	case s.err != nil:
		return errorStyle.Render("✗ error")
	case s.state == tts.StatePreparing:
		return speakingStyle.Render(s.spinner + "preparing")
	case s.state == tts.StateSpeaking && s.paused:
		return pausedStyle.Render("⏸ paused")
	case s.state == tts.StateSpeaking:
		return speakingStyle.Render("▶ speaking")
	default:
		return idleStyle.Render("■ idle")
	}
}

func (s statusView) counter() string {
	if s.state != tts.StateSpeaking || s.total == 0 {
		return ""
	}
	if s.mode == tts.ModeFullSelection {
		return counterStyle.Render(" selection")
	}
	if s.index < 0 {
		return counterStyle.Render(fmt.Sprintf(" -/%d", s.total))
	}
	return counterStyle.Render(fmt.Sprintf(" %d/%d", s.index+1, s.total))
}

// render draws the bar at width columns.
func (s statusView) render(width int) string {
	left := " " + s.indicator() + s.counter() + " "
	help := helpStyle.Render(" space speak/stop • p pause • q quit ")

	middle := s.source
	if s.err != nil {
		middle = s.err.Error()
	} else if s.current != "" {
		middle = s.current
	}
	middle = strings.Join(strings.Fields(middle), " ")

	room := width - lipgloss.Width(left) - lipgloss.Width(help)
	if room < 0 {
		help = ""
		room = width - lipgloss.Width(left)
	}
	if room < 0 {
		room = 0
	}
	middle = truncate.StringWithTail(middle, uint(room), ellipsis) //nolint:gosec
	if pad := room - runewidth.StringWidth(middle); pad > 0 {
		middle += strings.Repeat(" ", pad)
	}

	return statusBarStyle.Render(left + middle + help)
}
