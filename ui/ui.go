// Package ui provides the terminal front end of the reader: the selection
// with the spoken sentence highlighted, and a status bar.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/tts"
)

const (
	statusBarHeight = 1
	defaultWidth    = 80
	maxWidth        = 120
)

// Pauser is implemented by speakers that can suspend speech.
type Pauser interface {
	Pause() error
	Resume() error
}

// NewProgram returns a new Tea program reading selection through speaker.
func NewProgram(cfg Config, selection *dom.Range, speaker tts.Speaker) *tea.Program {
	log.Debug("starting readaloud ui", "source", cfg.Source, "auto", cfg.AutoSpeak)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, selection, speaker), opts...)
}

type pauseMsg struct {
	paused bool
	err    error
}

type model struct {
	cfg       Config
	ctx       context.Context
	speaker   tts.Speaker
	selection *dom.Range
	text      string

	state     tts.StateType
	paused    bool
	session   *tts.Session
	sentences []tts.Sentence
	mode      tts.HighlightMode
	index     int
	active    bool
	current   string
	err       error

	width    int
	height   int
	ready    bool
	viewport viewport.Model
	spinner  spinner.Model
	style    lipgloss.Style
}

func newModel(cfg Config, selection *dom.Range, speaker tts.Speaker) model {
	text := ""
	if selection.Valid() {
		text = selection.String()
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(speakingStyle))

	state := tts.StateIdle
	if cfg.AutoSpeak {
		state = tts.StatePreparing
	}

	return model{
		cfg:       cfg,
		ctx:       context.Background(),
		speaker:   speaker,
		selection: selection,
		text:      text,
		state:     state,
		index:     -1,
		spinner:   sp,
		style: lipgloss.NewStyle().
			Foreground(lipgloss.Color(cfg.HighlightForeground)).
			Background(lipgloss.Color(cfg.HighlightBackground)),
	}
}

func (m model) Init() tea.Cmd {
	if m.cfg.AutoSpeak {
		return tea.Batch(tts.SpeakCmd(m.ctx, m.speaker, m.selection), m.spinner.Tick)
	}
	return nil
}

func (m *model) speak() tea.Cmd {
	m.state = tts.StatePreparing
	m.session = nil
	m.err = nil
	m.paused = false
	return tea.Batch(tts.SpeakCmd(m.ctx, m.speaker, m.selection), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := msg.Height - statusBarHeight
		if h < 1 {
			h = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.speaker.Stop()
			return m, tea.Quit

		case " ", "enter":
			if m.state == tts.StateIdle {
				return m, m.speak()
			}
			return m, tts.StopCmd(m.speaker)

		case "s":
			if m.state != tts.StateIdle {
				return m, tts.StopCmd(m.speaker)
			}
			return m, nil

		case "p":
			if p, ok := m.speaker.(Pauser); ok && m.state == tts.StateSpeaking {
				return m, togglePause(p, m.paused)
			}
			return m, nil
		}

	case tts.SessionStartedMsg:
		m.session = msg.Session
		m.sentences = msg.Session.Sentences
		m.mode = msg.Session.Mode
		if msg.Session.Text != "" {
			m.text = msg.Session.Text
		}
		if m.state == tts.StatePreparing {
			m.state = tts.StateSpeaking
		}
		m.refresh()

	case tts.HighlightMsg:
		// Highlights can arrive before the session start message.
		if m.session != nil && msg.Event.SessionID != m.session.ID {
			return m, nil
		}
		m.state = tts.StateSpeaking
		m.active = true
		m.index = msg.Event.Index
		m.mode = msg.Event.Mode
		m.current = msg.Event.Text
		m.refresh()
		m.follow()

	case tts.HighlightClearedMsg:
		m.active = false
		m.index = -1
		m.current = ""
		m.refresh()

	case tts.SessionFinishedMsg:
		m.state = tts.StateIdle
		m.paused = false
		m.active = false
		m.index = -1
		m.current = ""
		if msg.Err != nil {
			m.err = msg.Err
		}
		m.refresh()
		if m.cfg.QuitOnComplete && msg.Reason == "complete" {
			return m, tea.Quit
		}

	case tts.TTSErrorMsg:
		log.Warn("speak failed", "component", msg.Component, "action", msg.Action, "error", msg.Error)
		m.state = tts.StateIdle
		m.err = msg.Error
		m.refresh()

	case pauseMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.paused = msg.paused
		}

	case spinner.TickMsg:
		if m.state != tts.StatePreparing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func togglePause(p Pauser, paused bool) tea.Cmd {
	return func() tea.Msg {
		if paused {
			return pauseMsg{paused: false, err: p.Resume()}
		}
		if err := p.Pause(); err != nil {
			return pauseMsg{paused: false, err: err}
		}
		return pauseMsg{paused: true}
	}
}

func (m model) wrapWidth() int {
	w := int(m.cfg.Width) //nolint:gosec
	if w == 0 {
		w = m.width
		if w > maxWidth {
			w = maxWidth
		}
	}
	if w <= 0 {
		w = defaultWidth
	}
	return w
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	ps := pieces(m.text, m.sentences, m.index, m.mode, m.active)
	m.viewport.SetContent(renderText(ps, m.style, m.wrapWidth()))
}

// follow scrolls the highlighted sentence into view.
func (m *model) follow() {
	if !m.ready || m.index < 0 || m.index >= len(m.sentences) {
		return
	}
	line := lineOf(m.text, m.sentences[m.index].Start, m.wrapWidth())
	if line < m.viewport.YOffset || line >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(line - m.viewport.Height/3)
	}
}

func (m model) View() string {
	if !m.ready {
		return ""
	}
	return m.viewport.View() + "\n" + m.status().render(m.width)
}

func (m model) status() statusView {
	total := len(m.sentences)
	if m.session == nil {
		total = 0
	}
	return statusView{
		state:   m.state,
		paused:  m.paused,
		spinner: m.spinner.View(),
		index:   m.index,
		total:   total,
		mode:    m.mode,
		current: m.current,
		source:  m.cfg.Source,
		err:     m.err,
	}
}
