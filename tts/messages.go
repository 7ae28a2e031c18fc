package tts

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/dom"
)

// Messages for Bubble Tea communication between the reader and the UI.

// Speaker is the part of the reader the UI drives.
type Speaker interface {
	Speak(ctx context.Context, selection *dom.Range) (*Session, error)
	Stop()
}

// SessionStartedMsg indicates speech has started for a session.
type SessionStartedMsg struct {
	Session *Session
}

// SessionFinishedMsg indicates a session ended.
type SessionFinishedMsg struct {
	Reason string // complete, stopped, error
	Err    error
}

// HighlightMsg indicates the cursor applied a highlight.
type HighlightMsg struct {
	Event     HighlightEvent
	Timestamp time.Time
}

// HighlightClearedMsg indicates the cursor removed its highlight.
type HighlightClearedMsg struct{}

// TTSErrorMsg indicates an error occurred in the pipeline.
type TTSErrorMsg struct {
	Error       error
	Recoverable bool
	Component   string // Which component had the error (detector, synthesizer, player)
	Action      string // What action was being performed
}

// VoicesLoadedMsg carries the voices offered by an engine.
type VoicesLoadedMsg struct {
	Voices []Voice
}

// SpeakCmd creates a command that starts speaking a selection.
func SpeakCmd(ctx context.Context, s Speaker, selection *dom.Range) tea.Cmd {
	return func() tea.Msg {
		session, err := s.Speak(ctx, selection)
		if err != nil {
			return TTSErrorMsg{
				Error:       err,
				Recoverable: IsSynthesisFailure(err),
				Component:   "reader",
				Action:      "speak",
			}
		}
		return SessionStartedMsg{Session: session}
	}
}

// StopCmd creates a command that stops the current session.
func StopCmd(s Speaker) tea.Cmd {
	return func() tea.Msg {
		s.Stop()
		return SessionFinishedMsg{Reason: "stopped"}
	}
}

// LoadVoicesCmd creates a command that lists voices.
func LoadVoicesCmd(list func(ctx context.Context) ([]Voice, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		voices, err := list(ctx)
		if err != nil {
			return TTSErrorMsg{
				Error:       err,
				Recoverable: true,
				Component:   "synthesizer",
				Action:      "list_voices",
			}
		}
		return VoicesLoadedMsg{Voices: voices}
	}
}

// ProgramListener forwards highlight signals to a running Bubble Tea program.
type ProgramListener struct {
	Send func(tea.Msg)
}

// HighlightStarted implements HighlightListener.
func (l ProgramListener) HighlightStarted(ev HighlightEvent) {
	if l.Send != nil {
		l.Send(HighlightMsg{Event: ev, Timestamp: time.Now()})
	}
}

// HighlightCleared implements HighlightListener.
func (l ProgramListener) HighlightCleared() {
	if l.Send != nil {
		l.Send(HighlightClearedMsg{})
	}
}
