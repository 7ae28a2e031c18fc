package tts_test

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/google/uuid"
)

type fakeSpeaker struct {
	err     error
	stopped bool
}

func (s *fakeSpeaker) Speak(_ context.Context, selection *dom.Range) (*tts.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &tts.Session{ID: uuid.New(), Selection: selection}, nil
}

func (s *fakeSpeaker) Stop() { s.stopped = true }

// TestSpeakCmd tests the messages produced by SpeakCmd.
func TestSpeakCmd(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
	}{
		{name: "started"},
		{name: "empty selection", err: tts.NewTTSError(tts.CodeSelectionEmpty, "nothing to read", nil)},
		{name: "service failure", err: tts.NewTTSError(tts.CodeService, "unavailable", nil), recoverable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSpeaker{err: tt.err}
			msg := tts.SpeakCmd(context.Background(), s, nil)()

			if tt.err == nil {
				started, ok := msg.(tts.SessionStartedMsg)
				if !ok {
					t.Fatalf("got %T, want SessionStartedMsg", msg)
				}
				if started.Session == nil || started.Session.ID == uuid.Nil {
					t.Error("session should carry an id")
				}
				return
			}

			errMsg, ok := msg.(tts.TTSErrorMsg)
			if !ok {
				t.Fatalf("got %T, want TTSErrorMsg", msg)
			}
			if !errors.Is(errMsg.Error, tt.err) {
				t.Errorf("error = %v", errMsg.Error)
			}
			if errMsg.Recoverable != tt.recoverable {
				t.Errorf("Recoverable = %v, want %v", errMsg.Recoverable, tt.recoverable)
			}
			if errMsg.Component != "reader" || errMsg.Action != "speak" {
				t.Errorf("component/action = %s/%s", errMsg.Component, errMsg.Action)
			}
		})
	}
}

// TestStopCmd tests that StopCmd stops the speaker and reports it.
func TestStopCmd(t *testing.T) {
	s := &fakeSpeaker{}
	msg := tts.StopCmd(s)()

	if !s.stopped {
		t.Error("speaker was not stopped")
	}
	if fin, ok := msg.(tts.SessionFinishedMsg); !ok || fin.Reason != "stopped" {
		t.Errorf("got %#v", msg)
	}
}

// TestLoadVoicesCmd tests voice listing success and failure.
func TestLoadVoicesCmd(t *testing.T) {
	voices := []tts.Voice{{Name: "en-US-Wavenet-D", Language: "en-US"}}
	msg := tts.LoadVoicesCmd(func(context.Context) ([]tts.Voice, error) { return voices, nil })()
	if loaded, ok := msg.(tts.VoicesLoadedMsg); !ok || len(loaded.Voices) != 1 {
		t.Errorf("got %#v", msg)
	}

	msg = tts.LoadVoicesCmd(func(context.Context) ([]tts.Voice, error) { return nil, tts.ErrAuth })()
	errMsg, ok := msg.(tts.TTSErrorMsg)
	if !ok {
		t.Fatalf("got %T", msg)
	}
	if !errMsg.Recoverable || errMsg.Action != "list_voices" {
		t.Errorf("got %+v", errMsg)
	}
}

// TestProgramListener tests forwarding highlight signals as messages.
func TestProgramListener(t *testing.T) {
	var got []tea.Msg
	l := tts.ProgramListener{Send: func(m tea.Msg) { got = append(got, m) }}

	l.HighlightStarted(tts.HighlightEvent{Index: 2, Total: 4, Text: "Third."})
	l.HighlightCleared()

	if len(got) != 2 {
		t.Fatalf("got %d messages", len(got))
	}
	hl, ok := got[0].(tts.HighlightMsg)
	if !ok || hl.Event.Index != 2 || hl.Timestamp.IsZero() {
		t.Errorf("first message = %#v", got[0])
	}
	if _, ok := got[1].(tts.HighlightClearedMsg); !ok {
		t.Errorf("second message = %#v", got[1])
	}

	// A listener without a program drops signals.
	tts.ProgramListener{}.HighlightStarted(tts.HighlightEvent{})
}
