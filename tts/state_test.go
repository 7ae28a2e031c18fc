package tts

import (
	"testing"
)

// TestStateTypeString tests the String() method for StateType.
func TestStateTypeString(t *testing.T) {
	tests := []struct {
		state    StateType
		expected string
	}{
		{StateIdle, "idle"},
		{StatePreparing, "preparing"},
		{StateSpeaking, "speaking"},
		{StateHighlighting, "highlighting"},
		{StateType(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.state.String()
			if result != tt.expected {
				t.Errorf("StateType.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestReaderStateMachine tests the transitions of a reader session.
func TestReaderStateMachine(t *testing.T) {
	tests := []struct {
		name  string
		path  []StateType
		valid []bool
	}{
		{
			name:  "full session",
			path:  []StateType{StatePreparing, StateSpeaking, StateIdle},
			valid: []bool{true, true, true},
		},
		{
			name:  "failed preparation",
			path:  []StateType{StatePreparing, StateIdle},
			valid: []bool{true, true},
		},
		{
			name:  "cannot speak before preparing",
			path:  []StateType{StateSpeaking, StatePreparing},
			valid: []bool{false, true},
		},
		{
			name:  "cannot prepare while speaking",
			path:  []StateType{StatePreparing, StateSpeaking, StatePreparing},
			valid: []bool{true, true, false},
		},
		{
			name:  "reader never highlights",
			path:  []StateType{StateHighlighting},
			valid: []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewReaderStateMachine()
			for i, to := range tt.path {
				before := sm.Current()
				if got := sm.Transition(to); got != tt.valid[i] {
					t.Fatalf("step %d: %v -> %v = %v, want %v", i, before, to, got, tt.valid[i])
				}
				if !tt.valid[i] && sm.Current() != before {
					t.Fatalf("step %d: rejected transition changed state to %v", i, sm.Current())
				}
			}
		})
	}
}

// TestCursorStateMachine tests that the cursor alternates through idle.
func TestCursorStateMachine(t *testing.T) {
	sm := NewCursorStateMachine()

	if !sm.CanTransition(StateHighlighting) {
		t.Fatal("idle cursor should be able to highlight")
	}
	sm.Transition(StateHighlighting)
	if sm.CanTransition(StateHighlighting) {
		t.Error("a highlight must be removed before the next one")
	}
	if !sm.Transition(StateIdle) || sm.Current() != StateIdle {
		t.Error("highlight should clear back to idle")
	}
}

// TestStateMachineCallbacks tests enter and exit callbacks.
func TestStateMachineCallbacks(t *testing.T) {
	sm := NewReaderStateMachine()

	var events []string
	sm.OnExit(StateIdle, func() { events = append(events, "exit idle") })
	sm.OnEnter(StatePreparing, func() { events = append(events, "enter preparing") })
	sm.OnEnter(StateSpeaking, func() { events = append(events, "enter speaking") })

	sm.Transition(StatePreparing)
	sm.Transition(StateSpeaking)
	sm.Transition(StateSpeaking) // rejected, no callback

	want := []string{"exit idle", "enter preparing", "enter speaking"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}
