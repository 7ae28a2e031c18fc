package tts

// StateType represents the state of the reader or of a highlight cursor.
type StateType int

const (
	// StateIdle indicates nothing is active.
	StateIdle StateType = iota
	// StatePreparing indicates sentences are being detected and synthesized.
	StatePreparing
	// StateSpeaking indicates audio is playing.
	StateSpeaking
	// StateHighlighting indicates the cursor owns a highlight in the DOM.
	StateHighlighting
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateSpeaking:
		return "speaking"
	case StateHighlighting:
		return "highlighting"
	default:
		return "unknown"
	}
}

// StateMachine validates state transitions against a table.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
	onExit      map[StateType]func()
}

// NewReaderStateMachine returns the machine a reader session moves through.
func NewReaderStateMachine() *StateMachine {
	return newStateMachine(map[StateType][]StateType{
		StateIdle:      {StatePreparing},
		StatePreparing: {StateSpeaking, StateIdle},
		StateSpeaking:  {StateIdle},
	})
}

// NewCursorStateMachine returns the machine of a highlight cursor. Moving
// between sentences always passes through idle.
func NewCursorStateMachine() *StateMachine {
	return newStateMachine(map[StateType][]StateType{
		StateIdle:         {StateHighlighting},
		StateHighlighting: {StateIdle},
	})
}

func newStateMachine(transitions map[StateType][]StateType) *StateMachine {
	return &StateMachine{
		current:     StateIdle,
		transitions: transitions,
		onEnter:     make(map[StateType]func()),
		onExit:      make(map[StateType]func()),
	}
}

// Transition attempts to move to the given state.
func (sm *StateMachine) Transition(to StateType) bool {
	valid := false
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	if exitFn, ok := sm.onExit[sm.current]; ok && exitFn != nil {
		exitFn()
	}
	sm.current = to
	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}
	return true
}

// CanTransition reports whether moving to the given state is allowed.
func (sm *StateMachine) CanTransition(to StateType) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state StateType, fn func()) {
	sm.onExit[state] = fn
}
