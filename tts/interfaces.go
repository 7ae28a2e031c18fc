package tts

import (
	"context"

	"github.com/dgnsrekt/readaloud/dom"
)

// LocalEngine is the platform speech engine. It speaks plain text and
// reports progress through events.
type LocalEngine interface {
	// Speak starts speaking text. It returns once speech has been started;
	// handler receives the engine events until a terminal one.
	Speak(ctx context.Context, text string, opts SpeakOptions, handler func(EngineEvent)) error

	// Stop interrupts the current utterance.
	Stop() error

	// Pause suspends the current utterance.
	Pause() error

	// Resume continues a paused utterance.
	Resume() error

	// Voices lists the voices the engine can use.
	Voices() []Voice
}

// Synthesizer is the remote synthesis service.
type Synthesizer interface {
	// Synthesize renders markup to audio, returning mark timings when the
	// voice supports them.
	Synthesize(ctx context.Context, markup string, voice VoiceConfig) (*SynthesisResult, error)

	// SupportsMarkers reports whether the named voice honours SSML marks.
	SupportsMarkers(voiceName string) bool
}

// AudioPlayer plays synthesized audio.
type AudioPlayer interface {
	// Play starts playback. onStart, when non-nil, is called once audio is
	// flowing and before onDone. onDone is called exactly once when
	// playback finishes or is stopped.
	Play(ctx context.Context, result *SynthesisResult, onStart func(), onDone func(error)) error

	// Stop halts playback.
	Stop() error
}

// Highlighter is the cursor the scheduler drives.
type Highlighter interface {
	AdvanceTo(index int)
	HighlightWhole(r *dom.Range)
	Clear()
	State() HighlightState
}

// HighlightListener receives highlight signals for presentation.
type HighlightListener interface {
	HighlightStarted(ev HighlightEvent)
	HighlightCleared()
}

// NopListener ignores all highlight signals.
type NopListener struct{}

func (NopListener) HighlightStarted(HighlightEvent) {}
func (NopListener) HighlightCleared()               {}

// SpeakOptions controls local speech.
type SpeakOptions struct {
	Rate      float64
	Pitch     float64
	Volume    float64
	VoiceName string
}

// EventType identifies a local engine event.
type EventType int

const (
	EventStart EventType = iota
	EventEnd
	EventError
	EventInterrupted
	EventCancelled
	EventPause
	EventResume
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	case EventInterrupted:
		return "interrupted"
	case EventCancelled:
		return "cancelled"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Terminal reports whether the event ends an utterance.
func (e EventType) Terminal() bool {
	switch e {
	case EventEnd, EventError, EventInterrupted, EventCancelled:
		return true
	}
	return false
}

// EngineEvent is emitted by a LocalEngine.
type EngineEvent struct {
	Type EventType
	Err  error
}

// Voice describes a voice offered by an engine.
type Voice struct {
	Name     string
	Language string
	Gender   string
	Quality  string
	IsGoogle bool
}

// AudioEncoding is the container of synthesized audio.
type AudioEncoding string

const (
	EncodingLinear16 AudioEncoding = "LINEAR16"
	EncodingMP3      AudioEncoding = "MP3"
)

// VoiceConfig selects and tunes the remote voice.
type VoiceConfig struct {
	LanguageCode    string
	Name            string
	SpeakingRate    float64
	Pitch           float64
	VolumeGainDB    float64
	Encoding        AudioEncoding
	SampleRateHertz int
}

// SynthesisResult is the normalized remote response.
type SynthesisResult struct {
	Audio      []byte
	Encoding   AudioEncoding
	SampleRate int
	Timings    []TimingEntry
	Characters int  // Billable characters of the request
	Cached     bool // Served from the local result cache
}
