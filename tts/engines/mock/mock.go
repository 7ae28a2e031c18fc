// Package mock provides deterministic speech engines for tests and dry
// runs: a local engine that pretends to speak and a synthesizer that
// returns silent audio with estimated mark timings.
package mock

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/ssml"
)

// WordsPerMinute is the speaking speed used to estimate durations.
const WordsPerMinute = 150

const sampleRate = 24000

// Duration estimates how long text takes to speak at rate.
func Duration(text string, rate float64) time.Duration {
	return wordsDuration(len(strings.Fields(text)), rate)
}

func wordsDuration(words int, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	seconds := float64(words) * 60 / WordsPerMinute / rate
	return time.Duration(seconds * float64(time.Second))
}

// Engine implements tts.LocalEngine without producing sound.
type Engine struct {
	mu        sync.Mutex
	delay     time.Duration // Fixed utterance length; 0 estimates from text
	failure   error
	spoken    []string
	callCount int
	cancel    chan struct{}
	paused    bool
}

// New creates a mock local engine.
func New() *Engine {
	return &Engine{}
}

// SetDelay fixes the simulated utterance length.
func (e *Engine) SetDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = d
}

// SetFailure makes Speak fail with err.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = err
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.SetFailure(nil)
}

// CallCount returns the number of Speak calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// Spoken returns the texts passed to Speak.
func (e *Engine) Spoken() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.spoken...)
}

// Speak pretends to speak text and reports start and end events.
func (e *Engine) Speak(ctx context.Context, text string, opts tts.SpeakOptions, handler func(tts.EngineEvent)) error {
	e.mu.Lock()
	e.callCount++
	if e.failure != nil {
		err := e.failure
		e.mu.Unlock()
		return err
	}
	if e.cancel != nil {
		close(e.cancel)
	}
	cancel := make(chan struct{})
	e.cancel = cancel
	e.paused = false
	e.spoken = append(e.spoken, text)
	length := e.delay
	if length == 0 {
		length = Duration(text, opts.Rate)
	}
	e.mu.Unlock()

	if handler == nil {
		handler = func(tts.EngineEvent) {}
	}
	handler(tts.EngineEvent{Type: tts.EventStart})

	go func() {
		timer := time.NewTimer(length)
		defer timer.Stop()
		select {
		case <-timer.C:
			e.mu.Lock()
			if e.cancel == cancel {
				e.cancel = nil
			}
			e.mu.Unlock()
			handler(tts.EngineEvent{Type: tts.EventEnd})
		case <-cancel:
			handler(tts.EngineEvent{Type: tts.EventInterrupted})
		case <-ctx.Done():
			handler(tts.EngineEvent{Type: tts.EventCancelled, Err: ctx.Err()})
		}
	}()
	return nil
}

// Stop interrupts the current utterance.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		close(e.cancel)
		e.cancel = nil
	}
	return nil
}

// Pause marks the utterance paused. The simulated clock keeps running.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	return nil
}

// Resume clears the paused flag.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	return nil
}

// Paused reports whether Pause was called since the last Speak or Resume.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Voices returns the mock voices.
func (e *Engine) Voices() []tts.Voice {
	return []tts.Voice{
		{Name: "Mock Voice 1", Language: "en-US", Gender: "neutral"},
		{Name: "Mock Voice 2", Language: "en-GB", Gender: "female"},
	}
}

// Synthesizer implements tts.Synthesizer with silent LINEAR16 audio. Mark
// offsets are estimated from the words spoken before each mark.
type Synthesizer struct {
	mu        sync.Mutex
	failure   error
	noMarkers map[string]bool
	calls     []string
}

// NewSynthesizer creates a mock synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{noMarkers: make(map[string]bool)}
}

// SetFailure makes Synthesize fail with err.
func (s *Synthesizer) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// DisableMarkers marks a voice as unable to honour SSML marks.
func (s *Synthesizer) DisableMarkers(voiceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noMarkers[voiceName] = true
}

// Calls returns the markup of every Synthesize call.
func (s *Synthesizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// SupportsMarkers implements tts.Synthesizer.
func (s *Synthesizer) SupportsMarkers(voiceName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.noMarkers[voiceName]
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, markup string, voice tts.VoiceConfig) (*tts.SynthesisResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, markup)
	failure := s.failure
	marks := !s.noMarkers[voice.Name]
	s.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(markup) == "" {
		return nil, tts.NewTTSError(tts.CodeInvalidInput, "markup is empty", tts.ErrEmptyMarkup)
	}

	timings, words, err := estimateTimings(markup, voice.SpeakingRate)
	if err != nil {
		return nil, tts.NewTTSError(tts.CodeService, "invalid markup", err)
	}
	if !marks {
		timings = nil
	}

	length := wordsDuration(words, voice.SpeakingRate)
	samples := make([]byte, int(length.Seconds()*sampleRate)*2)
	return &tts.SynthesisResult{
		Audio:      audio.EncodeWAV(samples, sampleRate, 1),
		Encoding:   tts.EncodingLinear16,
		SampleRate: sampleRate,
		Timings:    timings,
		Characters: ssml.Characters(markup),
	}, nil
}

// estimateTimings walks the markup and places each mark at the time the
// words before it would take to speak.
func estimateTimings(markup string, rate float64) ([]tts.TimingEntry, int, error) {
	dec := xml.NewDecoder(strings.NewReader(markup))
	var (
		timings []tts.TimingEntry
		words   int
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "mark" {
				continue
			}
			for _, a := range t.Attr {
				if a.Name.Local == "name" {
					timings = append(timings, tts.TimingEntry{
						MarkerName: a.Value,
						Offset:     wordsDuration(words, rate).Seconds(),
					})
				}
			}
		case xml.CharData:
			words += len(strings.Fields(string(t)))
		}
	}
	return timings, words, nil
}
