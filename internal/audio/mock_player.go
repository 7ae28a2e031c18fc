package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
)

// MockPlayer implements tts.AudioPlayer without producing sound. It plays
// for the decoded duration of the audio, scaled by a speed factor, so the
// highlight timing can be observed in tests and dry runs.
type MockPlayer struct {
	mu       sync.Mutex
	current  *mockPlayback
	speed    float64
	failWith error

	OnPlay func(*tts.SynthesisResult)

	playCount atomic.Int64
	stopCount atomic.Int64
}

type mockPlayback struct {
	stop   chan struct{}
	once   sync.Once
	onDone func(error)
}

func (pb *mockPlayback) finish(err error) {
	pb.once.Do(func() {
		close(pb.stop)
		if pb.onDone != nil {
			pb.onDone(err)
		}
	})
}

// NewMockPlayer creates a mock player. A speed of 0 finishes every
// playback immediately; 1 runs in real time.
func NewMockPlayer(speed float64) *MockPlayer {
	return &MockPlayer{speed: speed}
}

// SetFailure makes subsequent Play calls fail with err.
func (m *MockPlayer) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Play simulates playback.
func (m *MockPlayer) Play(ctx context.Context, result *tts.SynthesisResult, onStart func(), onDone func(error)) error {
	m.mu.Lock()
	if m.failWith != nil {
		err := m.failWith
		m.mu.Unlock()
		return err
	}
	if result == nil || len(result.Audio) == 0 {
		m.mu.Unlock()
		return ErrEmptyAudio
	}

	var length time.Duration
	if pcm, err := Decode(result); err == nil {
		length = time.Duration(float64(pcm.Duration()) * m.speed)
	}

	prev := m.current
	pb := &mockPlayback{stop: make(chan struct{}), onDone: onDone}
	m.current = pb
	hook := m.OnPlay
	m.mu.Unlock()

	if prev != nil {
		prev.finish(ErrStopped)
	}
	m.playCount.Add(1)
	if hook != nil {
		hook(result)
	}
	if onStart != nil {
		onStart()
	}

	go func() {
		timer := time.NewTimer(length)
		defer timer.Stop()
		select {
		case <-timer.C:
			m.release(pb, nil)
		case <-ctx.Done():
			m.release(pb, ctx.Err())
		case <-pb.stop:
		}
	}()
	return nil
}

func (m *MockPlayer) release(pb *mockPlayback, err error) {
	m.mu.Lock()
	if m.current == pb {
		m.current = nil
	}
	m.mu.Unlock()
	pb.finish(err)
}

// Stop halts the simulated playback.
func (m *MockPlayer) Stop() error {
	m.mu.Lock()
	pb := m.current
	m.mu.Unlock()
	if pb == nil {
		return nil
	}
	m.stopCount.Add(1)
	m.release(pb, ErrStopped)
	return nil
}

// Playing reports whether a playback is in progress.
func (m *MockPlayer) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// PlayCount returns the number of successful Play calls.
func (m *MockPlayer) PlayCount() int64 {
	return m.playCount.Load()
}

// StopCount returns the number of Stop calls that interrupted a playback.
func (m *MockPlayer) StopCount() int64 {
	return m.stopCount.Load()
}

// IsStopped reports whether err is the result of Stop.
func IsStopped(err error) bool {
	return errors.Is(err, ErrStopped)
}
