// Package sync drives the highlight cursor while audio plays, either by
// replaying server timepoints or by showing a single static highlight.
package sync

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scheduler replays session timings against the session's highlighter.
type Scheduler struct {
	// runMu serializes every call into the highlighter, so an advance
	// that passed its generation check finishes before Stop clears.
	runMu sync.Mutex

	mu         sync.Mutex
	clock      Clock
	logger     *log.Logger
	session    *tts.Session
	timers     []Timer
	pending    int
	generation uint64
	onAdvance  func(index int)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to schedule highlight advances.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithOnAdvance registers a callback run after every timed advance.
func WithOnAdvance(fn func(index int)) Option {
	return func(s *Scheduler) {
		s.onAdvance = fn
	}
}

// NewScheduler creates a scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  realClock{},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start stops any previous session and starts driving the highlighter of
// session. With timings, one advance is scheduled per sentence marker at
// its offset; without, the first sentence (or the whole selection in full
// selection mode) is highlighted once.
func (s *Scheduler) Start(session *tts.Session) {
	s.Stop()
	if session == nil || session.Highlighter == nil {
		return
	}

	s.mu.Lock()
	s.session = session
	gen := s.generation

	if session.Mode == tts.ModeFullSelection || !session.HasTimings() {
		s.mu.Unlock()
		s.startStatic(gen, session)
		return
	}

	for _, t := range session.Timings {
		if tts.IsSentinel(t.MarkerName) {
			continue
		}
		index, ok := session.Markers.Index(t.MarkerName)
		if !ok {
			s.logger.Warn("unknown marker in timings", "marker", t.MarkerName)
			continue
		}
		s.pending++
		s.timers = append(s.timers, s.clock.AfterFunc(t.Delay(), func() {
			s.fire(gen, index)
		}))
	}
	s.logger.Debug("timed replay scheduled", "session", session.ID, "timers", s.pending)
	s.mu.Unlock()
}

func (s *Scheduler) startStatic(gen uint64, session *tts.Session) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.current(gen) {
		return
	}

	s.logger.Debug("static highlight", "session", session.ID, "mode", session.Mode)
	if session.Mode == tts.ModeFullSelection {
		session.Highlighter.HighlightWhole(session.Selection)
		return
	}
	if len(session.Sentences) > 0 {
		session.Highlighter.AdvanceTo(0)
	}
}

// current reports whether gen is still the running session.
func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation && s.session != nil
}

func (s *Scheduler) fire(gen uint64, index int) {
	s.runMu.Lock()
	s.mu.Lock()
	if gen != s.generation || s.session == nil {
		s.mu.Unlock()
		s.runMu.Unlock()
		return
	}
	s.pending--
	h := s.session.Highlighter
	onAdvance := s.onAdvance
	s.mu.Unlock()

	h.AdvanceTo(index)
	s.runMu.Unlock()

	if onAdvance != nil {
		onAdvance(index)
	}
}

// Stop cancels all pending advances and clears the highlight. It may be
// called at any time, including when nothing was started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.generation++
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.pending = 0
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session != nil && session.Highlighter != nil {
		s.runMu.Lock()
		session.Highlighter.Clear()
		s.runMu.Unlock()
	}
}

// Pending returns the number of scheduled advances that have not run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Active reports whether a session is being driven.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}
