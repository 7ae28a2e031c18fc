// Package reader implements the speak action: it turns a selection into a
// playback session, synthesizes it remotely or speaks it locally, and keeps
// the highlight cursor in step until the session ends.
package reader

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/highlight"
	"github.com/dgnsrekt/readaloud/tts/sentence"
	"github.com/dgnsrekt/readaloud/tts/ssml"
	ttssync "github.com/dgnsrekt/readaloud/tts/sync"
)

// Reasons reported when a session finishes.
const (
	ReasonComplete = "complete"
	ReasonStopped  = "stopped"
	ReasonError    = "error"
)

const (
	engineRemote = "remote"
	engineLocal  = "local"
)

// Reader runs one playback session at a time.
type Reader struct {
	mu      sync.Mutex
	cfg     tts.Config
	machine *tts.StateMachine
	current *run

	detector  *sentence.Detector
	synth     tts.Synthesizer
	local     tts.LocalEngine
	player    tts.AudioPlayer
	scheduler *ttssync.Scheduler
	schedMu   sync.Mutex
	listener  tts.HighlightListener
	logger    *log.Logger
	onFinish  func(tts.SessionFinishedMsg)

	clock ttssync.Clock
}

// run is the live part of a session.
type run struct {
	session *tts.Session
	cursor  *highlight.Cursor
	cancel  context.CancelFunc
	once    sync.Once
	engine  string
}

// Option configures a Reader.
type Option func(*Reader)

// WithSynthesizer sets the remote synthesizer.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(r *Reader) {
		r.synth = s
	}
}

// WithLocalEngine sets the local speech engine.
func WithLocalEngine(e tts.LocalEngine) Option {
	return func(r *Reader) {
		r.local = e
	}
}

// WithPlayer sets the player for synthesized audio.
func WithPlayer(p tts.AudioPlayer) Option {
	return func(r *Reader) {
		r.player = p
	}
}

// WithListener sets the highlight listener.
func WithListener(l tts.HighlightListener) Option {
	return func(r *Reader) {
		r.listener = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Reader) {
		r.logger = l
	}
}

// WithDetector replaces the sentence detector.
func WithDetector(d *sentence.Detector) Option {
	return func(r *Reader) {
		r.detector = d
	}
}

// WithClock sets the clock of the playback scheduler.
func WithClock(c ttssync.Clock) Option {
	return func(r *Reader) {
		r.clock = c
	}
}

// WithOnFinish registers a callback run once per session when it ends.
func WithOnFinish(fn func(tts.SessionFinishedMsg)) Option {
	return func(r *Reader) {
		r.onFinish = fn
	}
}

// New creates a reader. At least one engine is required, and a player when
// a synthesizer is set.
func New(cfg tts.Config, opts ...Option) (*Reader, error) {
	r := &Reader{
		cfg:      cfg,
		machine:  tts.NewReaderStateMachine(),
		listener: tts.NopListener{},
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.synth == nil && r.local == nil {
		return nil, tts.ErrNoEngine
	}
	if r.synth != nil && r.player == nil {
		return nil, errors.New("a player is required for synthesized audio")
	}
	if r.detector == nil {
		r.detector = sentence.NewDetector(sentence.WithLogger(r.logger))
	}

	sopts := []ttssync.Option{ttssync.WithLogger(r.logger)}
	if r.clock != nil {
		sopts = append(sopts, ttssync.WithClock(r.clock))
	}
	r.scheduler = ttssync.NewScheduler(sopts...)
	return r, nil
}

// Speak cancels any running session and starts speaking selection. The
// session lives until its audio ends, Stop is called, ctx is done, or the
// next Speak. Remote failures fall back to the local engine once when
// configured; otherwise they are returned and no highlight stays active.
func (r *Reader) Speak(ctx context.Context, selection *dom.Range) (*tts.Session, error) {
	r.Stop()

	text := ""
	if selection.Valid() {
		text = selection.String()
	}
	if strings.TrimSpace(text) == "" {
		return nil, tts.NewTTSError(tts.CodeSelectionEmpty, "selection has no text", nil)
	}

	r.mu.Lock()
	cfg := r.cfg
	r.machine.Transition(tts.StatePreparing)
	r.mu.Unlock()

	mode := tts.ModeSentence
	if !cfg.SentenceMode {
		mode = tts.ModeFullSelection
	}
	sentences := r.detector.Detect(selection)
	session := tts.NewSession(selection, sentences, mode)
	session.Text = text

	runCtx, cancel := context.WithCancel(ctx)
	rn := &run{session: session, cancel: cancel}
	if cfg.HighlightingEnabled {
		rn.cursor = highlight.NewCursor(selection, sentences, mode,
			highlight.WithListener(r.listener),
			highlight.WithLogger(r.logger),
			highlight.WithClass(cfg.HighlightClass),
			highlight.WithSessionID(session.ID))
		session.Highlighter = rn.cursor
	}

	r.mu.Lock()
	r.current = rn
	r.mu.Unlock()

	r.logger.Debug("speak", "session", session.ID, "sentences", len(sentences), "mode", mode)

	var err error
	if cfg.Engine == tts.EngineLocal || r.synth == nil {
		err = r.speakLocal(runCtx, rn, cfg)
	} else {
		err = r.speakRemote(runCtx, rn, cfg)
		if err != nil && tts.IsSynthesisFailure(err) && cfg.FallbackToLocal && r.local != nil {
			r.logger.Warn("remote synthesis failed, using local engine", "error", err)
			err = r.speakLocal(runCtx, rn, cfg)
		}
	}
	if err != nil {
		r.finish(rn, ReasonError, err)
		return nil, err
	}

	r.mu.Lock()
	if r.current == rn {
		r.machine.Transition(tts.StateSpeaking)
	}
	r.mu.Unlock()
	return session, nil
}

func (r *Reader) speakRemote(ctx context.Context, rn *run, cfg tts.Config) error {
	session := rn.session
	voice := cfg.VoiceConfig()

	var markup string
	markers := session.Mode == tts.ModeSentence && len(session.Sentences) > 0 &&
		r.synth.SupportsMarkers(voice.Name)
	if markers {
		markup, session.Markers = ssml.Build(session.Sentences)
	} else {
		markup = ssml.BuildPlain(joinSentences(session))
	}

	res, err := r.synth.Synthesize(ctx, markup, voice)
	if err != nil {
		return err
	}
	if markers {
		session.Timings = res.Timings
	}
	r.logger.Debug("synthesized", "session", session.ID, "timings", len(res.Timings),
		"cached", res.Cached, "characters", res.Characters)

	rn.engine = engineRemote
	onDone := func(err error) {
		reason := reasonFor(err)
		if reason != ReasonError {
			err = nil
		}
		r.finish(rn, reason, err)
	}
	// Timers start once the player reports audio flowing, not before decode.
	onStart := func() { r.startScheduler(rn) }
	return r.player.Play(ctx, res, onStart, onDone)
}

func (r *Reader) speakLocal(ctx context.Context, rn *run, cfg tts.Config) error {
	if r.local == nil {
		return tts.ErrNoEngine
	}
	opts := cfg.SpeakOptions()
	if cfg.Engine != tts.EngineLocal {
		// The configured voice names a remote voice.
		opts.VoiceName = ""
	}

	rn.engine = engineLocal
	rn.session.Timings = nil
	return r.local.Speak(ctx, joinSentences(rn.session), opts, func(ev tts.EngineEvent) {
		switch {
		case ev.Type == tts.EventStart:
			r.startScheduler(rn)
		case ev.Type == tts.EventEnd:
			r.finish(rn, ReasonComplete, nil)
		case ev.Type == tts.EventError:
			r.finish(rn, ReasonError, ev.Err)
		case ev.Type.Terminal():
			r.finish(rn, ReasonStopped, nil)
		}
	})
}

// finish ends rn exactly once: timers are cancelled, the highlight is
// cleared and the reader returns to idle if rn is still current.
func (r *Reader) finish(rn *run, reason string, err error) {
	rn.once.Do(func() {
		rn.cancel()

		r.mu.Lock()
		current := r.current == rn
		if current {
			r.current = nil
			r.machine.Transition(tts.StateIdle)
		}
		onFinish := r.onFinish
		r.mu.Unlock()

		if current {
			r.schedMu.Lock()
			r.scheduler.Stop()
			r.schedMu.Unlock()
		}
		if rn.cursor != nil {
			rn.cursor.Clear()
		}

		if err != nil {
			r.logger.Warn("session ended with error", "session", rn.session.ID, "engine", rn.engine, "error", err)
		} else {
			r.logger.Debug("session ended", "session", rn.session.ID, "reason", reason)
		}
		if onFinish != nil {
			onFinish(tts.SessionFinishedMsg{Reason: reason, Err: err})
		}
	})
}

// Stop ends the running session, if any.
func (r *Reader) Stop() {
	r.mu.Lock()
	rn := r.current
	r.mu.Unlock()
	if rn == nil {
		return
	}

	r.finish(rn, ReasonStopped, nil)
	switch rn.engine {
	case engineRemote:
		_ = r.player.Stop()
	case engineLocal:
		_ = r.local.Stop()
	}
}

// Pause suspends local speech. Synthesized audio cannot be paused through
// the reader.
func (r *Reader) Pause() error {
	if rn := r.currentRun(); rn != nil && rn.engine == engineLocal {
		return r.local.Pause()
	}
	return tts.ErrNotSupported
}

// Resume continues paused local speech.
func (r *Reader) Resume() error {
	if rn := r.currentRun(); rn != nil && rn.engine == engineLocal {
		return r.local.Resume()
	}
	return tts.ErrNotSupported
}

// UpdateConfig replaces the configuration used by the next Speak.
func (r *Reader) UpdateConfig(cfg tts.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// Config returns the current configuration.
func (r *Reader) Config() tts.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// State returns the reader state.
func (r *Reader) State() tts.StateType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.Current()
}

// Session returns the running session, or nil.
func (r *Reader) Session() *tts.Session {
	if rn := r.currentRun(); rn != nil {
		return rn.session
	}
	return nil
}

// PendingAdvances returns the number of highlight advances not yet run.
func (r *Reader) PendingAdvances() int {
	return r.scheduler.Pending()
}

func (r *Reader) currentRun() *run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// startScheduler drives rn's highlighter unless rn already ended.
func (r *Reader) startScheduler(rn *run) {
	r.schedMu.Lock()
	defer r.schedMu.Unlock()
	if r.currentRun() == rn {
		r.scheduler.Start(rn.session)
	}
}

func joinSentences(s *tts.Session) string {
	if len(s.Sentences) == 0 {
		return strings.TrimSpace(s.Text)
	}
	parts := make([]string, len(s.Sentences))
	for i, st := range s.Sentences {
		parts[i] = st.Text
	}
	return strings.Join(parts, " ")
}

func reasonFor(err error) string {
	switch {
	case err == nil:
		return ReasonComplete
	case audio.IsStopped(err), errors.Is(err, context.Canceled):
		return ReasonStopped
	default:
		return ReasonError
	}
}
