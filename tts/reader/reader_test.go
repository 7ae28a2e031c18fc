package reader_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/engines/mock"
	"github.com/dgnsrekt/readaloud/tts/reader"
	ttssync "github.com/dgnsrekt/readaloud/tts/sync"
	"golang.org/x/net/html"
)

const page = `<html><body><article id="root"><p>First one here. Second one here. Third one here.</p></article></body></html>`

// manualClock runs timers only when Advance passes their deadline.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	c    *manualClock
	at   time.Duration
	f    func()
	done bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) ttssync.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.done && t.at <= c.now {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// heldPlayer plays until the test calls finish. With holdStart set, audio
// only starts flowing when the test calls begin.
type heldPlayer struct {
	mu        sync.Mutex
	holdStart bool
	onStart   func()
	onDone    func(error)
	played    []*tts.SynthesisResult
	stops     int
}

func (p *heldPlayer) Play(_ context.Context, res *tts.SynthesisResult, onStart func(), onDone func(error)) error {
	p.mu.Lock()
	p.played = append(p.played, res)
	p.onDone = onDone
	if p.holdStart {
		p.onStart = onStart
		onStart = nil
	}
	p.mu.Unlock()
	if onStart != nil {
		onStart()
	}
	return nil
}

func (p *heldPlayer) begin() {
	p.mu.Lock()
	start := p.onStart
	p.onStart = nil
	p.mu.Unlock()
	if start != nil {
		start()
	}
}

func (p *heldPlayer) Stop() error {
	p.mu.Lock()
	done := p.onDone
	p.onDone = nil
	p.stops++
	p.mu.Unlock()
	if done != nil {
		done(audio.ErrStopped)
	}
	return nil
}

func (p *heldPlayer) finish(err error) {
	p.mu.Lock()
	done := p.onDone
	p.onDone = nil
	p.mu.Unlock()
	if done != nil {
		done(err)
	}
}

type events struct {
	mu       sync.Mutex
	started  []int
	cleared  int
	finished []tts.SessionFinishedMsg
}

func (e *events) HighlightStarted(ev tts.HighlightEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, ev.Index)
}

func (e *events) HighlightCleared() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleared++
}

func (e *events) onFinish(m tts.SessionFinishedMsg) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, m)
}

func (e *events) snapshot() ([]int, []tts.SessionFinishedMsg) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.started...), append([]tts.SessionFinishedMsg(nil), e.finished...)
}

type fixture struct {
	doc       *html.Node
	selection *dom.Range
	before    string
	reader    *reader.Reader
	synth     *mock.Synthesizer
	local     *mock.Engine
	player    *heldPlayer
	clock     *manualClock
	events    *events
}

func newFixture(t *testing.T, cfg tts.Config) *fixture {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		doc:       doc,
		selection: dom.SelectNodeContents(dom.ByID(doc, "root")),
		before:    dom.Render(doc),
		synth:     mock.NewSynthesizer(),
		local:     mock.New(),
		player:    &heldPlayer{},
		clock:     &manualClock{},
		events:    &events{},
	}
	f.local.SetDelay(time.Minute)

	f.reader, err = reader.New(cfg,
		reader.WithSynthesizer(f.synth),
		reader.WithLocalEngine(f.local),
		reader.WithPlayer(f.player),
		reader.WithClock(f.clock),
		reader.WithListener(f.events),
		reader.WithOnFinish(f.events.onFinish),
		reader.WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) highlighted() bool {
	return strings.Contains(dom.Render(f.doc), tts.DefaultConfig().HighlightClass)
}

func (f *fixture) restored() bool {
	return dom.Render(f.doc) == f.before
}

func TestSpeak_TimedReplay(t *testing.T) {
	f := newFixture(t, tts.DefaultConfig())

	session, err := f.reader.Speak(context.Background(), f.selection)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(session.Sentences) != 3 || len(session.Timings) != 5 {
		t.Fatalf("got %d sentences and %d timings", len(session.Sentences), len(session.Timings))
	}
	if !strings.Contains(f.synth.Calls()[0], `<mark name="s2"/>`) {
		t.Error("markup should carry sentence marks")
	}
	if f.reader.State() != tts.StateSpeaking {
		t.Errorf("state %v", f.reader.State())
	}
	if f.reader.PendingAdvances() != 3 {
		t.Errorf("pending %d, want 3", f.reader.PendingAdvances())
	}

	f.clock.Advance(0)
	f.clock.Advance(1300 * time.Millisecond)
	if !f.highlighted() {
		t.Error("a sentence should be highlighted during playback")
	}
	f.clock.Advance(1300 * time.Millisecond)

	started, _ := f.events.snapshot()
	if want := []int{0, 1, 2}; !equalInts(started, want) {
		t.Errorf("advanced through %v, want %v", started, want)
	}

	f.player.finish(nil)
	_, finished := f.events.snapshot()
	if len(finished) != 1 || finished[0].Reason != reader.ReasonComplete {
		t.Errorf("finish messages %+v", finished)
	}
	if !f.restored() {
		t.Error("document not restored after playback")
	}
	if f.reader.State() != tts.StateIdle || f.reader.Session() != nil {
		t.Error("reader should be idle")
	}
}

func TestSpeak_HighlightWaitsForAudio(t *testing.T) {
	f := newFixture(t, tts.DefaultConfig())
	f.player.holdStart = true

	if _, err := f.reader.Speak(context.Background(), f.selection); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		begin   bool
		advance time.Duration
		pending int
		started []int
	}{
		{name: "decoding", advance: 5 * time.Second, pending: 0, started: nil},
		{name: "playing", begin: true, advance: 0, pending: 2, started: []int{0}},
		{name: "first mark", advance: 1300 * time.Millisecond, pending: 1, started: []int{0, 1}},
		{name: "second mark", advance: 1300 * time.Millisecond, pending: 0, started: []int{0, 1, 2}},
	}
	for _, tt := range tests {
		if tt.begin {
			f.player.begin()
		}
		f.clock.Advance(tt.advance)
		if got := f.reader.PendingAdvances(); got != tt.pending {
			t.Errorf("%s: pending %d, want %d", tt.name, got, tt.pending)
		}
		started, _ := f.events.snapshot()
		if !equalInts(started, tt.started) {
			t.Errorf("%s: advanced through %v, want %v", tt.name, started, tt.started)
		}
		if tt.started == nil && f.highlighted() {
			t.Errorf("%s: highlight ran ahead of the audio", tt.name)
		}
	}
	f.reader.Stop()
	if !f.restored() {
		t.Error("document not restored after stop")
	}
}

func TestStop_MidSession(t *testing.T) {
	f := newFixture(t, tts.DefaultConfig())
	if _, err := f.reader.Speak(context.Background(), f.selection); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(1300 * time.Millisecond)

	f.reader.Stop()
	f.reader.Stop()

	if f.reader.PendingAdvances() != 0 {
		t.Errorf("pending %d after stop", f.reader.PendingAdvances())
	}
	f.clock.Advance(time.Minute)
	started, finished := f.events.snapshot()
	if len(started) != 2 {
		t.Errorf("advances after stop: %v", started)
	}
	if len(finished) != 1 || finished[0].Reason != reader.ReasonStopped {
		t.Errorf("finish messages %+v", finished)
	}
	if !f.restored() {
		t.Error("document not restored after stop")
	}
	if f.player.stops != 1 {
		t.Errorf("player stopped %d times", f.player.stops)
	}
}

func TestSpeak_CancelsPrevious(t *testing.T) {
	f := newFixture(t, tts.DefaultConfig())
	first, err := f.reader.Speak(context.Background(), f.selection)
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(1300 * time.Millisecond)

	second, err := f.reader.Speak(context.Background(), f.selection)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("expected a new session")
	}
	_, finished := f.events.snapshot()
	if len(finished) != 1 || finished[0].Reason != reader.ReasonStopped {
		t.Errorf("previous session should be stopped once, got %+v", finished)
	}
	if f.reader.Session() != second {
		t.Error("second session should be current")
	}
	if f.reader.PendingAdvances() != 3 {
		t.Errorf("pending %d, want 3 for the new session", f.reader.PendingAdvances())
	}
	f.reader.Stop()
}

func TestSpeak_EmptySelection(t *testing.T) {
	f := newFixture(t, tts.DefaultConfig())
	empty := dom.SelectNodeContents(dom.Body(f.doc))
	empty.EndContainer, empty.EndOffset = empty.StartContainer, empty.StartOffset

	for _, sel := range []*dom.Range{nil, empty} {
		if _, err := f.reader.Speak(context.Background(), sel); !errors.Is(err, tts.ErrSelectionEmpty) {
			t.Errorf("got %v, want ErrSelectionEmpty", err)
		}
	}
	if f.reader.State() != tts.StateIdle || len(f.synth.Calls()) != 0 {
		t.Error("no session should start")
	}
}

func TestSpeak_FallbackToLocal(t *testing.T) {
	f := newFixture(t, tts.DefaultConfig())
	f.synth.SetFailure(tts.NewTTSError(tts.CodeQuotaExceeded, "quota", nil))

	session, err := f.reader.Speak(context.Background(), f.selection)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	spoken := f.local.Spoken()
	if len(spoken) != 1 || spoken[0] != "First one here. Second one here. Third one here." {
		t.Errorf("local engine spoke %q", spoken)
	}
	if session.HasTimings() {
		t.Error("local speech has no timings")
	}
	started, _ := f.events.snapshot()
	if !equalInts(started, []int{0}) {
		t.Errorf("static fallback should highlight sentence 0 only, got %v", started)
	}

	f.reader.Stop()
	if !f.restored() {
		t.Error("document not restored")
	}
}

func TestSpeak_FailureWithoutFallback(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.FallbackToLocal = false
	f := newFixture(t, cfg)
	f.synth.SetFailure(tts.NewTTSError(tts.CodeAuth, "bad key", nil))

	_, err := f.reader.Speak(context.Background(), f.selection)
	if !errors.Is(err, tts.ErrAuth) {
		t.Fatalf("got %v", err)
	}
	if f.local.CallCount() != 0 {
		t.Error("local engine should not be used")
	}
	if !f.restored() || f.reader.State() != tts.StateIdle {
		t.Error("failed speak left state behind")
	}
	_, finished := f.events.snapshot()
	if len(finished) != 1 || finished[0].Reason != reader.ReasonError {
		t.Errorf("finish messages %+v", finished)
	}
}

func TestSpeak_VoiceWithoutMarkers(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Voice = "en-US-Journey-F"
	f := newFixture(t, cfg)
	f.synth.DisableMarkers(cfg.Voice)

	session, err := f.reader.Speak(context.Background(), f.selection)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(f.synth.Calls()[0], "<mark") {
		t.Error("plain markup expected for a voice without marks")
	}
	if session.HasTimings() || f.reader.PendingAdvances() != 0 {
		t.Error("no timed replay expected")
	}
	started, _ := f.events.snapshot()
	if !equalInts(started, []int{0}) {
		t.Errorf("got %v, want static sentence 0", started)
	}
	f.player.finish(nil)
}

func TestSpeak_FullSelectionMode(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.SentenceMode = false
	f := newFixture(t, cfg)

	if _, err := f.reader.Speak(context.Background(), f.selection); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(f.synth.Calls()[0], "<mark") {
		t.Error("full selection mode sends plain markup")
	}
	started, _ := f.events.snapshot()
	if !equalInts(started, []int{-1}) {
		t.Errorf("got %v, want one whole-selection highlight", started)
	}
	f.player.finish(nil)
	if !f.restored() {
		t.Error("document not restored")
	}
}

func TestSpeak_HighlightingDisabled(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.HighlightingEnabled = false
	f := newFixture(t, cfg)

	if _, err := f.reader.Speak(context.Background(), f.selection); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Minute)
	if !f.restored() {
		t.Error("document should never change with highlighting disabled")
	}
	f.player.finish(nil)
}

func TestSpeak_PlayerError(t *testing.T) {
	f := newFixture(t, tts.DefaultConfig())
	if _, err := f.reader.Speak(context.Background(), f.selection); err != nil {
		t.Fatal(err)
	}
	f.player.finish(errors.New("device lost"))

	_, finished := f.events.snapshot()
	if len(finished) != 1 || finished[0].Reason != reader.ReasonError || finished[0].Err == nil {
		t.Errorf("finish messages %+v", finished)
	}
	if !f.restored() {
		t.Error("document not restored after error")
	}
}

func TestNew_NoEngine(t *testing.T) {
	if _, err := reader.New(tts.DefaultConfig()); !errors.Is(err, tts.ErrNoEngine) {
		t.Errorf("got %v", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
