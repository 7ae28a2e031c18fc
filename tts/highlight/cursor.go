// Package highlight owns the visual highlight of the sentence being spoken.
// The cursor wraps a sentence's text in span elements and restores the
// exact previous text nodes before it moves on.
package highlight

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/locate"
	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// DefaultClass is the class attribute of wrapper elements.
const DefaultClass = "readaloud-highlight"

// Cursor tracks which sentence of a session is highlighted. It is safe for
// concurrent use.
type Cursor struct {
	mu sync.Mutex

	selection *dom.Range
	sentences []tts.Sentence
	mode      tts.HighlightMode
	sessionID uuid.UUID

	machine  *tts.StateMachine
	locator  *locate.Locator
	listener tts.HighlightListener
	logger   *log.Logger
	class    string

	current int
	active  *applied
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithListener sets the receiver of highlight signals.
func WithListener(l tts.HighlightListener) Option {
	return func(c *Cursor) {
		if l != nil {
			c.listener = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Cursor) {
		c.logger = l
	}
}

// WithClass sets the class attribute of wrapper elements.
func WithClass(class string) Option {
	return func(c *Cursor) {
		if class != "" {
			c.class = class
		}
	}
}

// WithSessionID tags emitted events with a session id.
func WithSessionID(id uuid.UUID) Option {
	return func(c *Cursor) {
		c.sessionID = id
	}
}

// WithLocator sets the locator used to find sentence ranges.
func WithLocator(l *locate.Locator) Option {
	return func(c *Cursor) {
		c.locator = l
	}
}

// NewCursor creates an idle cursor over the sentences of a selection.
func NewCursor(selection *dom.Range, sentences []tts.Sentence, mode tts.HighlightMode, opts ...Option) *Cursor {
	c := &Cursor{
		selection: selection,
		sentences: sentences,
		mode:      mode,
		machine:   tts.NewCursorStateMachine(),
		listener:  tts.NopListener{},
		logger:    log.Default(),
		class:     DefaultClass,
		current:   -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.locator == nil {
		c.locator = locate.New(locate.WithLogger(c.logger))
	}
	return c
}

// AdvanceTo highlights sentence i, removing the previous highlight first.
// Out of range indices and calls in full selection mode are ignored.
func (c *Cursor) AdvanceTo(i int) {
	c.mu.Lock()

	if c.mode != tts.ModeSentence {
		c.mu.Unlock()
		c.logger.Warn("advance ignored outside sentence mode", "index", i, "mode", c.mode)
		return
	}
	if i < 0 || i >= len(c.sentences) {
		c.mu.Unlock()
		c.logger.Warn("sentence index out of bounds", "index", i, "count", len(c.sentences))
		return
	}

	cleared := c.unwind()
	s := c.sentences[i]
	r := c.locator.Locate(c.selection, s.Text, s.Start)
	ev, ok := c.apply(r, i, s.Text, "sentence")
	c.mu.Unlock()

	c.notify(cleared && !ok, ev, ok)
}

// HighlightWhole highlights r as a whole. It is ignored in sentence mode.
func (c *Cursor) HighlightWhole(r *dom.Range) {
	c.mu.Lock()

	if c.mode != tts.ModeFullSelection {
		c.mu.Unlock()
		c.logger.Warn("whole highlight ignored in sentence mode")
		return
	}
	if r == nil {
		r = c.selection
	}

	cleared := c.unwind()
	ev, ok := c.apply(r, -1, r.String(), "selection")
	c.mu.Unlock()

	c.notify(cleared && !ok, ev, ok)
}

// Clear removes any highlight. Clearing an idle cursor does nothing.
func (c *Cursor) Clear() {
	c.mu.Lock()
	cleared := c.unwind()
	c.mu.Unlock()

	if cleared {
		c.listener.HighlightCleared()
	}
}

// State returns a snapshot of the cursor.
func (c *Cursor) State() tts.HighlightState {
	c.mu.Lock()
	defer c.mu.Unlock()

	var nodes []*html.Node
	if c.active != nil {
		nodes = make([]*html.Node, len(c.active.wrappers))
		copy(nodes, c.active.wrappers)
	}
	return tts.HighlightState{
		State:        c.machine.Current(),
		CurrentIndex: c.current,
		ActiveNodes:  nodes,
		Mode:         c.mode,
	}
}

// unwind restores the document and moves to idle. It reports whether a
// highlight was removed. Callers hold c.mu.
func (c *Cursor) unwind() bool {
	if c.machine.Current() != tts.StateHighlighting {
		return false
	}
	c.active.unwind()
	c.active = nil
	c.current = -1
	c.machine.Transition(tts.StateIdle)
	return true
}

// apply wraps r and moves to highlighting. Callers hold c.mu.
func (c *Cursor) apply(r *dom.Range, index int, text, kind string) (tts.HighlightEvent, bool) {
	a := wrap(r, c.class, kind)
	if a == nil {
		c.logger.Warn("nothing to highlight", "index", index)
		return tts.HighlightEvent{}, false
	}

	c.active = a
	c.current = index
	c.machine.Transition(tts.StateHighlighting)

	return tts.HighlightEvent{
		SessionID: c.sessionID,
		Index:     index,
		Total:     len(c.sentences),
		Mode:      c.mode,
		Range:     a.span(),
		Text:      text,
	}, true
}

func (c *Cursor) notify(cleared bool, ev tts.HighlightEvent, started bool) {
	if cleared {
		c.listener.HighlightCleared()
	}
	if started {
		c.listener.HighlightStarted(ev)
	}
}
