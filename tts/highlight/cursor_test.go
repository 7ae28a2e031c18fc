package highlight_test

import (
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/highlight"
	"github.com/dgnsrekt/readaloud/tts/sentence"
	"golang.org/x/net/html"
)

const fixture = `<html><body><article id="root">
<h1>Reading aloud</h1>
<p>The first sentence. The <b>second</b> one spans nodes.</p>
<ul><li>An item</li></ul>
</article></body></html>`

type recorder struct {
	mu      sync.Mutex
	started []tts.HighlightEvent
	cleared int
}

func (r *recorder) HighlightStarted(ev tts.HighlightEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, ev)
}

func (r *recorder) HighlightCleared() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared++
}

type session struct {
	doc       *html.Node
	selection *dom.Range
	sentences []tts.Sentence
	textNodes []*html.Node
	before    string
}

func newSession(t *testing.T, src string) *session {
	t.Helper()
	doc, err := dom.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := dom.ByID(doc, "root")
	if root == nil {
		t.Fatal("fixture needs an element with id root")
	}
	sel := dom.SelectNodeContents(root)
	return &session{
		doc:       doc,
		selection: sel,
		sentences: sentence.NewDetector().Detect(sel),
		textNodes: dom.TextNodes(doc),
		before:    dom.Render(doc),
	}
}

// assertRestored checks that the document is byte-identical to its initial
// rendering and still holds the very same text nodes.
func (s *session) assertRestored(t *testing.T) {
	t.Helper()
	if got := dom.Render(s.doc); got != s.before {
		t.Fatalf("document not restored:\n got: %s\nwant: %s", got, s.before)
	}
	now := dom.TextNodes(s.doc)
	if len(now) != len(s.textNodes) {
		t.Fatalf("text node count changed: %d vs %d", len(now), len(s.textNodes))
	}
	for i := range now {
		if now[i] != s.textNodes[i] {
			t.Fatalf("text node %d was replaced", i)
		}
	}
}

func quiet() highlight.Option {
	return highlight.WithLogger(log.New(io.Discard))
}

func TestAdvanceWrapsSentence(t *testing.T) {
	s := newSession(t, fixture)
	if len(s.sentences) != 4 {
		t.Fatalf("fixture should yield 4 sentences, got %d", len(s.sentences))
	}
	rec := &recorder{}
	c := highlight.NewCursor(s.selection, s.sentences, tts.ModeSentence, highlight.WithListener(rec), quiet())

	c.AdvanceTo(1)
	out := dom.Render(s.doc)
	want := `<span class="readaloud-highlight" data-readaloud="sentence">The first sentence.</span>`
	if !strings.Contains(out, want) {
		t.Errorf("expected %s in %s", want, out)
	}

	st := c.State()
	if st.State != tts.StateHighlighting || st.CurrentIndex != 1 || len(st.ActiveNodes) != 1 {
		t.Errorf("unexpected state %+v", st)
	}
	if len(rec.started) != 1 || rec.started[0].Index != 1 || rec.started[0].Text != "The first sentence." {
		t.Errorf("unexpected events %+v", rec.started)
	}
	if got := rec.started[0].Range.String(); got != "The first sentence." {
		t.Errorf("event range covers %q", got)
	}

	c.Clear()
	s.assertRestored(t)
}

func TestAdvanceAcrossInlineElement(t *testing.T) {
	s := newSession(t, fixture)
	c := highlight.NewCursor(s.selection, s.sentences, tts.ModeSentence, quiet())

	c.AdvanceTo(2)
	st := c.State()
	var covered strings.Builder
	for _, n := range st.ActiveNodes {
		covered.WriteString(dom.TextContent(n))
	}
	if covered.String() != "The second one spans nodes." {
		t.Errorf("highlight covers %q", covered.String())
	}
	for _, n := range st.ActiveNodes {
		if dom.Attr(n, highlight.AttrMarker) != "sentence" {
			t.Errorf("wrapper lacks marker attribute: %s", dom.Render(n))
		}
	}

	c.Clear()
	s.assertRestored(t)
}

func TestUnwindBeforeWrap(t *testing.T) {
	s := newSession(t, fixture)
	c := highlight.NewCursor(s.selection, s.sentences, tts.ModeSentence, quiet())

	for _, i := range []int{0, 1, 2, 3, 1, 0, 3} {
		c.AdvanceTo(i)
		out := dom.Render(s.doc)
		if strings.Count(out, `data-readaloud=`) != len(c.State().ActiveNodes) {
			t.Fatalf("after AdvanceTo(%d) stale wrappers remain: %s", i, out)
		}
		if strings.Contains(out, `<span class="readaloud-highlight" data-readaloud="sentence"><span`) {
			t.Fatalf("nested highlight after AdvanceTo(%d)", i)
		}
		if c.State().CurrentIndex != i {
			t.Fatalf("current index %d, want %d", c.State().CurrentIndex, i)
		}
	}

	c.Clear()
	s.assertRestored(t)
}

func TestClearIdempotent(t *testing.T) {
	s := newSession(t, fixture)
	rec := &recorder{}
	c := highlight.NewCursor(s.selection, s.sentences, tts.ModeSentence, highlight.WithListener(rec), quiet())

	c.Clear()
	s.assertRestored(t)

	c.AdvanceTo(2)
	c.Clear()
	c.Clear()
	s.assertRestored(t)

	if rec.cleared != 1 {
		t.Errorf("expected one cleared signal, got %d", rec.cleared)
	}
	if st := c.State(); st.State != tts.StateIdle || st.CurrentIndex != -1 || len(st.ActiveNodes) != 0 {
		t.Errorf("unexpected state after clear %+v", st)
	}
}

func TestAdvanceOutOfBounds(t *testing.T) {
	for n := 0; n <= 100; n++ {
		var b strings.Builder
		b.WriteString(`<div id="root">`)
		for i := 0; i < n; i++ {
			b.WriteString("<h2>Heading</h2>")
		}
		b.WriteString(`</div>`)
		s := newSession(t, b.String())
		if len(s.sentences) != n {
			t.Fatalf("expected %d sentences, got %d", n, len(s.sentences))
		}

		c := highlight.NewCursor(s.selection, s.sentences, tts.ModeSentence, quiet())
		if n > 0 {
			c.AdvanceTo(n / 2)
		}
		before := c.State().CurrentIndex
		rendered := dom.Render(s.doc)

		for _, i := range []int{-1, -100, n, n + 1, n + 100} {
			c.AdvanceTo(i)
			if got := c.State().CurrentIndex; got != before {
				t.Fatalf("n=%d: AdvanceTo(%d) changed index %d -> %d", n, i, before, got)
			}
			if dom.Render(s.doc) != rendered {
				t.Fatalf("n=%d: AdvanceTo(%d) mutated the document", n, i)
			}
		}
		c.Clear()
		s.assertRestored(t)
	}
}

func TestHighlightWhole(t *testing.T) {
	s := newSession(t, fixture)
	rec := &recorder{}
	c := highlight.NewCursor(s.selection, s.sentences, tts.ModeFullSelection, highlight.WithListener(rec), quiet())

	c.AdvanceTo(0)
	if c.State().State != tts.StateIdle {
		t.Fatal("advance must be ignored in full selection mode")
	}

	c.HighlightWhole(s.selection)
	st := c.State()
	if st.State != tts.StateHighlighting || st.CurrentIndex != -1 {
		t.Errorf("unexpected state %+v", st)
	}
	if len(st.ActiveNodes) != 1 {
		t.Errorf("whole selection should be wrapped once, got %d wrappers", len(st.ActiveNodes))
	}
	if len(rec.started) != 1 || rec.started[0].Mode != tts.ModeFullSelection {
		t.Errorf("unexpected events %+v", rec.started)
	}

	c.HighlightWhole(s.selection)
	if n := strings.Count(dom.Render(s.doc), `data-readaloud="selection"`); n != 1 {
		t.Errorf("expected one wrapper after re-highlight, got %d", n)
	}

	c.Clear()
	s.assertRestored(t)
}

func TestHighlightPartialTextNode(t *testing.T) {
	doc, err := dom.ParseString(`<p id="p">Before. Middle part. After.</p>`)
	if err != nil {
		t.Fatal(err)
	}
	text := dom.ByID(doc, "p").FirstChild
	original := text
	before := dom.Render(doc)

	sel := dom.NewRange(text, 8, text, 20)
	sentences := sentence.NewDetector().Detect(sel)
	c := highlight.NewCursor(sel, sentences, tts.ModeSentence, quiet())

	c.AdvanceTo(0)
	want := `Before. <span class="readaloud-highlight" data-readaloud="sentence">Middle part.</span> After.`
	if got := dom.RenderChildren(dom.ByID(doc, "p")); got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	c.Clear()
	if got := dom.Render(doc); got != before {
		t.Errorf("document not restored: %s", got)
	}
	if dom.ByID(doc, "p").FirstChild != original || original.NextSibling != nil {
		t.Error("original text node should be restored as the only child")
	}
}

func TestConcurrentAdvance(t *testing.T) {
	s := newSession(t, fixture)
	c := highlight.NewCursor(s.selection, s.sentences, tts.ModeSentence, quiet())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.AdvanceTo((g + i) % len(s.sentences))
			}
		}(g)
	}
	wg.Wait()

	c.Clear()
	s.assertRestored(t)
}
