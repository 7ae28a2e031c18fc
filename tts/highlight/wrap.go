package highlight

import (
	"github.com/dgnsrekt/readaloud/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// AttrMarker marks wrapper elements created by the cursor. Its value is
// the highlight mode.
const AttrMarker = "data-readaloud"

// splitRecord remembers how a text node looked before it was split.
type splitRecord struct {
	node    *html.Node
	data    string
	created []*html.Node
}

// applied is one highlight living in the document.
type applied struct {
	wrappers []*html.Node
	splits   []splitRecord
}

// isolate splits n so that n.Data[from:to] is a text node of its own and
// returns that node.
func isolate(n *html.Node, from, to int) (*html.Node, splitRecord) {
	rec := splitRecord{node: n, data: n.Data}
	if to < len(n.Data) {
		rec.created = append(rec.created, dom.SplitText(n, to))
	}
	piece := n
	if from > 0 {
		piece = dom.SplitText(n, from)
		rec.created = append(rec.created, piece)
	}
	return piece, rec
}

func newWrapper(class, mode string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: "class", Val: class},
			{Key: AttrMarker, Val: mode},
		},
	}
}

// wrap highlights the text covered by r. When every covered piece shares a
// parent, a single wrapper encloses them in place; otherwise each piece
// gets its own wrapper.
func wrap(r *dom.Range, class, mode string) *applied {
	segs := r.Segments()
	if len(segs) == 0 {
		return nil
	}

	a := &applied{}
	pieces := make([]*html.Node, 0, len(segs))
	for _, s := range segs {
		piece, rec := isolate(s.Node, s.Start, s.End)
		a.splits = append(a.splits, rec)
		pieces = append(pieces, piece)
	}

	first, last := pieces[0], pieces[len(pieces)-1]
	if first.Parent == last.Parent && !containsNonPiece(pieces) {
		w := newWrapper(class, mode)
		parent := first.Parent
		parent.InsertBefore(w, first)
		for n := first; n != nil; {
			next := n.NextSibling
			parent.RemoveChild(n)
			w.AppendChild(n)
			if n == last {
				break
			}
			n = next
		}
		a.wrappers = append(a.wrappers, w)
		return a
	}

	for _, piece := range pieces {
		w := newWrapper(class, mode)
		piece.Parent.InsertBefore(w, piece)
		piece.Parent.RemoveChild(piece)
		w.AppendChild(piece)
		a.wrappers = append(a.wrappers, w)
	}
	return a
}

// containsNonPiece reports whether a text node between the first and last
// piece is not covered by the range, such as an empty one.
func containsNonPiece(pieces []*html.Node) bool {
	set := make(map[*html.Node]bool, len(pieces))
	for _, p := range pieces {
		set[p] = true
	}
	first, last := pieces[0], pieces[len(pieces)-1]
	for n := first; n != nil && n != last; n = n.NextSibling {
		if n.Type == html.TextNode && !set[n] {
			return true
		}
	}
	return false
}

// unwind removes the wrappers and restores every split text node to its
// original data, in reverse order of application.
func (a *applied) unwind() {
	if a == nil {
		return
	}
	for i := len(a.wrappers) - 1; i >= 0; i-- {
		dom.Unwrap(a.wrappers[i])
	}
	for i := len(a.splits) - 1; i >= 0; i-- {
		rec := a.splits[i]
		for _, c := range rec.created {
			dom.Detach(c)
		}
		rec.node.Data = rec.data
	}
	a.wrappers = nil
	a.splits = nil
}

// span returns a range covering the wrappers.
func (a *applied) span() *dom.Range {
	if a == nil || len(a.wrappers) == 0 {
		return nil
	}
	first, last := a.wrappers[0], a.wrappers[len(a.wrappers)-1]
	return dom.NewRange(first, 0, last, dom.ChildCount(last))
}
