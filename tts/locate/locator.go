// Package locate recovers live DOM ranges for sentence texts after earlier
// highlights have split and wrapped the text nodes of a selection.
package locate

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"golang.org/x/net/html"
)

// Locator finds sentence ranges in the current document state.
type Locator struct {
	logger *log.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithLogger sets the logger used when a range cannot be recovered.
func WithLogger(l *log.Logger) Option {
	return func(lc *Locator) {
		lc.logger = l
	}
}

// New creates a locator.
func New(opts ...Option) *Locator {
	l := &Locator{logger: log.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// span is a text node with its offset in the concatenated text.
type span struct {
	node  *html.Node
	start int
}

// Locate returns a range spanning text within the current document. hint
// is an offset into the selection's text and prefers matches at or after
// it. Locate falls back to a copy of the selection when the text cannot be
// found, and returns nil only when selection is nil.
func (l *Locator) Locate(selection *dom.Range, text string, hint int) *dom.Range {
	if selection == nil {
		return nil
	}
	if !selection.Valid() || text == "" {
		return selection.Clone()
	}

	ancestor := scope(selection)
	nodes := dom.TextNodes(ancestor)
	spans := make([]span, len(nodes))
	var concat strings.Builder
	for i, n := range nodes {
		spans[i] = span{node: n, start: concat.Len()}
		concat.WriteString(n.Data)
	}
	all := concat.String()
	from := selectionStart(selection, spans) + hint

	// Matches at or after the hint win over earlier ones in either tier.
	after, earlier := singleNode(spans, text, from)
	if after != nil {
		return after
	}
	if r := crossNode(spans, all, text, from); r != nil {
		return r
	}
	if earlier != nil {
		return earlier
	}
	if r := crossNode(spans, all, text, 0); r != nil {
		return r
	}

	l.logger.Warn("range unrecoverable, using whole selection", "text", text)
	return selection.Clone()
}

// scope returns the element whose text nodes are searched. A text node
// common ancestor widens to its parent so that split siblings stay visible.
func scope(selection *dom.Range) *html.Node {
	a := selection.CommonAncestor()
	for a != nil && a.Type == html.TextNode && a.Parent != nil {
		a = a.Parent
	}
	return a
}

// selectionStart returns the offset of the selection's first character in
// the concatenated text.
func selectionStart(selection *dom.Range, spans []span) int {
	segs := selection.Segments()
	if len(segs) == 0 {
		return 0
	}
	first := segs[0]
	for _, s := range spans {
		if s.node == first.Node {
			return s.start + first.Start
		}
	}
	return 0
}

// singleNode finds text inside one text node. It returns the first match
// starting at or after from, and otherwise the first earlier match.
func singleNode(spans []span, text string, from int) (after, earlier *dom.Range) {
	for _, s := range spans {
		data := s.node.Data
		off := 0
		for {
			i := strings.Index(data[off:], text)
			if i < 0 {
				break
			}
			pos := off + i
			r := dom.NewRange(s.node, pos, s.node, pos+len(text))
			if s.start+pos >= from {
				return r, nil
			}
			if earlier == nil {
				earlier = r
			}
			off = pos + 1
		}
	}
	return nil, earlier
}

// crossNode finds text in the concatenation of all text nodes at or after
// from and maps the match back to node boundaries.
func crossNode(spans []span, all, text string, from int) *dom.Range {
	if from < 0 {
		from = 0
	}
	if from > len(all) {
		return nil
	}
	i := strings.Index(all[from:], text)
	if i < 0 {
		return nil
	}
	pos := from + i
	end := pos + len(text)

	startNode, startOff := locateOffset(spans, pos, false)
	endNode, endOff := locateOffset(spans, end, true)
	if startNode == nil || endNode == nil {
		return nil
	}
	return dom.NewRange(startNode, startOff, endNode, endOff)
}

// locateOffset maps an offset in the concatenation to a node and an offset
// inside it. A start offset on a node boundary resolves to the following
// node; an end offset resolves to the preceding one.
func locateOffset(spans []span, offset int, isEnd bool) (*html.Node, int) {
	for _, s := range spans {
		n := len(s.node.Data)
		if n == 0 {
			continue
		}
		if isEnd {
			if offset > s.start && offset <= s.start+n {
				return s.node, offset - s.start
			}
			continue
		}
		if offset >= s.start && offset < s.start+n {
			return s.node, offset - s.start
		}
	}
	return nil, 0
}
