// Package sentence partitions a document selection into sentences anchored
// to the block elements they came from.
package sentence

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/tts"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockTags are the elements that bound sentences. Inline elements are
// flattened into the block that contains them.
var blockTags = map[atom.Atom]bool{
	atom.P:       true,
	atom.H1:      true,
	atom.H2:      true,
	atom.H3:      true,
	atom.H4:      true,
	atom.H5:      true,
	atom.H6:      true,
	atom.Li:      true,
	atom.Div:     true,
	atom.Header:  true,
	atom.Section: true,
	atom.Article: true,
}

// IsBlock reports whether n is a sentence-bounding block element.
func IsBlock(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && blockTags[n.DataAtom]
}

// Detector extracts sentences from selections.
type Detector struct {
	abbreviations map[string]bool
	logger        *log.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithAbbreviations refuses to split after common abbreviations such as
// "Dr." or "e.g.".
func WithAbbreviations() Option {
	return func(d *Detector) {
		d.abbreviations = makeAbbreviationMap()
	}
}

// WithLogger sets the logger used for degraded detections.
func WithLogger(l *log.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// NewDetector creates a detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{logger: log.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// group is a contiguous run of flattened text owned by one block, or by no
// block when element is nil.
type group struct {
	element *html.Node
	start   int
	end     int
}

// Detect returns the sentences of the selection in document order.
func (d *Detector) Detect(selection *dom.Range) []tts.Sentence {
	if !selection.Valid() {
		return nil
	}
	segs := selection.Segments()
	if len(segs) == 0 {
		return nil
	}
	ancestor := selection.CommonAncestor()

	var flat strings.Builder
	var groups []group
	for _, seg := range segs {
		block := outermostBlock(seg.Node, ancestor)
		start := flat.Len()
		flat.WriteString(seg.Text())
		if n := len(groups); n > 0 && groups[n-1].element == block {
			groups[n-1].end = flat.Len()
			continue
		}
		groups = append(groups, group{element: block, start: start, end: flat.Len()})
	}

	text := flat.String()
	var sentences []tts.Sentence
	for _, g := range groups {
		sentences = d.appendGroup(sentences, text, g)
	}
	return d.ensureNonEmpty(sentences, text)
}

// DetectText splits plain text into sentences with no element references.
func (d *Detector) DetectText(text string) []tts.Sentence {
	sentences := d.appendGroup(nil, text, group{start: 0, end: len(text)})
	return d.ensureNonEmpty(sentences, text)
}

func (d *Detector) appendGroup(sentences []tts.Sentence, text string, g group) []tts.Sentence {
	chunk := text[g.start:g.end]

	var spans [][2]int
	if g.element == nil || g.element.DataAtom == atom.P {
		spans = d.split(chunk)
	} else {
		spans = [][2]int{{0, len(chunk)}}
	}

	for _, sp := range spans {
		piece := chunk[sp[0]:sp[1]]
		lead := len(piece) - len(strings.TrimLeftFunc(piece, unicode.IsSpace))
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		start := g.start + sp[0] + lead
		sentences = append(sentences, tts.Sentence{
			Index:   len(sentences),
			Text:    trimmed,
			Element: g.element,
			Start:   start,
			End:     start + len(trimmed),
		})
	}
	return sentences
}

// ensureNonEmpty turns non-empty text that yielded no sentence into a single
// sentence.
func (d *Detector) ensureNonEmpty(sentences []tts.Sentence, text string) []tts.Sentence {
	if len(sentences) > 0 {
		return sentences
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	d.logger.Warn("sentence detection degenerate, using whole text", "length", len(trimmed))
	start := strings.Index(text, trimmed)
	return []tts.Sentence{{
		Index: 0,
		Text:  trimmed,
		Start: start,
		End:   start + len(trimmed),
	}}
}

// outermostBlock returns the highest block element between n and the
// selection's common ancestor, excluding the ancestor itself.
func outermostBlock(n, ancestor *html.Node) *html.Node {
	if n == ancestor {
		return nil
	}
	var block *html.Node
	for p := n.Parent; p != nil && p != ancestor; p = p.Parent {
		if IsBlock(p) {
			block = p
		}
	}
	return block
}
