package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Range is a pair of boundary points in a document tree.
type Range struct {
	StartContainer *html.Node
	StartOffset    int
	EndContainer   *html.Node
	EndOffset      int
}

// Segment is the part of a single text node covered by a range.
type Segment struct {
	Node  *html.Node
	Start int
	End   int
}

// Text returns the covered substring.
func (s Segment) Text() string {
	return s.Node.Data[s.Start:s.End]
}

// NewRange creates a range between two boundary points.
func NewRange(startContainer *html.Node, startOffset int, endContainer *html.Node, endOffset int) *Range {
	return &Range{
		StartContainer: startContainer,
		StartOffset:    startOffset,
		EndContainer:   endContainer,
		EndOffset:      endOffset,
	}
}

// SelectNodeContents returns a range covering everything inside n.
func SelectNodeContents(n *html.Node) *Range {
	if n.Type == html.TextNode {
		return NewRange(n, 0, n, len(n.Data))
	}
	return NewRange(n, 0, n, ChildCount(n))
}

// SelectNodes returns a range starting before first and ending after last.
func SelectNodes(first, last *html.Node) *Range {
	if first.Parent == nil || last.Parent == nil {
		return SelectNodeContents(first)
	}
	return NewRange(first.Parent, ChildIndex(first), last.Parent, ChildIndex(last)+1)
}

// Clone returns a copy of r.
func (r *Range) Clone() *Range {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Valid reports whether both containers are set.
func (r *Range) Valid() bool {
	return r != nil && r.StartContainer != nil && r.EndContainer != nil
}

// Collapsed reports whether the range covers no text.
func (r *Range) Collapsed() bool {
	return len(r.Segments()) == 0
}

// CommonAncestor returns the deepest node containing both containers.
func (r *Range) CommonAncestor() *html.Node {
	if !r.Valid() {
		return nil
	}
	if r.StartContainer == r.EndContainer {
		return r.StartContainer
	}
	ancestors := make(map[*html.Node]bool)
	for n := r.StartContainer; n != nil; n = n.Parent {
		ancestors[n] = true
	}
	for n := r.EndContainer; n != nil; n = n.Parent {
		if ancestors[n] {
			return n
		}
	}
	return nil
}

// position is a boundary point flattened into preorder coordinates.
type position struct {
	node   int
	offset int
}

func (p position) less(q position) bool {
	if p.node != q.node {
		return p.node < q.node
	}
	return p.offset < q.offset
}

// preorder numbers every node of the tree rooted at root.
func preorder(root *html.Node) map[*html.Node]int {
	idx := make(map[*html.Node]int)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		idx[n] = len(idx)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return idx
}

func boundary(idx map[*html.Node]int, container *html.Node, offset int) position {
	if container.Type == html.TextNode || container.Type == html.CommentNode {
		return position{node: idx[container], offset: clamp(offset, 0, len(container.Data))}
	}
	i := 0
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if i == offset {
			return position{node: idx[c]}
		}
		i++
	}
	last := container
	for last.LastChild != nil {
		last = last.LastChild
	}
	return position{node: idx[last] + 1}
}

// Segments returns the text node slices covered by r in document order.
func (r *Range) Segments() []Segment {
	if !r.Valid() {
		return nil
	}
	idx := preorder(Root(r.StartContainer))
	if _, ok := idx[r.EndContainer]; !ok {
		return nil
	}
	start := boundary(idx, r.StartContainer, r.StartOffset)
	end := boundary(idx, r.EndContainer, r.EndOffset)
	if end.less(start) {
		return nil
	}

	var segs []Segment
	for _, t := range TextNodes(r.CommonAncestor()) {
		i := idx[t]
		if i < start.node || i > end.node {
			continue
		}
		from, to := 0, len(t.Data)
		if i == start.node {
			from = start.offset
		}
		if i == end.node {
			to = end.offset
		}
		if from >= to {
			continue
		}
		segs = append(segs, Segment{Node: t, Start: from, End: to})
	}
	return segs
}

// String returns the text covered by r.
func (r *Range) String() string {
	var b strings.Builder
	for _, s := range r.Segments() {
		b.WriteString(s.Text())
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
