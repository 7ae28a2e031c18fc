// Package dom models the live document the reader highlights. Documents are
// golang.org/x/net/html trees; Range follows the W3C boundary-point model
// with byte offsets for text containers and child indices for elements.
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// rawText elements carry text that is never rendered as document text.
var rawText = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// Parse parses an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse html: %w", err)
	}
	return doc, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Render serializes n back to HTML.
func Render(n *html.Node) string {
	var b strings.Builder
	_ = html.Render(&b, n)
	return b.String()
}

// RenderChildren serializes the children of n without n itself.
func RenderChildren(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

// Root returns the topmost ancestor of n.
func Root(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

// FindElement returns the first element in document order for which match
// reports true.
func FindElement(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

// ByID returns the element with the given id attribute.
func ByID(root *html.Node, id string) *html.Node {
	return FindElement(root, func(n *html.Node) bool {
		return Attr(n, "id") == id
	})
}

// Body returns the body element of a parsed document, or root when the
// tree has none.
func Body(root *html.Node) *html.Node {
	if body := FindElement(root, func(n *html.Node) bool { return n.DataAtom == atom.Body }); body != nil {
		return body
	}
	return root
}

// Attr returns the value of the named attribute or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// IsRawText reports whether n is an element whose text is not document text.
func IsRawText(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && rawText[n.DataAtom]
}

// TextNodes returns the text nodes under root in document order. Text inside
// script, style, noscript and template elements is skipped.
func TextNodes(root *html.Node) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			nodes = append(nodes, n)
			return
		case IsRawText(n):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return nodes
}

// TextContent concatenates the text nodes under n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	for _, t := range TextNodes(n) {
		b.WriteString(t.Data)
	}
	return b.String()
}

// ChildIndex returns the position of n among its parent's children.
func ChildIndex(n *html.Node) int {
	i := 0
	for c := n.PrevSibling; c != nil; c = c.PrevSibling {
		i++
	}
	return i
}

// ChildCount returns the number of children of n.
func ChildCount(n *html.Node) int {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		i++
	}
	return i
}

// IsAncestor reports whether a is a strict ancestor of n.
func IsAncestor(a, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// InsertAfter inserts n as the next sibling of ref. n must be detached.
func InsertAfter(n, ref *html.Node) {
	if ref.NextSibling != nil {
		ref.Parent.InsertBefore(n, ref.NextSibling)
		return
	}
	ref.Parent.AppendChild(n)
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Unwrap moves the children of w into w's parent at w's position and
// removes w.
func Unwrap(w *html.Node) {
	parent := w.Parent
	if parent == nil {
		return
	}
	for c := w.FirstChild; c != nil; c = w.FirstChild {
		w.RemoveChild(c)
		parent.InsertBefore(c, w)
	}
	parent.RemoveChild(w)
}

// SplitText splits a text node at offset and returns the new node holding
// the tail. The new node is inserted right after n.
func SplitText(n *html.Node, offset int) *html.Node {
	tail := &html.Node{Type: html.TextNode, Data: n.Data[offset:]}
	n.Data = n.Data[:offset]
	InsertAfter(tail, n)
	return tail
}

// NewText creates a detached text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
