// Package document loads the page the reader speaks from and builds
// selections on it.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/dom"
	"github.com/dgnsrekt/readaloud/tts/locate"
	"github.com/mitchellh/go-homedir"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"golang.org/x/net/html"
)

// Clipboard is the source argument that reads the system clipboard.
const Clipboard = "clipboard"

var (
	// ErrNoSource is returned when a directory holds no readable document.
	ErrNoSource = errors.New("missing document source")

	// ErrNotFound is returned when a selection anchor does not exist.
	ErrNotFound = errors.New("element not found")
)

var (
	markdownExts = map[string]bool{".md": true, ".markdown": true, ".mdown": true, ".mkd": true}
	indexNames   = []string{"index.html", "index.htm", "README.md", "README", "Readme.md", "readme.md"}
)

// Format is the markup of a loaded source.
type Format int

const (
	FormatHTML Format = iota
	FormatMarkdown
)

// Document is a parsed page. Root is the live tree the highlight cursor
// mutates.
type Document struct {
	Root   *html.Node
	Source string
	Format Format
}

type loader struct {
	client    *http.Client
	readClip  func() (string, error)
	stdin     io.Reader
	logger    *log.Logger
	markdown  goldmark.Markdown
	userAgent string
}

// Option configures Load.
type Option func(*loader)

// WithHTTPClient sets the client used for URL sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *loader) {
		l.client = c
	}
}

// WithClipboardReader replaces the system clipboard.
func WithClipboardReader(fn func() (string, error)) Option {
	return func(l *loader) {
		l.readClip = fn
	}
}

// WithStdin replaces os.Stdin as the "-" source.
func WithStdin(r io.Reader) Option {
	return func(l *loader) {
		l.stdin = r
	}
}

// WithLogger sets the logger.
func WithLogger(lg *log.Logger) Option {
	return func(l *loader) {
		l.logger = lg
	}
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
}

// Load reads and parses the document named by arg: "-" for stdin,
// "clipboard", an http(s) URL, a file, or a directory holding an index or
// README. Markdown is rendered to HTML first; headings get ids.
func Load(ctx context.Context, arg string, opts ...Option) (*Document, error) {
	l := &loader{
		client:    http.DefaultClient,
		readClip:  clipboard.ReadAll,
		stdin:     os.Stdin,
		logger:    log.Default(),
		markdown:  newMarkdown(),
		userAgent: "readaloud",
	}
	for _, opt := range opts {
		opt(l)
	}

	src, name, format, err := l.open(ctx, arg)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("loaded source", "source", name, "bytes", len(src), "markdown", format == FormatMarkdown)
	return parse(l.markdown, src, name, format)
}

// FromHTML parses an HTML document.
func FromHTML(src []byte, name string) (*Document, error) {
	return parse(nil, src, name, FormatHTML)
}

// FromMarkdown renders and parses a Markdown document.
func FromMarkdown(src []byte, name string) (*Document, error) {
	return parse(newMarkdown(), src, name, FormatMarkdown)
}

func parse(md goldmark.Markdown, src []byte, name string, format Format) (*Document, error) {
	if format == FormatMarkdown {
		var buf bytes.Buffer
		if err := md.Convert(removeFrontmatter(src), &buf); err != nil {
			return nil, fmt.Errorf("unable to render markdown: %w", err)
		}
		src = buf.Bytes()
	}
	root, err := dom.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	return &Document{Root: root, Source: name, Format: format}, nil
}

func (l *loader) open(ctx context.Context, arg string) ([]byte, string, Format, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(l.stdin)
		if err != nil {
			return nil, "", 0, fmt.Errorf("unable to read stdin: %w", err)
		}
		return b, "stdin", sniff(b), nil

	case arg == Clipboard:
		s, err := l.readClip()
		if err != nil {
			return nil, "", 0, fmt.Errorf("unable to read clipboard: %w", err)
		}
		// Clipboard text is treated as Markdown so paragraphs survive.
		return []byte(s), Clipboard, FormatMarkdown, nil
	}

	if u, err := url.ParseRequestURI(arg); err == nil && strings.Contains(arg, "://") {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, "", 0, fmt.Errorf("%s is not a supported protocol", u.Scheme)
		}
		b, err := l.fetch(ctx, u)
		if err != nil {
			return nil, "", 0, err
		}
		format := FormatHTML
		if markdownExts[strings.ToLower(filepath.Ext(u.Path))] {
			format = FormatMarkdown
		}
		return b, u.String(), format, nil
	}

	if arg == "" {
		arg = "."
	}
	path, err := homedir.Expand(arg)
	if err != nil {
		return nil, "", 0, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, "", 0, fmt.Errorf("unable to open source: %w", err)
	}
	if st.IsDir() {
		if path, err = findIndex(path); err != nil {
			return nil, "", 0, err
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", 0, fmt.Errorf("unable to read file: %w", err)
	}
	abs, _ := filepath.Abs(path)
	return b, abs, formatOf(path, b), nil
}

func (l *loader) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", l.userAgent)
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to get url: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read response: %w", err)
	}
	return b, nil
}

func findIndex(dir string) (string, error) {
	for _, name := range indexNames {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoSource, dir)
}

func formatOf(path string, b []byte) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case markdownExts[ext], filepath.Base(path) == "README":
		return FormatMarkdown
	case ext == ".html" || ext == ".htm" || ext == ".xhtml":
		return FormatHTML
	}
	return sniff(b)
}

// sniff treats input that starts with a tag as HTML.
func sniff(b []byte) Format {
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte("<")) {
		return FormatHTML
	}
	return FormatMarkdown
}

func removeFrontmatter(b []byte) []byte {
	const delim = "---"
	s := string(b)
	if !strings.HasPrefix(s, delim+"\n") && !strings.HasPrefix(s, delim+"\r\n") {
		return b
	}
	rest := s[strings.Index(s, "\n")+1:]
	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		return b
	}
	rest = rest[end+1+len(delim):]
	return []byte(strings.TrimLeft(rest, "\r\n"))
}

// Body returns the body element.
func (d *Document) Body() *html.Node {
	return dom.Body(d.Root)
}

// All selects the whole body.
func (d *Document) All() *dom.Range {
	return dom.SelectNodeContents(d.Body())
}

// Select returns a range from the element with id start through the element
// with id end. An empty end selects only start; an empty start selects the
// whole body.
func (d *Document) Select(start, end string) (*dom.Range, error) {
	if start == "" {
		return d.All(), nil
	}
	first := dom.ByID(d.Root, start)
	if first == nil {
		return nil, fmt.Errorf("%w: #%s", ErrNotFound, start)
	}
	if end == "" || end == start {
		return dom.SelectNodes(first, first), nil
	}
	last := dom.ByID(d.Root, end)
	if last == nil {
		return nil, fmt.Errorf("%w: #%s", ErrNotFound, end)
	}
	if dom.IsAncestor(first, last) {
		return dom.SelectNodes(first, first), nil
	}
	return dom.SelectNodes(first, last), nil
}

// SelectText returns a range over the first occurrence of phrase in the
// body, as a user would select it with the mouse.
func (d *Document) SelectText(phrase string) (*dom.Range, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, fmt.Errorf("%w: empty phrase", ErrNotFound)
	}
	all := d.All()
	if !strings.Contains(all.String(), phrase) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, phrase)
	}
	lc := locate.New(locate.WithLogger(log.New(io.Discard)))
	return lc.Locate(all, phrase, 0), nil
}

// IDs returns the ids of the elements that carry one, in document order.
func (d *Document) IDs() []string {
	var ids []string
	dom.FindElement(d.Root, func(n *html.Node) bool {
		if id := dom.Attr(n, "id"); id != "" {
			ids = append(ids, id)
		}
		return false
	})
	return ids
}

// Render serializes the current tree, highlights included.
func (d *Document) Render() string {
	return dom.Render(d.Root)
}
