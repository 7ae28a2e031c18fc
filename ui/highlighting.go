package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/muesli/reflow/wordwrap"
)

// piece is a run of text that is either highlighted or not.
type piece struct {
	text string
	on   bool
}

// pieces splits text around the highlighted sentence. index -1 with
// ModeFullSelection highlights everything; otherwise -1 highlights nothing.
func pieces(text string, sentences []tts.Sentence, index int, mode tts.HighlightMode, active bool) []piece {
	if !active {
		return []piece{{text: text}}
	}
	if mode == tts.ModeFullSelection {
		return []piece{{text: text, on: true}}
	}
	if index < 0 || index >= len(sentences) {
		return []piece{{text: text}}
	}

	s := sentences[index]
	start, end := s.Start, s.End
	if start < 0 || end > len(text) || start >= end {
		// Offsets from another text; fall back to a search.
		start = strings.Index(text, s.Text)
		if start < 0 {
			return []piece{{text: text}}
		}
		end = start + len(s.Text)
	}

	var out []piece
	if start > 0 {
		out = append(out, piece{text: text[:start]})
	}
	out = append(out, piece{text: text[start:end], on: true})
	if end < len(text) {
		out = append(out, piece{text: text[end:]})
	}
	return out
}

// renderText styles the highlighted piece and wraps the result at width.
func renderText(ps []piece, style lipgloss.Style, width int) string {
	var b strings.Builder
	for _, p := range ps {
		if !p.on {
			b.WriteString(p.text)
			continue
		}
		// Style lines one by one so lipgloss does not pad them to a block.
		lines := strings.Split(p.text, "\n")
		for i, line := range lines {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	}
	if width <= 0 {
		return b.String()
	}
	return wordwrap.String(b.String(), width)
}

// lineOf returns the wrapped line on which offset falls.
func lineOf(text string, offset, width int) int {
	if offset <= 0 {
		return 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	prefix := text[:offset]
	if width > 0 {
		prefix = wordwrap.String(prefix, width)
	}
	return strings.Count(prefix, "\n")
}
