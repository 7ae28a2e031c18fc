// Package ssml builds the SSML documents sent to the synthesis service.
package ssml

import (
	"encoding/xml"
	"strings"
	"unicode/utf8"

	"github.com/dgnsrekt/readaloud/tts"
)

// Escape escapes s for use as XML character data. Characters outside the
// XML range become U+FFFD.
func Escape(s string) string {
	var b strings.Builder
	// strings.Builder never fails a write.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func writeMark(b *strings.Builder, name string) {
	b.WriteString(`<mark name="`)
	b.WriteString(name)
	b.WriteString(`"/>`)
}

// Build wraps the sentences in a speak document with a mark before each
// sentence and a start/end sentinel pair around the whole utterance. The
// returned map resolves mark names back to sentence indices.
func Build(sentences []tts.Sentence) (string, tts.MarkerMap) {
	markers := tts.NewMarkerMap(len(sentences))

	var b strings.Builder
	b.WriteString("<speak>")
	writeMark(&b, tts.MarkerStart)
	for i, s := range sentences {
		if i > 0 {
			b.WriteByte(' ')
		}
		name, _ := markers.Name(i)
		writeMark(&b, name)
		b.WriteString(Escape(s.Text))
	}
	writeMark(&b, tts.MarkerEnd)
	b.WriteString("</speak>")

	return b.String(), markers
}

// BuildPlain wraps text in a speak document without marks.
func BuildPlain(text string) string {
	return "<speak>" + Escape(text) + "</speak>"
}

// Characters returns the number of characters the service bills for markup.
func Characters(markup string) int {
	return utf8.RuneCountInString(markup)
}
