package ssml_test

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/ssml"
)

func sentences(texts ...string) []tts.Sentence {
	out := make([]tts.Sentence, len(texts))
	for i, s := range texts {
		out[i] = tts.Sentence{Index: i, Text: s}
	}
	return out
}

func TestBuild(t *testing.T) {
	markup, _ := ssml.Build(sentences("Hello there.", "Fish & chips <cheap>!"))

	want := `<speak><mark name="start"/><mark name="s0"/>Hello there. <mark name="s1"/>Fish &amp; chips &lt;cheap&gt;!<mark name="end"/></speak>`
	if markup != want {
		t.Errorf("got  %s\nwant %s", markup, want)
	}

	if err := xml.Unmarshal([]byte(markup), new(struct{})); err != nil {
		t.Errorf("markup is not well-formed: %v", err)
	}
}

func TestBuildEmpty(t *testing.T) {
	markup, markers := ssml.Build(nil)
	if markup != `<speak><mark name="start"/><mark name="end"/></speak>` {
		t.Errorf("unexpected markup %s", markup)
	}
	if markers.Len() != 0 {
		t.Errorf("expected empty marker map, got %d", markers.Len())
	}
}

func TestBuildDeterministic(t *testing.T) {
	in := sentences("One.", "Two \"quoted\".", "It's three.")
	a, _ := ssml.Build(in)
	b, _ := ssml.Build(in)
	if a != b {
		t.Errorf("markup differs between runs:\n%s\n%s", a, b)
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	for n := 0; n <= 100; n++ {
		texts := make([]string, n)
		for i := range texts {
			texts[i] = "Sentence."
		}
		markup, markers := ssml.Build(sentences(texts...))

		if markers.Len() != n {
			t.Fatalf("n=%d: marker map has %d entries", n, markers.Len())
		}
		for k := 0; k < n; k++ {
			name := tts.MarkerName(k)
			idx, ok := markers.Index(name)
			if !ok || idx != k {
				t.Fatalf("n=%d: %s maps to %d, %v", n, name, idx, ok)
			}
			if !strings.Contains(markup, `<mark name="`+name+`"/>`) {
				t.Fatalf("n=%d: markup lacks mark %s", n, name)
			}
		}
		for _, sentinel := range []string{tts.MarkerStart, tts.MarkerEnd} {
			if _, ok := markers.Index(sentinel); ok {
				t.Fatalf("n=%d: sentinel %q maps to a sentence", n, sentinel)
			}
		}
	}
}

func TestBuildPlain(t *testing.T) {
	got := ssml.BuildPlain(`Tom's "best" <b>`)
	want := `<speak>Tom&#39;s &#34;best&#34; &lt;b&gt;</speak>`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if strings.Contains(got, "<mark") {
		t.Error("plain markup must not contain marks")
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello there.", "Hello there."},
		{"reserved", `a < b && "c" > 'd'`, "a &lt; b &amp;&amp; &#34;c&#34; &gt; &#39;d&#39;"},
		{"whitespace", "one\ttwo\nthree", "one&#x9;two&#xA;three"},
		{"control", "bell\x07", "bell\uFFFD"},
		{"unicode", "héllo ✓", "héllo ✓"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ssml.Escape(tt.in)
			if got != tt.want {
				t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
			}
			var text string
			if err := xml.Unmarshal([]byte("<t>"+got+"</t>"), &text); err != nil {
				t.Fatalf("escaped text is not valid XML: %v", err)
			}
		})
	}
}

func TestCharacters(t *testing.T) {
	if got := ssml.Characters("<speak>héllo</speak>"); got != 20 {
		t.Errorf("got %d, want 20", got)
	}
}
