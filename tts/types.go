package tts

import (
	"sort"
	"strconv"
	"time"

	"github.com/dgnsrekt/readaloud/dom"
	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// Sentence is one unit of speech anchored to the selection it came from.
type Sentence struct {
	Index   int        // Position in the session's sentence list
	Text    string     // Trimmed sentence text
	Element *html.Node // Block element the sentence came from, nil for inline selections
	Start   int        // Offset into the flattened selection text
	End     int        // End offset into the flattened selection text
}

// Marker names bounding a whole utterance.
const (
	MarkerStart = "start"
	MarkerEnd   = "end"
)

// MarkerName returns the SSML mark name for a sentence index.
func MarkerName(index int) string {
	return "s" + strconv.Itoa(index)
}

// IsSentinel reports whether name is one of the utterance boundary markers.
func IsSentinel(name string) bool {
	return name == MarkerStart || name == MarkerEnd
}

// MarkerMap maps mark names to sentence indices and back. The zero value is
// an empty map.
type MarkerMap struct {
	names []string
	index map[string]int
}

// NewMarkerMap builds the map for n sentences.
func NewMarkerMap(n int) MarkerMap {
	if n < 0 {
		n = 0
	}
	m := MarkerMap{
		names: make([]string, n),
		index: make(map[string]int, n),
	}
	for i := 0; i < n; i++ {
		name := MarkerName(i)
		m.names[i] = name
		m.index[name] = i
	}
	return m
}

// Index returns the sentence index for a mark name. Sentinels and unknown
// names report false.
func (m MarkerMap) Index(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// Name returns the mark name of sentence i.
func (m MarkerMap) Name(i int) (string, bool) {
	if i < 0 || i >= len(m.names) {
		return "", false
	}
	return m.names[i], true
}

// Len returns the number of sentence markers.
func (m MarkerMap) Len() int {
	return len(m.names)
}

// TimingEntry is a server-reported offset of a mark in the audio.
type TimingEntry struct {
	MarkerName string
	Offset     float64 // Seconds from the start of the audio
}

// Delay returns the offset as a duration.
func (t TimingEntry) Delay() time.Duration {
	return time.Duration(t.Offset * float64(time.Second))
}

// SortTimings orders entries by ascending offset, keeping the server order
// for equal offsets.
func SortTimings(entries []TimingEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Offset < entries[j].Offset
	})
}

// HighlightMode selects what the cursor highlights.
type HighlightMode int

const (
	// ModeSentence highlights one sentence at a time.
	ModeSentence HighlightMode = iota
	// ModeFullSelection highlights the whole selection once.
	ModeFullSelection
)

// String returns the string representation of the mode.
func (m HighlightMode) String() string {
	switch m {
	case ModeSentence:
		return "sentence"
	case ModeFullSelection:
		return "selection"
	default:
		return "unknown"
	}
}

// HighlightState is a snapshot of the highlight cursor.
type HighlightState struct {
	State        StateType
	CurrentIndex int          // -1 when nothing is highlighted
	ActiveNodes  []*html.Node // Wrapper elements owned by the cursor
	Mode         HighlightMode
}

// HighlightEvent describes a highlight that was just applied.
type HighlightEvent struct {
	SessionID uuid.UUID
	Index     int // -1 in full selection mode
	Total     int
	Mode      HighlightMode
	Range     *dom.Range
	Text      string
}

// Session aggregates everything that belongs to one speak action.
type Session struct {
	ID          uuid.UUID
	Selection   *dom.Range
	Text        string
	Sentences   []Sentence
	Markers     MarkerMap
	Timings     []TimingEntry
	Mode        HighlightMode
	Highlighter Highlighter
	CreatedAt   time.Time
}

// NewSession creates a session for the given selection and sentences.
func NewSession(selection *dom.Range, sentences []Sentence, mode HighlightMode) *Session {
	return &Session{
		ID:        uuid.New(),
		Selection: selection,
		Sentences: sentences,
		Markers:   NewMarkerMap(len(sentences)),
		Mode:      mode,
		CreatedAt: time.Now(),
	}
}

// HasTimings reports whether the session can replay server timepoints.
func (s *Session) HasTimings() bool {
	return len(s.Timings) > 0
}
