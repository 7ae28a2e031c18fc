package sentence

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '’', '”':
		return true
	}
	return false
}

// split returns byte spans of s, breaking after a run of sentence-ending
// punctuation (plus closing quotes or brackets) that is followed by
// whitespace and an uppercase letter. The spans cover s without gaps.
func (d *Detector) split(s string) [][2]int {
	var spans [][2]int
	start := 0

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isTerminal(r) {
			i += size
			continue
		}

		j := i + size
		for j < len(s) {
			next, sz := utf8.DecodeRuneInString(s[j:])
			if !isTerminal(next) {
				break
			}
			j += sz
		}
		for j < len(s) {
			next, sz := utf8.DecodeRuneInString(s[j:])
			if !isCloser(next) {
				break
			}
			j += sz
		}

		k := j
		for k < len(s) {
			next, sz := utf8.DecodeRuneInString(s[k:])
			if !unicode.IsSpace(next) {
				break
			}
			k += sz
		}

		if k > j && k < len(s) {
			next, _ := utf8.DecodeRuneInString(s[k:])
			if unicode.IsUpper(next) && !d.abbreviated(s[start:i], r) {
				spans = append(spans, [2]int{start, j})
				start = j
				i = k
				continue
			}
		}
		i = j
	}

	if start < len(s) {
		spans = append(spans, [2]int{start, len(s)})
	}
	return spans
}

// abbreviated reports whether the period closing prefix ends a known
// abbreviation. It is always false unless abbreviations are enabled.
func (d *Detector) abbreviated(prefix string, punct rune) bool {
	if punct != '.' || len(d.abbreviations) == 0 {
		return false
	}
	word := prefix
	if i := strings.LastIndexFunc(prefix, unicode.IsSpace); i >= 0 {
		word = prefix[i+1:]
	}
	word = strings.ToLower(strings.TrimLeft(word, "\"'(["))
	if word == "" {
		return false
	}
	return d.abbreviations[word]
}

// makeAbbreviationMap creates a map of common abbreviations.
func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st",
		"ph.d", "m.d", "b.a", "m.a", "b.s",
		"inc", "ltd", "co", "corp", "llc",
		"i.e", "e.g", "etc", "vs", "cf", "al",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"u.s", "u.k", "u.n", "e.u",
		"no", "vol", "fig", "approx",
	}

	m := make(map[string]bool, len(abbrevs))
	for _, abbrev := range abbrevs {
		m[abbrev] = true
	}
	return m
}
