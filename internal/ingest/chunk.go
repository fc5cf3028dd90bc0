package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the maximum chunk length in runes.
const DefaultChunkSize = 1000

// Chunk packs the paragraphs of text into chunks of at most maxRunes runes.
// Paragraphs stay whole when they fit; longer ones are split on word
// boundaries, and words longer than maxRunes are cut.
func Chunk(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = DefaultChunkSize
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	add := func(piece, sep string) {
		n := utf8.RuneCountInString(piece)
		if curLen > 0 && curLen+utf8.RuneCountInString(sep)+n > maxRunes {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += utf8.RuneCountInString(sep)
		}
		cur.WriteString(piece)
		curLen += n
	}

	for _, para := range strings.Split(text, paragraphBreak) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= maxRunes {
			add(para, paragraphBreak)
			continue
		}
		flush()
		for _, piece := range splitWords(para, maxRunes) {
			add(piece, " ")
		}
		flush()
	}
	flush()

	return chunks
}

// splitWords returns the words of s, cutting any word longer than maxRunes.
func splitWords(s string, maxRunes int) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		for utf8.RuneCountInString(w) > maxRunes {
			r := []rune(w)
			out = append(out, string(r[:maxRunes]))
			w = string(r[maxRunes:])
		}
		out = append(out, w)
	}
	return out
}
