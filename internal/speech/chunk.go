package speech

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitText cuts text into pieces of at most max bytes for providers with a
// request size limit. It prefers sentence ends, then whitespace, and only
// splits inside a word when a single word is longer than max. Chunks keep
// their original characters, so joining them gives back text minus the
// whitespace at the cut points.
func SplitText(text string, max int) []string {
	if max <= 0 || len(text) <= max {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	rest := text
	for len(rest) > max {
		cut := cutPoint(rest, max)
		chunk := strings.TrimRightFunc(rest[:cut], unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = strings.TrimLeftFunc(rest[cut:], unicode.IsSpace)
	}
	if strings.TrimSpace(rest) != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

func cutPoint(s string, max int) int {
	window := s[:max]

	if i := strings.LastIndexAny(window, ".!?;\n"); i > 0 {
		return i + 1
	}
	if i := strings.LastIndexFunc(window, unicode.IsSpace); i > 0 {
		_, size := utf8.DecodeRuneInString(window[i:])
		return i + size
	}

	// back off to a rune boundary
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return cut
}
