// Package transcript cleans recognized speech before it becomes an editable answer.
package transcript

import "strings"

// Options controls transcript normalization.
type Options struct {
	CapitalizeSentences bool
}

// Normalize collapses whitespace and, when enabled, applies sentence case and
// capitalizes the pronoun "I".
func Normalize(text string, opts Options) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if opts.CapitalizeSentences {
		capitalizeSentenceStarts(words)
		capitalizePronounI(words)
	}
	return strings.Join(words, " ")
}
