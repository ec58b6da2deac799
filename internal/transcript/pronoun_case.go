package transcript

import "strings"

var pronounISuffixes = []string{"", "'m", "'d", "'ll", "'ve", "'re", "'s"}

// capitalizePronounI rewrites standalone "i" and its contractions.
func capitalizePronounI(words []string) {
	for idx, word := range words {
		core := strings.Trim(word, openingMarks+closingMarks+".,;:!?")
		if !isPronounI(core) {
			continue
		}
		at := strings.Index(word, core)
		words[idx] = word[:at] + "I" + word[at+1:]
	}
}

func isPronounI(core string) bool {
	if core == "" || core[0] != 'i' {
		return false
	}
	rest := strings.ReplaceAll(core[1:], "’", "'")
	for _, suffix := range pronounISuffixes {
		if rest == suffix {
			return true
		}
	}
	return false
}
