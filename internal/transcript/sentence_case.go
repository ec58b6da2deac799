package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// abbreviations end with a period that does not close a sentence.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "e.g": {}, "i.e": {}, "approx": {}, "cf": {},
	"fig": {}, "no": {}, "vol": {}, "dept": {}, "inc": {}, "ltd": {},
}

// lowercaseStarts stay lowercase even when they open a sentence.
var lowercaseStarts = map[string]struct{}{
	"e.g.": {}, "i.e.": {}, "etc.": {}, "vs.": {},
}

const (
	openingMarks = `"'([{“‘`
	closingMarks = `"')]}”’`
)

func capitalizeSentenceStarts(words []string) {
	atStart := true
	for i, word := range words {
		if atStart {
			words[i] = capitalizeWord(word)
		}
		atStart = endsSentence(word)
	}
}

// capitalizeWord upper-cases the first letter after any opening marks.
func capitalizeWord(word string) string {
	core := strings.TrimLeft(word, openingMarks)
	if _, ok := lowercaseStarts[strings.ToLower(core)]; ok {
		return word
	}
	r, size := utf8.DecodeRuneInString(core)
	if r == utf8.RuneError || !unicode.IsLetter(r) {
		return word
	}
	prefix := word[:len(word)-len(core)]
	return prefix + string(unicode.ToUpper(r)) + core[size:]
}

// endsSentence reports whether word closes a sentence.
func endsSentence(word string) bool {
	core := strings.TrimRight(word, closingMarks)
	if core == "" {
		return false
	}
	switch core[len(core)-1] {
	case '!', '?':
		return true
	case '.':
	default:
		return false
	}

	token := strings.ToLower(strings.TrimLeft(strings.TrimSuffix(core, "."), openingMarks))
	if strings.HasSuffix(token, ".") {
		// Ellipsis.
		return true
	}
	if _, ok := abbreviations[token]; ok {
		return false
	}
	return !isInitialism(token)
}

// isInitialism matches dotted letter runs such as "u.s" or a single initial
// such as "j".
func isInitialism(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) == 1 {
		return utf8.RuneCountInString(token) == 1 && token != "i" && token != "a"
	}
	for _, part := range parts {
		if utf8.RuneCountInString(part) != 1 {
			return false
		}
	}
	return true
}
