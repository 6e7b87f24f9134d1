// Package tokenizer splits message text into lowercase words for the word
// statistics. A word is a maximal run of letters, digits and underscores.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
	"i": {}, "you": {}, "me": {}, "my": {}, "we": {},
}

// Options filter the words Tokenize keeps. The zero value keeps every word.
type Options struct {
	SkipStopWords bool
	MinLength     int
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Words returns every word of text, lowercased, in order.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

// Tokenize returns the words of text that pass opts, in order.
func Tokenize(text string, opts Options) []string {
	words := Words(text)
	if opts == (Options{}) {
		return words
	}
	kept := words[:0]
	for _, word := range words {
		if utf8.RuneCountInString(word) < opts.MinLength {
			continue
		}
		if opts.SkipStopWords && IsStopWord(word) {
			continue
		}
		kept = append(kept, word)
	}
	return kept
}

// UniqueTokens returns the distinct words of Tokenize(text, opts) in
// first-seen order.
func UniqueTokens(text string, opts Options) []string {
	words := Tokenize(text, opts)
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// IsStopWord reports whether word is too common to be interesting.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
