// Package extract holds the stateless lexical extractors. Every extractor is
// a pure function over a single message and may be called on raw text: input
// is normalized internally.
package extract

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrNoMatch    = errors.New("no value recognized")
	ErrOutOfRange = errors.New("value out of range")
)

// Boundaries around Cyrillic stems. RE2's \b only understands ASCII words.
const (
	lb = `(?:^|[^\p{L}\d])`
	rb = `(?:[^\p{L}]|$)`
)

var homoglyphs = strings.NewReplacer(
	"ё", "е",
	"\u00a0", " ", "\u2007", " ", "\u2009", " ", "\u202f", " ",
	"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2015", "-", "\u2212", "-",
	"«", "\"", "»", "\"", "\u201c", "\"", "\u201d", "\"", "\u201e", "\"",
	"\u2018", "'", "\u2019", "'",
)

// Normalize case-folds, unifies lookalike characters and collapses whitespace.
func Normalize(text string) string {
	s := norm.NFKC.String(text)
	s = strings.ToLower(s)
	s = homoglyphs.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// phraseKey reduces a short message to a comparable key: normalized, without
// punctuation, emoji, leading slash or politeness words.
func phraseKey(text string) string {
	s := Normalize(text)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '/' {
			return r
		}
		return ' '
	}, s)
	words := strings.Fields(s)
	out := words[:0]
	for _, w := range words {
		w = strings.TrimPrefix(w, "/")
		w = strings.Trim(w, "-")
		if w == "" || politeWords[w] {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

var politeWords = map[string]bool{
	"пожалуйста": true, "плиз": true, "please": true, "pls": true,
}
