package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespaceRe     = regexp.MustCompile(`\s+`)
	spaceBeforePunct = regexp.MustCompile(`\s+([.,;:!?])`)
	apostropheRe     = regexp.MustCompile(`(\p{L})\s*(['’])\s*(s|t|d|m|ll|re|ve)\b`)
)

// Clean normalizes the spacing of an assembled verse:
//
//  1. runs of whitespace become one space
//  2. whitespace before . , ; : ! ? is removed
//  3. no space just inside quotation marks
//  4. contractions and possessives are rejoined ("Lot 's" → "Lot's")
//  5. leading and trailing whitespace is trimmed
//
// Clean(Clean(s)) == Clean(s) for every s.
func Clean(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	s = tightenQuotes(s)
	s = joinContractions(s)
	return strings.TrimSpace(s)
}

// joinContractions repeats the apostrophe rewrite until nothing changes;
// adjacent contractions share a letter, which one pass cannot reuse.
func joinContractions(s string) string {
	for {
		next := apostropheRe.ReplaceAllString(s, "$1$2$3")
		if next == s {
			return s
		}
		s = next
	}
}

// tightenQuotes drops spaces just inside quotation marks. Curly quotes say
// which side they are on. A straight double quote is read from its
// neighbours: glued to a word on the left only, it closes; glued on the
// right only, it opens. Quotations often span verses, so a quote with no
// telling neighbour takes the side opposite to the straight quote before it.
func tightenQuotes(s string) string {
	if !strings.ContainsAny(s, "\"“”") {
		return s
	}
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	lastOpened := false
	skipSpace := false
	for i, r := range runes {
		if skipSpace && unicode.IsSpace(r) {
			continue
		}
		skipSpace = false

		closing := false
		switch r {
		case '"':
			closing = straightCloses(out, runes[i+1:], lastOpened)
			lastOpened = !closing
			skipSpace = !closing
		case '“':
			skipSpace = true
		case '”':
			closing = true
		}
		if closing {
			for len(out) > 0 && unicode.IsSpace(out[len(out)-1]) {
				out = out[:len(out)-1]
			}
		}
		out = append(out, r)
	}
	return string(out)
}

// straightCloses reports whether a straight quote between before and after
// closes a quotation. Spaces, quote marks and the ends of the verse are
// boundaries.
func straightCloses(before, after []rune, lastOpened bool) bool {
	boundaryBefore := len(before) == 0 || quoteBoundary(before[len(before)-1])
	boundaryAfter := len(after) == 0 || quoteBoundary(after[0])
	switch {
	case !boundaryBefore && boundaryAfter:
		return true
	case boundaryBefore && !boundaryAfter:
		return false
	}
	return lastOpened
}

func quoteBoundary(r rune) bool {
	return unicode.IsSpace(r) || r == '"' || r == '“' || r == '”'
}
