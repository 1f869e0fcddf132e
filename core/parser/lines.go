package parser

import (
	"iter"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// LineOptions tunes line normalization.
type LineOptions struct {
	// NormalizeUnicode applies NFC so precomposed and combining forms of the
	// same letter compare equal in book names.
	NormalizeUnicode bool
}

// Lines yields the trimmed, non-empty lines of text in order. "\n", "\r\n"
// and a lone "\r" all end a line. The sequence can be ranged over more
// than once.
func Lines(text string, opts LineOptions) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := text
		for len(rest) > 0 {
			i := strings.IndexAny(rest, "\r\n")
			var line string
			if i < 0 {
				line, rest = rest, ""
			} else {
				line = rest[:i]
				if rest[i] == '\r' && i+1 < len(rest) && rest[i+1] == '\n' {
					rest = rest[i+2:]
				} else {
					rest = rest[i+1:]
				}
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if opts.NormalizeUnicode {
				line = norm.NFC.String(line)
			}
			if !yield(line) {
				return
			}
		}
	}
}

// SplitLines collects Lines into a slice.
func SplitLines(text string, opts LineOptions) []string {
	var out []string
	for line := range Lines(text, opts) {
		out = append(out, line)
	}
	return out
}
