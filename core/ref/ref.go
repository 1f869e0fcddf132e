// Package ref parses human-written verse references such as "Genesis 1:1",
// "1 Kings 2:3-5" or "Nwoyo Cik 1".
package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/versecorpus/core/errors"
)

// Ref is a reference into a corpus. A zero Chapter means the whole book and
// a zero Verse the whole chapter.
type Ref struct {
	Book     string `json:"book"`
	Chapter  int    `json:"chapter,omitempty"`
	Verse    int    `json:"verse,omitempty"`
	VerseEnd int    `json:"verse_end,omitempty"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	Ordinal *int         `@Int?`
	Words   []string     `@Word+`
	Chapter *chapterPart `@@?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chapterPart struct {
	Number int        `@Int`
	Verse  *versePart `( (":" | ".") @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type versePart struct {
	Number int  `@Int`
	End    *int `( "-" @Int )?`
}

// refLexer splits references into numbers, words and separators. Words may
// carry diacritics and inner apostrophes.
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `\p{L}[\p{L}\p{M}'’]*`},
	{Name: "Punct", Pattern: `[:.\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a reference. Supported forms:
//   - "Acakki" (whole book)
//   - "Acakki 19" (whole chapter)
//   - "Acakki 19:2" (single verse)
//   - "Song of Solomon 2:1-3" (verse range)
//   - "1 Kings 2.3" (dot separator)
func Parse(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, errors.NewParse("reference", "", "empty reference")
	}

	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return Ref{}, errors.WrapParse("reference", s, err)
	}

	book := strings.Join(parsed.Words, " ")
	if parsed.Ordinal != nil {
		book = strconv.Itoa(*parsed.Ordinal) + " " + book
	}
	r := Ref{Book: book}

	if parsed.Chapter != nil {
		r.Chapter = parsed.Chapter.Number
		if parsed.Chapter.Verse != nil {
			r.Verse = parsed.Chapter.Verse.Number
			if parsed.Chapter.Verse.End != nil {
				r.VerseEnd = *parsed.Chapter.Verse.End
			}
		}
	}

	if r.Chapter < 0 || r.Verse < 0 {
		return Ref{}, errors.NewParse("reference", s, "negative number")
	}
	if r.VerseEnd != 0 && r.VerseEnd < r.Verse {
		return Ref{}, errors.NewParse("reference", s, fmt.Sprintf("range end %d before start %d", r.VerseEnd, r.Verse))
	}
	return r, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Ref {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String renders the reference in "Book C:V-W" form.
func (r Ref) String() string {
	var sb strings.Builder
	sb.WriteString(r.Book)
	if r.Chapter > 0 {
		fmt.Fprintf(&sb, " %d", r.Chapter)
		if r.Verse > 0 {
			fmt.Fprintf(&sb, ":%d", r.Verse)
			if r.VerseEnd > r.Verse {
				fmt.Fprintf(&sb, "-%d", r.VerseEnd)
			}
		}
	}
	return sb.String()
}

// Contains reports whether the chapter/verse pair falls inside the reference.
// The book is not compared.
func (r Ref) Contains(chapter, verse int) bool {
	if r.Chapter == 0 {
		return true
	}
	if chapter != r.Chapter {
		return false
	}
	if r.Verse == 0 {
		return true
	}
	end := r.VerseEnd
	if end == 0 {
		end = r.Verse
	}
	return verse >= r.Verse && verse <= end
}
