package corpus

import (
	"strings"

	"github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/core/ref"
)

// Match is one verse selected by Lookup.
type Match struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

// Ref returns the single-verse reference of the match.
func (m Match) Ref() ref.Ref {
	return ref.Ref{Book: m.Book, Chapter: m.Chapter, Verse: m.Verse}
}

// FindBook resolves a book by exact name first, then case-insensitively.
func (v *Version) FindBook(name string) *Book {
	if b := v.Book(name); b != nil {
		return b
	}
	for _, b := range v.Books {
		if strings.EqualFold(b.Name, name) {
			return b
		}
	}
	return nil
}

// Lookup returns the verses of v selected by r, in corpus order. An unknown
// book or a reference selecting nothing is a NotFoundError.
func Lookup(v *Version, r ref.Ref) ([]Match, error) {
	if v == nil {
		return nil, errors.NewNotFound("version", "")
	}
	b := v.FindBook(r.Book)
	if b == nil {
		return nil, errors.NewNotFound("book", r.Book)
	}

	var out []Match
	for _, ch := range b.Chapters {
		for _, vs := range ch.Verses {
			if r.Contains(ch.Number, vs.Number) {
				out = append(out, Match{Book: b.Name, Chapter: ch.Number, Verse: vs.Number, Text: vs.Text})
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.NewNotFound("verse", r.String())
	}
	return out, nil
}
