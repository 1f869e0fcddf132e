package parser

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
)

// DuplicatePolicy decides what happens when a verse number repeats inside
// one chapter.
type DuplicatePolicy string

const (
	// DuplicateReplace keeps one verse per number; the later text wins and
	// continuation lines flow into it.
	DuplicateReplace DuplicatePolicy = "replace"
	// DuplicateKeep appends the repeated number as a second verse.
	DuplicateKeep DuplicatePolicy = "keep"
)

// ParseDuplicatePolicy maps a configuration value to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DuplicateReplace:
		return DuplicateReplace, nil
	case DuplicateKeep:
		return DuplicateKeep, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q (want replace or keep)", s)
}

// accumulator folds classified lines into one version. It holds the
// innermost open book, chapter and verse.
type accumulator struct {
	version *corpus.Version

	book    *corpus.Book
	chapter *corpus.Chapter
	verse   *corpus.Verse

	verseLine  int // line that opened the current verse
	verseParts int // physical lines absorbed by the current verse

	stripQuotes bool
	duplicates  DuplicatePolicy
	emit        Sink
	stats       *Stats
}

func (a *accumulator) state() MatchState {
	return MatchState{ChapterOpen: a.chapter != nil, VerseOpen: a.verse != nil}
}

func (a *accumulator) report(d Diagnostic) {
	if a.emit != nil {
		a.emit(d)
	}
}

func (a *accumulator) ref(n int) string {
	if a.book == nil || a.chapter == nil {
		return ""
	}
	return fmt.Sprintf("%s %d:%d", a.book.Name, a.chapter.Number, n)
}

// apply consumes one classified line.
func (a *accumulator) apply(lineNo int, line string, c Classification) {
	if c.Ambiguous {
		a.report(Diagnostic{
			Kind:    AmbiguousLine,
			Line:    lineNo,
			Text:    line,
			Message: "line matches both a chapter heading and a verse start; read as " + c.Kind.String(),
		})
	}

	switch c.Kind {
	case ChapterHeading:
		a.stats.Headings++
		a.closeVerse()
		a.openChapter(lineNo, c.Book, c.Chapter, true)

	case VerseStart:
		if c.Book != "" {
			if a.book == nil || a.book.Name != c.Book || a.chapter == nil || a.chapter.Number != c.Chapter {
				a.closeVerse()
				a.openChapter(lineNo, c.Book, c.Chapter, false)
			}
		}
		if a.chapter == nil {
			a.stats.Dropped++
			a.report(Diagnostic{
				Kind:    OrphanVerse,
				Line:    lineNo,
				Text:    line,
				Message: fmt.Sprintf("verse %d appears before any chapter heading", c.Verse),
			})
			return
		}
		a.stats.VerseStarts++
		a.closeVerse()
		a.openVerse(lineNo, c.Verse, c.Text)

	default:
		if a.verse == nil {
			a.stats.Dropped++
			a.report(Diagnostic{
				Kind:    OrphanContinuation,
				Line:    lineNo,
				Text:    line,
				Message: "continuation line with no open verse",
			})
			return
		}
		a.stats.Continuations++
		a.appendText(c.Text)
	}
}

func (a *accumulator) openChapter(lineNo int, bookName string, number int, fromHeading bool) {
	book, _ := a.version.FindOrCreateBook(bookName)
	chapter, created := book.FindOrCreateChapter(number)
	if !created && fromHeading {
		a.report(Diagnostic{
			Kind:    ChapterReopened,
			Line:    lineNo,
			Ref:     fmt.Sprintf("%s %d", bookName, number),
			Message: "chapter heading repeated; merging into the existing chapter",
		})
	}
	a.book, a.chapter, a.verse = book, chapter, nil
}

func (a *accumulator) openVerse(lineNo, number int, text string) {
	if existing := a.chapter.Verse(number); existing != nil {
		a.report(Diagnostic{
			Kind:    DuplicateVerse,
			Line:    lineNo,
			Ref:     a.ref(number),
			Text:    text,
			Message: fmt.Sprintf("verse number repeated; policy %s", a.duplicates),
		})
		if a.duplicates != DuplicateKeep {
			existing.Text = text
			a.verse = existing
			a.verseLine, a.verseParts = lineNo, 1
			return
		}
	}
	a.verse = a.chapter.AddVerse(number, text)
	a.verseLine, a.verseParts = lineNo, 1
}

func (a *accumulator) appendText(text string) {
	if a.stripQuotes {
		text = stripBoundingQuotes(text)
	}
	if text == "" {
		return
	}
	if a.verse.Text == "" {
		a.verse.Text = text
	} else {
		a.verse.Text += " " + text
	}
	a.verseParts++
}

// closeVerse reports verses that spanned several lines, then clears the
// open verse.
func (a *accumulator) closeVerse() {
	if a.verse != nil && a.verseParts > 1 {
		a.stats.MultiLineVerses++
		a.report(Diagnostic{
			Kind:    MultiLineVerse,
			Line:    a.verseLine,
			Ref:     a.ref(a.verse.Number),
			Message: fmt.Sprintf("verse assembled from %d lines", a.verseParts),
		})
	}
	a.verse = nil
	a.verseParts = 0
}

// boundingQuotes are the marks stripped from continuation fragments.
var boundingQuotes = []string{`"`, "'", "“", "”"}

// stripBoundingQuotes removes one stray quote mark from each end of a
// continuation fragment.
func stripBoundingQuotes(s string) string {
	for _, q := range boundingQuotes {
		if t, ok := strings.CutPrefix(s, q); ok {
			s = t
			break
		}
	}
	for _, q := range boundingQuotes {
		if t, ok := strings.CutSuffix(s, q); ok {
			s = t
			break
		}
	}
	return strings.TrimSpace(s)
}
