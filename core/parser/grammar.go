package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/versecorpus/core/errors"
)

// Kind is the classification of one normalized line.
type Kind int

const (
	// Continuation extends the open verse.
	Continuation Kind = iota
	// ChapterHeading opens a chapter of a (possibly new) book.
	ChapterHeading
	// VerseStart opens a new verse.
	VerseStart
)

func (k Kind) String() string {
	switch k {
	case ChapterHeading:
		return "chapter_heading"
	case VerseStart:
		return "verse_start"
	default:
		return "continuation"
	}
}

// MatchState is the accumulator state a grammar may consult to break ties.
type MatchState struct {
	ChapterOpen bool
	VerseOpen   bool
}

// Classification is the result of classifying a line. Book and Chapter are
// set for headings and for inline verse starts; Verse for verse starts.
type Classification struct {
	Kind    Kind
	Book    string
	Chapter int
	Verse   int
	Text    string
	// Ambiguous is set when the line matched both a heading and a verse
	// start and the tie was broken by state.
	Ambiguous bool
}

// ReferenceGrammar classifies lines for one reference shape. Classify must
// not depend on anything but its arguments.
type ReferenceGrammar interface {
	Name() string
	Classify(line string, state MatchState) Classification
}

// bookName matches one or more letter words, optionally preceded by an
// ordinal such as the "1" of "1 Samuel".
const bookName = `(?:\d+\s+)?\p{L}[\p{L}\p{M}'’]*(?:\s+\p{L}[\p{L}\p{M}'’]*)*`

var (
	headingRe    = regexp.MustCompile(`^(` + bookName + `)\s+(\d+)$`)
	verseStartRe = regexp.MustCompile(`^(\d+)\s*(.*)$`)
	inlineRe     = regexp.MustCompile(`^((?:\d+\s*)?\p{L}[\p{L}\p{M}'’]*(?:\s+\p{L}[\p{L}\p{M}'’]*)*?)\s+(\d+)\s*:\s*(\d+)\s*(.*)$`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// SplitHeadingGrammar handles dumps where "Acakki 19" stands on its own line
// and verse lines begin with a bare number, often glued to the text.
type SplitHeadingGrammar struct {
	// Books, when non-empty, restricts headings to these names. A listed
	// book also wins a heading/verse tie while a chapter is open.
	Books []string
}

// Name implements ReferenceGrammar.
func (g *SplitHeadingGrammar) Name() string { return "split" }

func (g *SplitHeadingGrammar) knownBook(name string) bool {
	for _, b := range g.Books {
		if b == name {
			return true
		}
	}
	return false
}

// Classify implements ReferenceGrammar.
func (g *SplitHeadingGrammar) Classify(line string, state MatchState) Classification {
	var (
		heading    *Classification
		verseStart *Classification
	)

	if m := headingRe.FindStringSubmatch(line); m != nil {
		book := spaceRe.ReplaceAllString(m[1], " ")
		if len(g.Books) == 0 || g.knownBook(book) {
			if n, err := strconv.Atoi(m[2]); err == nil {
				heading = &Classification{Kind: ChapterHeading, Book: book, Chapter: n}
			}
		}
	}
	if m := verseStartRe.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			verseStart = &Classification{Kind: VerseStart, Verse: n, Text: strings.TrimSpace(m[2])}
		}
	}

	switch {
	case heading != nil && verseStart != nil:
		winner := heading
		if state.ChapterOpen && !g.knownBook(heading.Book) {
			winner = verseStart
		}
		winner.Ambiguous = true
		return *winner
	case heading != nil:
		return *heading
	case verseStart != nil:
		return *verseStart
	}
	return Classification{Kind: Continuation, Text: line}
}

// InlineReferenceGrammar handles dumps where every verse line carries its
// full reference, as in "Nwoyo Cik 1:1 Man gin lok ma". Book names are
// matched lazily up to the trailing chapter:verse pair.
type InlineReferenceGrammar struct{}

// Name implements ReferenceGrammar.
func (InlineReferenceGrammar) Name() string { return "inline" }

// Classify implements ReferenceGrammar.
func (InlineReferenceGrammar) Classify(line string, _ MatchState) Classification {
	m := inlineRe.FindStringSubmatch(line)
	if m == nil {
		return Classification{Kind: Continuation, Text: line}
	}
	chapter, err1 := strconv.Atoi(m[2])
	verse, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil {
		return Classification{Kind: Continuation, Text: line}
	}
	return Classification{
		Kind:    VerseStart,
		Book:    spaceRe.ReplaceAllString(m[1], " "),
		Chapter: chapter,
		Verse:   verse,
		Text:    strings.TrimSpace(m[4]),
	}
}

// GrammarNames lists the names GrammarByName accepts.
func GrammarNames() []string { return []string{"split", "inline"} }

// GrammarByName returns the grammar registered under name.
func GrammarByName(name string) (ReferenceGrammar, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "split", "split-heading":
		return &SplitHeadingGrammar{}, nil
	case "inline", "inline-reference":
		return InlineReferenceGrammar{}, nil
	}
	return nil, errors.NewUnsupported("grammar", fmt.Sprintf("unknown name %q (want one of %s)", name, strings.Join(GrammarNames(), ", ")))
}
