// Package parser turns line-oriented verse dumps into a corpus.
//
// A parse runs one pipeline: lines are normalized, each line is classified
// by a ReferenceGrammar, the accumulator folds the classifications into
// books, chapters and verses, every verse is cleaned, and finally chapters
// and verses are sorted. Parsing never fails: lines that cannot be placed
// are dropped and reported through Options.OnDiagnostic.
package parser

import (
	"io"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/errors"
)

// DefaultVersionName names the single version of a parsed corpus when the
// caller does not.
const DefaultVersionName = "Bible"

// Options configures a parse.
type Options struct {
	// Grammar classifies lines. Nil means SplitHeadingGrammar.
	Grammar ReferenceGrammar
	// VersionName labels the produced version.
	VersionName string
	// StripContinuationQuotes removes a stray quote from each end of a
	// continuation line before it is joined.
	StripContinuationQuotes bool
	// Duplicates decides how repeated verse numbers are stored.
	Duplicates DuplicatePolicy
	// NormalizeUnicode applies NFC to every line.
	NormalizeUnicode bool
	// SkipClean leaves verse text exactly as assembled.
	SkipClean bool
	// OnDiagnostic receives dropped, ambiguous and merged lines.
	OnDiagnostic Sink
}

// DefaultOptions returns the options suited to a grammar. Inline dumps
// carry stray wrapping quotes on continuation lines; split dumps keep
// theirs because they close real quotations.
func DefaultOptions(g ReferenceGrammar) Options {
	if g == nil {
		g = &SplitHeadingGrammar{}
	}
	_, inline := g.(InlineReferenceGrammar)
	return Options{
		Grammar:                 g,
		VersionName:             DefaultVersionName,
		StripContinuationQuotes: inline,
		Duplicates:              DuplicateReplace,
	}
}

// Stats counts what one parse saw.
type Stats struct {
	Lines           int `json:"lines"`
	Headings        int `json:"headings"`
	VerseStarts     int `json:"verse_starts"`
	Continuations   int `json:"continuations"`
	Dropped         int `json:"dropped"`
	MultiLineVerses int `json:"multi_line_verses"`
	EmptyVerses     int `json:"empty_verses"`
	Books           int `json:"books"`
	Chapters        int `json:"chapters"`
	Verses          int `json:"verses"`
}

// Parser runs the pipeline with fixed options. A Parser is not safe for
// concurrent use; create one per goroutine.
type Parser struct {
	opts  Options
	stats Stats
}

// New creates a parser.
func New(opts Options) *Parser {
	if opts.Grammar == nil {
		opts.Grammar = &SplitHeadingGrammar{}
	}
	if opts.VersionName == "" {
		opts.VersionName = DefaultVersionName
	}
	if opts.Duplicates == "" {
		opts.Duplicates = DuplicateReplace
	}
	return &Parser{opts: opts}
}

// Options returns the effective options.
func (p *Parser) Options() Options { return p.opts }

// Stats returns the counters of the most recent Parse.
func (p *Parser) Stats() Stats { return p.stats }

// Parse builds a corpus with a single version from text. Empty or
// unrecognizable input yields a version with no books.
func (p *Parser) Parse(text string) *corpus.Corpus {
	p.stats = Stats{}
	c := corpus.New(p.opts.VersionName)
	acc := &accumulator{
		version:     c.Versions[0],
		stripQuotes: p.opts.StripContinuationQuotes,
		duplicates:  p.opts.Duplicates,
		emit:        p.opts.OnDiagnostic,
		stats:       &p.stats,
	}

	lineNo := 0
	for line := range Lines(text, LineOptions{NormalizeUnicode: p.opts.NormalizeUnicode}) {
		lineNo++
		acc.apply(lineNo, line, p.opts.Grammar.Classify(line, acc.state()))
	}
	acc.closeVerse()
	p.stats.Lines = lineNo

	p.finish(c, acc)
	return c
}

// finish cleans every verse, reports the empty ones and sorts.
func (p *Parser) finish(c *corpus.Corpus, acc *accumulator) {
	corpus.Walk(c, func(_ *corpus.Version, b *corpus.Book, ch *corpus.Chapter, vs *corpus.Verse) {
		if !p.opts.SkipClean {
			vs.Text = Clean(vs.Text)
		}
		if vs.Text == "" {
			p.stats.EmptyVerses++
			acc.book, acc.chapter = b, ch
			acc.report(Diagnostic{
				Kind:    EmptyVerse,
				Ref:     acc.ref(vs.Number),
				Message: "verse has no text",
			})
		}
	})
	corpus.Sort(c)

	n := corpus.Count(c)
	p.stats.Books, p.stats.Chapters, p.stats.Verses = n.Books, n.Chapters, n.Verses
}

// Parse is a convenience wrapper around New(opts).Parse(text).
func Parse(text string, opts Options) *corpus.Corpus {
	return New(opts).Parse(text)
}

// ParseReader reads all of r and parses it. Only the read can fail.
func ParseReader(r io.Reader, opts Options) (*corpus.Corpus, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", "", err)
	}
	return Parse(string(data), opts), nil
}
