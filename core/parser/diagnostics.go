package parser

import "fmt"

// DiagnosticKind names a recoverable parse event.
type DiagnosticKind string

const (
	// OrphanContinuation is a continuation seen before any verse was open.
	OrphanContinuation DiagnosticKind = "orphan_continuation"
	// OrphanVerse is a split-shape verse start seen before any chapter heading.
	OrphanVerse DiagnosticKind = "orphan_verse"
	// DuplicateVerse is a verse number repeated within a chapter.
	DuplicateVerse DiagnosticKind = "duplicate_verse"
	// ChapterReopened is a heading for a chapter that already exists.
	ChapterReopened DiagnosticKind = "chapter_reopened"
	// AmbiguousLine matched both a heading and a verse start.
	AmbiguousLine DiagnosticKind = "ambiguous_line"
	// MultiLineVerse is a verse reassembled from more than one line.
	MultiLineVerse DiagnosticKind = "multi_line_verse"
	// EmptyVerse is a verse whose text is empty after cleaning.
	EmptyVerse DiagnosticKind = "empty_verse"
)

// Diagnostic describes one recoverable event. Line is 1-based over the
// normalized (non-empty) lines.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Line    int            `json:"line,omitempty"`
	Text    string         `json:"text,omitempty"`
	Ref     string         `json:"ref,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", d.Line, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Sink receives diagnostics as they occur.
type Sink func(Diagnostic)

// Collector is a Sink that keeps every diagnostic.
type Collector struct {
	Diagnostics []Diagnostic
}

// Sink returns the collecting function.
func (c *Collector) Sink() Sink {
	return func(d Diagnostic) { c.Diagnostics = append(c.Diagnostics, d) }
}

// Count returns how many diagnostics of the given kind were collected.
func (c *Collector) Count(kind DiagnosticKind) int {
	n := 0
	for _, d := range c.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Tee fans one diagnostic out to several sinks; nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	return func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s(d)
			}
		}
	}
}
