package logging

import (
	"context"

	"github.com/FocuswithJustin/versecorpus/core/parser"
)

// DiagnosticSink returns a parser.Sink that logs each diagnostic with the
// logger of ctx. Lines the parser threw away go through LineDropped at warn
// level, reassembled verses through MultiLineVerse, and everything else is
// a debug "parse_diagnostic" record. args are added to every record.
func DiagnosticSink(ctx context.Context, args ...any) parser.Sink {
	return func(d parser.Diagnostic) {
		switch d.Kind {
		case parser.OrphanContinuation, parser.OrphanVerse:
			LineDropped(ctx, d.Line, string(d.Kind), d.Text, append([]any{"message", d.Message}, args...)...)
		case parser.MultiLineVerse:
			MultiLineVerse(ctx, d.Ref, d.Line, append([]any{"message", d.Message}, args...)...)
		case parser.DuplicateVerse:
			LoggerFromContext(ctx).Warn("parse_diagnostic", diagnosticArgs(d, args)...)
		default:
			LoggerFromContext(ctx).Debug("parse_diagnostic", diagnosticArgs(d, args)...)
		}
	}
}

func diagnosticArgs(d parser.Diagnostic, args []any) []any {
	return append([]any{
		"kind", string(d.Kind),
		"line", d.Line,
		"ref", d.Ref,
		"text", d.Text,
		"message", d.Message,
	}, args...)
}
