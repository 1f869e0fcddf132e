// Package txt provides the handler for line-oriented verse dumps.
//
// Loading runs the parser over the text. Emitting writes one inline
// reference line per verse ("Nwoyo Cik 1:1<TAB>text"), which is the shape
// the inline grammar reads back.
package txt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/formats/base"
)

// Name is the registry key of this format.
const Name = "txt"

// DefaultSeparator goes between reference and text in emitted lines.
const DefaultSeparator = "\t"

// Handler implements formats.Format, formats.Loader and formats.Emitter.
type Handler struct{}

var detectConfig = base.DetectConfig{
	Extensions: []string{".txt", ".text"},
}

// Register registers this format with the registry.
func Register() {
	formats.Register(&Handler{})
}

func init() {
	Register()
}

// Name implements formats.Format.
func (h *Handler) Name() string { return Name }

// Extensions implements formats.Format.
func (h *Handler) Extensions() []string { return []string{".txt", ".text"} }

// Detect implements formats.Format. Only the extension is checked; other
// undetected text reaches this format through the registry fallback.
func (h *Handler) Detect(path string, data []byte) bool {
	return detectConfig.Detect(path, data)
}

// Load implements formats.Loader.
func (h *Handler) Load(data []byte, opts formats.LoadOptions) (*corpus.Corpus, error) {
	text, err := Strip(string(data), opts.StripPatterns)
	if err != nil {
		return nil, err
	}
	return opts.ParseText(text), nil
}

// Strip removes every match of patterns from text.
func Strip(text string, patterns []string) (string, error) {
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return "", errors.NewValidation(fmt.Sprintf("strip_patterns[%d]", i), err.Error())
		}
		text = re.ReplaceAllString(text, "")
	}
	return text, nil
}

// Emit implements formats.Emitter.
func (h *Handler) Emit(c *corpus.Corpus, opts formats.EmitOptions) ([]byte, error) {
	v, err := opts.SelectVersion(c)
	if err != nil {
		return nil, err
	}
	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	var buf strings.Builder
	for _, b := range v.Books {
		for _, ch := range b.Chapters {
			for _, vs := range ch.Verses {
				fmt.Fprintf(&buf, "%s %d:%d%s%s\n", b.Name, ch.Number, vs.Number, sep, vs.Text)
			}
		}
	}
	return []byte(buf.String()), nil
}
