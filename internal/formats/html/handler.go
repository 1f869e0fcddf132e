// Package html provides the handler for verse dumps saved as web pages.
//
// Loading extracts the text of block elements in document order, one line
// per block (and per <br> or preformatted line), and hands the lines to the
// parser. Emitting writes a page with one heading per chapter and one
// paragraph per verse, which the split-heading grammar reads back.
package html

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/formats/base"
	"github.com/FocuswithJustin/versecorpus/internal/formats/txt"
)

// Name is the registry key of this format.
const Name = "html"

// blockSelector lists the elements whose text becomes parser lines.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre"

// Handler implements formats.Format, formats.Loader and formats.Emitter.
type Handler struct{}

var detectConfig = base.DetectConfig{
	Extensions:     []string{".html", ".htm"},
	ContentMarkers: []string{"<!DOCTYPE html", "<!doctype html", "<html"},
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
func (h *Handler) Extensions() []string { return []string{".html", ".htm"} }

// Detect implements formats.Format.
func (h *Handler) Detect(path string, data []byte) bool {
	return detectConfig.Detect(path, data) || base.HasExtension(path, h.Extensions()...)
}

// Load implements formats.Loader.
func (h *Handler) Load(data []byte, opts formats.LoadOptions) (*corpus.Corpus, error) {
	text, err := ExtractText(data)
	if err != nil {
		return nil, err
	}
	text, err = txt.Strip(text, opts.StripPatterns)
	if err != nil {
		return nil, err
	}
	return opts.ParseText(text), nil
}

// ExtractText returns the text of the block elements of an HTML document,
// one line per block. Blocks nested in other blocks are read once, as part
// of the outer block.
func ExtractText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", errors.WrapParse("HTML", "", err)
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("script, style").Remove()

	var lines []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		for _, line := range strings.Split(s.Text(), "\n") {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				lines = append(lines, line)
			}
		}
	})
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// Emit implements formats.Emitter.
func (h *Handler) Emit(c *corpus.Corpus, opts formats.EmitOptions) ([]byte, error) {
	v, err := opts.SelectVersion(c)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n</head>\n<body>\n", stdhtml.EscapeString(v.Name))
	for _, b := range v.Books {
		name := stdhtml.EscapeString(b.Name)
		for _, ch := range b.Chapters {
			fmt.Fprintf(&buf, "<h2>%s %d</h2>\n", name, ch.Number)
			for _, vs := range ch.Verses {
				fmt.Fprintf(&buf, "<p>%d %s</p>\n", vs.Number, stdhtml.EscapeString(vs.Text))
			}
		}
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}
