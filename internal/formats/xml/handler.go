// Package xml provides the handler for XML bibles. Two layouts are read:
//
//	<bible><b n="Genesis"><c n="1"><v n="1">text</v></c></b></bible>
//	<XMLBIBLE><BIBLEBOOK bname="Genesis"><CHAPTER cnumber="1"><VERS vnumber="1">text</VERS>
//
// The first (as used by ESV exports) is also the emitted layout.
package xml

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/errors"
	cxml "github.com/FocuswithJustin/versecorpus/core/xml"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/formats/base"
)

// Name is the registry key of this format.
const Name = "xml"

// Handler implements formats.Format, formats.Loader and formats.Emitter.
type Handler struct{}

var detectConfig = base.DetectConfig{
	Extensions:     []string{".xml"},
	ContentMarkers: []string{"<bible", "<XMLBIBLE"},
}

// layout names the element and attribute spelling of one XML dialect.
type layout struct {
	root, book, chapter, verse string
	bookAttrs                  []string
	chapterAttrs               []string
	verseAttrs                 []string
	versionAttrs               []string
}

var layouts = []layout{
	{
		root: "bible", book: "b", chapter: "c", verse: "v",
		bookAttrs: []string{"n"}, chapterAttrs: []string{"n"}, verseAttrs: []string{"n"},
		versionAttrs: []string{"translation"},
	},
	{
		root: "XMLBIBLE", book: "BIBLEBOOK", chapter: "CHAPTER", verse: "VERS",
		bookAttrs: []string{"bname", "bsname"}, chapterAttrs: []string{"cnumber"}, verseAttrs: []string{"vnumber"},
		versionAttrs: []string{"biblename"},
	},
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
func (h *Handler) Extensions() []string { return []string{".xml"} }

// Detect implements formats.Format.
func (h *Handler) Detect(path string, data []byte) bool {
	return detectConfig.Detect(path, data)
}

// Load implements formats.Loader. The version name comes from the options,
// then from the root element, then the default.
func (h *Handler) Load(data []byte, opts formats.LoadOptions) (*corpus.Corpus, error) {
	doc, err := cxml.Parse(data)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.NewParse("XML", "", "document has no root element")
	}

	var l *layout
	for i := range layouts {
		if layouts[i].root == root.Name() {
			l = &layouts[i]
			break
		}
	}
	if l == nil {
		return nil, errors.NewUnsupported("XML root <"+root.Name()+">", "expected <bible> or <XMLBIBLE>")
	}

	name := opts.VersionName
	if name == "" {
		name = root.FirstAttr(l.versionAttrs...)
	}
	if name == "" {
		name = opts.Version()
	}
	c := corpus.New(name)
	v := c.Versions[0]

	books, err := root.XPath(l.book)
	if err != nil {
		return nil, err
	}
	for i, bn := range books {
		bookName := bn.FirstAttr(l.bookAttrs...)
		if bookName == "" {
			return nil, errors.NewParse("XML", fmt.Sprintf("%s[%d]", l.book, i+1), "book has no name")
		}
		book, _ := v.FindOrCreateBook(bookName)
		chapters, err := bn.XPath(l.chapter)
		if err != nil {
			return nil, err
		}
		for _, cn := range chapters {
			num, ok := cn.IntAttr(l.chapterAttrs...)
			if !ok {
				return nil, errors.NewParse("XML", bookName, "chapter without a number")
			}
			ch, _ := book.FindOrCreateChapter(num)
			verses, err := cn.XPath(l.verse)
			if err != nil {
				return nil, err
			}
			for _, vn := range verses {
				n, ok := vn.IntAttr(l.verseAttrs...)
				if !ok {
					return nil, errors.NewParse("XML", fmt.Sprintf("%s %d", bookName, num), "verse without a number")
				}
				ch.AddVerse(n, strings.Join(strings.Fields(vn.Text()), " "))
			}
		}
	}
	corpus.Sort(c)
	return c, nil
}

// Emit implements formats.Emitter.
func (h *Handler) Emit(c *corpus.Corpus, opts formats.EmitOptions) ([]byte, error) {
	v, err := opts.SelectVersion(c)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&buf, "<bible translation=\"%s\">\n", cxml.Escape(v.Name))
	for _, b := range v.Books {
		fmt.Fprintf(&buf, "  <b n=\"%s\">\n", cxml.Escape(b.Name))
		for _, ch := range b.Chapters {
			fmt.Fprintf(&buf, "    <c n=\"%d\">\n", ch.Number)
			for _, vs := range ch.Verses {
				fmt.Fprintf(&buf, "      <v n=\"%d\">%s</v>\n", vs.Number, cxml.Escape(vs.Text))
			}
			buf.WriteString("    </c>\n")
		}
		buf.WriteString("  </b>\n")
	}
	buf.WriteString("</bible>\n")
	return buf.Bytes(), nil
}
