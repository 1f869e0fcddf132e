// Package biblebook provides the handler for BIBLEBOOK documents:
//
//	{"BIBLEBOOK": [{"book_name": "Mwanzo", "CHAPTER": [
//	  {"chapter_number": "1", "VERSES": [{"verse_number": "1", "verse_text": "..."}]}]}]}
//
// Exporters of this shape write a single object where an array is expected
// and quote numbers, so both are accepted. Null entries are skipped, and
// chapters or books left without verses are dropped.
package biblebook

import (
	"encoding/json"
	"fmt"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/formats/base"
)

// Name is the registry key of this format.
const Name = "biblebook"

// Handler implements formats.Format, formats.Loader and formats.Emitter.
type Handler struct{}

var detectConfig = base.DetectConfig{
	Extensions:     []string{".json"},
	ContentMarkers: []string{`"BIBLEBOOK"`},
}

// Register registers this format with the registry.
func Register() {
	formats.Register(&Handler{})
}

func init() {
	Register()
}

type document struct {
	Books json.RawMessage `json:"BIBLEBOOK"`
}

type rawBook struct {
	Name     string          `json:"book_name"`
	Chapters json.RawMessage `json:"CHAPTER"`
}

type rawChapter struct {
	Number json.RawMessage `json:"chapter_number"`
	Verses json.RawMessage `json:"VERSES"`
}

type rawVerse struct {
	Number json.RawMessage `json:"verse_number"`
	Text   string          `json:"verse_text"`
}

// Name implements formats.Format.
func (h *Handler) Name() string { return Name }

// Extensions implements formats.Format.
func (h *Handler) Extensions() []string { return []string{".json"} }

// Detect implements formats.Format.
func (h *Handler) Detect(path string, data []byte) bool {
	return detectConfig.Detect(path, data)
}

// Load implements formats.Loader.
func (h *Handler) Load(data []byte, opts formats.LoadOptions) (*corpus.Corpus, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("BIBLEBOOK", "", err)
	}
	if doc.Books == nil {
		return nil, errors.NewParse("BIBLEBOOK", "", `missing "BIBLEBOOK"`)
	}
	books, err := base.OneOrMany[*rawBook](doc.Books)
	if err != nil {
		return nil, errors.WrapParse("BIBLEBOOK", "BIBLEBOOK", err)
	}

	c := corpus.New(opts.Version())
	v := c.Versions[0]
	for i, rb := range books {
		if rb == nil {
			continue
		}
		path := fmt.Sprintf("BIBLEBOOK[%d]", i)
		chapters, err := loadChapters(rb, path)
		if err != nil {
			return nil, err
		}
		if len(chapters) == 0 {
			continue
		}
		book, _ := v.FindOrCreateBook(rb.Name)
		for _, ch := range chapters {
			dst, _ := book.FindOrCreateChapter(ch.Number)
			dst.Verses = append(dst.Verses, ch.Verses...)
		}
	}
	corpus.Sort(c)
	return c, nil
}

func loadChapters(rb *rawBook, path string) ([]*corpus.Chapter, error) {
	raw, err := base.OneOrMany[*rawChapter](rb.Chapters)
	if err != nil {
		return nil, errors.WrapParse("BIBLEBOOK", path+".CHAPTER", err)
	}
	var chapters []*corpus.Chapter
	for j, rc := range raw {
		if rc == nil {
			continue
		}
		chPath := fmt.Sprintf("%s.CHAPTER[%d]", path, j)
		num, err := base.IntValue(rc.Number)
		if err != nil {
			return nil, errors.NewParse("BIBLEBOOK", chPath+".chapter_number", err.Error())
		}
		verses, err := base.OneOrMany[*rawVerse](rc.Verses)
		if err != nil {
			return nil, errors.WrapParse("BIBLEBOOK", chPath+".VERSES", err)
		}
		ch := &corpus.Chapter{Number: num}
		for k, rv := range verses {
			if rv == nil {
				continue
			}
			vn, err := base.IntValue(rv.Number)
			if err != nil {
				return nil, errors.NewParse("BIBLEBOOK", fmt.Sprintf("%s.VERSES[%d].verse_number", chPath, k), err.Error())
			}
			ch.AddVerse(vn, rv.Text)
		}
		if len(ch.Verses) > 0 {
			chapters = append(chapters, ch)
		}
	}
	return chapters, nil
}

type outDocument struct {
	Books []outBook `json:"BIBLEBOOK"`
}

type outBook struct {
	Name     string       `json:"book_name"`
	Chapters []outChapter `json:"CHAPTER"`
}

type outChapter struct {
	Number int        `json:"chapter_number"`
	Verses []outVerse `json:"VERSES"`
}

type outVerse struct {
	Number int    `json:"verse_number"`
	Text   string `json:"verse_text"`
}

// Emit implements formats.Emitter. Arrays are always written as arrays.
func (h *Handler) Emit(c *corpus.Corpus, opts formats.EmitOptions) ([]byte, error) {
	v, err := opts.SelectVersion(c)
	if err != nil {
		return nil, err
	}
	doc := outDocument{Books: []outBook{}}
	for _, b := range v.Books {
		ob := outBook{Name: b.Name, Chapters: []outChapter{}}
		for _, ch := range b.Chapters {
			oc := outChapter{Number: ch.Number, Verses: []outVerse{}}
			for _, vs := range ch.Verses {
				oc.Verses = append(oc.Verses, outVerse{Number: vs.Number, Text: vs.Text})
			}
			ob.Chapters = append(ob.Chapters, oc)
		}
		doc.Books = append(doc.Books, ob)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode BIBLEBOOK")
	}
	return append(out, '\n'), nil
}
