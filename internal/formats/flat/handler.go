// Package flat provides the handler for book-keyed verse maps:
//
//	{"Genesis": {"1": {"1": "In the beginning..."}}}
//
// Book order follows the document. Chapters and verses are sorted by
// number, since JSON object keys carry no reliable order.
package flat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/formats/base"
)

// Name is the registry key of this format.
const Name = "flat"

// Handler implements formats.Format, formats.Loader and formats.Emitter.
type Handler struct{}

var detectConfig = base.DetectConfig{
	Extensions:      []string{".json"},
	CustomValidator: looksFlat,
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
func (h *Handler) Extensions() []string { return []string{".json"} }

// Detect implements formats.Format.
func (h *Handler) Detect(path string, data []byte) bool {
	return detectConfig.Detect(path, data)
}

// looksFlat accepts an object whose first member is an object keyed by
// something other than the markers of the structured JSON formats.
func looksFlat(_ string, data []byte) bool {
	dec := json.NewDecoder(bytes.NewReader(base.Head(data)))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return false
	}
	tok, err := dec.Token()
	if err != nil {
		return false
	}
	key, ok := tok.(string)
	if !ok || key == "versions" || key == "BIBLEBOOK" {
		return false
	}
	tok, err = dec.Token()
	return err == nil && tok == json.Delim('{')
}

// Load implements formats.Loader.
func (h *Handler) Load(data []byte, opts formats.LoadOptions) (*corpus.Corpus, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil {
		return nil, errors.WrapParse("JSON", "", err)
	} else if tok != json.Delim('{') {
		return nil, errors.NewParse("JSON", "", "expected an object of books")
	}

	c := corpus.New(opts.Version())
	v := c.Versions[0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.WrapParse("JSON", "", err)
		}
		name := tok.(string)

		var chapters map[string]map[string]string
		if err := dec.Decode(&chapters); err != nil {
			return nil, errors.WrapParse("JSON", name, err)
		}
		book, _ := v.FindOrCreateBook(name)
		for chKey, verses := range chapters {
			chNum, err := base.Atoi(chKey)
			if err != nil {
				return nil, errors.NewParse("JSON", name, err.Error())
			}
			ch, _ := book.FindOrCreateChapter(chNum)
			for vsKey, text := range verses {
				vsNum, err := base.Atoi(vsKey)
				if err != nil {
					return nil, errors.NewParse("JSON", fmt.Sprintf("%s.%s", name, chKey), err.Error())
				}
				ch.AddVerse(vsNum, text)
			}
		}
	}
	if tok, err := dec.Token(); err != nil {
		return nil, errors.WrapParse("JSON", "", err)
	} else if tok != json.Delim('}') {
		return nil, errors.NewParse("JSON", "", "unterminated object of books")
	}
	corpus.Sort(c)
	return c, nil
}

// Emit implements formats.Emitter. Members are written in corpus order.
func (h *Handler) Emit(c *corpus.Corpus, opts formats.EmitOptions) ([]byte, error) {
	v, err := opts.SelectVersion(c)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, b := range v.Books {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, b.Name)
		buf.WriteByte('{')
		for j, ch := range b.Chapters {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, strconv.Itoa(ch.Number))
			buf.WriteByte('{')
			for k, vs := range ch.Verses {
				if k > 0 {
					buf.WriteByte(',')
				}
				writeKey(&buf, strconv.Itoa(vs.Number))
				text, _ := json.Marshal(vs.Text)
				buf.Write(text)
			}
			buf.WriteByte('}')
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, errors.Wrap(err, "indent flat JSON")
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) {
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
}
