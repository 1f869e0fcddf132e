package corpus

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/FocuswithJustin/versecorpus/core/errors"
)

// Marshal renders the corpus as two-space indented JSON. Empty containers
// are written as [] rather than null.
func Marshal(c *Corpus) ([]byte, error) {
	if c == nil {
		c = &Corpus{}
	}
	return json.MarshalIndent(c, "", "  ")
}

// Encode writes Marshal's output followed by a newline.
func Encode(w io.Writer, c *Corpus) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return errors.NewIO("write", "", err)
	}
	return nil
}

// Unmarshal rebuilds a corpus from Marshal's output. Only the shape is
// checked; content rules belong to Validate.
func Unmarshal(data []byte) (*Corpus, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.WrapParse("JSON", "", err)
	}
	raw, ok := probe["versions"]
	if !ok {
		return nil, errors.NewParse("JSON", "", `missing "versions"`)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.NewParse("JSON", "versions", "expected an array")
	}

	var c Corpus
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.WrapParse("JSON", "", err)
	}
	for i, v := range c.Versions {
		if v == nil {
			return nil, errors.NewParse("JSON", indexPath("versions", i), "null version")
		}
		for j, b := range v.Books {
			if b == nil {
				return nil, errors.NewParse("JSON", indexPath("versions", i, "books", j), "null book")
			}
			for k, ch := range b.Chapters {
				if ch == nil {
					return nil, errors.NewParse("JSON", indexPath("versions", i, "books", j, "chapters", k), "null chapter")
				}
				for l, vs := range ch.Verses {
					if vs == nil {
						return nil, errors.NewParse("JSON", indexPath("versions", i, "books", j, "chapters", k, "verses", l), "null verse")
					}
				}
			}
		}
	}
	return &c, nil
}

// MarshalJSON writes nil book lists as [].
func (v *Version) MarshalJSON() ([]byte, error) {
	type plain Version
	p := plain(*v)
	if p.Books == nil {
		p.Books = []*Book{}
	}
	return json.Marshal(p)
}

// MarshalJSON writes nil chapter lists as [].
func (b *Book) MarshalJSON() ([]byte, error) {
	type plain Book
	p := plain(*b)
	if p.Chapters == nil {
		p.Chapters = []*Chapter{}
	}
	return json.Marshal(p)
}

// MarshalJSON writes nil verse lists as [].
func (ch *Chapter) MarshalJSON() ([]byte, error) {
	type plain Chapter
	p := plain(*ch)
	if p.Verses == nil {
		p.Verses = []*Verse{}
	}
	return json.Marshal(p)
}

// MarshalJSON writes a nil version list as [].
func (c *Corpus) MarshalJSON() ([]byte, error) {
	type plain Corpus
	p := plain(*c)
	if p.Versions == nil {
		p.Versions = []*Version{}
	}
	return json.Marshal(p)
}

// Equal reports whether two corpora hold the same tree. Nil and empty
// slices compare equal.
func Equal(a, b *Corpus) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if len(a.Versions) != len(b.Versions) {
		return false
	}
	for i := range a.Versions {
		va, vb := a.Versions[i], b.Versions[i]
		if va.Name != vb.Name || len(va.Books) != len(vb.Books) {
			return false
		}
		for j := range va.Books {
			ba, bb := va.Books[j], vb.Books[j]
			if ba.Name != bb.Name || len(ba.Chapters) != len(bb.Chapters) {
				return false
			}
			for k := range ba.Chapters {
				ca, cb := ba.Chapters[k], bb.Chapters[k]
				if ca.Number != cb.Number || len(ca.Verses) != len(cb.Verses) {
					return false
				}
				for l := range ca.Verses {
					if *ca.Verses[l] != *cb.Verses[l] {
						return false
					}
				}
			}
		}
	}
	return true
}
