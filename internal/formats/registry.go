// Package formats holds the registry of corpus formats. Each format lives in
// its own subpackage and registers itself from init; import
// internal/formats/all to get every one of them.
package formats

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/core/parser"
)

// Format is a named document shape that can be recognized.
type Format interface {
	// Name is the registry key, e.g. "json".
	Name() string
	// Extensions lists the file suffixes the format is written with.
	Extensions() []string
	// Detect checks whether a decompressed document is in this format.
	// path may be empty when the data did not come from a file.
	Detect(path string, data []byte) bool
}

// Loader is implemented by formats that can be read into a corpus.
type Loader interface {
	Load(data []byte, opts LoadOptions) (*corpus.Corpus, error)
}

// Emitter is implemented by formats that can be written from a corpus.
type Emitter interface {
	Emit(c *corpus.Corpus, opts EmitOptions) ([]byte, error)
}

// LoadOptions configures a Load.
type LoadOptions struct {
	// Parser is used by line-oriented formats (txt, html).
	Parser parser.Options
	// VersionName labels the version built by formats that do not carry
	// one. Empty falls back to Parser.VersionName, then the default.
	VersionName string
	// StripPatterns are regular expressions removed from text input before
	// parsing, such as a running title or copyright line.
	StripPatterns []string
	// Stats, when set, receives the parser counters of formats that parse
	// text.
	Stats *parser.Stats
}

// Version returns the version name a loader should use.
func (o LoadOptions) Version() string {
	switch {
	case o.VersionName != "":
		return o.VersionName
	case o.Parser.VersionName != "":
		return o.Parser.VersionName
	}
	return parser.DefaultVersionName
}

// ParseText runs the parser over text as a line-oriented loader should:
// with the version name of o and its counters copied to o.Stats.
func (o LoadOptions) ParseText(text string) *corpus.Corpus {
	popts := o.Parser
	popts.VersionName = o.Version()
	p := parser.New(popts)
	c := p.Parse(text)
	if o.Stats != nil {
		*o.Stats = p.Stats()
	}
	return c
}

// EmitOptions configures an Emit.
type EmitOptions struct {
	// Version selects the version written by single-version formats.
	// Empty means the first version.
	Version string
	// Separator goes between the reference and the verse text in text
	// output. Empty means a tab.
	Separator string
}

// SelectVersion returns the version opts asks for.
func (o EmitOptions) SelectVersion(c *corpus.Corpus) (*corpus.Version, error) {
	if c == nil || len(c.Versions) == 0 {
		return nil, errors.NewNotFound("version", o.Version)
	}
	if o.Version == "" {
		return c.Versions[0], nil
	}
	if v := c.Version(o.Version); v != nil {
		return v, nil
	}
	return nil, errors.NewNotFound("version", o.Version)
}

// Info describes a registered format.
type Info struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
	Load       bool     `json:"load"`
	Emit       bool     `json:"emit"`
}

// fallbackFormat is used for undetected input that is valid UTF-8.
const fallbackFormat = "txt"

var (
	mu       sync.RWMutex
	registry = make(map[string]Format)
)

// Register adds a format, replacing any format with the same name.
func Register(f Format) {
	if f == nil || f.Name() == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[f.Name()] = f
}

// Get returns the named format.
func Get(name string) (Format, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewNotFound("format", name)
	}
	return f, nil
}

// Has reports whether a format is registered.
func Has(name string) bool {
	_, err := Get(name)
	return err == nil
}

// sorted returns the registered formats ordered by name.
func sorted() []Format {
	mu.RLock()
	defer mu.RUnlock()
	list := make([]Format, 0, len(registry))
	for _, f := range registry {
		list = append(list, f)
	}
	slices.SortFunc(list, func(a, b Format) int { return strings.Compare(a.Name(), b.Name()) })
	return list
}

// List describes every registered format, ordered by name.
func List() []Info {
	var infos []Info
	for _, f := range sorted() {
		_, canLoad := f.(Loader)
		_, canEmit := f.(Emitter)
		infos = append(infos, Info{
			Name:       f.Name(),
			Extensions: f.Extensions(),
			Load:       canLoad,
			Emit:       canEmit,
		})
	}
	return infos
}

// Detect picks the format of a document. When several formats accept it,
// the one that also claims the file extension wins. Undetected UTF-8 text
// falls back to txt.
func Detect(path string, data []byte) (Format, error) {
	var matches []Format
	for _, f := range sorted() {
		if f.Detect(path, data) {
			matches = append(matches, f)
		}
	}
	switch len(matches) {
	case 0:
		if len(data) > 0 && utf8.Valid(data) {
			if f, err := Get(fallbackFormat); err == nil {
				return f, nil
			}
		}
		return nil, errors.NewNotFound("format", describe(path))
	case 1:
		return matches[0], nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range matches {
		if slices.Contains(f.Extensions(), ext) {
			return f, nil
		}
	}
	return matches[0], nil
}

// ForPath picks the format to write path with. Several formats may share an
// extension; the one named after the extension is preferred.
func ForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, errors.NewNotFound("format", describe(path))
	}
	if f, err := Get(strings.TrimPrefix(ext, ".")); err == nil {
		if _, ok := f.(Emitter); ok {
			return f, nil
		}
	}
	for _, f := range sorted() {
		if _, ok := f.(Emitter); ok && slices.Contains(f.Extensions(), ext) {
			return f, nil
		}
	}
	return nil, errors.NewNotFound("format", describe(path))
}

// Load reads data with the named format.
func Load(name string, data []byte, opts LoadOptions) (*corpus.Corpus, error) {
	f, err := Get(name)
	if err != nil {
		return nil, err
	}
	l, ok := f.(Loader)
	if !ok {
		return nil, errors.NewUnsupported("load", f.Name()+" format is write-only")
	}
	return l.Load(data, opts)
}

// Emit writes c with the named format.
func Emit(name string, c *corpus.Corpus, opts EmitOptions) ([]byte, error) {
	f, err := Get(name)
	if err != nil {
		return nil, err
	}
	e, ok := f.(Emitter)
	if !ok {
		return nil, errors.NewUnsupported("emit", f.Name()+" format is read-only")
	}
	return e.Emit(c, opts)
}

func describe(path string) string {
	if path == "" {
		return "(no file name)"
	}
	return filepath.Base(path)
}
