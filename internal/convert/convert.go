// Package convert loads corpus documents in any registered format and
// writes them back out. The command line and the server both go through
// it, so a request means the same thing on either side.
package convert

import (
	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/core/parser"
	"github.com/FocuswithJustin/versecorpus/internal/archive"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/formats/base"
	"github.com/FocuswithJustin/versecorpus/internal/formats/txt"
	"github.com/FocuswithJustin/versecorpus/internal/validation"
)

// DefaultGrammar is used when a request names none.
const DefaultGrammar = "split"

// Request describes how to read one document.
type Request struct {
	// Format forces the input format. Empty means detect.
	Format string `json:"format,omitempty"`
	// Grammar names the reference grammar for text input.
	Grammar string `json:"grammar,omitempty"`
	// VersionName labels the version when the input carries none.
	VersionName string `json:"version,omitempty"`
	// Books restricts split-heading chapter headings to these names.
	Books []string `json:"books,omitempty"`
	// Duplicates is "replace" or "keep".
	Duplicates string `json:"duplicates,omitempty"`
	// StripQuotes overrides the grammar default for continuation quotes.
	StripQuotes      *bool    `json:"strip_quotes,omitempty"`
	NormalizeUnicode bool     `json:"normalize_unicode,omitempty"`
	SkipClean        bool     `json:"skip_clean,omitempty"`
	StripPatterns    []string `json:"strip_patterns,omitempty"`
}

// ParserOptions builds the parser options for r. Diagnostics go to sink,
// which may be nil.
func (r Request) ParserOptions(sink parser.Sink) (parser.Options, error) {
	name := r.Grammar
	if name == "" {
		name = DefaultGrammar
	}
	g, err := parser.GrammarByName(name)
	if err != nil {
		return parser.Options{}, err
	}
	if sh, ok := g.(*parser.SplitHeadingGrammar); ok {
		sh.Books = r.Books
	}

	opts := parser.DefaultOptions(g)
	if r.VersionName != "" {
		opts.VersionName = r.VersionName
	}
	if r.Duplicates != "" {
		policy, err := parser.ParseDuplicatePolicy(r.Duplicates)
		if err != nil {
			return parser.Options{}, errors.NewValidation("duplicates", err.Error())
		}
		opts.Duplicates = policy
	}
	if r.StripQuotes != nil {
		opts.StripContinuationQuotes = *r.StripQuotes
	}
	opts.NormalizeUnicode = r.NormalizeUnicode
	opts.SkipClean = r.SkipClean
	opts.OnDiagnostic = sink
	return opts, nil
}

// Result is a loaded document.
type Result struct {
	Corpus *corpus.Corpus
	// Format is the name of the format the document was read with.
	Format string
	// Stats holds the parser counters for text input. For structured
	// input only the book, chapter and verse counts are set.
	Stats parser.Stats
}

// Load reads data, which may be compressed. name is the file name the
// data came from and helps detection; it may be empty.
func Load(name string, data []byte, req Request, sink parser.Sink) (*Result, error) {
	plain, err := archive.Decompress(data)
	if err != nil {
		return nil, err
	}
	name = archive.TrimCompressionExt(name)

	var f formats.Format
	if req.Format != "" {
		f, err = formats.Get(req.Format)
	} else {
		f, err = formats.Detect(name, plain)
	}
	if err != nil {
		return nil, err
	}
	l, ok := f.(formats.Loader)
	if !ok {
		return nil, base.UnsupportedOperationError("load", f.Name())
	}

	popts, err := req.ParserOptions(sink)
	if err != nil {
		return nil, err
	}
	res := &Result{Format: f.Name()}
	res.Corpus, err = l.Load(plain, formats.LoadOptions{
		Parser:        popts,
		VersionName:   req.VersionName,
		StripPatterns: req.StripPatterns,
		Stats:         &res.Stats,
	})
	if err != nil {
		return nil, err
	}
	if res.Stats == (parser.Stats{}) {
		n := corpus.Count(res.Corpus)
		res.Stats.Books, res.Stats.Chapters, res.Stats.Verses = n.Books, n.Chapters, n.Verses
	}
	return res, nil
}

// LoadFile reads the file at p. A tar bundle is read as one text made of
// its .txt members in archive order, the way a directory of per-book
// dumps is parsed.
func LoadFile(p string, req Request, sink parser.Sink) (*Result, error) {
	if archive.IsBundle(p) {
		entries, err := archive.ReadBundle(p, func(name string) bool {
			return base.HasExtension(name, ".txt", ".text")
		})
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.NewNotFound("text files in bundle", p)
		}
		if req.Format == "" {
			req.Format = txt.Name
		}
		return Load("", []byte(archive.JoinText(entries)), req, sink)
	}

	data, err := archive.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return Load(p, data, req, sink)
}

// OutputFormat picks the format to write p with. An explicit name wins;
// otherwise the extension decides, ignoring a compression suffix.
func OutputFormat(p, name string) (formats.Format, error) {
	if name != "" {
		return formats.Get(name)
	}
	return formats.ForPath(archive.TrimCompressionExt(p))
}

// WriteFile writes c to p, compressed according to the suffix of p. A tar
// bundle path gets one member per book. It returns the format used.
func WriteFile(p string, c *corpus.Corpus, format string, opts formats.EmitOptions) (string, error) {
	if archive.IsBundle(p) {
		return writeBundle(p, c, format, opts)
	}
	f, err := OutputFormat(p, format)
	if err != nil {
		return "", err
	}
	data, err := formats.Emit(f.Name(), c, opts)
	if err != nil {
		return "", err
	}
	return f.Name(), archive.WriteFile(p, data)
}

// writeBundle emits every book of the selected version on its own and
// stores the results under a directory named after the version.
func writeBundle(p string, c *corpus.Corpus, format string, opts formats.EmitOptions) (string, error) {
	if format == "" {
		format = txt.Name
	}
	f, err := formats.Get(format)
	if err != nil {
		return "", err
	}
	v, err := opts.SelectVersion(c)
	if err != nil {
		return "", err
	}
	ext := ".out"
	if exts := f.Extensions(); len(exts) > 0 {
		ext = exts[0]
	}

	entries := make([]archive.Entry, 0, len(v.Books))
	for _, b := range v.Books {
		single := &corpus.Corpus{Versions: []*corpus.Version{{Name: v.Name, Books: []*corpus.Book{b}}}}
		data, err := formats.Emit(f.Name(), single, formats.EmitOptions{Separator: opts.Separator})
		if err != nil {
			return "", err
		}
		entries = append(entries, archive.Entry{Name: memberName(b.Name) + ext, Data: data})
	}
	return f.Name(), archive.WriteBundle(p, memberName(v.Name), entries)
}

// memberName makes a name safe to use as one tar path element.
func memberName(s string) string {
	return validation.SanitizeFilename(s, "untitled")
}

// FormatNames returns the names of the registered formats that can load.
func FormatNames() []string {
	var names []string
	for _, info := range formats.List() {
		if info.Load {
			names = append(names, info.Name)
		}
	}
	return names
}
