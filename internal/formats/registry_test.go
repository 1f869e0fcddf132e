package formats

import (
	"errors"
	"strings"
	"testing"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	verrors "github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/core/parser"
)

// fakeFormat detects documents starting with its marker.
type fakeFormat struct {
	name   string
	exts   []string
	marker string
}

func (f *fakeFormat) Name() string         { return f.name }
func (f *fakeFormat) Extensions() []string { return f.exts }
func (f *fakeFormat) Detect(_ string, data []byte) bool {
	return f.marker != "" && strings.HasPrefix(string(data), f.marker)
}

// fakeLoader can be read and written.
type fakeLoader struct{ fakeFormat }

func (f *fakeLoader) Load(data []byte, opts LoadOptions) (*corpus.Corpus, error) {
	return corpus.New(opts.Version()), nil
}

func (f *fakeLoader) Emit(c *corpus.Corpus, opts EmitOptions) ([]byte, error) {
	v, err := opts.SelectVersion(c)
	if err != nil {
		return nil, err
	}
	return []byte(v.Name), nil
}

// withRegistry runs a test against a registry holding only fs.
func withRegistry(t *testing.T, fs ...Format) {
	t.Helper()
	mu.Lock()
	saved := registry
	registry = make(map[string]Format)
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		registry = saved
		mu.Unlock()
	})
	for _, f := range fs {
		Register(f)
	}
}

func TestRegisterAndGet(t *testing.T) {
	withRegistry(t, &fakeFormat{name: "alpha"}, nil, &fakeFormat{name: ""})

	if !Has("alpha") || !Has("ALPHA") {
		t.Error("Has(alpha) = false")
	}
	if _, err := Get("beta"); !errors.Is(err, verrors.ErrNotFound) {
		t.Errorf("Get(beta) error = %v, want ErrNotFound", err)
	}
	if n := len(List()); n != 1 {
		t.Errorf("List() has %d formats, nil and unnamed formats should be ignored", n)
	}
}

func TestList(t *testing.T) {
	withRegistry(t,
		&fakeFormat{name: "zeta", exts: []string{".z"}},
		&fakeLoader{fakeFormat{name: "alpha", exts: []string{".a"}}},
	)
	infos := List()
	if len(infos) != 2 || infos[0].Name != "alpha" || infos[1].Name != "zeta" {
		t.Fatalf("List() = %+v, want alpha then zeta", infos)
	}
	if !infos[0].Load || !infos[0].Emit || infos[1].Load || infos[1].Emit {
		t.Errorf("capabilities wrong: %+v", infos)
	}
}

func TestDetect(t *testing.T) {
	withRegistry(t,
		&fakeFormat{name: "txt", exts: []string{".txt"}},
		&fakeFormat{name: "one", exts: []string{".one"}, marker: "{"},
		&fakeFormat{name: "two", exts: []string{".two"}, marker: "{"},
		&fakeFormat{name: "bin", marker: "\x00"},
	)
	tests := []struct {
		path string
		data string
		want string
	}{
		{"x.two", "{}", "two"},
		{"x.one", "{}", "one"},
		{"x", "{}", "one"},
		{"x", "\x00\x01", "bin"},
		{"x", "plain words", "txt"},
	}
	for _, tt := range tests {
		f, err := Detect(tt.path, []byte(tt.data))
		if err != nil || f.Name() != tt.want {
			t.Errorf("Detect(%q, %q) = %v, %v; want %s", tt.path, tt.data, f, err, tt.want)
		}
	}
	for _, data := range []string{"", "\xff\xfe"} {
		if _, err := Detect("x", []byte(data)); !errors.Is(err, verrors.ErrNotFound) {
			t.Errorf("Detect(%q) error = %v, want ErrNotFound", data, err)
		}
	}
}

func TestForPath(t *testing.T) {
	withRegistry(t,
		&fakeFormat{name: "json", exts: []string{".json"}},
		&fakeLoader{fakeFormat{name: "flat", exts: []string{".json"}}},
		&fakeLoader{fakeFormat{name: "txt", exts: []string{".txt"}}},
	)
	tests := map[string]string{
		"out.txt":  "txt",
		"OUT.TXT":  "txt",
		"out.json": "flat", // json cannot emit here
	}
	for path, want := range tests {
		f, err := ForPath(path)
		if err != nil || f.Name() != want {
			t.Errorf("ForPath(%q) = %v, %v; want %s", path, f, err, want)
		}
	}
	for _, path := range []string{"out", "out.pdf"} {
		if _, err := ForPath(path); !errors.Is(err, verrors.ErrNotFound) {
			t.Errorf("ForPath(%q) error = %v, want ErrNotFound", path, err)
		}
	}
}

func TestLoadAndEmit(t *testing.T) {
	withRegistry(t,
		&fakeFormat{name: "readonly"},
		&fakeLoader{fakeFormat{name: "rw"}},
	)

	c, err := Load("rw", nil, LoadOptions{Parser: parser.Options{VersionName: "Acoli"}})
	if err != nil || c.Versions[0].Name != "Acoli" {
		t.Fatalf("Load(rw) = %v, %v", c, err)
	}
	out, err := Emit("rw", c, EmitOptions{})
	if err != nil || string(out) != "Acoli" {
		t.Errorf("Emit(rw) = %q, %v", out, err)
	}

	if _, err := Load("readonly", nil, LoadOptions{}); !errors.Is(err, verrors.ErrUnsupported) {
		t.Errorf("Load(readonly) error = %v, want ErrUnsupported", err)
	}
	if _, err := Emit("readonly", c, EmitOptions{}); !errors.Is(err, verrors.ErrUnsupported) {
		t.Errorf("Emit(readonly) error = %v, want ErrUnsupported", err)
	}
	if _, err := Load("missing", nil, LoadOptions{}); !errors.Is(err, verrors.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLoadOptionsVersion(t *testing.T) {
	tests := []struct {
		opts LoadOptions
		want string
	}{
		{LoadOptions{}, parser.DefaultVersionName},
		{LoadOptions{Parser: parser.Options{VersionName: "Acoli"}}, "Acoli"},
		{LoadOptions{VersionName: "KJV", Parser: parser.Options{VersionName: "Acoli"}}, "KJV"},
	}
	for _, tt := range tests {
		if got := tt.opts.Version(); got != tt.want {
			t.Errorf("Version() = %q, want %q", got, tt.want)
		}
	}
}

func TestSelectVersion(t *testing.T) {
	c := corpus.New("Acoli")
	c.Versions = append(c.Versions, &corpus.Version{Name: "KJV"})

	if v, err := (EmitOptions{}).SelectVersion(c); err != nil || v.Name != "Acoli" {
		t.Errorf("default version = %v, %v", v, err)
	}
	if v, err := (EmitOptions{Version: "KJV"}).SelectVersion(c); err != nil || v.Name != "KJV" {
		t.Errorf("KJV = %v, %v", v, err)
	}
	if _, err := (EmitOptions{Version: "ESV"}).SelectVersion(c); !errors.Is(err, verrors.ErrNotFound) {
		t.Errorf("ESV error = %v", err)
	}
	if _, err := (EmitOptions{}).SelectVersion(&corpus.Corpus{}); !errors.Is(err, verrors.ErrNotFound) {
		t.Errorf("empty corpus error = %v", err)
	}
}

func TestParseText(t *testing.T) {
	var stats parser.Stats
	opts := LoadOptions{
		Parser:      parser.DefaultOptions(&parser.SplitHeadingGrammar{}),
		VersionName: "Acoli",
		Stats:       &stats,
	}
	c := opts.ParseText("Acakki 1\n1I acaki ki lobo.\nstray\n2Lobo onongo pe ki kit.\n")
	if c.Versions[0].Name != "Acoli" {
		t.Errorf("version = %q, want Acoli", c.Versions[0].Name)
	}
	if stats.Lines != 4 || stats.Verses != 2 || stats.Books != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
