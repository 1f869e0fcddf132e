package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	verrors "github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/core/parser"
	"github.com/FocuswithJustin/versecorpus/internal/archive"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/all"
)

const acakki = "Acakki 1\n1I acaki ki lobo.\n2Lobo onongo pe ki kit.\nAcakki 2\n1Polo ki lobo otum.\n"

func TestParserOptions(t *testing.T) {
	yes := true
	tests := []struct {
		name        string
		req         Request
		wantGrammar string
		wantQuotes  bool
		wantDup     parser.DuplicatePolicy
		wantErr     error
	}{
		{"defaults", Request{}, "split", false, parser.DuplicateReplace, nil},
		{"inline strips quotes", Request{Grammar: "inline"}, "inline", true, parser.DuplicateReplace, nil},
		{"override quotes", Request{StripQuotes: &yes}, "split", true, parser.DuplicateReplace, nil},
		{"keep duplicates", Request{Duplicates: "KEEP"}, "split", false, parser.DuplicateKeep, nil},
		{"bad grammar", Request{Grammar: "columns"}, "", false, "", verrors.ErrUnsupported},
		{"bad duplicates", Request{Duplicates: "merge"}, "", false, "", verrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tt.req.ParserOptions(nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParserOptions() error: %v", err)
			}
			if opts.Grammar.Name() != tt.wantGrammar {
				t.Errorf("grammar = %q, want %q", opts.Grammar.Name(), tt.wantGrammar)
			}
			if opts.StripContinuationQuotes != tt.wantQuotes {
				t.Errorf("StripContinuationQuotes = %v, want %v", opts.StripContinuationQuotes, tt.wantQuotes)
			}
			if opts.Duplicates != tt.wantDup {
				t.Errorf("Duplicates = %q, want %q", opts.Duplicates, tt.wantDup)
			}
		})
	}
}

func TestParserOptionsBooks(t *testing.T) {
	opts, err := Request{Books: []string{"Acakki"}}.ParserOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	g, ok := opts.Grammar.(*parser.SplitHeadingGrammar)
	if !ok || len(g.Books) != 1 || g.Books[0] != "Acakki" {
		t.Errorf("grammar = %#v, want split with Books [Acakki]", opts.Grammar)
	}
}

func TestLoadText(t *testing.T) {
	var diags parser.Collector
	res, err := Load("acakki.txt", []byte(acakki+"Amen\n"), Request{VersionName: "Acoli"}, diags.Sink())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if res.Format != "txt" {
		t.Errorf("Format = %q, want txt", res.Format)
	}
	if res.Corpus.Versions[0].Name != "Acoli" {
		t.Errorf("version = %q, want Acoli", res.Corpus.Versions[0].Name)
	}
	if res.Stats.Lines != 6 || res.Stats.Verses != 3 || res.Stats.Chapters != 2 {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestLoadStructured(t *testing.T) {
	c := parser.Parse(acakki, parser.DefaultOptions(nil))
	data, err := corpus.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	packed, err := archive.Compress(data, archive.XZ)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Load("acoli.json.xz", packed, Request{Grammar: "inline"}, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if res.Format != "json" {
		t.Errorf("Format = %q, want json", res.Format)
	}
	if !corpus.Equal(res.Corpus, c) {
		t.Error("loaded corpus differs from the written one")
	}
	if res.Stats.Lines != 0 || res.Stats.Verses != 3 || res.Stats.Books != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestLoadForcedFormat(t *testing.T) {
	_, err := Load("acakki.txt", []byte(acakki), Request{Format: "json"}, nil)
	if err == nil {
		t.Fatal("Load(txt as json) should fail")
	}
	_, err = Load("", []byte(acakki), Request{Format: "pdf"}, nil)
	if !errors.Is(err, verrors.ErrNotFound) {
		t.Errorf("Load(pdf) error = %v, want ErrNotFound", err)
	}
}

func TestLoadFileBundle(t *testing.T) {
	p := filepath.Join(t.TempDir(), "baibul.tar.gz")
	entries := []archive.Entry{
		{Name: "01-Acakki.txt", Data: []byte(acakki)},
		{Name: "02-Nia.txt", Data: []byte("Nia 1\n1Magi aye nying.")},
		{Name: "cover.jpg", Data: []byte{0xff, 0xd8}},
	}
	if err := archive.WriteBundle(p, "baibul", entries); err != nil {
		t.Fatal(err)
	}

	res, err := LoadFile(p, Request{}, nil)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	books := res.Corpus.Versions[0].Books
	if len(books) != 2 || books[0].Name != "Acakki" || books[1].Name != "Nia" {
		t.Errorf("books = %v", books)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.txt"), Request{}, nil)
	if !errors.Is(err, verrors.ErrIO) {
		t.Errorf("error = %v, want ErrIO", err)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	c := parser.Parse(acakki, parser.DefaultOptions(nil))

	tests := []struct {
		name   string
		format string
		want   string
	}{
		{"out.json", "", "json"},
		{"out.json.gz", "", "json"},
		{"out.txt.xz", "", "txt"},
		{"out.data", "flat", "flat"},
		{"out.sqlite", "", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, tt.name)
			got, err := WriteFile(p, c, tt.format, formats.EmitOptions{})
			if err != nil {
				t.Fatalf("WriteFile() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("format = %q, want %q", got, tt.want)
			}
			back, err := LoadFile(p, Request{Format: tt.want, Grammar: "inline"}, nil)
			if err != nil {
				t.Fatalf("LoadFile() error: %v", err)
			}
			if corpus.Count(back.Corpus) != corpus.Count(c) {
				t.Errorf("counts = %+v, want %+v", corpus.Count(back.Corpus), corpus.Count(c))
			}
		})
	}

	if _, err := WriteFile(filepath.Join(dir, "out.unknown"), c, "", formats.EmitOptions{}); !errors.Is(err, verrors.ErrNotFound) {
		t.Errorf("WriteFile(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestWriteFileBundle(t *testing.T) {
	p := filepath.Join(t.TempDir(), "books.tar.xz")
	c := parser.Parse(acakki+"Nia 1\n1Magi aye nying.\n", parser.DefaultOptions(nil))
	c.Versions[0].Name = "Acoli/Baibul"

	if _, err := WriteFile(p, c, "", formats.EmitOptions{}); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	entries, err := archive.ReadBundle(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name != "Acoli_Baibul/Acakki.txt" || entries[1].Name != "Acoli_Baibul/Nia.txt" {
		t.Fatalf("entries = %v", entries)
	}
	if !strings.HasPrefix(string(entries[1].Data), "Nia 1:1\tMagi aye nying.") {
		t.Errorf("Nia.txt = %q", entries[1].Data)
	}
}

func TestBatchRun(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	jobs := []Job{
		{Input: write("a.txt", acakki), Output: filepath.Join(dir, "a.json")},
		{Input: filepath.Join(dir, "missing.txt"), Output: filepath.Join(dir, "b.json")},
		{Input: write("c.txt", "stray\nNia 1\n1Magi aye nying.\n"), Output: filepath.Join(dir, "c.json")},
	}

	var seen atomic.Int32
	b := Batch{
		Workers: 2,
		Sink: func(Job) parser.Sink {
			return func(parser.Diagnostic) { seen.Add(1) }
		},
	}
	outcomes := b.Run(context.Background(), jobs)
	if len(outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d", len(outcomes))
	}
	if outcomes[0].Err != nil || outcomes[0].From != "txt" || outcomes[0].To != "json" || outcomes[0].Stats.Verses != 3 {
		t.Errorf("outcome[0] = %+v", outcomes[0])
	}
	if outcomes[0].Digest.BLAKE3 == "" {
		t.Error("outcome[0] has no digest")
	}
	if !errors.Is(outcomes[1].Err, verrors.ErrIO) {
		t.Errorf("outcome[1].Err = %v, want ErrIO", outcomes[1].Err)
	}
	if outcomes[2].Err != nil || outcomes[2].Problems != 1 {
		t.Errorf("outcome[2] = %+v", outcomes[2])
	}
	if seen.Load() != 1 {
		t.Errorf("extra sink saw %d diagnostics, want 1", seen.Load())
	}
	if Failed(outcomes) != 1 {
		t.Errorf("Failed() = %d, want 1", Failed(outcomes))
	}
	if _, err := os.Stat(filepath.Join(dir, "c.json")); err != nil {
		t.Errorf("c.json not written: %v", err)
	}
}

func TestBatchRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs := []Job{{Input: "a.txt", Output: "a.json"}, {Input: "b.txt", Output: "b.json"}}
	for i, o := range (Batch{Workers: 1}).Run(ctx, jobs) {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("outcome[%d].Err = %v, want context.Canceled", i, o.Err)
		}
		if o.Job != jobs[i] {
			t.Errorf("outcome[%d].Job = %+v", i, o.Job)
		}
	}
}

func TestFormatNames(t *testing.T) {
	names := strings.Join(FormatNames(), ",")
	for _, want := range []string{"json", "txt", "sqlite"} {
		if !strings.Contains(names, want) {
			t.Errorf("FormatNames() = %s, missing %s", names, want)
		}
	}
}
