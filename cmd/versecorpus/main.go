// Command versecorpus turns plain-text verse dumps into structured corpora.
// It parses text with a reference grammar, converts between corpus formats,
// checks corpora and serves the parser over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/parser"
	"github.com/FocuswithJustin/versecorpus/core/ref"
	"github.com/FocuswithJustin/versecorpus/internal/api"
	"github.com/FocuswithJustin/versecorpus/internal/archive"
	"github.com/FocuswithJustin/versecorpus/internal/convert"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/formats/txt"
	"github.com/FocuswithJustin/versecorpus/internal/logging"
	"github.com/FocuswithJustin/versecorpus/internal/validation"

	// Register every corpus format.
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/all"
)

const version = "0.4.0"

// CLI defines the command-line interface for versecorpus.
type CLI struct {
	Globals

	Parse   ParseCmd   `cmd:"" help:"Parse a text dump into a corpus"`
	Convert ConvertCmd `cmd:"" help:"Convert files between corpus formats"`
	Format  FormatCmd  `cmd:"" help:"Corpus format operations"`
	Books   BooksCmd   `cmd:"" help:"List the book names found in a text dump"`
	Lookup  LookupCmd  `cmd:"" help:"Print the verses a reference selects"`
	Verify  VerifyCmd  `cmd:"" help:"Check a corpus and print its digest"`
	Serve   ServeCmd   `cmd:"" help:"Start the REST API server"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// Globals are flags shared by every command.
type Globals struct {
	LogLevel  string          `name:"log-level" help:"Log level (debug, info, warn, error)" default:"warn" env:"VERSECORPUS_LOG_LEVEL"`
	LogFormat string          `name:"log-format" help:"Log format (text, json)" default:"text" env:"VERSECORPUS_LOG_FORMAT"`
	Config    kong.ConfigFlag `help:"JSON configuration file"`
}

// Env is bound into every command. Tests swap the writers.
type Env struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
}

// ParseFlags select how text input is read.
type ParseFlags struct {
	Format        string   `help:"Input format (default: detect)" env:"VERSECORPUS_FORMAT"`
	Grammar       string   `short:"g" help:"Reference grammar (split, split-heading, inline, inline-reference)" default:"split" env:"VERSECORPUS_GRAMMAR"`
	VersionName   string   `name:"version-name" short:"n" help:"Version name for text input" env:"VERSECORPUS_VERSION_NAME"`
	Books         []string `help:"Book names that may start a chapter heading (split-heading)" sep:","`
	Duplicates    string   `help:"Duplicate verse policy (replace, keep)" default:"replace" enum:"replace,keep"`
	StripQuotes   string   `name:"strip-quotes" help:"Strip quotes from continuation lines (auto, yes, no)" default:"auto" enum:"auto,yes,no"`
	Normalize     bool     `help:"Normalize lines to Unicode NFC"`
	SkipClean     bool     `name:"skip-clean" help:"Keep verse text as parsed"`
	StripPatterns []string `name:"strip" help:"Regular expression removed from text input before parsing (repeatable)"`
}

// Request builds the conversion request for these flags.
func (f ParseFlags) Request() convert.Request {
	req := convert.Request{
		Format:           f.Format,
		Grammar:          f.Grammar,
		VersionName:      f.VersionName,
		Books:            f.Books,
		Duplicates:       f.Duplicates,
		NormalizeUnicode: f.Normalize,
		SkipClean:        f.SkipClean,
		StripPatterns:    f.StripPatterns,
	}
	switch f.StripQuotes {
	case "yes":
		yes := true
		req.StripQuotes = &yes
	case "no":
		no := false
		req.StripQuotes = &no
	}
	return req
}

// load reads path, or standard input when path is "-".
func (f ParseFlags) load(path string, sink parser.Sink) (*convert.Result, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return convert.Load("", data, f.Request(), sink)
	}
	if err := validation.ValidatePath("input", path); err != nil {
		return nil, err
	}
	return convert.LoadFile(path, f.Request(), sink)
}

// diagnosticSink collects diagnostics and logs each one.
func diagnosticSink(ctx context.Context, c *parser.Collector) parser.Sink {
	return parser.Tee(c.Sink(), logging.DiagnosticSink(ctx))
}

// ParseCmd parses one input into a corpus.
type ParseCmd struct {
	ParseFlags

	Input  string `arg:"" help:"Text dump, corpus file or .tar bundle (- for stdin)"`
	Out    string `short:"o" help:"Output path; the extension picks the format and compression (default: stdout)" type:"path"`
	To     string `help:"Output format (default: from --out, or json)"`
	Report bool   `help:"Print counters and diagnostics to stderr"`
}

func (c *ParseCmd) Run(env *Env) error {
	var diags parser.Collector
	res, err := c.load(c.Input, diagnosticSink(env.Ctx, &diags))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.Input, err)
	}

	if c.Out != "" {
		if err := validation.ValidatePath("out", c.Out); err != nil {
			return err
		}
		used, err := convert.WriteFile(c.Out, res.Corpus, c.To, formats.EmitOptions{})
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", c.Out, err)
		}
		logging.ConversionComplete(env.Ctx, c.Input, c.Out,
			res.Stats.Books, res.Stats.Verses, res.Stats.Dropped,
			"from", res.Format, "to", used)
	} else {
		to := c.To
		if to == "" {
			to = "json"
		}
		data, err := formats.Emit(to, res.Corpus, formats.EmitOptions{})
		if err != nil {
			return err
		}
		if _, err := env.Stdout.Write(data); err != nil {
			return err
		}
	}

	if c.Report {
		printReport(env.Stderr, res, diags.Diagnostics)
	}
	return nil
}

func printReport(w io.Writer, res *convert.Result, diags []parser.Diagnostic) {
	s := res.Stats
	fmt.Fprintf(w, "Format:     %s\n", res.Format)
	fmt.Fprintf(w, "Lines:      %d (%d headings, %d verse starts, %d continuations, %d dropped)\n",
		s.Lines, s.Headings, s.VerseStarts, s.Continuations, s.Dropped)
	fmt.Fprintf(w, "Corpus:     %d books, %d chapters, %d verses\n", s.Books, s.Chapters, s.Verses)
	if s.MultiLineVerses > 0 || s.EmptyVerses > 0 {
		fmt.Fprintf(w, "Review:     %d multi-line verses, %d empty verses\n", s.MultiLineVerses, s.EmptyVerses)
	}
	for _, d := range diags {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

// ConvertCmd converts many files with a worker pool.
type ConvertCmd struct {
	ParseFlags

	Inputs    []string `arg:"" help:"Input files" type:"existingfile"`
	OutDir    string   `name:"out-dir" short:"d" required:"" help:"Output directory" type:"path"`
	To        string   `short:"t" help:"Output format" default:"json"`
	Ext       string   `help:"Output file extension, e.g. .json.xz (default: the first extension of the format)"`
	Separator string   `help:"Separator between reference and text in txt output"`
	Workers   int      `short:"w" help:"Concurrent conversions (0 = one per CPU)" default:"0" env:"VERSECORPUS_WORKERS"`
}

func (c *ConvertCmd) Run(env *Env) error {
	f, err := formats.Get(c.To)
	if err != nil {
		return err
	}
	ext := c.Ext
	if ext == "" {
		ext = ".out"
		if exts := f.Extensions(); len(exts) > 0 {
			ext = exts[0]
		}
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if err := validation.ValidateFilename("ext", ext); err != nil {
		return err
	}
	if err := os.MkdirAll(c.OutDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	jobs := make([]convert.Job, 0, len(c.Inputs))
	seen := make(map[string]string)
	for _, in := range c.Inputs {
		stem := filepath.Base(archive.TrimCompressionExt(in))
		stem = strings.TrimSuffix(stem, filepath.Ext(stem))
		out := filepath.Join(c.OutDir, stem+ext)
		if prev, ok := seen[out]; ok {
			return fmt.Errorf("%s and %s would both be written to %s", prev, in, out)
		}
		seen[out] = in
		jobs = append(jobs, convert.Job{Input: in, Output: out})
	}

	batch := convert.Batch{
		Request: c.Request(),
		To:      c.To,
		Emit:    formats.EmitOptions{Separator: c.Separator},
		Workers: c.Workers,
		Sink: func(j convert.Job) parser.Sink {
			return logging.DiagnosticSink(env.Ctx, "input", j.Input)
		},
	}
	outcomes := batch.Run(env.Ctx, jobs)

	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tOUTPUT\tFROM\tVERSES\tPROBLEMS\tBLAKE3\tSTATUS")
	for _, o := range outcomes {
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			o.Job.Input, o.Job.Output, o.From, o.Stats.Verses, o.Problems, shortDigest(o.Digest.BLAKE3), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if n := convert.Failed(outcomes); n > 0 {
		return fmt.Errorf("%d of %d conversions failed", n, len(outcomes))
	}
	return nil
}

func shortDigest(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// FormatCmd groups format operations.
type FormatCmd struct {
	List   FormatListCmd   `cmd:"" help:"List registered formats"`
	Detect FormatDetectCmd `cmd:"" help:"Detect the format of a file"`
}

// FormatListCmd lists the registered formats.
type FormatListCmd struct {
	JSON bool `help:"Print JSON"`
}

func (c *FormatListCmd) Run(env *Env) error {
	list := formats.List()
	if c.JSON {
		return writeJSON(env.Stdout, list)
	}
	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEXTENSIONS\tLOAD\tEMIT")
	for _, info := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, strings.Join(info.Extensions, " "), yesNo(info.Load), yesNo(info.Emit))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// FormatDetectCmd reports the format a file would be read with.
type FormatDetectCmd struct {
	Path string `arg:"" help:"File to inspect" type:"existingfile"`
}

func (c *FormatDetectCmd) Run(env *Env) error {
	if archive.IsBundle(c.Path) {
		fmt.Fprintf(env.Stdout, "%s: bundle of txt files\n", c.Path)
		return nil
	}
	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.Path, err)
	}
	data, err := archive.Decompress(raw)
	if err != nil {
		return err
	}
	f, err := formats.Detect(archive.TrimCompressionExt(c.Path), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%s: %s (%s)\n", c.Path, f.Name(), archive.Sniff(raw))
	return nil
}

// BooksCmd lists the book names a grammar finds in a text dump.
type BooksCmd struct {
	Input   string   `arg:"" help:"Text dump" type:"existingfile"`
	Grammar string   `short:"g" help:"Reference grammar" default:"split"`
	Strip   []string `help:"Regular expression removed before scanning (repeatable)"`
}

func (c *BooksCmd) Run(env *Env) error {
	g, err := parser.GrammarByName(c.Grammar)
	if err != nil {
		return err
	}
	data, err := archive.ReadFile(c.Input)
	if err != nil {
		return err
	}
	text, err := txt.Strip(string(data), c.Strip)
	if err != nil {
		return err
	}
	for _, name := range parser.DiscoverBooks(text, g) {
		fmt.Fprintln(env.Stdout, name)
	}
	return nil
}

// LookupCmd prints the verses a reference selects.
type LookupCmd struct {
	ParseFlags

	Input     string   `arg:"" help:"Corpus or text dump" type:"existingfile"`
	Reference []string `arg:"" help:"Reference, e.g. Nwoyo Cik 1:1-3"`
	In        string   `help:"Version to search (default: first)"`
	JSON      bool     `help:"Print JSON"`
}

func (c *LookupCmd) Run(env *Env) error {
	r, err := ref.Parse(strings.Join(c.Reference, " "))
	if err != nil {
		return err
	}
	res, err := c.load(c.Input, logging.DiagnosticSink(env.Ctx))
	if err != nil {
		return err
	}
	v, err := formats.EmitOptions{Version: c.In}.SelectVersion(res.Corpus)
	if err != nil {
		return err
	}
	matches, err := corpus.Lookup(v, r)
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(env.Stdout, matches)
	}
	for _, m := range matches {
		fmt.Fprintf(env.Stdout, "%s\t%s\n", m.Ref(), m.Text)
	}
	return nil
}

// VerifyCmd checks a corpus for structural problems and prints its digest.
type VerifyCmd struct {
	ParseFlags

	Input  string `arg:"" help:"Corpus or text dump" type:"existingfile"`
	Strict bool   `help:"Fail when any problem is found"`
	Expect string `help:"Expected BLAKE3 digest of the canonical corpus JSON"`
}

func (c *VerifyCmd) Run(env *Env) error {
	res, err := c.load(c.Input, logging.DiagnosticSink(env.Ctx))
	if err != nil {
		return err
	}
	digest, err := corpus.Hash(res.Corpus)
	if err != nil {
		return err
	}
	n := corpus.Count(res.Corpus)
	problems := corpus.Validate(res.Corpus)

	fmt.Fprintf(env.Stdout, "Verifying: %s (%s)\n", c.Input, res.Format)
	fmt.Fprintf(env.Stdout, "  Versions: %d  Books: %d  Chapters: %d  Verses: %d\n", n.Versions, n.Books, n.Chapters, n.Verses)
	fmt.Fprintf(env.Stdout, "  SHA-256:  %s\n", digest.SHA256)
	fmt.Fprintf(env.Stdout, "  BLAKE3:   %s\n", digest.BLAKE3)
	for _, p := range problems {
		fmt.Fprintf(env.Stdout, "  ! %v\n", p)
	}

	if c.Expect != "" && !strings.EqualFold(c.Expect, digest.BLAKE3) {
		return fmt.Errorf("digest mismatch: expected %s, got %s", c.Expect, digest.BLAKE3)
	}
	if len(problems) > 0 {
		if c.Strict {
			return fmt.Errorf("%d problems found", len(problems))
		}
		fmt.Fprintf(env.Stdout, "%d problems found\n", len(problems))
		return nil
	}
	fmt.Fprintln(env.Stdout, "OK")
	return nil
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Host            string        `help:"Listen host" env:"VERSECORPUS_HOST"`
	Port            int           `help:"HTTP server port" default:"8080" env:"VERSECORPUS_PORT"`
	RateLimit       int           `name:"rate-limit" help:"Requests per minute per client IP (0 = off)" default:"120"`
	Burst           int           `help:"Rate limit burst" default:"20"`
	MaxBody         int64         `name:"max-body" help:"Largest request body in bytes" default:"33554432"`
	CacheEntries    int           `name:"cache-entries" help:"Parse results kept in memory (0 = off)" default:"64"`
	CacheBytes      int64         `name:"cache-bytes" help:"Largest total size of cached results" default:"268435456"`
	CacheTTL        time.Duration `name:"cache-ttl" help:"How long a cached result stays valid" default:"1h"`
	MaxJobs         int           `name:"max-jobs" help:"Finished jobs kept in memory" default:"100"`
	AllowedOrigins  []string      `name:"allowed-origin" help:"Allowed CORS and websocket origin (repeatable; empty allows all)" env:"VERSECORPUS_ALLOWED_ORIGINS"`
	APIKey          string        `name:"api-key" help:"Require this API key (X-API-Key header)" env:"VERSECORPUS_API_KEY"`
	TLSCert         string        `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey          string        `name:"tls-key" help:"TLS private key file" type:"path"`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" help:"Grace period for running requests on shutdown" default:"10s"`
}

// Config builds the server configuration for these flags.
func (c *ServeCmd) Config() api.Config {
	cfg := api.DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.RateLimitRequests = c.RateLimit
	cfg.RateLimitBurst = c.Burst
	cfg.MaxBodyBytes = c.MaxBody
	cfg.CacheEntries = c.CacheEntries
	cfg.CacheBytes = c.CacheBytes
	cfg.CacheTTL = c.CacheTTL
	cfg.MaxJobs = c.MaxJobs
	cfg.AllowedOrigins = c.AllowedOrigins
	cfg.ShutdownTimeout = c.ShutdownTimeout
	if c.APIKey != "" {
		cfg.Auth = api.AuthConfig{Enabled: true, APIKey: c.APIKey}
	}
	if c.TLSCert != "" || c.TLSKey != "" {
		cfg.TLS = api.TLSConfig{Enabled: true, CertFile: c.TLSCert, KeyFile: c.TLSKey}
	}
	return cfg
}

func (c *ServeCmd) Run(env *Env) error {
	api.Version = version
	s, err := api.NewServer(c.Config())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(env.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	fmt.Fprintf(env.Stdout, "versecorpus version %s\n", version)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newParser builds the kong parser. Configuration files are read in order,
// later files losing to earlier ones and flags winning over both.
func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	opts := []kong.Option{
		kong.Name("versecorpus"),
		kong.Description("versecorpus - verse dump parser and corpus converter"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Configuration(kong.JSON, "./versecorpus.json", "~/.config/versecorpus/config.json"),
	}
	return kong.New(cli, append(opts, options...)...)
}

// setupLogging applies the global log flags.
func setupLogging(g Globals) error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

func main() {
	var cli CLI
	k, err := newParser(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, err := k.Parse(os.Args[1:])
	k.FatalIfErrorf(err)
	k.FatalIfErrorf(setupLogging(cli.Globals))

	runCtx := logging.WithRequestID(context.Background(), uuid.NewString())
	err = ctx.Run(&Env{Ctx: runCtx, Stdout: os.Stdout, Stderr: os.Stderr})
	ctx.FatalIfErrorf(err)
}
