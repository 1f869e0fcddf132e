package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/versecorpus/core/cache"
	"github.com/FocuswithJustin/versecorpus/core/corpus"
	verrors "github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/core/parser"
	"github.com/FocuswithJustin/versecorpus/core/sqlite"
	"github.com/FocuswithJustin/versecorpus/internal/convert"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/logging"
	"github.com/FocuswithJustin/versecorpus/internal/validation"
)

// Version is reported by the root and health endpoints.
var Version = "dev"

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Uptime  string      `json:"uptime"`
	Formats int         `json:"formats"`
	Clients int         `json:"websocket_clients"`
	Jobs    int         `json:"jobs"`
	SQLite  sqlite.Info `json:"sqlite"`
	Cache   cache.Stats `json:"cache"`
}

// ParseResult is the envelope payload of POST /api/parse?diagnostics=true.
// Digest is taken over the indented corpus.Marshal form, the bytes served
// for output=json and hashed by corpus.Hash. Corpus arrives compacted inside
// the envelope, so clients re-serialize before comparing.
type ParseResult struct {
	Format      string              `json:"format"`
	Digest      corpus.Digest       `json:"digest"`
	Stats       parser.Stats        `json:"stats"`
	Diagnostics []parser.Diagnostic `json:"diagnostics"`
	Corpus      json.RawMessage     `json:"corpus"`
}

// parsed is one parse outcome, as cached.
type parsed struct {
	ParseResult
	output      []byte
	contentType string
}

func (p *parsed) size() int64 {
	return int64(len(p.output) + len(p.Corpus))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"name":    "versecorpus API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /api/formats",
			"POST /api/parse",
			"GET /api/jobs",
			"POST /api/jobs",
			"GET /api/jobs/:id",
			"GET /api/jobs/:id/result",
			"DELETE /api/jobs/:id",
			"WS /api/ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	info := HealthInfo{
		Status:  "healthy",
		Version: Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Formats: len(formats.List()),
		Clients: s.hub.ClientCount(),
		Jobs:    len(s.jobs.List()),
		SQLite:  sqlite.GetInfo(),
	}
	if s.cache != nil {
		info.Cache = s.cache.Stats()
	}
	respond(w, http.StatusOK, info)
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	list := formats.List()
	respondList(w, list, len(list))
}

// handleParse parses the request body. The query selects the grammar and
// the output; see requestFromQuery. By default the response is the
// document in the output format. diagnostics=true answers with an envelope
// holding the corpus JSON, the counters and every diagnostic.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	q := r.URL.Query()
	req, output, err := requestFromQuery(q)
	if err != nil {
		respondErr(w, err)
		return
	}
	if name := q.Get("filename"); name != "" {
		if err := validation.ValidateFilename("filename", name); err != nil {
			respondErr(w, err)
			return
		}
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	key := corpus.Blake3Hex(append([]byte(canonicalQuery(q)+"\n"), body...))
	result, hit := s.cachedParse(key)
	if !hit {
		result, err = parseDocument(q.Get("filename"), body, req, output)
		if err != nil {
			respondErr(w, err)
			return
		}
		if s.cache != nil {
			s.cache.Put(key, result)
		}
		logging.ConversionComplete(r.Context(), "request", output,
			result.Stats.Books, result.Stats.Verses, result.Stats.Dropped,
			"from", result.Format,
			"problems", len(result.Diagnostics),
		)
	}

	w.Header().Set("X-Corpus-Blake3", result.Digest.BLAKE3)
	w.Header().Set("X-Source-Format", result.Format)
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	if wantDiagnostics, _ := strconv.ParseBool(q.Get("diagnostics")); wantDiagnostics {
		respond(w, http.StatusOK, result.ParseResult)
		return
	}
	w.Header().Set("Content-Type", result.contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.output)
}

func (s *Server) cachedParse(key string) (*parsed, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

// readBody reads a size-limited request body, answering the request itself
// when that fails.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				"Request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return nil, false
	}
	if len(body) == 0 {
		respondError(w, http.StatusBadRequest, "EMPTY_BODY", "Request body is empty")
		return nil, false
	}
	return body, true
}

// parseDocument loads data and renders it in the output format.
func parseDocument(name string, data []byte, req convert.Request, output string) (*parsed, error) {
	var diags parser.Collector
	res, err := convert.Load(name, data, req, diags.Sink())
	if err != nil {
		return nil, err
	}
	corpusJSON, err := corpus.Marshal(res.Corpus)
	if err != nil {
		return nil, err
	}

	out := corpusJSON
	if output != "json" {
		if out, err = formats.Emit(output, res.Corpus, formats.EmitOptions{}); err != nil {
			return nil, err
		}
	}

	p := &parsed{
		ParseResult: ParseResult{
			Format:      res.Format,
			Digest:      corpus.HashBytes(corpusJSON),
			Stats:       res.Stats,
			Diagnostics: diags.Diagnostics,
			Corpus:      corpusJSON,
		},
		output:      out,
		contentType: contentTypeFor(output),
	}
	if p.Diagnostics == nil {
		p.Diagnostics = []parser.Diagnostic{}
	}
	return p, nil
}

// requestFromQuery reads a parse request from query parameters:
// format, grammar, version, books (comma separated), duplicates,
// strip_quotes, normalize, skip_clean, strip (repeatable) and output.
func requestFromQuery(q url.Values) (convert.Request, string, error) {
	req := convert.Request{
		Format:        q.Get("format"),
		Grammar:       q.Get("grammar"),
		VersionName:   q.Get("version"),
		Duplicates:    q.Get("duplicates"),
		StripPatterns: q["strip"],
	}
	if books := q.Get("books"); books != "" {
		for _, b := range strings.Split(books, ",") {
			if b = strings.TrimSpace(b); b != "" {
				req.Books = append(req.Books, b)
			}
		}
	}

	var err error
	if v := q.Get("strip_quotes"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return req, "", verrors.NewValidation("strip_quotes", "not a boolean: "+v)
		}
		req.StripQuotes = &b
	}
	if req.NormalizeUnicode, err = boolParam(q, "normalize"); err != nil {
		return req, "", err
	}
	if req.SkipClean, err = boolParam(q, "skip_clean"); err != nil {
		return req, "", err
	}

	output := strings.ToLower(q.Get("output"))
	if output == "" {
		output = "json"
	}
	if !formats.Has(output) {
		return req, "", verrors.NewNotFound("format", output)
	}
	if _, err := req.ParserOptions(nil); err != nil {
		return req, "", err
	}
	return req, output, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, verrors.NewValidation(name, "not a boolean: "+v)
	}
	return b, nil
}

// canonicalQuery encodes the parameters that change a parse result in a
// stable order.
func canonicalQuery(q url.Values) string {
	keep := url.Values{}
	for _, k := range []string{"format", "grammar", "version", "books", "duplicates", "strip_quotes", "normalize", "skip_clean", "strip", "output", "filename"} {
		if v, ok := q[k]; ok {
			keep[k] = v
		}
	}
	return keep.Encode()
}

func contentTypeFor(format string) string {
	switch format {
	case "json", "flat", "biblebook":
		return "application/json"
	case "xml":
		return "application/xml; charset=utf-8"
	case "html":
		return "text/html; charset=utf-8"
	case "sqlite":
		return "application/vnd.sqlite3"
	}
	return "text/plain; charset=utf-8"
}

// errorStatus maps an error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, verrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, verrors.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "INVALID_INPUT"
	case errors.Is(err, verrors.ErrUnsupported):
		return http.StatusBadRequest, "UNSUPPORTED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func respond(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondList(w http.ResponseWriter, data any, total int) {
	writeEnvelope(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

// respondErr answers with the status that matches err.
func respondErr(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logging.Error("request failed", "error", err)
		message = "Internal server error"
	}
	respondError(w, status, code, message)
}

func writeEnvelope(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
