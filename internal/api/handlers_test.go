package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	verrors "github.com/FocuswithJustin/versecorpus/core/errors"
	"github.com/FocuswithJustin/versecorpus/core/parser"
)

const acakki = "Acakki 1\n1I acaki ki lobo.\n2Lobo onongo pe ki kit.\nAcakki 2\n1Polo ki lobo otum.\n"

// newTestServer builds a server without rate limiting and starts its
// background loops for the duration of the test.
func newTestServer(t *testing.T, configure func(*Config)) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RateLimitRequests = 0
	if configure != nil {
		configure(&cfg)
	}
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	s.Start(t.Context())
	return s
}

func serve(s *Server, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return resp
}

// decodeData re-decodes the envelope data into v.
func decodeData(t *testing.T, resp APIResponse, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestHandleRoot(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if !resp.Success {
		t.Error("expected success")
	}
	data, ok := resp.Data.(map[string]any)
	if !ok || data["name"] != "versecorpus API" {
		t.Errorf("unexpected root data: %v", resp.Data)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not applied")
	}
}

func TestHandleRootNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, http.MethodGet, "/nowhere", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	if resp := decodeResponse(t, w); resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", resp.Error)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var info HealthInfo
	decodeData(t, decodeResponse(t, w), &info)
	if info.Status != "healthy" {
		t.Errorf("status = %q, want healthy", info.Status)
	}
	if info.Formats != 7 {
		t.Errorf("formats = %d, want 7", info.Formats)
	}
	if info.SQLite.DriverName == "" {
		t.Error("sqlite driver not reported")
	}

	w = serve(s, http.MethodPost, "/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health: expected status 405, got %d", w.Code)
	}
}

func TestHandleFormats(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, http.MethodGet, "/api/formats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Meta == nil || resp.Meta.Total != 7 {
		t.Errorf("meta = %+v, want total 7", resp.Meta)
	}
	var list []struct {
		Name string `json:"name"`
	}
	decodeData(t, resp, &list)
	if len(list) == 0 || list[0].Name != "biblebook" {
		t.Errorf("formats = %+v, want sorted by name", list)
	}
}

func TestHandleParseJSON(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, http.MethodPost, "/api/parse?version=Acoli", acakki)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Source-Format") != "txt" {
		t.Errorf("X-Source-Format = %q, want txt", w.Header().Get("X-Source-Format"))
	}
	if w.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", w.Header().Get("X-Cache"))
	}

	c, err := corpus.Unmarshal(w.Body.Bytes())
	if err != nil {
		t.Fatalf("response is not a corpus: %v", err)
	}
	if got := corpus.Count(c); got.Books != 1 || got.Chapters != 2 || got.Verses != 3 {
		t.Errorf("Count() = %+v", got)
	}
	if c.Versions[0].Name != "Acoli" {
		t.Errorf("version = %q, want Acoli", c.Versions[0].Name)
	}
	if want := corpus.HashBytes(w.Body.Bytes()).BLAKE3; w.Header().Get("X-Corpus-Blake3") != want {
		t.Errorf("X-Corpus-Blake3 = %q, want %q", w.Header().Get("X-Corpus-Blake3"), want)
	}
}

func TestHandleParseOutputFormat(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, http.MethodPost, "/api/parse?output=txt", acakki)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "Acakki 1:1\tI acaki ki lobo.") {
		t.Errorf("unexpected txt output:\n%s", w.Body.String())
	}
}

func TestHandleParseDiagnostics(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, http.MethodPost, "/api/parse?diagnostics=true", "Ki nying Lubanga\n"+acakki)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var result ParseResult
	decodeData(t, decodeResponse(t, w), &result)
	if result.Stats.Dropped != 1 || result.Stats.Verses != 3 {
		t.Errorf("Stats = %+v", result.Stats)
	}
	if len(result.Diagnostics) != 1 || result.Diagnostics[0].Kind != parser.OrphanContinuation {
		t.Fatalf("Diagnostics = %+v, want one orphan continuation", result.Diagnostics)
	}
	if result.Diagnostics[0].Line != 1 {
		t.Errorf("diagnostic line = %d, want 1", result.Diagnostics[0].Line)
	}
	c, err := corpus.Unmarshal(result.Corpus)
	if err != nil {
		t.Fatalf("envelope corpus: %v", err)
	}
	want, err := corpus.Hash(c)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if result.Digest != want {
		t.Errorf("Digest = %+v, want %+v", result.Digest, want)
	}

	plain := serve(s, http.MethodPost, "/api/parse", "Ki nying Lubanga\n"+acakki)
	if got := plain.Header().Get("X-Corpus-Blake3"); got != result.Digest.BLAKE3 {
		t.Errorf("X-Corpus-Blake3 = %q, envelope digest %q", got, result.Digest.BLAKE3)
	}
}

func TestHandleParseCache(t *testing.T) {
	s := newTestServer(t, nil)

	first := serve(s, http.MethodPost, "/api/parse?grammar=split", acakki)
	second := serve(s, http.MethodPost, "/api/parse?grammar=split", acakki)
	if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("X-Cache = %q then %q, want MISS then HIT",
			first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("cached response differs")
	}

	other := serve(s, http.MethodPost, "/api/parse?grammar=split&version=Other", acakki)
	if other.Header().Get("X-Cache") != "MISS" {
		t.Error("different query should not hit the cache")
	}
	if st := s.cache.Stats(); st.Hits != 1 {
		t.Errorf("cache hits = %d, want 1", st.Hits)
	}
}

func TestHandleParseWithoutCache(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.CacheEntries = 0 })

	serve(s, http.MethodPost, "/api/parse", acakki)
	w := serve(s, http.MethodPost, "/api/parse", acakki)
	if w.Header().Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", w.Header().Get("X-Cache"))
	}
	if w = serve(s, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health without cache: status %d", w.Code)
	}
}

func TestHandleParseErrors(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.MaxBodyBytes = 64 })

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"wrong method", http.MethodGet, "/api/parse", "", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"empty body", http.MethodPost, "/api/parse", "", http.StatusBadRequest, "EMPTY_BODY"},
		{"body too large", http.MethodPost, "/api/parse", acakki + acakki, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"unknown grammar", http.MethodPost, "/api/parse?grammar=columns", "Acakki 1\n", http.StatusBadRequest, "UNSUPPORTED"},
		{"unknown output", http.MethodPost, "/api/parse?output=pdf", "Acakki 1\n", http.StatusNotFound, "NOT_FOUND"},
		{"bad duplicates", http.MethodPost, "/api/parse?duplicates=merge", "Acakki 1\n", http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{"bad boolean", http.MethodPost, "/api/parse?normalize=often", "Acakki 1\n", http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{"bad strip pattern", http.MethodPost, "/api/parse?strip=%5B", "Acakki 1\n", http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{"filename with a path", http.MethodPost, "/api/parse?filename=..%2Facakki.txt", "Acakki 1\n", http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{"structured input that does not parse", http.MethodPost, "/api/parse?format=json", "{", http.StatusUnprocessableEntity, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, tt.method, tt.target, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			resp := decodeResponse(t, w)
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestRequestFromQuery(t *testing.T) {
	q := url.Values{
		"grammar":      {"split-heading"},
		"books":        {" Acakki , ,Nia"},
		"strip_quotes": {"true"},
		"skip_clean":   {"1"},
		"output":       {"XML"},
	}
	req, output, err := requestFromQuery(q)
	if err != nil {
		t.Fatalf("requestFromQuery() error: %v", err)
	}
	if output != "xml" {
		t.Errorf("output = %q, want xml", output)
	}
	if len(req.Books) != 2 || req.Books[0] != "Acakki" || req.Books[1] != "Nia" {
		t.Errorf("Books = %q", req.Books)
	}
	if req.StripQuotes == nil || !*req.StripQuotes || !req.SkipClean || req.NormalizeUnicode {
		t.Errorf("flags = %+v", req)
	}
}

func TestCanonicalQuery(t *testing.T) {
	a := canonicalQuery(url.Values{"version": {"Acoli"}, "grammar": {"split"}, "diagnostics": {"true"}})
	b := canonicalQuery(url.Values{"grammar": {"split"}, "version": {"Acoli"}})
	if a != b {
		t.Errorf("canonicalQuery() = %q and %q, want equal", a, b)
	}
	if c := canonicalQuery(url.Values{"grammar": {"inline"}}); c == b {
		t.Error("different grammar gave the same key")
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{verrors.NewNotFound("format", "pdf"), http.StatusNotFound, "NOT_FOUND"},
		{verrors.NewValidation("duplicates", "bad"), http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{fmt.Errorf("wrapped: %w", verrors.NewParse("JSON", "", "eof")), http.StatusUnprocessableEntity, "INVALID_INPUT"},
		{verrors.NewUnsupported("grammar", "columns"), http.StatusBadRequest, "UNSUPPORTED"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("errorStatus(%v) = %d %s, want %d %s", tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}
}

func TestRespondErrHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	respondErr(w, errors.New("open /srv/secret: permission denied"))
	resp := decodeResponse(t, w)
	if strings.Contains(resp.Error.Message, "secret") {
		t.Errorf("internal error leaked: %q", resp.Error.Message)
	}
}
