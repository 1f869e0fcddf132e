package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/parser"
	"github.com/FocuswithJustin/versecorpus/internal/convert"
)

// dialWS starts an HTTP test server for s and opens a websocket to it.
func dialWS(t *testing.T, s *Server, header http.Header) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readStream(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketParse(t *testing.T) {
	s := newTestServer(t, nil)
	conn := dialWS(t, s, nil)

	req := ParseMessage{
		Request: convert.Request{VersionName: "Acoli"},
		Text:    "Ki nying Lubanga\n" + acakki,
	}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	accepted := readStream(t, conn)
	if accepted.Type != "accepted" || accepted.JobID == "" {
		t.Fatalf("first message = %+v, want accepted", accepted)
	}

	diag := readStream(t, conn)
	if diag.Type != "diagnostic" || diag.Diagnostic == nil || diag.Diagnostic.Kind != parser.OrphanContinuation {
		t.Fatalf("second message = %+v, want an orphan continuation diagnostic", diag)
	}
	if diag.JobID != accepted.JobID {
		t.Errorf("job id changed from %s to %s", accepted.JobID, diag.JobID)
	}

	result := readStream(t, conn)
	if result.Type != "result" {
		t.Fatalf("third message = %+v, want result", result)
	}
	if result.Stats == nil || result.Stats.Verses != 3 || result.Format != "txt" {
		t.Errorf("result stats = %+v, format = %q", result.Stats, result.Format)
	}
	c, err := corpus.Unmarshal(result.Corpus)
	if err != nil {
		t.Fatalf("result corpus: %v", err)
	}
	if c.Versions[0].Name != "Acoli" {
		t.Errorf("version = %q, want Acoli", c.Versions[0].Name)
	}
	want, err := corpus.Hash(c)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if result.Digest == nil || *result.Digest != want {
		t.Errorf("digest = %+v, want %+v", result.Digest, want)
	}
}

func TestWebSocketDiagnosticsTruncated(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.MaxDiagnostics = 1 })
	conn := dialWS(t, s, nil)

	if err := conn.WriteJSON(ParseMessage{Text: "one\ntwo\nthree\n" + acakki}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readStream(t, conn) // accepted
	if msg := readStream(t, conn); msg.Type != "diagnostic" {
		t.Fatalf("message = %+v, want diagnostic", msg)
	}
	result := readStream(t, conn)
	if result.Type != "result" || result.Truncated != 2 {
		t.Errorf("result = %+v, want 2 truncated diagnostics", result)
	}
}

func TestWebSocketErrors(t *testing.T) {
	s := newTestServer(t, nil)
	conn := dialWS(t, s, nil)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readStream(t, conn); msg.Type != "error" || msg.Error == nil || msg.Error.Code != "INVALID_JSON" {
		t.Errorf("message = %+v, want INVALID_JSON", msg)
	}

	if err := conn.WriteJSON(ParseMessage{Request: convert.Request{Grammar: "columns"}, Text: acakki}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readStream(t, conn) // accepted
	if msg := readStream(t, conn); msg.Type != "error" || msg.Error == nil || msg.Error.Code != "UNSUPPORTED" {
		t.Errorf("message = %+v, want UNSUPPORTED", msg)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.MaxMessageRate = 1 })
	conn := dialWS(t, s, nil)

	for i := 0; i < 3; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Errorf("read error = %v, want policy violation close", err)
		}
		return
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.AllowedOrigins = []string{"https://acoli.example"} })
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("dial from an unlisted origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://acoli.example"}})
	if err != nil {
		t.Fatalf("dial from a listed origin: %v", err)
	}
	conn.Close()
}

func TestHubBroadcast(t *testing.T) {
	s := newTestServer(t, nil)
	a := dialWS(t, s, nil)
	b := dialWS(t, s, nil)
	waitForClients(t, s.hub, 2)

	s.hub.Broadcast(ProgressMessage{Type: "progress", Operation: "parse", Progress: 50})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg ProgressMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "progress" || msg.Progress != 50 || msg.Timestamp == "" {
			t.Errorf("broadcast = %+v", msg)
		}
	}

	a.Close()
	waitForClients(t, s.hub, 1)
}

func TestJobProgressBroadcast(t *testing.T) {
	s := newTestServer(t, nil)
	conn := dialWS(t, s, nil)
	waitForClients(t, s.hub, 1)

	if w := serve(s, http.MethodPost, "/api/jobs", acakki); w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", w.Code)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg ProgressMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == "complete" {
			if msg.Data["verses"] != float64(3) {
				t.Errorf("complete data = %v", msg.Data)
			}
			return
		}
	}
}

func TestHubStop(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	// Broadcasting after the hub stopped must not block.
	h.Broadcast(ProgressMessage{Type: "progress"})
	if h.join(&Client{}) {
		t.Error("join() succeeded on a stopped hub")
	}
	h.leave(&Client{})
}

func TestStreamMessageJSON(t *testing.T) {
	data, err := json.Marshal(StreamMessage{Type: "accepted", JobID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "diagnostic") || strings.Contains(string(data), "corpus") {
		t.Errorf("empty fields not omitted: %s", data)
	}
}
