package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/parser"
	"github.com/FocuswithJustin/versecorpus/internal/convert"
	"github.com/FocuswithJustin/versecorpus/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// ProgressMessage is broadcast to every client while jobs run.
type ProgressMessage struct {
	Type      string         `json:"type"`      // "progress", "complete", "error", "shutdown"
	Operation string         `json:"operation"` // "parse", "server"
	Stage     string         `json:"stage,omitempty"`
	Progress  int            `json:"progress"` // 0-100
	Message   string         `json:"message,omitempty"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// ParseMessage is what a client sends to have a text parsed.
type ParseMessage struct {
	convert.Request
	Text string `json:"text"`
}

// StreamMessage is one reply to a ParseMessage. A parse is answered by
// "accepted", then any number of "diagnostic", then "result" or "error".
type StreamMessage struct {
	Type       string             `json:"type"`
	JobID      string             `json:"job_id"`
	Diagnostic *parser.Diagnostic `json:"diagnostic,omitempty"`
	Format     string             `json:"format,omitempty"`
	Digest     *corpus.Digest     `json:"digest,omitempty"` // of corpus.Marshal, as ParseResult
	Stats      *parser.Stats      `json:"stats,omitempty"`
	Truncated  int                `json:"truncated,omitempty"` // diagnostics not streamed
	Corpus     json.RawMessage    `json:"corpus,omitempty"`
	Error      *APIError          `json:"error,omitempty"`
	Timestamp  string             `json:"timestamp"`
}

// Client is one websocket connection. The hub never closes send; a client
// is stopped by closing done, after which its pumps exit.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func (c *Client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Hub maintains active websocket connections and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a websocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

// Run handles registration and broadcasting until ctx is done, then stops
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.stop()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_connected", "clients", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.stop()
			}
			n := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_disconnected", "clients", n)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					logging.Warn("websocket client too slow, dropping broadcast")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a progress message to all connected clients.
func (h *Hub) Broadcast(msg ProgressMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal progress message", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.stopped:
	default:
		logging.Warn("broadcast channel full, dropping message")
	}
}

// join registers c unless the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

// leave unregisters c unless the hub has stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// reply queues msg for this client only. It gives up when the client is
// stopped or does not drain its queue within writeWait.
func (c *Client) reply(msg StreamMessage) bool {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal stream message", "error", err)
		return false
	}
	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case c.send <- data:
		return true
	case <-c.done:
	case <-timer.C:
		c.stop()
	}
	return false
}

// readPump reads parse requests and answers each in turn.
func (c *Client) readPump(maxDiagnostics int) {
	defer func() {
		c.hub.leave(c)
		c.stop()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			logging.WebSocketEvent("rate_limited", "bytes", len(message))
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Rate limit exceeded"),
				time.Now().Add(writeWait))
			return
		}
		if !c.handleParse(message, maxDiagnostics) {
			return
		}
	}
}

// handleParse answers one parse request. It returns false when the client
// has gone away.
func (c *Client) handleParse(message []byte, maxDiagnostics int) bool {
	jobID := uuid.NewString()
	var msg ParseMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return c.reply(StreamMessage{Type: "error", JobID: jobID, Error: &APIError{Code: "INVALID_JSON", Message: "Invalid JSON message"}})
	}
	if !c.reply(StreamMessage{Type: "accepted", JobID: jobID}) {
		return false
	}

	var diags parser.Collector
	res, err := convert.Load("", []byte(msg.Text), msg.Request, diags.Sink())
	if err != nil {
		_, code := errorStatus(err)
		return c.reply(StreamMessage{Type: "error", JobID: jobID, Error: &APIError{Code: code, Message: err.Error()}})
	}

	truncated := 0
	for i := range diags.Diagnostics {
		if maxDiagnostics > 0 && i >= maxDiagnostics {
			truncated = len(diags.Diagnostics) - i
			break
		}
		if !c.reply(StreamMessage{Type: "diagnostic", JobID: jobID, Diagnostic: &diags.Diagnostics[i]}) {
			return false
		}
	}

	data, err := corpus.Marshal(res.Corpus)
	if err != nil {
		return c.reply(StreamMessage{Type: "error", JobID: jobID, Error: &APIError{Code: "INTERNAL_ERROR", Message: err.Error()}})
	}
	digest := corpus.HashBytes(data)
	logging.WebSocketEvent("parse_complete", "job_id", jobID, "verses", res.Stats.Verses, "diagnostics", len(diags.Diagnostics))
	return c.reply(StreamMessage{
		Type:      "result",
		JobID:     jobID,
		Format:    res.Format,
		Digest:    &digest,
		Stats:     &res.Stats,
		Truncated: truncated,
		Corpus:    data,
	})
}

// writePump writes queued messages and pings until the client stops.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.stop()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleWebSocket upgrades the connection after checking its origin,
// limits message size and rate, and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.cfg.AllowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if !isOriginAllowed(origin, s.cfg.AllowedOrigins) {
				logging.WebSocketEvent("origin_rejected", "origin", origin)
				return false
			}
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", "error", err)
		return
	}
	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}

	perSecond := max(s.cfg.MaxMessageRate, 1)
	client := &Client{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond*2),
	}
	if !s.hub.join(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	logging.WebSocketEvent("client_accepted", "remote", getClientIP(r), "origin", r.Header.Get("Origin"))

	go client.writePump()
	go client.readPump(s.cfg.MaxDiagnostics)
}
