// Package uiserver mirrors the session state to browsers over websockets and
// accepts start and stop requests from them.
package uiserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-trial/core/trial"
	"github.com/koscakluka/ema-trial/core/uistate"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const scopeName = "github.com/koscakluka/ema-trial/internal/uiserver"

var logger = otelslog.NewLogger(scopeName)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024

	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     checkOrigin,
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// checkOrigin accepts clients without an Origin header, pages served from the
// mirror's own host and pages served from loopback, such as a local dev
// server. Any other site could otherwise start sessions from a browser tab.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Controls lets browser clients drive the session.
type Controls interface {
	StartSession(ctx context.Context, setup trial.Setup) error
	StopSession()
}

type Hub struct {
	store    *uistate.Store
	controls Controls
	setup    trial.Setup

	updates     <-chan struct{}
	unsubscribe func()

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub for store. controls may be nil for a read-only
// mirror; setup provides the case details browsers cannot choose.
func NewHub(store *uistate.Store, controls Controls, setup trial.Setup) *Hub {
	updates, unsubscribe := store.Subscribe()
	return &Hub{
		store:       store,
		controls:    controls,
		setup:       setup,
		updates:     updates,
		unsubscribe: unsubscribe,
		clients:     map[*client]struct{}{},
	}
}

// Handler serves the websocket endpoint at /ws and the current snapshot at
// /snapshot.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/snapshot", h.serveSnapshot)
	return otelhttp.NewHandler(mux, "uiserver")
}

// Run broadcasts every store change until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer h.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.updates:
			h.broadcast()
		}
	}
}

func (h *Hub) broadcast() {
	payload, err := h.snapshotMessage()
	if err != nil {
		logger.Error("failed to encode snapshot", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(payload)
	}
}

func (h *Hub) snapshotMessage() ([]byte, error) {
	return json.Marshal(envelope{Type: "snapshot", Snapshot: h.store.Snapshot()})
}

func (h *Hub) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.store.Snapshot()); err != nil {
		logger.Warn("failed to write snapshot", "error", err)
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	payload, err := h.snapshotMessage()
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if err == nil {
		c.enqueue(payload)
	}
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) handleCommand(raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		logger.Warn("ignoring malformed command", "error", err)
		return
	}
	if h.controls == nil {
		logger.Debug("ignoring command on read-only hub", "type", cmd.Type)
		return
	}

	switch cmd.Type {
	case "start":
		setup := h.setup
		setup.Phase = trial.Phase(cmd.Phase)
		setup.Mode = trial.Mode(cmd.Mode)
		// Session start blocks on the handshake; the store reports progress.
		go func() {
			if err := h.controls.StartSession(context.Background(), setup); err != nil {
				logger.Warn("session start requested by browser failed", "error", err)
			}
		}()
	case "stop":
		go h.controls.StopSession()
	default:
		logger.Warn("unknown command", "type", cmd.Type)
	}
}

type envelope struct {
	Type     string           `json:"type"`
	Snapshot uistate.Snapshot `json:"snapshot"`
}

type command struct {
	Type  string `json:"type"`
	Phase string `json:"phase,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// enqueue drops the oldest pending snapshot for slow readers; only the most
// recent state matters. Callers hold the hub lock, so send is open.
func (c *client) enqueue(payload []byte) {
	for {
		select {
		case c.send <- payload:
			return
		default:
			select {
			case <-c.send:
			default:
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			c.hub.handleCommand(message)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
