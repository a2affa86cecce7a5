package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ============================================================================
// Counter WebSocket: hub + per-client pumps + broadcaster + render sink
// ============================================================================
//
// This file implements the browser-facing surface of the counter:
//   - A Hub that tracks connected WebSocket clients
//   - Per-client write pumps so one slow client doesn't block others
//   - A read pump that turns inbound event envelopes into engine Events
//   - wsRenderSink, which turns engine render calls into broadcasts
//   - A broadcaster loop that turns store snapshots into state_changed messages
//
// Notes:
//   - Slow clients are disconnected when their send buffer fills.
//   - Messages are JSON text frames with an envelope: {type, ts, data}.
//   - The initial message on connect is "state_init" with the latest Snapshot,
//     read from the store (replay of latest, no round trip through the engine).
//
// ============================================================================

const (
	wsTypeStateInit        = "state_init"
	wsTypeStateChanged     = "state_changed"
	wsTypeState            = "state"
	wsTypeError            = "error"
	wsTypeRenderCount      = "render_count"
	wsTypeRenderTickSpeed  = "render_tick_speed"
	wsTypeRenderCountDiff  = "render_count_diff"
	wsTypeRenderSetToField = "render_set_to_field"
)

// wsRenderIntData is the JSON `data` payload for numeric render messages.
type wsRenderIntData struct {
	Value int `json:"value"`
}

// wsRenderTextData is the JSON `data` payload for render_set_to_field.
type wsRenderTextData struct {
	Text string `json:"text"`
}

// wsErrorData is the JSON `data` payload for "error".
type wsErrorData struct {
	Error string `json:"error"`
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalEnvelope(typ string, ts time.Time, data any) ([]byte, error) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return json.Marshal(envelope{Type: typ, Ts: &ts, Data: data})
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	// Configuration
	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	// If zero, a conservative default is used.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size.
	// If zero, a conservative default is used.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "client_id", c.id, "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, then remove them after we unlock.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				if !c.enqueue(msg) {
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.closeSend()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		c.closeSend()

		h.logger.Info("ws client disconnected", "client_id", c.id, "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	// sendMu guards sends on send against its close; the hub and the read
	// pump both enqueue.
	sendMu     sync.Mutex
	sendClosed bool

	// events receives control events decoded from inbound frames.
	events chan<- Event
	store  *StateStore

	id         string
	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, events chan<- Event, store *StateStore, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		events:     events,
		store:      store,
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait = 5 * time.Second

	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	maxInboundMessage = 4096
)

// wsStateCoalesceWindow is the maximum time window during which bursty state
// updates are coalesced (latest-wins) before broadcasting to clients.
const wsStateCoalesceWindow = 50 * time.Millisecond

// closeStatus extracts a human-readable websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logPumpExit("writePump", "write error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logPumpExit("writePump", "ping error", err)
				return
			}
		}
	}
}

// readPump reads inbound event envelopes and forwards them to the engine.
// It exits on read error, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxInboundMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logPumpExit("readPump", "read error", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.handleInbound(data)
	}
}

// handleInbound decodes one inbound frame. Decode failures and a full engine
// queue are reported back to this client only.
func (c *Client) handleInbound(data []byte) {
	ev, err := UnmarshalEvent(data)
	if err != nil {
		c.reply(wsTypeError, wsErrorData{Error: "parse event: " + err.Error()})
		return
	}

	if _, ok := ev.(StateQuery); ok {
		if c.store != nil {
			c.reply(wsTypeState, c.store.Latest())
		}
		return
	}

	if c.events == nil {
		return
	}
	select {
	case c.events <- ev:
		c.logger.Debug("ws event received", "client_id", c.id, "event", eventName(ev))
	default:
		c.reply(wsTypeError, wsErrorData{Error: "event queue full"})
	}
}

// enqueue queues msg without blocking. It reports false if the buffer is
// full or the client is already disconnected.
func (c *Client) enqueue(msg []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue once; writePump exits when it drains.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// reply enqueues a message for this client only; it never blocks.
func (c *Client) reply(typ string, data any) {
	msg, err := marshalEnvelope(typ, time.Time{}, data)
	if err != nil {
		c.logger.Warn("ws reply marshal failed", "client_id", c.id, "type", typ, "error", err)
		return
	}
	if !c.enqueue(msg) {
		c.logger.Warn("ws reply dropped (client full or disconnected)", "client_id", c.id, "type", typ)
	}
}

func (c *Client) logPumpExit(pump, what string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "client_id", c.id, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting ("+what+")", "client_id", c.id, "error", err)
}

// ============================================================================
// HTTP Handler + server wiring helpers
// ============================================================================

type Server struct {
	logger *slog.Logger

	hub    *Hub
	store  *StateStore
	events chan<- Event
}

// NewServer constructs the WS server on top of hub. Call Register on a mux,
// start hub.Run(ctx), and start the broadcaster loop.
func NewServer(logger *slog.Logger, hub *Hub, events chan<- Event, store *StateStore) *Server {
	return &Server{
		logger: logger,
		hub:    hub,
		store:  store,
		events: events,
	}
}

// Register registers the WS handler on the provided mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleWS)
}

var upgrader = websocket.Upgrader{
	// Origin is not checked; the default listen address is loopback only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades and registers a client, then sends state_init.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.events, s.store, s.logger)

	// Queue state_init before registering so it is the first frame the
	// client sees; broadcasts can only follow it.
	snap := s.store.Latest()
	if msg, err := marshalEnvelope(wsTypeStateInit, snap.At.UTC(), snap); err == nil {
		client.enqueue(msg)
	} else {
		s.logger.Warn("ws state_init marshal failed", "error", err)
	}

	s.hub.register <- client

	// Do not tie the pumps to r.Context(): net/http cancels it when the
	// handler returns. The hub and websocket errors govern the lifetime.
	go client.writePump(context.Background())
	go client.readPump(context.Background())
}

// ============================================================================
// Render sink
// ============================================================================

// wsRenderSink broadcasts engine render calls to every websocket client.
type wsRenderSink struct {
	hub    *Hub
	clock  Clock
	logger *slog.Logger
}

func newWSRenderSink(hub *Hub, clock Clock, logger *slog.Logger) *wsRenderSink {
	if clock == nil {
		clock = systemClock{}
	}
	return &wsRenderSink{hub: hub, clock: clock, logger: logger}
}

func (s *wsRenderSink) RenderCount(value int) {
	s.broadcast(wsTypeRenderCount, wsRenderIntData{Value: value})
}

func (s *wsRenderSink) RenderTickSpeed(value int) {
	s.broadcast(wsTypeRenderTickSpeed, wsRenderIntData{Value: value})
}

func (s *wsRenderSink) RenderCountDiff(value int) {
	s.broadcast(wsTypeRenderCountDiff, wsRenderIntData{Value: value})
}

func (s *wsRenderSink) RenderSetToField(text string) {
	s.broadcast(wsTypeRenderSetToField, wsRenderTextData{Text: text})
}

func (s *wsRenderSink) broadcast(typ string, data any) {
	msg, err := marshalEnvelope(typ, s.clock.Now().UTC(), data)
	if err != nil {
		s.logger.Warn("ws render marshal failed", "type", typ, "error", err)
		return
	}
	s.hub.BroadcastBytes(msg)
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster reads snapshots from src and broadcasts them as state_changed
// messages. Bursts are coalesced latest-wins: at most one state_changed is
// flushed per wsStateCoalesceWindow (no debounce-on-silence). The snapshot
// already delivered as state_init on subscribe is skipped.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan Snapshot, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var pending *Snapshot
	var lastSeq uint64
	var haveLast bool
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	flush := func() {
		if pending == nil {
			return
		}
		msg, err := marshalEnvelope(wsTypeStateChanged, pending.At.UTC(), *pending)
		pending = nil
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err)
			return
		}
		hub.BroadcastBytes(msg)
	}

	stopTimer := func() {
		if flushTimer != nil && !flushTimer.Stop() {
			select {
			case <-flushTimer.C:
			default:
			}
		}
		flushTimer = nil
		flushCh = nil
	}

	startTimerIfNeeded := func() {
		if flushTimer != nil {
			return
		}
		flushTimer = time.NewTimer(wsStateCoalesceWindow)
		flushCh = flushTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			// Best-effort: flush pending update before exit.
			flush()
			stopTimer()
			return

		case <-flushCh:
			flush()
			flushTimer = nil
			flushCh = nil

		case snap, ok := <-src:
			if !ok {
				flush()
				stopTimer()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}
			if !haveLast {
				// Replayed latest from Subscribe; clients get it as state_init.
				haveLast = true
				lastSeq = snap.Seq
				continue
			}
			if snap.Seq <= lastSeq {
				continue
			}
			lastSeq = snap.Seq

			s := snap
			pending = &s
			startTimerIfNeeded()
		}
	}
}
