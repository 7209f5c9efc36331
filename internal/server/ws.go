package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/ishara/internal/app"
)

const (
	// broadcastInterval paces snapshot pushes at about 15 per second.
	broadcastInterval = 66 * time.Millisecond
	writeWait         = 2 * time.Second
	clientBuffer      = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SnapshotSource provides the latest published state.
type SnapshotSource interface {
	Snapshot() *app.Snapshot
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	last uint64 // newest Seq queued, guarded by EventsHandler.mu
}

// EventsHandler pushes every new snapshot to WebSocket clients.
type EventsHandler struct {
	source   SnapshotSource
	log      *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// NewEventsHandler creates an EventsHandler and starts its broadcaster.
func NewEventsHandler(source SnapshotSource, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &EventsHandler{
		source:   source,
		log:      logger,
		interval: broadcastInterval,
		clients:  make(map[*client]struct{}),
		done:     make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests. The current snapshot is
// sent right away, then every change.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if snap := h.source.Snapshot(); snap != nil {
		if msg, err := json.Marshal(snap); err == nil {
			c.send <- msg
			c.last = snap.Seq
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer h.remove(c)

	// Reads only detect the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-h.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close stops the broadcaster and disconnects every client.
func (h *EventsHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *EventsHandler) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// broadcast sends the snapshot to every client whenever its sequence
// changes. Slow clients miss updates instead of stalling the others.
func (h *EventsHandler) broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		s := h.source.Snapshot()
		if s == nil {
			continue
		}

		h.mu.Lock()
		var msg []byte
		for c := range h.clients {
			if c.last == s.Seq {
				continue
			}
			if msg == nil {
				var err error
				if msg, err = json.Marshal(s); err != nil {
					h.log.Warn("failed to encode snapshot", "error", err)
					break
				}
			}
			select {
			case c.send <- msg:
				c.last = s.Seq
			default:
			}
		}
		h.mu.Unlock()
	}
}
