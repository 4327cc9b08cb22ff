// Package ws provides the WebSocket fan-out used by the status server. The
// coverage run publishes telemetry events through the hub and every connected
// client receives them as they happen. Ping/pong keepalives clean up stale
// connections.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// message is a marshaled event. Sticky messages are remembered per key and
// replayed to clients that connect later, so a late `covctl watch` still sees
// the current state and the latest progress.
type message struct {
	body   []byte
	sticky string
}

// Hub manages WebSocket client connections and fans out published events to
// all of them. It is safe for concurrent use; register, unregister, and
// publish all go through channels.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan message
	done       chan struct{} // closed when Run returns
	upgrader   websocket.Upgrader

	// owned by Run
	sticky     map[string][]byte
	stickyKeys []string

	connected atomic.Int64
	dropped   atomic.Int64
}

// NewHub allocates a hub with buffered channels.
// Call Run in a goroutine to start the event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		sticky:     make(map[string][]byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run processes registrations, unregistrations, broadcasts, and keepalive
// pings in a single select loop. It closes all clients when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.Close()
			}
			for len(h.register) > 0 {
				_ = (<-h.register).Close()
			}
			h.connected.Store(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			for _, k := range h.stickyKeys {
				h.send(c, websocket.TextMessage, h.sticky[k], 3*time.Second)
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				_ = c.Close()
			}

		case msg := <-h.broadcast:
			if msg.sticky != "" {
				if _, seen := h.sticky[msg.sticky]; !seen {
					h.stickyKeys = append(h.stickyKeys, msg.sticky)
				}
				h.sticky[msg.sticky] = msg.body
			}
			for c := range h.clients {
				h.send(c, websocket.TextMessage, msg.body, 3*time.Second)
			}

		case <-ping.C:
			for c := range h.clients {
				h.send(c, websocket.PingMessage, nil, 2*time.Second)
			}
		}
		h.connected.Store(int64(len(h.clients)))
	}
}

// send writes one frame and drops the client on failure.
func (h *Hub) send(c *websocket.Conn, kind int, body []byte, timeout time.Duration) {
	_ = c.SetWriteDeadline(time.Now().Add(timeout))
	if err := c.WriteMessage(kind, body); err != nil {
		delete(h.clients, c)
		_ = c.Close()
	}
}

// Handler returns an http.Handler that upgrades incoming requests to
// WebSocket connections and registers them with the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written an HTTP error response.
			return
		}
		if !h.add(conn) {
			return
		}

		go func() {
			defer h.remove(conn)
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				return nil
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// add hands conn to Run. Once Run has returned nobody will ever own the
// connection, so it is closed instead and add reports false.
func (h *Hub) add(conn *websocket.Conn) bool {
	select {
	case <-h.done:
		_ = conn.Close()
		return false
	default:
	}
	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
		return false
	}
	// Run may have stopped between the send and its final drain.
	select {
	case <-h.done:
		_ = conn.Close()
		return false
	default:
		return true
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		_ = conn.Close()
	}
}

// Publish marshals a telemetry event and queues it for delivery to all
// connected clients. The coverage loop must never wait on a slow client, so
// when the broadcast channel is full the event is dropped and counted.
func (h *Hub) Publish(v any) {
	h.enqueue(v, "")
}

// PublishSticky is Publish for events that new clients should also receive
// on connect. A later event with the same key replaces the earlier one.
func (h *Hub) PublishSticky(key string, v any) {
	h.enqueue(v, key)
}

func (h *Hub) enqueue(v any, sticky string) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- message{body: b, sticky: sticky}:
	default:
		h.dropped.Add(1)
	}
}

// Clients is the number of currently registered connections.
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// Dropped is the number of events discarded because the queue was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
