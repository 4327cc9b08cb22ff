package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev map[string]any
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode %q: %v", msg, err)
	}
	return ev
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversStickyThenLive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	h.PublishSticky("state", map[string]any{"type": "state", "to": "RUNNING"})

	conn := dial(t, srv)
	defer conn.Close()

	if ev := readEvent(t, conn); ev["type"] != "state" || ev["to"] != "RUNNING" {
		t.Fatalf("first event = %v, want the sticky state", ev)
	}

	waitClients(t, h, 1)
	h.Publish(map[string]any{"type": "progress", "step": 30})
	if ev := readEvent(t, conn); ev["type"] != "progress" {
		t.Fatalf("second event = %v, want progress", ev)
	}
}

func TestHubStickyReplacesByKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	go h.Run(ctx)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	h.PublishSticky("progress", map[string]any{"type": "progress", "step": 1})
	h.PublishSticky("progress", map[string]any{"type": "progress", "step": 2})

	// Let the hub consume both before anyone connects.
	deadline := time.Now().Add(2 * time.Second)
	for len(h.broadcast) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	conn := dial(t, srv)
	defer conn.Close()

	if ev := readEvent(t, conn); ev["step"] != float64(2) {
		t.Fatalf("replayed event = %v, want step 2", ev)
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	h := NewHub() // Run not started: nothing drains the queue.
	for i := 0; i < cap(h.broadcast)+10; i++ {
		h.Publish(map[string]int{"i": i})
	}
	if h.Dropped() != 10 {
		t.Errorf("Dropped() = %d, want 10", h.Dropped())
	}
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitClients(t, h, 1)

	cancel()
	<-done

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to be closed")
	}
	if h.Clients() != 0 {
		t.Errorf("Clients() = %d after shutdown", h.Clients())
	}
}

func TestHubRejectsClientsAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	cancel()
	h.Run(ctx)

	var handlers sync.WaitGroup
	inner := h.Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.Add(1)
		defer handlers.Done()
		inner.ServeHTTP(w, r)
	}))
	defer srv.Close()

	// More clients than the register buffer holds.
	for i := 0; i < cap(h.register)+4; i++ {
		conn := dial(t, srv)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conn.ReadMessage()
		if ne, ok := err.(net.Error); err == nil || (ok && ne.Timeout()) {
			t.Fatalf("client %d: want the server to close the connection, got %v", i, err)
		}
		conn.Close()
	}

	finished := make(chan struct{})
	go func() {
		handlers.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade handlers still blocked after shutdown")
	}
}
