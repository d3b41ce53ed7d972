package server

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// Clients here carry a nil websocket.Conn; the hub guards every Close

func newTestHub(t *testing.T, sendBuf, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(zaptest.NewLogger(t), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func runHub(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for hub to stop")
		}
	})
}

func registered(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	h.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		_, ok := h.clients[c]
		return ok
	}, "client not registered in time")
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	runHub(t, hub)

	c1 := NewClient(hub, nil, "c1")
	c2 := NewClient(hub, nil, "c2")
	registered(t, hub, c1)
	registered(t, hub, c2)

	msg := []byte(`{"type":"sweep","data":{"sweep":12.5}}`)
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("client %s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for client %s to receive broadcast", c.remoteAddr)
		}
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	runHub(t, hub)

	slow := NewClient(hub, nil, "slow")
	fast := &Client{id: "fast", hub: hub, send: make(chan []byte, 8), remoteAddr: "fast", logger: hub.logger}
	registered(t, hub, slow)
	registered(t, hub, fast)

	// Stuck client: its single slot is already taken
	if !slow.enqueue([]byte(`"queued"`)) {
		t.Fatalf("expected first enqueue to succeed")
	}

	msg := []byte(`{"type":"reveal_changed"}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", got, msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	select {
	case <-slow.send:
	default:
	}
	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")

	if n := hub.Clients(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
}

func TestHub_BroadcastBytesDropsWhenFull(t *testing.T) {
	hub := newTestHub(t, 1, 1)

	hub.BroadcastBytes([]byte("a"))
	hub.BroadcastBytes([]byte("b"))

	if got := len(hub.broadcast); got != 1 {
		t.Fatalf("queued = %d, want 1", got)
	}
	if got := string(<-hub.broadcast); got != "a" {
		t.Fatalf("kept %q, want the first message", got)
	}
}

func TestHub_DropAfterStopDoesNotBlock(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	c := NewClient(hub, nil, "late")
	for i := 0; i < 100; i++ {
		hub.drop(c)
	}
}

func TestHub_AddAfterStopDoesNotBlock(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	// A full register queue leaves done as the only ready case
	for len(hub.register) < cap(hub.register) {
		hub.register <- NewClient(hub, nil, "queued")
	}

	added := make(chan bool, 1)
	go func() { added <- hub.add(NewClient(hub, nil, "late")) }()
	select {
	case ok := <-added:
		if ok {
			t.Fatal("stopped hub accepted a client")
		}
	case <-time.After(time.Second):
		t.Fatal("add blocked on a stopped hub")
	}
}

func TestHub_AddRegistersWhileRunning(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	runHub(t, hub)

	c := NewClient(hub, nil, "c")
	if !hub.add(c) {
		t.Fatal("running hub refused a client")
	}
	waitUntil(t, 500*time.Millisecond, func() bool { return hub.Clients() == 1 }, "client not registered in time")
}

func TestClient_IDsAreUnique(t *testing.T) {
	a := NewClient(nil, nil, "a")
	b := NewClient(nil, nil, "b")
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("ids %q and %q must be distinct and non-empty", a.ID(), b.ID())
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
