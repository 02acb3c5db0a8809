package services

import (
	"testing"
	"time"
)

func newTestClient(hub *Hub, id uint, userType string, buffer int) *Client {
	return &Client{
		ID:       id,
		UserType: userType,
		Send:     make(chan []byte, buffer),
		Hub:      hub,
	}
}

func register(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	select {
	case hub.register <- client:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept registration")
	}
}

func TestBroadcastToUserEvictsFullClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := newTestClient(hub, 1, "driver", 1)
	healthy := newTestClient(hub, 1, "driver", 4)
	register(t, hub, slow)
	register(t, hub, healthy)

	// First message fills the slow client's buffer, second overflows it
	hub.BroadcastToUser(1, []byte("one"))
	hub.BroadcastToUser(1, []byte("two"))

	if got := hub.GetConnectedClients(); got != 1 {
		t.Fatalf("connected clients = %d, want 1 after evicting the full client", got)
	}

	if msg := <-slow.Send; string(msg) != "one" {
		t.Errorf("slow client buffered %q, want %q", msg, "one")
	}
	if _, ok := <-slow.Send; ok {
		t.Error("evicted client's send channel should be closed")
	}

	if msg := <-healthy.Send; string(msg) != "one" {
		t.Errorf("healthy client got %q, want %q", msg, "one")
	}
	if msg := <-healthy.Send; string(msg) != "two" {
		t.Errorf("healthy client got %q, want %q", msg, "two")
	}
}

func TestBroadcastToUserTypeEvictsFullClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := newTestClient(hub, 1, "driver", 1)
	customer := newTestClient(hub, 2, "customer", 1)
	register(t, hub, slow)
	register(t, hub, customer)

	hub.BroadcastToUserType("driver", []byte("one"))
	hub.BroadcastToUserType("driver", []byte("two"))

	if got := hub.GetConnectedClients(); got != 1 {
		t.Fatalf("connected clients = %d, want 1 after evicting the full driver", got)
	}

	// The customer never matched the filter and keeps its slot
	select {
	case msg := <-customer.Send:
		t.Errorf("customer unexpectedly received %q", msg)
	default:
	}
}

func TestEvictedClientStaysGoneAfterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, 7, "customer", 1)
	register(t, hub, client)

	hub.BroadcastToUser(7, []byte("one"))
	hub.BroadcastToUser(7, []byte("two"))

	// readPump's deferred unregister fires after eviction; it must not close the
	// channel a second time or re-add the client
	select {
	case hub.unregister <- client:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept unregister")
	}

	deadline := time.After(time.Second)
	for hub.GetConnectedClients() != 0 {
		select {
		case <-deadline:
			t.Fatal("client still registered after unregister")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
