package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"qrmenu-service/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub() *Hub {
	return NewHub(testLogger())
}

// newTestClient builds a client with no real socket; tests read broadcasts
// straight off the send channel.
func newTestClient(h *Hub) *Client {
	c := NewClient(h, nil)
	h.clients[c] = true
	return c
}

func recvEnvelope(t *testing.T, c *Client) *protocol.Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("broadcast frame is not an envelope: %v", err)
		}
		return &env
	default:
		t.Fatal("expected a broadcast message, got none")
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("expected no message, got %s", data)
	default:
	}
}

func TestBroadcastRestaurantScoping(t *testing.T) {
	hub := newTestHub()

	c1 := newTestClient(hub)
	c2 := newTestClient(hub)
	hub.SetRestaurant(c1, 1)
	hub.SetRestaurant(c2, 2)

	sent := hub.BroadcastToRestaurant(1, []byte(`{"type":"new-order-received","payload":{}}`))

	if sent != 1 {
		t.Errorf("expected 1 delivery, got %d", sent)
	}
	recvEnvelope(t, c1)
	assertNoMessage(t, c2)
}

func TestBroadcastTableNarrowing(t *testing.T) {
	hub := newTestHub()

	table3 := newTestClient(hub)
	table5 := newTestClient(hub)
	noTable := newTestClient(hub)
	hub.SetTable(table3, 1, 3)
	hub.SetTable(table5, 1, 5)
	hub.SetRestaurant(noTable, 1)

	sent := hub.BroadcastToTable(1, 3, []byte(`{"type":"order-status-updated","payload":{}}`))

	if sent != 1 {
		t.Errorf("expected 1 delivery, got %d", sent)
	}
	recvEnvelope(t, table3)
	assertNoMessage(t, table5)
	assertNoMessage(t, noTable)
}

func TestSetTableAlsoSetsRestaurant(t *testing.T) {
	hub := newTestHub()

	c := newTestClient(hub)
	hub.SetTable(c, 7, 3)

	// A table registration must always carry its restaurant, so
	// restaurant-wide broadcasts reach table-scoped connections too.
	if sent := hub.BroadcastToRestaurant(7, []byte(`{}`)); sent != 1 {
		t.Errorf("table-registered client not reachable restaurant-wide, sent=%d", sent)
	}
}

func TestUnregisteredClientReceivesNothing(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	c := NewClient(hub, nil)
	hub.Register(c)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.SetRestaurant(c, 1)
	hub.Unregister(c)
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	if sent := hub.BroadcastToRestaurant(1, []byte(`{}`)); sent != 0 {
		t.Errorf("expected 0 deliveries after unregister, got %d", sent)
	}
}

func TestSlowClientDroppedNotBlocking(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	slow := NewClient(hub, nil)
	hub.Register(slow)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	hub.SetRestaurant(slow, 1)

	// Fill the send buffer so the next broadcast cannot be queued.
	for i := 0; i < sendBufferSize; i++ {
		slow.send <- []byte(`{}`)
	}

	done := make(chan struct{})
	go func() {
		hub.BroadcastToRestaurant(1, []byte(`{}`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}

	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	if code := slow.closeCode.Load(); code != websocket.CloseTryAgainLater {
		t.Errorf("dropped client close code = %d, want %d", code, websocket.CloseTryAgainLater)
	}
}

func TestBroadcastAfterRemovalSkipsClosedClient(t *testing.T) {
	hub := newTestHub()

	gone := newTestClient(hub)
	stay := newTestClient(hub)
	hub.SetRestaurant(gone, 1)
	hub.SetRestaurant(stay, 1)

	hub.removeClient(gone)

	// The removed client's send channel is already closed; the broadcast
	// must route around it instead of sending on it.
	if sent := hub.BroadcastToRestaurant(1, []byte(`{}`)); sent != 1 {
		t.Errorf("expected 1 delivery to the surviving client, got %d", sent)
	}
	recvEnvelope(t, stay)
}

func TestBroadcastDuringDisconnectChurn(t *testing.T) {
	hub := newTestHub()
	go hub.Run()
	defer hub.Stop()

	stay := NewClient(hub, nil)
	hub.Register(stay)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	hub.SetRestaurant(stay, 1)

	// Churn connections for the same restaurant while broadcasts are in
	// flight. A close racing an in-flight send would panic the hub.
	churned := make(chan struct{})
	go func() {
		defer close(churned)
		for i := 0; i < 200; i++ {
			c := NewClient(hub, nil)
			hub.Register(c)
			hub.SetRestaurant(c, 1)
			hub.Unregister(c)
		}
	}()

	for i := 0; i < 200; i++ {
		hub.BroadcastToRestaurant(1, []byte(`{}`))
		for len(stay.send) > 0 {
			<-stay.send
		}
	}

	select {
	case <-churned:
	case <-time.After(5 * time.Second):
		t.Fatal("connection churn did not finish")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
