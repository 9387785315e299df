package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"qrmenu-service/internal/models"
	"qrmenu-service/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusCall struct {
	orderID uint
	status  string
}

// mockOrderStore records UpdateStatus calls; onUpdate runs inside the call
// so tests can observe the world mid-write.
type mockOrderStore struct {
	mu       sync.Mutex
	calls    []statusCall
	err      error
	onUpdate func()
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, orderID uint, status string) (*models.Order, error) {
	m.mu.Lock()
	m.calls = append(m.calls, statusCall{orderID, status})
	m.mu.Unlock()

	if m.onUpdate != nil {
		m.onUpdate()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &models.Order{ID: orderID, Status: status}, nil
}

func (m *mockOrderStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestDispatcher(store OrderStore) (*Dispatcher, *Hub) {
	hub := newTestHub()
	return NewDispatcher(hub, store, testLogger()), hub
}

func envelopeJSON(t *testing.T, msgType string, payload interface{}) []byte {
	t.Helper()
	env, err := protocol.NewEnvelope(msgType, payload)
	require.NoError(t, err)
	data, err := env.Encode()
	require.NoError(t, err)
	return data
}

func TestDispatchRegisterFlow(t *testing.T) {
	d, hub := newTestDispatcher(&mockOrderStore{})
	c := newTestClient(hub)

	d.Dispatch(context.Background(), c, envelopeJSON(t, protocol.TypeRegisterRestaurant,
		&protocol.RegisterRestaurantPayload{RestaurantID: 7}))

	if got := hub.BroadcastToRestaurant(7, []byte(`{}`)); got != 1 {
		t.Fatalf("restaurant registration not applied, deliveries=%d", got)
	}
	<-c.send

	d.Dispatch(context.Background(), c, envelopeJSON(t, protocol.TypeRegisterTable,
		&protocol.RegisterTablePayload{RestaurantID: 7, TableID: 3}))

	if got := hub.BroadcastToTable(7, 3, []byte(`{}`)); got != 1 {
		t.Fatalf("table registration not applied, deliveries=%d", got)
	}
}

func TestUpdateOrderStatusPersistsBeforeBroadcast(t *testing.T) {
	staff := make(chan struct{}) // closed once staff has a message queued

	store := &mockOrderStore{}
	d, hub := newTestDispatcher(store)

	sender := newTestClient(hub)
	watcher := newTestClient(hub)
	hub.SetRestaurant(sender, 7)
	hub.SetRestaurant(watcher, 7)

	// The persistence write must be acknowledged before any broadcast:
	// at the moment the store is called, nothing may be queued yet.
	store.onUpdate = func() {
		assert.Empty(t, watcher.send, "broadcast fired before the write was acknowledged")
		close(staff)
	}

	d.Dispatch(context.Background(), sender, envelopeJSON(t, protocol.TypeUpdateOrderStatus,
		&protocol.UpdateOrderStatusPayload{OrderID: 42, Status: "confirmed", RestaurantID: 7}))

	<-staff
	require.Equal(t, []statusCall{{42, "confirmed"}}, store.calls)

	env := recvEnvelope(t, watcher)
	assert.Equal(t, protocol.TypeOrderStatusUpdated, env.Type)

	var p protocol.UpdateOrderStatusPayload
	require.NoError(t, env.DecodePayload(&p))
	assert.Equal(t, uint(42), p.OrderID)
	assert.Equal(t, "confirmed", p.Status)
	assert.Equal(t, uint(7), p.RestaurantID)
}

func TestUpdateOrderStatusFailureSuppressesBroadcast(t *testing.T) {
	store := &mockOrderStore{err: errors.New("db down")}
	d, hub := newTestDispatcher(store)

	sender := newTestClient(hub)
	watcher := newTestClient(hub)
	hub.SetRestaurant(sender, 7)
	hub.SetRestaurant(watcher, 7)

	d.Dispatch(context.Background(), sender, envelopeJSON(t, protocol.TypeUpdateOrderStatus,
		&protocol.UpdateOrderStatusPayload{OrderID: 42, Status: "confirmed", RestaurantID: 7}))

	require.Equal(t, 1, store.callCount())
	assertNoMessage(t, watcher)
	assertNoMessage(t, sender)
}

func TestNewOrderRelayedVerbatim(t *testing.T) {
	d, hub := newTestDispatcher(&mockOrderStore{})

	sender := newTestClient(hub)
	staff := newTestClient(hub)
	hub.SetTable(sender, 7, 3)
	hub.SetRestaurant(staff, 7)

	// The payload is the full order record from the REST path; the relay
	// must not reshape it.
	raw := []byte(`{"type":"new-order","payload":{"restaurantId":7,"id":99,"items":[{"menuItemId":1,"quantity":2}]}}`)
	d.Dispatch(context.Background(), sender, raw)

	env := recvEnvelope(t, staff)
	assert.Equal(t, protocol.TypeNewOrderReceived, env.Type)
	assert.JSONEq(t,
		`{"restaurantId":7,"id":99,"items":[{"menuItemId":1,"quantity":2}]}`,
		string(env.Payload))
}

func TestCallWaiterFanOut(t *testing.T) {
	d, hub := newTestDispatcher(&mockOrderStore{})

	sender := newTestClient(hub)
	staffTable3 := newTestClient(hub)
	staffTable5 := newTestClient(hub)
	otherRestaurant := newTestClient(hub)
	hub.SetTable(sender, 7, 3)
	hub.SetTable(staffTable3, 7, 3)
	hub.SetTable(staffTable5, 7, 5)
	hub.SetRestaurant(otherRestaurant, 8)

	payload := &protocol.CallWaiterPayload{
		RestaurantID: 7,
		TableID:      3,
		CustomerName: "Ana",
		Timestamp:    "2024-01-01T00:00:00Z",
	}
	d.Dispatch(context.Background(), sender, envelopeJSON(t, protocol.TypeCallWaiter, payload))

	// Waiter calls are restaurant-wide: every restaurant-7 connection gets
	// exactly one unmodified copy, regardless of table; restaurant 8 none.
	for _, c := range []*Client{sender, staffTable3, staffTable5} {
		env := recvEnvelope(t, c)
		assert.Equal(t, protocol.TypeWaiterRequested, env.Type)

		var p protocol.CallWaiterPayload
		require.NoError(t, env.DecodePayload(&p))
		assert.Equal(t, *payload, p)

		assertNoMessage(t, c)
	}
	assertNoMessage(t, otherRestaurant)
}

func TestMalformedMessagesDropped(t *testing.T) {
	store := &mockOrderStore{}
	d, hub := newTestDispatcher(store)

	c := newTestClient(hub)
	watcher := newTestClient(hub)
	hub.SetRestaurant(c, 7)
	hub.SetRestaurant(watcher, 7)

	cases := map[string][]byte{
		"not json":        []byte(`{{{`),
		"unknown type":    []byte(`{"type":"order-teleport","payload":{}}`),
		"missing fields":  []byte(`{"type":"update-order-status","payload":{"orderId":42}}`),
		"wrong types":     []byte(`{"type":"call-waiter","payload":{"restaurantId":"seven"}}`),
		"empty envelope":  []byte(`{}`),
		"missing payload": []byte(`{"type":"register-table"}`),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			d.Dispatch(context.Background(), c, raw)
			assertNoMessage(t, watcher)
		})
	}

	// The offending connection stays usable afterwards.
	d.Dispatch(context.Background(), c, envelopeJSON(t, protocol.TypeCallWaiter,
		&protocol.CallWaiterPayload{RestaurantID: 7, TableID: 1, CustomerName: "Bo", Timestamp: "2024-01-01T00:00:00Z"}))
	recvEnvelope(t, watcher)

	assert.Equal(t, 0, store.callCount(), "no malformed message may reach the store")
}

func TestUpdateStatusDecodesVerbatimPayload(t *testing.T) {
	store := &mockOrderStore{}
	d, hub := newTestDispatcher(store)
	c := newTestClient(hub)
	hub.SetRestaurant(c, 7)

	var env protocol.Envelope
	raw := []byte(`{"type":"update-order-status","payload":{"orderId":42,"status":"confirmed","restaurantId":7}}`)
	require.NoError(t, json.Unmarshal(raw, &env))

	d.Dispatch(context.Background(), c, raw)
	require.Equal(t, []statusCall{{42, "confirmed"}}, store.calls)
}
