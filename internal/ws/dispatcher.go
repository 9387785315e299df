package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"qrmenu-service/internal/models"
	"qrmenu-service/pkg/protocol"
)

// OrderStore is the order persistence collaborator. The dispatcher only
// writes status as a side effect of relaying a message; order lifecycle
// rules live behind the REST API.
type OrderStore interface {
	UpdateStatus(ctx context.Context, orderID uint, status string) (*models.Order, error)
}

// Dispatcher interprets inbound envelopes and fans matching events out
// through the hub. Malformed or unknown messages are logged and dropped;
// nothing a client sends is ever fatal to its own socket, let alone others.
type Dispatcher struct {
	hub    *Hub
	orders OrderStore
	logger *slog.Logger
}

func NewDispatcher(hub *Hub, orders OrderStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		hub:    hub,
		orders: orders,
		logger: logger,
	}
}

// Dispatch handles one raw text frame from a client.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.logger.Warn("dropping malformed frame", "clientID", c.id, "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeRegisterRestaurant:
		d.handleRegisterRestaurant(c, &env)
	case protocol.TypeRegisterTable:
		d.handleRegisterTable(c, &env)
	case protocol.TypeNewOrder:
		d.handleNewOrder(c, &env)
	case protocol.TypeUpdateOrderStatus:
		d.handleUpdateOrderStatus(ctx, c, &env)
	case protocol.TypeCallWaiter:
		d.handleCallWaiter(c, &env)
	default:
		d.logger.Warn("dropping unknown message type", "clientID", c.id, "type", env.Type)
	}
}

func (d *Dispatcher) handleRegisterRestaurant(c *Client, env *protocol.Envelope) {
	var p protocol.RegisterRestaurantPayload
	if !d.decode(c, env, &p) {
		return
	}
	d.hub.SetRestaurant(c, p.RestaurantID)
}

func (d *Dispatcher) handleRegisterTable(c *Client, env *protocol.Envelope) {
	var p protocol.RegisterTablePayload
	if !d.decode(c, env, &p) {
		return
	}
	d.hub.SetTable(c, p.RestaurantID, p.TableID)
}

// handleNewOrder relays an order that the REST path has already persisted.
// The payload goes out verbatim so staff dashboards see the full record.
func (d *Dispatcher) handleNewOrder(c *Client, env *protocol.Envelope) {
	var p protocol.NewOrderPayload
	if !d.decode(c, env, &p) {
		return
	}

	out := protocol.Envelope{Type: protocol.TypeNewOrderReceived, Payload: env.Payload}
	d.broadcast(c, p.RestaurantID, &out)
}

// handleUpdateOrderStatus persists the new status first and broadcasts only
// after the write is acknowledged, so a subscriber that re-fetches order
// state right away sees a consistent view. A failed write suppresses the
// broadcast entirely.
func (d *Dispatcher) handleUpdateOrderStatus(ctx context.Context, c *Client, env *protocol.Envelope) {
	var p protocol.UpdateOrderStatusPayload
	if !d.decode(c, env, &p) {
		return
	}

	if _, err := d.orders.UpdateStatus(ctx, p.OrderID, p.Status); err != nil {
		d.logger.Error("order status update failed",
			"clientID", c.id, "orderID", p.OrderID, "status", p.Status, "error", err)
		return
	}

	out, err := protocol.NewEnvelope(protocol.TypeOrderStatusUpdated, &p)
	if err != nil {
		d.logger.Error("encode order-status-updated", "error", err)
		return
	}
	d.broadcast(c, p.RestaurantID, out)
}

// handleCallWaiter relays a waiter call restaurant-wide. Not narrowed to the
// calling table: every staff device must see every call.
func (d *Dispatcher) handleCallWaiter(c *Client, env *protocol.Envelope) {
	var p protocol.CallWaiterPayload
	if !d.decode(c, env, &p) {
		return
	}

	out := protocol.Envelope{Type: protocol.TypeWaiterRequested, Payload: env.Payload}
	d.broadcast(c, p.RestaurantID, &out)
}

func (d *Dispatcher) broadcast(c *Client, restaurantID uint, env *protocol.Envelope) {
	data, err := env.Encode()
	if err != nil {
		d.logger.Error("encode envelope", "type", env.Type, "error", err)
		return
	}

	sent := d.hub.BroadcastToRestaurant(restaurantID, data)
	d.logger.Debug("broadcast",
		"type", env.Type, "restaurantID", restaurantID, "delivered", sent, "from", c.id)
}

type validator interface {
	Validate() error
}

func (d *Dispatcher) decode(c *Client, env *protocol.Envelope, p validator) bool {
	if err := env.DecodePayload(p); err != nil {
		d.logger.Warn("dropping malformed payload", "clientID", c.id, "type", env.Type, "error", err)
		return false
	}
	if err := p.Validate(); err != nil {
		d.logger.Warn("dropping invalid payload", "clientID", c.id, "type", env.Type, "error", err)
		return false
	}
	return true
}
