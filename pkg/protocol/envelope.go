// Package protocol defines the wire contract shared by the notification
// server and the Go client: JSON text frames carrying a typed envelope.
// Adding new types is additive; receivers ignore types they don't know.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound (client -> server) message types.
const (
	TypeRegisterRestaurant = "register-restaurant"
	TypeRegisterTable      = "register-table"
	TypeNewOrder           = "new-order"
	TypeUpdateOrderStatus  = "update-order-status"
	TypeCallWaiter         = "call-waiter"
)

// Outbound (server -> client) message types.
const (
	TypeOrderStatusUpdated = "order-status-updated"
	TypeNewOrderReceived   = "new-order-received"
	TypeWaiterRequested    = "waiter-requested"
)

// Envelope is the unit of exchange over the socket. Payload stays raw so
// relayed messages pass through unmodified.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope around a serializable payload.
func NewEnvelope(msgType string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Envelope{Type: msgType, Payload: data}, nil
}

// Encode serializes the envelope for a text frame.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals the payload into v.
func (e *Envelope) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// RegisterRestaurantPayload announces which restaurant a connection belongs
// to. Sent once after the socket opens; scopes every later broadcast.
type RegisterRestaurantPayload struct {
	RestaurantID uint `json:"restaurantId"`
}

func (p *RegisterRestaurantPayload) Validate() error {
	if p.RestaurantID == 0 {
		return fmt.Errorf("restaurantId is required")
	}
	return nil
}

// RegisterTablePayload narrows an already-announced connection to one table.
type RegisterTablePayload struct {
	RestaurantID uint `json:"restaurantId"`
	TableID      uint `json:"tableId"`
}

func (p *RegisterTablePayload) Validate() error {
	if p.RestaurantID == 0 {
		return fmt.Errorf("restaurantId is required")
	}
	if p.TableID == 0 {
		return fmt.Errorf("tableId is required")
	}
	return nil
}

// NewOrderPayload carries the order record already persisted through the
// REST path. The server relays it verbatim; only restaurantId is inspected,
// to scope the fan-out.
type NewOrderPayload struct {
	RestaurantID uint `json:"restaurantId"`
}

func (p *NewOrderPayload) Validate() error {
	if p.RestaurantID == 0 {
		return fmt.Errorf("restaurantId is required")
	}
	return nil
}

// UpdateOrderStatusPayload requests a status write and doubles as the
// order-status-updated broadcast body.
type UpdateOrderStatusPayload struct {
	OrderID      uint   `json:"orderId"`
	Status       string `json:"status"`
	RestaurantID uint   `json:"restaurantId"`
}

func (p *UpdateOrderStatusPayload) Validate() error {
	if p.OrderID == 0 {
		return fmt.Errorf("orderId is required")
	}
	if p.Status == "" {
		return fmt.Errorf("status is required")
	}
	if p.RestaurantID == 0 {
		return fmt.Errorf("restaurantId is required")
	}
	return nil
}

// CallWaiterPayload is relayed to every staff device of the restaurant.
// Timestamp is an ISO-8601 string chosen by the caller, passed through as-is.
type CallWaiterPayload struct {
	RestaurantID uint   `json:"restaurantId"`
	TableID      uint   `json:"tableId"`
	CustomerName string `json:"customerName"`
	Timestamp    string `json:"timestamp"`
}

func (p *CallWaiterPayload) Validate() error {
	if p.RestaurantID == 0 {
		return fmt.Errorf("restaurantId is required")
	}
	if p.TableID == 0 {
		return fmt.Errorf("tableId is required")
	}
	return nil
}
