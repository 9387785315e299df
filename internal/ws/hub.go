package ws

import (
	"context"
	"log/slog"
	"sync"
)

// Hub is the connection registry: every open socket together with the
// (restaurant, table) identity the client announced. Structural changes go
// through the register/unregister channels serviced by Run; identity updates
// and broadcast snapshots take the mutex directly so dispatches running on
// per-connection reader goroutines never block behind each other.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// Run services connection lifecycle events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-h.ctx.Done():
			h.logger.Info("hub shutting down")
			h.closeAll()
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// Register adds a freshly upgraded connection to the registry.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.ctx.Done():
	}
}

// Unregister removes a connection; safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = true
	h.logger.Info("client connected", "clientID", c.id, "total", len(h.clients))
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.closeSend()
	h.logger.Info("client disconnected",
		"clientID", c.id, "restaurantID", c.restaurantID, "total", len(h.clients))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.closeSend()
		delete(h.clients, c)
	}
}

// SetRestaurant records the restaurant a connection announced.
func (h *Hub) SetRestaurant(c *Client, restaurantID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.restaurantID = restaurantID
	h.logger.Info("restaurant registered", "clientID", c.id, "restaurantID", restaurantID)
}

// SetTable narrows a connection to one table. The restaurant is set in the
// same step so a table registration can never exist without one.
func (h *Hub) SetTable(c *Client, restaurantID, tableID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.restaurantID = restaurantID
	c.tableID = tableID
	h.logger.Info("table registered",
		"clientID", c.id, "restaurantID", restaurantID, "tableID", tableID)
}

// ClientCount reports how many connections are currently registered.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// restaurantClients snapshots every connection announced for the restaurant.
func (h *Hub) restaurantClients(restaurantID uint) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var matched []*Client
	for c := range h.clients {
		if c.restaurantID == restaurantID {
			matched = append(matched, c)
		}
	}
	return matched
}

// BroadcastToRestaurant fans data out to every connection registered under
// the restaurant. Delivery is at-least-once per open connection; a client
// whose send buffer is full is dropped rather than allowed to stall the rest.
func (h *Hub) BroadcastToRestaurant(restaurantID uint, data []byte) int {
	return h.deliver(func(c *Client) bool {
		return c.restaurantID == restaurantID
	}, data)
}

// BroadcastToTable narrows delivery to connections registered for one table.
func (h *Hub) BroadcastToTable(restaurantID, tableID uint, data []byte) int {
	return h.deliver(func(c *Client) bool {
		return c.restaurantID == restaurantID && c.tableID == tableID
	}, data)
}

// deliver pushes data onto every matching client's send channel. The sends
// are non-blocking and happen under the read lock: removeClient and closeAll
// close send channels only while holding the write lock, so a channel can
// never be closed out from under an in-flight send. Clients whose buffers
// are full get dropped once the lock is released.
func (h *Hub) deliver(match func(*Client) bool, data []byte) int {
	h.mu.RLock()
	sent := 0
	var dropped []*Client
	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- data:
			sent++
		default:
			dropped = append(dropped, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dropped {
		h.logger.Warn("send buffer full, dropping client", "clientID", c.id)
		c.dropForBackpressure()
		go h.Unregister(c)
	}
	return sent
}
