package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound buffer per connection
	sendBufferSize = 64
)

// Client is one server-side socket. The announced restaurant/table identity
// lives on the client but is owned by the Hub: both fields are read and
// written only under the hub mutex.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Guarded by hub.mu. Zero means not announced yet.
	restaurantID uint
	tableID      uint

	// Close code writePump sends once the send channel drains shut.
	// Zero means a plain normal closure.
	closeCode atomic.Int32

	sendOnce sync.Once
	logger   *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: hub.logger,
	}
}

func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.send)
	})
}

// dropForBackpressure marks the client so the close handshake carries a
// try-again-later code instead of a normal closure. Well-behaved peers treat
// that as a transient failure and reconnect.
func (c *Client) dropForBackpressure() {
	c.closeCode.Store(websocket.CloseTryAgainLater)
}

// readPump reads frames off the socket and hands each one to the dispatcher.
// Dispatch runs to completion before the next read, which keeps per-socket
// ordering and makes the status-update persistence write happen before that
// socket's broadcast. Distinct sockets dispatch concurrently.
func (c *Client) readPump(dispatcher *Dispatcher) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "clientID", c.id, "error", err)
			}
			return
		}
		dispatcher.Dispatch(context.Background(), c, data)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				code := int(c.closeCode.Load())
				if code == 0 {
					code = websocket.CloseNormalClosure
				}
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write error", "clientID", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
