// Package wsclient is the Go client for the notification channel: one
// persistent socket per process, a listener registry keyed by event type,
// and bounded reconnect-with-backoff after abnormal closures.
package wsclient

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"qrmenu-service/pkg/protocol"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Config tunes a Transport. Zero values fall back to defaults.
type Config struct {
	// URL of the /ws endpoint, e.g. ws://localhost:8080/ws
	URL string

	// HandshakeTimeout for each dial attempt
	DialTimeout time.Duration

	// Reconnect delay grows linearly: attempt * BackoffStep, capped at
	// BackoffMax. After MaxAttempts consecutive failures the transport
	// gives up for good; recovery then needs an explicit Connect.
	BackoffStep time.Duration
	BackoffMax  time.Duration
	MaxAttempts int

	Logger *slog.Logger
}

func (c *Config) withDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.BackoffStep == 0 {
		c.BackoffStep = 2 * time.Second
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Transport owns at most one live connection. All connection state is
// guarded by mu; the read loop runs on its own goroutine and re-checks that
// it still owns the current connection before touching shared state.
type Transport struct {
	cfg       Config
	listeners *Listeners

	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	closing    bool
	attempts   int
	retryTimer *time.Timer

	// Identity re-announced after every successful (re)connect.
	// Zero means not supplied.
	restaurantID uint
	tableID      uint
}

func NewTransport(cfg Config) *Transport {
	cfg.withDefaults()
	return &Transport{
		cfg:       cfg,
		listeners: NewListeners(),
	}
}

// Connect opens the socket and announces identity. A no-op when already
// connected, so repeated calls never create duplicate sockets. Pass zero
// for identifiers that don't apply (a staff dashboard has no table).
func (t *Transport) Connect(restaurantID, tableID uint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = false
	t.restaurantID = restaurantID
	t.tableID = tableID

	if t.connected {
		return nil
	}

	t.stopRetryLocked()

	// A stale half-open connection from a previous attempt gets closed
	// before a fresh dial.
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}

	if err := t.dialLocked(); err != nil {
		t.scheduleReconnectLocked()
		return err
	}
	return nil
}

// dialLocked opens the connection, resets the attempt counter, announces
// identity and starts the read loop. Caller holds mu.
func (t *Transport) dialLocked() error {
	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.DialTimeout}
	conn, _, err := dialer.Dial(t.cfg.URL, nil)
	if err != nil {
		t.cfg.Logger.Warn("websocket dial failed", "url", t.cfg.URL, "error", err)
		return err
	}

	t.conn = conn
	t.connected = true
	t.attempts = 0

	t.announceLocked()
	go t.readLoop(conn)

	t.cfg.Logger.Info("websocket connected", "url", t.cfg.URL)
	return nil
}

// announceLocked sends identity registrations. Restaurant registration must
// precede table registration so the server can default the table entry's
// restaurant even if message ordering is ever lost.
func (t *Transport) announceLocked() {
	if t.restaurantID == 0 {
		return
	}
	t.writeLocked(protocol.TypeRegisterRestaurant, &protocol.RegisterRestaurantPayload{
		RestaurantID: t.restaurantID,
	})
	if t.tableID != 0 {
		t.writeLocked(protocol.TypeRegisterTable, &protocol.RegisterTablePayload{
			RestaurantID: t.restaurantID,
			TableID:      t.tableID,
		})
	}
}

func (t *Transport) writeLocked(msgType string, payload interface{}) bool {
	env, err := protocol.NewEnvelope(msgType, payload)
	if err != nil {
		t.cfg.Logger.Warn("encode message failed", "type", msgType, "error", err)
		return false
	}
	data, err := env.Encode()
	if err != nil {
		t.cfg.Logger.Warn("encode envelope failed", "type", msgType, "error", err)
		return false
	}

	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.cfg.Logger.Warn("websocket send failed", "type", msgType, "error", err)
		return false
	}
	return true
}

// SendMessage transmits one envelope. Returns false, never an error or a
// panic, when the socket is down or the write fails.
func (t *Transport) SendMessage(msgType string, payload interface{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected || t.conn == nil {
		t.cfg.Logger.Warn("send skipped, websocket not connected", "type", msgType)
		return false
	}
	return t.writeLocked(msgType, payload)
}

// Disconnect tears the channel down: normal-closure frame, no reconnect,
// attempt counter reset, all listeners cleared.
func (t *Transport) Disconnect() {
	t.mu.Lock()

	t.closing = true
	t.stopRetryLocked()
	t.attempts = 0

	if t.conn != nil {
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		t.conn.Close()
		t.conn = nil
	}
	t.connected = false

	t.mu.Unlock()

	t.listeners.Clear()
}

// IsConnected reports whether the socket is currently open. After reconnect
// attempts are exhausted this stays false, which is how callers detect that
// a manual reconnect (page reload) is needed.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// AddEventListener subscribes a callback to an event type.
func (t *Transport) AddEventListener(event string, fn Handler) *Subscription {
	return t.listeners.Add(event, fn)
}

// RemoveEventListener cancels a subscription; absent handles are a no-op.
func (t *Transport) RemoveEventListener(sub *Subscription) {
	t.listeners.Remove(sub)
}

// On subscribes a typed callback: the payload is decoded into T before the
// callback runs, and undecodable payloads are logged and skipped.
func On[T any](t *Transport, event string, fn func(T)) *Subscription {
	return t.AddEventListener(event, func(raw json.RawMessage) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			t.cfg.Logger.Warn("listener payload decode failed", "event", event, "error", err)
			return
		}
		fn(v)
	})
}

// readLoop consumes frames until the connection dies, dispatching each
// parsed envelope to the listeners for its type.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClosure(conn, err)
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.cfg.Logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		t.listeners.dispatch(env.Type, env.Payload)
	}
}

// handleClosure decides whether the closure was normal (explicit Disconnect
// or a normal-closure frame from the peer) or abnormal. Only abnormal
// closures schedule a reconnect.
func (t *Transport) handleClosure(conn *websocket.Conn, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != conn {
		// A newer connection already replaced this one.
		return
	}

	t.connected = false
	t.conn = nil

	if t.closing || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.cfg.Logger.Info("websocket closed")
		return
	}

	t.cfg.Logger.Warn("websocket closed abnormally", "error", err)
	t.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the retry timer for the next attempt, or
// gives up once the attempt budget is spent. Caller holds mu.
func (t *Transport) scheduleReconnectLocked() {
	t.attempts++
	if t.attempts > t.cfg.MaxAttempts {
		t.cfg.Logger.Error("reconnect attempts exhausted, giving up",
			"attempts", t.cfg.MaxAttempts)
		return
	}

	delay := time.Duration(t.attempts) * t.cfg.BackoffStep
	if delay > t.cfg.BackoffMax {
		delay = t.cfg.BackoffMax
	}

	t.cfg.Logger.Info("scheduling reconnect", "attempt", t.attempts, "delay", delay)
	t.retryTimer = time.AfterFunc(delay, t.retry)
}

func (t *Transport) retry() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing || t.connected {
		return
	}
	if err := t.dialLocked(); err != nil {
		t.scheduleReconnectLocked()
	}
}

func (t *Transport) stopRetryLocked() {
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
}
