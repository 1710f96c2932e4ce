package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loquent-ai/loquent-go/pkg/chat"
	"github.com/loquent-ai/loquent-go/pkg/chat/protocol"
)

// Client owns one logical chat session over a websocket transport. It drives
// the connection state machine (disconnected, connecting, connected,
// reconnecting), republishes server frames as chat events on a single shared
// stream, and transparently redials after an unexpected drop using the
// configured reconnect strategy.
type Client struct {
	cfg      Config
	url      string
	settings chat.AgentSettings
	logger   *zap.Logger

	conn  *Conn
	recv  *Receiver
	retry *Reconnect

	events chan chat.Event

	mu     sync.Mutex
	state  chat.ConnectionState
	cancel context.CancelFunc
}

// NewClient creates a client for the given endpoint and agent settings. The
// client does not dial until Connect is called.
func NewClient(url string, settings chat.AgentSettings, cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:      cfg,
		url:      url,
		settings: settings,
		logger:   zap.NewNop(),
		conn:     NewConn(cfg),
		recv:     NewReceiver(cfg),
		retry:    NewReconnect(cfg),
		events:   make(chan chat.Event, cfg.EventBufferSize),
	}
}

// SetLogger replaces the client's logger. Call before Connect.
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Events returns the shared event stream. All subscribers see the same
// channel; slow consumers drop events rather than block the receive loop.
func (c *Client) Events() <-chan chat.Event {
	return c.events
}

// State returns the current connection state.
func (c *Client) State() chat.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect makes one dial attempt and reports whether it succeeded. An
// explicit Connect clears the prevent-reconnect latch and starts the attempt
// counter from zero. On failure it returns false immediately; further
// attempts run in the background on the backoff schedule while the client
// stays in the connecting state, and eventual success is announced through a
// state change event. The reconnecting state is reserved for drops of an
// established connection.
func (c *Client) Connect(ctx context.Context) bool {
	c.mu.Lock()
	switch c.state {
	case chat.StateConnected:
		c.mu.Unlock()
		return true
	case chat.StateConnecting, chat.StateReconnecting:
		c.mu.Unlock()
		return false
	}
	c.retry.Reset()
	c.setStateLocked(chat.StateConnecting)
	c.mu.Unlock()

	err := c.conn.Connect(ctx, c.url)
	if err == nil {
		c.start()
		return true
	}
	c.logger.Warn("connect failed", zap.String("url", c.url), zap.Error(err))

	c.retry.RecordAttempt()
	if ctx.Err() != nil || !c.retry.CanRetry() {
		c.setState(chat.StateDisconnected)
		return false
	}

	// Keep trying in the background; the caller already has its answer.
	retryCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()
	go c.retryLoop(retryCtx)
	return false
}

// Send builds a full chat request from the client's settings and writes it.
// It fails fast when the session is not connected; messages are never queued
// across reconnects.
func (c *Client) Send(ctx context.Context, message string) error {
	c.mu.Lock()
	if c.state != chat.StateConnected {
		c.mu.Unlock()
		return chat.NewError(chat.ErrNotConnected, "send requires a connected session")
	}
	c.mu.Unlock()

	req := protocol.BuildChatRequest(c.settings, message)
	return c.conn.WriteJSON(req)
}

// Disconnect latches prevent-reconnect, tears the connection down and moves
// the client to the disconnected state. It never returns a transport error.
func (c *Client) Disconnect(ctx context.Context) error {
	c.retry.PreventAutoReconnect()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	_ = c.conn.Close()
	c.conn.Dispose()
	c.setState(chat.StateDisconnected)
	return nil
}

// start transitions to connected and launches the receive and ping loops for
// the just-established connection.
func (c *Client) start() {
	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.retry.Reset()
	c.setStateLocked(chat.StateConnected)
	c.mu.Unlock()

	go c.readPump(runCtx)
	go c.pingPump(runCtx)
}

// readPump drains the receive stream for one connection. When the stream ends
// it either finalizes the session or enters the reconnect path, depending on
// why the stream ended and whether reconnects are latched off.
func (c *Client) readPump(ctx context.Context) {
	stream := c.recv.ReceiveStream(ctx, c.conn)
	for msg := range stream.Messages() {
		if ev, ok := protocol.ParseServerEvent(msg); ok {
			c.emit(ev)
		}
	}
	if err := stream.Err(); err != nil {
		c.logger.Warn("receive stream failed", zap.Error(err))
	}

	if ctx.Err() != nil || c.retry.Prevented() {
		c.setState(chat.StateDisconnected)
		return
	}
	c.redial(ctx)
}

// redial runs the reconnect cycle after an established connection dropped.
func (c *Client) redial(ctx context.Context) {
	c.setState(chat.StateReconnecting)
	c.conn.Dispose()
	c.retryLoop(ctx)
}

// retryLoop keeps dialing on the backoff schedule. It ends in exactly one of
// two ways: a fresh connection (attempt counter reset, pumps restarted) or a
// terminal disconnected state.
func (c *Client) retryLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil || c.retry.Prevented() || !c.retry.CanRetry() {
			c.setState(chat.StateDisconnected)
			return
		}
		if !c.wait(ctx, c.retry.NextDelay()) {
			c.setState(chat.StateDisconnected)
			return
		}
		c.retry.RecordAttempt()

		if err := c.conn.Connect(ctx, c.url); err != nil {
			c.logger.Warn("retry attempt failed",
				zap.Int("attempt", c.retry.Attempts()),
				zap.Error(err))
			continue
		}

		c.logger.Info("connection established", zap.Int("attempts", c.retry.Attempts()))
		c.start()
		return
	}
}

// pingPump keeps the connection alive with periodic pings. The pong handler
// on the connection extends the read deadline; a missed pong surfaces as a
// read error in the receive loop, which owns recovery.
func (c *Client) pingPump(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				return
			}
		case <-c.conn.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

// wait sleeps for d, returning false if ctx was canceled first.
func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) setState(s chat.ConnectionState) {
	c.mu.Lock()
	c.setStateLocked(s)
	c.mu.Unlock()
}

func (c *Client) setStateLocked(s chat.ConnectionState) {
	if c.state == s {
		return
	}
	c.state = s
	c.emit(&chat.StateChangedEvent{State: s, At: time.Now()})
}

// emit publishes an event without ever blocking the receive loop.
func (c *Client) emit(ev chat.Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event dropped, subscriber too slow", zap.String("type", ev.EventType()))
	}
}
