package ws

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loquent-ai/loquent-go/pkg/chat"
)

// Conn owns at most one live WebSocket handle and its lifetime cancellation.
// Replacing the connection always fully disposes the previous handle first, so
// a single Conn never has two live sockets.
type Conn struct {
	cfg Config

	mu     sync.Mutex
	ws     *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex
}

// NewConn creates an unconnected Conn.
func NewConn(cfg Config) *Conn {
	return &Conn{cfg: cfg.withDefaults()}
}

// Connect dials url and installs the resulting handle. Any prior handle is
// disposed first. The dial is bounded by the caller's ctx combined with the
// configured connect timeout; if the timeout fires while the caller's ctx is
// still live, the returned error is a connect-timeout error distinct from
// generic cancellation.
func (c *Conn) Connect(ctx context.Context, url string) error {
	c.Dispose()

	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancelDial()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.ConnectTimeout,
		ReadBufferSize:   c.cfg.ReadChunkSize,
		WriteBufferSize:  c.cfg.ReadChunkSize,
		NetDialContext: (&net.Dialer{
			Timeout:   c.cfg.ConnectTimeout,
			KeepAlive: c.cfg.KeepAliveInterval,
		}).DialContext,
	}

	handle, resp, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if dialCtx.Err() != nil && ctx.Err() == nil {
			return chat.WrapError(chat.ErrConnectTimeout, "websocket handshake timed out", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return chat.WrapError(chat.ErrTransport, "websocket dial failed", err)
	}

	// The transport's pong handler extends the read deadline; a ping that goes
	// unanswered for PongTimeout lets the deadline expire and fail the read.
	deadline := c.cfg.PingInterval + c.cfg.PongTimeout
	_ = handle.SetReadDeadline(time.Now().Add(deadline))
	handle.SetPongHandler(func(string) error {
		return handle.SetReadDeadline(time.Now().Add(deadline))
	})

	lifeCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		<-lifeCtx.Done()
		close(done)
	}()

	c.mu.Lock()
	c.ws = handle
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()
	return nil
}

// IsOpen reports whether a live handle is installed.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Done is closed when the current handle is disposed. Returns a closed channel
// when no handle is installed.
func (c *Conn) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return c.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// handle returns the current raw WebSocket, or nil.
func (c *Conn) handle() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

// WriteJSON serializes v and writes it as a single text frame. Writes are
// serialized so concurrent senders never interleave frames.
func (c *Conn) WriteJSON(v any) error {
	handle := c.handle()
	if handle == nil {
		return chat.NewError(chat.ErrNotConnected, "no live connection")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = handle.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return handle.WriteJSON(v)
}

// Ping sends a protocol ping control frame.
func (c *Conn) Ping() error {
	handle := c.handle()
	if handle == nil {
		return chat.NewError(chat.ErrNotConnected, "no live connection")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return handle.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
}

// Close attempts a graceful close handshake. Failures are swallowed: the
// socket may already be half-closed by the peer.
func (c *Conn) Close() error {
	handle := c.handle()
	if handle == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = handle.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.WriteTimeout),
	)
	c.writeMu.Unlock()
	return nil
}

// Dispose cancels any in-flight operation, closes the handle if open, and
// releases it. Safe to call on every exit path, any number of times.
func (c *Conn) Dispose() {
	c.mu.Lock()
	handle := c.ws
	cancel := c.cancel
	c.ws = nil
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if handle != nil {
		_ = handle.Close()
	}
}
