package ws

import "time"

// Config holds all transport configuration for a WebSocket chat session.
// It is immutable after client construction; a new session requires a new
// Config value.
type Config struct {
	// ConnectTimeout bounds the dial + handshake of a single connection attempt.
	ConnectTimeout time.Duration

	// PingInterval is how often the client sends protocol pings once connected.
	PingInterval time.Duration

	// PongTimeout is how long after a ping the client waits for a pong before
	// the read deadline expires and the connection is considered dead.
	PongTimeout time.Duration

	// KeepAliveInterval is the TCP keep-alive period configured on the
	// underlying transport at connect time.
	KeepAliveInterval time.Duration

	// WriteTimeout bounds any single frame write.
	WriteTimeout time.Duration

	// ReconnectBaseDelay is the backoff base for the first reconnect attempt.
	ReconnectBaseDelay time.Duration

	// ReconnectMaxDelay caps the backoff delay regardless of attempt count.
	ReconnectMaxDelay time.Duration

	// MaxReconnectAttempts bounds automatic reconnection. Ignored when
	// InfiniteReconnect is set.
	MaxReconnectAttempts int

	// InfiniteReconnect keeps retrying forever.
	InfiniteReconnect bool

	// ReadChunkSize is the receive buffer size used when reassembling
	// fragmented messages.
	ReadChunkSize int

	// EventBufferSize is the capacity of the public events channel.
	EventBufferSize int
}

// MobileConfig returns the preset for flaky mobile networks: infinite retries
// and a short ping interval so dead connections are noticed quickly.
func MobileConfig() Config {
	return Config{
		ConnectTimeout:     10 * time.Second,
		PingInterval:       15 * time.Second,
		PongTimeout:        10 * time.Second,
		KeepAliveInterval:  30 * time.Second,
		WriteTimeout:       10 * time.Second,
		ReconnectBaseDelay: 500 * time.Millisecond,
		ReconnectMaxDelay:  30 * time.Second,
		InfiniteReconnect:  true,
		ReadChunkSize:      4096,
		EventBufferSize:    256,
	}
}

// StableConfig returns the preset for wired/server-side deployments: bounded
// retries and longer intervals.
func StableConfig() Config {
	return Config{
		ConnectTimeout:       15 * time.Second,
		PingInterval:         30 * time.Second,
		PongTimeout:          15 * time.Second,
		KeepAliveInterval:    60 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    60 * time.Second,
		MaxReconnectAttempts: 5,
		ReadChunkSize:        8192,
		EventBufferSize:      256,
	}
}

// withDefaults fills zero values so a partially specified Config still works.
func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 60 * time.Second
	}
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = 4096
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = 256
	}
	return c
}
