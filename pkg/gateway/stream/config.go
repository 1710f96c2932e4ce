package stream

import "time"

// Config tunes one gateway websocket session.
type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64

	// Queue depths for the outbound writer.
	NormalQueueSize   int
	PriorityQueueSize int

	// ChunkDelay paces scripted response chunks to mimic model latency.
	ChunkDelay time.Duration
}

// DefaultConfig returns production session settings.
func DefaultConfig() Config {
	return Config{
		PingInterval:      20 * time.Second,
		PongTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReadLimit:         1 << 20,
		NormalQueueSize:   256,
		PriorityQueueSize: 16,
		ChunkDelay:        25 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.NormalQueueSize <= 0 {
		c.NormalQueueSize = d.NormalQueueSize
	}
	if c.PriorityQueueSize <= 0 {
		c.PriorityQueueSize = d.PriorityQueueSize
	}
	return c
}
