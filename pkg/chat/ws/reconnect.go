package ws

import (
	"math/rand"
	"sync"
	"time"
)

const maxBackoffExponent = 10

// Reconnect tracks the retry budget for a session and computes backoff delays.
// The attempt counter is mutated only by the client's control flow (connect
// success/failure, explicit disconnect), never by the receive loop directly.
type Reconnect struct {
	mu        sync.Mutex
	cfg       Config
	attempts  int
	prevented bool
}

// NewReconnect creates a strategy reading its limits from cfg.
func NewReconnect(cfg Config) *Reconnect {
	return &Reconnect{cfg: cfg.withDefaults()}
}

// CanRetry reports whether another reconnect attempt is allowed. It is false
// once PreventAutoReconnect has been called, or once the attempt count has
// reached the configured maximum (unless retries are infinite).
func (r *Reconnect) CanRetry() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prevented {
		return false
	}
	if r.cfg.InfiniteReconnect {
		return true
	}
	return r.attempts < r.cfg.MaxReconnectAttempts
}

// RecordAttempt increments the attempt counter.
func (r *Reconnect) RecordAttempt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
}

// Attempts returns the number of attempts recorded since the last reset.
func (r *Reconnect) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// NextDelay computes the backoff delay for the current attempt count:
// base * 2^min(attempts-1, 10), plus uniform random jitter of up to 30% of
// that value, capped at the configured maximum. The exponent cap stops runaway
// growth after ~10 attempts; the jitter avoids thundering-herd reconnection
// when many clients drop at once.
func (r *Reconnect) NextDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp := r.attempts - 1
	if exp < 0 {
		exp = 0
	}
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}

	delay := r.cfg.ReconnectBaseDelay << exp
	delay += time.Duration(rand.Float64() * 0.3 * float64(delay))
	if delay > r.cfg.ReconnectMaxDelay {
		delay = r.cfg.ReconnectMaxDelay
	}
	return delay
}

// Reset zeros the attempt counter and clears the prevent latch. Called only
// once a connection attempt fully succeeds (socket open confirmed) or on an
// explicit user-initiated reconnect, never merely on send success.
func (r *Reconnect) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = 0
	r.prevented = false
}

// PreventAutoReconnect is a one-way latch set on explicit user-initiated
// disconnect. Once set, only Reset clears it.
func (r *Reconnect) PreventAutoReconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prevented = true
}

// Prevented reports whether the latch is set.
func (r *Reconnect) Prevented() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prevented
}
