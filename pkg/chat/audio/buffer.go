package audio

import (
	"sync"

	"github.com/loquent-ai/loquent-go/pkg/chat"
)

// turn is one playback pipeline lifetime. A fresh turn is created lazily on
// the first chunk and torn down by Clear, by a playback error, or when the
// player reports it is done.
type turn struct {
	player   Player
	ch       chan []byte
	stop     chan struct{}
	stopOnce sync.Once
}

func (t *turn) shutdown(stopPlayer bool) {
	t.stopOnce.Do(func() { close(t.stop) })
	if stopPlayer {
		t.player.Stop()
	}
}

// StreamBuffer serializes streamed audio chunks into a playback adapter in
// strict arrival order and supports instant interruption. Clear may be called
// at any time, from any goroutine, and never panics: in-flight appends from
// the torn-down turn are discarded, and the next chunk starts a fresh player.
type StreamBuffer struct {
	factory PlayerFactory
	onError func(error)

	mu       sync.Mutex
	cur      *turn
	pending  int
	flushing bool
}

// NewStreamBuffer creates a buffer that builds one player per turn via
// factory. onError receives playback failures; it may be nil.
func NewStreamBuffer(factory PlayerFactory, onError func(error)) *StreamBuffer {
	return &StreamBuffer{factory: factory, onError: onError}
}

// Enqueue appends a chunk to the current turn, creating the player on first
// use. Chunks enqueued during a flush, after the turn is already winding
// down, are dropped.
func (b *StreamBuffer) Enqueue(chunk []byte) error {
	b.mu.Lock()
	if b.cur != nil && b.flushing {
		b.mu.Unlock()
		return nil
	}
	if b.cur == nil {
		player, err := b.factory()
		if err != nil {
			b.mu.Unlock()
			wrapped := chat.WrapError(chat.ErrPlayback, "playback adapter creation failed", err)
			b.report(wrapped)
			return wrapped
		}
		b.flushing = false
		b.cur = &turn{
			player: player,
			ch:     make(chan []byte, 64),
			stop:   make(chan struct{}),
		}
		go b.appendLoop(b.cur)
		go b.monitor(b.cur)
	}
	t := b.cur
	b.pending++
	b.mu.Unlock()

	select {
	case t.ch <- chunk:
	case <-t.stop:
	}
	return nil
}

// Flush marks that no further chunks belong to this turn. End-of-stream is
// signaled once every pending append has completed, or immediately if none
// are outstanding. With no live player it is a no-op.
func (b *StreamBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushing = true
	if b.cur != nil && b.pending == 0 {
		b.cur.player.EndOfStream()
	}
}

// Clear interrupts playback: the current player is stopped and detached, all
// counters reset. Safe to call at any time, including with no live turn.
func (b *StreamBuffer) Clear() {
	b.mu.Lock()
	t := b.detachLocked()
	b.mu.Unlock()
	if t != nil {
		t.shutdown(true)
	}
}

// Pending returns the number of chunks enqueued but not yet appended.
func (b *StreamBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Active reports whether a playback pipeline currently exists.
func (b *StreamBuffer) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur != nil
}

// appendLoop feeds chunks to the player one at a time, preserving arrival
// order.
func (b *StreamBuffer) appendLoop(t *turn) {
	for {
		select {
		case chunk := <-t.ch:
			select {
			case <-t.stop:
				return
			default:
			}
			err := t.player.Append(chunk)
			b.appendDone(t, err)
		case <-t.stop:
			return
		}
	}
}

func (b *StreamBuffer) appendDone(t *turn, err error) {
	b.mu.Lock()
	if b.cur != t {
		b.mu.Unlock()
		return
	}
	if err != nil {
		b.detachLocked()
		b.mu.Unlock()
		t.shutdown(true)
		b.report(chat.WrapError(chat.ErrPlayback, "audio append failed", err))
		return
	}
	b.pending--
	if b.pending == 0 && b.flushing {
		t.player.EndOfStream()
	}
	b.mu.Unlock()
}

// monitor waits for the player to finish on its own and performs the same
// teardown Clear would.
func (b *StreamBuffer) monitor(t *turn) {
	select {
	case <-t.player.Done():
	case <-t.stop:
		return
	}

	b.mu.Lock()
	if b.cur != t {
		b.mu.Unlock()
		return
	}
	b.detachLocked()
	b.mu.Unlock()

	t.shutdown(false)
	if err := t.player.Err(); err != nil {
		b.report(chat.WrapError(chat.ErrPlayback, "playback ended with error", err))
	}
}

// detachLocked removes the current turn and resets counters. Caller holds mu.
func (b *StreamBuffer) detachLocked() *turn {
	t := b.cur
	b.cur = nil
	b.pending = 0
	b.flushing = false
	return t
}

func (b *StreamBuffer) report(err error) {
	if b.onError != nil {
		b.onError(err)
	}
}
