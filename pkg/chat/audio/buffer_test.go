package audio

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakePlayer records pipeline calls. If gate is non-nil, Append blocks until
// the gate closes, which lets tests freeze the pipeline mid-append.
type fakePlayer struct {
	mu        sync.Mutex
	appends   []string
	ended     bool
	stopped   bool
	err       error
	done      chan struct{}
	closeOnce sync.Once
	gate      chan struct{}
	slowChunk string
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{done: make(chan struct{})}
}

func (p *fakePlayer) Append(chunk []byte) error {
	if p.gate != nil {
		<-p.gate
	}
	if p.slowChunk != "" && string(chunk) == p.slowChunk {
		time.Sleep(50 * time.Millisecond)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.appends = append(p.appends, string(chunk))
	return nil
}

func (p *fakePlayer) EndOfStream() {
	p.mu.Lock()
	p.ended = true
	p.mu.Unlock()
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *fakePlayer) Done() <-chan struct{} { return p.done }

func (p *fakePlayer) Err() error { return p.err }

func (p *fakePlayer) snapshot() ([]string, bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.appends...), p.ended, p.stopped
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestEnqueuePreservesArrivalOrder(t *testing.T) {
	player := newFakePlayer()
	player.slowChunk = "B"
	buf := NewStreamBuffer(func() (Player, error) { return player, nil }, nil)

	for _, chunk := range []string{"A", "B", "C"} {
		if err := buf.Enqueue([]byte(chunk)); err != nil {
			t.Fatalf("Enqueue(%s): %v", chunk, err)
		}
	}
	buf.Flush()

	waitFor(t, func() bool { _, ended, _ := player.snapshot(); return ended })

	appends, _, _ := player.snapshot()
	if len(appends) != 3 || appends[0] != "A" || appends[1] != "B" || appends[2] != "C" {
		t.Fatalf("appends = %v, want [A B C]", appends)
	}
}

func TestFlushSignalsImmediatelyWhenNothingPending(t *testing.T) {
	player := newFakePlayer()
	buf := NewStreamBuffer(func() (Player, error) { return player, nil }, nil)

	if err := buf.Enqueue([]byte("A")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, func() bool { return buf.Pending() == 0 })

	buf.Flush()
	waitFor(t, func() bool { _, ended, _ := player.snapshot(); return ended })
}

func TestFlushWithoutPlayerIsNoop(t *testing.T) {
	buf := NewStreamBuffer(func() (Player, error) { return newFakePlayer(), nil }, nil)
	buf.Flush()
	if buf.Active() {
		t.Fatal("flush created a player")
	}
}

func TestClearStopsPipelineAndDiscardsQueued(t *testing.T) {
	player := newFakePlayer()
	player.gate = make(chan struct{})
	buf := NewStreamBuffer(func() (Player, error) { return player, nil }, nil)

	if err := buf.Enqueue([]byte("A")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := buf.Enqueue([]byte("B")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	buf.Clear()
	close(player.gate)

	time.Sleep(50 * time.Millisecond)
	appends, _, stopped := player.snapshot()
	if len(appends) != 0 {
		t.Fatalf("appends after clear = %v, want none", appends)
	}
	if !stopped {
		t.Fatal("player not stopped on clear")
	}
	if buf.Active() || buf.Pending() != 0 {
		t.Fatalf("buffer not reset: active=%v pending=%d", buf.Active(), buf.Pending())
	}
}

func TestClearIsSafeWhenIdle(t *testing.T) {
	buf := NewStreamBuffer(func() (Player, error) { return newFakePlayer(), nil }, nil)
	buf.Clear()
	buf.Clear()
}

func TestFreshPlayerAfterClear(t *testing.T) {
	var mu sync.Mutex
	var created []*fakePlayer
	factory := func() (Player, error) {
		p := newFakePlayer()
		mu.Lock()
		created = append(created, p)
		mu.Unlock()
		return p, nil
	}
	buf := NewStreamBuffer(factory, nil)

	if err := buf.Enqueue([]byte("A")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	buf.Clear()
	if err := buf.Enqueue([]byte("B")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	mu.Lock()
	count := len(created)
	second := created[count-1]
	mu.Unlock()
	if count != 2 {
		t.Fatalf("factory called %d times, want 2", count)
	}

	waitFor(t, func() bool {
		appends, _, _ := second.snapshot()
		return len(appends) == 1 && appends[0] == "B"
	})
}

func TestPlayerEndedWithErrorReportsAndResets(t *testing.T) {
	player := newFakePlayer()
	player.err = errors.New("device lost")

	errCh := make(chan error, 1)
	buf := NewStreamBuffer(
		func() (Player, error) { return player, nil },
		func(err error) { errCh <- err },
	)

	if err := buf.Enqueue([]byte("A")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, func() bool { return buf.Pending() == 0 })

	// The adapter dies on its own; the buffer must tear down and report.
	player.closeOnce.Do(func() { close(player.done) })

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("nil error reported")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported after player death")
	}
	waitFor(t, func() bool { return !buf.Active() })
}

func TestFactoryFailureSurfacesError(t *testing.T) {
	factoryErr := errors.New("no audio device")
	errCh := make(chan error, 1)
	buf := NewStreamBuffer(
		func() (Player, error) { return nil, factoryErr },
		func(err error) { errCh <- err },
	)

	if err := buf.Enqueue([]byte("A")); err == nil {
		t.Fatal("Enqueue succeeded with broken factory")
	}
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("factory failure not reported")
	}
	if buf.Active() {
		t.Fatal("buffer active after factory failure")
	}
}
