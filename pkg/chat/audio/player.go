// Package audio buffers and plays streamed agent speech. Playback hardware is
// injected behind the Player interface so the transport core stays free of
// platform audio dependencies.
package audio

import (
	"bytes"
	"io"
	"sync"
)

// Player is one playback pipeline for a single agent turn. Append pushes raw
// audio bytes, EndOfStream marks that no further chunks will arrive, and Stop
// aborts playback immediately. Done is closed when the pipeline finishes,
// either naturally or via Stop; Err is valid after Done.
type Player interface {
	Append(chunk []byte) error
	EndOfStream()
	Stop()
	Done() <-chan struct{}
	Err() error
}

// PlayerFactory builds a fresh Player for each turn.
type PlayerFactory func() (Player, error)

// BufferPlayer collects appended chunks in memory. It is the programmatic
// adapter used by tests and by callers that want the assembled audio after
// the turn completes.
type BufferPlayer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	done   chan struct{}
	closed bool
	err    error
}

// NewBufferPlayer returns an empty in-memory player.
func NewBufferPlayer() *BufferPlayer {
	return &BufferPlayer{done: make(chan struct{})}
}

func (p *BufferPlayer) Append(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.buf.Write(chunk)
	return nil
}

func (p *BufferPlayer) EndOfStream() {
	p.finish(nil)
}

func (p *BufferPlayer) Stop() {
	p.finish(nil)
}

func (p *BufferPlayer) Done() <-chan struct{} {
	return p.done
}

func (p *BufferPlayer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Bytes returns a copy of everything appended so far.
func (p *BufferPlayer) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, p.buf.Len())
	copy(out, p.buf.Bytes())
	return out
}

func (p *BufferPlayer) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.err = err
	close(p.done)
}

// WriterPlayer accumulates PCM chunks and writes a complete WAV file to the
// underlying writer on EndOfStream. Stop discards everything unwritten.
type WriterPlayer struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	pcm    bytes.Buffer
	done   chan struct{}
	closed bool
	err    error
}

// NewWriterPlayer wraps w with the given PCM format.
func NewWriterPlayer(w io.Writer, format Format) *WriterPlayer {
	return &WriterPlayer{w: w, format: format, done: make(chan struct{})}
}

func (p *WriterPlayer) Append(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.pcm.Write(chunk)
	return nil
}

func (p *WriterPlayer) EndOfStream() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	_, p.err = p.w.Write(PCMToWAV(p.pcm.Bytes(), p.format))
	close(p.done)
}

func (p *WriterPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
}

func (p *WriterPlayer) Done() <-chan struct{} {
	return p.done
}

func (p *WriterPlayer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
