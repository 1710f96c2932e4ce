package ws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loquent-ai/loquent-go/pkg/chat"
)

// Receiver turns raw transport frames into complete logical messages. A
// logical message may span multiple frames; fragments are buffered until the
// final frame, then emitted as one payload.
type Receiver struct {
	cfg Config
}

// NewReceiver creates a receiver using cfg's read chunk size.
func NewReceiver(cfg Config) *Receiver {
	return &Receiver{cfg: cfg.withDefaults()}
}

// MessageStream is an infinite, cancellable, non-restartable sequence of
// complete messages read from one connection.
//
// The stream completes cleanly (channel closed, Err() == nil) on a peer close
// frame or on context cancellation: a user-initiated disconnect must never
// look like an error to subscribers. Any other transport failure closes the
// channel and is reported by Err().
type MessageStream struct {
	ch   chan []byte
	done chan struct{}
	err  error
}

// Messages yields complete message payloads until the stream ends.
func (s *MessageStream) Messages() <-chan []byte {
	return s.ch
}

// Err returns the terminal stream error. Valid once Messages is closed.
func (s *MessageStream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// ReceiveStream starts reading conn in a background goroutine and returns the
// resulting stream.
func (r *Receiver) ReceiveStream(ctx context.Context, conn *Conn) *MessageStream {
	stream := &MessageStream{
		ch:   make(chan []byte),
		done: make(chan struct{}),
	}
	go r.readLoop(ctx, conn, stream)
	return stream
}

func (r *Receiver) readLoop(ctx context.Context, conn *Conn, stream *MessageStream) {
	defer close(stream.done)
	defer close(stream.ch)

	handle := conn.handle()
	if handle == nil {
		stream.err = chat.NewError(chat.ErrNotConnected, "receive stream started without a connection")
		return
	}

	// Unblock the pending read when the caller cancels.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = handle.SetReadDeadline(time.Now())
		case <-watchDone:
		}
	}()

	for {
		payload, err := r.readMessage(handle)
		if err != nil {
			if ctx.Err() != nil {
				return // cancellation completes the stream cleanly
			}
			if isCloseFrame(err) {
				return // peer close completes the stream cleanly
			}
			stream.err = chat.WrapError(chat.ErrTransport, "receive failed", err)
			return
		}

		select {
		case stream.ch <- payload:
		case <-ctx.Done():
			return
		}
	}
}

// ReceiveOne reads a single complete message. It is meant for handshake-style
// reads that expect a reply: unlike the continuous stream, a peer close frame
// here is an error, not a clean EOF.
func (r *Receiver) ReceiveOne(ctx context.Context, conn *Conn) ([]byte, error) {
	handle := conn.handle()
	if handle == nil {
		return nil, chat.NewError(chat.ErrNotConnected, "no live connection")
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = handle.SetReadDeadline(deadline)
		defer func() {
			_ = handle.SetReadDeadline(time.Now().Add(r.cfg.PingInterval + r.cfg.PongTimeout))
		}()
	}

	payload, err := r.readMessage(handle)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isCloseFrame(err) {
			return nil, chat.WrapError(chat.ErrClosedDuringReceive, "connection closed during receive", err)
		}
		return nil, chat.WrapError(chat.ErrTransport, "receive failed", err)
	}
	return payload, nil
}

// readMessage assembles one complete logical message, reading the frame body
// in ReadChunkSize pieces until the reader reports end-of-message.
func (r *Receiver) readMessage(handle *websocket.Conn) ([]byte, error) {
	for {
		messageType, reader, err := handle.NextReader()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		var buf bytes.Buffer
		chunk := make([]byte, r.cfg.ReadChunkSize)
		for {
			n, readErr := reader.Read(chunk)
			if n > 0 {
				buf.Write(chunk[:n])
			}
			if readErr == io.EOF {
				return buf.Bytes(), nil
			}
			if readErr != nil {
				return nil, readErr
			}
		}
	}
}

// isCloseFrame reports whether err represents an orderly peer close.
func isCloseFrame(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
