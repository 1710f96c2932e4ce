// Package stream implements the gateway side of the chat transport: it
// upgrades websocket connections, decodes chat requests, streams agent
// responses back as protocol frames, and cancels an in-flight turn the moment
// a newer request arrives.
package stream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriter is the slice of *websocket.Conn the outbound writer needs.
type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// outboundFrame is one serialized protocol frame queued for the peer. Frames
// belonging to a canceled turn are dropped at write time so stale response
// chunks never reach the client after an interruption.
type outboundFrame struct {
	payload []byte
	turnID  string
}

// outboundWriter owns all writes on one connection. Interruption and error
// frames go on the priority channel and preempt queued response chunks.
type outboundWriter struct {
	ws         wsWriter
	ctx        context.Context
	cfg        Config
	priority   <-chan outboundFrame
	normal     <-chan outboundFrame
	isCanceled func(turnID string) bool
}

func (w *outboundWriter) Run() error {
	pingTicker := time.NewTicker(w.cfg.PingInterval)
	defer pingTicker.Stop()

	var pendingNormal *outboundFrame

	for {
		select {
		case <-w.ctx.Done():
			w.flushPriorityOnShutdown()
			deadline := time.Now().Add(w.cfg.WriteTimeout)
			_ = w.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = w.ws.Close()
			return nil
		default:
		}

		// Anything queued on priority goes out before normal frames.
		select {
		case frame, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.writeFrame(frame); err != nil {
				return err
			}
			continue
		default:
		}

		// A priority frame arriving now preempts the held-back normal frame.
		if pendingNormal != nil {
			select {
			case frame, ok := <-w.priority:
				if !ok {
					w.priority = nil
					continue
				}
				if err := w.writeFrame(frame); err != nil {
					return err
				}
				continue
			default:
			}
			if err := w.writeFrame(*pendingNormal); err != nil {
				return err
			}
			pendingNormal = nil
			continue
		}

		if w.priority == nil && w.normal == nil {
			return nil
		}

		select {
		case <-w.ctx.Done():
			continue
		case <-pingTicker.C:
			deadline := time.Now().Add(w.cfg.WriteTimeout)
			if err := w.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		case frame, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.writeFrame(frame); err != nil {
				return err
			}
		case frame, ok := <-w.normal:
			if !ok {
				w.normal = nil
				continue
			}
			pendingNormal = &frame
		}
	}
}

// flushPriorityOnShutdown drains a bounded number of priority frames so a
// final interruption or error notice still reaches the peer before close.
func (w *outboundWriter) flushPriorityOnShutdown() {
	if w.priority == nil {
		return
	}

	flushTimeout := 100 * time.Millisecond
	if w.cfg.WriteTimeout > 0 && w.cfg.WriteTimeout < flushTimeout {
		flushTimeout = w.cfg.WriteTimeout
	}
	deadline := time.Now().Add(flushTimeout)

	for i := 0; i < 8 && time.Now().Before(deadline); i++ {
		select {
		case frame, ok := <-w.priority:
			if !ok {
				return
			}
			_ = w.writeFrame(frame)
		default:
			return
		}
	}
}

func (w *outboundWriter) writeFrame(frame outboundFrame) error {
	if frame.turnID != "" && w.isCanceled != nil && w.isCanceled(frame.turnID) {
		return nil
	}
	if len(frame.payload) == 0 {
		return nil
	}
	if err := w.ws.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, frame.payload)
}
