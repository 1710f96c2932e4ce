package chat

import (
	"time"
)

// Event is the interface for all events surfaced by the transport layer.
// Subscribers never see raw frames; every incoming message is either mapped
// to one of the concrete event types below or dropped.
type Event interface {
	// EventType returns the event type string for logging/serialization.
	EventType() string

	// When returns the event creation time.
	When() time.Time
}

// TextChunkEvent carries one unit of streamed response text.
type TextChunkEvent struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

func (e *TextChunkEvent) EventType() string { return "text.chunk" }
func (e *TextChunkEvent) When() time.Time   { return e.At }

// AudioChunkEvent carries one unit of streamed response audio (decoded bytes).
type AudioChunkEvent struct {
	Data []byte    `json:"data"`
	At   time.Time `json:"at"`
}

func (e *AudioChunkEvent) EventType() string { return "audio.chunk" }
func (e *AudioChunkEvent) When() time.Time   { return e.At }

// ResponseCompletedEvent marks the natural end of a response turn.
type ResponseCompletedEvent struct {
	At time.Time `json:"at"`
}

func (e *ResponseCompletedEvent) EventType() string { return "response.completed" }
func (e *ResponseCompletedEvent) When() time.Time   { return e.At }

// ResponseInterruptedEvent marks a server-side interruption of the current turn.
type ResponseInterruptedEvent struct {
	At time.Time `json:"at"`
}

func (e *ResponseInterruptedEvent) EventType() string { return "response.interrupted" }
func (e *ResponseInterruptedEvent) When() time.Time   { return e.At }

// ErrorOccurredEvent carries a server-reported error. It is a separate channel
// from connection-state changes; callers should not infer server errors from
// connection state alone.
type ErrorOccurredEvent struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (e *ErrorOccurredEvent) EventType() string { return "error" }
func (e *ErrorOccurredEvent) When() time.Time   { return e.At }

// StateChangedEvent is emitted whenever the connection state transitions.
type StateChangedEvent struct {
	State ConnectionState `json:"state"`
	At    time.Time       `json:"at"`
}

func (e *StateChangedEvent) EventType() string { return "connection.state" }
func (e *StateChangedEvent) When() time.Time   { return e.At }

// StatusMessageEvent carries an informational status message from the server.
type StatusMessageEvent struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (e *StatusMessageEvent) EventType() string { return "connection.status" }
func (e *StatusMessageEvent) When() time.Time   { return e.At }
