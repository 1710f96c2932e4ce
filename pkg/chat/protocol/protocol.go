// Package protocol defines the JSON wire protocol spoken between chat clients
// and the streaming gateway, plus the builder/parser pair that maps between
// wire frames and the typed event vocabulary in pkg/chat.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/loquent-ai/loquent-go/pkg/chat"
)

// Frame type discriminators. Every frame carries a "type" field; unknown
// discriminators are dropped by the parser for forward compatibility.
const (
	TypeChatRequest = "chat_request"

	TypeTextChunk        = "text_chunk"
	TypeAudioChunk       = "audio_chunk"
	TypeComplete         = "complete"
	TypeInterrupted      = "interrupted"
	TypeError            = "error"
	TypeConnectionStatus = "connection_status"
)

// AgentPersonality is the wire shape of the agent persona.
type AgentPersonality struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
	Mood        string   `json:"mood"`
}

// AgentConfiguration is the full per-request agent configuration snapshot.
type AgentConfiguration struct {
	Provider     string           `json:"provider"`
	ModelName    string           `json:"model_name"`
	SystemPrompt string           `json:"system_prompt"`
	Temperature  float64          `json:"temperature"`
	MaxTokens    int              `json:"max_tokens"`
	Personality  AgentPersonality `json:"personality"`
}

// ChatRequest is the outgoing client -> server message.
type ChatRequest struct {
	Type          string             `json:"type"`
	UserID        string             `json:"user_id"`
	Message       string             `json:"message"`
	Configuration AgentConfiguration `json:"configuration"`
	Context       map[string]string  `json:"context"`
	StreamAudio   bool               `json:"stream_audio"`
	VoiceID       string             `json:"voice_id,omitempty"`
}

// Server -> client frames.

type TextChunkFrame struct {
	Type  string `json:"type"`
	Chunk string `json:"chunk"`
}

type AudioChunkFrame struct {
	Type string `json:"type"`
	Data string `json:"data"` // base64-encoded audio bytes
}

type CompleteFrame struct {
	Type string `json:"type"`
}

type InterruptedFrame struct {
	Type string `json:"type"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ConnectionStatusFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// BuildChatRequest maps the current agent settings plus one user message to a
// complete ChatRequest. It always embeds the full configuration snapshot,
// never a delta; the server expects the whole configuration each turn.
func BuildChatRequest(settings chat.AgentSettings, message string) ChatRequest {
	ctx := settings.Context
	if ctx == nil {
		ctx = map[string]string{}
	}
	return ChatRequest{
		Type:    TypeChatRequest,
		UserID:  settings.UserID,
		Message: message,
		Configuration: AgentConfiguration{
			Provider:     settings.Provider,
			ModelName:    settings.Model,
			SystemPrompt: settings.SystemPrompt,
			Temperature:  settings.Temperature,
			MaxTokens:    settings.MaxTokens,
			Personality: AgentPersonality{
				Name:        settings.Personality.Name,
				Description: settings.Personality.Description,
				Traits:      settings.Personality.Traits,
				Mood:        settings.Personality.Mood,
			},
		},
		Context:     ctx,
		StreamAudio: settings.StreamAudio,
		VoiceID:     settings.VoiceID,
	}
}

// ParseServerEvent maps one raw incoming frame to a typed chat.Event.
//
// It never returns an error: malformed JSON, a missing or unrecognized
// discriminator, and an audio chunk with a missing/empty payload all yield
// (nil, false). This protects against protocol-version skew where the server
// adds new event types.
func ParseServerEvent(data []byte) (chat.Event, bool) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false
	}

	now := time.Now()

	switch strings.TrimSpace(envelope.Type) {
	case TypeTextChunk:
		var frame TextChunkFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, false
		}
		return &chat.TextChunkEvent{Text: frame.Chunk, At: now}, true

	case TypeAudioChunk:
		var frame AudioChunkFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, false
		}
		if frame.Data == "" {
			return nil, false
		}
		decoded, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil || len(decoded) == 0 {
			return nil, false
		}
		return &chat.AudioChunkEvent{Data: decoded, At: now}, true

	case TypeComplete:
		return &chat.ResponseCompletedEvent{At: now}, true

	case TypeInterrupted:
		return &chat.ResponseInterruptedEvent{At: now}, true

	case TypeError:
		var frame ErrorFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, false
		}
		return &chat.ErrorOccurredEvent{Message: frame.Message, At: now}, true

	case TypeConnectionStatus:
		var frame ConnectionStatusFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, false
		}
		return &chat.StatusMessageEvent{Message: frame.Message, At: now}, true

	default:
		return nil, false
	}
}

// DecodeError describes a malformed inbound client frame.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// DecodeChatRequest parses and validates an inbound chat_request frame.
// Unlike ParseServerEvent this is strict: the gateway rejects malformed
// requests instead of dropping them.
func DecodeChatRequest(data []byte) (ChatRequest, error) {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ChatRequest{}, badRequest("invalid JSON payload", "")
	}
	if strings.TrimSpace(req.Type) != TypeChatRequest {
		return ChatRequest{}, badRequest("unexpected frame type", "type")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return ChatRequest{}, badRequest("user_id is required", "user_id")
	}
	if strings.TrimSpace(req.Message) == "" {
		return ChatRequest{}, badRequest("message must not be empty", "message")
	}
	return req, nil
}

// NewTextChunkFrame builds a text_chunk frame.
func NewTextChunkFrame(chunk string) TextChunkFrame {
	return TextChunkFrame{Type: TypeTextChunk, Chunk: chunk}
}

// NewAudioChunkFrame builds an audio_chunk frame from raw audio bytes.
func NewAudioChunkFrame(audio []byte) AudioChunkFrame {
	return AudioChunkFrame{Type: TypeAudioChunk, Data: base64.StdEncoding.EncodeToString(audio)}
}

// NewCompleteFrame builds a complete frame.
func NewCompleteFrame() CompleteFrame { return CompleteFrame{Type: TypeComplete} }

// NewInterruptedFrame builds an interrupted frame.
func NewInterruptedFrame() InterruptedFrame { return InterruptedFrame{Type: TypeInterrupted} }

// NewErrorFrame builds an error frame.
func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message}
}

// NewConnectionStatusFrame builds a connection_status frame.
func NewConnectionStatusFrame(message string) ConnectionStatusFrame {
	return ConnectionStatusFrame{Type: TypeConnectionStatus, Message: message}
}
