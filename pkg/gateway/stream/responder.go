package stream

import (
	"context"
	"strings"
	"time"

	"github.com/loquent-ai/loquent-go/pkg/chat/audio"
	"github.com/loquent-ai/loquent-go/pkg/chat/protocol"
)

// Chunk is one piece of a streamed agent reply. Text and Audio may both be
// set on the same chunk.
type Chunk struct {
	Text  string
	Audio []byte
}

// Responder produces the streamed reply for one chat request. It sends chunks
// on out and returns when the turn is complete; it must stop promptly when
// ctx is canceled. The session closes nothing: out is owned by the caller.
type Responder interface {
	Respond(ctx context.Context, req protocol.ChatRequest, out chan<- Chunk) error
}

// EchoResponder is the reference responder: it streams the request message
// back word by word, with synthetic PCM audio when the client asked for it.
// It exists for integration tests and for running the gateway without a model
// backend.
type EchoResponder struct {
	Format audio.Format
	Delay  time.Duration
}

// NewEchoResponder returns an echo responder with the default audio format.
func NewEchoResponder(delay time.Duration) *EchoResponder {
	return &EchoResponder{Format: audio.DefaultFormat(), Delay: delay}
}

func (r *EchoResponder) Respond(ctx context.Context, req protocol.ChatRequest, out chan<- Chunk) error {
	words := strings.Fields(req.Message)
	if len(words) == 0 {
		words = []string{""}
	}

	for i, word := range words {
		text := word
		if i < len(words)-1 {
			text += " "
		}
		chunk := Chunk{Text: text}
		if req.StreamAudio {
			chunk.Audio = r.synthesize(text)
		}

		select {
		case out <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}

		if r.Delay > 0 {
			select {
			case <-time.After(r.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// synthesize produces silence sized to roughly 60ms per character, so longer
// words yield proportionally more audio. Real speech comes from a TTS-backed
// Responder; the echo gateway only needs plausible PCM for the client
// pipeline to chew on.
func (r *EchoResponder) synthesize(text string) []byte {
	ms := 60 * len(text)
	n := r.Format.SampleRate * r.Format.Channels * r.Format.BitsPerSample / 8 * ms / 1000
	if n <= 0 {
		n = 2
	}
	return make([]byte, n)
}
