package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/loquent-ai/loquent-go/pkg/chat/protocol"
)

// Session drives one client connection. Reads and turn execution run
// concurrently with a single outbound writer; a new chat request while a turn
// is streaming cancels that turn, drops its queued frames and notifies the
// client with an interrupted frame before any new content.
type Session struct {
	id        string
	ws        *websocket.Conn
	cfg       Config
	logger    *zap.Logger
	responder Responder

	priority chan outboundFrame
	normal   chan outboundFrame

	mu         sync.Mutex
	turnID     string
	turnCancel context.CancelFunc
	canceled   map[string]struct{}
	turnWG     sync.WaitGroup
}

// NewSession wraps an upgraded connection.
func NewSession(ws *websocket.Conn, responder Responder, cfg Config, logger *zap.Logger) *Session {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		ws:        ws,
		cfg:       cfg,
		logger:    logger.With(zap.String("session_id", id)),
		responder: responder,
		priority:  make(chan outboundFrame, cfg.PriorityQueueSize),
		normal:    make(chan outboundFrame, cfg.NormalQueueSize),
		canceled:  make(map[string]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Run serves the connection until the peer disconnects or ctx is canceled.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := &outboundWriter{
		ws:         s.ws,
		ctx:        ctx,
		cfg:        s.cfg,
		priority:   s.priority,
		normal:     s.normal,
		isCanceled: s.isCanceled,
	}
	writerDone := make(chan error, 1)
	go func() { writerDone <- writer.Run() }()

	s.sendPriority(ctx, "", protocol.NewConnectionStatusFrame("connected"))

	err := s.readLoop(ctx)
	s.cancelTurn()
	cancel()
	s.turnWG.Wait()
	<-writerDone

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.logger.Warn("session ended", zap.Error(err))
		return err
	}
	s.logger.Info("session closed")
	return nil
}

func (s *Session) readLoop(ctx context.Context) error {
	s.ws.SetReadLimit(s.cfg.ReadLimit)
	readWindow := s.cfg.PingInterval + s.cfg.PongTimeout
	_ = s.ws.SetReadDeadline(time.Now().Add(readWindow))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(readWindow))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = s.ws.SetReadDeadline(time.Now().Add(readWindow))

		req, err := protocol.DecodeChatRequest(data)
		if err != nil {
			s.logger.Debug("rejected request", zap.Error(err))
			s.sendPriority(ctx, "", protocol.NewErrorFrame(err.Error()))
			continue
		}
		s.startTurn(ctx, req)
	}
}

// startTurn interrupts any in-flight turn and launches a new one.
func (s *Session) startTurn(ctx context.Context, req protocol.ChatRequest) {
	turnCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()

	s.mu.Lock()
	interrupted := false
	if s.turnCancel != nil {
		s.turnCancel()
		s.canceled[s.turnID] = struct{}{}
		interrupted = true
	}
	s.turnID = id
	s.turnCancel = cancel
	s.mu.Unlock()

	if interrupted {
		s.sendPriority(ctx, "", protocol.NewInterruptedFrame())
	}

	s.logger.Info("turn started",
		zap.String("turn_id", id),
		zap.String("user_id", req.UserID),
		zap.Bool("stream_audio", req.StreamAudio))

	s.turnWG.Add(1)
	go func() {
		defer s.turnWG.Done()
		s.runTurn(turnCtx, id, req)
	}()
}

func (s *Session) runTurn(ctx context.Context, id string, req protocol.ChatRequest) {
	out := make(chan Chunk, 16)
	respondErr := make(chan error, 1)
	go func() {
		respondErr <- s.responder.Respond(ctx, req, out)
		close(out)
	}()

	for chunk := range out {
		if chunk.Text != "" {
			s.sendNormal(ctx, id, protocol.NewTextChunkFrame(chunk.Text))
		}
		if len(chunk.Audio) > 0 {
			s.sendNormal(ctx, id, protocol.NewAudioChunkFrame(chunk.Audio))
		}
	}

	err := <-respondErr
	switch {
	case ctx.Err() != nil:
		// Interrupted or session shutdown, the notice is already queued.
	case err != nil:
		s.logger.Warn("turn failed", zap.String("turn_id", id), zap.Error(err))
		s.sendPriority(ctx, id, protocol.NewErrorFrame("response generation failed"))
	default:
		s.sendNormal(ctx, id, protocol.NewCompleteFrame())
	}

	// Canceled marks are kept for the session lifetime so late frames from an
	// interrupted turn can never slip past the writer.
	s.mu.Lock()
	if s.turnID == id {
		s.turnID = ""
		s.turnCancel = nil
	}
	s.mu.Unlock()
}

func (s *Session) cancelTurn() {
	s.mu.Lock()
	if s.turnCancel != nil {
		s.turnCancel()
		s.canceled[s.turnID] = struct{}{}
		s.turnCancel = nil
	}
	s.mu.Unlock()
}

func (s *Session) isCanceled(turnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.canceled[turnID]
	return ok
}

func (s *Session) sendNormal(ctx context.Context, turnID string, frame any) {
	s.send(ctx, s.normal, turnID, frame)
}

func (s *Session) sendPriority(ctx context.Context, turnID string, frame any) {
	s.send(ctx, s.priority, turnID, frame)
}

func (s *Session) send(ctx context.Context, ch chan outboundFrame, turnID string, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("frame marshal failed", zap.Error(err))
		return
	}
	select {
	case ch <- outboundFrame{payload: payload, turnID: turnID}:
	case <-ctx.Done():
	}
}
