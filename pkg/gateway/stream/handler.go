package stream

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests to websocket chat sessions.
type Handler struct {
	upgrader  websocket.Upgrader
	responder Responder
	cfg       Config
	logger    *zap.Logger
}

// NewHandler builds a websocket handler backed by responder.
func NewHandler(responder Responder, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		responder: responder,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Serve is the echo route handler for the chat websocket endpoint.
func (h *Handler) Serve(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return err
	}

	sess := NewSession(ws, h.responder, h.cfg, h.logger)
	if err := sess.Run(c.Request().Context()); err != nil {
		h.logger.Debug("session error", zap.String("session_id", sess.ID()), zap.Error(err))
	}
	return nil
}
