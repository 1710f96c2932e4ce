package token

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ExchangeRequest asks for a room token. TTL is in seconds; zero means the
// issuer default.
type ExchangeRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	TTL      int    `json:"ttl"`
}

// ExchangeResponse returns the signed token for the granted room.
type ExchangeResponse struct {
	Token    string `json:"token"`
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

// Handler serves the token exchange endpoint.
type Handler struct {
	issuer *Issuer
	logger *zap.Logger
}

// NewHandler wraps issuer as an echo handler.
func NewHandler(issuer *Issuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{issuer: issuer, logger: logger}
}

// Exchange is the echo route handler for POST token requests.
func (h *Handler) Exchange(c echo.Context) error {
	var req ExchangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Room == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "room is required")
	}
	if req.Identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "identity is required")
	}

	ttl := time.Duration(req.TTL) * time.Second
	signed, err := h.issuer.Issue(req.Room, req.Identity, ttl)
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "token issue failed")
	}

	h.logger.Info("token issued",
		zap.String("room", req.Room),
		zap.String("identity", req.Identity))
	return c.JSON(http.StatusOK, ExchangeResponse{
		Token:    signed,
		Room:     req.Room,
		Identity: req.Identity,
	})
}
