// Package api provides the HTTP handlers for the chat and change
// request surface. Authentication and client identity resolution happen
// upstream; handlers trust the client id they are handed.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fabiobrito-bit/local-pro-sites-platform/changes"
	"github.com/fabiobrito-bit/local-pro-sites-platform/chat"
	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
)

// Handler handles HTTP requests.
type Handler struct {
	chat    *chat.Service
	ledger  *changes.Ledger
	applier *changes.Applier
	logger  *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(chatService *chat.Service, ledger *changes.Ledger, applier *changes.Applier, logger *zap.Logger) *Handler {
	return &Handler{
		chat:    chatService,
		ledger:  ledger,
		applier: applier,
		logger:  logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/chat/sessions", h.CreateSession)
	e.GET("/v1/chat/sessions", h.ListSessions)
	e.POST("/v1/chat/messages", h.PostMessage)
	e.GET("/v1/chat/sessions/:session_id/messages", h.ListMessages)
	e.POST("/v1/chat/sessions/:session_id/escalate", h.EscalateSession)

	e.GET("/v1/change-requests", h.ListChangeRequests)
	e.POST("/v1/change-requests/:request_id/decision", h.DecideChangeRequest)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// writeError maps domain errors onto HTTP status codes.
func (h *Handler) writeError(c echo.Context, err error) error {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrUpstream):
		h.logger.Error("upstream completion failure", zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "the assistant is temporarily unavailable, please retry",
		})
	default:
		h.logger.Error("internal error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
