package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
)

// PostMessage runs the chat pipeline for one user message.
// POST /v1/chat/messages
func (h *Handler) PostMessage(c echo.Context) error {
	var req domain.PostMessageRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.NewValidationError("body", "malformed JSON"))
	}
	if req.SessionID == "" {
		return h.writeError(c, domain.NewValidationError("session_id", "required"))
	}
	if req.ClientID == "" {
		return h.writeError(c, domain.NewValidationError("client_id", "required"))
	}
	if req.Content == "" {
		return h.writeError(c, domain.NewValidationError("content", "required"))
	}

	message, parsedIntent, err := h.chat.PostMessage(c.Request().Context(), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, domain.PostMessageResponse{
		Message: message,
		Intent:  parsedIntent,
	})
}

// ListMessages returns a session's full ordered history.
// GET /v1/chat/sessions/:session_id/messages
func (h *Handler) ListMessages(c echo.Context) error {
	sessionID := c.Param("session_id")

	messages, err := h.chat.ListMessages(c.Request().Context(), sessionID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}
