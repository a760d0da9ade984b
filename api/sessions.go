package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
)

// CreateSession starts a new chat session.
// POST /v1/chat/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.NewValidationError("body", "malformed JSON"))
	}
	if req.ClientID == "" {
		return h.writeError(c, domain.NewValidationError("client_id", "required"))
	}

	session, err := h.chat.CreateSession(c.Request().Context(), req.ClientID, req.WebsiteID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// ListSessions returns the client's most recent sessions.
// GET /v1/chat/sessions?client_id=...
func (h *Handler) ListSessions(c echo.Context) error {
	clientID := c.QueryParam("client_id")
	if clientID == "" {
		return h.writeError(c, domain.NewValidationError("client_id", "required"))
	}

	sessions, err := h.chat.ListSessions(c.Request().Context(), clientID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// EscalateSession records an escalation on the session.
// POST /v1/chat/sessions/:session_id/escalate
func (h *Handler) EscalateSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	var req domain.EscalateRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.NewValidationError("body", "malformed JSON"))
	}

	if err := h.chat.Escalate(c.Request().Context(), sessionID, req.Reason); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
