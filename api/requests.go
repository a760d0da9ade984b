package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
	"github.com/fabiobrito-bit/local-pro-sites-platform/store"
)

// ListChangeRequests returns the review queue, newest first.
// GET /v1/change-requests?status=&website_id=&client_id=&limit=
func (h *Handler) ListChangeRequests(c echo.Context) error {
	filter := store.ChangeRequestFilter{
		ClientID:  c.QueryParam("client_id"),
		WebsiteID: c.QueryParam("website_id"),
		Status:    domain.RequestStatus(c.QueryParam("status")),
		Limit:     50,
	}
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			filter.Limit = val
		}
	}

	requests, err := h.ledger.List(c.Request().Context(), filter)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"requests": requests,
	})
}

// DecideChangeRequest is the human review path: approving a pending
// request applies it immediately; rejecting closes it.
// POST /v1/change-requests/:request_id/decision
func (h *Handler) DecideChangeRequest(c echo.Context) error {
	requestID := c.Param("request_id")

	var req domain.DecisionRequest
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, domain.NewValidationError("body", "malformed JSON"))
	}

	ctx := c.Request().Context()
	switch req.Decision {
	case "approve":
		if err := h.ledger.Approve(ctx, requestID); err != nil {
			return h.writeError(c, err)
		}
		if err := h.applier.Apply(ctx, requestID); err != nil {
			return h.writeError(c, err)
		}
	case "reject":
		if err := h.ledger.MarkRejected(ctx, requestID); err != nil {
			return h.writeError(c, err)
		}
	default:
		return h.writeError(c, domain.NewValidationError("decision", `must be "approve" or "reject"`))
	}

	request, err := h.ledger.Get(ctx, requestID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, request)
}
