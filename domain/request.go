package domain

// CreateSessionRequest is the body for POST /v1/chat/sessions.
type CreateSessionRequest struct {
	ClientID  string `json:"client_id"`
	WebsiteID string `json:"website_id,omitempty"`
}

// PostMessageRequest is the body for POST /v1/chat/messages.
type PostMessageRequest struct {
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
	WebsiteID string `json:"website_id,omitempty"`
	Content   string `json:"content"`
}

// PostMessageResponse returns the stored assistant message plus the
// parsed intent, if any.
type PostMessageResponse struct {
	Message *ChatMessage `json:"message"`
	Intent  *Intent      `json:"intent,omitempty"`
}

// EscalateRequest is the body for POST /v1/chat/sessions/:id/escalate.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// DecisionRequest is the body for the human review endpoint
// POST /v1/change-requests/:id/decision.
type DecisionRequest struct {
	Decision  string `json:"decision"` // "approve" or "reject"
	DecidedBy string `json:"decided_by,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
