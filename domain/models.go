package domain

import (
	"encoding/json"
	"time"
)

// ClientProfile holds the business information for a managed client.
type ClientProfile struct {
	ID                  string          `json:"id"`
	BusinessName        string          `json:"business_name"`
	BusinessDescription string          `json:"business_description,omitempty"`
	PhoneNumber         string          `json:"phone_number,omitempty"`
	BusinessHours       json.RawMessage `json:"business_hours,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Website represents a managed website owned by a client.
type Website struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSession represents a conversation between a client and the assistant.
// Sessions are never deleted, only archived or escalated.
type ChatSession struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"client_id"`
	WebsiteID   string          `json:"website_id,omitempty"`
	Title       string          `json:"title"`
	Context     json.RawMessage `json:"context,omitempty"`
	TotalTokens int             `json:"total_tokens"`
	Status      SessionStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ChatMessage is a single entry in a session's append-only message log.
type ChatMessage struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Role       Role            `json:"role"`
	Content    string          `json:"content"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	TokenCount int             `json:"token_count,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ChangeRequest is the durable audit record for a proposed content
// mutation. Rows are never deleted; the status column carries the
// review/apply lifecycle.
type ChangeRequest struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	WebsiteID      string          `json:"website_id"`
	RequestType    IntentType      `json:"request_type"`
	Section        string          `json:"section,omitempty"`
	Description    string          `json:"description"`
	OldContent     json.RawMessage `json:"old_content,omitempty"`
	NewContent     json.RawMessage `json:"new_content"`
	Status         RequestStatus   `json:"status"`
	Priority       Priority        `json:"priority"`
	AutoApprovable bool            `json:"auto_approvable"`
	CreatedAt      time.Time       `json:"created_at"`
}

// WebsiteContent is a named, versioned unit of a website's published
// content. At most one row exists per (website_id, section); the
// version only ever increases.
type WebsiteContent struct {
	ID          string          `json:"id"`
	WebsiteID   string          `json:"website_id"`
	Section     string          `json:"section"`
	ContentType string          `json:"content_type"`
	Content     json.RawMessage `json:"content"`
	Version     int             `json:"version"`
	Published   bool            `json:"is_published"`
	CreatedAt   time.Time       `json:"created_at"`
}
