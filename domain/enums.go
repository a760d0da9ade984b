// Package domain defines the core domain models for the platform.
package domain

// SessionStatus represents the status of a chat session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusArchived  SessionStatus = "archived"
	SessionStatusEscalated SessionStatus = "escalated"
)

// Role represents the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// RequestStatus represents the lifecycle state of a change request.
type RequestStatus string

const (
	RequestStatusPending      RequestStatus = "pending"
	RequestStatusAutoApproved RequestStatus = "auto_approved"
	RequestStatusApproved     RequestStatus = "approved"
	RequestStatusRejected     RequestStatus = "rejected"
	RequestStatusCompleted    RequestStatus = "completed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusRejected
}

// Priority represents the urgency of a change request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IntentType classifies what a user asked the assistant to do.
type IntentType string

const (
	IntentHoursUpdate   IntentType = "hours_update"
	IntentContentChange IntentType = "content_change"
	IntentLogoUpdate    IntentType = "logo_update"
	IntentContactInfo   IntentType = "contact_info"
	IntentGeneralQuery  IntentType = "general_query"
)

// KnownIntentTypes is the closed set of intent types the model may emit.
// Anything outside it is untrusted output and degrades to a general query.
var KnownIntentTypes = map[IntentType]bool{
	IntentHoursUpdate:   true,
	IntentContentChange: true,
	IntentLogoUpdate:    true,
	IntentContactInfo:   true,
	IntentGeneralQuery:  true,
}
