// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"encoding/json"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
)

// Store defines the interface for data persistence. Lookups return
// (nil, nil) when the row does not exist.
type Store interface {
	// Client profile operations
	CreateClientProfile(ctx context.Context, profile *domain.ClientProfile) error
	GetClientProfile(ctx context.Context, clientID string) (*domain.ClientProfile, error)

	// Website operations
	CreateWebsite(ctx context.Context, website *domain.Website) error
	GetWebsite(ctx context.Context, websiteID string) (*domain.Website, error)

	// Session operations
	CreateSession(ctx context.Context, session *domain.ChatSession) error
	GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, clientID string, limit int) ([]domain.ChatSession, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error
	// AddSessionTokens atomically increments the session's cumulative
	// token counter.
	AddSessionTokens(ctx context.Context, sessionID string, tokens int) error

	// Message operations (append-only)
	CreateMessage(ctx context.Context, message *domain.ChatMessage) error
	GetMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	// GetRecentMessages returns the most recent limit messages in
	// oldest-to-newest order, optionally excluding system entries.
	GetRecentMessages(ctx context.Context, sessionID string, limit int, excludeSystem bool) ([]domain.ChatMessage, error)

	// Change request operations
	CreateChangeRequest(ctx context.Context, request *domain.ChangeRequest) error
	GetChangeRequest(ctx context.Context, requestID string) (*domain.ChangeRequest, error)
	ListChangeRequests(ctx context.Context, filter ChangeRequestFilter) ([]domain.ChangeRequest, error)
	// UpdateChangeRequestStatus moves a request to the given status
	// only if its current status is in from. Returns false when the
	// guard does not match.
	UpdateChangeRequestStatus(ctx context.Context, requestID string, from []domain.RequestStatus, to domain.RequestStatus) (bool, error)

	// Website content operations
	GetSectionContent(ctx context.Context, websiteID, section string) (*domain.WebsiteContent, error)
	ListPublishedContent(ctx context.Context, websiteID string) ([]domain.WebsiteContent, error)
	// InsertSectionContent inserts a new section row at version 1.
	// Returns domain.ErrConflict when the (website, section) row
	// already exists.
	InsertSectionContent(ctx context.Context, content *domain.WebsiteContent) error
	// UpdateSectionContentCAS increments the section version by one and
	// replaces its content, only if the stored version still equals
	// expectedVersion. Returns false when a concurrent writer won.
	UpdateSectionContentCAS(ctx context.Context, websiteID, section string, expectedVersion int, content json.RawMessage) (bool, error)

	// Lifecycle
	Close() error
}

// ChangeRequestFilter narrows ListChangeRequests. Zero values match
// everything.
type ChangeRequestFilter struct {
	ClientID  string
	WebsiteID string
	Status    domain.RequestStatus
	Limit     int
}
