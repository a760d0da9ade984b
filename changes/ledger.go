// Package changes owns the change-request lifecycle: opening requests
// from extracted intents, the review state machine, and the auto-apply
// engine that writes approved content.
package changes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
	"github.com/fabiobrito-bit/local-pro-sites-platform/policy"
	"github.com/fabiobrito-bit/local-pro-sites-platform/store"
)

// sectionByType maps a request type to its default target section when
// the intent names none.
var sectionByType = map[domain.IntentType]string{
	domain.IntentHoursUpdate: "contact",
	domain.IntentContactInfo: "contact",
	domain.IntentLogoUpdate:  "branding",
}

// fallbackSection receives every change type without a mapping entry.
const fallbackSection = "hero"

// ResolveSection resolves the target content section for a request. An
// explicit section always wins; otherwise the type mapping applies,
// with hero as the fallback for any known change type. The empty
// string means the request cannot be applied and must be rejected.
func ResolveSection(requestType domain.IntentType, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if section, ok := sectionByType[requestType]; ok {
		return section
	}
	if requestType == "" || requestType == domain.IntentGeneralQuery {
		return ""
	}
	return fallbackSection
}

// Ledger creates and transitions change-request records.
type Ledger struct {
	store  store.Store
	policy *policy.Engine
	logger *zap.Logger
}

// NewLedger creates a ledger backed by the given store and policy
// engine.
func NewLedger(s store.Store, p *policy.Engine, logger *zap.Logger) *Ledger {
	return &Ledger{store: s, policy: p, logger: logger}
}

// Open records a new change request for the given intent. The initial
// status is auto_approved only when the policy engine allows it; the
// model's autoApprovable flag alone is never trusted.
func (l *Ledger) Open(ctx context.Context, clientID, websiteID string, in *domain.Intent) (*domain.ChangeRequest, error) {
	section := ResolveSection(in.Type, in.Section)

	// Snapshot the current content for audit/diff when the intent
	// names its target section.
	var oldContent []byte
	if in.Section != "" {
		existing, err := l.store.GetSectionContent(ctx, websiteID, in.Section)
		if err != nil {
			return nil, fmt.Errorf("failed to load current content: %w", err)
		}
		if existing != nil {
			oldContent = existing.Content
		}
	}

	status := domain.RequestStatusPending
	decision, err := l.policy.Evaluate(ctx, map[string]interface{}{
		"request_type":    string(in.Type),
		"auto_approvable": in.AutoApprovable,
		"priority":        string(in.Priority),
	})
	if err != nil {
		l.logger.Error("policy evaluation failed, falling back to review", zap.Error(err))
	} else if decision == policy.DecisionAuto {
		status = domain.RequestStatusAutoApproved
	} else if in.AutoApprovable {
		l.logger.Warn("model marked intent auto-approvable but policy requires review",
			zap.String("request_type", string(in.Type)),
			zap.String("priority", string(in.Priority)))
	}

	request := &domain.ChangeRequest{
		ID:             uuid.NewString(),
		ClientID:       clientID,
		WebsiteID:      websiteID,
		RequestType:    in.Type,
		Section:        section,
		Description:    in.Description,
		OldContent:     oldContent,
		NewContent:     in.NewContent,
		Status:         status,
		Priority:       in.Priority,
		AutoApprovable: in.AutoApprovable,
		CreatedAt:      time.Now().UTC(),
	}

	if err := l.store.CreateChangeRequest(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create change request: %w", err)
	}
	return request, nil
}

// Get retrieves a change request.
func (l *Ledger) Get(ctx context.Context, requestID string) (*domain.ChangeRequest, error) {
	request, err := l.store.GetChangeRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get change request: %w", err)
	}
	if request == nil {
		return nil, fmt.Errorf("change request %s: %w", requestID, domain.ErrNotFound)
	}
	return request, nil
}

// List returns change requests matching the filter, newest first.
func (l *Ledger) List(ctx context.Context, filter store.ChangeRequestFilter) ([]domain.ChangeRequest, error) {
	return l.store.ListChangeRequests(ctx, filter)
}

// Approve is the human review path: pending -> approved.
func (l *Ledger) Approve(ctx context.Context, requestID string) error {
	return l.transition(ctx, requestID,
		[]domain.RequestStatus{domain.RequestStatusPending},
		domain.RequestStatusApproved)
}

// MarkCompleted finishes an approved or auto-approved request.
func (l *Ledger) MarkCompleted(ctx context.Context, requestID string) error {
	return l.transition(ctx, requestID,
		[]domain.RequestStatus{domain.RequestStatusAutoApproved, domain.RequestStatusApproved},
		domain.RequestStatusCompleted)
}

// MarkRejected rejects any non-terminal request.
func (l *Ledger) MarkRejected(ctx context.Context, requestID string) error {
	return l.transition(ctx, requestID,
		[]domain.RequestStatus{domain.RequestStatusPending, domain.RequestStatusAutoApproved, domain.RequestStatusApproved},
		domain.RequestStatusRejected)
}

func (l *Ledger) transition(ctx context.Context, requestID string, from []domain.RequestStatus, to domain.RequestStatus) error {
	ok, err := l.store.UpdateChangeRequestStatus(ctx, requestID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update change request status: %w", err)
	}
	if ok {
		return nil
	}

	// The guard did not match: missing row or a disallowed transition.
	request, err := l.store.GetChangeRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to get change request: %w", err)
	}
	if request == nil {
		return fmt.Errorf("change request %s: %w", requestID, domain.ErrNotFound)
	}
	return fmt.Errorf("change request %s is %s, cannot move to %s: %w",
		requestID, request.Status, to, domain.ErrInvalidTransition)
}
