package changes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
	"github.com/fabiobrito-bit/local-pro-sites-platform/store"
)

// maxApplyAttempts bounds the CAS retry loop. Contention on a single
// (website, section) row beyond this is pathological.
const maxApplyAttempts = 5

// Applier performs the content write for approved change requests.
type Applier struct {
	store  store.Store
	ledger *Ledger
	logger *zap.Logger
}

// NewApplier creates an applier that marks outcomes through the ledger.
func NewApplier(s store.Store, ledger *Ledger, logger *zap.Logger) *Applier {
	return &Applier{store: s, ledger: ledger, logger: logger}
}

// Apply writes the request's new content to its target section and
// marks the request completed. Re-invoking on an already-completed
// request is a no-op. A request whose section cannot be resolved is
// rejected, not failed: the conversation must not crash on it.
func (a *Applier) Apply(ctx context.Context, requestID string) error {
	request, err := a.ledger.Get(ctx, requestID)
	if err != nil {
		return err
	}

	if request.Status == domain.RequestStatusCompleted {
		return nil
	}
	if request.Status == domain.RequestStatusRejected {
		return fmt.Errorf("change request %s is rejected: %w", requestID, domain.ErrInvalidTransition)
	}

	section := ResolveSection(request.RequestType, request.Section)
	if section == "" {
		a.logger.Warn("change request has no resolvable section, rejecting",
			zap.String("request_id", requestID),
			zap.String("request_type", string(request.RequestType)))
		return a.ledger.MarkRejected(ctx, requestID)
	}

	if err := a.upsertSection(ctx, request.WebsiteID, section, request.NewContent); err != nil {
		return fmt.Errorf("failed to apply change request %s: %w", requestID, err)
	}

	return a.ledger.MarkCompleted(ctx, requestID)
}

// upsertSection inserts the section at version 1 or increments the
// stored version via compare-and-swap. Losing a race re-reads and
// retries so the increment is never computed from a stale read.
func (a *Applier) upsertSection(ctx context.Context, websiteID, section string, content []byte) error {
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		current, err := a.store.GetSectionContent(ctx, websiteID, section)
		if err != nil {
			return err
		}

		if current == nil {
			err := a.store.InsertSectionContent(ctx, &domain.WebsiteContent{
				ID:          uuid.NewString(),
				WebsiteID:   websiteID,
				Section:     section,
				ContentType: "json",
				Content:     content,
				Version:     1,
				Published:   true,
				CreatedAt:   time.Now().UTC(),
			})
			if errors.Is(err, domain.ErrConflict) {
				// Another applier created the row first.
				a.logger.Debug("section insert lost race, retrying",
					zap.String("website_id", websiteID), zap.String("section", section))
				continue
			}
			return err
		}

		ok, err := a.store.UpdateSectionContentCAS(ctx, websiteID, section, current.Version, content)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		a.logger.Debug("section version conflict, retrying",
			zap.String("website_id", websiteID),
			zap.String("section", section),
			zap.Int("stale_version", current.Version))
	}

	return fmt.Errorf("section %s/%s contended for %d attempts: %w",
		websiteID, section, maxApplyAttempts, domain.ErrConflict)
}
