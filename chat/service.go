// Package chat implements the conversation manager: chat sessions,
// history windowing, context assembly, and the per-message pipeline
// that turns completions into change requests.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabiobrito-bit/local-pro-sites-platform/changes"
	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
	"github.com/fabiobrito-bit/local-pro-sites-platform/intent"
	"github.com/fabiobrito-bit/local-pro-sites-platform/llm"
	"github.com/fabiobrito-bit/local-pro-sites-platform/store"
)

const (
	// historyWindow is the fixed number of recent messages sent to the
	// model on every turn.
	historyWindow = 20
	// maxSessionList caps session listings.
	maxSessionList = 50
	// defaultSessionTitle until the client renames the session.
	defaultSessionTitle = "New chat"
)

// Completer is the external completion function: system instruction
// plus ordered history in, generated text plus usage out.
type Completer interface {
	Complete(ctx context.Context, system string, history []llm.Message, maxTokens int) (*llm.Completion, error)
}

// Service is the conversation manager.
type Service struct {
	store     store.Store
	completer Completer
	ledger    *changes.Ledger
	applier   *changes.Applier
	counter   TokenCounter
	maxTokens int
	logger    *zap.Logger
}

// NewService wires the conversation manager.
func NewService(s store.Store, completer Completer, ledger *changes.Ledger, applier *changes.Applier, maxTokens int, logger *zap.Logger) *Service {
	return &Service{
		store:     s,
		completer: completer,
		ledger:    ledger,
		applier:   applier,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// CreateSession starts a new chat session, snapshotting the client's
// business profile and, when a website is given, its published content.
func (s *Service) CreateSession(ctx context.Context, clientID, websiteID string) (*domain.ChatSession, error) {
	client, err := s.store.GetClientProfile(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client profile: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("client %s: %w", clientID, domain.ErrNotFound)
	}

	var website *domain.Website
	var sections []domain.WebsiteContent
	if websiteID != "" {
		website, err = s.store.GetWebsite(ctx, websiteID)
		if err != nil {
			return nil, fmt.Errorf("failed to load website: %w", err)
		}
		if website == nil {
			return nil, fmt.Errorf("website %s: %w", websiteID, domain.ErrNotFound)
		}
		sections, err = s.store.ListPublishedContent(ctx, websiteID)
		if err != nil {
			return nil, fmt.Errorf("failed to load published content: %w", err)
		}
	}

	contextBlob, err := buildSessionContext(client, website, sections)
	if err != nil {
		return nil, fmt.Errorf("failed to build session context: %w", err)
	}

	session := &domain.ChatSession{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		WebsiteID: websiteID,
		Title:     defaultSessionTitle,
		Context:   contextBlob,
		Status:    domain.SessionStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// PostMessage runs the full per-message pipeline. The user message is
// persisted before the completion call, so the conversation survives
// upstream failures; the assistant message is written only on success.
func (s *Service) PostMessage(ctx context.Context, req domain.PostMessageRequest) (*domain.ChatMessage, *domain.Intent, error) {
	session, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil, fmt.Errorf("session %s: %w", req.SessionID, domain.ErrNotFound)
	}

	userMsg := &domain.ChatMessage{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		Role:       domain.RoleUser,
		Content:    req.Content,
		TokenCount: s.counter.Estimate(req.Content),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	history, err := s.store.GetRecentMessages(ctx, session.ID, historyWindow, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}
	turns := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		turns = append(turns, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}

	completion, err := s.completer.Complete(ctx, systemInstruction(session.Context), turns, s.maxTokens)
	if err != nil {
		// The user message stays persisted; the caller may retry.
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	parsedIntent, responseText := intent.Extract(completion.Text)

	websiteID := req.WebsiteID
	if websiteID == "" {
		websiteID = session.WebsiteID
	}

	var metadata json.RawMessage
	if parsedIntent != nil {
		for _, anomaly := range parsedIntent.Normalize() {
			s.logger.Warn("intent anomaly", zap.String("session_id", session.ID), zap.String("detail", anomaly))
		}

		if parsedIntent.Type != domain.IntentGeneralQuery && websiteID != "" {
			responseText = s.openChangeRequest(ctx, req.ClientID, websiteID, parsedIntent, responseText)
		}

		metadata, err = json.Marshal(map[string]*domain.Intent{"intent": parsedIntent})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal intent metadata: %w", err)
		}
	}

	tokens := completion.Usage.TotalTokens
	if tokens == 0 {
		tokens = s.counter.Estimate(completion.Text)
	}

	assistantMsg := &domain.ChatMessage{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		Role:       domain.RoleAssistant,
		Content:    responseText,
		Metadata:   metadata,
		TokenCount: tokens,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	if err := s.store.AddSessionTokens(ctx, session.ID, tokens); err != nil {
		return nil, nil, fmt.Errorf("failed to update session tokens: %w", err)
	}

	return assistantMsg, parsedIntent, nil
}

// openChangeRequest hands the intent to the ledger and, when the policy
// auto-approved it, to the applier. Ledger failures degrade to a plain
// answer; the conversation itself never fails on them.
func (s *Service) openChangeRequest(ctx context.Context, clientID, websiteID string, in *domain.Intent, responseText string) string {
	request, err := s.ledger.Open(ctx, clientID, websiteID, in)
	if err != nil {
		s.logger.Error("failed to open change request, answering without one",
			zap.String("client_id", clientID),
			zap.String("website_id", websiteID),
			zap.Error(err))
		return responseText
	}

	shortID := request.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	if request.Status == domain.RequestStatusAutoApproved {
		responseText += fmt.Sprintf("\n\n✅ Change request created (ID: %s). This change will be applied automatically.", shortID)
		if err := s.applier.Apply(ctx, request.ID); err != nil {
			// The request stays auto_approved and can be re-applied.
			s.logger.Error("auto-apply failed", zap.String("request_id", request.ID), zap.Error(err))
		}
	} else {
		responseText += fmt.Sprintf("\n\n✅ Change request created (ID: %s). An admin will review your request.", shortID)
	}
	return responseText
}

// ListSessions returns the client's most recent sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, clientID string) ([]domain.ChatSession, error) {
	sessions, err := s.store.ListSessions(ctx, clientID, maxSessionList)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// ListMessages returns a session's full ordered history.
func (s *Service) ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	messages, err := s.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Escalate marks the session escalated. Ticket creation belongs to the
// support subsystem; this only records the state transition.
func (s *Service) Escalate(ctx context.Context, sessionID, reason string) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	if err := s.store.UpdateSessionStatus(ctx, sessionID, domain.SessionStatusEscalated); err != nil {
		return fmt.Errorf("failed to escalate session: %w", err)
	}
	s.logger.Info("session escalated", zap.String("session_id", sessionID), zap.String("reason", reason))
	return nil
}
