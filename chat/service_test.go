package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fabiobrito-bit/local-pro-sites-platform/changes"
	"github.com/fabiobrito-bit/local-pro-sites-platform/chat"
	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
	"github.com/fabiobrito-bit/local-pro-sites-platform/llm"
	"github.com/fabiobrito-bit/local-pro-sites-platform/policy"
	"github.com/fabiobrito-bit/local-pro-sites-platform/store"
	"github.com/fabiobrito-bit/local-pro-sites-platform/tests/helpers"
)

// fakeCompleter returns canned completions and records what it was
// asked.
type fakeCompleter struct {
	reply      string
	usage      llm.Usage
	err        error
	lastSystem string
	lastTurns  []llm.Message
}

func (f *fakeCompleter) Complete(ctx context.Context, system string, history []llm.Message, maxTokens int) (*llm.Completion, error) {
	f.lastSystem = system
	f.lastTurns = history
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Text: f.reply, Usage: f.usage}, nil
}

func newChatService(t *testing.T, ctx context.Context, completer chat.Completer) (*chat.Service, store.Store) {
	t.Helper()
	s := helpers.NewTestStore(t)
	helpers.SeedClientAndWebsite(t, ctx, s, "c1", "w1")

	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)
	ledger := changes.NewLedger(s, engine, zap.NewNop())
	applier := changes.NewApplier(s, ledger, zap.NewNop())

	return chat.NewService(s, completer, ledger, applier, 2000, zap.NewNop()), s
}

func TestCreateSessionSnapshotsContext(t *testing.T) {
	ctx := context.Background()
	svc, s := newChatService(t, ctx, &fakeCompleter{})
	helpers.SeedSection(t, ctx, s, "w1", "contact", json.RawMessage(`{"mon":"9-5"}`))

	session, err := svc.CreateSession(ctx, "c1", "w1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusActive, session.Status)
	assert.Equal(t, "w1", session.WebsiteID)

	var sessionCtx chat.SessionContext
	require.NoError(t, json.Unmarshal(session.Context, &sessionCtx))
	assert.Equal(t, "Bakkerij Jansen", sessionCtx.BusinessName)
	require.NotNil(t, sessionCtx.Website)
	assert.JSONEq(t, `{"mon":"9-5"}`, string(sessionCtx.Website.Content["contact"]))
}

func TestCreateSessionUnknownClient(t *testing.T) {
	ctx := context.Background()
	svc, _ := newChatService(t, ctx, &fakeCompleter{})

	_, err := svc.CreateSession(ctx, "ghost", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostMessageHoursUpdateEndToEnd(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{
		reply: `{"intent":{"type":"hours_update","newContent":{"mon":"9-5"},"autoApprovable":true,"priority":"low","description":"update hours"},"response":"Done!"}`,
		usage: llm.Usage{PromptTokens: 120, CompletionTokens: 60, TotalTokens: 180},
	}
	svc, s := newChatService(t, ctx, completer)

	session, err := svc.CreateSession(ctx, "c1", "w1")
	require.NoError(t, err)

	message, parsedIntent, err := svc.PostMessage(ctx, domain.PostMessageRequest{
		SessionID: session.ID,
		ClientID:  "c1",
		Content:   "Update my hours to 9-5",
	})
	require.NoError(t, err)
	require.NotNil(t, parsedIntent)
	assert.Equal(t, domain.IntentHoursUpdate, parsedIntent.Type)

	// The envelope is never shown; the outcome suffix is appended.
	assert.True(t, strings.HasPrefix(message.Content, "Done!"))
	assert.Contains(t, message.Content, "applied automatically")
	assert.Equal(t, 180, message.TokenCount)
	require.NotNil(t, message.Metadata)

	// One change request, auto-approved and completed.
	requests, err := s.ListChangeRequests(ctx, store.ChangeRequestFilter{WebsiteID: "w1"})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, domain.RequestStatusCompleted, requests[0].Status)
	assert.True(t, requests[0].AutoApprovable)

	// The contact section was written at version 1, published.
	section, err := s.GetSectionContent(ctx, "w1", "contact")
	require.NoError(t, err)
	require.NotNil(t, section)
	assert.Equal(t, 1, section.Version)
	assert.True(t, section.Published)
	assert.JSONEq(t, `{"mon":"9-5"}`, string(section.Content))

	// The session accumulator carries the reported total.
	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 180, got.TotalTokens)
}

func TestPostMessagePlainAnswer(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{
		reply: "We are open Monday to Friday, 9 to 5.",
		usage: llm.Usage{TotalTokens: 42},
	}
	svc, s := newChatService(t, ctx, completer)

	session, err := svc.CreateSession(ctx, "c1", "w1")
	require.NoError(t, err)

	message, parsedIntent, err := svc.PostMessage(ctx, domain.PostMessageRequest{
		SessionID: session.ID,
		ClientID:  "c1",
		Content:   "What are your hours?",
	})
	require.NoError(t, err)
	assert.Nil(t, parsedIntent)
	assert.Equal(t, "We are open Monday to Friday, 9 to 5.", message.Content)
	assert.Nil(t, message.Metadata)

	requests, err := s.ListChangeRequests(ctx, store.ChangeRequestFilter{WebsiteID: "w1"})
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestPostMessagePendingReviewSuffix(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{
		reply: `{"intent":{"type":"content_change","section":"about","newContent":{"text":"new about"},"autoApprovable":false,"priority":"medium","description":"rewrite about"},"response":"I will pass this on."}`,
		usage: llm.Usage{TotalTokens: 90},
	}
	svc, s := newChatService(t, ctx, completer)

	session, err := svc.CreateSession(ctx, "c1", "w1")
	require.NoError(t, err)

	message, parsedIntent, err := svc.PostMessage(ctx, domain.PostMessageRequest{
		SessionID: session.ID,
		ClientID:  "c1",
		Content:   "Please rewrite the about section",
	})
	require.NoError(t, err)
	require.NotNil(t, parsedIntent)
	assert.Contains(t, message.Content, "review your request")

	requests, err := s.ListChangeRequests(ctx, store.ChangeRequestFilter{WebsiteID: "w1"})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, domain.RequestStatusPending, requests[0].Status)

	// Nothing is applied while the request waits for review.
	section, err := s.GetSectionContent(ctx, "w1", "about")
	require.NoError(t, err)
	assert.Nil(t, section)
}

func TestPostMessageUpstreamFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{err: errors.New("gateway timeout")}
	svc, s := newChatService(t, ctx, completer)

	session, err := svc.CreateSession(ctx, "c1", "w1")
	require.NoError(t, err)

	_, _, err = svc.PostMessage(ctx, domain.PostMessageRequest{
		SessionID: session.ID,
		ClientID:  "c1",
		Content:   "hello?",
	})
	assert.ErrorIs(t, err, domain.ErrUpstream)

	// The user message survives; no assistant message was written.
	messages, err := svc.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, "hello?", messages[0].Content)
	_ = s
}

func TestPostMessageHistoryWindowExcludesSystem(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: "ok", usage: llm.Usage{TotalTokens: 1}}
	svc, _ := newChatService(t, ctx, completer)

	session, err := svc.CreateSession(ctx, "c1", "w1")
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		_, _, err := svc.PostMessage(ctx, domain.PostMessageRequest{
			SessionID: session.ID,
			ClientID:  "c1",
			Content:   "ping",
		})
		require.NoError(t, err)
	}

	assert.Len(t, completer.lastTurns, 20)
	for _, turn := range completer.lastTurns {
		assert.NotEqual(t, string(domain.RoleSystem), turn.Role)
	}
	assert.Contains(t, completer.lastSystem, "Bakkerij Jansen")
}

func TestPostMessageUnknownSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newChatService(t, ctx, &fakeCompleter{reply: "ok"})

	_, _, err := svc.PostMessage(ctx, domain.PostMessageRequest{
		SessionID: "ghost",
		ClientID:  "c1",
		Content:   "hello",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEscalateRecordsStatus(t *testing.T) {
	ctx := context.Background()
	svc, s := newChatService(t, ctx, &fakeCompleter{})

	session, err := svc.CreateSession(ctx, "c1", "")
	require.NoError(t, err)

	require.NoError(t, svc.Escalate(ctx, session.ID, "client asked for a human"))

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusEscalated, got.Status)

	err = svc.Escalate(ctx, "ghost", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListSessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newChatService(t, ctx, &fakeCompleter{})

	var last string
	for i := 0; i < 3; i++ {
		session, err := svc.CreateSession(ctx, "c1", "")
		require.NoError(t, err)
		last = session.ID
	}

	sessions, err := svc.ListSessions(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, last, sessions[0].ID)
}
