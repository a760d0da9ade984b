package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fabiobrito-bit/local-pro-sites-platform/api"
	"github.com/fabiobrito-bit/local-pro-sites-platform/changes"
	"github.com/fabiobrito-bit/local-pro-sites-platform/chat"
	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
	"github.com/fabiobrito-bit/local-pro-sites-platform/llm"
	"github.com/fabiobrito-bit/local-pro-sites-platform/policy"
	"github.com/fabiobrito-bit/local-pro-sites-platform/store"
	"github.com/fabiobrito-bit/local-pro-sites-platform/tests/helpers"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, system string, history []llm.Message, maxTokens int) (*llm.Completion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Completion{Text: s.reply, Usage: llm.Usage{TotalTokens: 10}}, nil
}

type fixture struct {
	handler *api.Handler
	ledger  *changes.Ledger
	store   store.Store
	echo    *echo.Echo
}

func newAPIFixture(t *testing.T, completer chat.Completer) *fixture {
	t.Helper()
	ctx := context.Background()
	s := helpers.NewTestStore(t)
	helpers.SeedClientAndWebsite(t, ctx, s, "c1", "w1")

	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)
	ledger := changes.NewLedger(s, engine, zap.NewNop())
	applier := changes.NewApplier(s, ledger, zap.NewNop())
	chatService := chat.NewService(s, completer, ledger, applier, 2000, zap.NewNop())

	e := echo.New()
	handler := api.NewHandler(chatService, ledger, applier, zap.NewNop())
	handler.RegisterRoutes(e)

	return &fixture{handler: handler, ledger: ledger, store: s, echo: e}
}

func doJSON(f *fixture, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func TestCreateSessionEndpoint(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	rec := doJSON(f, http.MethodPost, "/v1/chat/sessions", `{"client_id":"c1","website_id":"w1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var session domain.ChatSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "c1", session.ClientID)
}

func TestCreateSessionValidation(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	rec := doJSON(f, http.MethodPost, "/v1/chat/sessions", `{"website_id":"w1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "client_id")
}

func TestCreateSessionUnknownClientMapsTo404(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	rec := doJSON(f, http.MethodPost, "/v1/chat/sessions", `{"client_id":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessageEndpoint(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{
		reply: `{"intent":{"type":"hours_update","newContent":{"mon":"9-5"},"autoApprovable":true,"priority":"low","description":"update hours"},"response":"Done!"}`,
	})

	create := doJSON(f, http.MethodPost, "/v1/chat/sessions", `{"client_id":"c1","website_id":"w1"}`)
	require.Equal(t, http.StatusCreated, create.Code)
	var session domain.ChatSession
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &session))

	rec := doJSON(f, http.MethodPost, "/v1/chat/messages",
		`{"session_id":"`+session.ID+`","client_id":"c1","content":"Update my hours"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.PostMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Message)
	require.NotNil(t, resp.Intent)
	assert.Equal(t, domain.IntentHoursUpdate, resp.Intent.Type)
	assert.Contains(t, resp.Message.Content, "applied automatically")
}

func TestPostMessageValidation(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	rec := doJSON(f, http.MethodPost, "/v1/chat/messages", `{"session_id":"s1","client_id":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "content")
}

func TestPostMessageUpstreamFailureMapsTo502(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{err: assert.AnError})

	create := doJSON(f, http.MethodPost, "/v1/chat/sessions", `{"client_id":"c1"}`)
	require.Equal(t, http.StatusCreated, create.Code)
	var session domain.ChatSession
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &session))

	rec := doJSON(f, http.MethodPost, "/v1/chat/messages",
		`{"session_id":"`+session.ID+`","client_id":"c1","content":"hello"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	// The raw upstream error is logged, not leaked.
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestListMessagesUnknownSessionMapsTo404(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	rec := doJSON(f, http.MethodGet, "/v1/chat/sessions/ghost/messages", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEscalateEndpoint(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	create := doJSON(f, http.MethodPost, "/v1/chat/sessions", `{"client_id":"c1"}`)
	require.Equal(t, http.StatusCreated, create.Code)
	var session domain.ChatSession
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &session))

	rec := doJSON(f, http.MethodPost, "/v1/chat/sessions/"+session.ID+"/escalate", `{"reason":"need a human"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusEscalated, got.Status)
}

func TestDecisionApproveAppliesChange(t *testing.T) {
	ctx := context.Background()
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	request, err := f.ledger.Open(ctx, "c1", "w1", &domain.Intent{
		Type:        domain.IntentContentChange,
		Section:     "hero",
		NewContent:  json.RawMessage(`{"headline":"Fresh bread daily"}`),
		Priority:    domain.PriorityMedium,
		Description: "new headline",
	})
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusPending, request.Status)

	rec := doJSON(f, http.MethodPost, "/v1/change-requests/"+request.ID+"/decision", `{"decision":"approve"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var decided domain.ChangeRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decided))
	assert.Equal(t, domain.RequestStatusCompleted, decided.Status)

	section, err := f.store.GetSectionContent(ctx, "w1", "hero")
	require.NoError(t, err)
	require.NotNil(t, section)
	assert.JSONEq(t, `{"headline":"Fresh bread daily"}`, string(section.Content))
}

func TestDecisionRejectClosesRequest(t *testing.T) {
	ctx := context.Background()
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	request, err := f.ledger.Open(ctx, "c1", "w1", &domain.Intent{
		Type:        domain.IntentContentChange,
		NewContent:  json.RawMessage(`{}`),
		Priority:    domain.PriorityMedium,
		Description: "change",
	})
	require.NoError(t, err)

	rec := doJSON(f, http.MethodPost, "/v1/change-requests/"+request.ID+"/decision", `{"decision":"reject"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var decided domain.ChangeRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decided))
	assert.Equal(t, domain.RequestStatusRejected, decided.Status)
}

func TestDecisionOnDecidedRequestMapsTo409(t *testing.T) {
	ctx := context.Background()
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	request, err := f.ledger.Open(ctx, "c1", "w1", &domain.Intent{
		Type:        domain.IntentContentChange,
		NewContent:  json.RawMessage(`{}`),
		Priority:    domain.PriorityMedium,
		Description: "change",
	})
	require.NoError(t, err)
	require.NoError(t, f.ledger.MarkRejected(ctx, request.ID))

	rec := doJSON(f, http.MethodPost, "/v1/change-requests/"+request.ID+"/decision", `{"decision":"approve"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDecisionValidatesVerb(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	rec := doJSON(f, http.MethodPost, "/v1/change-requests/any/decision", `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "decision")
}

func TestListChangeRequestsFilter(t *testing.T) {
	ctx := context.Background()
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	for i := 0; i < 3; i++ {
		_, err := f.ledger.Open(ctx, "c1", "w1", &domain.Intent{
			Type:        domain.IntentContentChange,
			NewContent:  json.RawMessage(`{}`),
			Priority:    domain.PriorityMedium,
			Description: "change",
		})
		require.NoError(t, err)
	}

	rec := doJSON(f, http.MethodGet, "/v1/change-requests?status=pending&website_id=w1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Requests []domain.ChangeRequest `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Requests, 3)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, &stubCompleter{reply: "ok"})

	rec := doJSON(f, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
