// ABOUTME: HTTP API tests covering auth, conversation CRUD, sending, and export.
// ABOUTME: Uses httptest against the real route table with an in-memory repository.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentchat/internal/chat"
	"github.com/2389/agentchat/internal/export"
	"github.com/2389/agentchat/internal/profile"
	"github.com/2389/agentchat/internal/session"
	"github.com/2389/agentchat/internal/store"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*store.Account
}

func (m *memAccounts) CreateAccount(ctx context.Context, account *store.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[account.Email]; exists {
		return store.ErrDuplicateAccount
	}
	m.accounts[account.Email] = account
	return nil
}

func (m *memAccounts) GetAccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return account, nil
}

type scriptedCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (c *scriptedCompleter) Process(ctx context.Context, prof profile.Profile, userMessage string, merged []store.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func (c *scriptedCompleter) set(reply string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply = reply
	c.err = err
}

type testEnv struct {
	server    *httptest.Server
	repo      *store.MockRepository
	completer *scriptedCompleter
	token     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := store.NewMockRepository()
	completer := &scriptedCompleter{reply: "stub reply"}

	factory := func(ownerID string) *chat.Service {
		return chat.New(repo, session.Static(ownerID), completer, chat.WithLogger(logger))
	}
	registry := NewRegistry(factory, profile.Builtin())
	sessions := session.NewManager(&memAccounts{accounts: make(map[string]*store.Account)}, []byte("test-secret"), 0, logger)
	srv := NewServer(sessions, registry, export.NewRenderer(logger), logger)

	env := &testEnv{
		server:    httptest.NewServer(srv.Routes()),
		repo:      repo,
		completer: completer,
	}
	t.Cleanup(env.server.Close)

	resp := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"email":    "test@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created SessionResponse
	decode(t, resp, &created)
	require.NotEmpty(t, created.Token)
	env.token = created.Token
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestSignUpAndSignIn(t *testing.T) {
	env := newTestEnv(t)

	// Duplicate email is rejected.
	resp := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"email": "test@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Short password is rejected.
	resp = env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"email": "other@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Correct credentials sign in.
	resp = env.do(t, http.MethodPost, "/api/signin", "", map[string]string{
		"email": "test@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess SessionResponse
	decode(t, resp, &sess)
	assert.NotEmpty(t, sess.Token)

	// Wrong password does not.
	resp = env.do(t, http.MethodPost, "/api/signin", "", map[string]string{
		"email": "test@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/conversations", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListAgents(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/agents", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var agents []AgentResponse
	decode(t, resp, &agents)
	require.Len(t, agents, 6)
	assert.Equal(t, "Researcher", agents[0].ID)
	assert.True(t, agents[0].Selected)
}

func TestSelectAgent(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/agents/selected", env.token,
		SelectAgentRequest{AgentID: "Writer"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/state", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state StateResponse
	decode(t, resp, &state)
	assert.Equal(t, "Writer", state.SelectedAgentID)
	assert.False(t, state.Processing)

	resp = env.do(t, http.MethodPut, "/api/agents/selected", env.token,
		SelectAgentRequest{AgentID: "Unknown"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConversationLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// First touch creates an empty conversation.
	resp := env.do(t, http.MethodGet, "/api/conversations", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []ConversationSummary
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "New Chat", list[0].Title)
	assert.True(t, list[0].Current)
	first := list[0].ID

	// Create a second conversation; it becomes current.
	resp = env.do(t, http.MethodPost, "/api/conversations", env.token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created ConversationResponse
	decode(t, resp, &created)
	assert.NotEqual(t, first, created.ID)

	// Retitle it.
	resp = env.do(t, http.MethodPut, "/api/conversations/"+created.ID+"/title", env.token,
		UpdateTitleRequest{Title: "Renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/conversations/"+created.ID, env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched ConversationResponse
	decode(t, resp, &fetched)
	assert.Equal(t, "Renamed", fetched.Title)

	// Delete it; selection falls back to the remaining conversation.
	resp = env.do(t, http.MethodDelete, "/api/conversations/"+created.ID, env.token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/conversations", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, first, list[0].ID)
	assert.True(t, list[0].Current)

	// Deleting a nonexistent conversation is a 404.
	resp = env.do(t, http.MethodDelete, "/api/conversations/"+created.ID, env.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/conversations", env.token, nil)
	var list []ConversationSummary
	decode(t, resp, &list)
	convID := list[0].ID

	resp = env.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", env.token,
		SendRequest{Content: "Hello", AgentID: "Researcher"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conv ConversationResponse
	decode(t, resp, &conv)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, store.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "Hello", conv.Messages[0].Content)
	assert.Equal(t, store.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "stub reply", conv.Messages[1].Content)
	assert.Equal(t, "Researcher", conv.Messages[1].AgentID)
	assert.Equal(t, "Hello", conv.Title)
}

func TestSendMessage_Validation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/conversations", env.token, nil)
	var list []ConversationSummary
	decode(t, resp, &list)
	convID := list[0].ID

	resp = env.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", env.token,
		SendRequest{Content: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/conversations/nope/messages", env.token,
		SendRequest{Content: "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", env.token,
		SendRequest{Content: "hi", AgentID: "Unknown"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessage_DispatchFailureInTranscript(t *testing.T) {
	env := newTestEnv(t)
	env.completer.set("", errors.New("Researcher agent error after 3 retries: upstream unavailable"))

	resp := env.do(t, http.MethodGet, "/api/conversations", env.token, nil)
	var list []ConversationSummary
	decode(t, resp, &list)
	convID := list[0].ID

	resp = env.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", env.token,
		SendRequest{Content: "doomed"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// The transcript carries the user message plus the inline error.
	resp = env.do(t, http.MethodGet, "/api/conversations/"+convID, env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conv ConversationResponse
	decode(t, resp, &conv)
	require.NotEmpty(t, conv.Messages)
	assert.Equal(t, "doomed", conv.Messages[0].Content)
	last := conv.Messages[len(conv.Messages)-1]
	assert.Equal(t, store.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "Error: ")
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/conversations", env.token, nil)
	var list []ConversationSummary
	decode(t, resp, &list)
	convID := list[0].ID

	resp = env.do(t, http.MethodPost, "/api/conversations/"+convID+"/messages", env.token,
		SendRequest{Content: "Export me"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/conversations/"+convID+"/export", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Export me")

	resp = env.do(t, http.MethodGet, "/api/conversations/"+convID+"/export?format=html", env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "<!DOCTYPE html>"))

	resp = env.do(t, http.MethodGet, "/api/conversations/"+convID+"/export?format=pdf", env.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOwnersAreIsolated(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"email": "second@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var second SessionResponse
	decode(t, resp, &second)

	// Each owner sees only their own fresh conversation.
	resp = env.do(t, http.MethodGet, "/api/conversations", env.token, nil)
	var firstList []ConversationSummary
	decode(t, resp, &firstList)

	resp = env.do(t, http.MethodGet, "/api/conversations", second.Token, nil)
	var secondList []ConversationSummary
	decode(t, resp, &secondList)

	require.Len(t, firstList, 1)
	require.Len(t, secondList, 1)
	assert.NotEqual(t, firstList[0].ID, secondList[0].ID)

	// By-id access to someone else's conversation looks like a missing one.
	target := firstList[0].ID
	resp = env.do(t, http.MethodGet, "/api/conversations/"+target, second.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/conversations/"+target+"/title", second.Token,
		map[string]string{"title": "Hijacked"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/conversations/"+target+"/messages", second.Token,
		map[string]string{"content": "injected"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/conversations/"+target, second.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The first owner's conversation survives untouched.
	resp = env.do(t, http.MethodGet, "/api/conversations/"+target, env.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conv ConversationResponse
	decode(t, resp, &conv)
	assert.NotEqual(t, "Hijacked", conv.Title)
	assert.Empty(t, conv.Messages)
}
