package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliolabs/clio/internal/auth"
	"github.com/cliolabs/clio/internal/chat"
	"github.com/cliolabs/clio/internal/conversation"
	"github.com/cliolabs/clio/internal/document"
	"github.com/cliolabs/clio/internal/log"
	"github.com/cliolabs/clio/internal/stream"
	"github.com/cliolabs/clio/internal/testutil"

	"github.com/google/uuid"
)

// headerAuth authenticates any request carrying an Authorization header,
// resolving it to a fixed user.
type headerAuth struct {
	userID string
}

func (a *headerAuth) Session(r *http.Request) *auth.Session {
	if r.Header.Get("Authorization") == "" {
		return nil
	}
	return &auth.Session{User: &auth.User{ID: a.userID}}
}

// scriptedRunner replays a fixed event sequence as the turn.
type scriptedRunner struct {
	events []stream.Event
	err    error
	got    chat.Request
	called bool
}

func (f *scriptedRunner) Run(_ context.Context, req chat.Request, s *stream.Stream) error {
	f.called = true
	f.got = req
	defer s.Close()
	for _, ev := range f.events {
		s.Emit(ev)
	}
	return f.err
}

// memChats is an in-memory ChatStore.
type memChats struct {
	chats   map[string]conversation.Chat
	delErr  error
	deleted []string
}

func (m *memChats) ByID(_ context.Context, id string) (conversation.Chat, error) {
	c, ok := m.chats[id]
	if !ok {
		return conversation.Chat{}, conversation.ErrNotFound
	}
	return c, nil
}

func (m *memChats) Delete(_ context.Context, id string) error {
	if m.delErr != nil {
		return m.delErr
	}
	if _, ok := m.chats[id]; !ok {
		return conversation.ErrNotFound
	}
	delete(m.chats, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// memSuggestions is an in-memory SuggestionLister.
type memSuggestions struct {
	byDoc map[uuid.UUID][]document.Suggestion
	err   error
}

func (m *memSuggestions) SuggestionsByDocument(_ context.Context, documentID uuid.UUID) ([]document.Suggestion, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byDoc[documentID], nil
}

type serverEnv struct {
	handler http.Handler
	runner  *scriptedRunner
	chats   *memChats
	sugg    *memSuggestions
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	env := &serverEnv{
		runner: &scriptedRunner{},
		chats:  &memChats{chats: map[string]conversation.Chat{}},
		sugg:   &memSuggestions{byDoc: map[uuid.UUID][]document.Suggestion{}},
	}

	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Agent:       env.runner,
		Auth:        &headerAuth{userID: "user-1"},
		Chats:       env.chats,
		Suggestions: env.sugg,
		RateBurst:   1000,
		IsDev:       true,
	})
	require.NoError(t, err)

	env.handler = srv.Handler()
	return env
}

func chatBody(t *testing.T, id, modelID string, messages []apiMessage) *strings.Reader {
	t.Helper()
	body, err := json.Marshal(chatRequest{ID: id, Messages: messages, ModelID: modelID})
	require.NoError(t, err)
	return strings.NewReader(string(body))
}

func TestChatSendRequiresAuth(t *testing.T) {
	env := newServerEnv(t)

	r := httptest.NewRequest(http.MethodPost, "/api/chat",
		chatBody(t, "c1", "gpt-4o-mini", []apiMessage{{Role: "user", Content: "hi"}}))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.runner.called)
}

func TestChatSendValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		errCode string
	}{
		{
			name:    "invalid json",
			body:    "{not json",
			status:  http.StatusBadRequest,
			errCode: "invalid_request",
		},
		{
			name:    "missing id",
			body:    `{"messages":[{"role":"user","content":"hi"}],"modelId":"gpt-4o-mini"}`,
			status:  http.StatusBadRequest,
			errCode: "missing_chat_id",
		},
		{
			name:    "missing messages",
			body:    `{"id":"c1","modelId":"gpt-4o-mini"}`,
			status:  http.StatusBadRequest,
			errCode: "missing_messages",
		},
		{
			name:    "unknown model",
			body:    `{"id":"c1","messages":[{"role":"user","content":"hi"}],"modelId":"gpt-9"}`,
			status:  http.StatusNotFound,
			errCode: "model_not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newServerEnv(t)

			r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			r.Header.Set("Authorization", "Bearer test")
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.errCode, body.Error.Code)
			assert.False(t, env.runner.called)
		})
	}
}

func TestChatSendStreamsEvents(t *testing.T) {
	env := newServerEnv(t)
	env.runner.events = []stream.Event{
		{Type: stream.TypeText, Content: "Hello"},
		{Type: stream.TypeText, Content: " there"},
	}

	r := httptest.NewRequest(http.MethodPost, "/api/chat",
		chatBody(t, "c1", "gpt-4o-canvas", []apiMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "continue"},
		}))
	r.Header.Set("Authorization", "Bearer test")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := testutil.ParseSSEEvents(t, w.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "text", events[0].Type)
	assert.Equal(t, `"Hello"`, events[0].Data)
	assert.Equal(t, "text", events[1].Type)
	assert.Equal(t, `" there"`, events[1].Data)
	assert.Equal(t, eventDone, events[2].Type)

	// The turn request carries the resolved model and authenticated user.
	require.True(t, env.runner.called)
	assert.Equal(t, "c1", env.runner.got.ChatID)
	assert.Equal(t, "gpt-4o-canvas", env.runner.got.Model.ID)
	assert.True(t, env.runner.got.Model.Canvas)
	require.NotNil(t, env.runner.got.User)
	assert.Equal(t, "user-1", env.runner.got.User.ID)

	require.Len(t, env.runner.got.Messages, 3)
	assert.Equal(t, ai.RoleUser, env.runner.got.Messages[0].Role)
	assert.Equal(t, ai.RoleModel, env.runner.got.Messages[1].Role)
	assert.Equal(t, "continue", env.runner.got.Messages[2].Content[0].Text)
}

func TestChatSendReportsFailure(t *testing.T) {
	env := newServerEnv(t)
	env.runner.events = []stream.Event{{Type: stream.TypeText, Content: "partial"}}
	env.runner.err = context.DeadlineExceeded

	r := httptest.NewRequest(http.MethodPost, "/api/chat",
		chatBody(t, "c1", "gpt-4o-mini", []apiMessage{{Role: "user", Content: "hi"}}))
	r.Header.Set("Authorization", "Bearer test")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, eventError, last.Type)
	assert.Nil(t, testutil.FindEvent(events, eventDone))

	// Partial output still reaches the client before the error event.
	text := testutil.FindEvent(events, "text")
	require.NotNil(t, text)
	assert.Equal(t, `"partial"`, text.Data)
}

func TestChatGet(t *testing.T) {
	env := newServerEnv(t)
	env.chats.chats["c1"] = conversation.Chat{
		ID:     "c1",
		UserID: "user-1",
		Messages: []*ai.Message{
			ai.NewUserMessage(ai.NewTextPart("hi")),
			ai.NewModelMessage(ai.NewTextPart("hello")),
		},
	}
	env.chats.chats["c2"] = conversation.Chat{ID: "c2", UserID: "someone-else"}

	t.Run("owner reads transcript", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/chat/c1", nil)
		r.Header.Set("Authorization", "Bearer test")
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		var resp chatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "c1", resp.ID)
		require.Len(t, resp.Messages, 2)
		assert.Equal(t, apiMessage{Role: "user", Content: "hi"}, resp.Messages[0])
		assert.Equal(t, apiMessage{Role: "assistant", Content: "hello"}, resp.Messages[1])
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/chat/nope", nil)
		r.Header.Set("Authorization", "Bearer test")
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-owner is 401", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/chat/c2", nil)
		r.Header.Set("Authorization", "Bearer test")
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no auth is 401", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/chat/c1", nil)
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestChatDelete(t *testing.T) {
	tests := []struct {
		name   string
		target string
		owner  string
		auth   bool
		status int
	}{
		{name: "owner deletes", target: "/api/chat?id=c1", owner: "user-1", auth: true, status: http.StatusOK},
		{name: "missing id", target: "/api/chat", owner: "user-1", auth: true, status: http.StatusNotFound},
		{name: "unknown id", target: "/api/chat?id=ghost", owner: "user-1", auth: true, status: http.StatusNotFound},
		{name: "non-owner", target: "/api/chat?id=c1", owner: "someone-else", auth: true, status: http.StatusUnauthorized},
		{name: "no auth", target: "/api/chat?id=c1", owner: "user-1", auth: false, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newServerEnv(t)
			env.chats.chats["c1"] = conversation.Chat{ID: "c1", UserID: tt.owner}

			r := httptest.NewRequest(http.MethodDelete, tt.target, nil)
			if tt.auth {
				r.Header.Set("Authorization", "Bearer test")
			}
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, []string{"c1"}, env.chats.deleted)
			} else {
				assert.Empty(t, env.chats.deleted)
			}
		})
	}
}

func TestModelsEndpoint(t *testing.T) {
	env := newServerEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var models []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &models))
	assert.NotEmpty(t, models)
}

func TestHealthEndpoints(t *testing.T) {
	env := newServerEnv(t)

	t.Run("health", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("ready without pool", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
