package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"patrolchat/config"
	"patrolchat/pkg/api"
	"patrolchat/pkg/errors"
)

type stubChatService struct {
	sendMessage    func(ctx context.Context, senderId string, input api.SendMessageInput) (api.SendMessageResult, error)
	getOne         func(ctx context.Context, userId, conversationId string) (api.ConversationView, error)
	list           func(ctx context.Context, userId string) ([]api.ConversationSummary, error)
	markRead       func(ctx context.Context, userId, conversationId string) error
	updateUserConv func(ctx context.Context, patchJson []byte, userId, conversationId string) error
}

func (s *stubChatService) SendMessage(ctx context.Context, senderId string, input api.SendMessageInput) (api.SendMessageResult, error) {
	return s.sendMessage(ctx, senderId, input)
}

func (s *stubChatService) GetConversation(ctx context.Context, userId, conversationId string) (api.ConversationView, error) {
	return s.getOne(ctx, userId, conversationId)
}

func (s *stubChatService) ListConversations(ctx context.Context, userId string) ([]api.ConversationSummary, error) {
	return s.list(ctx, userId)
}

func (s *stubChatService) MarkRead(ctx context.Context, userId, conversationId string) error {
	return s.markRead(ctx, userId, conversationId)
}

func (s *stubChatService) UpdateUserConversation(ctx context.Context, patchJson []byte, userId, conversationId string) error {
	return s.updateUserConv(ctx, patchJson, userId, conversationId)
}

type stubUserService struct {
	search func(ctx context.Context, query string) ([]*api.UserModel, error)
}

func (s *stubUserService) GetUserByIds(context.Context, []string) ([]*api.UserModel, error) {
	return nil, nil
}

func (s *stubUserService) GetUsersByUsernameContaining(ctx context.Context, query string) ([]*api.UserModel, error) {
	return s.search(ctx, query)
}

// stubVerifier accepts exactly one token and maps it to a fixed uid.
type stubVerifier struct{ uid string }

func (v stubVerifier) Verify(_ context.Context, token string) (string, error) {
	if token != "valid-token" {
		return "", errors.Unauthorized("token not valid")
	}
	return v.uid, nil
}

func newTestServer(chatService api.ChatService, userService api.UserService) *Server {
	cfg := &config.Config{
		ServerAddr:      ":0",
		RateLimitPerMin: 1000,
		ShutdownTimeout: time.Second,
	}
	return NewServer(
		chi.NewRouter(),
		userService,
		chatService,
		api.NewHub(zap.NewNop()),
		nil,
		stubVerifier{uid: "alice"},
		cfg,
		zap.NewNop(),
	)
}

func doRequest(t *testing.T, server *Server, method, target, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if authenticated {
		req.Header.Set("Authorization", "BEARER valid-token")
	}
	recorder := httptest.NewRecorder()
	server.Routes().ServeHTTP(recorder, req)
	return recorder
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	server := newTestServer(&stubChatService{}, &stubUserService{})

	recorder := doRequest(t, server, http.MethodGet, "/chat/conversation", "", false)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestHealthNeedsNoToken(t *testing.T) {
	server := newTestServer(&stubChatService{}, &stubUserService{})

	recorder := doRequest(t, server, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func TestSendMessageByReceiver(t *testing.T) {
	chat := &stubChatService{
		sendMessage: func(_ context.Context, senderId string, input api.SendMessageInput) (api.SendMessageResult, error) {
			assert.Equal(t, "alice", senderId)
			counterpartId, ok := input.Target.Counterpart()
			require.True(t, ok)
			assert.Equal(t, "bob", counterpartId)
			assert.Equal(t, "hello", input.Body)
			return api.SendMessageResult{ChatId: "alice_bob", IsNewChat: true}, nil
		},
	}
	server := newTestServer(chat, &stubUserService{})

	recorder := doRequest(t, server, http.MethodPost, "/chat/message",
		`{"receiverId":"bob","message":"hello"}`, true)
	require.Equal(t, http.StatusCreated, recorder.Code)

	var result api.SendMessageResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, "alice_bob", result.ChatId)
	assert.True(t, result.IsNewChat)
}

func TestSendMessageByConversationId(t *testing.T) {
	chat := &stubChatService{
		sendMessage: func(_ context.Context, _ string, input api.SendMessageInput) (api.SendMessageResult, error) {
			conversationId, ok := input.Target.Conversation()
			require.True(t, ok)
			assert.Equal(t, "alice_bob", conversationId)
			return api.SendMessageResult{ChatId: conversationId}, nil
		},
	}
	server := newTestServer(chat, &stubUserService{})

	recorder := doRequest(t, server, http.MethodPost, "/chat/message",
		`{"chatId":"alice_bob","message":"hi"}`, true)
	assert.Equal(t, http.StatusCreated, recorder.Code)
}

func TestSendMessageRejectsUnknownFields(t *testing.T) {
	server := newTestServer(&stubChatService{}, &stubUserService{})

	recorder := doRequest(t, server, http.MethodPost, "/chat/message",
		`{"receiverId":"bob","message":"hi","surprise":true}`, true)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid argument", errors.ErrEmptyMessage, http.StatusBadRequest},
		{"not found", errors.ErrConversationNotFound, http.StatusNotFound},
		{"forbidden", errors.ErrNotParticipant, http.StatusForbidden},
		{"conflict", errors.AlreadyExists("conversation already exists"), http.StatusConflict},
		{"internal", errors.Internal("storage unavailable"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chat := &stubChatService{
				sendMessage: func(context.Context, string, api.SendMessageInput) (api.SendMessageResult, error) {
					return api.SendMessageResult{}, tc.err
				},
			}
			server := newTestServer(chat, &stubUserService{})

			recorder := doRequest(t, server, http.MethodPost, "/chat/message",
				`{"receiverId":"bob","message":"hi"}`, true)
			assert.Equal(t, tc.wantStatus, recorder.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			assert.NotEmpty(t, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetConversation(t *testing.T) {
	chat := &stubChatService{
		getOne: func(_ context.Context, userId, conversationId string) (api.ConversationView, error) {
			assert.Equal(t, "alice", userId)
			assert.Equal(t, "alice_bob", conversationId)
			return api.ConversationView{ChatId: conversationId, LastReadIndex: -1, Messages: []api.Message{}}, nil
		},
	}
	server := newTestServer(chat, &stubUserService{})

	recorder := doRequest(t, server, http.MethodGet, "/chat/conversation/alice_bob", "", true)
	require.Equal(t, http.StatusOK, recorder.Code)

	var view api.ConversationView
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &view))
	assert.Equal(t, "alice_bob", view.ChatId)
	assert.Equal(t, -1, view.LastReadIndex)
}

func TestGetConversations(t *testing.T) {
	chat := &stubChatService{
		list: func(_ context.Context, userId string) ([]api.ConversationSummary, error) {
			assert.Equal(t, "alice", userId)
			return []api.ConversationSummary{
				{ChatId: "alice_carol", UnreadCount: 2},
				{ChatId: "alice_bob", UnreadCount: 0},
			}, nil
		},
	}
	server := newTestServer(chat, &stubUserService{})

	recorder := doRequest(t, server, http.MethodGet, "/chat/conversation", "", true)
	require.Equal(t, http.StatusOK, recorder.Code)

	var summaries []api.ConversationSummary
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "alice_carol", summaries[0].ChatId)
	assert.Equal(t, 2, summaries[0].UnreadCount)
}

func TestMarkConversationAsRead(t *testing.T) {
	var called bool
	chat := &stubChatService{
		markRead: func(_ context.Context, userId, conversationId string) error {
			called = true
			assert.Equal(t, "alice", userId)
			assert.Equal(t, "alice_bob", conversationId)
			return nil
		},
	}
	server := newTestServer(chat, &stubUserService{})

	recorder := doRequest(t, server, http.MethodPost, "/chat/conversation/alice_bob/read", "", true)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, called)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func TestUpdateUserConversation(t *testing.T) {
	patch := `[{"op":"replace","path":"/muted","value":true}]`
	chat := &stubChatService{
		updateUserConv: func(_ context.Context, patchJson []byte, userId, conversationId string) error {
			assert.Equal(t, patch, string(patchJson))
			assert.Equal(t, "alice", userId)
			assert.Equal(t, "alice_bob", conversationId)
			return nil
		},
	}
	server := newTestServer(chat, &stubUserService{})

	recorder := doRequest(t, server, http.MethodPatch, "/chat/user/conversation/alice_bob", patch, true)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Empty(t, recorder.Body.String())
}

func TestGetContacts(t *testing.T) {
	name := "Robert Oduya"
	users := &stubUserService{
		search: func(_ context.Context, query string) ([]*api.UserModel, error) {
			assert.Equal(t, "rob", query)
			return []*api.UserModel{{UID: "bob", Username: "rob.oduya", FullName: &name, Status: "active"}}, nil
		},
	}
	server := newTestServer(&stubChatService{}, users)

	recorder := doRequest(t, server, http.MethodGet, "/chat/contacts/rob", "", true)
	require.Equal(t, http.StatusOK, recorder.Code)

	var contacts []api.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, "bob", contacts[0].Id)
	require.NotNil(t, contacts[0].Name)
	assert.Equal(t, name, *contacts[0].Name)
}

func TestServeWsRequiresUid(t *testing.T) {
	server := newTestServer(&stubChatService{}, &stubUserService{})

	recorder := doRequest(t, server, http.MethodGet, "/chat/ws", "", false)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
