package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"moment-chat/internal/cache"
	"moment-chat/internal/mocks"
	"moment-chat/internal/models"
	"moment-chat/internal/protocol"
	"moment-chat/internal/registry"
	"moment-chat/internal/repositories"
	"moment-chat/internal/sealer"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/chat/history/:user_id/:target_id", handler.History)
	r.GET("/chat/recent-chats/:user_id", handler.RecentChats)
	r.POST("/chat/recent-chats", handler.UpsertRecentChat)
	r.POST("/chat/recent-chats/:user_id/clear-unread/:target_id", handler.ClearUnread)
	r.DELETE("/chat/message/:message_id", handler.DeleteMessage)
	r.GET("/chat/online/:user_id", handler.Online)
	return r
}

func newChatTestHandler(messages *mocks.DirectMessageRepositoryMock, recents *mocks.RecentChatRepositoryMock) *ChatHandler {
	reg := registry.New(nil, nil, 24*time.Hour, 5*time.Minute)
	return NewChatHandler(messages, recents, reg, cache.New(nil), nil)
}

func unsealHistoryEntry(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var env protocol.SealedEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	key, err := sealer.KeyFromUUID(env.PublickKey)
	require.NoError(t, err)
	plain, err := sealer.Decrypt(env.EncryptData, key)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(plain), &entry))
	return entry
}

func TestHistoryReturnsAscendingSealedPage(t *testing.T) {
	messages := new(mocks.DirectMessageRepositoryMock)
	recents := new(mocks.RecentChatRepositoryMock)
	handler := newChatTestHandler(messages, recents)
	router := setupChatRouter(handler)

	t2 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	// Store order is newest first.
	messages.On("History", mock.Anything, 1, 2, 100, (*time.Time)(nil)).Return([]models.DirectMessage{
		{ID: "m3", From: 2, To: 1, Text: "later", Time: t3},
		{ID: "m2", From: 1, To: 2, Text: "earlier", Time: t2},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat/history/1/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []json.RawMessage `json:"messages"`
		Count    int               `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Count)

	first := unsealHistoryEntry(t, resp.Messages[0])
	second := unsealHistoryEntry(t, resp.Messages[1])
	assert.Equal(t, "earlier", first["text"])
	assert.Equal(t, "later", second["text"])
	assert.EqualValues(t, 1, first["from_id"])
	assert.NotEmpty(t, first["created_at"])

	messages.AssertExpectations(t)
}

func TestHistoryLimitClamping(t *testing.T) {
	messages := new(mocks.DirectMessageRepositoryMock)
	handler := newChatTestHandler(messages, new(mocks.RecentChatRepositoryMock))
	router := setupChatRouter(handler)

	messages.On("History", mock.Anything, 1, 2, 1000, (*time.Time)(nil)).Return([]models.DirectMessage{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat/history/1/2?limit=5000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestHistoryBeforeTimeCursor(t *testing.T) {
	messages := new(mocks.DirectMessageRepositoryMock)
	handler := newChatTestHandler(messages, new(mocks.RecentChatRepositoryMock))
	router := setupChatRouter(handler)

	cursor := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	messages.On("History", mock.Anything, 1, 2, 100, &cursor).Return([]models.DirectMessage{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat/history/1/2?before_time=2024-03-01T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestHistoryInvalidBeforeTime(t *testing.T) {
	handler := newChatTestHandler(new(mocks.DirectMessageRepositoryMock), new(mocks.RecentChatRepositoryMock))
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/chat/history/1/2?before_time=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryInvalidUserID(t *testing.T) {
	handler := newChatTestHandler(new(mocks.DirectMessageRepositoryMock), new(mocks.RecentChatRepositoryMock))
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/chat/history/abc/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecentChatsSuccess(t *testing.T) {
	recents := new(mocks.RecentChatRepositoryMock)
	handler := newChatTestHandler(new(mocks.DirectMessageRepositoryMock), recents)
	router := setupChatRouter(handler)

	recents.On("List", mock.Anything, 1, 10).Return([]models.RecentChat{
		{UserID: 1, TargetID: "2", TargetUsername: "bob", UnreadCount: 3},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat/recent-chats/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		RecentChats []models.RecentChat `json:"recent_chats"`
		Count       int                 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "bob", resp.RecentChats[0].TargetUsername)

	recents.AssertExpectations(t)
}

func TestRecentChatsLimitClamping(t *testing.T) {
	recents := new(mocks.RecentChatRepositoryMock)
	handler := newChatTestHandler(new(mocks.DirectMessageRepositoryMock), recents)
	router := setupChatRouter(handler)

	recents.On("List", mock.Anything, 1, 50).Return([]models.RecentChat{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat/recent-chats/1?limit=500", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	recents.AssertExpectations(t)
}

func TestUpsertRecentChat(t *testing.T) {
	recents := new(mocks.RecentChatRepositoryMock)
	handler := newChatTestHandler(new(mocks.DirectMessageRepositoryMock), recents)
	router := setupChatRouter(handler)

	recents.On("Upsert", mock.Anything, mock.MatchedBy(func(rc models.RecentChat) bool {
		return rc.UserID == 1 && rc.TargetID == "2"
	})).Return(nil).Once()

	body := bytes.NewBufferString(`{"user_id":1,"target_id":"2","target_username":"bob","unread_count":0}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/recent-chats", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	recents.AssertExpectations(t)
}

func TestUpsertRecentChatMissingTarget(t *testing.T) {
	handler := newChatTestHandler(new(mocks.DirectMessageRepositoryMock), new(mocks.RecentChatRepositoryMock))
	router := setupChatRouter(handler)

	body := bytes.NewBufferString(`{"user_id":1}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/recent-chats", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearUnread(t *testing.T) {
	recents := new(mocks.RecentChatRepositoryMock)
	handler := newChatTestHandler(new(mocks.DirectMessageRepositoryMock), recents)
	router := setupChatRouter(handler)

	recents.On("ClearUnread", mock.Anything, 1, "group_1a2b3c4d").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/recent-chats/1/clear-unread/group_1a2b3c4d", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	recents.AssertExpectations(t)
}

func TestDeleteMessageNotFound(t *testing.T) {
	messages := new(mocks.DirectMessageRepositoryMock)
	handler := newChatTestHandler(messages, new(mocks.RecentChatRepositoryMock))
	router := setupChatRouter(handler)

	messages.On("SoftDelete", mock.Anything, "missing").Return(repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat/message/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messages.AssertExpectations(t)
}

func TestDeleteMessageSuccess(t *testing.T) {
	messages := new(mocks.DirectMessageRepositoryMock)
	handler := newChatTestHandler(messages, new(mocks.RecentChatRepositoryMock))
	router := setupChatRouter(handler)

	messages.On("SoftDelete", mock.Anything, "m1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat/message/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestOnlineWithoutMirror(t *testing.T) {
	handler := newChatTestHandler(new(mocks.DirectMessageRepositoryMock), new(mocks.RecentChatRepositoryMock))
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/chat/online/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["online"])
}
