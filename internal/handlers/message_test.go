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

	"chathive-service/internal/mocks"
	"chathive-service/internal/models"
	"chathive-service/internal/repositories"
	"chathive-service/internal/telemetry"
	"chathive-service/internal/ws"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", testUserID)
		c.Next()
	})
	r.GET("/threads/:thread_id/messages", handler.ListMessages)
	r.POST("/threads/:thread_id/messages", handler.PostMessage)
	r.PATCH("/threads/:thread_id/messages/:message_id", handler.EditMessage)
	r.DELETE("/threads/:thread_id/messages/:message_id", handler.DeleteMessage)
	r.POST("/threads/:thread_id/messages/:message_id/reactions", handler.AddReaction)
	r.DELETE("/threads/:thread_id/messages/:message_id/reactions/:emoji", handler.RemoveReaction)
	r.POST("/threads/:thread_id/messages/:message_id/delivered", handler.MarkDelivered)
	return r
}

func newMessageHandler(threadRepo *mocks.ThreadRepositoryMock, messageRepo *mocks.MessageRepositoryMock, reactionRepo *mocks.ReactionRepositoryMock) *MessageHandler {
	return NewMessageHandler(threadRepo, messageRepo, reactionRepo, new(mocks.ReceiptRepositoryMock), ws.NewRouter(ws.NewHub(), nil), nil)
}

func TestListMessagesSuccess(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, testThreadID, (*time.Time)(nil), (*time.Time)(nil), 50).
		Return([]models.Message{{ID: testMessageID, ThreadID: testThreadID, Text: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/threads/"+testThreadID+"/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["messages"], 1)
	threadRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestListMessagesForbiddenForNonMember(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	handler := newMessageHandler(threadRepo, new(mocks.MessageRepositoryMock), nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/threads/"+testThreadID+"/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	threadRepo.AssertExpectations(t)
}

func TestListMessagesInvalidLimit(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	handler := newMessageHandler(threadRepo, new(mocks.MessageRepositoryMock), nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/threads/"+testThreadID+"/messages?limit=zero", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMessagesClampsLimit(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, testThreadID, (*time.Time)(nil), (*time.Time)(nil), 200).
		Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/threads/"+testThreadID+"/messages?limit=9999", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestListMessagesInvalidThreadID(t *testing.T) {
	handler := newMessageHandler(new(mocks.ThreadRepositoryMock), new(mocks.MessageRepositoryMock), nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/threads/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageSuccess(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, testThreadID, testUserID, "hello", "c-1").
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, Text: "hello"}, nil).Once()

	body := bytes.NewBufferString(`{"text":"hello","client_id":"c-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/threads/"+testThreadID+"/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	threadRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageEmptyText(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, testThreadID, testUserID, "   ", "").
		Return(models.Message{}, repositories.ErrEmptyText).Once()

	body := bytes.NewBufferString(`{"text":"   "}`)
	req := httptest.NewRequest(http.MethodPost, "/threads/"+testThreadID+"/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageSuccess(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, Text: "old"}, nil).Once()
	messageRepo.On("EditMessage", mock.Anything, testMessageID, testUserID, "new").
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, Text: "new"}, nil).Once()

	body := bytes.NewBufferString(`{"text":"new"}`)
	req := httptest.NewRequest(http.MethodPatch, "/threads/"+testThreadID+"/messages/"+testMessageID, body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "new", resp.Text)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageUnchangedTextEmitsNothing(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "chat.message.audit", "chathive-service", "test")
	handler := NewMessageHandler(threadRepo, messageRepo, nil, nil, ws.NewRouter(ws.NewHub(), nil), audit)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, Text: "same"}, nil).Once()
	messageRepo.On("EditMessage", mock.Anything, testMessageID, testUserID, "same").
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, Text: "same"}, nil).Once()

	body := bytes.NewBufferString(`{"text":"same"}`)
	req := httptest.NewRequest(http.MethodPatch, "/threads/"+testThreadID+"/messages/"+testMessageID, body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageChangedTextEmitsAudit(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "chat.message.audit", "chathive-service", "test")
	handler := NewMessageHandler(threadRepo, messageRepo, nil, nil, ws.NewRouter(ws.NewHub(), nil), audit)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, Text: "old"}, nil).Once()
	messageRepo.On("EditMessage", mock.Anything, testMessageID, testUserID, "new").
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, Text: "new"}, nil).Once()
	publisher.On("Publish", mock.Anything, "chat.message.audit", mock.Anything).Return(nil).Once()

	body := bytes.NewBufferString(`{"text":"new"}`)
	req := httptest.NewRequest(http.MethodPatch, "/threads/"+testThreadID+"/messages/"+testMessageID, body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageNotSender(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID}, nil).Once()
	messageRepo.On("EditMessage", mock.Anything, testMessageID, testUserID, "new").
		Return(models.Message{}, repositories.ErrNotSender).Once()

	body := bytes.NewBufferString(`{"text":"new"}`)
	req := httptest.NewRequest(http.MethodPatch, "/threads/"+testThreadID+"/messages/"+testMessageID, body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageWrongThread(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: "d4e5f6a7-0000-4000-8000-000000000030"}, nil).Once()

	body := bytes.NewBufferString(`{"text":"new"}`)
	req := httptest.NewRequest(http.MethodPatch, "/threads/"+testThreadID+"/messages/"+testMessageID, body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestDeleteMessageSuccess(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	now := time.Now().UTC()
	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, Text: "bye"}, nil).Once()
	messageRepo.On("SoftDeleteMessage", mock.Anything, testMessageID, testUserID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, Text: "", DeletedAt: &now}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/threads/"+testThreadID+"/messages/"+testMessageID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestDeleteMessageRepeatEmitsNothing(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "chat.message.audit", "chathive-service", "test")
	handler := NewMessageHandler(threadRepo, messageRepo, nil, nil, ws.NewRouter(ws.NewHub(), nil), audit)
	router := setupMessageRouter(handler)

	already := time.Now().UTC().Add(-time.Minute)
	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, DeletedAt: &already}, nil).Once()
	messageRepo.On("SoftDeleteMessage", mock.Anything, testMessageID, testUserID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID, DeletedAt: &already}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/threads/"+testThreadID+"/messages/"+testMessageID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	messageRepo.AssertExpectations(t)
}

func TestDeleteMessageNotFound(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/threads/"+testThreadID+"/messages/"+testMessageID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestAddReactionSuccess(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, reactionRepo)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID}, nil).Once()
	reactionRepo.On("AddReaction", mock.Anything, testMessageID, testUserID, "👍").
		Return(models.Reaction{ID: 1, MessageID: testMessageID, UserID: testUserID, Emoji: "👍"}, nil).Once()

	body := bytes.NewBufferString(`{"emoji":"👍"}`)
	req := httptest.NewRequest(http.MethodPost, "/threads/"+testThreadID+"/messages/"+testMessageID+"/reactions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	reactionRepo.AssertExpectations(t)
}

func TestMarkDeliveredSuccess(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	receiptRepo := new(mocks.ReceiptRepositoryMock)
	handler := NewMessageHandler(threadRepo, messageRepo, nil, receiptRepo, ws.NewRouter(ws.NewHub(), nil), nil)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID}, nil).Once()
	receiptRepo.On("MarkDelivered", mock.Anything, testMessageID, testUserID).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/threads/"+testThreadID+"/messages/"+testMessageID+"/delivered", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	receiptRepo.AssertExpectations(t)
}

func TestRemoveReactionNotFound(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	handler := newMessageHandler(threadRepo, messageRepo, reactionRepo)
	router := setupMessageRouter(handler)

	threadRepo.On("IsActiveMember", mock.Anything, testThreadID, testUserID).Return(true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, testMessageID).
		Return(models.Message{ID: testMessageID, ThreadID: testThreadID}, nil).Once()
	reactionRepo.On("RemoveReaction", mock.Anything, testMessageID, testUserID, "x").
		Return(repositories.ErrReactionNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/threads/"+testThreadID+"/messages/"+testMessageID+"/reactions/x", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	reactionRepo.AssertExpectations(t)
}
