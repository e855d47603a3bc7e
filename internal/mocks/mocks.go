package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chathive-service/internal/models"
	"chathive-service/internal/repositories"
)

type ThreadRepositoryMock struct {
	mock.Mock
}

func (m *ThreadRepositoryMock) CreateDirectThread(ctx context.Context, userID, targetID string) (models.Thread, error) {
	args := m.Called(ctx, userID, targetID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) CreateGroupThread(ctx context.Context, ownerID, title string, memberIDs []string) (models.Thread, error) {
	args := m.Called(ctx, ownerID, title, memberIDs)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) GetThread(ctx context.Context, threadID string) (models.Thread, error) {
	args := m.Called(ctx, threadID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) FindDirectThread(ctx context.Context, userID, targetID string) (models.Thread, error) {
	args := m.Called(ctx, userID, targetID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) ListThreads(ctx context.Context, userID string, includeArchived bool) ([]models.ThreadSummary, error) {
	args := m.Called(ctx, userID, includeArchived)
	var list []models.ThreadSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ThreadSummary)
	}
	return list, args.Error(1)
}

func (m *ThreadRepositoryMock) IsActiveMember(ctx context.Context, threadID, userID string) (bool, error) {
	args := m.Called(ctx, threadID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ThreadRepositoryMock) MarkRead(ctx context.Context, threadID, userID, messageID string) error {
	args := m.Called(ctx, threadID, userID, messageID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, threadID, senderID, text, clientID string) (models.Message, error) {
	args := m.Called(ctx, threadID, senderID, text, clientID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, threadID string, before, after *time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, threadID, before, after, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID, actorID, text string) (models.Message, error) {
	args := m.Called(ctx, messageID, actorID, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID, actorID string) (models.Message, error) {
	args := m.Called(ctx, messageID, actorID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) AddReaction(ctx context.Context, messageID, userID, emoji string) (models.Reaction, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	var reaction models.Reaction
	if val := args.Get(0); val != nil {
		reaction = val.(models.Reaction)
	}
	return reaction, args.Error(1)
}

func (m *ReactionRepositoryMock) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Error(0)
}

func (m *ReactionRepositoryMock) ListReactions(ctx context.Context, messageID string) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID)
	var reactions []models.Reaction
	if val := args.Get(0); val != nil {
		reactions = val.([]models.Reaction)
	}
	return reactions, args.Error(1)
}

type ReceiptRepositoryMock struct {
	mock.Mock
}

func (m *ReceiptRepositoryMock) MarkDelivered(ctx context.Context, messageID, userID string) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *ReceiptRepositoryMock) MarkRead(ctx context.Context, messageID, userID string) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *ReceiptRepositoryMock) ListReceipts(ctx context.Context, messageID string) ([]models.Receipt, error) {
	args := m.Called(ctx, messageID)
	var receipts []models.Receipt
	if val := args.Get(0); val != nil {
		receipts = val.([]models.Receipt)
	}
	return receipts, args.Error(1)
}

var _ repositories.ThreadRepository = (*ThreadRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ReactionRepository = (*ReactionRepositoryMock)(nil)
var _ repositories.ReceiptRepository = (*ReceiptRepositoryMock)(nil)
