package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chathive-service/internal/models"
	"chathive-service/internal/repositories"
	"chathive-service/internal/telemetry"
	"chathive-service/internal/ws"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// MessageHandler manages message history, creation, edit/delete and
// reactions within a thread.
type MessageHandler struct {
	threadRepo   repositories.ThreadRepository
	messageRepo  repositories.MessageRepository
	reactionRepo repositories.ReactionRepository
	receiptRepo  repositories.ReceiptRepository
	router       *ws.Router
	audit        *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(threadRepo repositories.ThreadRepository, messageRepo repositories.MessageRepository, reactionRepo repositories.ReactionRepository, receiptRepo repositories.ReceiptRepository, router *ws.Router, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		threadRepo:   threadRepo,
		messageRepo:  messageRepo,
		reactionRepo: reactionRepo,
		receiptRepo:  receiptRepo,
		router:       router,
		audit:        audit,
	}
}

// ListMessages returns non-deleted thread history in creation order,
// optionally bounded by before/after timestamps.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	threadID, ok := uuidParam(c, "thread_id")
	if !ok {
		return
	}
	if !h.requireMember(c, threadID) {
		return
	}

	before, ok := timeQuery(c, "before")
	if !ok {
		return
	}
	after, ok := timeQuery(c, "after")
	if !ok {
		return
	}

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		limit = parsed
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), threadID, before, after, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message and broadcasts it to the thread's realtime
// subscribers. Same pipeline as the websocket send path.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	threadID, ok := uuidParam(c, "thread_id")
	if !ok {
		return
	}
	if !h.requireMember(c, threadID) {
		return
	}

	var req struct {
		Text     string `json:"text" binding:"required"`
		ClientID string `json:"client_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), threadID, userID, req.Text, req.ClientID)
	if err != nil {
		if errors.Is(err, repositories.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text must not be empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.router.Publish(c.Request.Context(), threadID, models.ServerFrame{
		Type:    models.FrameMessageCreated,
		Payload: models.MessagePayload{Message: msg},
	})

	c.JSON(http.StatusCreated, msg)
}

// EditMessage replaces a message's text. Sender-only; writes one audit row
// and broadcasts message.updated.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	threadID, msg, ok := h.messageInThread(c)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	updated, err := h.messageRepo.EditMessage(c.Request.Context(), msg.ID, userID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotSender):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can edit"})
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, repositories.ErrEmptyText):
			c.JSON(http.StatusBadRequest, gin.H{"error": "text must not be empty"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not edit message"})
		}
		return
	}

	// An unchanged text is a no-op in storage; nothing to announce.
	if updated.Text != msg.Text {
		h.audit.Emit(c.Request.Context(), models.AuditEventEdit, updated.ID, threadID, requestIDFromContext(c), &userID)
		h.router.Publish(c.Request.Context(), threadID, models.ServerFrame{
			Type:    models.FrameMessageUpdated,
			Payload: models.MessagePayload{Message: updated},
		})
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteMessage soft-deletes a message. Sender-only; writes one audit row,
// recomputes the thread's last-message pointer and broadcasts
// message.deleted.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	threadID, msg, ok := h.messageInThread(c)
	if !ok {
		return
	}

	userID := userIDFromContext(c)
	deleted, err := h.messageRepo.SoftDeleteMessage(c.Request.Context(), msg.ID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotSender):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete"})
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		}
		return
	}

	// A repeated delete is a no-op in storage; nothing to announce.
	if msg.DeletedAt == nil {
		h.audit.Emit(c.Request.Context(), models.AuditEventDelete, deleted.ID, threadID, requestIDFromContext(c), &userID)
		h.router.Publish(c.Request.Context(), threadID, models.ServerFrame{
			Type: models.FrameMessageDeleted,
			Payload: models.DeletedPayload{
				ID:        deleted.ID,
				ThreadID:  threadID,
				DeletedAt: deleted.DeletedAt,
			},
		})
	}

	c.Status(http.StatusNoContent)
}

// AddReaction records an emoji reaction on a message.
func (h *MessageHandler) AddReaction(c *gin.Context) {
	_, msg, ok := h.messageInThread(c)
	if !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reaction, err := h.reactionRepo.AddReaction(c.Request.Context(), msg.ID, userIDFromContext(c), req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add reaction"})
		return
	}

	c.JSON(http.StatusCreated, reaction)
}

// RemoveReaction deletes the caller's reaction from a message.
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	_, msg, ok := h.messageInThread(c)
	if !ok {
		return
	}

	emoji := c.Param("emoji")
	err := h.reactionRepo.RemoveReaction(c.Request.Context(), msg.ID, userIDFromContext(c), emoji)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrReactionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not remove reaction"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListReactions returns all reactions on a message.
func (h *MessageHandler) ListReactions(c *gin.Context) {
	_, msg, ok := h.messageInThread(c)
	if !ok {
		return
	}

	reactions, err := h.reactionRepo.ListReactions(c.Request.Context(), msg.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load reactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reactions": reactions})
}

// MarkDelivered records a delivery receipt for the caller. Idempotent; a
// receipt that already reached READ keeps its status.
func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	_, msg, ok := h.messageInThread(c)
	if !ok {
		return
	}

	if err := h.receiptRepo.MarkDelivered(c.Request.Context(), msg.ID, userIDFromContext(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record receipt"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListReceipts returns delivery/read receipts for a message.
func (h *MessageHandler) ListReceipts(c *gin.Context) {
	_, msg, ok := h.messageInThread(c)
	if !ok {
		return
	}

	receipts, err := h.receiptRepo.ListReceipts(c.Request.Context(), msg.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load receipts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}

// messageInThread resolves the thread and message path params, checks
// membership and that the message belongs to the thread.
func (h *MessageHandler) messageInThread(c *gin.Context) (string, models.Message, bool) {
	threadID, ok := uuidParam(c, "thread_id")
	if !ok {
		return "", models.Message{}, false
	}
	messageID, ok := uuidParam(c, "message_id")
	if !ok {
		return "", models.Message{}, false
	}
	if !h.requireMember(c, threadID) {
		return "", models.Message{}, false
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return "", models.Message{}, false
	}
	if msg.ThreadID != threadID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to thread"})
		return "", models.Message{}, false
	}
	return threadID, msg, true
}

// requireMember fails closed: lookup errors reject like non-membership.
func (h *MessageHandler) requireMember(c *gin.Context, threadID string) bool {
	member, err := h.threadRepo.IsActiveMember(c.Request.Context(), threadID, userIDFromContext(c))
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a thread member"})
		return false
	}
	return true
}

func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	return &parsed, true
}
