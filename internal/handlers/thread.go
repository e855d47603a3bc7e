package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chathive-service/internal/models"
	"chathive-service/internal/repositories"
	"chathive-service/internal/ws"
)

// ThreadHandler manages thread endpoints: inbox, direct-thread resolution
// and group creation.
type ThreadHandler struct {
	threadRepo  repositories.ThreadRepository
	messageRepo repositories.MessageRepository
	receiptRepo repositories.ReceiptRepository
	router      *ws.Router
}

// NewThreadHandler builds a ThreadHandler.
func NewThreadHandler(threadRepo repositories.ThreadRepository, messageRepo repositories.MessageRepository, receiptRepo repositories.ReceiptRepository, router *ws.Router) *ThreadHandler {
	return &ThreadHandler{
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		receiptRepo: receiptRepo,
		router:      router,
	}
}

// ListThreads returns the caller's inbox ordered by last activity.
func (h *ThreadHandler) ListThreads(c *gin.Context) {
	userID := userIDFromContext(c)
	archived := c.Query("archived")
	includeArchived := archived == "1" || archived == "true"

	summaries, err := h.threadRepo.ListThreads(c.Request.Context(), userID, includeArchived)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load threads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"threads": summaries})
}

// GetThread returns a single thread the caller is a member of.
func (h *ThreadHandler) GetThread(c *gin.Context) {
	threadID, ok := uuidParam(c, "thread_id")
	if !ok {
		return
	}

	userID := userIDFromContext(c)
	member, err := h.threadRepo.IsActiveMember(c.Request.Context(), threadID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a thread member"})
		return
	}

	thread, err := h.threadRepo.GetThread(c.Request.Context(), threadID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrThreadNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "thread not found"})
		return
	}

	c.JSON(http.StatusOK, thread)
}

// CreateGroup creates a GROUP thread with the caller as owner.
func (h *ThreadHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Title     string   `json:"title" binding:"required"`
		MemberIDs []string `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	thread, err := h.threadRepo.CreateGroupThread(c.Request.Context(), userID, req.Title, req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create thread"})
		return
	}

	c.JSON(http.StatusCreated, thread)
}

// ResolveDirect returns the existing DIRECT thread between the caller and
// another user, if any.
func (h *ThreadHandler) ResolveDirect(c *gin.Context) {
	targetID := c.Query("user_id")
	if targetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	userID := userIDFromContext(c)
	thread, err := h.threadRepo.FindDirectThread(c.Request.Context(), userID, targetID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrThreadNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "no direct thread"})
		return
	}

	c.JSON(http.StatusOK, thread)
}

// StartDirect finds or creates the DIRECT thread with another user and sends
// the first message in one call. Concurrent calls for the same pair converge
// on one thread; a repeated client_id converges on one message.
func (h *ThreadHandler) StartDirect(c *gin.Context) {
	var req struct {
		UserID   string `json:"user_id" binding:"required"`
		Text     string `json:"text" binding:"required"`
		ClientID string `json:"client_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	thread, err := h.threadRepo.CreateDirectThread(c.Request.Context(), userID, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfThread) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create thread"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), thread.ID, userID, req.Text, req.ClientID)
	if err != nil {
		if errors.Is(err, repositories.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text must not be empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.router.Publish(c.Request.Context(), thread.ID, models.ServerFrame{
		Type:    models.FrameMessageCreated,
		Payload: models.MessagePayload{Message: msg},
	})

	c.JSON(http.StatusCreated, gin.H{"thread": thread, "message": msg})
}

// MarkRead advances the caller's read pointer in a thread and upgrades the
// boundary message's receipt to READ.
func (h *ThreadHandler) MarkRead(c *gin.Context) {
	threadID, ok := uuidParam(c, "thread_id")
	if !ok {
		return
	}

	var req struct {
		MessageID string `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	msg, err := h.messageRepo.GetMessage(c.Request.Context(), req.MessageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.ThreadID != threadID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to thread"})
		return
	}

	if err := h.threadRepo.MarkRead(c.Request.Context(), threadID, userID, req.MessageID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotMember) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": "could not mark read"})
		return
	}

	if err := h.receiptRepo.MarkRead(c.Request.Context(), req.MessageID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record receipt"})
		return
	}

	c.Status(http.StatusNoContent)
}
