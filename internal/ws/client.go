package ws

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chathive-service/internal/models"
	"chathive-service/internal/observability"
	"chathive-service/internal/repositories"
)

// Client is one authenticated websocket session. Inbound frames are handled
// one at a time in arrival order by the read loop; outbound writes are
// serialized by writeMu so session replies and hub broadcasts never
// interleave a frame.
type Client struct {
	conn     *websocket.Conn
	hub      *Hub
	router   *Router
	threads  repositories.ThreadRepository
	messages repositories.MessageRepository
	userID   string
	info     ConnInfo

	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn, hub *Hub, router *Router, threads repositories.ThreadRepository, messages repositories.MessageRepository, userID string, info ConnInfo) *Client {
	return &Client{
		conn:     conn,
		hub:      hub,
		router:   router,
		threads:  threads,
		messages: messages,
		userID:   userID,
		info:     info,
	}
}

// readLoop processes inbound frames until the transport drops. The deferred
// cleanup runs on every exit path, clean or abrupt, so a dead connection
// never lingers as a live group member.
func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		c.hub.LeaveAll(c)
		observability.DecWSActive()
		observability.IncWSEvent("disconnect")
		c.conn.Close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("read_error")
			}
			return
		}
		c.handleFrame(ctx, raw)
	}
}

// handleFrame dispatches one inbound frame by its type tag. Malformed input
// produces an error reply to this sender only; the connection stays open.
func (c *Client) handleFrame(ctx context.Context, raw []byte) {
	var frame models.ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError(models.CodeBadRequest, "malformed frame")
		return
	}

	switch frame.Type {
	case models.FrameThreadJoin:
		c.handleJoin(ctx, frame.Payload)
	case models.FrameThreadLeave:
		c.handleLeave(frame.Payload)
	case models.FrameMessageSend:
		c.handleSend(ctx, frame.Payload)
	case models.FrameTypingStart:
		c.handleTyping(ctx, frame.Payload, "start")
	case models.FrameTypingStop:
		c.handleTyping(ctx, frame.Payload, "stop")
	default:
		c.sendError(models.CodeBadRequest, "unknown type: "+frame.Type)
	}
}

func (c *Client) handleJoin(ctx context.Context, payload json.RawMessage) {
	threadID, ok := c.threadIDFrom(payload)
	if !ok {
		return
	}

	if !c.isMember(ctx, threadID) {
		c.sendError(models.CodeForbidden, "not a thread member")
		return
	}

	c.hub.Join(threadID, c)
	observability.IncWSEvent("thread_join")
	c.send(models.ServerFrame{Type: models.FrameThreadJoined, Payload: models.ThreadPayload{ThreadID: threadID}})
}

func (c *Client) handleLeave(payload json.RawMessage) {
	threadID, ok := c.threadIDFrom(payload)
	if !ok {
		return
	}

	c.hub.Leave(threadID, c)
	observability.IncWSEvent("thread_leave")
	c.send(models.ServerFrame{Type: models.FrameThreadLeft, Payload: models.ThreadPayload{ThreadID: threadID}})
}

func (c *Client) handleSend(ctx context.Context, payload json.RawMessage) {
	var req models.SendPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError(models.CodeBadRequest, "malformed payload")
		return
	}
	if !c.validThreadID(req.ThreadID) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.sendError(models.CodeBadRequest, "text must not be empty")
		return
	}

	if !c.isMember(ctx, req.ThreadID) {
		c.sendError(models.CodeForbidden, "not a thread member")
		return
	}

	msg, err := c.messages.CreateMessage(ctx, req.ThreadID, c.userID, req.Text, req.ClientID)
	if err != nil {
		log.Printf("create message failed thread=%s conn=%s: %v", req.ThreadID, c.info.ConnID, err)
		c.sendError(models.CodeServerError, "failed to store message")
		return
	}
	observability.IncWSEvent("message_send")

	// Ack to the sender first so it can reconcile its optimistic echo.
	c.send(models.ServerFrame{Type: models.FrameMessageAck, Payload: models.AckPayload{
		ClientID: req.ClientID,
		ID:       msg.ID,
		ThreadID: msg.ThreadID,
	}})

	// Broadcast strictly after persistence.
	c.router.Publish(ctx, msg.ThreadID, models.ServerFrame{
		Type:    models.FrameMessageCreated,
		Payload: models.MessagePayload{Message: msg},
	})
}

func (c *Client) handleTyping(ctx context.Context, payload json.RawMessage, status string) {
	threadID, ok := c.threadIDFrom(payload)
	if !ok {
		return
	}

	if !c.isMember(ctx, threadID) {
		c.sendError(models.CodeForbidden, "not a thread member")
		return
	}

	// Ephemeral: no persistence, no ack.
	observability.IncWSEvent("typing")
	c.router.Publish(ctx, threadID, models.ServerFrame{Type: models.FrameTyping, Payload: models.TypingPayload{
		ThreadID: threadID,
		UserID:   c.userID,
		Status:   status,
	}})
}

// isMember fails closed: a lookup error counts as "not a member".
func (c *Client) isMember(ctx context.Context, threadID string) bool {
	member, err := c.threads.IsActiveMember(ctx, threadID, c.userID)
	if err != nil {
		log.Printf("membership check failed thread=%s conn=%s: %v", threadID, c.info.ConnID, err)
		return false
	}
	return member
}

func (c *Client) threadIDFrom(payload json.RawMessage) (string, bool) {
	var req models.JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError(models.CodeBadRequest, "malformed payload")
		return "", false
	}
	if !c.validThreadID(req.ThreadID) {
		return "", false
	}
	return req.ThreadID, true
}

func (c *Client) validThreadID(threadID string) bool {
	if threadID == "" {
		c.sendError(models.CodeBadRequest, "thread_id is required")
		return false
	}
	if _, err := uuid.Parse(threadID); err != nil {
		c.sendError(models.CodeBadRequest, "thread_id is not a valid id")
		return false
	}
	return true
}

func (c *Client) send(frame models.ServerFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("marshal frame failed conn=%s: %v", c.info.ConnID, err)
		return
	}
	if err := c.writeRaw(payload); err != nil {
		log.Printf("websocket write error conn=%s: %v", c.info.ConnID, err)
	}
}

func (c *Client) sendError(code, detail string) {
	c.send(models.ServerFrame{Type: models.FrameError, Payload: models.ErrorPayload{Code: code, Detail: detail}})
}

func (c *Client) writeRaw(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
