package models

import (
	"encoding/json"
	"time"
)

// Client -> server frame types.
const (
	FrameThreadJoin  = "thread.join"
	FrameThreadLeave = "thread.leave"
	FrameMessageSend = "message.send"
	FrameTypingStart = "typing.start"
	FrameTypingStop  = "typing.stop"
)

// Server -> client frame types.
const (
	FrameReady          = "ready"
	FrameThreadJoined   = "thread.joined"
	FrameThreadLeft     = "thread.left"
	FrameError          = "error"
	FrameMessageAck     = "message.ack"
	FrameMessageCreated = "message.created"
	FrameMessageUpdated = "message.updated"
	FrameMessageDeleted = "message.deleted"
	FrameTyping         = "typing"
)

// Error codes carried in error frames.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeForbidden   = "FORBIDDEN"
	CodeServerError = "SERVER_ERROR"
)

// ClientFrame is an inbound websocket frame. Payload stays raw until the
// type tag selects a handler.
type ClientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerFrame is an outbound websocket frame.
type ServerFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// JoinPayload carries thread.join / thread.leave / typing.* requests.
type JoinPayload struct {
	ThreadID string `json:"thread_id"`
}

// SendPayload carries message.send requests. ClientID is the optional
// idempotency key for retried sends.
type SendPayload struct {
	ThreadID string `json:"thread_id"`
	Text     string `json:"text"`
	ClientID string `json:"client_id,omitempty"`
}

// ReadyPayload acknowledges a successful handshake.
type ReadyPayload struct {
	UserID string `json:"user_id"`
}

// ThreadPayload confirms joins and leaves.
type ThreadPayload struct {
	ThreadID string `json:"thread_id"`
}

// ErrorPayload reports a problem to the sender only.
type ErrorPayload struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// AckPayload correlates the client's idempotency key with the server-assigned
// message id so the client can reconcile an optimistic local echo.
type AckPayload struct {
	ClientID string `json:"client_id,omitempty"`
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}

// MessagePayload wraps a message for created/updated broadcasts.
type MessagePayload struct {
	Message Message `json:"message"`
}

// DeletedPayload announces a soft delete.
type DeletedPayload struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"thread_id"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// TypingPayload is the ephemeral typing notification. Never persisted.
type TypingPayload struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
}
