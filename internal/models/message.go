package models

import "time"

// Message types.
const (
	MessageTypeText   = "TEXT"
	MessageTypeFile   = "FILE"
	MessageTypeSystem = "SYSTEM"
)

// Audit events.
const (
	AuditEventEdit   = "EDIT"
	AuditEventDelete = "DELETE"
)

// Receipt statuses. Status only ever moves DELIVERED -> READ.
const (
	ReceiptDelivered = "DELIVERED"
	ReceiptRead      = "READ"
)

// Message is a single message in a thread. A nil SenderID means the message
// was system-authored. Soft delete clears Text and sets DeletedAt; the row
// is retained for audit.
type Message struct {
	ID        string     `db:"id" json:"id"`
	ThreadID  string     `db:"thread_id" json:"thread_id"`
	SenderID  *string    `db:"sender_id" json:"sender_id"`
	Type      string     `db:"type" json:"type"`
	Text      string     `db:"text" json:"text"`
	ReplyToID *string    `db:"reply_to_id" json:"reply_to_id,omitempty"`
	ClientID  *string    `db:"client_id" json:"client_id,omitempty"`
	EditedAt  *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// MessageAudit is an append-only record of an EDIT or DELETE against a
// message. Never mutated after creation.
type MessageAudit struct {
	ID        int64     `db:"id" json:"id"`
	MessageID string    `db:"message_id" json:"message_id"`
	ActorID   *string   `db:"actor_id" json:"actor_id"`
	Event     string    `db:"event" json:"event"`
	OldText   string    `db:"old_text" json:"old_text"`
	NewText   string    `db:"new_text" json:"new_text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Attachment holds file metadata attached to a message. Upload plumbing
// lives outside this service; only the records are owned here.
type Attachment struct {
	ID         int64     `db:"id" json:"id"`
	MessageID  string    `db:"message_id" json:"message_id"`
	StorageKey string    `db:"storage_key" json:"storage_key"`
	FileName   string    `db:"file_name" json:"file_name"`
	Mime       string    `db:"mime" json:"mime"`
	Size       int64     `db:"size" json:"size"`
	SHA256     string    `db:"sha256" json:"sha256,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Reaction is unique per (message, user, emoji).
type Reaction struct {
	ID        int64     `db:"id" json:"id"`
	MessageID string    `db:"message_id" json:"message_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Receipt is unique per (message, user).
type Receipt struct {
	ID          int64      `db:"id" json:"id"`
	MessageID   string     `db:"message_id" json:"message_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Status      string     `db:"status" json:"status"`
	DeliveredAt time.Time  `db:"delivered_at" json:"delivered_at"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
}
