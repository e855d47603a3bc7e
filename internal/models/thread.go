package models

import (
	"fmt"
	"time"
)

// Thread kinds.
const (
	ThreadKindDirect = "DIRECT"
	ThreadKindGroup  = "GROUP"
)

// Thread member roles.
const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// Thread is a conversation container, either DIRECT (two participants)
// or GROUP (N participants).
type Thread struct {
	ID            string     `db:"id" json:"id"`
	Kind          string     `db:"kind" json:"kind"`
	Title         string     `db:"title" json:"title,omitempty"`
	CreatedBy     string     `db:"created_by" json:"created_by"`
	IsArchived    bool       `db:"is_archived" json:"is_archived"`
	DirectKey     *string    `db:"direct_key" json:"-"`
	LastMessageID *string    `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// ThreadMember is the durable (thread, user) membership record. Members are
// deactivated rather than deleted so history survives a leave.
type ThreadMember struct {
	ID                int64     `db:"id" json:"id"`
	ThreadID          string    `db:"thread_id" json:"thread_id"`
	UserID            string    `db:"user_id" json:"user_id"`
	Role              string    `db:"role" json:"role"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	LastReadMessageID *string   `db:"last_read_message_id" json:"last_read_message_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// ThreadSummary is the inbox view of a thread for one user.
type ThreadSummary struct {
	ThreadID      string     `db:"id" json:"thread_id"`
	Kind          string     `db:"kind" json:"kind"`
	Title         string     `db:"title" json:"title,omitempty"`
	IsArchived    bool       `db:"is_archived" json:"is_archived"`
	MembersCount  int        `db:"members_count" json:"members_count"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	LastText      *string    `db:"last_text" json:"last_text,omitempty"`
	LastSenderID  *string    `db:"last_sender_id" json:"last_sender_id,omitempty"`
	UnreadCount   int        `db:"unread_count" json:"unread_count"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// DirectKey builds the deterministic uniqueness key for a DIRECT thread:
// the two participant ids sorted lexicographically. At most one DIRECT
// thread may exist per unordered user pair.
func DirectKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%s:%s", userA, userB)
}
