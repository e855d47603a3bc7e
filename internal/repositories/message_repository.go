package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chathive-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyText       = errors.New("text must not be empty")
	ErrNotSender       = errors.New("only the sender may modify a message")
)

const pgUniqueViolation = "23505"

// MessageRepository defines persistence for messages, including the
// idempotent create path and the audited edit/delete mutations.
type MessageRepository interface {
	CreateMessage(ctx context.Context, threadID, senderID, text, clientID string) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	ListMessages(ctx context.Context, threadID string, before, after *time.Time, limit int) ([]models.Message, error)
	EditMessage(ctx context.Context, messageID, actorID, text string) (models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, actorID string) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, thread_id, sender_id, type, text, reply_to_id, client_id, edited_at, deleted_at, created_at`

// CreateMessage persists a TEXT message with exactly-once semantics per
// (thread, clientID). A non-empty clientID that already exists returns the
// prior message; a concurrent duplicate insert loses the uniqueness race and
// re-reads the winner. The thread's last-message pointer is updated in the
// same transaction with a monotonic guard so an earlier message can never
// overwrite a later one's pointer.
func (r *MessageRepo) CreateMessage(ctx context.Context, threadID, senderID, text, clientID string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyText
	}

	if clientID != "" {
		msg, err := r.getByClientKey(ctx, threadID, clientID)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, err
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (id, thread_id, sender_id, type, text, client_id)
         VALUES ($1, $2, NULLIF($3, ''), 'TEXT', $4, NULLIF($5, ''))
         RETURNING `+messageColumns,
		uuid.NewString(), threadID, senderID, text, clientID).StructScan(&msg)
	if err != nil {
		if isUniqueViolation(err) && clientID != "" {
			// A concurrent sender created the same key first; its row is
			// visible once our blocked insert fails.
			return r.getByClientKey(ctx, threadID, clientID)
		}
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET last_message_id=$2, last_message_at=$3
         WHERE id=$1 AND (last_message_at IS NULL OR last_message_at <= $3)`,
		threadID, msg.ID, msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns non-deleted messages in creation order, optionally
// bounded by before/after timestamps.
func (r *MessageRepo) ListMessages(ctx context.Context, threadID string, before, after *time.Time, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE thread_id=$1 AND deleted_at IS NULL
        AND ($2::timestamptz IS NULL OR created_at < $2)
        AND ($3::timestamptz IS NULL OR created_at > $3)
        ORDER BY created_at ASC
        LIMIT $4`

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, threadID, before, after, limit)
	return msgs, err
}

// EditMessage replaces the text of a message. Only the original sender may
// edit; an unchanged text is a no-op and writes no audit row.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID, actorID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyText
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	msg, err := lockMessage(ctx, tx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.DeletedAt != nil {
		return models.Message{}, ErrMessageNotFound
	}
	if msg.SenderID == nil || *msg.SenderID != actorID {
		return models.Message{}, ErrNotSender
	}
	if msg.Text == text {
		return msg, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_audit (message_id, actor_id, event, old_text, new_text) VALUES ($1, $2, 'EDIT', $3, $4)`,
		messageID, actorID, msg.Text, text); err != nil {
		return models.Message{}, err
	}

	if err := tx.QueryRowxContext(ctx,
		`UPDATE messages SET text=$2, edited_at=NOW() WHERE id=$1 RETURNING `+messageColumns,
		messageID, text).StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// SoftDeleteMessage clears the text and stamps deleted_at, keeping the row
// for audit. The thread's last-message pointer is recomputed from the newest
// surviving message, or cleared when none remain. Deleting an already-deleted
// message is a no-op.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID, actorID string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	msg, err := lockMessage(ctx, tx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID == nil || *msg.SenderID != actorID {
		return models.Message{}, ErrNotSender
	}
	if msg.DeletedAt != nil {
		return msg, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_audit (message_id, actor_id, event, old_text, new_text) VALUES ($1, $2, 'DELETE', $3, '')`,
		messageID, actorID, msg.Text); err != nil {
		return models.Message{}, err
	}

	if err := tx.QueryRowxContext(ctx,
		`UPDATE messages SET text='', deleted_at=NOW() WHERE id=$1 RETURNING `+messageColumns,
		messageID).StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads t SET last_message_id = nm.id, last_message_at = nm.created_at
         FROM (SELECT id, created_at FROM messages
               WHERE thread_id=$1 AND deleted_at IS NULL
               ORDER BY created_at DESC, id DESC LIMIT 1) nm
         WHERE t.id=$1`, msg.ThreadID); err != nil {
		return models.Message{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET last_message_id=NULL, last_message_at=NULL
         WHERE id=$1 AND NOT EXISTS (SELECT 1 FROM messages WHERE thread_id=$1 AND deleted_at IS NULL)`,
		msg.ThreadID); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (r *MessageRepo) getByClientKey(ctx context.Context, threadID, clientID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE thread_id=$1 AND client_id=$2`,
		threadID, clientID)
	return msg, err
}

func lockMessage(ctx context.Context, tx *sqlx.Tx, messageID string) (models.Message, error) {
	var msg models.Message
	err := tx.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}
