package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chathive-service/internal/models"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrNotMember      = errors.New("not an active thread member")
	ErrSelfThread     = errors.New("cannot open a direct thread with yourself")
)

// ThreadRepository abstracts thread and membership persistence.
type ThreadRepository interface {
	CreateDirectThread(ctx context.Context, userID, targetID string) (models.Thread, error)
	CreateGroupThread(ctx context.Context, ownerID, title string, memberIDs []string) (models.Thread, error)
	GetThread(ctx context.Context, threadID string) (models.Thread, error)
	FindDirectThread(ctx context.Context, userID, targetID string) (models.Thread, error)
	ListThreads(ctx context.Context, userID string, includeArchived bool) ([]models.ThreadSummary, error)
	IsActiveMember(ctx context.Context, threadID, userID string) (bool, error)
	MarkRead(ctx context.Context, threadID, userID, messageID string) error
}

// ThreadRepo is a sqlx implementation of ThreadRepository.
type ThreadRepo struct {
	db *sqlx.DB
}

// NewThreadRepo constructs a ThreadRepo.
func NewThreadRepo(db *sqlx.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

const threadColumns = `id, kind, title, created_by, is_archived, direct_key, last_message_id, last_message_at, created_at`

// CreateDirectThread finds or creates the single DIRECT thread between two
// users. Concurrent callers converge on one row: the insert is guarded by the
// direct_key uniqueness constraint, losers re-read the winner's thread.
// Reopening an archived thread unarchives it and reactivates both members.
func (r *ThreadRepo) CreateDirectThread(ctx context.Context, userID, targetID string) (models.Thread, error) {
	if userID == targetID {
		return models.Thread{}, ErrSelfThread
	}
	key := models.DirectKey(userID, targetID)

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO threads (id, kind, created_by, direct_key) VALUES ($1, 'DIRECT', $2, $3)
         ON CONFLICT (direct_key) DO NOTHING`,
		uuid.NewString(), userID, key); err != nil {
		return models.Thread{}, err
	}

	var thread models.Thread
	if err := r.db.GetContext(ctx, &thread,
		`SELECT `+threadColumns+` FROM threads WHERE direct_key=$1`, key); err != nil {
		return models.Thread{}, err
	}

	if thread.IsArchived {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE threads SET is_archived = FALSE WHERE id=$1`, thread.ID); err != nil {
			return models.Thread{}, err
		}
		thread.IsArchived = false
	}

	if err := r.upsertMember(ctx, thread.ID, userID, models.RoleOwner); err != nil {
		return models.Thread{}, err
	}
	if err := r.upsertMember(ctx, thread.ID, targetID, models.RoleMember); err != nil {
		return models.Thread{}, err
	}
	return thread, nil
}

// CreateGroupThread creates a GROUP thread with the creator as OWNER and the
// given users as MEMBERs.
func (r *ThreadRepo) CreateGroupThread(ctx context.Context, ownerID, title string, memberIDs []string) (models.Thread, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Thread{}, err
	}
	defer tx.Rollback()

	var thread models.Thread
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO threads (id, kind, title, created_by) VALUES ($1, 'GROUP', $2, $3)
         RETURNING `+threadColumns,
		uuid.NewString(), title, ownerID).StructScan(&thread); err != nil {
		return models.Thread{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO thread_members (thread_id, user_id, role) VALUES ($1, $2, 'OWNER')`,
		thread.ID, ownerID); err != nil {
		return models.Thread{}, err
	}
	for _, memberID := range memberIDs {
		if memberID == ownerID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thread_members (thread_id, user_id, role) VALUES ($1, $2, 'MEMBER')
             ON CONFLICT (thread_id, user_id) DO NOTHING`,
			thread.ID, memberID); err != nil {
			return models.Thread{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Thread{}, err
	}
	return thread, nil
}

// GetThread fetches a thread by id.
func (r *ThreadRepo) GetThread(ctx context.Context, threadID string) (models.Thread, error) {
	var thread models.Thread
	err := r.db.GetContext(ctx, &thread,
		`SELECT `+threadColumns+` FROM threads WHERE id=$1`, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, ErrThreadNotFound
	}
	return thread, err
}

// FindDirectThread returns the existing DIRECT thread between two users.
func (r *ThreadRepo) FindDirectThread(ctx context.Context, userID, targetID string) (models.Thread, error) {
	var thread models.Thread
	err := r.db.GetContext(ctx, &thread,
		`SELECT `+threadColumns+` FROM threads WHERE kind='DIRECT' AND direct_key=$1`,
		models.DirectKey(userID, targetID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, ErrThreadNotFound
	}
	return thread, err
}

// ListThreads returns the user's inbox ordered by last activity, with active
// member counts, last-message fields and unread counts derived from the
// member's last_read_message_id.
func (r *ThreadRepo) ListThreads(ctx context.Context, userID string, includeArchived bool) ([]models.ThreadSummary, error) {
	query := `SELECT t.id, t.kind, t.title, t.is_archived, t.last_message_at, t.created_at,
            (SELECT COUNT(*) FROM thread_members am WHERE am.thread_id = t.id AND am.is_active) AS members_count,
            lm.text AS last_text,
            lm.sender_id AS last_sender_id,
            (SELECT COUNT(*) FROM messages um
                WHERE um.thread_id = t.id AND um.deleted_at IS NULL
                AND (lr.created_at IS NULL OR um.created_at > lr.created_at)) AS unread_count
        FROM threads t
        JOIN thread_members m ON m.thread_id = t.id AND m.user_id = $1 AND m.is_active
        LEFT JOIN messages lm ON lm.id = t.last_message_id
        LEFT JOIN messages lr ON lr.id = m.last_read_message_id
        WHERE ($2 OR NOT t.is_archived)
        ORDER BY t.last_message_at DESC NULLS LAST, t.created_at DESC`

	var summaries []models.ThreadSummary
	err := r.db.SelectContext(ctx, &summaries, query, userID, includeArchived)
	return summaries, err
}

// IsActiveMember checks whether a user is an active member of the thread.
// This is the sole authorization check for join, send and typing.
func (r *ThreadRepo) IsActiveMember(ctx context.Context, threadID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM thread_members WHERE thread_id=$1 AND user_id=$2 AND is_active)`,
		threadID, userID)
	return exists, err
}

// MarkRead advances the member's read pointer to the given message. The
// pointer is monotonic: a replay carrying an older message than the current
// boundary is a no-op, so stale clients cannot re-inflate unread counts.
func (r *ThreadRepo) MarkRead(ctx context.Context, threadID, userID, messageID string) error {
	member, err := r.IsActiveMember(ctx, threadID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotMember
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE thread_members m SET last_read_message_id=$3
         WHERE m.thread_id=$1 AND m.user_id=$2 AND m.is_active
           AND (m.last_read_message_id IS NULL OR EXISTS (
               SELECT 1 FROM messages nm, messages cur
               WHERE nm.id=$3 AND cur.id=m.last_read_message_id
                 AND (nm.created_at, nm.id) >= (cur.created_at, cur.id)))`,
		threadID, userID, messageID)
	return err
}

func (r *ThreadRepo) upsertMember(ctx context.Context, threadID, userID, role string) error {
	// Existing rows keep their role; only the active flag is restored.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO thread_members (thread_id, user_id, role) VALUES ($1, $2, $3)
         ON CONFLICT (thread_id, user_id) DO UPDATE SET is_active = TRUE`,
		threadID, userID, role)
	return err
}
