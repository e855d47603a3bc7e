package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chathive-service/internal/models"
)

var ErrReactionNotFound = errors.New("reaction not found")

// ReactionRepository persists emoji reactions, unique per (message, user, emoji).
type ReactionRepository interface {
	AddReaction(ctx context.Context, messageID, userID, emoji string) (models.Reaction, error)
	RemoveReaction(ctx context.Context, messageID, userID, emoji string) error
	ListReactions(ctx context.Context, messageID string) ([]models.Reaction, error)
}

// ReactionRepo is a sqlx implementation of ReactionRepository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// AddReaction records a reaction. Repeating the same reaction returns the
// existing row.
func (r *ReactionRepo) AddReaction(ctx context.Context, messageID, userID, emoji string) (models.Reaction, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
         ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
		messageID, userID, emoji); err != nil {
		return models.Reaction{}, err
	}

	var reaction models.Reaction
	err := r.db.GetContext(ctx, &reaction,
		`SELECT id, message_id, user_id, emoji, created_at FROM reactions
         WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reaction{}, ErrReactionNotFound
	}
	return reaction, err
}

// RemoveReaction deletes a reaction if it exists.
func (r *ReactionRepo) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrReactionNotFound
	}
	return nil
}

// ListReactions returns all reactions on a message.
func (r *ReactionRepo) ListReactions(ctx context.Context, messageID string) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := r.db.SelectContext(ctx, &reactions,
		`SELECT id, message_id, user_id, emoji, created_at FROM reactions WHERE message_id=$1 ORDER BY created_at ASC`,
		messageID)
	return reactions, err
}
