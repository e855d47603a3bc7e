package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"chathive-service/internal/models"
)

// ReceiptRepository persists delivery/read receipts, unique per
// (message, user). Status is monotonic: READ never regresses to DELIVERED.
type ReceiptRepository interface {
	MarkDelivered(ctx context.Context, messageID, userID string) error
	MarkRead(ctx context.Context, messageID, userID string) error
	ListReceipts(ctx context.Context, messageID string) ([]models.Receipt, error)
}

// ReceiptRepo is a sqlx implementation of ReceiptRepository.
type ReceiptRepo struct {
	db *sqlx.DB
}

// NewReceiptRepo constructs a ReceiptRepo.
func NewReceiptRepo(db *sqlx.DB) *ReceiptRepo {
	return &ReceiptRepo{db: db}
}

// MarkDelivered records delivery. A row that already reached READ is left
// untouched.
func (r *ReceiptRepo) MarkDelivered(ctx context.Context, messageID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO receipts (message_id, user_id, status) VALUES ($1, $2, 'DELIVERED')
         ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageID, userID)
	return err
}

// MarkRead upgrades (or creates) the receipt to READ, keeping the first
// read_at timestamp.
func (r *ReceiptRepo) MarkRead(ctx context.Context, messageID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO receipts (message_id, user_id, status, read_at) VALUES ($1, $2, 'READ', NOW())
         ON CONFLICT (message_id, user_id)
         DO UPDATE SET status='READ', read_at=COALESCE(receipts.read_at, EXCLUDED.read_at)`,
		messageID, userID)
	return err
}

// ListReceipts returns all receipts for a message.
func (r *ReceiptRepo) ListReceipts(ctx context.Context, messageID string) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := r.db.SelectContext(ctx, &receipts,
		`SELECT id, message_id, user_id, status, delivered_at, read_at FROM receipts WHERE message_id=$1 ORDER BY delivered_at ASC`,
		messageID)
	return receipts, err
}
