package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-idv-api/pkg/mail"
)

// OutboxRepository drains the email_outbox table. Rows are written inside the
// accept/resend transactions; this repository only ever reads queued rows and
// records delivery outcomes.
type OutboxRepository struct {
	db *sqlx.DB
}

var _ mail.OutboxStore = (*OutboxRepository)(nil)

// NewOutboxRepository constructs a new repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// GetQueued loads one queued message for delivery.
func (r *OutboxRepository) GetQueued(ctx context.Context, id string) (*mail.Message, error) {
	row := struct {
		ID             string `db:"id"`
		Recipient      string `db:"recipient"`
		RecipientName  string `db:"recipient_name"`
		Subject        string `db:"subject"`
		HTMLBody       string `db:"html_body"`
		AttachmentName string `db:"attachment_name"`
		AttachmentB64  string `db:"attachment_b64"`
	}{}
	query := `SELECT id, recipient, recipient_name, subject, html_body, attachment_name, attachment_b64
FROM email_outbox WHERE id = $1 AND status = 'queued'`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("get queued email: %w", err)
	}
	return &mail.Message{
		ID:             row.ID,
		Recipient:      row.Recipient,
		RecipientName:  row.RecipientName,
		Subject:        row.Subject,
		HTMLBody:       row.HTMLBody,
		AttachmentName: row.AttachmentName,
		AttachmentB64:  row.AttachmentB64,
	}, nil
}

// ListQueued returns IDs of messages a previous process left undelivered.
func (r *OutboxRepository) ListQueued(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	query := "SELECT id FROM email_outbox WHERE status = 'queued' ORDER BY created_at ASC LIMIT $1"
	if err := r.db.SelectContext(ctx, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("list queued emails: %w", err)
	}
	return ids, nil
}

// MarkSent records a successful delivery.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE email_outbox SET status = 'sent', sent_at = $1 WHERE id = $2", sentAt, id)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt. The row stays queued so a retry, or a
// later process restart, can still pick it up; MarkAbandoned is the terminal
// transition once retries are exhausted.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE email_outbox SET attempts = $1, last_error = $2 WHERE id = $3", attempts, lastErr, id)
	if err != nil {
		return fmt.Errorf("mark email failed: %w", err)
	}
	return nil
}

// MarkAbandoned flips a message to the failed status after its retries are
// exhausted, removing it from the recovery sweep.
func (r *OutboxRepository) MarkAbandoned(ctx context.Context, id string, lastErr string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE email_outbox SET status = 'failed', last_error = $1 WHERE id = $2", lastErr, id)
	if err != nil {
		return fmt.Errorf("abandon email: %w", err)
	}
	return nil
}

// CountQueued reports the current delivery backlog.
func (r *OutboxRepository) CountQueued(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM email_outbox WHERE status = 'queued'"); err != nil {
		return 0, fmt.Errorf("count queued emails: %w", err)
	}
	return n, nil
}
