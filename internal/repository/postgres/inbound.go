package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InboundMessage is a raw inbound email captured by the webhook listener,
// queued for the poll-replies job. Processed flips true after the reply is
// classified and recorded on the prospect.
type InboundMessage struct {
	ID          string     `json:"id" db:"id"`
	ThreadID    string     `json:"thread_id" db:"thread_id"`
	FromAddress string     `json:"from_address" db:"from_address"`
	Subject     string     `json:"subject" db:"subject"`
	Body        string     `json:"body" db:"body"`
	ReceivedAt  time.Time  `json:"received_at" db:"received_at"`
	Processed   bool       `json:"processed" db:"processed"`
	ProcessedAt *time.Time `json:"processed_at" db:"processed_at"`
}

// InboundRepo stores inbound messages between webhook receipt and reply
// processing.
type InboundRepo struct{ db *sql.DB }

// NewInboundRepo creates a Postgres-backed inbound message repository.
func NewInboundRepo(db *sql.DB) *InboundRepo { return &InboundRepo{db: db} }

// Create stores a newly received inbound message.
func (r *InboundRepo) Create(ctx context.Context, m *InboundMessage) (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_inbound
			(id, thread_id, from_address, subject, body, received_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6, false)
	`, m.ID, m.ThreadID, m.FromAddress, m.Subject, m.Body, m.ReceivedAt)
	if err != nil {
		return "", fmt.Errorf("create inbound message: %w", err)
	}
	return m.ID, nil
}

// ListUnprocessed returns pending inbound messages oldest first.
func (r *InboundRepo) ListUnprocessed(ctx context.Context, limit int) ([]InboundMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, thread_id, from_address, COALESCE(subject,''), COALESCE(body,''),
		       received_at, processed, processed_at
		FROM outreach_inbound
		WHERE processed = false
		ORDER BY received_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed inbound: %w", err)
	}
	defer rows.Close()

	var out []InboundMessage
	for rows.Next() {
		var m InboundMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.FromAddress, &m.Subject, &m.Body,
			&m.ReceivedAt, &m.Processed, &m.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan inbound message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkProcessed records that a message's reply has been applied. Matching
// on processed = false keeps a double poll harmless.
func (r *InboundRepo) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_inbound SET processed = true, processed_at = $1
		WHERE id = $2 AND processed = false`, at, id)
	if err != nil {
		return fmt.Errorf("mark inbound processed: %w", err)
	}
	return nil
}
