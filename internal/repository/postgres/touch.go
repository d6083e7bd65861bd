package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/showscout/outreach/internal/domain"
)

const touchColumns = `
	id, prospect_id, type, contact_used, sent_at,
	COALESCE(email_subject,''), COALESCE(email_body,''),
	opened, opened_at, replied, replied_at,
	bounced, bounced_at, COALESCE(bounce_reason,''),
	COALESCE(thread_id,''), COALESCE(message_id,'')`

// TouchRepo is the Postgres-backed touch repository.
type TouchRepo struct{ db *sql.DB }

// NewTouchRepo creates a Postgres-backed touch repository.
func NewTouchRepo(db *sql.DB) *TouchRepo { return &TouchRepo{db: db} }

func scanTouch(row interface{ Scan(...interface{}) error }) (*domain.Touch, error) {
	t := &domain.Touch{}
	err := row.Scan(
		&t.ID, &t.ProspectID, &t.Type, &t.ContactUsed, &t.SentAt,
		&t.EmailSubject, &t.EmailBody,
		&t.Opened, &t.OpenedAt, &t.Replied, &t.RepliedAt,
		&t.Bounced, &t.BouncedAt, &t.BounceReason,
		&t.ThreadID, &t.MessageID,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a touch row at send time.
func (r *TouchRepo) Create(ctx context.Context, t *domain.Touch) (string, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_touches
			(id, prospect_id, type, contact_used, sent_at,
			 email_subject, email_body, opened, replied, bounced,
			 thread_id, message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, false, false, $8, $9)
	`, t.ID, t.ProspectID, t.Type, t.ContactUsed, t.SentAt,
		t.EmailSubject, t.EmailBody, t.ThreadID, t.MessageID)
	if err != nil {
		return "", fmt.Errorf("create touch: %w", err)
	}
	return t.ID, nil
}

// ListByProspect returns a prospect's touches newest first.
func (r *TouchRepo) ListByProspect(ctx context.Context, prospectID string) ([]domain.Touch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+touchColumns+`
		FROM outreach_touches
		WHERE prospect_id = $1
		ORDER BY sent_at DESC`, prospectID)
	if err != nil {
		return nil, fmt.Errorf("list touches: %w", err)
	}
	defer rows.Close()

	var out []domain.Touch
	for rows.Next() {
		t, err := scanTouch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan touch: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetByMessageID finds the touch that produced an outbound message, for
// correlating bounces and replies back to a prospect.
func (r *TouchRepo) GetByMessageID(ctx context.Context, messageID string) (*domain.Touch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+touchColumns+`
		FROM outreach_touches WHERE message_id = $1`, messageID)
	t, err := scanTouch(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get touch by message id: %w", err)
	}
	return t, nil
}

// GetLatestByThreadID returns the newest touch in a conversation thread.
func (r *TouchRepo) GetLatestByThreadID(ctx context.Context, threadID string) (*domain.Touch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+touchColumns+`
		FROM outreach_touches WHERE thread_id = $1
		ORDER BY sent_at DESC LIMIT 1`, threadID)
	t, err := scanTouch(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get touch by thread id: %w", err)
	}
	return t, nil
}

// MarkOpened flips the opened pair false→true. Idempotent: a second call
// matches zero rows and leaves the first timestamp in place.
func (r *TouchRepo) MarkOpened(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_touches SET opened = true, opened_at = $1
		WHERE id = $2 AND opened = false`, at, id)
	if err != nil {
		return fmt.Errorf("mark touch opened: %w", err)
	}
	return nil
}

// MarkReplied flips the replied pair false→true once.
func (r *TouchRepo) MarkReplied(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_touches SET replied = true, replied_at = $1
		WHERE id = $2 AND replied = false`, at, id)
	if err != nil {
		return fmt.Errorf("mark touch replied: %w", err)
	}
	return nil
}

// MarkBounced flips the bounced pair false→true once and records the reason.
func (r *TouchRepo) MarkBounced(ctx context.Context, id string, at time.Time, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_touches SET bounced = true, bounced_at = $1, bounce_reason = $2
		WHERE id = $3 AND bounced = false`, at, reason, id)
	if err != nil {
		return fmt.Errorf("mark touch bounced: %w", err)
	}
	return nil
}
