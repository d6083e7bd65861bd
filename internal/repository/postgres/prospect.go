// Package postgres implements the record store repositories against
// PostgreSQL. Prospect updates use optimistic concurrency: every lifecycle
// write compares the stored version and increments it, and a losing writer
// gets ErrVersionConflict instead of clobbering a concurrent transition.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/showscout/outreach/internal/domain"
)

var (
	// ErrNotFound is returned when a prospect doesn't exist.
	ErrNotFound = errors.New("prospect not found")

	// ErrVersionConflict is returned when an optimistic update loses the
	// race. Callers drop the update and let the next pass recompute.
	ErrVersionConflict = errors.New("prospect version conflict")

	// ErrDuplicateKey is returned when a prospect with the same dedupe
	// key already exists.
	ErrDuplicateKey = errors.New("prospect dedupe key already exists")
)

const prospectColumns = `
	id, dedupe_key, name, tier, stop_rule, suppressed,
	status, next_action, next_action_date, outcome,
	qa_status, use_backup_email,
	COALESCE(primary_email,''), COALESCE(primary_email_source,''),
	COALESCE(backup_email,''), COALESCE(backup_email_source,''),
	COALESCE(draft_subject,''), COALESCE(draft_body,''),
	sent_primary_at, follow_up_sent_at, sent_backup_at,
	reply_received_at, suppressed_at, reply_type,
	version, created_at, updated_at`

// ProspectRepo is the Postgres-backed prospect repository.
type ProspectRepo struct{ db *sql.DB }

// NewProspectRepo creates a Postgres-backed prospect repository.
func NewProspectRepo(db *sql.DB) *ProspectRepo { return &ProspectRepo{db: db} }

func scanProspect(row interface{ Scan(...interface{}) error }) (*domain.Prospect, error) {
	p := &domain.Prospect{}
	var primaryEmail, primarySource, backupEmail, backupSource string
	var replyType sql.NullString

	err := row.Scan(
		&p.ID, &p.DedupeKey, &p.Name, &p.Tier, &p.StopRule, &p.Suppressed,
		&p.Status, &p.NextAction, &p.NextActionDate, &p.Outcome,
		&p.QAStatus, &p.UseBackupEmail,
		&primaryEmail, &primarySource,
		&backupEmail, &backupSource,
		&p.DraftSubject, &p.DraftBody,
		&p.SentPrimaryAt, &p.FollowUpSentAt, &p.SentBackupAt,
		&p.ReplyReceivedAt, &p.SuppressedAt, &replyType,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if primaryEmail != "" {
		p.PrimaryEmail = &domain.ContactRef{Email: primaryEmail, Source: primarySource}
	}
	if backupEmail != "" {
		p.BackupEmail = &domain.ContactRef{Email: backupEmail, Source: backupSource}
	}
	if replyType.Valid {
		rt := domain.ReplyType(replyType.String)
		p.ReplyType = &rt
	}
	return p, nil
}

// Get returns one prospect by ID.
func (r *ProspectRepo) Get(ctx context.Context, id string) (*domain.Prospect, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+prospectColumns+` FROM outreach_prospects WHERE id = $1`, id)
	p, err := scanProspect(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prospect: %w", err)
	}
	return p, nil
}

// GetByDedupeKey returns the prospect carrying the given identity key.
func (r *ProspectRepo) GetByDedupeKey(ctx context.Context, key string) (*domain.Prospect, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+prospectColumns+` FROM outreach_prospects WHERE dedupe_key = $1`, key)
	p, err := scanProspect(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prospect by key: %w", err)
	}
	return p, nil
}

// GetOpenProspects returns every prospect the scheduler should evaluate:
// outcome open, not suppressed, not closed.
func (r *ProspectRepo) GetOpenProspects(ctx context.Context) ([]domain.Prospect, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prospectColumns+`
		FROM outreach_prospects
		WHERE outcome = 'open' AND suppressed = false AND status != 'closed'
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list open prospects: %w", err)
	}
	defer rows.Close()

	var out []domain.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prospect: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetDueProspects returns open prospects whose next action is due and
// results in a send.
func (r *ProspectRepo) GetDueProspects(ctx context.Context, now time.Time) ([]domain.Prospect, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prospectColumns+`
		FROM outreach_prospects
		WHERE outcome = 'open' AND suppressed = false
		  AND next_action IN ('send','follow_up','escalate')
		  AND next_action_date IS NOT NULL AND next_action_date <= $1
		ORDER BY next_action_date`, now)
	if err != nil {
		return nil, fmt.Errorf("list due prospects: %w", err)
	}
	defer rows.Close()

	var out []domain.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prospect: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetAwaitingReply returns prospects with outbound mail in flight and no
// recorded reply, for the poll-replies job.
func (r *ProspectRepo) GetAwaitingReply(ctx context.Context) ([]domain.Prospect, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prospectColumns+`
		FROM outreach_prospects
		WHERE suppressed = false AND status != 'closed'
		  AND sent_primary_at IS NOT NULL AND reply_received_at IS NULL
		ORDER BY sent_primary_at`)
	if err != nil {
		return nil, fmt.Errorf("list awaiting reply: %w", err)
	}
	defer rows.Close()

	var out []domain.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prospect: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts a new prospect. The contact-source invariant is enforced
// here, at creation.
func (r *ProspectRepo) Create(ctx context.Context, p *domain.Prospect) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	var primaryEmail, primarySource, backupEmail, backupSource sql.NullString
	if p.PrimaryEmail != nil {
		primaryEmail = sql.NullString{String: p.PrimaryEmail.Email, Valid: true}
		primarySource = sql.NullString{String: p.PrimaryEmail.Source, Valid: true}
	}
	if p.BackupEmail != nil {
		backupEmail = sql.NullString{String: p.BackupEmail.Email, Valid: true}
		backupSource = sql.NullString{String: p.BackupEmail.Source, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outreach_prospects
			(id, dedupe_key, name, tier, stop_rule, suppressed,
			 status, next_action, outcome, qa_status, use_backup_email,
			 primary_email, primary_email_source, backup_email, backup_email_source,
			 version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false,
		        $6, $7, $8, $9, false,
		        $10, $11, $12, $13, 1, NOW(), NOW())
	`, p.ID, p.DedupeKey, p.Name, p.Tier, domain.StopNone,
		domain.StatusNotContacted, domain.ActionNone, domain.OutcomeOpen, domain.QAPending,
		primaryEmail, primarySource, backupEmail, backupSource)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return "", ErrDuplicateKey
		}
		return "", fmt.Errorf("create prospect: %w", err)
	}
	return p.ID, nil
}

// LifecycleFields is the partial-update set for an optimistic lifecycle
// write. Nil pointers leave the stored column untouched; SetNextActionDate
// distinguishes "write NULL" from "leave alone" for the nullable date.
type LifecycleFields struct {
	Status            *domain.Status
	NextAction        *domain.NextAction
	NextActionDate    *time.Time
	SetNextActionDate bool
	Outcome           *domain.Outcome
	Tier              *domain.Tier
	StopRule          *domain.StopRule
	Suppressed        *bool
	SuppressedAt      *time.Time
	QAStatus          *domain.QAStatus
	UseBackupEmail    *bool
	DraftSubject      *string
	DraftBody         *string
	SentPrimaryAt     *time.Time
	FollowUpSentAt    *time.Time
	SentBackupAt      *time.Time
	ReplyReceivedAt   *time.Time
	ReplyType         *domain.ReplyType
}

// UpdateLifecycle applies a compare-and-swap update: rows are matched on
// (id, version) and the version increments. Zero rows affected on an
// existing prospect means a concurrent writer won; the caller discards.
func (r *ProspectRepo) UpdateLifecycle(ctx context.Context, id string, f LifecycleFields, expectedVersion int64) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if f.Status != nil {
		add("status", *f.Status)
	}
	if f.NextAction != nil {
		add("next_action", *f.NextAction)
	}
	if f.SetNextActionDate {
		add("next_action_date", f.NextActionDate)
	}
	if f.Outcome != nil {
		add("outcome", *f.Outcome)
	}
	if f.Tier != nil {
		add("tier", *f.Tier)
	}
	if f.StopRule != nil {
		add("stop_rule", *f.StopRule)
	}
	if f.Suppressed != nil {
		add("suppressed", *f.Suppressed)
	}
	if f.SuppressedAt != nil {
		add("suppressed_at", *f.SuppressedAt)
	}
	if f.QAStatus != nil {
		add("qa_status", *f.QAStatus)
	}
	if f.UseBackupEmail != nil {
		add("use_backup_email", *f.UseBackupEmail)
	}
	if f.DraftSubject != nil {
		add("draft_subject", *f.DraftSubject)
	}
	if f.DraftBody != nil {
		add("draft_body", *f.DraftBody)
	}
	if f.SentPrimaryAt != nil {
		add("sent_primary_at", *f.SentPrimaryAt)
	}
	if f.FollowUpSentAt != nil {
		add("follow_up_sent_at", *f.FollowUpSentAt)
	}
	if f.SentBackupAt != nil {
		add("sent_backup_at", *f.SentBackupAt)
	}
	if f.ReplyReceivedAt != nil {
		add("reply_received_at", *f.ReplyReceivedAt)
	}
	if f.ReplyType != nil {
		add("reply_type", *f.ReplyType)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "version = version + 1", "updated_at = NOW()")
	q := fmt.Sprintf(
		"UPDATE outreach_prospects SET %s WHERE id = $%d AND version = $%d",
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, expectedVersion)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update prospect: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM outreach_prospects WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update prospect: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// StrengthenDedupeKey replaces a prospect's identity key. The WHERE clause
// makes the strengthening direction a store-level guarantee: a weaker or
// equal key never overwrites.
func (r *ProspectRepo) StrengthenDedupeKey(ctx context.Context, id, newKey string, strengthOld, strengthNew int) error {
	if strengthNew <= strengthOld {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE outreach_prospects SET dedupe_key = $1, updated_at = NOW()
		WHERE id = $2
	`, newKey, id)
	if err != nil {
		return fmt.Errorf("strengthen dedupe key: %w", err)
	}
	return nil
}

// CountByStatus returns prospect counts per lifecycle status, for the ops
// stats endpoint.
func (r *ProspectRepo) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM outreach_prospects GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Status]int)
	for rows.Next() {
		var s domain.Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[s] = n
	}
	return out, rows.Err()
}
