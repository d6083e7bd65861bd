// Package mailbox is the read side of inbound mail. The webhook listener
// writes raw messages; this package exposes the pending queue to the
// reply-polling job. Bounce events are handled synchronously by the
// webhook itself and never reach this surface.
package mailbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/showscout/outreach/internal/repository/postgres"
)

// Mailbox is the inbound-mail surface.
type Mailbox interface {
	// ListUnprocessed returns pending inbound messages oldest first.
	ListUnprocessed(ctx context.Context, limit int) ([]postgres.InboundMessage, error)
	// MarkProcessed records that a message's reply has been applied.
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}

// PostgresMailbox reads the inbound queue.
type PostgresMailbox struct {
	inbound *postgres.InboundRepo
}

// NewPostgres creates a Postgres-backed mailbox.
func NewPostgres(db *sql.DB) *PostgresMailbox {
	return &PostgresMailbox{inbound: postgres.NewInboundRepo(db)}
}

// ListUnprocessed returns pending inbound messages oldest first.
func (m *PostgresMailbox) ListUnprocessed(ctx context.Context, limit int) ([]postgres.InboundMessage, error) {
	return m.inbound.ListUnprocessed(ctx, limit)
}

// MarkProcessed records that a message's reply has been applied.
func (m *PostgresMailbox) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return m.inbound.MarkProcessed(ctx, id, at)
}
