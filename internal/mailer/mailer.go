// Package mailer sends outreach email through AWS SES v2.
package mailer

import (
	"context"
	"errors"
	"time"
)

// SendResult carries the provider identifiers for a delivered message.
// ThreadID groups the primary send with its follow-up for reply matching.
type SendResult struct {
	MessageID string
	ThreadID  string
}

// ErrSendFailed wraps transient transport failures. The send job refunds
// the daily counter when it sees this.
var ErrSendFailed = errors.New("email send failed")

// Mailer sends one outreach email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body, threadID string) (*SendResult, error)
}

// Config holds the SES connection settings.
type Config struct {
	Region      string
	AccessKey   string
	SecretKey   string
	FromAddress string
	FromName    string
	Timeout     time.Duration
}
