package domain

import "time"

// TouchType distinguishes the three outbound contact events.
type TouchType string

const (
	TouchPrimary  TouchType = "primary"
	TouchFollowUp TouchType = "follow_up"
	TouchBackup   TouchType = "backup"
)

// Touch is one recorded outbound contact event for a prospect. Created at
// send time and immutable afterwards, except for the opened/replied/bounced
// pairs which each transition false→true exactly once.
type Touch struct {
	ID         string    `json:"id" db:"id"`
	ProspectID string    `json:"prospect_id" db:"prospect_id"`
	Type       TouchType `json:"type" db:"type"`

	ContactUsed  string    `json:"contact_used" db:"contact_used"`
	SentAt       time.Time `json:"sent_at" db:"sent_at"`
	EmailSubject string    `json:"email_subject" db:"email_subject"`
	EmailBody    string    `json:"email_body" db:"email_body"`

	Opened   bool       `json:"opened" db:"opened"`
	OpenedAt *time.Time `json:"opened_at" db:"opened_at"`

	Replied   bool       `json:"replied" db:"replied"`
	RepliedAt *time.Time `json:"replied_at" db:"replied_at"`

	Bounced      bool       `json:"bounced" db:"bounced"`
	BouncedAt    *time.Time `json:"bounced_at" db:"bounced_at"`
	BounceReason string     `json:"bounce_reason" db:"bounce_reason"`

	// External mail correlation.
	ThreadID  string `json:"thread_id" db:"thread_id"`
	MessageID string `json:"message_id" db:"message_id"`
}

// LatestTouch returns the most recent touch from a sentAt-descending slice,
// or nil if none exist.
func LatestTouch(touches []Touch) *Touch {
	if len(touches) == 0 {
		return nil
	}
	return &touches[0]
}

// CountTouches returns the number of touches of the given type.
func CountTouches(touches []Touch, t TouchType) int {
	n := 0
	for i := range touches {
		if touches[i].Type == t {
			n++
		}
	}
	return n
}
