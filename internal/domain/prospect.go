package domain

import (
	"errors"
	"time"
)

// Tier is the pre-send qualification bucket for a prospect.
type Tier string

const (
	TierPending Tier = "pending"
	Tier1       Tier = "tier_1"
	Tier2       Tier = "tier_2"
	Tier3       Tier = "tier_3"
)

// Contactable reports whether the tier permits automated outreach.
// Pending shows await manual review; tier 3 shows never enter the queue.
func (t Tier) Contactable() bool {
	return t == Tier1 || t == Tier2
}

// StopRule names the reason a prospect is permanently excluded from outreach.
type StopRule string

const (
	StopNone               StopRule = "none"
	StopPolitics           StopRule = "politics"
	StopExplicit           StopRule = "explicit"
	StopPaidGuest          StopRule = "paid_guest"
	StopFraudPseudoscience StopRule = "fraud_pseudoscience"
	StopNoGuests           StopRule = "no_guests"
	StopTier3Insufficient  StopRule = "tier_3_insufficient"
	StopNoContactRoute     StopRule = "no_contact_route"
	StopBounce             StopRule = "bounce"
	StopOptOut             StopRule = "opt_out"
	StopSpamComplaint      StopRule = "spam_complaint"
)

// Status enumerates the lifecycle states of a prospect.
type Status string

const (
	StatusNotContacted  Status = "not_contacted"
	StatusReadyToDraft  Status = "ready_to_draft"
	StatusDrafted       Status = "drafted"
	StatusQAApproved    Status = "qa_approved"
	StatusSent          Status = "sent"
	StatusFollowUpDue   Status = "follow_up_due"
	StatusFollowUpSent  Status = "follow_up_sent"
	StatusEscalationDue Status = "escalation_due"
	StatusEscalated     Status = "escalated"
	StatusReplied       Status = "replied"
	StatusClosed        Status = "closed"
)

// NextAction enumerates what the scheduler should do next for a prospect.
type NextAction string

const (
	ActionDraft    NextAction = "draft"
	ActionQA       NextAction = "qa"
	ActionSend     NextAction = "send"
	ActionFollowUp NextAction = "follow_up"
	ActionEscalate NextAction = "escalate"
	ActionClose    NextAction = "close"
	ActionWait     NextAction = "wait"
	ActionNone     NextAction = "none"
)

// Sendable reports whether the action results in an outbound email.
func (a NextAction) Sendable() bool {
	return a == ActionSend || a == ActionFollowUp || a == ActionEscalate
}

// Outcome is the terminal disposition of a prospect.
type Outcome string

const (
	OutcomeOpen       Outcome = "open"
	OutcomeBooked     Outcome = "booked"
	OutcomeDeclined   Outcome = "declined"
	OutcomeNoResponse Outcome = "no_response"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeBounced    Outcome = "bounced"
	OutcomeOptOut     Outcome = "opt_out"
)

// ReplyType classifies an inbound reply.
type ReplyType string

const (
	ReplyPositive      ReplyType = "positive"
	ReplyNeutral       ReplyType = "neutral"
	ReplyNegative      ReplyType = "negative"
	ReplyNotNow        ReplyType = "not_now"
	ReplyNeedsTopics   ReplyType = "needs_topics"
	ReplyNeedsMediaKit ReplyType = "needs_media_kit"
	ReplyPaidOnly      ReplyType = "paid_only"
)

// QAStatus tracks human review of a drafted email.
type QAStatus string

const (
	QAPending QAStatus = "pending"
	QAPassed  QAStatus = "pass"
	QAFailed  QAStatus = "fail"
)

// ErrMissingContactSource is returned when an email is set without the
// source reference recording where it was discovered.
var ErrMissingContactSource = errors.New("contact email requires a source reference")

// ContactRef is an email address plus the discovery source it came from.
// The source reference is mandatory: an address we cannot attribute is an
// address we cannot trust.
type ContactRef struct {
	Email  string `json:"email" db:"email"`
	Source string `json:"source" db:"source"`
}

// Validate enforces the email-requires-source invariant.
func (c *ContactRef) Validate() error {
	if c == nil {
		return nil
	}
	if c.Email != "" && c.Source == "" {
		return ErrMissingContactSource
	}
	return nil
}

// Prospect is a single outreach target (a podcast/show) and its lifecycle state.
type Prospect struct {
	ID        string `json:"id" db:"id"`
	DedupeKey string `json:"dedupe_key" db:"dedupe_key"`
	Name      string `json:"name" db:"name"`

	Tier       Tier     `json:"tier" db:"tier"`
	StopRule   StopRule `json:"stop_rule" db:"stop_rule"`
	Suppressed bool     `json:"suppressed" db:"suppressed"`

	Status         Status     `json:"status" db:"status"`
	NextAction     NextAction `json:"next_action" db:"next_action"`
	NextActionDate *time.Time `json:"next_action_date" db:"next_action_date"`
	Outcome        Outcome    `json:"outcome" db:"outcome"`

	QAStatus       QAStatus    `json:"qa_status" db:"qa_status"`
	UseBackupEmail bool        `json:"use_backup_email" db:"use_backup_email"`
	PrimaryEmail   *ContactRef `json:"primary_email" db:"-"`
	BackupEmail    *ContactRef `json:"backup_email" db:"-"`

	DraftSubject string `json:"draft_subject" db:"draft_subject"`
	DraftBody    string `json:"draft_body" db:"draft_body"`

	// Event timestamps. Each is null until the event occurs and is set
	// exactly once; only reset tooling may clear them.
	SentPrimaryAt   *time.Time `json:"sent_primary_at" db:"sent_primary_at"`
	FollowUpSentAt  *time.Time `json:"follow_up_sent_at" db:"follow_up_sent_at"`
	SentBackupAt    *time.Time `json:"sent_backup_at" db:"sent_backup_at"`
	ReplyReceivedAt *time.Time `json:"reply_received_at" db:"reply_received_at"`
	SuppressedAt    *time.Time `json:"suppressed_at" db:"suppressed_at"`

	ReplyType *ReplyType `json:"reply_type" db:"reply_type"`

	// Version is the optimistic concurrency token; every lifecycle write
	// compares and increments it.
	Version   int64     `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsClosed reports whether the prospect is in its terminal lifecycle state.
func (p *Prospect) IsClosed() bool { return p.Status == StatusClosed }

// TargetEmail returns the contact the next send should go to, honoring the
// backup-channel flag. Nil when no usable route exists.
func (p *Prospect) TargetEmail() *ContactRef {
	if p.UseBackupEmail {
		if p.BackupEmail != nil && p.BackupEmail.Email != "" {
			return p.BackupEmail
		}
		return nil
	}
	if p.PrimaryEmail != nil && p.PrimaryEmail.Email != "" {
		return p.PrimaryEmail
	}
	return nil
}

// HasBackupEmail reports whether an escalation route exists.
func (p *Prospect) HasBackupEmail() bool {
	return p.BackupEmail != nil && p.BackupEmail.Email != ""
}

// Validate checks creation-time invariants.
func (p *Prospect) Validate() error {
	if err := p.PrimaryEmail.Validate(); err != nil {
		return err
	}
	if err := p.BackupEmail.Validate(); err != nil {
		return err
	}
	return nil
}

// AwaitingReply reports whether the prospect has outbound mail in flight
// with no recorded reply, i.e. its threads should be polled.
func (p *Prospect) AwaitingReply() bool {
	return p.SentPrimaryAt != nil && p.ReplyReceivedAt == nil &&
		p.Status != StatusClosed && !p.Suppressed
}
