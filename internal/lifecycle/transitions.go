package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/showscout/outreach/internal/domain"
	"github.com/showscout/outreach/internal/replyclass"
)

// Workflow transitions are a closed set of typed commands, each with its own
// validated precondition. There is deliberately no string-keyed dispatch: the
// compiler, not a lookup table, enumerates what can happen to a prospect.

var (
	// ErrProspectClosed is returned when any command targets a closed
	// prospect; closed is terminal and only manual tooling may reopen.
	ErrProspectClosed = errors.New("lifecycle: prospect is closed")

	// ErrPrecondition is wrapped by every command whose guard fails.
	ErrPrecondition = errors.New("lifecycle: transition precondition failed")
)

// Command is one explicit workflow transition applied to a prospect.
type Command interface {
	// Apply validates its precondition and mutates the prospect in place.
	Apply(p *domain.Prospect, now time.Time) error
}

func guardOpen(p *domain.Prospect) error {
	if p.IsClosed() {
		return ErrProspectClosed
	}
	return nil
}

// Approve assigns a tier to a pending prospect, admitting it to the queue.
type Approve struct {
	Tier domain.Tier
}

func (c Approve) Apply(p *domain.Prospect, now time.Time) error {
	if err := guardOpen(p); err != nil {
		return err
	}
	if p.Tier != domain.TierPending {
		return fmt.Errorf("%w: approve requires pending tier, have %s", ErrPrecondition, p.Tier)
	}
	if !c.Tier.Contactable() && c.Tier != domain.Tier3 {
		return fmt.Errorf("%w: approve target tier %s is not a qualification tier", ErrPrecondition, c.Tier)
	}
	p.Tier = c.Tier
	if c.Tier == domain.Tier3 {
		return Skip{Rule: domain.StopTier3Insufficient}.Apply(p, now)
	}
	p.Status = domain.StatusReadyToDraft
	p.NextAction = domain.ActionDraft
	p.NextActionDate = &now
	return nil
}

// Skip permanently excludes a prospect under a named stop rule.
type Skip struct {
	Rule domain.StopRule
}

func (c Skip) Apply(p *domain.Prospect, now time.Time) error {
	if err := guardOpen(p); err != nil {
		return err
	}
	if c.Rule == domain.StopNone {
		return fmt.Errorf("%w: skip requires a stop rule", ErrPrecondition)
	}
	p.StopRule = c.Rule
	p.Suppressed = true
	p.SuppressedAt = &now
	p.Outcome = domain.OutcomeSuppressed
	switch c.Rule {
	case domain.StopBounce:
		p.Outcome = domain.OutcomeBounced
	case domain.StopOptOut, domain.StopSpamComplaint:
		p.Outcome = domain.OutcomeOptOut
	}
	p.Status = domain.StatusClosed
	p.NextAction = domain.ActionNone
	p.NextActionDate = nil
	return nil
}

// MarkDrafted records the draft email content produced for the prospect.
type MarkDrafted struct {
	Subject string
	Body    string
}

func (c MarkDrafted) Apply(p *domain.Prospect, now time.Time) error {
	if err := guardOpen(p); err != nil {
		return err
	}
	if p.Status != domain.StatusReadyToDraft {
		return fmt.Errorf("%w: draft requires ready_to_draft, have %s", ErrPrecondition, p.Status)
	}
	if c.Subject == "" || c.Body == "" {
		return fmt.Errorf("%w: draft requires subject and body", ErrPrecondition)
	}
	p.DraftSubject = c.Subject
	p.DraftBody = c.Body
	p.Status = domain.StatusDrafted
	p.QAStatus = domain.QAPending
	p.NextAction = domain.ActionQA
	p.NextActionDate = &now
	return nil
}

// QAPass approves a drafted email for sending.
type QAPass struct{}

func (QAPass) Apply(p *domain.Prospect, now time.Time) error {
	if err := guardOpen(p); err != nil {
		return err
	}
	if p.Status != domain.StatusDrafted {
		return fmt.Errorf("%w: qa pass requires drafted, have %s", ErrPrecondition, p.Status)
	}
	p.QAStatus = domain.QAPassed
	p.Status = domain.StatusQAApproved
	p.NextAction = domain.ActionSend
	p.NextActionDate = &now
	return nil
}

// QAFail sends a draft back for rework.
type QAFail struct {
	Notes string
}

func (c QAFail) Apply(p *domain.Prospect, now time.Time) error {
	if err := guardOpen(p); err != nil {
		return err
	}
	if p.Status != domain.StatusDrafted {
		return fmt.Errorf("%w: qa fail requires drafted, have %s", ErrPrecondition, p.Status)
	}
	p.QAStatus = domain.QAFailed
	p.Status = domain.StatusReadyToDraft
	p.NextAction = domain.ActionDraft
	p.NextActionDate = &now
	return nil
}

// RecordSend applies the prospect-side effects of a completed send. The
// touch itself must already be persisted (touch creation happens-before the
// prospect update that references it).
type RecordSend struct {
	Type   domain.TouchType
	SentAt time.Time
}

func (c RecordSend) Apply(p *domain.Prospect, now time.Time) error {
	if err := guardOpen(p); err != nil {
		return err
	}
	sent := c.SentAt
	switch c.Type {
	case domain.TouchPrimary:
		if p.SentPrimaryAt != nil {
			return fmt.Errorf("%w: primary already sent", ErrPrecondition)
		}
		p.SentPrimaryAt = &sent
		p.Status = domain.StatusSent
	case domain.TouchFollowUp:
		if p.SentPrimaryAt == nil {
			return fmt.Errorf("%w: follow-up without primary send", ErrPrecondition)
		}
		if p.FollowUpSentAt != nil {
			return fmt.Errorf("%w: follow-up already sent", ErrPrecondition)
		}
		p.FollowUpSentAt = &sent
		p.Status = domain.StatusFollowUpSent
	case domain.TouchBackup:
		if p.FollowUpSentAt == nil {
			return fmt.Errorf("%w: escalation without follow-up", ErrPrecondition)
		}
		if p.SentBackupAt != nil {
			return fmt.Errorf("%w: already escalated", ErrPrecondition)
		}
		p.SentBackupAt = &sent
		p.Status = domain.StatusEscalated
	default:
		return fmt.Errorf("%w: unknown touch type %q", ErrPrecondition, c.Type)
	}
	p.NextAction = domain.ActionWait
	p.NextActionDate = nil
	p.UseBackupEmail = false
	return nil
}

// RecordReply applies an inbound classified reply. Any reply stops automated
// follow-ups; the outcome mapping is fixed.
type RecordReply struct {
	Type       domain.ReplyType
	ReceivedAt time.Time
}

func (c RecordReply) Apply(p *domain.Prospect, now time.Time) error {
	if err := guardOpen(p); err != nil {
		return err
	}
	if p.ReplyReceivedAt != nil {
		return fmt.Errorf("%w: reply already recorded", ErrPrecondition)
	}
	received := c.ReceivedAt
	rt := c.Type
	p.ReplyReceivedAt = &received
	p.ReplyType = &rt
	p.Status = domain.StatusReplied
	p.NextAction = domain.ActionClose
	p.NextActionDate = nil

	outcome, suppress := replyclass.OutcomeFor(c.Type)
	p.Outcome = outcome
	if suppress {
		p.Suppressed = true
		p.SuppressedAt = &now
	}
	return nil
}

// CloseNoResponse finalizes a prospect whose timers ran out without a reply.
type CloseNoResponse struct{}

func (CloseNoResponse) Apply(p *domain.Prospect, now time.Time) error {
	if err := guardOpen(p); err != nil {
		return err
	}
	if p.SentPrimaryAt == nil {
		return fmt.Errorf("%w: close no-response requires a primary send", ErrPrecondition)
	}
	p.Status = domain.StatusClosed
	p.NextAction = domain.ActionNone
	p.NextActionDate = nil
	if p.Outcome == domain.OutcomeOpen {
		p.Outcome = domain.OutcomeNoResponse
	}
	return nil
}
