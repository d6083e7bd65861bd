// Package lifecycle implements the outreach state machine: given a prospect
// and its touch history, it decides the next required action and when it
// becomes due. The engine is pure and idempotent — re-evaluating unchanged
// input yields the identical decision, so scheduler passes are re-run safe.
package lifecycle

import (
	"errors"
	"time"

	"github.com/showscout/outreach/internal/domain"
)

// Rules holds the timing thresholds the engine evaluates against.
type Rules struct {
	FollowUpDelayDays   int
	EscalationDelayDays int
	CloseNoResponseDays int
}

// DefaultRules returns the production thresholds.
func DefaultRules() Rules {
	return Rules{
		FollowUpDelayDays:   7,
		EscalationDelayDays: 7,
		CloseNoResponseDays: 14,
	}
}

// Decision is the tuple the engine computes for a prospect.
// UseBackupEmail rides along so an escalation decision also routes the
// next send to the backup contact; persisting the action without the
// flag would leave the send path deriving a follow-up it cannot take.
type Decision struct {
	NextAction     domain.NextAction
	NextActionDate *time.Time
	Status         domain.Status
	UseBackupEmail bool
}

// ErrTimerAnchorMissing flags a record whose timestamps are internally
// inconsistent (e.g. a follow-up recorded with no primary send). Such
// records are surfaced for manual review and excluded from automated
// transitions; the engine never repairs them silently.
var ErrTimerAnchorMissing = errors.New("lifecycle: timer anchor missing for recorded event")

// Engine computes lifecycle decisions. It performs no I/O.
type Engine struct {
	rules Rules
}

// NewEngine creates an engine with the given timing rules.
func NewEngine(rules Rules) *Engine {
	if rules.FollowUpDelayDays <= 0 {
		rules.FollowUpDelayDays = 7
	}
	if rules.EscalationDelayDays <= 0 {
		rules.EscalationDelayDays = 7
	}
	if rules.CloseNoResponseDays <= 0 {
		rules.CloseNoResponseDays = 14
	}
	return &Engine{rules: rules}
}

// anchors are the effective event timestamps the engine reasons about.
// Touch history wins over the prospect's denormalized fields so that a
// partial failure (touch written, prospect update lost) heals on the next
// pass instead of repeating the send.
type anchors struct {
	sentPrimary *time.Time
	followUp    *time.Time
	sentBackup  *time.Time
}

func deriveAnchors(p *domain.Prospect, touches []domain.Touch) anchors {
	a := anchors{
		sentPrimary: p.SentPrimaryAt,
		followUp:    p.FollowUpSentAt,
		sentBackup:  p.SentBackupAt,
	}
	for i := range touches {
		t := &touches[i]
		sent := t.SentAt
		switch t.Type {
		case domain.TouchPrimary:
			if a.sentPrimary == nil {
				a.sentPrimary = &sent
			}
		case domain.TouchFollowUp:
			if a.followUp == nil {
				a.followUp = &sent
			}
		case domain.TouchBackup:
			if a.sentBackup == nil {
				a.sentBackup = &sent
			}
		}
	}
	return a
}

func (a anchors) validate() error {
	if a.sentPrimary == nil && (a.followUp != nil || a.sentBackup != nil) {
		return ErrTimerAnchorMissing
	}
	if a.followUp == nil && a.sentBackup != nil {
		return ErrTimerAnchorMissing
	}
	return nil
}

// daysBetween is an integer floor of elapsed calendar days, not business days.
func daysBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Evaluate computes the next action tuple for a prospect. The second return
// is false when no update applies (prospect awaiting tiering upstream, or a
// data-integrity violation was flagged via the error).
//
// Tie-breaks always favor the earliest-listed branch: reply beats everything,
// then the pre-send gating chain, then follow-up, escalation, close, wait.
func (e *Engine) Evaluate(p *domain.Prospect, touches []domain.Touch, now time.Time) (Decision, bool, error) {
	// Terminal signal wins over everything else.
	if p.ReplyReceivedAt != nil {
		return Decision{NextAction: domain.ActionClose, Status: domain.StatusReplied}, true, nil
	}

	a := deriveAnchors(p, touches)
	if err := a.validate(); err != nil {
		return Decision{}, false, err
	}

	due := now
	if a.sentPrimary == nil {
		switch {
		case p.Status == domain.StatusQAApproved:
			return Decision{NextAction: domain.ActionSend, NextActionDate: &due, Status: domain.StatusQAApproved}, true, nil
		case p.Status == domain.StatusDrafted:
			return Decision{NextAction: domain.ActionQA, NextActionDate: &due, Status: domain.StatusDrafted}, true, nil
		case p.Tier.Contactable():
			return Decision{NextAction: domain.ActionDraft, NextActionDate: &due, Status: domain.StatusReadyToDraft}, true, nil
		default:
			// Awaiting tiering; handled upstream.
			return Decision{}, false, nil
		}
	}

	if a.followUp == nil {
		if daysBetween(*a.sentPrimary, now) >= e.rules.FollowUpDelayDays {
			return Decision{NextAction: domain.ActionFollowUp, NextActionDate: &due, Status: domain.StatusFollowUpDue}, true, nil
		}
		next := a.sentPrimary.AddDate(0, 0, e.rules.FollowUpDelayDays)
		return Decision{NextAction: domain.ActionWait, NextActionDate: &next, Status: domain.StatusSent}, true, nil
	}

	if p.HasBackupEmail() && a.sentBackup == nil {
		if daysBetween(*a.followUp, now) >= e.rules.EscalationDelayDays {
			return Decision{NextAction: domain.ActionEscalate, NextActionDate: &due, Status: domain.StatusEscalationDue, UseBackupEmail: true}, true, nil
		}
		next := a.followUp.AddDate(0, 0, e.rules.EscalationDelayDays)
		return Decision{NextAction: domain.ActionWait, NextActionDate: &next, Status: domain.StatusFollowUpSent}, true, nil
	}

	// Close condition on the most recent touch timestamp. A prospect with no
	// backup route closes on the escalation delay; one that escalated waits
	// out the full no-response window. The no-backup case reusing the
	// escalation threshold matches the product's observed behavior.
	lastTouch := a.followUp
	if a.sentBackup != nil {
		lastTouch = a.sentBackup
	}
	sinceLast := daysBetween(*lastTouch, now)
	if a.sentBackup == nil {
		if sinceLast >= e.rules.EscalationDelayDays {
			return Decision{NextAction: domain.ActionClose, Status: domain.StatusClosed}, true, nil
		}
		next := lastTouch.AddDate(0, 0, e.rules.EscalationDelayDays)
		return Decision{NextAction: domain.ActionWait, NextActionDate: &next, Status: domain.StatusFollowUpSent}, true, nil
	}
	if sinceLast >= e.rules.CloseNoResponseDays {
		return Decision{NextAction: domain.ActionClose, Status: domain.StatusClosed}, true, nil
	}
	next := lastTouch.AddDate(0, 0, e.rules.CloseNoResponseDays)
	return Decision{NextAction: domain.ActionWait, NextActionDate: &next, Status: domain.StatusEscalated}, true, nil
}

// Differs reports whether applying the decision would change the stored
// prospect. The scheduler persists only prospects whose computed tuple
// differs from stored state.
func (d Decision) Differs(p *domain.Prospect) bool {
	if d.NextAction != p.NextAction || d.Status != p.Status || d.UseBackupEmail != p.UseBackupEmail {
		return true
	}
	switch {
	case d.NextActionDate == nil && p.NextActionDate == nil:
		return false
	case d.NextActionDate == nil || p.NextActionDate == nil:
		return true
	default:
		return !d.NextActionDate.Equal(*p.NextActionDate)
	}
}
