// Package sendrules gates every send attempt against throughput and sequence
// limits, independent of what the lifecycle engine decided. All functions are
// pure; the daily counter the caller passes in must come from an atomic
// read-and-increment (see internal/counter), never a plain read.
package sendrules

import (
	"github.com/showscout/outreach/internal/domain"
)

// Limits holds the deliverability caps.
type Limits struct {
	DailyCap     int
	MaxFollowUps int
}

// DefaultLimits returns the production caps.
func DefaultLimits() Limits {
	return Limits{DailyCap: 10, MaxFollowUps: 1}
}

// DenialReason names why a send was refused. Denials are expected policy
// outcomes, logged and recorded as skips, never retried within a pass.
type DenialReason string

const (
	DenyDailyCapReached DenialReason = "daily_cap_reached"
	DenyNotQAApproved   DenialReason = "not_qa_approved"
	DenyNoContact       DenialReason = "no_contact"
	DenyFollowUpLimit   DenialReason = "follow_up_limit"
)

// Authorization is the enforcer's verdict on a requested send.
type Authorization struct {
	Allowed   bool
	TouchType domain.TouchType
	Reason    DenialReason
}

// Enforcer applies the sending rules. Stateless; safe for concurrent use.
type Enforcer struct {
	limits Limits
}

// NewEnforcer creates an enforcer with the given limits.
func NewEnforcer(limits Limits) *Enforcer {
	if limits.DailyCap <= 0 {
		limits.DailyCap = 10
	}
	if limits.MaxFollowUps <= 0 {
		limits.MaxFollowUps = 1
	}
	return &Enforcer{limits: limits}
}

// DeriveTouchType computes which kind of touch a send would record:
// backup when the backup channel is flagged or an escalation is the
// pending action, otherwise primary for the first touch and follow-up
// thereafter. A stored escalation whose flag write was lost still derives
// backup here rather than a follow-up the limit would refuse.
func DeriveTouchType(p *domain.Prospect, touches []domain.Touch) domain.TouchType {
	if p.UseBackupEmail || p.NextAction == domain.ActionEscalate {
		return domain.TouchBackup
	}
	if len(touches) == 0 && p.SentPrimaryAt == nil {
		return domain.TouchPrimary
	}
	return domain.TouchFollowUp
}

// Authorize approves or denies a requested send. Checks run in a fixed
// order: daily cap, QA gate, contact route, follow-up limit. The first
// failing check wins.
func (e *Enforcer) Authorize(p *domain.Prospect, touches []domain.Touch, requested domain.TouchType, todaySentCount int) Authorization {
	if todaySentCount >= e.limits.DailyCap {
		return Authorization{Reason: DenyDailyCapReached}
	}
	if requested == domain.TouchPrimary && p.QAStatus != domain.QAPassed {
		return Authorization{Reason: DenyNotQAApproved}
	}
	if p.TargetEmail() == nil {
		return Authorization{Reason: DenyNoContact}
	}
	if requested == domain.TouchFollowUp &&
		domain.CountTouches(touches, domain.TouchFollowUp) >= e.limits.MaxFollowUps {
		return Authorization{Reason: DenyFollowUpLimit}
	}
	return Authorization{Allowed: true, TouchType: DeriveTouchType(p, touches)}
}
