package sendrules

import (
	"testing"
	"time"

	"github.com/showscout/outreach/internal/domain"
)

func sendableProspect() *domain.Prospect {
	return &domain.Prospect{
		ID:       "p-1",
		Tier:     domain.Tier1,
		Status:   domain.StatusQAApproved,
		QAStatus: domain.QAPassed,
		PrimaryEmail: &domain.ContactRef{
			Email:  "host@example.com",
			Source: "podcastindex",
		},
	}
}

func TestAuthorize_DailyCap(t *testing.T) {
	e := NewEnforcer(DefaultLimits())
	p := sendableProspect()

	auth := e.Authorize(p, nil, domain.TouchPrimary, 10)
	if auth.Allowed || auth.Reason != DenyDailyCapReached {
		t.Errorf("at cap: got %+v, want deny daily_cap_reached", auth)
	}

	auth = e.Authorize(p, nil, domain.TouchPrimary, 9)
	if !auth.Allowed {
		t.Errorf("one below cap: got %+v, want allow", auth)
	}
}

func TestAuthorize_QAGate(t *testing.T) {
	e := NewEnforcer(DefaultLimits())

	for _, qa := range []domain.QAStatus{domain.QAPending, domain.QAFailed} {
		p := sendableProspect()
		p.QAStatus = qa
		auth := e.Authorize(p, nil, domain.TouchPrimary, 0)
		if auth.Allowed || auth.Reason != DenyNotQAApproved {
			t.Errorf("qa=%s: got %+v, want deny not_qa_approved", qa, auth)
		}
	}

	// The QA gate applies to primary sends only.
	p := sendableProspect()
	p.QAStatus = domain.QAPending
	now := time.Now()
	p.SentPrimaryAt = &now
	auth := e.Authorize(p, []domain.Touch{{Type: domain.TouchPrimary, SentAt: now}}, domain.TouchFollowUp, 0)
	if !auth.Allowed {
		t.Errorf("follow-up with pending QA: got %+v, want allow", auth)
	}
}

func TestAuthorize_NoContact(t *testing.T) {
	e := NewEnforcer(DefaultLimits())

	p := sendableProspect()
	p.PrimaryEmail = nil
	auth := e.Authorize(p, nil, domain.TouchPrimary, 0)
	if auth.Allowed || auth.Reason != DenyNoContact {
		t.Errorf("no primary email: got %+v, want deny no_contact", auth)
	}

	// Backup-flagged send with no backup address.
	p = sendableProspect()
	p.UseBackupEmail = true
	auth = e.Authorize(p, nil, domain.TouchBackup, 0)
	if auth.Allowed || auth.Reason != DenyNoContact {
		t.Errorf("backup flagged, no backup email: got %+v, want deny no_contact", auth)
	}
}

func TestAuthorize_FollowUpLimit(t *testing.T) {
	e := NewEnforcer(DefaultLimits())
	p := sendableProspect()
	now := time.Now()
	p.SentPrimaryAt = &now

	touches := []domain.Touch{
		{Type: domain.TouchFollowUp, SentAt: now},
		{Type: domain.TouchPrimary, SentAt: now.AddDate(0, 0, -7)},
	}
	auth := e.Authorize(p, touches, domain.TouchFollowUp, 0)
	if auth.Allowed || auth.Reason != DenyFollowUpLimit {
		t.Errorf("second follow-up: got %+v, want deny follow_up_limit", auth)
	}
}

func TestDeriveTouchType(t *testing.T) {
	now := time.Now()
	primary := []domain.Touch{{Type: domain.TouchPrimary, SentAt: now}}

	tests := []struct {
		name    string
		mutate  func(*domain.Prospect)
		touches []domain.Touch
		want    domain.TouchType
	}{
		{"first send is primary", func(p *domain.Prospect) {}, nil, domain.TouchPrimary},
		{"prior touch makes follow-up", func(p *domain.Prospect) { p.SentPrimaryAt = &now }, primary, domain.TouchFollowUp},
		{"backup flag wins", func(p *domain.Prospect) { p.UseBackupEmail = true }, primary, domain.TouchBackup},
		{"stored escalation routes backup without the flag", func(p *domain.Prospect) {
			p.NextAction = domain.ActionEscalate
			p.SentPrimaryAt = &now
		}, primary, domain.TouchBackup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sendableProspect()
			tt.mutate(p)
			if got := DeriveTouchType(p, tt.touches); got != tt.want {
				t.Errorf("DeriveTouchType() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAuthorize_OrderOfChecks(t *testing.T) {
	// A prospect failing every rule at once must report the daily cap first.
	e := NewEnforcer(DefaultLimits())
	p := sendableProspect()
	p.QAStatus = domain.QAPending
	p.PrimaryEmail = nil

	auth := e.Authorize(p, nil, domain.TouchPrimary, 10)
	if auth.Reason != DenyDailyCapReached {
		t.Errorf("got %s, want daily_cap_reached checked first", auth.Reason)
	}
}
