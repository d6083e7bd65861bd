package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/showscout/outreach/internal/counter"
	"github.com/showscout/outreach/internal/domain"
	"github.com/showscout/outreach/internal/repository/postgres"
)

var testNow = time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

type stubProspects struct {
	prospect *domain.Prospect
	counts   map[domain.Status]int
	updated  *postgres.LifecycleFields
}

func (s *stubProspects) Get(_ context.Context, id string) (*domain.Prospect, error) {
	if s.prospect == nil || s.prospect.ID != id {
		return nil, postgres.ErrNotFound
	}
	cp := *s.prospect
	return &cp, nil
}

func (s *stubProspects) CountByStatus(context.Context) (map[domain.Status]int, error) {
	return s.counts, nil
}

func (s *stubProspects) UpdateLifecycle(_ context.Context, id string, f postgres.LifecycleFields, _ int64) error {
	s.updated = &f
	return nil
}

type stubTouches struct {
	touch   *domain.Touch
	history []domain.Touch
	opened  bool
	bounced bool
	reason  string
}

func (s *stubTouches) ListByProspect(_ context.Context, prospectID string) ([]domain.Touch, error) {
	var out []domain.Touch
	for _, t := range s.history {
		if t.ProspectID == prospectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubTouches) GetByMessageID(_ context.Context, messageID string) (*domain.Touch, error) {
	if s.touch == nil || s.touch.MessageID != messageID {
		return nil, postgres.ErrNotFound
	}
	cp := *s.touch
	return &cp, nil
}

func (s *stubTouches) MarkOpened(_ context.Context, id string, _ time.Time) error {
	s.opened = true
	return nil
}

func (s *stubTouches) MarkBounced(_ context.Context, id string, _ time.Time, reason string) error {
	s.bounced = true
	s.reason = reason
	return nil
}

type stubInbound struct {
	stored []postgres.InboundMessage
}

func (s *stubInbound) Create(_ context.Context, m *postgres.InboundMessage) (string, error) {
	m.ID = "in-1"
	s.stored = append(s.stored, *m)
	return m.ID, nil
}

func newTestServer(p *stubProspects, t *stubTouches, in *stubInbound) *Server {
	s := NewServer(nil, p, t, in, counter.NewMemCounter(10))
	s.now = func() time.Time { return testNow }
	return s
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&stubProspects{}, &stubTouches{}, &stubInbound{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandleStats(t *testing.T) {
	p := &stubProspects{counts: map[domain.Status]int{
		domain.StatusSent:   4,
		domain.StatusClosed: 9,
	}}
	s := newTestServer(p, &stubTouches{}, &stubInbound{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		ByStatus  map[string]int `json:"prospects_by_status"`
		SentToday int            `json:"sent_today"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ByStatus["sent"] != 4 || body.ByStatus["closed"] != 9 {
		t.Errorf("by_status = %v", body.ByStatus)
	}
	if body.SentToday != 0 {
		t.Errorf("sent_today = %d, want 0", body.SentToday)
	}
}

func TestHandleInbound(t *testing.T) {
	in := &stubInbound{}
	s := newTestServer(&stubProspects{}, &stubTouches{}, in)

	payload := `{"thread_id":"th-1","from":"host@dailygrind.fm","subject":"Re: hi","body":"Sounds great"}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/inbound", bytes.NewBufferString(payload)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(in.stored) != 1 {
		t.Fatalf("stored %d messages, want 1", len(in.stored))
	}
	m := in.stored[0]
	if m.ThreadID != "th-1" || m.FromAddress != "host@dailygrind.fm" {
		t.Errorf("stored = %+v", m)
	}
	if !m.ReceivedAt.Equal(testNow) {
		t.Errorf("ReceivedAt = %v, want server clock when omitted", m.ReceivedAt)
	}
}

func TestHandleInboundRejectsMissingFrom(t *testing.T) {
	s := newTestServer(&stubProspects{}, &stubTouches{}, &stubInbound{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/inbound", bytes.NewBufferString(`{"body":"x"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleBouncePermanentSuppresses(t *testing.T) {
	p := &stubProspects{prospect: &domain.Prospect{
		ID:           "p-1",
		Name:         "Show",
		Status:       domain.StatusSent,
		Outcome:      domain.OutcomeOpen,
		PrimaryEmail: &domain.ContactRef{Email: "host@dailygrind.fm", Source: "rss_feed"},
		Version:      2,
	}}
	touches := &stubTouches{touch: &domain.Touch{
		ID: "t-1", ProspectID: "p-1", MessageID: "msg-1",
	}}
	s := newTestServer(p, touches, &stubInbound{})

	payload := `{"message_id":"msg-1","reason":"user unknown","permanent":true}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/bounce", bytes.NewBufferString(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !touches.bounced || touches.reason != "user unknown" {
		t.Error("touch not marked bounced with reason")
	}
	if p.updated == nil {
		t.Fatal("permanent bounce must update the prospect")
	}
	if p.updated.Outcome == nil || *p.updated.Outcome != domain.OutcomeBounced {
		t.Errorf("Outcome update = %v, want bounced", p.updated.Outcome)
	}
	if p.updated.Suppressed == nil || !*p.updated.Suppressed {
		t.Error("permanent bounce must suppress")
	}
}

func TestHandleBounceSoftLeavesProspect(t *testing.T) {
	p := &stubProspects{prospect: &domain.Prospect{ID: "p-1"}}
	touches := &stubTouches{touch: &domain.Touch{ID: "t-1", ProspectID: "p-1", MessageID: "msg-1"}}
	s := newTestServer(p, touches, &stubInbound{})

	payload := `{"message_id":"msg-1","reason":"mailbox full","permanent":false}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/bounce", bytes.NewBufferString(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !touches.bounced {
		t.Error("touch not marked bounced")
	}
	if p.updated != nil {
		t.Error("soft bounce must not touch the prospect")
	}
}

func TestHandleBounceUnknownMessage(t *testing.T) {
	s := newTestServer(&stubProspects{}, &stubTouches{}, &stubInbound{})

	payload := `{"message_id":"mystery","reason":"x"}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/bounce", bytes.NewBufferString(payload)))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, unknown messages are acknowledged", rec.Code)
	}
}

func TestHandleOpen(t *testing.T) {
	touches := &stubTouches{touch: &domain.Touch{ID: "t-1", ProspectID: "p-1", MessageID: "msg-1"}}
	s := newTestServer(&stubProspects{}, touches, &stubInbound{})

	payload := `{"message_id":"msg-1"}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/open", bytes.NewBufferString(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !touches.opened {
		t.Error("touch not marked opened")
	}
}

func TestProspectView(t *testing.T) {
	sentAt := testNow.Add(-9 * 24 * time.Hour)
	p := &stubProspects{prospect: &domain.Prospect{
		ID:            "p-1",
		Name:          "The Daily Grind",
		Tier:          domain.Tier1,
		Status:        domain.StatusSent,
		NextAction:    domain.ActionFollowUp,
		SentPrimaryAt: &sentAt,
	}}
	touches := &stubTouches{history: []domain.Touch{
		{ID: "t-1", ProspectID: "p-1", Type: domain.TouchPrimary, SentAt: sentAt, Opened: true},
	}}
	s := newTestServer(p, touches, &stubInbound{})

	req := httptest.NewRequest(http.MethodGet, "/prospects/p-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var view domain.CampaignView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ShowName != "The Daily Grind" {
		t.Errorf("show_name = %q", view.ShowName)
	}
	if view.TouchCount != 1 || !view.LastOpened {
		t.Errorf("touch summary wrong: %+v", view)
	}
	if view.DaysInFlight != 9 {
		t.Errorf("days_in_flight = %d, want 9", view.DaysInFlight)
	}
}

func TestProspectViewNotFound(t *testing.T) {
	s := newTestServer(&stubProspects{}, &stubTouches{}, &stubInbound{})

	req := httptest.NewRequest(http.MethodGet, "/prospects/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
