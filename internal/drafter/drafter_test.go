package drafter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/showscout/outreach/internal/domain"
)

func testTemplates() Templates {
	return Templates{
		PitchSubject:      `Guest spot on {{ show_name }}?`,
		PitchBody:         `Hi {{ host_name | default: "there" }}, love {{ show_name }}.`,
		FollowUpSubject:   `Re: {{ original_subject }}`,
		FollowUpBody:      `Just floating this back up.`,
		EscalationSubject: `Guest spot on {{ show_name }}?`,
		EscalationBody:    `Tried the main inbox, trying here instead.`,
	}
}

func testProspect() *domain.Prospect {
	return &domain.Prospect{
		ID:   "p-1",
		Name: "The Daily Grind",
		PrimaryEmail: &domain.ContactRef{
			Email:  "host@dailygrind.fm",
			Source: "rss_feed",
		},
	}
}

func TestNewRejectsBrokenTemplate(t *testing.T) {
	tpls := testTemplates()
	tpls.PitchBody = `Hi {{ host_name `
	if _, err := New(tpls); err == nil {
		t.Error("New() should reject an unparseable template")
	}
}

func TestDraftPitch(t *testing.T) {
	d, err := New(testTemplates())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	draft, err := d.DraftPitch(context.Background(), testProspect())
	if err != nil {
		t.Fatalf("DraftPitch() error: %v", err)
	}
	if draft.Subject != "Guest spot on The Daily Grind?" {
		t.Errorf("Subject = %q", draft.Subject)
	}
	if !strings.Contains(draft.Body, "Hi there,") {
		t.Errorf("Body = %q, want default greeting", draft.Body)
	}
}

func TestDraftForTouchReusesStoredPitch(t *testing.T) {
	d, err := New(testTemplates())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	p := testProspect()
	p.DraftSubject = "Approved subject"
	p.DraftBody = "Approved body"

	draft, err := d.DraftForTouch(context.Background(), p, domain.TouchPrimary)
	if err != nil {
		t.Fatalf("DraftForTouch() error: %v", err)
	}
	if draft.Subject != "Approved subject" || draft.Body != "Approved body" {
		t.Errorf("DraftForTouch() = %+v, want stored draft verbatim", draft)
	}
}

func TestDraftForTouchFollowUpReferencesThread(t *testing.T) {
	d, err := New(testTemplates())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	p := testProspect()
	p.DraftSubject = "Guest spot on The Daily Grind?"

	draft, err := d.DraftForTouch(context.Background(), p, domain.TouchFollowUp)
	if err != nil {
		t.Fatalf("DraftForTouch() error: %v", err)
	}
	if draft.Subject != "Re: Guest spot on The Daily Grind?" {
		t.Errorf("Subject = %q", draft.Subject)
	}
}

func TestDraftForTouchUnknownType(t *testing.T) {
	d, err := New(testTemplates())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := d.DraftForTouch(context.Background(), testProspect(), "carrier_pigeon"); err == nil {
		t.Error("DraftForTouch() should reject unknown touch type")
	}
}

func TestTemplateFilters(t *testing.T) {
	te := NewTemplateEngine()
	tests := []struct {
		tpl  string
		ctx  map[string]interface{}
		want string
	}{
		{`{{ name | first_name }}`, map[string]interface{}{"name": "Jane Doe"}, "Jane"},
		{`{{ name | first_name }}`, map[string]interface{}{"name": "Cher"}, "Cher"},
		{`{{ s | truncate: 8 }}`, map[string]interface{}{"s": "a long description"}, "a lon..."},
		{`{{ s | capitalize }}`, map[string]interface{}{"s": "daily grind"}, "Daily grind"},
		{`{{ missing | default: "fallback" }}`, map[string]interface{}{}, "fallback"},
	}
	for _, tt := range tests {
		got, err := te.Render("", tt.tpl, tt.ctx)
		if err != nil {
			t.Errorf("Render(%q) error: %v", tt.tpl, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.tpl, got, tt.want)
		}
	}
}

type stubGenerator struct {
	draft *Draft
	err   error
}

func (g *stubGenerator) GeneratePitch(ctx context.Context, p *domain.Prospect) (*Draft, error) {
	return g.draft, g.err
}

func TestDraftPitchPrefersGenerator(t *testing.T) {
	d, err := New(testTemplates())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	d.WithGenerator(&stubGenerator{draft: &Draft{Subject: "custom", Body: "pitch"}})

	draft, err := d.DraftPitch(context.Background(), testProspect())
	if err != nil {
		t.Fatalf("DraftPitch() error: %v", err)
	}
	if draft.Subject != "custom" || draft.Body != "pitch" {
		t.Errorf("generator draft not used: %+v", draft)
	}
}

func TestDraftPitchFallsBackOnGeneratorError(t *testing.T) {
	d, err := New(testTemplates())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	d.WithGenerator(&stubGenerator{err: errors.New("model unavailable")})

	draft, err := d.DraftPitch(context.Background(), testProspect())
	if err != nil {
		t.Fatalf("DraftPitch() error: %v", err)
	}
	if !strings.Contains(draft.Subject, "The Daily Grind") {
		t.Errorf("template fallback not used, subject = %q", draft.Subject)
	}
}
