package drafter

import (
	"context"
	"fmt"

	"github.com/showscout/outreach/internal/domain"
	"github.com/showscout/outreach/internal/pkg/logger"
)

// Draft is a rendered subject and body ready for QA review.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Templates holds the Liquid source for each outbound message kind. The
// follow-up and escalation bodies reference the original thread, so they
// stay short.
type Templates struct {
	PitchSubject      string `yaml:"pitch_subject"`
	PitchBody         string `yaml:"pitch_body"`
	FollowUpSubject   string `yaml:"follow_up_subject"`
	FollowUpBody      string `yaml:"follow_up_body"`
	EscalationSubject string `yaml:"escalation_subject"`
	EscalationBody    string `yaml:"escalation_body"`
}

// Generator produces a personalized draft for a prospect, typically
// backed by an LLM. Implementations may fail or return nil; the drafter
// falls back to templates in either case.
type Generator interface {
	GeneratePitch(ctx context.Context, p *domain.Prospect) (*Draft, error)
}

// Drafter renders outreach drafts for prospects.
type Drafter struct {
	engine    *TemplateEngine
	templates Templates
	generator Generator
}

// New creates a drafter. Templates are validated up front so a broken
// template fails at startup rather than mid-send.
func New(templates Templates) (*Drafter, error) {
	engine := NewTemplateEngine()
	for name, src := range map[string]string{
		"pitch_subject":      templates.PitchSubject,
		"pitch_body":         templates.PitchBody,
		"follow_up_subject":  templates.FollowUpSubject,
		"follow_up_body":     templates.FollowUpBody,
		"escalation_subject": templates.EscalationSubject,
		"escalation_body":    templates.EscalationBody,
	} {
		if src == "" {
			continue
		}
		if err := engine.Parse(src); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
	}
	return &Drafter{engine: engine, templates: templates}, nil
}

// WithGenerator installs a pitch generator. The templates remain the
// fallback when generation fails.
func (d *Drafter) WithGenerator(g Generator) *Drafter {
	d.generator = g
	return d
}

// DraftPitch produces the initial pitch for an approved prospect. A
// configured generator is tried first; template rendering covers
// generator errors so a send never blocks on the generator.
func (d *Drafter) DraftPitch(ctx context.Context, p *domain.Prospect) (*Draft, error) {
	if d.generator != nil {
		if draft, err := d.generator.GeneratePitch(ctx, p); err == nil && draft != nil {
			return draft, nil
		} else if err != nil {
			logger.Warn("pitch generation failed, falling back to template",
				"prospect_id", p.ID, "error", err.Error())
		}
	}
	return d.render("pitch", d.templates.PitchSubject, d.templates.PitchBody, p)
}

// DraftForTouch renders the message for a given touch type, reusing the
// stored pitch draft for the primary send.
func (d *Drafter) DraftForTouch(ctx context.Context, p *domain.Prospect, t domain.TouchType) (*Draft, error) {
	switch t {
	case domain.TouchPrimary:
		if p.DraftSubject != "" || p.DraftBody != "" {
			return &Draft{Subject: p.DraftSubject, Body: p.DraftBody}, nil
		}
		return d.DraftPitch(ctx, p)
	case domain.TouchFollowUp:
		return d.render("follow_up", d.templates.FollowUpSubject, d.templates.FollowUpBody, p)
	case domain.TouchBackup:
		return d.render("escalation", d.templates.EscalationSubject, d.templates.EscalationBody, p)
	default:
		return nil, fmt.Errorf("unknown touch type %q", t)
	}
}

func (d *Drafter) render(kind, subjectTpl, bodyTpl string, p *domain.Prospect) (*Draft, error) {
	tctx := templateContext(p)
	subject, err := d.engine.Render(kind+":subject", subjectTpl, tctx)
	if err != nil {
		return nil, err
	}
	body, err := d.engine.Render(kind+":body", bodyTpl, tctx)
	if err != nil {
		return nil, err
	}
	return &Draft{Subject: subject, Body: body}, nil
}

func templateContext(p *domain.Prospect) map[string]interface{} {
	ctx := map[string]interface{}{
		"show_name":        p.Name,
		"original_subject": p.DraftSubject,
	}
	if c := p.TargetEmail(); c != nil {
		ctx["contact_email"] = c.Email
	}
	return ctx
}
