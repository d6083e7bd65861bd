// Package drafter turns an approved prospect into a personalized email
// draft using Liquid templates.
package drafter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// TemplateEngine renders Liquid templates with outreach-specific filters.
// Parsed templates are cached by key so the send loop doesn't re-parse the
// same pitch on every prospect.
type TemplateEngine struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateEngine creates a template engine with custom filters registered.
func NewTemplateEngine() *TemplateEngine {
	te := &TemplateEngine{engine: liquid.NewEngine()}
	te.registerFilters()
	return te
}

func (te *TemplateEngine) registerFilters() {
	// Fallback for missing personalization: {{ host_name | default: "there" }}
	te.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// First name only: {{ host_name | first_name }} — "Jane Doe" → "Jane".
	te.engine.RegisterFilter("first_name", func(s string) string {
		s = strings.TrimSpace(s)
		if i := strings.IndexByte(s, ' '); i > 0 {
			return s[:i]
		}
		return s
	})

	te.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + s[1:]
	})

	// Trim show descriptions pulled from feeds: {{ description | truncate: 120 }}
	te.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})
}

// Parse validates a template without rendering it.
func (te *TemplateEngine) Parse(templateStr string) error {
	_, err := te.engine.ParseString(templateStr)
	return err
}

// Render processes a template with the given context, caching the parsed
// form under cacheKey when one is provided.
func (te *TemplateEngine) Render(cacheKey, templateStr string, ctx map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := te.cache.Load(cacheKey); ok {
			return cached.(*liquid.Template).RenderString(ctx)
		}
	}

	tpl, err := te.engine.ParseString(templateStr)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	if cacheKey != "" {
		te.cache.Store(cacheKey, tpl)
	}

	out, err := tpl.RenderString(ctx)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}
