package campaign

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// Renderer wraps a Liquid engine with a parsed-template cache so a
// campaign's template is compiled once, not once per recipient.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ name | default: "there" }} for recipients without a saved name.
	engine.RegisterFilter("default", func(value any, defaultVal string) any {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	return &Renderer{engine: engine}
}

// Render produces the per-recipient message body. Bindings always
// include "phone" and "name" plus the recipient's custom vars.
func (r *Renderer) Render(template string, rec Recipient) (string, error) {
	tmpl, err := r.parse(template)
	if err != nil {
		return "", err
	}

	bindings := map[string]any{
		"phone": rec.Phone,
		"name":  rec.Name,
	}
	for k, v := range rec.Vars {
		bindings[k] = v
	}

	out, err := tmpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// Validate parses the template without rendering, for create-time checks.
func (r *Renderer) Validate(template string) error {
	_, err := r.parse(template)
	return err
}

func (r *Renderer) parse(template string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(template); ok {
		return cached.(*liquid.Template), nil
	}
	tmpl, err := r.engine.ParseString(template)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	r.cache.Store(template, tmpl)
	return tmpl, nil
}
