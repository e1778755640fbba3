package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/waqtor/waqtor-server/internal/pkg/httputil"
	"github.com/waqtor/waqtor-server/internal/rules"
	"github.com/waqtor/waqtor-server/internal/smartbot"
)

// ListRules returns every auto-reply rule.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"rules": h.rules.List()})
}

// GetRule returns one rule by id.
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.NotFound(w, "rule not found")
		return
	}
	httputil.OK(w, rule)
}

// CreateRule validates and persists a new rule.
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.AutoReplyRule
	if !httputil.Decode(w, r, &rule) {
		return
	}
	if err := rule.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.rules.Create(&rule); err != nil {
		httputil.Conflict(w, err.Error())
		return
	}
	httputil.Created(w, rule)
}

// UpdateRule replaces a rule's definition, keeping its trigger stats.
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var upd rules.AutoReplyRule
	if !httputil.Decode(w, r, &upd) {
		return
	}
	if err := upd.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	rule, err := h.rules.Update(chi.URLParam(r, "id"), &upd)
	if err != nil {
		httputil.NotFound(w, "rule not found")
		return
	}
	httputil.OK(w, rule)
}

// DeleteRule removes a rule.
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(chi.URLParam(r, "id")); err != nil {
		httputil.NotFound(w, "rule not found")
		return
	}
	httputil.NoContent(w)
}

// ToggleRule flips a rule's enabled flag.
func (h *Handlers) ToggleRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Toggle(chi.URLParam(r, "id"))
	if err != nil {
		httputil.NotFound(w, "rule not found")
		return
	}
	httputil.OK(w, rule)
}

// ResetRuleStats zeroes a rule's trigger counter and timestamp.
func (h *Handlers) ResetRuleStats(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.ResetTrigger(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			httputil.NotFound(w, "rule not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rule)
}

// GetSmartBotStats returns aggregate auto-reply counters. Computed from
// the stores directly so the endpoint works with the engine disabled.
func (h *Handlers) GetSmartBotStats(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, smartbot.ComputeStats(h.rules, h.history))
}

// GetReplyHistory returns the recent auto-reply log, newest last.
func (h *Handlers) GetReplyHistory(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"history": h.history.List()})
}

// ClearReplyHistory empties the auto-reply log.
func (h *Handlers) ClearReplyHistory(w http.ResponseWriter, r *http.Request) {
	h.history.Clear()
	httputil.NoContent(w)
}
