package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/waqtor/waqtor-server/internal/pkg/httputil"
	"github.com/waqtor/waqtor-server/internal/webhook"
)

// ListWebhooks returns every registered webhook.
func (h *Handlers) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"webhooks": hooks})
}

// GetWebhook returns one webhook by id.
func (h *Handlers) GetWebhook(w http.ResponseWriter, r *http.Request) {
	wh, err := h.webhooks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			httputil.NotFound(w, "webhook not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, wh)
}

// CreateWebhook validates and registers a new webhook.
func (h *Handlers) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var wh webhook.Webhook
	if !httputil.Decode(w, r, &wh) {
		return
	}
	if err := wh.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.webhooks.Create(r.Context(), &wh); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, wh)
}

// UpdateWebhook replaces a webhook's definition.
func (h *Handlers) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var wh webhook.Webhook
	if !httputil.Decode(w, r, &wh) {
		return
	}
	wh.ID = chi.URLParam(r, "id")
	if err := wh.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.webhooks.Update(r.Context(), &wh); err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			httputil.NotFound(w, "webhook not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, wh)
}

// DeleteWebhook removes a webhook registration.
func (h *Handlers) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhooks.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			httputil.NotFound(w, "webhook not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// TestWebhook fires a synchronous test delivery and returns its result.
func (h *Handlers) TestWebhook(w http.ResponseWriter, r *http.Request) {
	wh, err := h.webhooks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			httputil.NotFound(w, "webhook not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	entry := h.dispatcher.Test(r.Context(), wh)
	httputil.OK(w, entry)
}

// GetWebhookLogs returns recent delivery attempts for one webhook,
// newest first. ?limit= caps the page size (default 50).
func (h *Handlers) GetWebhookLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	httputil.OK(w, map[string]any{
		"logs": h.logs.List(chi.URLParam(r, "id"), limit),
	})
}

// GetWebhookStats summarizes the in-memory delivery log.
func (h *Handlers) GetWebhookStats(w http.ResponseWriter, r *http.Request) {
	counts := h.logs.CountByStatus()
	httputil.OK(w, map[string]any{
		"total_logged": h.logs.Len(),
		"success":      counts[webhook.StatusSuccess],
		"failed":       counts[webhook.StatusFailed],
		"failed_final": counts[webhook.StatusFailedFinal],
	})
}
