package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/waqtor/waqtor-server/internal/pkg/httputil"
	"github.com/waqtor/waqtor-server/internal/throttle"
)

// GetSessionStatus reports the WhatsApp session state.
func (h *Handlers) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		httputil.Unavailable(w, "WhatsApp session not configured")
		return
	}
	httputil.OK(w, h.session.Status())
}

// GetSessionQR returns the pending pairing code, if one is waiting to
// be scanned.
func (h *Handlers) GetSessionQR(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		httputil.Unavailable(w, "WhatsApp session not configured")
		return
	}
	code, ok := h.session.PendingQR()
	if !ok {
		httputil.NotFound(w, "no pairing code pending")
		return
	}
	httputil.OK(w, map[string]string{"qr": code})
}

type sendMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// SendMessage delivers a single text message through the session,
// subject to the account send throttle.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Text) == "" {
		httputil.BadRequest(w, "to and text are required")
		return
	}
	if h.session == nil || !h.session.IsReady() {
		httputil.Unavailable(w, "WhatsApp session not connected")
		return
	}

	if h.limiter != nil {
		allowed, wait, err := h.limiter.CheckAndIncrement(r.Context(), 1)
		if err != nil {
			if errors.Is(err, throttle.ErrDailyLimit) {
				httputil.Error(w, http.StatusTooManyRequests, "daily send limit exceeded")
				return
			}
			httputil.InternalError(w, err)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			httputil.Error(w, http.StatusTooManyRequests, "send limit reached, retry later")
			return
		}
	}

	if err := h.session.SendText(r.Context(), req.To, req.Text); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "sent"})
}

// HealthCheck reports basic liveness plus session readiness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.session != nil && h.session.IsReady()
	httputil.OK(w, map[string]any{
		"status":          "ok",
		"session_ready":   ready,
		"smartbot_active": h.bot != nil,
	})
}
