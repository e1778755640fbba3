package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/waqtor/waqtor-server/internal/campaign"
	"github.com/waqtor/waqtor-server/internal/pkg/httputil"
)

// ListCampaigns returns all campaigns, newest first.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaigns.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"campaigns": campaigns})
}

// GetCampaign returns one campaign with its progress counters.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	c, err := h.campaigns.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			httputil.NotFound(w, "campaign not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

// CreateCampaign validates and stores a draft campaign.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var c campaign.Campaign
	if !httputil.Decode(w, r, &c) {
		return
	}
	if err := c.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.campaigns.Create(r.Context(), &c); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, c)
}

// DeleteCampaign removes a campaign record.
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if err := h.campaigns.Delete(r.Context(), id); err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			httputil.NotFound(w, "campaign not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// StartCampaign launches a draft campaign in the background.
func (h *Handlers) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if h.session == nil || !h.session.IsReady() {
		httputil.Unavailable(w, "WhatsApp session not connected")
		return
	}
	if err := h.runner.Start(r.Context(), id); err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			httputil.NotFound(w, "campaign not found")
			return
		}
		httputil.Conflict(w, err.Error())
		return
	}
	httputil.OK(w, map[string]string{"status": "started"})
}

// CancelCampaign stops a running campaign.
func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if !h.runner.Cancel(id) {
		httputil.NotFound(w, "campaign is not running")
		return
	}
	httputil.OK(w, map[string]string{"status": "cancelling"})
}

func campaignID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid campaign id")
		return uuid.Nil, false
	}
	return id, true
}
