package handler

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/popeskul/wa-dispatcher/internal/api"
	"github.com/popeskul/wa-dispatcher/internal/middleware"
	"github.com/popeskul/wa-dispatcher/internal/service"
)

// CreateCampaign implements api.ServerInterface.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var body api.CreateCampaignJSONRequestBody
	if !h.decodeBody(w, r, &body) {
		return
	}

	result, err := h.service.Campaign.CreateCampaign(r.Context(), ownerID, toCreateCampaignInput(&body))
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to create campaign")
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, api.CreateCampaignResponse{
		CampaignId:    result.CampaignID,
		TotalContacts: result.TotalContacts,
		Status:        api.CampaignStatus(result.Status),
		ScheduledAt:   result.ScheduledAt,
	})
}

// ListCampaigns implements api.ServerInterface.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request, params api.ListCampaignsParams) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	page, limit := pageParams(params.Page, params.Limit)
	result, err := h.service.Campaign.ListCampaigns(r.Context(), ownerID, page, limit)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to list campaigns")
		return
	}

	campaigns := make([]api.Campaign, 0, len(result.Campaigns))
	for _, c := range result.Campaigns {
		campaigns = append(campaigns, toAPICampaign(c))
	}

	render.JSON(w, r, api.CampaignListResponse{
		Campaigns:  campaigns,
		Pagination: toAPIPagination(result.Pagination),
	})
}

// GetCampaign implements api.ServerInterface.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request, id api.CampaignID) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	campaign, err := h.service.Campaign.GetCampaign(r.Context(), ownerID, id)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to get campaign")
		return
	}

	render.JSON(w, r, toAPICampaign(campaign))
}

// ListCampaignRecipients implements api.ServerInterface.
func (h *Handler) ListCampaignRecipients(w http.ResponseWriter, r *http.Request, id api.CampaignID, params api.ListCampaignRecipientsParams) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	page, limit := pageParams(params.Page, params.Limit)
	result, err := h.service.Campaign.ListRecipients(r.Context(), ownerID, id, page, limit)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to list recipients")
		return
	}

	recipients := make([]api.Recipient, 0, len(result.Recipients))
	for _, rc := range result.Recipients {
		recipients = append(recipients, toAPIRecipient(rc))
	}

	render.JSON(w, r, api.RecipientListResponse{
		Recipients: recipients,
		Pagination: toAPIPagination(result.Pagination),
	})
}

// PauseCampaign implements api.ServerInterface.
func (h *Handler) PauseCampaign(w http.ResponseWriter, r *http.Request, id api.CampaignID) {
	h.applyCommand(w, r, id, service.CommandPause)
}

// ResumeCampaign implements api.ServerInterface.
func (h *Handler) ResumeCampaign(w http.ResponseWriter, r *http.Request, id api.CampaignID) {
	h.applyCommand(w, r, id, service.CommandResume)
}

// CancelCampaign implements api.ServerInterface.
func (h *Handler) CancelCampaign(w http.ResponseWriter, r *http.Request, id api.CampaignID) {
	h.applyCommand(w, r, id, service.CommandCancel)
}

// SendCampaignNow implements api.ServerInterface.
func (h *Handler) SendCampaignNow(w http.ResponseWriter, r *http.Request, id api.CampaignID) {
	h.applyCommand(w, r, id, service.CommandSendNow)
}

// RescheduleCampaign implements api.ServerInterface.
func (h *Handler) RescheduleCampaign(w http.ResponseWriter, r *http.Request, id api.CampaignID) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var body api.RescheduleCampaignJSONRequestBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	if body.ScheduledAt.IsZero() {
		h.sendValidationError(w, r, service.NewValidationError("scheduled_at", "is required"))
		return
	}

	campaign, err := h.service.Control.Reschedule(r.Context(), ownerID, id, body.ScheduledAt)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to reschedule campaign")
		return
	}

	render.JSON(w, r, toAPICampaign(campaign))
}

// ReactivateCampaigns implements api.ServerInterface.
func (h *Handler) ReactivateCampaigns(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	ids, err := h.service.Control.ReactivateBlocked(r.Context(), ownerID)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to reactivate campaigns")
		return
	}

	if ids == nil {
		ids = []uuid.UUID{}
	}
	render.JSON(w, r, api.ReactivateResponse{
		CampaignIds: ids,
		Count:       len(ids),
	})
}

func (h *Handler) applyCommand(w http.ResponseWriter, r *http.Request, id api.CampaignID, cmd service.Command) {
	ownerID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	campaign, err := h.service.Control.Apply(r.Context(), ownerID, id, cmd)
	if err != nil {
		h.handleServiceError(w, r, err, "Failed to apply campaign command")
		return
	}

	render.JSON(w, r, toAPICampaign(campaign))
}

// accountID returns the caller resolved by middleware.Account. Its absence
// means the handler was mounted without that middleware.
func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ownerID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		h.sendError(w, r, http.StatusUnauthorized, middleware.ErrorCodeMissingAccount, middleware.ErrorMessageMissingAccount)
		return uuid.Nil, false
	}
	return ownerID, true
}
