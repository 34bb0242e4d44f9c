package handler

import (
	"database/sql"
	"time"

	"github.com/popeskul/wa-dispatcher/internal/api"
	"github.com/popeskul/wa-dispatcher/internal/models"
	"github.com/popeskul/wa-dispatcher/internal/service"
)

func toCreateCampaignInput(body *api.CreateCampaignRequest) *service.CreateCampaignInput {
	input := &service.CreateCampaignInput{
		Name:        deref(body.Name),
		Message:     deref(body.Message),
		MediaURL:    deref(body.MediaUrl),
		MediaType:   deref(body.MediaType),
		ScheduledAt: body.ScheduledAt,
	}
	if body.MessageVariations != nil {
		input.Variations = *body.MessageVariations
	}
	if body.TargetTags != nil {
		input.TargetTags = *body.TargetTags
	}
	if body.Clients != nil {
		input.Clients = make([]service.ClientInput, 0, len(*body.Clients))
		for _, c := range *body.Clients {
			input.Clients = append(input.Clients, service.ClientInput{Name: c.Name, Phone: c.Phone})
		}
	}
	return input
}

func toAPICampaign(c *models.Campaign) api.Campaign {
	out := api.Campaign{
		Id:                c.ID,
		Name:              c.Name,
		Status:            api.CampaignStatus(c.Status),
		MessageVariations: []string(c.Variations),
		MediaUrl:          nullString(c.MediaURL),
		MediaType:         nullString(c.MediaType),
		TotalContacts:     c.TotalContacts,
		SentCount:         c.SentCount,
		FailedCount:       c.FailedCount,
		BlockedCount:      c.BlockedCount,
		ScheduledAt:       nullTime(c.ScheduledAt),
		CompletedAt:       nullTime(c.CompletedAt),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	if out.MessageVariations == nil {
		out.MessageVariations = []string{}
	}
	if len(c.TargetTags) > 0 {
		tags := []string(c.TargetTags)
		out.TargetTags = &tags
	}
	if reason := c.Reason(); reason != models.PauseReasonNone {
		r := api.CampaignPauseReason(reason)
		out.PauseReason = &r
	}
	return out
}

func toAPIRecipient(r *models.Recipient) api.Recipient {
	return api.Recipient{
		Id:             r.ID,
		Position:       r.Position,
		Name:           r.Name,
		PhoneNumber:    r.Phone,
		VariationIndex: r.VariationIndex,
		Message:        r.Message,
		Status:         api.RecipientStatus(r.Status),
		Error:          nullString(r.Error),
		SentAt:         nullTime(r.SentAt),
	}
}

func toAPIPagination(p service.Pagination) api.Pagination {
	return api.Pagination{
		CurrentPage:  p.CurrentPage,
		TotalPages:   p.TotalPages,
		TotalItems:   int64(p.TotalItems),
		ItemsPerPage: p.ItemsPerPage,
	}
}

// pageParams passes zero for absent values; the service applies defaults and caps.
func pageParams(page, limit *int) (int, int) {
	var p, l int
	if page != nil {
		p = *page
	}
	if limit != nil {
		l = *limit
	}
	return p, l
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
