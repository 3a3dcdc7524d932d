package dto

import "github.com/google/uuid"

type ClickRequest struct {
	Ref string `json:"ref" validate:"required,max=64"`
	URL string `json:"url" validate:"omitempty,max=2048"`
}

type ClickResponse struct {
	Status     string    `json:"status"`
	ReferrerID uuid.UUID `json:"referrer_id"`
}

// LeadRequest is the payload posted by the Webflow form integration.
type LeadRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Name        string `json:"name" validate:"max=255"`
	Ref         string `json:"ref" validate:"max=255"`
	UTMSource   string `json:"utm_source" validate:"max=255"`
	UTMMedium   string `json:"utm_medium" validate:"max=255"`
	UTMCampaign string `json:"utm_campaign" validate:"max=255"`
	UTMTerm     string `json:"utm_term" validate:"max=255"`
	UTMContent  string `json:"utm_content" validate:"max=255"`
}

type LeadResponse struct {
	Status    string     `json:"status"`
	LeadID    uuid.UUID  `json:"lead_id"`
	Referrer  *uuid.UUID `json:"referrer"`
	AffSource string     `json:"aff_source"`
}
