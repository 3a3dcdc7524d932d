package models

import (
	"time"

	"github.com/google/uuid"
)

// Click is one visit through a member's referral link. Rows are never updated.
type Click struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	URL       string    `gorm:"type:text" json:"url"`
	IPHash    string    `gorm:"size:64;index:idx_clicks_ip_created,priority:1" json:"-"`
	UserAgent string    `gorm:"type:text" json:"user_agent"`
	CreatedAt time.Time `gorm:"not null;index:idx_clicks_ip_created,priority:2" json:"created_at"`
}

// Lead is a prospective customer captured by the external form, keyed by email.
type Lead struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email             string     `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Name              string     `gorm:"size:255" json:"name"`
	Source            string     `gorm:"size:50" json:"source"`
	AttributionSource string     `gorm:"size:10;not null;default:'NONE'" json:"attribution_source"`
	ReferrerID        *uuid.UUID `gorm:"type:uuid;index" json:"referrer_id,omitempty"`
	RefCode           *string    `gorm:"size:255" json:"ref_code,omitempty"`
	UTMSource         string     `gorm:"size:255" json:"utm_source,omitempty"`
	UTMMedium         string     `gorm:"size:255" json:"utm_medium,omitempty"`
	UTMCampaign       string     `gorm:"size:255" json:"utm_campaign,omitempty"`
	UTMTerm           string     `gorm:"size:255" json:"utm_term,omitempty"`
	UTMContent        string     `gorm:"size:255" json:"utm_content,omitempty"`
	IPHash            string     `gorm:"size:64" json:"-"`
	UserAgent         string     `gorm:"type:text" json:"user_agent,omitempty"`
	FirstTouchAt      time.Time  `gorm:"not null" json:"first_touch_at"`
	LastTouchAt       time.Time  `gorm:"not null" json:"last_touch_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
