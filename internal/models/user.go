package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"

	TierAdvocate   = "ADVOCATE"
	TierAmbassador = "AMBASSADOR"
)

// User is a circle member, applicant or admin.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Name         string         `gorm:"size:255" json:"name"`
	FullName     string         `gorm:"size:255" json:"full_name"`
	Address      string         `gorm:"type:text" json:"address,omitempty"`
	Location     string         `gorm:"size:255" json:"location,omitempty"`
	Application  datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"application,omitempty"`
	Password     string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:20;not null;default:'MEMBER'" json:"role"`
	Tier         string         `gorm:"size:20;not null;default:'ADVOCATE'" json:"tier"`
	RefCode      *string        `gorm:"size:64;uniqueIndex" json:"ref_code"`
	DiscountCode *string        `gorm:"size:64" json:"discount_code,omitempty"`
	IsApproved   bool           `gorm:"not null;default:false;index" json:"is_approved"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy   *uuid.UUID     `gorm:"type:uuid" json:"approved_by,omitempty"`
	AmbassadorID *uuid.UUID     `gorm:"type:uuid;index" json:"ambassador_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName prefers the full name given at registration.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
