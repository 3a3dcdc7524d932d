package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email       string                 `json:"email" validate:"required,email,max=255"`
	FullName    string                 `json:"full_name" validate:"required,max=255"`
	Address     string                 `json:"address" validate:"max=1000"`
	Location    string                 `json:"location" validate:"max=255"`
	Application map[string]interface{} `json:"application,omitempty"`
}

type RegisterResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type CheckRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type CheckResponse struct {
	Exists     bool `json:"exists"`
	IsApproved bool `json:"is_approved"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyMagicLinkRequest struct {
	Token string `json:"token" validate:"required,len=64,hexadecimal"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Role         string     `json:"role"`
	Tier         string     `json:"tier"`
	RefCode      *string    `json:"ref_code"`
	ReferralLink string     `json:"referral_link,omitempty"`
	IsApproved   bool       `json:"is_approved"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	AmbassadorID *uuid.UUID `json:"ambassador_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}

type VersionResponse struct {
	Commit    string `json:"commit"`
	Ref       string `json:"ref"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}
