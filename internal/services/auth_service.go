package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/mailer"
	"github.com/lowtherloudspeakers/listening-circle/internal/metrics"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"github.com/lowtherloudspeakers/listening-circle/internal/throttle"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuthService struct {
	db      *gorm.DB
	cfg     *config.Config
	mail    mailer.Mailer
	limiter *throttle.Limiter
}

func NewAuthService(db *gorm.DB, cfg *config.Config, mail mailer.Mailer, limiter *throttle.Limiter) *AuthService {
	return &AuthService{db: db, cfg: cfg, mail: mail, limiter: limiter}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unapproved advocate and notifies the admin inbox.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	application := datatypes.JSON("{}")
	if len(req.Application) > 0 {
		b, err := json.Marshal(req.Application)
		if err != nil {
			return nil, fmt.Errorf("encode application: %w", err)
		}
		application = datatypes.JSON(b)
	}

	user := models.User{
		ID:          uuid.New(),
		Email:       email,
		FullName:    strings.TrimSpace(req.FullName),
		Address:     strings.TrimSpace(req.Address),
		Location:    strings.TrimSpace(req.Location),
		Application: application,
		Role:        models.RoleMember,
		Tier:        models.TierAdvocate,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.cfg.AdminNotifyEmail != "" {
		msg, err := mailer.ApplicationReceived(s.cfg.AdminNotifyEmail, user.DisplayName(), user.Email, user.Location, s.cfg.PublicBaseURL+"/admin")
		if err == nil {
			err = s.mail.Send(ctx, msg)
		}
		if err != nil {
			slog.Error("application notification failed", "error", err, "user_id", user.ID.String(), "action", "register")
		}
	}

	slog.Info("application received", "user_id", user.ID.String())
	return &user, nil
}

func (s *AuthService) Check(ctx context.Context, email string) (*dto.CheckResponse, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "is_approved").Where("email = ?", normalizeEmail(email)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &dto.CheckResponse{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	return &dto.CheckResponse{Exists: true, IsApproved: user.IsApproved}, nil
}

// Login verifies a password. Failures count against clientIP in the throttle store.
func (s *AuthService) Login(ctx context.Context, clientIP string, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	if err := s.limiter.Check(ctx, clientIP); err != nil {
		return nil, err
	}

	user, err := s.verifyPassword(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.LoginFailures.Inc()
			if ferr := s.limiter.Fail(ctx, clientIP); ferr != nil {
				slog.Warn("throttle store unavailable", "error", ferr)
			}
		}
		return nil, err
	}
	if !user.IsApproved {
		return nil, ErrNotApproved
	}

	if err := s.limiter.Reset(ctx, clientIP); err != nil {
		slog.Warn("throttle store unavailable", "error", err)
	}
	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) verifyPassword(ctx context.Context, req *dto.LoginRequest) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// RequestMagicLink emails a one-time sign-in link to approved members. Unknown and
// unapproved addresses are ignored so callers cannot test for membership.
func (s *AuthService) RequestMagicLink(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ? AND is_approved = true", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	raw, err := randomHex(32)
	if err != nil {
		return err
	}
	record := models.SignInToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: time.Now().Add(s.cfg.MagicLinkExpiry),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("store sign-in token: %w", err)
	}

	link := s.cfg.PublicBaseURL + "/auth/verify?token=" + raw
	msg, err := mailer.MagicLink(user.Email, user.DisplayName(), link, s.cfg.MagicLinkExpiry.String())
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, msg)
}

// VerifyMagicLink consumes a sign-in token. A token can only be used once.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string) (*dto.AuthResponse, error) {
	tokenHash := hashToken(token)
	now := time.Now()

	var stored models.SignInToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SignInToken{}).
			Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}
		return tx.Where("token_hash = ?", tokenHash).First(&stored).Error
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("consume sign-in token: %w", err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsApproved {
		return nil, ErrNotApproved
	}
	return s.generateTokenPair(ctx, &user)
}

func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	tokenHash := hashToken(req.RefreshToken)
	db := s.db.WithContext(ctx)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND revoked = false", tokenHash).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	// Only one caller can win the revoke for a given token.
	res := db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = false", stored.ID).
		Update("revoked", true)
	if res.Error != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", res.Error)
	}
	if res.RowsAffected != 1 || time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := db.First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsApproved {
		return nil, ErrNotApproved
	}

	return s.generateTokenPair(ctx, &user)
}

func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", hashToken(req.RefreshToken)).
		Update("revoked", true).Error
}

// HashPassword is shared with the operator CLI.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := GenerateAccessToken(s.cfg, user, time.Now())
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         ToUserResponse(s.cfg, user),
	}, nil
}

func GenerateAccessToken(cfg *config.Config, user *models.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"role":  user.Role,
		"tier":  user.Tier,
		"iat":   now.Unix(),
		"exp":   now.Add(cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)
	record := models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshExpiry),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
