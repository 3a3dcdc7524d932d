package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/mailer"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"

	maxUplineDepth   = 64
	refCodeAttempts  = 5
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type AdminService struct {
	db   *gorm.DB
	cfg  *config.Config
	mail mailer.Mailer
}

func NewAdminService(db *gorm.DB, cfg *config.Config, mail mailer.Mailer) *AdminService {
	return &AdminService{db: db, cfg: cfg, mail: mail}
}

// ClampPage bounds list pagination the same way for every admin listing.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *AdminService) ListUsers(ctx context.Context, status string, limit, offset int) (*dto.ListUsersResponse, error) {
	limit, offset = ClampPage(limit, offset)
	db := s.db.WithContext(ctx)

	query := db.Model(&models.User{})
	switch status {
	case UserStatusPending:
		query = query.Where("is_approved = false")
	case UserStatusApproved:
		query = query.Where("is_approved = true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	aggs, err := loadAggregates(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListUsersResponse{
		Users:  make([]dto.AdminUserResponse, 0, len(users)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for i := range users {
		a := aggs[users[i].ID]
		resp.Users = append(resp.Users, dto.AdminUserResponse{
			UserResponse: ToUserResponse(s.cfg, &users[i]),
			Clicks:       a.Clicks,
			Orders:       a.Orders,
			TotalSales:   dto.Money(a.Sales),
			Earnings:     dto.Money(a.Earnings),
		})
	}
	return resp, nil
}

func (s *AdminService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// Approve admits an applicant, assigns a referral code if they have none and emails
// them their link. Approving an approved user changes nothing.
func (s *AdminService) Approve(ctx context.Context, userID, approverID uuid.UUID) (*models.User, error) {
	var user models.User
	newlyApproved := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if user.IsApproved && user.RefCode != nil {
			return nil
		}

		updates := map[string]interface{}{}
		if user.RefCode == nil {
			code, err := s.allocateRefCode(tx)
			if err != nil {
				return err
			}
			updates["ref_code"] = code
			user.RefCode = &code
		}
		if !user.IsApproved {
			now := time.Now()
			updates["is_approved"] = true
			updates["approved_at"] = now
			user.IsApproved = true
			user.ApprovedAt = &now
			if approverID != uuid.Nil {
				updates["approved_by"] = approverID
				user.ApprovedBy = &approverID
			}
			newlyApproved = true
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	if newlyApproved {
		slog.Info("user approved", "user_id", user.ID.String(), "action", "approve")
		msg, err := mailer.Approved(user.Email, user.DisplayName(), s.cfg.ReferralLink(*user.RefCode), *user.RefCode)
		if err == nil {
			err = s.mail.Send(ctx, msg)
		}
		if err != nil {
			slog.Error("approval email failed", "error", err, "user_id", user.ID.String(), "action", "approve")
		}
	}
	return &user, nil
}

// CreateAdmin bootstraps an approved admin account, or promotes and re-passwords an
// existing one with the same email.
func (s *AdminService) CreateAdmin(ctx context.Context, email, password, name string) (*models.User, error) {
	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("email = ?", email).First(&user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load user: %w", err)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{ID: uuid.New(), Email: email, Tier: models.TierAdvocate, Application: datatypes.JSON("{}")}
		}

		now := time.Now()
		user.Password = hashed
		user.Role = models.RoleAdmin
		if name != "" {
			user.Name = name
		}
		if !user.IsApproved {
			user.IsApproved = true
			user.ApprovedAt = &now
		}
		if user.RefCode == nil {
			code, err := s.allocateRefCode(tx)
			if err != nil {
				return err
			}
			user.RefCode = &code
		}
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, err
	}

	slog.Info("admin account provisioned", "user_id", user.ID.String(), "action", "create_admin")
	return &user, nil
}

func (s *AdminService) allocateRefCode(tx *gorm.DB) (string, error) {
	for i := 0; i < refCodeAttempts; i++ {
		code, err := GenerateRefCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&models.User{}).Unscoped().Where("ref_code = ?", code).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check ref code: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrRefCodeUnavailable
}

func (s *AdminService) SetTier(ctx context.Context, userID uuid.UUID, tier string) (*models.User, error) {
	if tier != models.TierAdvocate && tier != models.TierAmbassador {
		return nil, ErrInvalidTier
	}
	db := s.db.WithContext(ctx)
	res := db.Model(&models.User{}).Where("id = ?", userID).Update("tier", tier)
	if res.Error != nil {
		return nil, fmt.Errorf("update tier: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	slog.Info("tier changed", "user_id", userID.String(), "tier", tier, "action", "set_tier")
	return &user, nil
}

func (s *AdminService) Promote(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.SetTier(ctx, userID, models.TierAmbassador)
}

// SetAmbassador sets or clears the user's upline. The new upline must be an ambassador
// and must not already sit below the user.
func (s *AdminService) SetAmbassador(ctx context.Context, userID uuid.UUID, ambassadorID *uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		if ambassadorID != nil {
			if *ambassadorID == userID {
				return ErrSelfReference
			}
			var target models.User
			err := tx.Select("id", "tier").First(&target, "id = ?", *ambassadorID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			if err != nil {
				return fmt.Errorf("load ambassador: %w", err)
			}
			if target.Tier != models.TierAmbassador {
				return ErrNotAmbassador
			}

			cycle, err := createsCycle(userID, *ambassadorID, func(id uuid.UUID) (*uuid.UUID, error) {
				var u models.User
				if err := tx.Select("ambassador_id").First(&u, "id = ?", id).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return u.AmbassadorID, nil
			})
			if err != nil {
				return fmt.Errorf("walk upline: %w", err)
			}
			if cycle {
				return ErrAmbassadorCycle
			}
		}

		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("ambassador_id", ambassadorID).Error; err != nil {
			return fmt.Errorf("update ambassador: %w", err)
		}
		user.AmbassadorID = ambassadorID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// createsCycle walks the upline from target and reports whether userID is reached.
// Chains deeper than maxUplineDepth are treated as cyclic.
func createsCycle(userID, target uuid.UUID, parent func(uuid.UUID) (*uuid.UUID, error)) (bool, error) {
	current := target
	for depth := 0; depth < maxUplineDepth; depth++ {
		if current == userID {
			return true, nil
		}
		next, err := parent(current)
		if err != nil {
			return false, err
		}
		if next == nil {
			return false, nil
		}
		current = *next
	}
	return true, nil
}

// DeleteUser removes a user and everything that hangs off them in one transaction.
func (s *AdminService) DeleteUser(ctx context.Context, userID, actorID uuid.UUID) error {
	if userID == actorID {
		return ErrCannotDeleteSelf
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		steps := []struct {
			name  string
			model interface{}
			where string
		}{
			{"clicks", &models.Click{}, "user_id = ?"},
			{"orders", &models.Order{}, "user_id = ?"},
			{"ledger", &models.CommissionLedger{}, "user_id = ?"},
			{"leads", &models.Lead{}, "referrer_id = ?"},
			{"refresh tokens", &models.RefreshToken{}, "user_id = ?"},
			{"sign-in tokens", &models.SignInToken{}, "user_id = ?"},
		}
		for _, step := range steps {
			if err := tx.Where(step.where, userID).Delete(step.model).Error; err != nil {
				return fmt.Errorf("delete %s: %w", step.name, err)
			}
		}

		if err := tx.Model(&models.User{}).Where("ambassador_id = ?", userID).Update("ambassador_id", nil).Error; err != nil {
			return fmt.Errorf("detach downline: %w", err)
		}
		if err := tx.Unscoped().Delete(&models.User{}, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}

		slog.Info("user deleted", "user_id", userID.String(), "action", "delete_user", "actor_id", actorID.String())
		return nil
	})
}
