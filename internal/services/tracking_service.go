package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/attribution"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/metrics"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeadSourceWebflow tags leads captured by the marketing site form.
const LeadSourceWebflow = "webflow"

// attributionStore answers resolver lookups from Postgres.
type attributionStore struct {
	db *gorm.DB
}

func NewAttributionStore(db *gorm.DB) attribution.Store {
	return &attributionStore{db: db}
}

func (s *attributionStore) UserIDByRefCode(ctx context.Context, code string) (uuid.UUID, bool, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id").Where("ref_code = ?", code).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return user.ID, true, nil
}

func (s *attributionStore) LatestClickUserID(ctx context.Context, ipHash string, since time.Time) (uuid.UUID, bool, error) {
	var click models.Click
	err := s.db.WithContext(ctx).
		Select("user_id").
		Where("ip_hash = ? AND created_at >= ?", ipHash, since).
		Order("created_at DESC").
		Limit(1).
		Take(&click).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return click.UserID, true, nil
}

type TrackingService struct {
	db       *gorm.DB
	cfg      *config.Config
	resolver *attribution.Resolver
	now      func() time.Time
}

func NewTrackingService(db *gorm.DB, cfg *config.Config, resolver *attribution.Resolver) *TrackingService {
	return &TrackingService{db: db, cfg: cfg, resolver: resolver, now: time.Now}
}

type ClickInput struct {
	Code      string
	URL       string
	ClientIP  string
	UserAgent string
}

// RecordClick stores a click for the owner of code. Unknown codes record nothing.
func (s *TrackingService) RecordClick(ctx context.Context, in ClickInput) (uuid.UUID, error) {
	res, err := s.resolver.Resolve(ctx, attribution.Input{RefCode: in.Code, CodeOnly: true})
	if err != nil {
		metrics.ClicksTotal.WithLabelValues("error").Inc()
		return uuid.Nil, err
	}
	if !res.Found() {
		metrics.ClicksTotal.WithLabelValues("unknown_code").Inc()
		return uuid.Nil, ErrUnknownRefCode
	}

	click := models.Click{
		ID:        uuid.New(),
		UserID:    res.ReferrerID,
		URL:       in.URL,
		IPHash:    attribution.HashIP(in.ClientIP),
		UserAgent: in.UserAgent,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&click).Error; err != nil {
		metrics.ClicksTotal.WithLabelValues("error").Inc()
		return uuid.Nil, fmt.Errorf("record click: %w", err)
	}

	metrics.ClicksTotal.WithLabelValues("recorded").Inc()
	return res.ReferrerID, nil
}

type LeadInput struct {
	Request   dto.LeadRequest
	ClientIP  string
	UserAgent string
}

type LeadResult struct {
	Lead        models.Lead
	Attribution attribution.Result
	Provisioned bool
}

// IngestLead attributes a form submission and upserts it by email.
func (s *TrackingService) IngestLead(ctx context.Context, in LeadInput) (*LeadResult, error) {
	ipHash := attribution.HashIP(in.ClientIP)
	res, err := s.resolver.Resolve(ctx, attribution.Input{RefCode: in.Request.Ref, IPHash: ipHash})
	if err != nil {
		return nil, err
	}

	lead := buildLead(in.Request, res, ipHash, in.UserAgent, s.now())
	db := s.db.WithContext(ctx)

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns(leadUpsertColumns(lead)),
	}).Create(&lead).Error
	if err != nil {
		return nil, fmt.Errorf("upsert lead: %w", err)
	}

	var stored models.Lead
	if err := db.Where("email = ?", lead.Email).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload lead: %w", err)
	}

	result := &LeadResult{Lead: stored, Attribution: res}
	if s.cfg.AutoProvisionFromWebflow {
		provisioned, err := s.provisionApplicant(ctx, stored)
		if err != nil {
			slog.Error("lead auto-provision failed", "error", err, "action", "ingest_lead")
		}
		result.Provisioned = provisioned
	}

	metrics.LeadsTotal.WithLabelValues(string(res.LeadSource())).Inc()
	return result, nil
}

// provisionApplicant creates an unapproved advocate for a lead with no account.
func (s *TrackingService) provisionApplicant(ctx context.Context, lead models.Lead) (bool, error) {
	user := models.User{
		ID:       uuid.New(),
		Email:    lead.Email,
		Name:     lead.Name,
		FullName: lead.Name,
		Role:     models.RoleMember,
		Tier:     models.TierAdvocate,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func buildLead(req dto.LeadRequest, res attribution.Result, ipHash, userAgent string, now time.Time) models.Lead {
	lead := models.Lead{
		ID:                uuid.New(),
		Email:             normalizeEmail(req.Email),
		Name:              strings.TrimSpace(req.Name),
		Source:            LeadSourceWebflow,
		AttributionSource: string(res.LeadSource()),
		UTMSource:         req.UTMSource,
		UTMMedium:         req.UTMMedium,
		UTMCampaign:       req.UTMCampaign,
		UTMTerm:           req.UTMTerm,
		UTMContent:        req.UTMContent,
		IPHash:            ipHash,
		UserAgent:         userAgent,
		FirstTouchAt:      now,
		LastTouchAt:       now,
	}
	if req.Ref != "" {
		ref := req.Ref
		lead.RefCode = &ref
	}
	if res.Found() {
		id := res.ReferrerID
		lead.ReferrerID = &id
	}
	return lead
}

// leadUpsertColumns lists what a repeat submission overwrites. Empty values never
// replace stored ones, and an existing referrer is kept unless this submission
// resolves one. first_touch_at, id and created_at are never updated.
func leadUpsertColumns(lead models.Lead) []string {
	cols := []string{"source", "last_touch_at", "updated_at"}
	if lead.ReferrerID != nil {
		cols = append(cols, "referrer_id", "attribution_source")
	}
	if lead.RefCode != nil {
		cols = append(cols, "ref_code")
	}
	optional := []struct {
		column string
		value  string
	}{
		{"name", lead.Name},
		{"utm_source", lead.UTMSource},
		{"utm_medium", lead.UTMMedium},
		{"utm_campaign", lead.UTMCampaign},
		{"utm_term", lead.UTMTerm},
		{"utm_content", lead.UTMContent},
		{"ip_hash", lead.IPHash},
		{"user_agent", lead.UserAgent},
	}
	for _, o := range optional {
		if o.value != "" {
			cols = append(cols, o.column)
		}
	}
	return cols
}
