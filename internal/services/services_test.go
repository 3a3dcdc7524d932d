package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowtherloudspeakers/listening-circle/internal/attribution"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
)

func TestGenerateRefCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateRefCode()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code, "LW-"), code)
		assert.Len(t, code, 9)
		assert.True(t, attribution.ValidRefCode(code), code)
		assert.NotContains(t, code[3:], "0")
		assert.NotContains(t, code[3:], "O")
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestBuildLead(t *testing.T) {
	now := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	referrer := uuid.New()
	req := dto.LeadRequest{
		Email:     "  Buyer@Example.COM ",
		Name:      " Pat Buyer ",
		Ref:       "LW-ABC123",
		UTMSource: "newsletter",
	}

	t.Run("code attribution", func(t *testing.T) {
		lead := buildLead(req, attribution.Result{ReferrerID: referrer, Method: attribution.MethodCode}, "hash", "ua", now)
		assert.Equal(t, "buyer@example.com", lead.Email)
		assert.Equal(t, "Pat Buyer", lead.Name)
		assert.Equal(t, LeadSourceWebflow, lead.Source)
		assert.Equal(t, "FORM", lead.AttributionSource)
		require.NotNil(t, lead.ReferrerID)
		assert.Equal(t, referrer, *lead.ReferrerID)
		require.NotNil(t, lead.RefCode)
		assert.Equal(t, "LW-ABC123", *lead.RefCode)
		assert.Equal(t, now, lead.FirstTouchAt)
		assert.Equal(t, now, lead.LastTouchAt)
	})

	t.Run("no attribution", func(t *testing.T) {
		lead := buildLead(dto.LeadRequest{Email: "x@example.com"}, attribution.Result{Method: attribution.MethodNone}, "", "", now)
		assert.Equal(t, "NONE", lead.AttributionSource)
		assert.Nil(t, lead.ReferrerID)
		assert.Nil(t, lead.RefCode)
	})
}

func TestLeadUpsertColumns(t *testing.T) {
	now := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	referrer := uuid.New()

	t.Run("never touches first touch or identity", func(t *testing.T) {
		full := buildLead(dto.LeadRequest{
			Email: "a@example.com", Name: "A", Ref: "LW-ABC123",
			UTMSource: "s", UTMMedium: "m", UTMCampaign: "c", UTMTerm: "t", UTMContent: "x",
		}, attribution.Result{ReferrerID: referrer, Method: attribution.MethodCode}, "hash", "ua", now)

		cols := leadUpsertColumns(full)
		for _, never := range []string{"first_touch_at", "id", "created_at", "email"} {
			assert.NotContains(t, cols, never)
		}
		for _, want := range []string{"last_touch_at", "referrer_id", "attribution_source", "ref_code", "utm_source", "utm_content", "ip_hash", "user_agent", "name"} {
			assert.Contains(t, cols, want)
		}
	})

	t.Run("bare resubmission keeps stored credit and campaign", func(t *testing.T) {
		bare := buildLead(dto.LeadRequest{Email: "a@example.com"}, attribution.Result{Method: attribution.MethodNone}, "", "", now)

		cols := leadUpsertColumns(bare)
		assert.ElementsMatch(t, []string{"source", "last_touch_at", "updated_at"}, cols)
	})

	t.Run("unresolved ref updates the code but not the referrer", func(t *testing.T) {
		lead := buildLead(dto.LeadRequest{Email: "a@example.com", Ref: "LW-NOPE00"}, attribution.Result{Method: attribution.MethodNone}, "hash", "", now)

		cols := leadUpsertColumns(lead)
		assert.Contains(t, cols, "ref_code")
		assert.Contains(t, cols, "ip_hash")
		assert.NotContains(t, cols, "referrer_id")
		assert.NotContains(t, cols, "attribution_source")
	})
}

func TestCreatesCycle(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	// c -> b -> a (a has no upline)
	uplines := map[uuid.UUID]*uuid.UUID{b: &a, c: &b}
	parent := func(id uuid.UUID) (*uuid.UUID, error) { return uplines[id], nil }

	cycle, err := createsCycle(a, c, parent)
	require.NoError(t, err)
	assert.True(t, cycle, "a under c would close c -> b -> a -> c")

	cycle, err = createsCycle(d, c, parent)
	require.NoError(t, err)
	assert.False(t, cycle)

	cycle, err = createsCycle(b, b, parent)
	require.NoError(t, err)
	assert.True(t, cycle)

	boom := errors.New("db down")
	_, err = createsCycle(d, c, func(uuid.UUID) (*uuid.UUID, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	loop := func(id uuid.UUID) (*uuid.UUID, error) { return &id, nil }
	cycle, err = createsCycle(d, c, loop)
	require.NoError(t, err)
	assert.True(t, cycle, "runaway chains are rejected")
}

func TestUplineProjection(t *testing.T) {
	rate := decimal.RequireFromString("0.05")
	assert.Equal(t, "50.00", dto.Money(UplineProjection(decimal.RequireFromString("1000"), rate)))
	assert.Equal(t, "0.62", dto.Money(UplineProjection(decimal.RequireFromString("12.345"), rate)))
	assert.True(t, UplineProjection(decimal.Zero, rate).IsZero())
}

func TestClampPage(t *testing.T) {
	l, o := ClampPage(0, -5)
	assert.Equal(t, 20, l)
	assert.Equal(t, 0, o)
	l, _ = ClampPage(1000, 0)
	assert.Equal(t, 100, l)
}

func TestToUserResponse(t *testing.T) {
	code := "LW-ABC123"
	u := &models.User{ID: uuid.New(), Email: "m@example.com", FullName: "Member", RefCode: &code, Role: models.RoleMember, Tier: models.TierAdvocate}
	resp := ToUserResponse(&config.Config{PublicBaseURL: "https://circle.example.com"}, u)
	assert.Equal(t, "https://circle.example.com/r/LW-ABC123", resp.ReferralLink)
	assert.Equal(t, "Member", resp.FullName)

	u.RefCode = nil
	assert.Empty(t, ToUserResponse(&config.Config{}, u).ReferralLink)
}

func TestAccessTokenClaims(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", JWTAccessExpiry: time.Minute}
	u := &models.User{ID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin, Tier: models.TierAmbassador}
	token, err := GenerateAccessToken(cfg, u, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)
}
