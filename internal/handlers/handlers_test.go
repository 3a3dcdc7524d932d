package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowtherloudspeakers/listening-circle/internal/attribution"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/ledger"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"github.com/lowtherloudspeakers/listening-circle/internal/services"
)

type fakeTracker struct {
	owners    map[string]uuid.UUID
	err       error
	lastClick services.ClickInput
	lastLead  services.LeadInput
}

func (f *fakeTracker) RecordClick(_ context.Context, in services.ClickInput) (uuid.UUID, error) {
	f.lastClick = in
	if f.err != nil {
		return uuid.Nil, f.err
	}
	id, ok := f.owners[in.Code]
	if !ok {
		return uuid.Nil, services.ErrUnknownRefCode
	}
	return id, nil
}

func (f *fakeTracker) IngestLead(_ context.Context, in services.LeadInput) (*services.LeadResult, error) {
	f.lastLead = in
	if f.err != nil {
		return nil, f.err
	}
	lead := models.Lead{ID: uuid.New(), Email: in.Request.Email, AttributionSource: "NONE"}
	if id, ok := f.owners[in.Request.Ref]; ok {
		lead.ReferrerID = &id
		lead.AttributionSource = "FORM"
	}
	return &services.LeadResult{Lead: lead}, nil
}

type fakeCommissions struct {
	settle  func(amount decimal.Decimal) (*services.Settlement, error)
	approve func(id uuid.UUID) (*models.CommissionLedger, error)
	calls   int
}

func (f *fakeCommissions) Settle(_ context.Context, _ uuid.UUID, amount decimal.Decimal) (*services.Settlement, error) {
	f.calls++
	return f.settle(amount)
}

func (f *fakeCommissions) ApproveEntry(_ context.Context, id uuid.UUID) (*models.CommissionLedger, error) {
	return f.approve(id)
}

func (f *fakeCommissions) Entries(context.Context, uuid.UUID) ([]models.CommissionLedger, map[ledger.Status]decimal.Decimal, error) {
	return nil, nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		StorefrontURL:     "https://shop.example.com",
		PublicBaseURL:     "https://circle.example.com",
		AttributionWindow: attribution.DefaultWindow,
	}
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v), string(b))
}

func TestRedirect(t *testing.T) {
	owner := uuid.New()
	tracker := &fakeTracker{owners: map[string]uuid.UUID{"LW-ABC123": owner}}
	h := NewTrackingHandler(tracker, testConfig())
	app := fiber.New(fiber.Config{
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
		EnableIPValidation:      true,
	})
	app.Get("/r/:code", h.Redirect)

	t.Run("known code sets the affiliate cookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/r/LW-ABC123", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://shop.example.com", resp.Header.Get("Location"))
		cookie := resp.Header.Get("Set-Cookie")
		assert.Contains(t, cookie, "aff_id=LW-ABC123")
		assert.Contains(t, strings.ToLower(cookie), "httponly")
		assert.Equal(t, "203.0.113.7", tracker.lastClick.ClientIP)
	})

	t.Run("unknown code still redirects without a cookie", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/r/LW-NOPE00", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Set-Cookie"))
	})

	t.Run("store failure still redirects", func(t *testing.T) {
		tracker.err = errors.New("db down")
		defer func() { tracker.err = nil }()
		resp, err := app.Test(httptest.NewRequest("GET", "/r/LW-ABC123", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	})
}

func TestClick(t *testing.T) {
	owner := uuid.New()
	h := NewTrackingHandler(&fakeTracker{owners: map[string]uuid.UUID{"LW-ABC123": owner}}, testConfig())
	app := fiber.New()
	app.Post("/api/click", h.Click)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing ref", `{"url":"https://shop.example.com/p/1"}`, fiber.StatusBadRequest},
		{"bad json", `{`, fiber.StatusBadRequest},
		{"unknown ref", `{"ref":"LW-NOPE00"}`, fiber.StatusNotFound},
		{"known ref", `{"ref":"LW-ABC123","url":"https://shop.example.com/p/1"}`, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest("POST", "/api/click", tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestLead(t *testing.T) {
	owner := uuid.New()
	tracker := &fakeTracker{owners: map[string]uuid.UUID{"LW-ABC123": owner}}
	h := NewTrackingHandler(tracker, testConfig())
	app := fiber.New()
	app.Post("/api/webflow/lead", h.Lead)

	t.Run("attributed lead", func(t *testing.T) {
		resp, err := app.Test(jsonRequest("POST", "/api/webflow/lead",
			`{"email":"buyer@example.com","name":"Pat","ref":"LW-ABC123","utm_source":"mag"}`))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body dto.LeadResponse
		decode(t, resp, &body)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "FORM", body.AffSource)
		require.NotNil(t, body.Referrer)
		assert.Equal(t, owner, *body.Referrer)
		assert.Equal(t, "mag", tracker.lastLead.Request.UTMSource)
	})

	t.Run("long unknown ref is accepted unattributed", func(t *testing.T) {
		ref := strings.Repeat("r", 200)
		resp, err := app.Test(jsonRequest("POST", "/api/webflow/lead",
			`{"email":"buyer@example.com","ref":"`+ref+`"}`))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body dto.LeadResponse
		decode(t, resp, &body)
		assert.Equal(t, "NONE", body.AffSource)
		assert.Nil(t, body.Referrer)
		assert.Equal(t, ref, tracker.lastLead.Request.Ref)
	})

	t.Run("invalid email", func(t *testing.T) {
		resp, err := app.Test(jsonRequest("POST", "/api/webflow/lead", `{"email":"not-an-email"}`))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("store failure hides details", func(t *testing.T) {
		tracker.err = errors.New("pq: connection refused")
		defer func() { tracker.err = nil }()
		resp, err := app.Test(jsonRequest("POST", "/api/webflow/lead", `{"email":"buyer@example.com"}`))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

		var body dto.ErrorResponse
		decode(t, resp, &body)
		assert.NotContains(t, body.Message, "pq")
	})
}

func TestPayCommission(t *testing.T) {
	userID := uuid.New()
	entryA, entryB, split := uuid.New(), uuid.New(), uuid.New()

	commissions := &fakeCommissions{}
	h := NewAdminHandler(nil, commissions, testConfig())
	app := fiber.New()
	app.Post("/api/admin/users/:id/pay-commission", h.PayCommission)
	path := "/api/admin/users/" + userID.String() + "/pay-commission"

	t.Run("rejects bad amounts before touching the ledger", func(t *testing.T) {
		for _, body := range []string{`{"amount":0}`, `{"amount":-5}`, `{"amount":"1.005"}`, `{}`, `{"amount":"abc"}`} {
			resp, err := app.Test(jsonRequest("POST", path, body))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
		}
		assert.Zero(t, commissions.calls)
	})

	t.Run("invalid user id", func(t *testing.T) {
		resp, err := app.Test(jsonRequest("POST", "/api/admin/users/nope/pay-commission", `{"amount":10}`))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("maps settlement errors", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{ledger.ErrExceedsPending, fiber.StatusBadRequest},
			{ledger.ErrNothingToPay, fiber.StatusConflict},
			{services.ErrUserNotFound, fiber.StatusNotFound},
			{errors.New("deadlock"), fiber.StatusInternalServerError},
		}
		for _, tc := range cases {
			commissions.settle = func(decimal.Decimal) (*services.Settlement, error) { return nil, tc.err }
			resp, err := app.Test(jsonRequest("POST", path, `{"amount":"40.00"}`))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode, tc.err.Error())
		}
	})

	t.Run("reports touched entries", func(t *testing.T) {
		commissions.settle = func(amount decimal.Decimal) (*services.Settlement, error) {
			return &services.Settlement{
				UserID:   userID,
				Currency: "GBP",
				Plan: ledger.Plan{
					Requested: amount,
					Outcomes: []ledger.Outcome{
						{EntryID: entryA, Action: ledger.ActionFullyPaid, PaidAmount: decimal.NewFromInt(30), OriginalAmount: decimal.NewFromInt(30)},
						{EntryID: entryB, Action: ledger.ActionPartiallyPaid, PaidAmount: decimal.NewFromInt(10),
							OriginalAmount: decimal.NewFromInt(50), RemainingAmount: decimal.NewFromInt(40)},
					},
				},
				SplitIDs: map[uuid.UUID]uuid.UUID{entryB: split},
			}, nil
		}

		resp, err := app.Test(jsonRequest("POST", path, `{"amount":40}`))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body dto.PayCommissionResponse
		decode(t, resp, &body)
		assert.Equal(t, "40.00", body.Requested)
		require.Len(t, body.Entries, 2)
		assert.Equal(t, "fully_paid", body.Entries[0].Action)
		assert.Empty(t, body.Entries[0].RemainingAmount)
		assert.Nil(t, body.Entries[0].SplitEntryID)
		assert.Equal(t, "partially_paid", body.Entries[1].Action)
		assert.Equal(t, "50.00", body.Entries[1].OriginalAmount)
		assert.Equal(t, "40.00", body.Entries[1].RemainingAmount)
		assert.Equal(t, "10.00", body.Entries[1].PaidAmount)
		require.NotNil(t, body.Entries[1].SplitEntryID)
		assert.Equal(t, split, *body.Entries[1].SplitEntryID)
	})
}

func TestApproveCommission(t *testing.T) {
	entryID := uuid.New()
	commissions := &fakeCommissions{}
	h := NewAdminHandler(nil, commissions, testConfig())
	app := fiber.New()
	app.Post("/api/admin/commissions/:entryId/approve", h.ApproveCommission)
	path := "/api/admin/commissions/" + entryID.String() + "/approve"

	commissions.approve = func(uuid.UUID) (*models.CommissionLedger, error) { return nil, services.ErrEntryNotPending }
	resp, err := app.Test(httptest.NewRequest("POST", path, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	commissions.approve = func(id uuid.UUID) (*models.CommissionLedger, error) {
		return &models.CommissionLedger{ID: id, Amount: decimal.NewFromInt(12), Currency: "GBP",
			Status: string(ledger.StatusApproved), CreatedAt: time.Now()}, nil
	}
	resp, err = app.Test(httptest.NewRequest("POST", path, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body dto.LedgerEntryResponse
	decode(t, resp, &body)
	assert.Equal(t, "APPROVED", body.Status)
	assert.Equal(t, "12.00", body.Amount)
}

func TestHealth(t *testing.T) {
	app := fiber.New()
	app.Get("/ok", NewHealthHandler(func() error { return nil }).Check)
	app.Get("/down", NewHealthHandler(func() error { return errors.New("refused") }).Check)
	app.Get("/version", NewHealthHandler(nil).Version)

	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/down", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/version", nil))
	require.NoError(t, err)
	var v dto.VersionResponse
	decode(t, resp, &v)
	assert.Equal(t, "dev", v.Commit)
}

func TestAuthValidation(t *testing.T) {
	h := NewAuthHandler(nil, testConfig())
	app := fiber.New()
	app.Post("/register", h.Register)
	app.Post("/login", h.Login)
	app.Post("/verify", h.VerifyMagicLink)

	for path, body := range map[string]string{
		"/register": `{"email":"x@example.com"}`,
		"/login":    `{"email":"x@example.com"}`,
		"/verify":   `{"token":"short"}`,
	} {
		resp, err := app.Test(jsonRequest("POST", path, body))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, path)
	}
}
