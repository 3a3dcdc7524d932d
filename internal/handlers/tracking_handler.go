package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/services"
)

const affiliateCookie = "aff_id"

// Tracker is the part of services.TrackingService the handlers use.
type Tracker interface {
	RecordClick(ctx context.Context, in services.ClickInput) (uuid.UUID, error)
	IngestLead(ctx context.Context, in services.LeadInput) (*services.LeadResult, error)
}

type TrackingHandler struct {
	tracker Tracker
	cfg     *config.Config
}

func NewTrackingHandler(tracker Tracker, cfg *config.Config) *TrackingHandler {
	return &TrackingHandler{tracker: tracker, cfg: cfg}
}

// Redirect records a click for /r/:code and always sends the visitor on to the shop.
func (h *TrackingHandler) Redirect(c *fiber.Ctx) error {
	code := c.Params("code")
	_, err := h.tracker.RecordClick(c.UserContext(), services.ClickInput{
		Code:      code,
		URL:       h.cfg.StorefrontURL,
		ClientIP:  clientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	switch {
	case err == nil:
		h.setAffiliateCookie(c, code)
	case errors.Is(err, services.ErrUnknownRefCode):
	default:
		slog.Error("click tracking failed", "error", err, "route", c.Route().Path, "action", "redirect")
	}
	return c.Redirect(h.cfg.StorefrontURL, fiber.StatusFound)
}

func (h *TrackingHandler) Click(c *fiber.Ctx) error {
	var req dto.ClickRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	url := req.URL
	if url == "" {
		url = h.cfg.StorefrontURL
	}
	referrer, err := h.tracker.RecordClick(c.UserContext(), services.ClickInput{
		Code:      req.Ref,
		URL:       url,
		ClientIP:  clientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		if errors.Is(err, services.ErrUnknownRefCode) {
			return fail(c, fiber.StatusNotFound, err.Error())
		}
		slog.Error("click tracking failed", "error", err, "route", c.Route().Path, "action", "click")
		return internalError(c)
	}

	h.setAffiliateCookie(c, req.Ref)
	return c.JSON(dto.ClickResponse{Status: "ok", ReferrerID: referrer})
}

// Lead ingests a Webflow form submission. The bearer check runs in middleware.
func (h *TrackingHandler) Lead(c *fiber.Ctx) error {
	var req dto.LeadRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	res, err := h.tracker.IngestLead(c.UserContext(), services.LeadInput{
		Request:   req,
		ClientIP:  clientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		slog.Error("lead ingestion failed", "error", err, "route", c.Route().Path, "action", "ingest_lead")
		return internalError(c)
	}

	return c.JSON(dto.LeadResponse{
		Status:    "ok",
		LeadID:    res.Lead.ID,
		Referrer:  res.Lead.ReferrerID,
		AffSource: res.Lead.AttributionSource,
	})
}

func (h *TrackingHandler) setAffiliateCookie(c *fiber.Ctx, code string) {
	c.Cookie(&fiber.Cookie{
		Name:     affiliateCookie,
		Value:    code,
		Path:     "/",
		Expires:  time.Now().Add(h.cfg.AttributionWindow),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
