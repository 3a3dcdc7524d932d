package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/identity"
	"github.com/lowtherloudspeakers/listening-circle/internal/ledger"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"github.com/lowtherloudspeakers/listening-circle/internal/services"
	"github.com/shopspring/decimal"
)

// Commissions is the part of services.CommissionService the handlers use.
type Commissions interface {
	Settle(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*services.Settlement, error)
	ApproveEntry(ctx context.Context, entryID uuid.UUID) (*models.CommissionLedger, error)
	Entries(ctx context.Context, userID uuid.UUID) ([]models.CommissionLedger, map[ledger.Status]decimal.Decimal, error)
}

type AdminHandler struct {
	adminService *services.AdminService
	commissions  Commissions
	cfg          *config.Config
}

func NewAdminHandler(adminService *services.AdminService, commissions Commissions, cfg *config.Config) *AdminHandler {
	return &AdminHandler{adminService: adminService, commissions: commissions, cfg: cfg}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	status := c.Query("status")
	if status != "" && status != services.UserStatusPending && status != services.UserStatusApproved {
		return fail(c, fiber.StatusBadRequest, "status must be pending or approved")
	}

	resp, err := h.adminService.ListUsers(c.UserContext(), status, c.QueryInt("limit", 20), c.QueryInt("offset", 0))
	if err != nil {
		slog.Error("list users failed", "error", err, "route", c.Route().Path)
		return internalError(c)
	}
	return c.JSON(resp)
}

func (h *AdminHandler) Approve(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	user, err := h.adminService.Approve(c.UserContext(), userID, identity.ActorID(c))
	if err != nil {
		return h.userError(c, err, "approve")
	}
	return c.JSON(services.ToUserResponse(h.cfg, user))
}

func (h *AdminHandler) SetTier(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	var req dto.SetTierRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	user, err := h.adminService.SetTier(c.UserContext(), userID, req.Tier)
	if err != nil {
		return h.userError(c, err, "set_tier")
	}
	return c.JSON(services.ToUserResponse(h.cfg, user))
}

func (h *AdminHandler) Promote(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	user, err := h.adminService.Promote(c.UserContext(), userID)
	if err != nil {
		return h.userError(c, err, "promote")
	}
	return c.JSON(services.ToUserResponse(h.cfg, user))
}

func (h *AdminHandler) SetAmbassador(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	var req dto.SetAmbassadorRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	user, err := h.adminService.SetAmbassador(c.UserContext(), userID, req.AmbassadorID)
	if err != nil {
		return h.userError(c, err, "set_ambassador")
	}
	return c.JSON(services.ToUserResponse(h.cfg, user))
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	if err := h.adminService.DeleteUser(c.UserContext(), userID, identity.ActorID(c)); err != nil {
		return h.userError(c, err, "delete_user")
	}
	return c.JSON(dto.MessageResponse{Message: "User deleted"})
}

func (h *AdminHandler) Commissions(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	rows, totals, err := h.commissions.Entries(c.UserContext(), userID)
	if err != nil {
		return h.userError(c, err, "list_commissions")
	}

	resp := dto.CommissionsResponse{
		Entries: make([]dto.LedgerEntryResponse, 0, len(rows)),
		Totals:  make(map[string]string, len(totals)),
	}
	for _, r := range rows {
		resp.Entries = append(resp.Entries, services.ToLedgerEntryResponse(r))
	}
	for status, total := range totals {
		resp.Totals[string(status)] = dto.Money(total)
	}
	return c.JSON(resp)
}

func (h *AdminHandler) ApproveCommission(c *fiber.Ctx) error {
	entryID, ok := paramUUID(c, "entryId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid entry ID")
	}

	entry, err := h.commissions.ApproveEntry(c.UserContext(), entryID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEntryNotFound):
			return fail(c, fiber.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrEntryNotPending):
			return fail(c, fiber.StatusConflict, err.Error())
		}
		slog.Error("approve commission failed", "error", err, "route", c.Route().Path)
		return internalError(c)
	}
	return c.JSON(services.ToLedgerEntryResponse(*entry))
}

// PayCommission settles an amount against the user's oldest pending entries.
func (h *AdminHandler) PayCommission(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}
	var req dto.PayCommissionRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body: amount must be a number")
	}
	if err := ledger.ValidateAmount(req.Amount); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	settlement, err := h.commissions.Settle(c.UserContext(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrExceedsPending):
			return fail(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrNothingToPay):
			return fail(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			return fail(c, fiber.StatusNotFound, err.Error())
		}
		slog.Error("pay commission failed", "error", err, "route", c.Route().Path,
			"user_id", userID.String(), "action", "pay_commission")
		return internalError(c)
	}

	return c.JSON(settlementResponse(settlement))
}

func settlementResponse(s *services.Settlement) dto.PayCommissionResponse {
	resp := dto.PayCommissionResponse{
		Message:   "Paid " + dto.Money(s.Plan.Requested) + " " + s.Currency + " in commissions",
		UserID:    s.UserID,
		Requested: dto.Money(s.Plan.Requested),
		Entries:   make([]dto.SettledEntry, 0, len(s.Plan.Outcomes)),
	}
	for _, o := range s.Plan.Outcomes {
		entry := dto.SettledEntry{
			EntryID:    o.EntryID,
			Action:     string(o.Action),
			PaidAmount: dto.Money(o.PaidAmount),
		}
		if o.Action == ledger.ActionPartiallyPaid {
			entry.OriginalAmount = dto.Money(o.OriginalAmount)
			entry.RemainingAmount = dto.Money(o.RemainingAmount)
			if id, ok := s.SplitIDs[o.EntryID]; ok {
				split := id
				entry.SplitEntryID = &split
			}
		}
		resp.Entries = append(resp.Entries, entry)
	}
	return resp
}

func (h *AdminHandler) userError(c *fiber.Ctx, err error, action string) error {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidTier),
		errors.Is(err, services.ErrSelfReference),
		errors.Is(err, services.ErrNotAmbassador),
		errors.Is(err, services.ErrCannotDeleteSelf):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAmbassadorCycle):
		return fail(c, fiber.StatusConflict, err.Error())
	}
	slog.Error("admin action failed", "error", err, "route", c.Route().Path, "action", action)
	return internalError(c)
}
