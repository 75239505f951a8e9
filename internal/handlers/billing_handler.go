package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachBillingBack/internal/models"
	"github.com/saeid-a/CoachBillingBack/internal/repository"
	"github.com/saeid-a/CoachBillingBack/internal/services"
)

type billingQueryService interface {
	Dashboard(ctx context.Context, partyID int64, role string) (*models.BillingDashboard, error)
	ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]models.Transaction, int, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
}

type paymentRecorder interface {
	RecordPayment(ctx context.Context, clientID, coachID, amountMinor int64, method string) (*models.Transaction, error)
}

type BillingHandler struct {
	billing  billingQueryService
	recorder paymentRecorder
}

func NewBillingHandler(billing *services.BillingService, recorder *services.LedgerService) *BillingHandler {
	return &BillingHandler{billing: billing, recorder: recorder}
}

func (h *BillingHandler) GetDashboard(c *fiber.Ctx) error {
	actorRole, ok := c.Locals("role").(string)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	partyID, err := strconv.ParseInt(c.Params("party_id"), 10, 64)
	if err != nil || partyID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid party id"})
	}
	role := c.Params("role")
	if role != "client" && role != "coach" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "role must be client or coach"})
	}

	if actorRole != "staff" {
		actorID, err := parseActorID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
		if actorRole != role || actorID != partyID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
	}

	dashboard, err := h.billing.Dashboard(c.Context(), partyID, role)
	if err != nil {
		return mapBillingError(c, err)
	}
	return c.JSON(fiber.Map{"dashboard": dashboard})
}

type recordPaymentRequest struct {
	ClientID      int64  `json:"client_id"`
	CoachID       int64  `json:"coach_id"`
	AmountMinor   int64  `json:"amount_minor"`
	PaymentMethod string `json:"payment_method"`
}

// RecordPayment is the boundary call a confirmed external charge triggers.
// The caller retries with idempotency keys; the ledger does not.
func (h *BillingHandler) RecordPayment(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "staff" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req recordPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	tx, err := h.recorder.RecordPayment(c.Context(), req.ClientID, req.CoachID, req.AmountMinor, req.PaymentMethod)
	if err != nil {
		return mapBillingError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction": tx})
}

func (h *BillingHandler) ListTransactions(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "staff" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	filter, page, limit, err := parseTransactionFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	transactions, total, err := h.billing.ListTransactions(c.Context(), filter)
	if err != nil {
		return mapBillingError(c, err)
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"pagination":   buildPaginationMeta(page, limit, total),
	})
}

func (h *BillingHandler) GetTransaction(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "staff" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	tx, err := h.billing.GetTransaction(c.Context(), id)
	if err != nil {
		return mapBillingError(c, err)
	}
	return c.JSON(fiber.Map{"transaction": tx})
}

func parseTransactionFilter(c *fiber.Ctx) (repository.TransactionFilter, int, int, error) {
	filter := repository.TransactionFilter{}

	if raw := strings.TrimSpace(c.Query("client_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, 0, 0, errors.New("client_id must be a positive integer")
		}
		filter.ClientID = &id
	}
	if raw := strings.TrimSpace(c.Query("coach_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, 0, 0, errors.New("coach_id must be a positive integer")
		}
		filter.CoachID = &id
	}
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			txType := models.TransactionType(strings.TrimSpace(part))
			if !models.ValidTransactionType(txType) {
				return filter, 0, 0, errors.New("unknown transaction type " + string(txType))
			}
			filter.Types = append(filter.Types, txType)
		}
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.TransactionStatus(strings.TrimSpace(part))
			if !models.ValidTransactionStatus(status) {
				return filter, 0, 0, errors.New("unknown transaction status " + string(status))
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, 0, 0, errors.New("from must be a valid RFC3339 timestamp")
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, 0, 0, errors.New("to must be a valid RFC3339 timestamp")
		}
		filter.To = &to
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	return filter, page, limit, nil
}

func parseActorID(c *fiber.Ctx) (int64, error) {
	actorIDValue := c.Locals("user_id")
	actorIDStr, ok := actorIDValue.(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(actorIDStr, 10, 64)
}

func mapBillingError(c *fiber.Ctx, err error) error {
	var exceeds *services.AmountExceedsAvailableError
	switch {
	case errors.As(err, &exceeds):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":           exceeds.Error(),
			"available_minor": exceeds.AvailableMinor,
			"requested_minor": exceeds.RequestedMinor,
		})
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process billing request"})
	}
}
