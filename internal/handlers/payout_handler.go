package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachBillingBack/internal/models"
	"github.com/saeid-a/CoachBillingBack/internal/services"
)

type payoutWorkflowService interface {
	PendingEarnings(ctx context.Context, coachID int64) (models.PendingEarnings, error)
	Submit(ctx context.Context, input services.SubmitPayoutInput) (*models.PayoutRequest, error)
	MarkProcessing(ctx context.Context, id string) (*models.PayoutRequest, error)
	Complete(ctx context.Context, id string, payoutDate time.Time) (*models.PayoutRequest, error)
	Fail(ctx context.Context, id string, failureReason string) (*models.PayoutRequest, error)
	Reject(ctx context.Context, id string, rejectionReason string) (*models.PayoutRequest, error)
	ListForCoach(ctx context.Context, coachID int64) ([]models.PayoutRequest, error)
}

type PayoutHandler struct {
	service payoutWorkflowService
}

func NewPayoutHandler(service *services.PayoutService) *PayoutHandler {
	return &PayoutHandler{service: service}
}

func (h *PayoutHandler) PendingEarnings(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "coach" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	earnings, err := h.service.PendingEarnings(c.Context(), coachID)
	if err != nil {
		return mapBillingError(c, err)
	}
	return c.JSON(fiber.Map{
		"totalEarnings": earnings.TotalMinor,
		"paymentCount":  earnings.PaymentCount,
	})
}

type submitPayoutRequest struct {
	AmountCents  *int64  `json:"amount_cents"`
	PayoutMethod string  `json:"payout_method"`
	Notes        *string `json:"notes"`
}

func (h *PayoutHandler) Submit(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "coach" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req submitPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Notes != nil && strings.TrimSpace(*req.Notes) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "notes must not be empty"})
	}

	payout, err := h.service.Submit(c.Context(), services.SubmitPayoutInput{
		CoachID:      coachID,
		AmountMinor:  req.AmountCents,
		PayoutMethod: req.PayoutMethod,
		Notes:        req.Notes,
	})
	if err != nil {
		return mapBillingError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payout_request": payout})
}

func (h *PayoutHandler) MyRequests(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "coach" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	payouts, err := h.service.ListForCoach(c.Context(), coachID)
	if err != nil {
		return mapBillingError(c, err)
	}
	return c.JSON(fiber.Map{"payout_requests": payouts})
}

type resolvePayoutRequest struct {
	Action     string `json:"action"`
	PayoutDate string `json:"payout_date"`
	Reason     string `json:"reason"`
}

// Resolve handles the staff-only payout transitions.
func (h *PayoutHandler) Resolve(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "staff" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payout request id"})
	}

	var req resolvePayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var (
		payout *models.PayoutRequest
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "mark_processing":
		payout, err = h.service.MarkProcessing(c.Context(), id)
	case "complete":
		payoutDate := time.Now().UTC()
		if strings.TrimSpace(req.PayoutDate) != "" {
			payoutDate, err = time.Parse(time.RFC3339, strings.TrimSpace(req.PayoutDate))
			if err != nil {
				return c.Status(fiber.StatusBadRequest).
					JSON(fiber.Map{"error": "payout_date must be a valid RFC3339 timestamp"})
			}
		}
		payout, err = h.service.Complete(c.Context(), id, payoutDate)
	case "fail":
		payout, err = h.service.Fail(c.Context(), id, req.Reason)
	case "reject":
		payout, err = h.service.Reject(c.Context(), id, req.Reason)
	default:
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "action must be mark_processing, complete, fail or reject"})
	}
	if err != nil {
		return mapBillingError(c, err)
	}

	return c.JSON(fiber.Map{"payout_request": payout})
}
