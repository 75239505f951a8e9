package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachBillingBack/internal/models"
	"github.com/saeid-a/CoachBillingBack/internal/repository"
	"github.com/saeid-a/CoachBillingBack/internal/services"
)

type refundWorkflowService interface {
	Submit(ctx context.Context, input services.SubmitRefundInput) (*models.RefundRequest, error)
	BeginReview(ctx context.Context, id string) (*models.RefundRequest, error)
	Approve(ctx context.Context, id string, refundMethod *models.RefundMethod) (*models.RefundRequest, error)
	Reject(ctx context.Context, id string, rejectionReason string) (*models.RefundRequest, error)
	List(ctx context.Context, filter repository.RefundListFilter) ([]models.RefundRequest, error)
	RemainingRefundable(ctx context.Context, paymentID string) (int64, error)
}

type RefundHandler struct {
	service refundWorkflowService
}

func NewRefundHandler(service *services.RefundService) *RefundHandler {
	return &RefundHandler{service: service}
}

type submitRefundRequest struct {
	PaymentID       string  `json:"payment_id"`
	AmountMinor     int64   `json:"amount_minor"`
	Reason          string  `json:"reason"`
	Description     *string `json:"description"`
	RefundMethod    string  `json:"refund_method"`
	RequestedByType string  `json:"requested_by_type"`
}

func (h *RefundHandler) Submit(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != "client" && role != "staff") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req submitRefundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "description must not be empty"})
	}

	// The requester type is derived from the authenticated role, not trusted
	// from the body.
	requestedByType := models.RequesterTypeClient
	if role == "staff" {
		requestedByType = models.RequesterTypeStaff
	}

	refund, err := h.service.Submit(c.Context(), services.SubmitRefundInput{
		PaymentID:       strings.TrimSpace(req.PaymentID),
		AmountMinor:     req.AmountMinor,
		Reason:          models.RefundReason(req.Reason),
		Description:     req.Description,
		RefundMethod:    models.RefundMethod(req.RefundMethod),
		RequestedBy:     actorID,
		RequestedByType: requestedByType,
	})
	if err != nil {
		return mapBillingError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"refund_request": refund})
}

type reviewRefundRequest struct {
	Action          string  `json:"action"`
	RefundMethod    *string `json:"refund_method"`
	RejectionReason string  `json:"rejection_reason"`
}

// Review handles the staff-only approve/reject transitions.
func (h *RefundHandler) Review(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "staff" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid refund request id"})
	}

	var req reviewRefundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var (
		refund *models.RefundRequest
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "begin_review":
		refund, err = h.service.BeginReview(c.Context(), id)
	case "approve":
		var method *models.RefundMethod
		if req.RefundMethod != nil {
			m := models.RefundMethod(strings.TrimSpace(*req.RefundMethod))
			method = &m
		}
		refund, err = h.service.Approve(c.Context(), id, method)
	case "reject":
		refund, err = h.service.Reject(c.Context(), id, req.RejectionReason)
	default:
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "action must be begin_review, approve or reject"})
	}
	if err != nil {
		return mapBillingError(c, err)
	}

	return c.JSON(fiber.Map{"refund_request": refund})
}

func (h *RefundHandler) List(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "staff" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	filter := repository.RefundListFilter{}
	if raw := strings.TrimSpace(c.Query("payment_id")); raw != "" {
		filter.PaymentID = &raw
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, models.RefundStatus(strings.TrimSpace(part)))
		}
	}

	refunds, err := h.service.List(c.Context(), filter)
	if err != nil {
		return mapBillingError(c, err)
	}
	return c.JSON(fiber.Map{"refund_requests": refunds})
}

func (h *RefundHandler) RemainingRefundable(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != "staff" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	paymentID := strings.TrimSpace(c.Params("payment_id"))
	if paymentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment id"})
	}

	remaining, err := h.service.RemainingRefundable(c.Context(), paymentID)
	if err != nil {
		return mapBillingError(c, err)
	}
	return c.JSON(fiber.Map{
		"payment_id":                 paymentID,
		"remaining_refundable_minor": remaining,
	})
}
