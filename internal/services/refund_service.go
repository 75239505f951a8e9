package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/CoachBillingBack/internal/models"
	"github.com/saeid-a/CoachBillingBack/internal/repository"
)

// RefundService drives refund requests through
// pending -> processing -> {approved, rejected}, approved -> completed.
// Every amount check runs under the payment's advisory lock, so two racing
// approvals against the same payment resolve first-committer-wins.
type RefundService struct {
	db         *pgxpool.Pool
	refundRepo *repository.RefundRequestRepository
	txRepo     *repository.TransactionRepository
	currency   string
	publisher  EventPublisher
}

func NewRefundService(
	db *pgxpool.Pool,
	refundRepo *repository.RefundRequestRepository,
	txRepo *repository.TransactionRepository,
	currency string,
	publisher EventPublisher,
) *RefundService {
	return &RefundService{
		db:         db,
		refundRepo: refundRepo,
		txRepo:     txRepo,
		currency:   currency,
		publisher:  publisher,
	}
}

type SubmitRefundInput struct {
	PaymentID       string
	AmountMinor     int64
	Reason          models.RefundReason
	Description     *string
	RefundMethod    models.RefundMethod
	RequestedBy     int64
	RequestedByType models.RequesterType
}

func (s *RefundService) Submit(ctx context.Context, input SubmitRefundInput) (*models.RefundRequest, error) {
	if strings.TrimSpace(input.PaymentID) == "" {
		return nil, fmt.Errorf("%w: payment id is required", ErrValidation)
	}
	if input.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	if !models.ValidRefundReason(input.Reason) {
		return nil, fmt.Errorf("%w: unknown refund reason %q", ErrValidation, input.Reason)
	}
	if !models.ValidRefundMethod(input.RefundMethod) {
		return nil, fmt.Errorf("%w: unknown refund method %q", ErrValidation, input.RefundMethod)
	}
	if !models.ValidRequesterType(input.RequestedByType) {
		return nil, fmt.Errorf("%w: unknown requester type %q", ErrValidation, input.RequestedByType)
	}
	if input.RequestedBy <= 0 {
		return nil, fmt.Errorf("%w: requester is required", ErrValidation)
	}

	dbTx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = dbTx.Rollback(ctx)
	}()

	if err := lockPaymentKey(ctx, dbTx, input.PaymentID); err != nil {
		return nil, err
	}

	available, err := remainingRefundableLocked(ctx, dbTx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if input.AmountMinor > available {
		return nil, &AmountExceedsAvailableError{
			RequestedMinor: input.AmountMinor,
			AvailableMinor: available,
		}
	}

	req, err := repository.NewRefundRequestRepository(dbTx).Create(ctx, repository.CreateRefundRequestInput{
		ID:              uuid.NewString(),
		PaymentID:       input.PaymentID,
		AmountMinor:     input.AmountMinor,
		Reason:          input.Reason,
		Description:     input.Description,
		RefundMethod:    input.RefundMethod,
		RequestedBy:     input.RequestedBy,
		RequestedByType: input.RequestedByType,
	})
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *RefundService) BeginReview(ctx context.Context, id string) (*models.RefundRequest, error) {
	req, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, ErrConflict
	}
	if !req.Status.CanTransitionTo(models.RefundStatusProcessing) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.refundRepo.UpdateStatusIfCurrent(ctx, id, models.RefundStatusPending, models.RefundStatusProcessing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return updated, nil
}

// Approve re-validates the remaining-refundable amount under the payment
// lock before committing approval and execution in one atomic section. A
// concurrent refund that shrank the amount makes this approval fail; the
// caller resubmits with a smaller amount.
func (s *RefundService) Approve(ctx context.Context, id string, refundMethod *models.RefundMethod) (*models.RefundRequest, error) {
	if refundMethod != nil && !models.ValidRefundMethod(*refundMethod) {
		return nil, fmt.Errorf("%w: unknown refund method %q", ErrValidation, *refundMethod)
	}

	dbTx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = dbTx.Rollback(ctx)
	}()

	txRefundRepo := repository.NewRefundRequestRepository(dbTx)
	req, err := txRefundRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, ErrConflict
	}
	if !req.Status.CanTransitionTo(models.RefundStatusApproved) {
		return nil, ErrInvalidTransition
	}

	if err := lockPaymentKey(ctx, dbTx, req.PaymentID); err != nil {
		return nil, err
	}

	available, err := remainingRefundableLocked(ctx, dbTx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if req.AmountMinor > available {
		return nil, &AmountExceedsAvailableError{
			RequestedMinor: req.AmountMinor,
			AvailableMinor: available,
		}
	}

	if refundMethod != nil && *refundMethod != req.RefundMethod {
		if err := txRefundRepo.SetRefundMethod(ctx, id, *refundMethod); err != nil {
			return nil, err
		}
		req.RefundMethod = *refundMethod
	}

	approved, err := txRefundRepo.MarkReviewed(
		ctx,
		id,
		models.RefundStatusProcessing,
		models.RefundStatusApproved,
		nil,
		time.Now().UTC(),
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	refundTx, err := executeRefundLocked(ctx, dbTx, approved, s.currency)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}

	publishTransaction(s.publisher, refundTx)

	completed, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *RefundService) Reject(ctx context.Context, id string, rejectionReason string) (*models.RefundRequest, error) {
	rejectionReason = strings.TrimSpace(rejectionReason)
	if rejectionReason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	req, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, ErrConflict
	}
	if !req.Status.CanTransitionTo(models.RefundStatusRejected) {
		return nil, ErrInvalidTransition
	}

	rejected, err := s.refundRepo.MarkReviewed(
		ctx,
		id,
		models.RefundStatusProcessing,
		models.RefundStatusRejected,
		&rejectionReason,
		time.Now().UTC(),
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return rejected, nil
}

// RemainingRefundable reports how much of a payment can still be refunded:
// its amount minus all approved or completed refunds against it.
func (s *RefundService) RemainingRefundable(ctx context.Context, paymentID string) (int64, error) {
	payment, err := s.txRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if payment.Type != models.TransactionTypePayment {
		return 0, fmt.Errorf("%w: transaction %s is not a payment", ErrValidation, paymentID)
	}

	refunded, err := s.refundRepo.ApprovedOrCompletedTotalForPayment(ctx, paymentID)
	if err != nil {
		return 0, err
	}
	return payment.AmountMinor - refunded, nil
}

func (s *RefundService) List(ctx context.Context, filter repository.RefundListFilter) ([]models.RefundRequest, error) {
	return s.refundRepo.List(ctx, filter)
}

func remainingRefundableLocked(ctx context.Context, db repository.DBTX, paymentID string) (int64, error) {
	txRepo := repository.NewTransactionRepository(db)
	refundRepo := repository.NewRefundRequestRepository(db)

	payment, err := txRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if payment.Type != models.TransactionTypePayment {
		return 0, fmt.Errorf("%w: transaction %s is not a payment", ErrValidation, paymentID)
	}
	if payment.Status != models.TransactionStatusCompleted {
		return 0, fmt.Errorf("%w: payment %s is not completed", ErrValidation, paymentID)
	}

	refunded, err := refundRepo.ApprovedOrCompletedTotalForPayment(ctx, paymentID)
	if err != nil {
		return 0, err
	}
	return payment.AmountMinor - refunded, nil
}
