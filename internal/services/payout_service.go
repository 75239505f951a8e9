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

// FailureReasonEarningsReduced marks payouts invalidated by a refund
// approved between submission and completion.
const FailureReasonEarningsReduced = "earnings reduced by concurrent refund"

const defaultPayoutMethod = "bank_transfer"

// PayoutService drives payout requests through
// pending -> processing -> {completed, failed, rejected}. Writers touching a
// coach's earnings pool serialize on the coach's advisory lock, and pending
// earnings are always recomputed from the ledger, never reserved.
type PayoutService struct {
	db         *pgxpool.Pool
	payoutRepo *repository.PayoutRequestRepository
	feePolicy  FeePolicy
	currency   string
	publisher  EventPublisher
}

func NewPayoutService(
	db *pgxpool.Pool,
	payoutRepo *repository.PayoutRequestRepository,
	feePolicy FeePolicy,
	currency string,
	publisher EventPublisher,
) *PayoutService {
	return &PayoutService{
		db:         db,
		payoutRepo: payoutRepo,
		feePolicy:  feePolicy,
		currency:   currency,
		publisher:  publisher,
	}
}

func (s *PayoutService) PendingEarnings(ctx context.Context, coachID int64) (models.PendingEarnings, error) {
	if coachID <= 0 {
		return models.PendingEarnings{}, fmt.Errorf("%w: coach is required", ErrValidation)
	}
	return computePendingEarningsLocked(ctx, s.db, coachID, "")
}

type SubmitPayoutInput struct {
	CoachID      int64
	AmountMinor  *int64
	PayoutMethod string
	Notes        *string
}

// Submit creates a pending payout request. A nil amount withdraws the full
// pending earnings; a supplied amount must fit inside them at submission
// time, re-checked under the coach lock.
func (s *PayoutService) Submit(ctx context.Context, input SubmitPayoutInput) (*models.PayoutRequest, error) {
	if input.CoachID <= 0 {
		return nil, fmt.Errorf("%w: coach is required", ErrValidation)
	}
	if input.AmountMinor != nil && *input.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	method := strings.TrimSpace(input.PayoutMethod)
	if method == "" {
		method = defaultPayoutMethod
	}

	dbTx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = dbTx.Rollback(ctx)
	}()

	if err := lockCoachKey(ctx, dbTx, input.CoachID); err != nil {
		return nil, err
	}

	earnings, err := computePendingEarningsLocked(ctx, dbTx, input.CoachID, "")
	if err != nil {
		return nil, err
	}

	amount := earnings.TotalMinor
	if input.AmountMinor != nil {
		amount = *input.AmountMinor
		if amount > earnings.TotalMinor {
			return nil, &AmountExceedsAvailableError{
				RequestedMinor: amount,
				AvailableMinor: earnings.TotalMinor,
			}
		}
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: no pending earnings to withdraw", ErrValidation)
	}

	fees := s.feePolicy.Fees(amount)
	if fees < 0 || fees >= amount {
		return nil, fmt.Errorf("%w: fees %d leave nothing to pay out of %d", ErrValidation, fees, amount)
	}

	req, err := repository.NewPayoutRequestRepository(dbTx).Create(ctx, repository.CreatePayoutRequestInput{
		ID:             uuid.NewString(),
		CoachID:        input.CoachID,
		AmountMinor:    amount,
		FeesMinor:      fees,
		NetAmountMinor: amount - fees,
		PayoutMethod:   method,
		Notes:          input.Notes,
		PaymentCount:   earnings.PaymentCount,
	})
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *PayoutService) MarkProcessing(ctx context.Context, id string) (*models.PayoutRequest, error) {
	req, err := s.payoutRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, ErrConflict
	}
	if !req.Status.CanTransitionTo(models.PayoutStatusProcessing) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.payoutRepo.UpdateStatusIfCurrent(ctx, id, models.PayoutStatusPending, models.PayoutStatusProcessing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return updated, nil
}

// Complete finishes a processing payout. Pending earnings must still cover
// the amount at completion time; a refund approved since submission makes
// the payout fail here instead of over-paying.
func (s *PayoutService) Complete(ctx context.Context, id string, payoutDate time.Time) (*models.PayoutRequest, error) {
	dbTx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = dbTx.Rollback(ctx)
	}()

	txPayoutRepo := repository.NewPayoutRequestRepository(dbTx)
	req, err := txPayoutRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, ErrConflict
	}
	if !req.Status.CanTransitionTo(models.PayoutStatusCompleted) {
		return nil, ErrInvalidTransition
	}

	if err := lockCoachKey(ctx, dbTx, req.CoachID); err != nil {
		return nil, err
	}

	earnings, err := computePendingEarningsLocked(ctx, dbTx, req.CoachID, req.ID)
	if err != nil {
		return nil, err
	}
	if req.AmountMinor > earnings.TotalMinor {
		failed, err := txPayoutRepo.MarkFailed(ctx, id, FailureReasonEarningsReduced)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrInvalidTransition
			}
			return nil, err
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, err
		}
		return failed, &AmountExceedsAvailableError{
			RequestedMinor: req.AmountMinor,
			AvailableMinor: earnings.TotalMinor,
		}
	}

	payoutTx, completed, err := executePayoutLocked(ctx, dbTx, req, payoutDate, s.currency)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}

	publishTransaction(s.publisher, payoutTx)
	return completed, nil
}

func (s *PayoutService) Fail(ctx context.Context, id string, failureReason string) (*models.PayoutRequest, error) {
	failureReason = strings.TrimSpace(failureReason)
	if failureReason == "" {
		return nil, fmt.Errorf("%w: failure reason is required", ErrValidation)
	}
	return s.resolveProcessing(ctx, id, models.PayoutStatusFailed, failureReason)
}

func (s *PayoutService) Reject(ctx context.Context, id string, rejectionReason string) (*models.PayoutRequest, error) {
	rejectionReason = strings.TrimSpace(rejectionReason)
	if rejectionReason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	return s.resolveProcessing(ctx, id, models.PayoutStatusRejected, rejectionReason)
}

func (s *PayoutService) resolveProcessing(
	ctx context.Context,
	id string,
	next models.PayoutStatus,
	reason string,
) (*models.PayoutRequest, error) {
	req, err := s.payoutRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, ErrConflict
	}
	if !req.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}

	var updated *models.PayoutRequest
	switch next {
	case models.PayoutStatusFailed:
		updated, err = s.payoutRepo.MarkFailed(ctx, id, reason)
	case models.PayoutStatusRejected:
		updated, err = s.payoutRepo.MarkRejected(ctx, id, reason)
	default:
		return nil, ErrInvalidTransition
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return updated, nil
}

func (s *PayoutService) ListForCoach(ctx context.Context, coachID int64) ([]models.PayoutRequest, error) {
	if coachID <= 0 {
		return nil, fmt.Errorf("%w: coach is required", ErrValidation)
	}
	return s.payoutRepo.ListByCoach(ctx, coachID, 0)
}
