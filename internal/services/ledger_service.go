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

// LedgerService turns confirmed external financial events into transaction
// records and computes balances by folding over them.
type LedgerService struct {
	db        *pgxpool.Pool
	txRepo    *repository.TransactionRepository
	currency  string
	publisher EventPublisher
}

func NewLedgerService(
	db *pgxpool.Pool,
	txRepo *repository.TransactionRepository,
	currency string,
	publisher EventPublisher,
) *LedgerService {
	return &LedgerService{
		db:        db,
		txRepo:    txRepo,
		currency:  currency,
		publisher: publisher,
	}
}

// Writers touching the same payment serialize on its advisory lock; uuid
// keys go through hashtext.
func lockPaymentKey(ctx context.Context, tx pgx.Tx, paymentID string) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", paymentID)
	return err
}

// Writers touching the same coach's earnings pool serialize on the coach id.
func lockCoachKey(ctx context.Context, tx pgx.Tx, coachID int64) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", coachID)
	return err
}

// RecordPayment appends a completed payment transaction for a confirmed
// external charge.
func (s *LedgerService) RecordPayment(
	ctx context.Context,
	clientID int64,
	coachID int64,
	amountMinor int64,
	method string,
) (*models.Transaction, error) {
	if amountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	if s.currency == "" {
		return nil, fmt.Errorf("%w: currency is not configured", ErrValidation)
	}
	if clientID <= 0 || coachID <= 0 {
		return nil, fmt.Errorf("%w: client and coach are required", ErrValidation)
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrValidation)
	}

	tx, err := s.txRepo.Append(ctx, repository.AppendTransactionInput{
		ID:            uuid.NewString(),
		Type:          models.TransactionTypePayment,
		AmountMinor:   amountMinor,
		Currency:      s.currency,
		Status:        models.TransactionStatusCompleted,
		Description:   fmt.Sprintf("Coaching payment from client %d to coach %d", clientID, coachID),
		ClientID:      &clientID,
		CoachID:       &coachID,
		PaymentMethod: &method,
	})
	if err != nil {
		return nil, err
	}

	publishTransaction(s.publisher, tx)
	return tx, nil
}

// RecordRefundExecution executes a refund request that already reached
// approved: it writes the offsetting refund transaction and completes the
// request, atomically. The refund workflow invokes the same execution inside
// its approval section; this entry exists for requests left approved by an
// interrupted boundary call.
func (s *LedgerService) RecordRefundExecution(ctx context.Context, refundRequestID string) (*models.Transaction, error) {
	dbTx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = dbTx.Rollback(ctx)
	}()

	refundRepo := repository.NewRefundRequestRepository(dbTx)
	req, err := refundRepo.GetByIDForUpdate(ctx, refundRequestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.Status != models.RefundStatusApproved {
		if req.Status.Terminal() {
			return nil, ErrConflict
		}
		return nil, ErrInvalidTransition
	}

	if err := lockPaymentKey(ctx, dbTx, req.PaymentID); err != nil {
		return nil, err
	}

	refundTx, err := executeRefundLocked(ctx, dbTx, req, s.currency)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}

	publishTransaction(s.publisher, refundTx)
	return refundTx, nil
}

// RecordPayoutExecution is the standalone counterpart for payouts in
// processing. Like the payout workflow's Complete, it re-checks the coach's
// pending earnings under the coach lock and fails the payout instead of
// over-paying when a refund shrank them since submission.
func (s *LedgerService) RecordPayoutExecution(
	ctx context.Context,
	payoutRequestID string,
	payoutDate time.Time,
) (*models.Transaction, error) {
	dbTx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = dbTx.Rollback(ctx)
	}()

	payoutRepo := repository.NewPayoutRequestRepository(dbTx)
	req, err := payoutRepo.GetByIDForUpdate(ctx, payoutRequestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.Status != models.PayoutStatusProcessing {
		if req.Status.Terminal() {
			return nil, ErrConflict
		}
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
		if _, err := payoutRepo.MarkFailed(ctx, req.ID, FailureReasonEarningsReduced); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrInvalidTransition
			}
			return nil, err
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, &AmountExceedsAvailableError{
			RequestedMinor: req.AmountMinor,
			AvailableMinor: earnings.TotalMinor,
		}
	}

	payoutTx, _, err := executePayoutLocked(ctx, dbTx, req, payoutDate, s.currency)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}

	publishTransaction(s.publisher, payoutTx)
	return payoutTx, nil
}

// BalanceFor folds the party's completed transaction history; never cached.
func (s *LedgerService) BalanceFor(ctx context.Context, partyID int64) (int64, error) {
	return s.txRepo.BalanceFor(ctx, partyID)
}

// executeRefundLocked writes the refund transaction and advances the request
// approved -> completed. The caller holds the payment's advisory lock and
// the request row lock, in the same database transaction.
func executeRefundLocked(
	ctx context.Context,
	dbTx pgx.Tx,
	req *models.RefundRequest,
	currency string,
) (*models.Transaction, error) {
	txRepo := repository.NewTransactionRepository(dbTx)
	refundRepo := repository.NewRefundRequestRepository(dbTx)

	payment, err := txRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	refundTx, err := txRepo.Append(ctx, repository.AppendTransactionInput{
		ID:          uuid.NewString(),
		Type:        models.TransactionTypeRefund,
		AmountMinor: req.AmountMinor,
		Currency:    currency,
		Status:      models.TransactionStatusCompleted,
		Description: fmt.Sprintf("Refund (%s) for payment %s", req.Reason, req.PaymentID),
		ClientID:    payment.ClientID,
		CoachID:     payment.CoachID,
		PaymentID:   &req.PaymentID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := refundRepo.UpdateStatusIfCurrent(ctx, req.ID, models.RefundStatusApproved, models.RefundStatusCompleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return refundTx, nil
}

// executePayoutLocked writes the payout transaction (net amount) plus a fee
// transaction when fees were withheld, then marks the request completed. The
// caller holds the coach's advisory lock and the request row lock.
func executePayoutLocked(
	ctx context.Context,
	dbTx pgx.Tx,
	req *models.PayoutRequest,
	payoutDate time.Time,
	currency string,
) (*models.Transaction, *models.PayoutRequest, error) {
	txRepo := repository.NewTransactionRepository(dbTx)
	payoutRepo := repository.NewPayoutRequestRepository(dbTx)

	payoutTx, err := txRepo.Append(ctx, repository.AppendTransactionInput{
		ID:          uuid.NewString(),
		Type:        models.TransactionTypePayout,
		AmountMinor: req.NetAmountMinor,
		Currency:    currency,
		Status:      models.TransactionStatusCompleted,
		Description: fmt.Sprintf("Payout to coach %d via %s", req.CoachID, req.PayoutMethod),
		CoachID:     &req.CoachID,
	})
	if err != nil {
		return nil, nil, err
	}

	if req.FeesMinor > 0 {
		if _, err := txRepo.Append(ctx, repository.AppendTransactionInput{
			ID:          uuid.NewString(),
			Type:        models.TransactionTypeFee,
			AmountMinor: req.FeesMinor,
			Currency:    currency,
			Status:      models.TransactionStatusCompleted,
			Description: fmt.Sprintf("Payout fee for request %s", req.ID),
			CoachID:     &req.CoachID,
		}); err != nil {
			return nil, nil, err
		}
	}

	completed, err := payoutRepo.MarkCompleted(ctx, req.ID, payoutDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrInvalidTransition
		}
		return nil, nil, err
	}
	return payoutTx, completed, nil
}

// computePendingEarningsLocked folds a coach's withdrawable balance from the
// ledger: completed payment credits, minus refunds not yet rejected, minus
// payouts still holding earnings. excludePayoutID drops the request being
// completed from its own re-check.
func computePendingEarningsLocked(
	ctx context.Context,
	db repository.DBTX,
	coachID int64,
	excludePayoutID string,
) (models.PendingEarnings, error) {
	txRepo := repository.NewTransactionRepository(db)
	refundRepo := repository.NewRefundRequestRepository(db)
	payoutRepo := repository.NewPayoutRequestRepository(db)

	credit, err := txRepo.CompletedPaymentCreditForCoach(ctx, coachID)
	if err != nil {
		return models.PendingEarnings{}, err
	}
	held, err := refundRepo.HeldTotalForCoach(ctx, coachID)
	if err != nil {
		return models.PendingEarnings{}, err
	}
	active, err := payoutRepo.ActiveTotalForCoach(ctx, coachID, excludePayoutID)
	if err != nil {
		return models.PendingEarnings{}, err
	}
	count, err := txRepo.EarningPaymentCountForCoach(ctx, coachID)
	if err != nil {
		return models.PendingEarnings{}, err
	}

	total := credit - held - active
	if total < 0 {
		total = 0
	}
	return models.PendingEarnings{TotalMinor: total, PaymentCount: count}, nil
}
