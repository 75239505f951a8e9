package repository

import (
	"context"
	"time"

	"github.com/saeid-a/CoachBillingBack/internal/models"
)

type CreatePayoutRequestInput struct {
	ID             string
	CoachID        int64
	AmountMinor    int64
	FeesMinor      int64
	NetAmountMinor int64
	PayoutMethod   string
	Notes          *string
	PaymentCount   int
}

type PayoutRequestRepository struct {
	db DBTX
}

func NewPayoutRequestRepository(db DBTX) *PayoutRequestRepository {
	return &PayoutRequestRepository{db: db}
}

const payoutColumns = "id, coach_id, amount_minor, fees_minor, net_amount_minor, status, payout_method, payout_date, failure_reason, rejection_reason, notes, payment_count, created_at"

func scanPayoutRequest(row interface{ Scan(...any) error }) (*models.PayoutRequest, error) {
	var req models.PayoutRequest
	err := row.Scan(
		&req.ID,
		&req.CoachID,
		&req.AmountMinor,
		&req.FeesMinor,
		&req.NetAmountMinor,
		&req.Status,
		&req.PayoutMethod,
		&req.PayoutDate,
		&req.FailureReason,
		&req.RejectionReason,
		&req.Notes,
		&req.PaymentCount,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *PayoutRequestRepository) Create(ctx context.Context, input CreatePayoutRequestInput) (*models.PayoutRequest, error) {
	query := `
		INSERT INTO payout_requests (id, coach_id, amount_minor, fees_minor, net_amount_minor, status, payout_method, notes, payment_count)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, $8)
		RETURNING ` + payoutColumns + `
	`

	return scanPayoutRequest(r.db.QueryRow(
		ctx,
		query,
		input.ID,
		input.CoachID,
		input.AmountMinor,
		input.FeesMinor,
		input.NetAmountMinor,
		input.PayoutMethod,
		input.Notes,
		input.PaymentCount,
	))
}

func (r *PayoutRequestRepository) GetByID(ctx context.Context, id string) (*models.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`
	return scanPayoutRequest(r.db.QueryRow(ctx, query, id))
}

func (r *PayoutRequestRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1 FOR UPDATE`
	return scanPayoutRequest(r.db.QueryRow(ctx, query, id))
}

func (r *PayoutRequestRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	id string,
	currentStatus models.PayoutStatus,
	nextStatus models.PayoutStatus,
) (*models.PayoutRequest, error) {
	query := `
		UPDATE payout_requests
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING ` + payoutColumns + `
	`

	return scanPayoutRequest(r.db.QueryRow(ctx, query, id, currentStatus, nextStatus))
}

func (r *PayoutRequestRepository) MarkCompleted(
	ctx context.Context,
	id string,
	payoutDate time.Time,
) (*models.PayoutRequest, error) {
	query := `
		UPDATE payout_requests
		SET status = 'completed', payout_date = $2
		WHERE id = $1 AND status = 'processing'
		RETURNING ` + payoutColumns + `
	`

	return scanPayoutRequest(r.db.QueryRow(ctx, query, id, payoutDate.UTC()))
}

func (r *PayoutRequestRepository) MarkFailed(
	ctx context.Context,
	id string,
	failureReason string,
) (*models.PayoutRequest, error) {
	query := `
		UPDATE payout_requests
		SET status = 'failed', failure_reason = $2
		WHERE id = $1 AND status = 'processing'
		RETURNING ` + payoutColumns + `
	`

	return scanPayoutRequest(r.db.QueryRow(ctx, query, id, failureReason))
}

func (r *PayoutRequestRepository) MarkRejected(
	ctx context.Context,
	id string,
	rejectionReason string,
) (*models.PayoutRequest, error) {
	query := `
		UPDATE payout_requests
		SET status = 'rejected', rejection_reason = $2
		WHERE id = $1 AND status = 'processing'
		RETURNING ` + payoutColumns + `
	`

	return scanPayoutRequest(r.db.QueryRow(ctx, query, id, rejectionReason))
}

// ActiveTotalForCoach sums payouts still holding earnings: anything not
// rejected and not failed.
func (r *PayoutRequestRepository) ActiveTotalForCoach(ctx context.Context, coachID int64, excludeID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM payout_requests
		WHERE coach_id = $1
		AND status IN ('pending', 'processing', 'completed')
		AND ($2::text = '' OR id::text <> $2::text)
	`

	var total int64
	if err := r.db.QueryRow(ctx, query, coachID, excludeID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PayoutRequestRepository) ListByCoach(ctx context.Context, coachID int64, limit int) ([]models.PayoutRequest, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM payout_requests
		WHERE coach_id = $1
		ORDER BY created_at DESC, id DESC
	`

	args := []any{coachID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []models.PayoutRequest{}
	for rows.Next() {
		req, err := scanPayoutRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}
