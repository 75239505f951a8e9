package repository

import (
	"context"
	"time"

	"github.com/saeid-a/CoachBillingBack/internal/models"
)

type CreateRefundRequestInput struct {
	ID              string
	PaymentID       string
	AmountMinor     int64
	Reason          models.RefundReason
	Description     *string
	RefundMethod    models.RefundMethod
	RequestedBy     int64
	RequestedByType models.RequesterType
}

type RefundRequestRepository struct {
	db DBTX
}

func NewRefundRequestRepository(db DBTX) *RefundRequestRepository {
	return &RefundRequestRepository{db: db}
}

const refundColumns = "id, payment_id, amount_minor, reason, description, refund_method, status, requested_by, requested_by_type, rejection_reason, reviewed_at, created_at"

func scanRefundRequest(row interface{ Scan(...any) error }) (*models.RefundRequest, error) {
	var req models.RefundRequest
	err := row.Scan(
		&req.ID,
		&req.PaymentID,
		&req.AmountMinor,
		&req.Reason,
		&req.Description,
		&req.RefundMethod,
		&req.Status,
		&req.RequestedBy,
		&req.RequestedByType,
		&req.RejectionReason,
		&req.ReviewedAt,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RefundRequestRepository) Create(ctx context.Context, input CreateRefundRequestInput) (*models.RefundRequest, error) {
	query := `
		INSERT INTO refund_requests (id, payment_id, amount_minor, reason, description, refund_method, status, requested_by, requested_by_type)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)
		RETURNING ` + refundColumns + `
	`

	return scanRefundRequest(r.db.QueryRow(
		ctx,
		query,
		input.ID,
		input.PaymentID,
		input.AmountMinor,
		input.Reason,
		input.Description,
		input.RefundMethod,
		input.RequestedBy,
		input.RequestedByType,
	))
}

func (r *RefundRequestRepository) GetByID(ctx context.Context, id string) (*models.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1`
	return scanRefundRequest(r.db.QueryRow(ctx, query, id))
}

func (r *RefundRequestRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1 FOR UPDATE`
	return scanRefundRequest(r.db.QueryRow(ctx, query, id))
}

// UpdateStatusIfCurrent is a compare-and-set transition; pgx.ErrNoRows means
// the stored status was no longer currentStatus.
func (r *RefundRequestRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	id string,
	currentStatus models.RefundStatus,
	nextStatus models.RefundStatus,
) (*models.RefundRequest, error) {
	query := `
		UPDATE refund_requests
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING ` + refundColumns + `
	`

	return scanRefundRequest(r.db.QueryRow(ctx, query, id, currentStatus, nextStatus))
}

func (r *RefundRequestRepository) MarkReviewed(
	ctx context.Context,
	id string,
	currentStatus models.RefundStatus,
	nextStatus models.RefundStatus,
	rejectionReason *string,
	reviewedAt time.Time,
) (*models.RefundRequest, error) {
	query := `
		UPDATE refund_requests
		SET status = $3, rejection_reason = $4, reviewed_at = $5
		WHERE id = $1 AND status = $2
		RETURNING ` + refundColumns + `
	`

	return scanRefundRequest(r.db.QueryRow(ctx, query, id, currentStatus, nextStatus, rejectionReason, reviewedAt.UTC()))
}

func (r *RefundRequestRepository) SetRefundMethod(ctx context.Context, id string, method models.RefundMethod) error {
	_, err := r.db.Exec(ctx, `UPDATE refund_requests SET refund_method = $2 WHERE id = $1`, id, method)
	return err
}

/// ApprovedOrCompletedTotalForPayment feeds the remaining-refundable check:
// only approved or completed refunds reduce what a payment can still refund.
func (r *RefundRequestRepository) ApprovedOrCompletedTotalForPayment(ctx context.Context, paymentID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM refund_requests
		WHERE payment_id = $1 AND status IN ('approved', 'completed')
	`

	var total int64
	if err := r.db.QueryRow(ctx, query, paymentID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// HeldTotalForCoach sums refunds in any non-rejected state against the
// coach's payments; pending refunds already hold earnings back from payouts.
func (r *RefundRequestRepository) HeldTotalForCoach(ctx context.Context, coachID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(r.amount_minor), 0)
		FROM refund_requests r
		JOIN transactions t ON t.id = r.payment_id
		WHERE t.coach_id = $1
		AND r.status IN ('pending', 'processing', 'approved', 'completed')
	`

	var total int64
	if err := r.db.QueryRow(ctx, query, coachID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// RefundListFilter's CoachID and ClientID match through the refunded
// payment's parties, not the requester; a staff-submitted refund still shows
// up for both sides of the payment.
type RefundListFilter struct {
	PaymentID   *string
	RequestedBy *int64
	CoachID     *int64
	ClientID    *int64
	Statuses    []models.RefundStatus
	Limit       int
}

func (r *RefundRequestRepository) List(ctx context.Context, filter RefundListFilter) ([]models.RefundRequest, error) {
	query := `
		SELECT r.id, r.payment_id, r.amount_minor, r.reason, r.description, r.refund_method, r.status, r.requested_by, r.requested_by_type, r.rejection_reason, r.reviewed_at, r.created_at
		FROM refund_requests r
		WHERE ($1::text IS NULL OR r.payment_id::text = $1)
		AND ($2::bigint IS NULL OR r.requested_by = $2)
		AND ($3::bigint IS NULL OR EXISTS (
			SELECT 1 FROM transactions t WHERE t.id = r.payment_id AND t.coach_id = $3
		))
		AND ($4::bigint IS NULL OR EXISTS (
			SELECT 1 FROM transactions t WHERE t.id = r.payment_id AND t.client_id = $4
		))
		AND ($5::text[] IS NULL OR r.status = ANY($5))
		ORDER BY r.created_at DESC, r.id DESC
	`

	var statuses []string
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}

	args := []any{filter.PaymentID, filter.RequestedBy, filter.CoachID, filter.ClientID, statuses}
	if filter.Limit > 0 {
		query += " LIMIT $6"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []models.RefundRequest{}
	for rows.Next() {
		req, err := scanRefundRequest(rows)
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
