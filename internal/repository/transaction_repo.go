package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saeid-a/CoachBillingBack/internal/models"
)

type AppendTransactionInput struct {
	ID            string
	Type          models.TransactionType
	AmountMinor   int64
	Currency      string
	Status        models.TransactionStatus
	Description   string
	ClientID      *int64
	CoachID       *int64
	PaymentID     *string
	PaymentMethod *string
}

type TransactionFilter struct {
	PartyID  *int64
	ClientID *int64
	CoachID  *int64
	Types    []models.TransactionType
	Statuses []models.TransactionStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = "id, type, amount_minor, currency, status, description, client_id, coach_id, payment_id, payment_method, created_at"

func scanTransaction(row interface{ Scan(...any) error }) (*models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.Type,
		&tx.AmountMinor,
		&tx.Currency,
		&tx.Status,
		&tx.Description,
		&tx.ClientID,
		&tx.CoachID,
		&tx.PaymentID,
		&tx.PaymentMethod,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Append inserts a new ledger entry. There is no update path; history is
// corrected with offsetting entries only.
func (r *TransactionRepository) Append(ctx context.Context, input AppendTransactionInput) (*models.Transaction, error) {
	query := `
		INSERT INTO transactions (id, type, amount_minor, currency, status, description, client_id, coach_id, payment_id, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + transactionColumns + `
	`

	return scanTransaction(r.db.QueryRow(
		ctx,
		query,
		input.ID,
		input.Type,
		input.AmountMinor,
		input.Currency,
		input.Status,
		input.Description,
		input.ClientID,
		input.CoachID,
		input.PaymentID,
		input.PaymentMethod,
	))
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, id))
}

// List returns transactions matching the filter in reverse-chronological
// order.
func (r *TransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	conditions := []string{}
	args := []any{}

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.PartyID != nil {
		placeholder := arg(*filter.PartyID)
		conditions = append(conditions, fmt.Sprintf("(client_id = %s OR coach_id = %s)", placeholder, placeholder))
	}
	if filter.ClientID != nil {
		conditions = append(conditions, "client_id = "+arg(*filter.ClientID))
	}
	if filter.CoachID != nil {
		conditions = append(conditions, "coach_id = "+arg(*filter.CoachID))
	}
	if len(filter.Types) > 0 {
		conditions = append(conditions, "type = ANY("+arg(filter.Types)+")")
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status = ANY("+arg(filter.Statuses)+")")
	}
	if filter.From != nil {
		conditions = append(conditions, "created_at >= "+arg(filter.From.UTC()))
	}
	if filter.To != nil {
		conditions = append(conditions, "created_at < "+arg(filter.To.UTC()))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *TransactionRepository) CountForFilter(ctx context.Context, filter TransactionFilter) (int, error) {
	filter.Limit = 0
	filter.Offset = 0

	conditions := []string{}
	args := []any{}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.PartyID != nil {
		placeholder := arg(*filter.PartyID)
		conditions = append(conditions, fmt.Sprintf("(client_id = %s OR coach_id = %s)", placeholder, placeholder))
	}
	if filter.ClientID != nil {
		conditions = append(conditions, "client_id = "+arg(*filter.ClientID))
	}
	if filter.CoachID != nil {
		conditions = append(conditions, "coach_id = "+arg(*filter.CoachID))
	}
	if len(filter.Types) > 0 {
		conditions = append(conditions, "type = ANY("+arg(filter.Types)+")")
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "status = ANY("+arg(filter.Statuses)+")")
	}
	if filter.From != nil {
		conditions = append(conditions, "created_at >= "+arg(filter.From.UTC()))
	}
	if filter.To != nil {
		conditions = append(conditions, "created_at < "+arg(filter.To.UTC()))
	}

	query := `SELECT COUNT(*) FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// BalanceFor folds the completed transaction history from the party's side.
// Coaches are credited by payments and debited by refunds, payouts and fees;
// clients are debited by payments and credited by refunds.
func (r *TransactionRepository) BalanceFor(ctx context.Context, partyID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE
			WHEN coach_id = $1 AND type = 'payment' THEN amount_minor
			WHEN coach_id = $1 THEN -amount_minor
			WHEN type = 'payment' THEN -amount_minor
			ELSE amount_minor
		END), 0)
		FROM transactions
		WHERE status = 'completed' AND (coach_id = $1 OR client_id = $1)
	`

	var balance int64
	if err := r.db.QueryRow(ctx, query, partyID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// CompletedPaymentCreditForCoach is the gross earnings side of the
// pending-earnings fold.
func (r *TransactionRepository) CompletedPaymentCreditForCoach(ctx context.Context, coachID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM transactions
		WHERE type = 'payment' AND status = 'completed' AND coach_id = $1
	`

	var total int64
	if err := r.db.QueryRow(ctx, query, coachID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// EarningPaymentCountForCoach counts the coach's completed payments that are
// not yet fully consumed by non-rejected refund requests.
func (r *TransactionRepository) EarningPaymentCountForCoach(ctx context.Context, coachID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM transactions t
		WHERE t.type = 'payment' AND t.status = 'completed' AND t.coach_id = $1
		AND t.amount_minor > COALESCE((
			SELECT SUM(r.amount_minor)
			FROM refund_requests r
			WHERE r.payment_id = t.id
			AND r.status IN ('pending', 'processing', 'approved', 'completed')
		), 0)
	`

	var count int
	if err := r.db.QueryRow(ctx, query, coachID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
