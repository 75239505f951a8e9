package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachBillingBack/internal/models"
	"github.com/saeid-a/CoachBillingBack/internal/repository"
)

const dashboardRecentLimit = 10

// BillingService assembles the read models the dashboards consume. It holds
// no ledger logic; everything is filtered reads plus the reporting fold.
type BillingService struct {
	txRepo     *repository.TransactionRepository
	refundRepo *repository.RefundRequestRepository
	reporting  *ReportingService
}

func NewBillingService(
	txRepo *repository.TransactionRepository,
	refundRepo *repository.RefundRequestRepository,
	reporting *ReportingService,
) *BillingService {
	return &BillingService{
		txRepo:     txRepo,
		refundRepo: refundRepo,
		reporting:  reporting,
	}
}

func (s *BillingService) Dashboard(ctx context.Context, partyID int64, role string) (*models.BillingDashboard, error) {
	if partyID <= 0 {
		return nil, fmt.Errorf("%w: party is required", ErrValidation)
	}

	txFilter := repository.TransactionFilter{Limit: dashboardRecentLimit}
	refundFilter := repository.RefundListFilter{
		Statuses: []models.RefundStatus{models.RefundStatusPending, models.RefundStatusProcessing},
	}
	switch role {
	case "client":
		txFilter.ClientID = &partyID
		refundFilter.ClientID = &partyID
	case "coach":
		txFilter.CoachID = &partyID
		refundFilter.CoachID = &partyID
	default:
		return nil, fmt.Errorf("%w: unknown dashboard role %q", ErrValidation, role)
	}

	recent, err := s.txRepo.List(ctx, txFilter)
	if err != nil {
		return nil, err
	}

	summary, err := s.reporting.MonthlySummary(ctx, partyID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	pendingRefunds, err := s.refundRepo.List(ctx, refundFilter)
	if err != nil {
		return nil, err
	}

	dashboard := &models.BillingDashboard{
		RecentTransactions: recent,
		MonthlySummary:     summary,
		PendingRefunds:     pendingRefunds,
	}

	if role == "coach" {
		balance, err := s.txRepo.BalanceFor(ctx, partyID)
		if err != nil {
			return nil, err
		}
		dashboard.CurrentBalanceMinor = &balance
	}
	return dashboard, nil
}

// ListTransactions serves the admin transaction browser with server-side
// filters and pagination.
func (s *BillingService) ListTransactions(
	ctx context.Context,
	filter repository.TransactionFilter,
) ([]models.Transaction, int, error) {
	transactions, err := s.txRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.txRepo.CountForFilter(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

func (s *BillingService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}
