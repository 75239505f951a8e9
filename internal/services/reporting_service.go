package services

import (
	"context"
	"fmt"
	"time"

	"github.com/saeid-a/CoachBillingBack/internal/models"
	"github.com/saeid-a/CoachBillingBack/internal/repository"
)

type transactionLister interface {
	List(ctx context.Context, filter repository.TransactionFilter) ([]models.Transaction, error)
}

// ReportingService aggregates ledger entries over a time window. It is a
// pure fold over completed transactions, so the same closed period always
// produces the same report.
type ReportingService struct {
	transactions transactionLister
}

func NewReportingService(transactions transactionLister) *ReportingService {
	return &ReportingService{transactions: transactions}
}

// MonthlySummary reports the calendar month containing the given time, for
// one party.
func (s *ReportingService) MonthlySummary(ctx context.Context, partyID int64, month time.Time) (models.BillingReport, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return s.Summary(ctx, partyID, start, end)
}

func (s *ReportingService) Summary(ctx context.Context, partyID int64, periodStart, periodEnd time.Time) (models.BillingReport, error) {
	if partyID <= 0 {
		return models.BillingReport{}, fmt.Errorf("%w: party is required", ErrValidation)
	}
	if !periodEnd.After(periodStart) {
		return models.BillingReport{}, fmt.Errorf("%w: period end must follow period start", ErrValidation)
	}

	transactions, err := s.transactions.List(ctx, repository.TransactionFilter{
		PartyID:  &partyID,
		Statuses: []models.TransactionStatus{models.TransactionStatusCompleted},
		From:     &periodStart,
		To:       &periodEnd,
	})
	if err != nil {
		return models.BillingReport{}, err
	}

	report := models.BillingReport{
		PeriodStart: periodStart.UTC(),
		PeriodEnd:   periodEnd.UTC(),
	}
	// TransactionCount counts payments only; it is the denominator for both
	// the refund rate and the average transaction.
	for _, tx := range transactions {
		switch tx.Type {
		case models.TransactionTypePayment:
			report.TotalRevenueMinor += tx.AmountMinor
			report.TransactionCount++
		case models.TransactionTypeRefund:
			report.TotalRefundsMinor += tx.AmountMinor
			report.RefundCount++
		case models.TransactionTypeFee:
			report.TotalFeesMinor += tx.AmountMinor
		}
	}

	report.NetRevenueMinor = report.TotalRevenueMinor - report.TotalRefundsMinor - report.TotalFeesMinor
	if report.TransactionCount > 0 {
		report.AverageTransactionMinor = report.TotalRevenueMinor / int64(report.TransactionCount)
		report.RefundRatePercentage = float64(report.RefundCount) / float64(report.TransactionCount) * 100
	}
	return report, nil
}
