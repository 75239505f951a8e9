package models

import "time"

// BillingReport is derived from the transaction log and never persisted as
// authoritative state.
type BillingReport struct {
	PeriodStart             time.Time `json:"period_start"`
	PeriodEnd               time.Time `json:"period_end"`
	TotalRevenueMinor       int64     `json:"total_revenue_minor"`
	TotalRefundsMinor       int64     `json:"total_refunds_minor"`
	TotalFeesMinor          int64     `json:"total_fees_minor"`
	NetRevenueMinor         int64     `json:"net_revenue_minor"`
	TransactionCount        int       `json:"transaction_count"`
	RefundCount             int       `json:"refund_count"`
	AverageTransactionMinor int64     `json:"average_transaction_minor"`
	RefundRatePercentage    float64   `json:"refund_rate_percentage"`
}

// BillingDashboard is the read-model behind the role-scoped dashboard
// screens; nothing in it is authoritative state.
type BillingDashboard struct {
	RecentTransactions  []Transaction   `json:"recent_transactions"`
	MonthlySummary      BillingReport   `json:"monthly_summary"`
	PendingRefunds      []RefundRequest `json:"pending_refunds"`
	CurrentBalanceMinor *int64          `json:"current_balance_minor,omitempty"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
