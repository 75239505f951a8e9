package models

import "time"

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusRejected   PayoutStatus = "rejected"
)

// PayoutRequest withdraws a coach's accumulated, refund-adjusted earnings.
// NetAmountMinor is always AmountMinor - FeesMinor.
type PayoutRequest struct {
	ID              string       `json:"id"`
	CoachID         int64        `json:"coach_id"`
	AmountMinor     int64        `json:"amount_minor"`
	FeesMinor       int64        `json:"fees_minor"`
	NetAmountMinor  int64        `json:"net_amount_minor"`
	Status          PayoutStatus `json:"status"`
	PayoutMethod    string       `json:"payout_method"`
	PayoutDate      *time.Time   `json:"payout_date,omitempty"`
	FailureReason   *string      `json:"failure_reason,omitempty"`
	RejectionReason *string      `json:"rejection_reason,omitempty"`
	Notes           *string      `json:"notes,omitempty"`
	PaymentCount    int          `json:"payment_count"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Rejecting a pending payout directly is not legal; staff move it to
// processing first.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusProcessing},
	PayoutStatusProcessing: {PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusRejected},
}

func (s PayoutStatus) Terminal() bool {
	switch s {
	case PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusRejected:
		return true
	}
	return false
}

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PendingEarnings is a coach's withdrawable balance, recomputed from the
// ledger on every read.
type PendingEarnings struct {
	TotalMinor   int64 `json:"total_earnings_minor"`
	PaymentCount int   `json:"payment_count"`
}
