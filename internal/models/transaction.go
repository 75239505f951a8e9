package models

import "time"

type TransactionType string

const (
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRefund  TransactionType = "refund"
	TransactionTypePayout  TransactionType = "payout"
	TransactionTypeFee     TransactionType = "fee"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

// Transaction is an append-only ledger entry. Completed entries are never
// edited; corrections are new offsetting entries.
type Transaction struct {
	ID            string            `json:"id"`
	Type          TransactionType   `json:"type"`
	AmountMinor   int64             `json:"amount_minor"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description"`
	ClientID      *int64            `json:"client_id,omitempty"`
	CoachID       *int64            `json:"coach_id,omitempty"`
	PaymentID     *string           `json:"payment_id,omitempty"`
	PaymentMethod *string           `json:"payment_method,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TransactionTypePayment, TransactionTypeRefund, TransactionTypePayout, TransactionTypeFee:
		return true
	}
	return false
}

func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}
