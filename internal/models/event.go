package models

// BillingEvent is pushed to connected staff dashboards whenever the ledger
// records a completed transaction.
type BillingEvent struct {
	Type        string       `json:"type"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Timestamp   string       `json:"timestamp"`
}
