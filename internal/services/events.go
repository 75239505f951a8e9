package services

import (
	"time"

	"github.com/saeid-a/CoachBillingBack/internal/models"
)

// EventPublisher receives a BillingEvent for every transaction the ledger
// completes. Publishing must not block ledger writes.
type EventPublisher interface {
	Publish(event models.BillingEvent)
}

func publishTransaction(publisher EventPublisher, tx *models.Transaction) {
	if publisher == nil || tx == nil {
		return
	}
	publisher.Publish(models.BillingEvent{
		Type:        "transaction",
		Transaction: tx,
		Timestamp:   tx.CreatedAt.UTC().Format(time.RFC3339),
	})
}
