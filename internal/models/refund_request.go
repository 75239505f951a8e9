package models

import "time"

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusApproved   RefundStatus = "approved"
	RefundStatusRejected   RefundStatus = "rejected"
	RefundStatusCompleted  RefundStatus = "completed"
)

type RefundReason string

const (
	RefundReasonCustomerRequest       RefundReason = "customer_request"
	RefundReasonSessionCancelled      RefundReason = "session_cancelled"
	RefundReasonUnsatisfactoryService RefundReason = "unsatisfactory_service"
	RefundReasonDuplicate             RefundReason = "duplicate"
	RefundReasonAutoCancellation      RefundReason = "auto_cancellation"
)

type RefundMethod string

const (
	RefundMethodOriginalPayment RefundMethod = "original_payment"
	RefundMethodManual          RefundMethod = "manual"
)

type RequesterType string

const (
	RequesterTypeClient RequesterType = "client"
	RequesterTypeStaff  RequesterType = "staff"
)

// RefundRequest reverses part or all of a completed payment transaction.
// Status changes go through the refund workflow engine only.
type RefundRequest struct {
	ID              string        `json:"id"`
	PaymentID       string        `json:"payment_id"`
	AmountMinor     int64         `json:"amount_minor"`
	Reason          RefundReason  `json:"reason"`
	Description     *string       `json:"description,omitempty"`
	RefundMethod    RefundMethod  `json:"refund_method"`
	Status          RefundStatus  `json:"status"`
	RequestedBy     int64         `json:"requested_by"`
	RequestedByType RequesterType `json:"requested_by_type"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundStatusPending:    {RefundStatusProcessing},
	RefundStatusProcessing: {RefundStatusApproved, RefundStatusRejected},
	RefundStatusApproved:   {RefundStatusCompleted},
}

func (s RefundStatus) Terminal() bool {
	return s == RefundStatusRejected || s == RefundStatusCompleted
}

func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	for _, allowed := range refundTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ValidRefundReason(r RefundReason) bool {
	switch r {
	case RefundReasonCustomerRequest, RefundReasonSessionCancelled,
		RefundReasonUnsatisfactoryService, RefundReasonDuplicate, RefundReasonAutoCancellation:
		return true
	}
	return false
}

func ValidRefundMethod(m RefundMethod) bool {
	return m == RefundMethodOriginalPayment || m == RefundMethodManual
}

func ValidRequesterType(t RequesterType) bool {
	return t == RequesterTypeClient || t == RequesterTypeStaff
}
