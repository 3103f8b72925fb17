package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentIntentStatus string

const (
	PaymentPending             PaymentIntentStatus = "PENDING"
	PaymentSuccess             PaymentIntentStatus = "SUCCESS"
	PaymentFailed              PaymentIntentStatus = "FAILED"
	PaymentExpired             PaymentIntentStatus = "EXPIRED"
	PaymentLateSuccessConflict PaymentIntentStatus = "LATE_SUCCESS_CONFLICT"
)

// PaymentIntent tracks one external payment attempt against a booking.
type PaymentIntent struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	Gateway       string
	TransactionID string
	Amount        float64
	Status        PaymentIntentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PaymentEvent is a gateway webhook after signature verification, which is
// the gateway adapter's job, not ours.
type PaymentEvent struct {
	Gateway       string
	TransactionID string
	BookingID     uuid.UUID
	Status        PaymentIntentStatus
	Amount        float64
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundProcessed RefundStatus = "PROCESSED"
)

// RefundRecord is produced by user cancellation or by late-success conflict
// resolution. PaymentRef identifies the payment event a conflict refund pays
// back; the store deduplicates on it, so redelivered events cannot refund the
// same payer twice. Cancellation refunds leave it empty.
type RefundRecord struct {
	ID           uuid.UUID
	BookingID    uuid.UUID
	Tier         RefundTier
	RefundAmount float64
	FeeRetained  float64
	Status       RefundStatus
	Reason       string
	PaymentRef   string
	CreatedAt    time.Time
}

type RefundTier string

const (
	RefundTierFull RefundTier = "FULL"
	RefundTierHalf RefundTier = "HALF"
	RefundTierNone RefundTier = "NONE"
	// RefundTierConflict refunds the full amount collected from a payer who
	// paid but lost the race for the physical resource.
	RefundTierConflict RefundTier = "CONFLICT"
)
