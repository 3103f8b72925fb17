package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingHold      BookingStatus = "HOLD"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCanceled  BookingStatus = "CANCELED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingExpired   BookingStatus = "EXPIRED"
)

// Booking reserves one resource for one time range. Rows are never deleted;
// terminal statuses keep the ledger intact.
type Booking struct {
	ID              uuid.UUID
	ResourceGroupID uuid.UUID
	ResourceID      uuid.UUID
	ProfileID       uuid.UUID
	CustomerName    string
	CustomerPhone   string
	StartAt         time.Time
	EndAt           time.Time
	BlockedEndAt    time.Time
	Status          BookingStatus
	HoldExpiresAt   time.Time
	TotalAmount     float64
	AdvanceAmount   float64
	PaymentStage    string
	CheckInToken    string
	CreatedAt       time.Time
}

// NewHold builds a HOLD booking. The buffer is appended strictly after the
// slot, never before: a 10:00-11:00 booking with a 15 minute buffer blocks
// [10:00, 11:15).
func NewHold(profile Profile, resourceID uuid.UUID, startAt time.Time, duration time.Duration, customerName, customerPhone string, now time.Time, holdWindow time.Duration) Booking {
	endAt := startAt.Add(duration)
	return Booking{
		ID:              uuid.New(),
		ResourceGroupID: profile.ResourceGroupID,
		ResourceID:      resourceID,
		ProfileID:       profile.ID,
		CustomerName:    customerName,
		CustomerPhone:   customerPhone,
		StartAt:         startAt,
		EndAt:           endAt,
		BlockedEndAt:    endAt.Add(profile.Buffer),
		Status:          BookingHold,
		HoldExpiresAt:   now.Add(holdWindow),
		TotalAmount:     profile.PriceFor(startAt, duration),
		AdvanceAmount:   profile.AdvanceFor(startAt, duration),
		PaymentStage:    PaymentStageAdvance,
		CreatedAt:       now,
	}
}

// HoldExpired is the single definition of "expired" shared by the inline
// settlement check and the background sweep.
func (b Booking) HoldExpired(now time.Time) bool {
	return !now.Before(b.HoldExpiresAt)
}

// Overlaps reports whether the blocked ranges of two bookings intersect,
// comparing half-open intervals [StartAt, BlockedEndAt).
func (b Booking) Overlaps(other Booking) bool {
	return b.StartAt.Before(other.BlockedEndAt) && other.StartAt.Before(b.BlockedEndAt)
}

const (
	PaymentStageAdvance = "ADVANCE"
	PaymentStageFull    = "FULL"
)
