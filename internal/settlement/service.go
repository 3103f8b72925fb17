package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/idempotency"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
)

// Store is the slice of the booking store the settlement handler needs. All
// mutating calls are transactional on the other side.
type Store interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	FindOverlapping(ctx context.Context, groupID uuid.UUID, startAt, blockedEndAt time.Time, excludeID uuid.UUID, now time.Time) (*domain.Booking, error)
	ConfirmHold(ctx context.Context, bookingID uuid.UUID, checkInToken string, intent domain.PaymentIntent) error
	RecordLateConflict(ctx context.Context, bookingID uuid.UUID, intent domain.PaymentIntent, refund domain.RefundRecord) error
	RecordIntent(ctx context.Context, intent domain.PaymentIntent) error
}

type SlotLock interface {
	Release(ctx context.Context, groupID string, startAt, endAt time.Time, bookingID string) bool
}

type Auditor interface {
	LogSettlement(ctx context.Context, ev domain.PaymentEvent, outcome string)
}

type Outcome string

const (
	OutcomeConfirmed    Outcome = "CONFIRMED"
	OutcomeLateConflict Outcome = "LATE_SUCCESS_CONFLICT"
	OutcomeNoop         Outcome = "NOOP"
)

type Result struct {
	Status       Outcome   `json:"status"`
	BookingID    uuid.UUID `json:"booking_id"`
	CheckInToken string    `json:"check_in_token,omitempty"`
	RefundAmount float64   `json:"refund_amount,omitempty"`
}

// Service applies verified payment events exactly once. Redeliveries are
// resolved by the idempotency cache; the underlying transitions are
// themselves no-ops once applied, which keeps concurrent duplicate
// deliveries safe even on a cold cache.
type Service struct {
	store  Store
	locks  SlotLock
	idemp  *idempotency.Idempotency
	audit  Auditor
	grace  time.Duration
	logger observability.Logger
	now    func() time.Time
}

func NewService(store Store, locks SlotLock, idemp *idempotency.Idempotency, audit Auditor, grace time.Duration, logger observability.Logger) *Service {
	return &Service{
		store:  store,
		locks:  locks,
		idemp:  idemp,
		audit:  audit,
		grace:  grace,
		logger: logger,
		now:    time.Now,
	}
}

func eventKey(ev domain.PaymentEvent) string {
	return fmt.Sprintf("pay:%s:%s:%s", ev.Gateway, ev.TransactionID, ev.Status)
}

// Settle runs the event through the idempotency cache: the first delivery
// executes, every redelivery within the TTL gets the recorded result back
// with no side effects.
func (s *Service) Settle(ctx context.Context, ev domain.PaymentEvent) (*Result, error) {
	result, replayed, err := idempotency.DoJSON(ctx, s.idemp, eventKey(ev), func(ctx context.Context) (Result, error) {
		return s.apply(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		observability.Settlements.WithLabelValues(string(result.Status)).Inc()
		s.audit.LogSettlement(ctx, ev, string(result.Status))
	}
	return &result, nil
}

func (s *Service) apply(ctx context.Context, ev domain.PaymentEvent) (Result, error) {
	switch ev.Status {
	case domain.PaymentSuccess:
		return s.applySuccess(ctx, ev)
	case domain.PaymentFailed, domain.PaymentExpired:
		// The hold expires naturally or already has; only the intent moves.
		err := s.store.RecordIntent(ctx, newIntent(ev, ev.Status))
		return Result{Status: OutcomeNoop, BookingID: ev.BookingID}, err
	default:
		return Result{}, fmt.Errorf("%w: payment status %q", domain.ErrInvalidInput, ev.Status)
	}
}

func (s *Service) applySuccess(ctx context.Context, ev domain.PaymentEvent) (Result, error) {
	b, err := s.store.GetBooking(ctx, ev.BookingID)
	if err != nil {
		return Result{}, fmt.Errorf("load booking: %w", err)
	}

	switch b.Status {
	case domain.BookingConfirmed, domain.BookingCompleted:
		// Redelivery of a prior success.
		return Result{Status: OutcomeNoop, BookingID: b.ID}, nil
	case domain.BookingCanceled:
		// Canceled before the success arrived; refund the payer in full.
		return s.resolveConflict(ctx, ev, b)
	case domain.BookingHold, domain.BookingExpired:
	default:
		return Result{}, fmt.Errorf("booking %s in unexpected status %s", b.ID, b.Status)
	}

	// A sweep may already have flipped the row to EXPIRED; the deadline
	// predicate is the same either way.
	deadline := b.HoldExpiresAt.Add(s.grace)
	late := b.Status == domain.BookingExpired || !s.now().Before(deadline)

	if late {
		other, err := s.store.FindOverlapping(ctx, b.ResourceGroupID, b.StartAt, b.BlockedEndAt, b.ID, s.now())
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return Result{}, fmt.Errorf("check reclaim: %w", err)
		}
		if other != nil {
			// The payer lost the race for the physical resource.
			return s.resolveConflict(ctx, ev, b)
		}
		// Range still free: late-success grace, confirm anyway.
	}

	token := uuid.NewString()
	err = s.store.ConfirmHold(ctx, b.ID, token, newIntent(ev, domain.PaymentSuccess))
	if errors.Is(err, domain.ErrSlotUnavailable) {
		// Re-entering the exclusion constraint from EXPIRED lost a race that
		// FindOverlapping could not see. Same outcome as a reclaim.
		return s.resolveConflict(ctx, ev, b)
	}
	if errors.Is(err, domain.ErrNotFound) {
		// Concurrent transition won; re-read and settle on its outcome.
		current, getErr := s.store.GetBooking(ctx, b.ID)
		if getErr != nil {
			return Result{}, fmt.Errorf("reload booking: %w", getErr)
		}
		if current.Status == domain.BookingConfirmed {
			return Result{Status: OutcomeNoop, BookingID: b.ID}, nil
		}
		return s.resolveConflict(ctx, ev, current)
	}
	if err != nil {
		return Result{}, fmt.Errorf("confirm hold: %w", err)
	}

	// The CONFIRMED row occupies the range permanently; the advisory lock is
	// redundant now.
	s.locks.Release(ctx, b.ResourceGroupID.String(), b.StartAt, b.EndAt, b.ID.String())
	s.logger.WithField("booking_id", b.ID.String()).Info("booking confirmed")
	return Result{Status: OutcomeConfirmed, BookingID: b.ID, CheckInToken: token}, nil
}

// resolveConflict marks the intent LATE_SUCCESS_CONFLICT and refunds the full
// amount collected from this payer. Never silently dropped. The refund is
// keyed by the payment event, so concurrent duplicate deliveries that all
// miss the idempotency cache still write a single refund row.
func (s *Service) resolveConflict(ctx context.Context, ev domain.PaymentEvent, b *domain.Booking) (Result, error) {
	rec := domain.RefundRecord{
		ID:           uuid.New(),
		BookingID:    b.ID,
		Tier:         domain.RefundTierConflict,
		RefundAmount: ev.Amount,
		FeeRetained:  0,
		Status:       domain.RefundPending,
		Reason:       "late success conflict",
		PaymentRef:   ev.Gateway + ":" + ev.TransactionID,
		CreatedAt:    s.now(),
	}
	intent := newIntent(ev, domain.PaymentLateSuccessConflict)
	if err := s.store.RecordLateConflict(ctx, b.ID, intent, rec); err != nil {
		return Result{}, fmt.Errorf("record conflict: %w", err)
	}
	s.logger.WithField("booking_id", b.ID.String()).Warn("late success conflict, refunding ", ev.Amount)
	return Result{Status: OutcomeLateConflict, BookingID: b.ID, RefundAmount: ev.Amount}, nil
}

func newIntent(ev domain.PaymentEvent, status domain.PaymentIntentStatus) domain.PaymentIntent {
	return domain.PaymentIntent{
		ID:            uuid.New(),
		BookingID:     ev.BookingID,
		Gateway:       ev.Gateway,
		TransactionID: ev.TransactionID,
		Amount:        ev.Amount,
		Status:        status,
	}
}
