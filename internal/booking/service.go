package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/availability"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/refund"
)

// Store is the durable booking store. Its CreateHold carries the range
// exclusion guarantee: an overlapping insert fails with ErrSlotUnavailable.
type Store interface {
	CreateHold(ctx context.Context, b domain.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	BookingsForRange(ctx context.Context, groupID uuid.UUID, from, to time.Time) ([]domain.Booking, error)
	CancelConfirmed(ctx context.Context, bookingID uuid.UUID, refund domain.RefundRecord) error
}

// SlotLock is the advisory fast-fail layer in front of the store. It may
// fail open; implementations decide that policy.
type SlotLock interface {
	Acquire(ctx context.Context, groupID string, startAt, endAt time.Time, bookingID, ownerID string, ttl time.Duration) (bool, *domain.LockInfo)
	Release(ctx context.Context, groupID string, startAt, endAt time.Time, bookingID string) bool
}

// Catalog is the read-only venue configuration owned by the facility module.
type Catalog interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	GetProfileByGroup(ctx context.Context, groupID uuid.UUID) (*domain.Profile, error)
	GetBlocks(ctx context.Context, groupID uuid.UUID, from, to time.Time) ([]domain.Block, error)
}

type Auditor interface {
	LogCancellation(ctx context.Context, refund domain.RefundRecord, actor string)
}

type Service struct {
	store      Store
	locks      SlotLock
	catalog    Catalog
	audit      Auditor
	refunds    refund.Policy
	holdWindow time.Duration
	logger     observability.Logger
	now        func() time.Time
}

func NewService(store Store, locks SlotLock, catalog Catalog, audit Auditor, refunds refund.Policy, holdWindow time.Duration, logger observability.Logger) *Service {
	return &Service{
		store:      store,
		locks:      locks,
		catalog:    catalog,
		audit:      audit,
		refunds:    refunds,
		holdWindow: holdWindow,
		logger:     logger,
		now:        time.Now,
	}
}

type HoldRequest struct {
	ProfileID     uuid.UUID
	ResourceID    uuid.UUID
	StartAt       time.Time
	Duration      time.Duration
	CustomerName  string
	CustomerPhone string
	// OwnerID identifies the requesting customer for lock ownership.
	OwnerID string
}

type HoldResult struct {
	BookingID     uuid.UUID `json:"booking_id"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
}

// CreateHold is the HOLD entry point. The lock acquire is the fast path: it
// rejects obviously-conflicting concurrent requests without a store round
// trip. The store insert is the authoritative guard; when it rejects, the
// lock we took is released before surfacing ErrSlotUnavailable.
func (s *Service) CreateHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	now := s.now()

	profile, err := s.catalog.GetProfile(ctx, req.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if err := validateHold(*profile, req, now); err != nil {
		return nil, err
	}

	b := domain.NewHold(*profile, req.ResourceID, req.StartAt, req.Duration, req.CustomerName, req.CustomerPhone, now, s.holdWindow)

	groupID := profile.ResourceGroupID.String()
	acquired, holder := s.locks.Acquire(ctx, groupID, b.StartAt, b.EndAt, b.ID.String(), req.OwnerID, s.holdWindow)
	if !acquired {
		observability.SlotConflicts.WithLabelValues("lock").Inc()
		if holder != nil {
			s.logger.WithField("holder", holder.BookingID).Debug("slot lock held")
		}
		return nil, domain.ErrSlotUnavailable
	}

	if err := s.store.CreateHold(ctx, b); err != nil {
		// Lock TTL races and fail-open acquires both land here; the store
		// rejection is the expected signal, not an infrastructure error.
		s.locks.Release(ctx, groupID, b.StartAt, b.EndAt, b.ID.String())
		if errors.Is(err, domain.ErrSlotUnavailable) {
			observability.SlotConflicts.WithLabelValues("store").Inc()
			return nil, domain.ErrSlotUnavailable
		}
		return nil, fmt.Errorf("create hold: %w", err)
	}

	observability.HoldsCreated.Inc()
	s.logger.WithField("booking_id", b.ID.String()).Info("hold created")
	return &HoldResult{BookingID: b.ID, HoldExpiresAt: b.HoldExpiresAt}, nil
}

func validateHold(profile domain.Profile, req HoldRequest, now time.Time) error {
	if !profile.AllowsDuration(req.Duration) {
		return fmt.Errorf("%w: duration %s not offered", domain.ErrInvalidInput, req.Duration)
	}
	if req.StartAt.Before(now.Add(profile.MinLeadTime)) {
		return fmt.Errorf("%w: start is inside the minimum lead time", domain.ErrInvalidInput)
	}
	if req.StartAt.After(now.AddDate(0, 0, profile.MaxAdvanceDays)) {
		return fmt.Errorf("%w: start is beyond the booking horizon", domain.ErrInvalidInput)
	}
	return nil
}

// Availability projects the slot grid for one calendar day. Read only.
func (s *Service) Availability(ctx context.Context, groupID uuid.UUID, date time.Time) (availability.Grid, error) {
	profile, err := s.catalog.GetProfileByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var (
		bookings []domain.Booking
		blocks   []domain.Block
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if bookings, err = s.store.BookingsForRange(gctx, groupID, dayStart, dayEnd); err != nil {
			return fmt.Errorf("load bookings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if blocks, err = s.catalog.GetBlocks(gctx, groupID, dayStart, dayEnd); err != nil {
			return fmt.Errorf("load blocks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return availability.Build(*profile, bookings, blocks, date, s.now()), nil
}

type CancelResult struct {
	Tier         domain.RefundTier `json:"refund_tier"`
	RefundAmount float64           `json:"refund_amount"`
}

// Cancel transitions a CONFIRMED booking to CANCELED and records the
// time-tiered refund. Bookings in any other status cannot be canceled here.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID, actor string) (*CancelResult, error) {
	now := s.now()

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b.Status != domain.BookingConfirmed {
		return nil, domain.ErrCannotCancel
	}

	tier, amount, fee := s.refunds.Compute(b.StartAt, now, b.AdvanceAmount)
	rec := domain.RefundRecord{
		ID:           uuid.New(),
		BookingID:    b.ID,
		Tier:         tier,
		RefundAmount: amount,
		FeeRetained:  fee,
		Status:       domain.RefundPending,
		Reason:       "canceled by " + actor,
		CreatedAt:    now,
	}

	if err := s.store.CancelConfirmed(ctx, b.ID, rec); err != nil {
		return nil, err
	}

	s.locks.Release(ctx, b.ResourceGroupID.String(), b.StartAt, b.EndAt, b.ID.String())
	s.audit.LogCancellation(ctx, rec, actor)
	s.logger.WithField("booking_id", b.ID.String()).Info("booking canceled, tier ", tier)
	return &CancelResult{Tier: tier, RefundAmount: amount}, nil
}

// Get returns one booking for the detail endpoint.
func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	return s.store.GetBooking(ctx, bookingID)
}
