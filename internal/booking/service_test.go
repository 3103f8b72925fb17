package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/refund"
)

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]string // key -> booking id
	disabled bool              // emulate fail-open: always report acquired
	releases int
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: make(map[string]string)}
}

func lockKey(groupID string, startAt, endAt time.Time) string {
	return fmt.Sprintf("%s:%d-%d", groupID, startAt.Unix(), endAt.Unix())
}

func (l *fakeLock) Acquire(_ context.Context, groupID string, startAt, endAt time.Time, bookingID, _ string, _ time.Duration) (bool, *domain.LockInfo) {
	if l.disabled {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := lockKey(groupID, startAt, endAt)
	if holder, ok := l.held[key]; ok {
		return false, &domain.LockInfo{BookingID: holder}
	}
	l.held[key] = bookingID
	return true, nil
}

func (l *fakeLock) Release(_ context.Context, groupID string, startAt, endAt time.Time, bookingID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := lockKey(groupID, startAt, endAt)
	if l.held[key] != bookingID {
		return false
	}
	delete(l.held, key)
	l.releases++
	return true
}

// fakeStore enforces the range-exclusion invariant the way the real schema
// does: overlapping HOLD/CONFIRMED rows are rejected atomically.
type fakeStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]domain.Booking
	refunds  []domain.RefundRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{bookings: make(map[uuid.UUID]domain.Booking)}
}

func (s *fakeStore) CreateHold(_ context.Context, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bookings {
		if existing.ResourceGroupID != b.ResourceGroupID {
			continue
		}
		if existing.Status != domain.BookingHold && existing.Status != domain.BookingConfirmed {
			continue
		}
		if existing.Overlaps(b) {
			return domain.ErrSlotUnavailable
		}
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *fakeStore) GetBooking(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (s *fakeStore) BookingsForRange(_ context.Context, groupID uuid.UUID, from, to time.Time) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.ResourceGroupID == groupID && b.StartAt.Before(to) && from.Before(b.BlockedEndAt) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) CancelConfirmed(_ context.Context, bookingID uuid.UUID, rec domain.RefundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.Status != domain.BookingConfirmed {
		return domain.ErrCannotCancel
	}
	b.Status = domain.BookingCanceled
	s.bookings[bookingID] = b
	s.refunds = append(s.refunds, rec)
	return nil
}

func (s *fakeStore) setStatus(id uuid.UUID, status domain.BookingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookings[id]
	b.Status = status
	s.bookings[id] = b
}

type fakeCatalog struct {
	profile domain.Profile
}

func (c *fakeCatalog) GetProfile(context.Context, uuid.UUID) (*domain.Profile, error) {
	p := c.profile
	return &p, nil
}

func (c *fakeCatalog) GetProfileByGroup(context.Context, uuid.UUID) (*domain.Profile, error) {
	p := c.profile
	return &p, nil
}

func (c *fakeCatalog) GetBlocks(context.Context, uuid.UUID, time.Time, time.Time) ([]domain.Block, error) {
	return nil, nil
}

type nopAudit struct{}

func (nopAudit) LogCancellation(context.Context, domain.RefundRecord, string) {}

func testProfile() domain.Profile {
	return domain.Profile{
		ID:               uuid.New(),
		ResourceGroupID:  uuid.New(),
		OpenAt:           8 * time.Hour,
		CloseAt:          22 * time.Hour,
		SlotInterval:     time.Hour,
		Buffer:           15 * time.Minute,
		MinLeadTime:      time.Hour,
		MaxAdvanceDays:   30,
		AdvancePercent:   0.5,
		AllowedDurations: []time.Duration{time.Hour, 2 * time.Hour},
		DurationPrices: map[time.Duration]float64{
			time.Hour:     1000,
			2 * time.Hour: 1800,
		},
		PeakDurationPrices: map[time.Duration]float64{
			time.Hour:     1500,
			2 * time.Hour: 2700,
		},
	}
}

func newTestService(store *fakeStore, lock *fakeLock, profile domain.Profile, now time.Time) *Service {
	svc := NewService(store, lock, &fakeCatalog{profile: profile}, nopAudit{}, refund.Policy{Fee: 50}, 10*time.Minute, observability.NewLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func holdRequest(profile domain.Profile, startAt time.Time) HoldRequest {
	return HoldRequest{
		ProfileID:    profile.ID,
		ResourceID:   uuid.New(),
		StartAt:      startAt,
		Duration:     time.Hour,
		CustomerName: "sam",
		OwnerID:      "owner-1",
	}
}

func TestCreateHold_Succeeds(t *testing.T) {
	profile := testProfile()
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(store, newFakeLock(), profile, now)

	result, err := svc.CreateHold(context.Background(), holdRequest(profile, now.Add(3*time.Hour)))
	if err != nil {
		t.Fatalf("CreateHold: %v", err)
	}
	if !result.HoldExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Errorf("HoldExpiresAt = %v", result.HoldExpiresAt)
	}

	b, err := store.GetBooking(context.Background(), result.BookingID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != domain.BookingHold {
		t.Errorf("status = %s", b.Status)
	}
	if !b.BlockedEndAt.Equal(b.EndAt.Add(15 * time.Minute)) {
		t.Errorf("BlockedEndAt = %v, want end + buffer", b.BlockedEndAt)
	}
}

func TestCreateHold_Validation(t *testing.T) {
	profile := testProfile()
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	svc := newTestService(newFakeStore(), newFakeLock(), profile, now)

	tests := []struct {
		name string
		req  HoldRequest
	}{
		{"duration not offered", func() HoldRequest {
			r := holdRequest(profile, now.Add(3*time.Hour))
			r.Duration = 45 * time.Minute
			return r
		}()},
		{"inside lead time", holdRequest(profile, now.Add(30*time.Minute))},
		{"beyond horizon", holdRequest(profile, now.AddDate(0, 0, 31))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateHold(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateHold_LockHeldFastFail(t *testing.T) {
	profile := testProfile()
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newFakeStore()
	lock := newFakeLock()
	svc := newTestService(store, lock, profile, now)
	startAt := now.Add(3 * time.Hour)

	if _, err := svc.CreateHold(context.Background(), holdRequest(profile, startAt)); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CreateHold(context.Background(), holdRequest(profile, startAt))
	if !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
	// The fast path never reached the store.
	if len(store.bookings) != 1 {
		t.Errorf("store has %d bookings, want 1", len(store.bookings))
	}
}

func TestCreateHold_StoreRejectsWhenLockFailsOpen(t *testing.T) {
	profile := testProfile()
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newFakeStore()
	lock := newFakeLock()
	lock.disabled = true // cache down: every acquire reports success
	svc := newTestService(store, lock, profile, now)
	startAt := now.Add(3 * time.Hour)

	if _, err := svc.CreateHold(context.Background(), holdRequest(profile, startAt)); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CreateHold(context.Background(), holdRequest(profile, startAt))
	if !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable from the store guard", err)
	}
	if len(store.bookings) != 1 {
		t.Errorf("store has %d bookings, want 1", len(store.bookings))
	}
}

func TestCreateHold_ConcurrentExactlyOneWins(t *testing.T) {
	profile := testProfile()
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newFakeStore()
	// Fail-open lock forces both requests through to the store, which must
	// still admit exactly one.
	lock := newFakeLock()
	lock.disabled = true
	svc := newTestService(store, lock, profile, now)
	startAt := now.Add(3 * time.Hour)

	const n = 16
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateHold(context.Background(), holdRequest(profile, startAt))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrSlotUnavailable):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != n-1 {
		t.Errorf("wins = %d conflicts = %d, want 1/%d", wins, conflicts, n-1)
	}
}

func TestCreateHold_ReleasesLockOnStoreConflict(t *testing.T) {
	profile := testProfile()
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newFakeStore()
	lock := newFakeLock()
	svc := newTestService(store, lock, profile, now)

	// Occupy the range in the store directly, bypassing the lock, to
	// simulate a lock TTL race.
	startAt := now.Add(3 * time.Hour)
	occupied := domain.NewHold(profile, uuid.New(), startAt, time.Hour, "other", "", now, 10*time.Minute)
	if err := store.CreateHold(context.Background(), occupied); err != nil {
		t.Fatal(err)
	}

	_, err := svc.CreateHold(context.Background(), holdRequest(profile, startAt))
	if !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if len(lock.held) != 0 {
		t.Error("lock not released after store rejection")
	}
}

func TestCancel_RoundTripFreesRange(t *testing.T) {
	profile := testProfile()
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newFakeStore()
	lock := newFakeLock()
	svc := newTestService(store, lock, profile, now)
	startAt := now.Add(48 * time.Hour)

	held, err := svc.CreateHold(context.Background(), holdRequest(profile, startAt))
	if err != nil {
		t.Fatal(err)
	}
	store.setStatus(held.BookingID, domain.BookingConfirmed)

	result, err := svc.Cancel(context.Background(), held.BookingID, "customer")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// 48h out: full refund of the 500 advance minus the 50 fee.
	if result.Tier != domain.RefundTierFull || result.RefundAmount != 450 {
		t.Errorf("tier = %s amount = %v", result.Tier, result.RefundAmount)
	}

	// The identical range must be bookable again.
	if _, err := svc.CreateHold(context.Background(), holdRequest(profile, startAt)); err != nil {
		t.Fatalf("rebooking freed range: %v", err)
	}
}

func TestCancel_OnlyConfirmed(t *testing.T) {
	profile := testProfile()
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(store, newFakeLock(), profile, now)

	held, err := svc.CreateHold(context.Background(), holdRequest(profile, now.Add(3*time.Hour)))
	if err != nil {
		t.Fatal(err)
	}

	for _, status := range []domain.BookingStatus{domain.BookingHold, domain.BookingExpired, domain.BookingCompleted, domain.BookingCanceled} {
		store.setStatus(held.BookingID, status)
		if _, err := svc.Cancel(context.Background(), held.BookingID, "customer"); !errors.Is(err, domain.ErrCannotCancel) {
			t.Errorf("status %s: err = %v, want ErrCannotCancel", status, err)
		}
	}
}
