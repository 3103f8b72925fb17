package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the pricing/rules configuration for a resource group. Owned by
// the catalog service; read-only here.
type Profile struct {
	ID              uuid.UUID
	ResourceGroupID uuid.UUID
	OpenAt          time.Duration // offset from local midnight
	CloseAt         time.Duration
	SlotInterval    time.Duration
	Buffer          time.Duration
	MinLeadTime     time.Duration
	MaxAdvanceDays  int
	AdvancePercent  float64
	AllowedDurations []time.Duration
	DurationPrices     map[time.Duration]float64
	PeakDurationPrices map[time.Duration]float64
	PeakRules          []PeakRule
}

// PeakRule marks a day-of-week time window as peak-priced.
type PeakRule struct {
	Weekday time.Weekday
	From    time.Duration // offset from local midnight
	To      time.Duration
}

// AllowsDuration reports whether d is one of the profile's bookable durations.
func (p Profile) AllowsDuration(d time.Duration) bool {
	for _, allowed := range p.AllowedDurations {
		if allowed == d {
			return true
		}
	}
	return false
}

// IsPeak reports whether the slot [startAt, startAt+d) touches any peak
// window. One minute of overlap makes the whole slot peak: the policy is
// any-overlap, not proportional.
func (p Profile) IsPeak(startAt time.Time, d time.Duration) bool {
	endAt := startAt.Add(d)
	for _, rule := range p.PeakRules {
		if rule.Weekday != startAt.Weekday() {
			continue
		}
		midnight := time.Date(startAt.Year(), startAt.Month(), startAt.Day(), 0, 0, 0, 0, startAt.Location())
		from := midnight.Add(rule.From)
		to := midnight.Add(rule.To)
		if startAt.Before(to) && from.Before(endAt) {
			return true
		}
	}
	return false
}

// PriceFor returns the slot price, switching to the peak table when the slot
// has any peak overlap.
func (p Profile) PriceFor(startAt time.Time, d time.Duration) float64 {
	if p.IsPeak(startAt, d) {
		if price, ok := p.PeakDurationPrices[d]; ok {
			return price
		}
	}
	return p.DurationPrices[d]
}

// AdvanceFor is the portion collected up front to confirm the booking.
func (p Profile) AdvanceFor(startAt time.Time, d time.Duration) float64 {
	return p.PriceFor(startAt, d) * p.AdvancePercent
}

// Block is an owner-defined maintenance or event window during which no
// bookings are accepted.
type Block struct {
	ID              uuid.UUID
	ResourceGroupID uuid.UUID
	StartAt         time.Time
	EndAt           time.Time
	Reason          string
}
