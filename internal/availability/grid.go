package availability

import (
	"time"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
)

type SlotStatus string

const (
	StatusAvailable SlotStatus = "available"
	StatusBooked    SlotStatus = "booked"
	StatusBlocked   SlotStatus = "blocked"
	StatusBuffer    SlotStatus = "buffer"
	StatusDisabled  SlotStatus = "disabled"
)

type Slot struct {
	StartAt time.Time  `json:"start_at"`
	EndAt   time.Time  `json:"end_at"`
	Status  SlotStatus `json:"status"`
	IsPeak  bool       `json:"is_peak"`
	Price   float64    `json:"price"`
}

// Grid is the per-duration slot projection for one calendar day.
type Grid map[time.Duration][]Slot

// Build projects the day's slot grid from current booking, block, and profile
// state. Pure: no side effects, no store access.
//
// Status priority per slot: booked > blocked > buffer > disabled > available.
// A slot is booked when it overlaps an active booking's core [StartAt, EndAt)
// and buffer when it only touches the trailing [EndAt, BlockedEndAt); both
// ranges are closed to new holds, the split exists so clients can render the
// difference.
func Build(profile domain.Profile, bookings []domain.Booking, blocks []domain.Block, date, now time.Time) Grid {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	active := activeBookings(bookings, now)

	leadCutoff := now.Add(profile.MinLeadTime)
	horizon := now.AddDate(0, 0, profile.MaxAdvanceDays)

	grid := make(Grid, len(profile.AllowedDurations))
	for _, duration := range profile.AllowedDurations {
		var slots []Slot
		for offset := profile.OpenAt; offset+duration <= profile.CloseAt; offset += profile.SlotInterval {
			startAt := midnight.Add(offset)
			endAt := startAt.Add(duration)
			slots = append(slots, Slot{
				StartAt: startAt,
				EndAt:   endAt,
				Status:  slotStatus(startAt, endAt, active, blocks, leadCutoff, horizon),
				IsPeak:  profile.IsPeak(startAt, duration),
				Price:   profile.PriceFor(startAt, duration),
			})
		}
		grid[duration] = slots
	}
	return grid
}

func activeBookings(bookings []domain.Booking, now time.Time) []domain.Booking {
	var active []domain.Booking
	for _, b := range bookings {
		switch b.Status {
		case domain.BookingConfirmed:
			active = append(active, b)
		case domain.BookingHold:
			if !b.HoldExpired(now) {
				active = append(active, b)
			}
		}
	}
	return active
}

func slotStatus(startAt, endAt time.Time, bookings []domain.Booking, blocks []domain.Block, leadCutoff, horizon time.Time) SlotStatus {
	for _, b := range bookings {
		if overlaps(startAt, endAt, b.StartAt, b.EndAt) {
			return StatusBooked
		}
	}
	for _, blk := range blocks {
		if overlaps(startAt, endAt, blk.StartAt, blk.EndAt) {
			return StatusBlocked
		}
	}
	for _, b := range bookings {
		if overlaps(startAt, endAt, b.EndAt, b.BlockedEndAt) {
			return StatusBuffer
		}
	}
	if startAt.Before(leadCutoff) || startAt.After(horizon) {
		return StatusDisabled
	}
	return StatusAvailable
}

// overlaps compares half-open intervals [aStart, aEnd) and [bStart, bEnd).
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
