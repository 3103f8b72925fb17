package refund

import (
	"time"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
)

// Policy is the time-tiered cancellation refund policy. Pure function of
// (startAt, cancelAt) and the advance collected.
type Policy struct {
	// Fee is the fixed processing fee retained on any non-zero refund.
	Fee float64
}

// Compute returns the refund tier and amounts for canceling at cancelAt a
// booking starting at startAt:
//
//	more than 24h out: full advance minus the fee
//	6h to 24h out, inclusive: half the advance minus the fee
//	under 6h: nothing
//
// Boundaries are exact duration comparisons, never rounded hours.
func (p Policy) Compute(startAt, cancelAt time.Time, advance float64) (domain.RefundTier, float64, float64) {
	until := startAt.Sub(cancelAt)

	var base float64
	var tier domain.RefundTier
	switch {
	case until > 24*time.Hour:
		tier, base = domain.RefundTierFull, advance
	case until >= 6*time.Hour:
		tier, base = domain.RefundTierHalf, advance*0.5
	default:
		return domain.RefundTierNone, 0, 0
	}

	fee := p.Fee
	if fee > base {
		fee = base
	}
	return tier, base - fee, fee
}
