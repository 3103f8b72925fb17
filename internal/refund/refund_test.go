package refund_test

import (
	"testing"
	"time"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/refund"
)

func TestPolicy_Compute(t *testing.T) {
	startAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	policy := refund.Policy{Fee: 50}

	tests := []struct {
		name       string
		cancelAt   time.Time
		wantTier   domain.RefundTier
		wantAmount float64
		wantFee    float64
	}{
		{
			name:       "more than 24h out, full minus fee",
			cancelAt:   time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC),
			wantTier:   domain.RefundTierFull,
			wantAmount: 950,
			wantFee:    50,
		},
		{
			name:       "8h out, half minus fee",
			cancelAt:   time.Date(2024, 1, 15, 2, 0, 0, 0, time.UTC),
			wantTier:   domain.RefundTierHalf,
			wantAmount: 450,
			wantFee:    50,
		},
		{
			name:       "3h out, nothing",
			cancelAt:   time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC),
			wantTier:   domain.RefundTierNone,
			wantAmount: 0,
			wantFee:    0,
		},
		{
			name:       "exactly 24h out is the half tier, not full",
			cancelAt:   time.Date(2024, 1, 14, 10, 0, 0, 0, time.UTC),
			wantTier:   domain.RefundTierHalf,
			wantAmount: 450,
			wantFee:    50,
		},
		{
			name:       "exactly 6h out is still the half tier",
			cancelAt:   time.Date(2024, 1, 15, 4, 0, 0, 0, time.UTC),
			wantTier:   domain.RefundTierHalf,
			wantAmount: 450,
			wantFee:    50,
		},
		{
			name:       "one second under 6h drops to nothing",
			cancelAt:   time.Date(2024, 1, 15, 4, 0, 1, 0, time.UTC),
			wantTier:   domain.RefundTierNone,
			wantAmount: 0,
			wantFee:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, amount, fee := policy.Compute(startAt, tt.cancelAt, 1000)
			if tier != tt.wantTier {
				t.Errorf("tier = %s, want %s", tier, tt.wantTier)
			}
			if amount != tt.wantAmount {
				t.Errorf("amount = %v, want %v", amount, tt.wantAmount)
			}
			if fee != tt.wantFee {
				t.Errorf("fee = %v, want %v", fee, tt.wantFee)
			}
		})
	}
}

func TestPolicy_FeeNeverExceedsBase(t *testing.T) {
	startAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	cancelAt := startAt.Add(-48 * time.Hour)
	policy := refund.Policy{Fee: 50}

	tier, amount, fee := policy.Compute(startAt, cancelAt, 30)
	if tier != domain.RefundTierFull {
		t.Fatalf("tier = %s, want FULL", tier)
	}
	if amount != 0 {
		t.Errorf("amount = %v, want 0", amount)
	}
	if fee != 30 {
		t.Errorf("fee = %v, want 30", fee)
	}
}
