package fixedpoint

import (
	"math"
	"testing"
)

func TestNewRating_ZeroPartIsSentinel(t *testing.T) {
	r := NewRating(1_000_000, 0)
	if r != ZeroRating {
		t.Fatalf("expected sentinel (1, 0), got (%d, %d)", r.Num, r.Den)
	}
	if !r.IsZero() {
		t.Error("sentinel should report IsZero")
	}
}

func TestNewRating_Multiplies(t *testing.T) {
	r := NewRating(400, 100)
	if r.Num != 400*Precision || r.Den != 100 {
		t.Fatalf("unexpected rating (%d, %d)", r.Num, r.Den)
	}
	// 4x multiplier: 100 staked returns 400 scaled by Precision.
	if got := Apply(100, r.Num, r.Den); got != 400*Precision {
		t.Errorf("expected %d, got %d", 400*Precision, got)
	}
}

func TestNewRating_SaturatesHugePools(t *testing.T) {
	r := NewRating(math.MaxInt64/2, 10)
	if r.Num != math.MaxInt64 {
		t.Errorf("expected saturated numerator, got %d", r.Num)
	}
}

func TestApply_Truncates(t *testing.T) {
	tests := []struct {
		amount, num, den, want int64
	}{
		{10, 1, 3, 3},
		{100, 2, 3, 66},
		{0, 7, 5, 0},
		{7, 5, 5, 7},
		{1, 999_999, 1_000_000, 0},
	}
	for _, tt := range tests {
		if got := Apply(tt.amount, tt.num, tt.den); got != tt.want {
			t.Errorf("Apply(%d, %d, %d) = %d, want %d", tt.amount, tt.num, tt.den, got, tt.want)
		}
	}
}

func TestApply_NoOverflow(t *testing.T) {
	// amount * num overflows int64 but the quotient fits.
	amount := int64(9_000_000_000_000)
	got := Apply(amount, 4_000_000_000_000, 8_000_000_000_000)
	if got != amount/2 {
		t.Errorf("expected %d, got %d", amount/2, got)
	}
}

func TestApply_ZeroDenominatorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on zero denominator")
		}
	}()
	Apply(10, 1, 0)
}

func TestShare_MatchesRating(t *testing.T) {
	tests := []struct {
		amount, total, part int64
	}{
		{100_000, 400_000, 100_000},
		{3_000_000, 41_000_000, 39_000_000},
		{123_457, 999_999, 333_333},
		{1, 7, 3},
	}
	for _, tt := range tests {
		viaRating := Apply(rateAmount(NewRating(tt.total, tt.part), tt.amount), 1, Precision)
		direct := Share(tt.amount, tt.total, tt.part)
		if viaRating != direct {
			t.Errorf("Share(%d, %d, %d): rating path %d, direct %d",
				tt.amount, tt.total, tt.part, viaRating, direct)
		}
	}
}

func TestShare_NeverExceedsPool(t *testing.T) {
	// Three winners splitting a pool that does not divide evenly.
	stakes := []int64{333_333, 333_333, 333_334}
	var winning int64
	for _, s := range stakes {
		winning += s
	}
	total := int64(2_500_001)

	var paid int64
	for _, s := range stakes {
		paid += Share(s, total, winning)
	}
	if paid > total {
		t.Fatalf("paid %d exceeds pool %d", paid, total)
	}
	if total-paid >= int64(len(stakes)) {
		t.Errorf("dust %d should be below claimant count", total-paid)
	}
}

func rateAmount(r Rating, amount int64) int64 {
	return Apply(amount, r.Num, r.Den)
}
