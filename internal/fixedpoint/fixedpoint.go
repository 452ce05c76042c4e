// Package fixedpoint implements the integer ratio arithmetic used to price
// and settle parimutuel pools.
//
// All amounts are int64 mutez. Intermediate products are computed with
// math/big so that amount * numerator never overflows, and every division
// truncates toward zero: rounding always favours the pool, never the claimant.
package fixedpoint

import "math/big"

// Precision is the scaling factor applied to rating numerators. Truncation
// of a scaled rating loses at most one part per million.
const Precision int64 = 1_000_000

// maxInt64 caps advisory rating numerators.
const maxInt64 = int64(^uint64(0) >> 1)

// Rating is a fixed-point payout multiplier per unit staked: Num/Den/Precision.
//
// The zero rating (1, 0) means no stake is held on the outcome and nobody is
// owed anything through it. It must never be used as a divisor.
type Rating struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// ZeroRating is the sentinel returned for an outcome without stake.
var ZeroRating = Rating{Num: 1, Den: 0}

// NewRating derives the multiplier of an outcome holding part out of total.
// The numerator saturates at MaxInt64 for pools above ~9.2e12 mutez; ratings
// are advisory and settlement divides the frozen aggregates with Share.
func NewRating(total, part int64) Rating {
	if part == 0 {
		return ZeroRating
	}
	num := new(big.Int).Mul(big.NewInt(total), big.NewInt(Precision))
	if !num.IsInt64() {
		return Rating{Num: maxInt64, Den: part}
	}
	return Rating{Num: num.Int64(), Den: part}
}

// IsZero reports whether r is the no-stake sentinel.
func (r Rating) IsZero() bool {
	return r.Den == 0
}

// Apply returns floor(amount * num / den) for non-negative inputs.
// A zero denominator panics: callers must branch on the sentinel rating.
func Apply(amount, num, den int64) int64 {
	if den == 0 {
		panic("fixedpoint: division by zero denominator")
	}
	product := new(big.Int).Mul(big.NewInt(amount), big.NewInt(num))
	return product.Quo(product, big.NewInt(den)).Int64()
}

// Share returns floor(amount * total / part): the payout owed on amount
// staked into an outcome holding part out of a pool of total. With
// r = NewRating(total, part) it equals Apply(Apply(amount, r.Num, r.Den), 1,
// Precision) whenever the rating numerator does not saturate.
func Share(amount, total, part int64) int64 {
	return Apply(amount, total, part)
}
