// Package fee computes the time-decayed exit fee charged when a stake is
// withdrawn shortly before an event locks.
//
// The fee is zero until the window before lock opens. Inside the window the
// rate starts at MaxRate and decays linearly to zero at lock time:
//
//	rate = max(0, MaxRate - slope * (now - windowStart)), slope = MaxRate / Window
//	fee  = stake * rate / RateScale
//
// Fees never leave the event: the ledger credits them to its jackpot.
package fee

import (
	"errors"
	"time"

	"github.com/tezbet/pool-engine/internal/fixedpoint"
)

// Default schedule parameters.
const (
	DefaultWindow    = 86_000 * time.Second
	DefaultMaxRate   = int64(100_000) // 10% at RateScale
	DefaultRateScale = int64(1_000_000)
)

// ErrInvalidSchedule is returned for a non-positive window or scale, or a
// max rate outside [0, RateScale].
var ErrInvalidSchedule = errors.New("fee: invalid schedule")

// Schedule parameterises the exit fee.
type Schedule struct {
	// Window is how long before lock the fee applies.
	Window time.Duration `yaml:"window"`

	// MaxRate is the rate charged at the start of the window, in RateScale units.
	MaxRate int64 `yaml:"max_rate"`

	// RateScale is the denominator of MaxRate (1_000_000 = 100%).
	RateScale int64 `yaml:"rate_scale"`
}

// DefaultSchedule returns 10% decaying to zero over 86,000s.
func DefaultSchedule() Schedule {
	return Schedule{
		Window:    DefaultWindow,
		MaxRate:   DefaultMaxRate,
		RateScale: DefaultRateScale,
	}
}

// Validate checks the schedule can be evaluated.
func (s Schedule) Validate() error {
	if s.Window < time.Second || s.RateScale <= 0 || s.MaxRate < 0 || s.MaxRate > s.RateScale {
		return ErrInvalidSchedule
	}
	return nil
}

// Rate returns the fee rate (in RateScale units) for a withdrawal at now on
// an event locking at lock. Whole seconds are used so that equal inputs give
// equal fees regardless of clock resolution.
func (s Schedule) Rate(lock, now time.Time) int64 {
	if !now.Before(lock) {
		return 0
	}
	windowStart := lock.Add(-s.Window)
	if now.Before(windowStart) {
		return 0
	}
	window := int64(s.Window / time.Second)
	remaining := int64(lock.Sub(now) / time.Second)
	if remaining > window {
		remaining = window
	}
	// MaxRate - slope*(now-windowStart) == MaxRate*(lock-now)/Window.
	return fixedpoint.Apply(s.MaxRate, remaining, window)
}

// ExitFee returns the fee withheld from a stake withdrawn at now.
// The result never exceeds stake.
func (s Schedule) ExitFee(stake int64, lock, now time.Time) int64 {
	rate := s.Rate(lock, now)
	if rate == 0 || stake <= 0 {
		return 0
	}
	return fixedpoint.Apply(stake, rate, s.RateScale)
}
