// Package model defines the core domain types shared across the pool engine.
// All monetary values are int64 mutez; never float64 for money.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/tezbet/pool-engine/internal/fixedpoint"
)

// Outcome indexes one of the three mutually exclusive results of an event.
type Outcome int

const (
	OutcomeA Outcome = iota
	OutcomeB
	OutcomeTie
)

// NumOutcomes is the number of stakeable outcomes per event.
const NumOutcomes = 3

// Outcomes lists every stakeable outcome in index order.
var Outcomes = [NumOutcomes]Outcome{OutcomeA, OutcomeB, OutcomeTie}

func (o Outcome) String() string {
	switch o {
	case OutcomeA:
		return "A"
	case OutcomeB:
		return "B"
	case OutcomeTie:
		return "TIE"
	default:
		return "unknown"
	}
}

// Valid reports whether o is one of the three stakeable outcomes.
func (o Outcome) Valid() bool {
	return o >= OutcomeA && o <= OutcomeTie
}

// ParseOutcome accepts A, B or TIE (case-insensitive).
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(s) {
	case "A":
		return OutcomeA, nil
	case "B":
		return OutcomeB, nil
	case "TIE":
		return OutcomeTie, nil
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid outcome %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Status is the lifecycle stage of an event.
type Status int

const (
	StatusOpen     Status = iota // accepting stakes
	StatusLocked                 // no more stakes, awaiting the result
	StatusResolved               // result set, redemptions open
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusLocked:
		return "locked"
	case StatusResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*s = StatusOpen
	case "locked":
		*s = StatusLocked
	case "resolved":
		*s = StatusResolved
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// Result is the resolved result of an event.
type Result int

const (
	ResultUnset Result = iota
	ResultA
	ResultB
	ResultTie
	ResultCancelled // postponed or voided: every stake is refunded
)

func (r Result) String() string {
	switch r {
	case ResultUnset:
		return "UNSET"
	case ResultA:
		return "A"
	case ResultB:
		return "B"
	case ResultTie:
		return "TIE"
	case ResultCancelled:
		return "CANCELLED"
	default:
		return "unknown"
	}
}

// ParseResult accepts A, B, TIE or CANCELLED (case-insensitive).
func ParseResult(s string) (Result, error) {
	switch strings.ToUpper(s) {
	case "A":
		return ResultA, nil
	case "B":
		return ResultB, nil
	case "TIE":
		return ResultTie, nil
	case "CANCELLED":
		return ResultCancelled, nil
	}
	return ResultUnset, fmt.Errorf("unknown result %q", s)
}

// MarshalText encodes the result by name.
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a result name.
func (r *Result) UnmarshalText(b []byte) error {
	if string(b) == "UNSET" {
		*r = ResultUnset
		return nil
	}
	v, err := ParseResult(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Winner returns the winning outcome. ok is false for Unset and Cancelled.
func (r Result) Winner() (o Outcome, ok bool) {
	switch r {
	case ResultA:
		return OutcomeA, true
	case ResultB:
		return OutcomeB, true
	case ResultTie:
		return OutcomeTie, true
	}
	return 0, false
}

// Position is one participant's stakes on one event.
// A position whose stakes are all zero must not exist.
type Position struct {
	Stakes   [NumOutcomes]int64 `json:"stakes"`
	StakedAt time.Time          `json:"staked_at"`
}

// Total returns the participant's stake across all outcomes.
func (p *Position) Total() int64 {
	return p.Stakes[OutcomeA] + p.Stakes[OutcomeB] + p.Stakes[OutcomeTie]
}

// Empty reports whether every bucket is zero.
func (p *Position) Empty() bool {
	return p.Stakes[OutcomeA] == 0 && p.Stakes[OutcomeB] == 0 && p.Stakes[OutcomeTie] == 0
}

// Event is one wagering market with three outcomes: A, B and an implicit tie.
type Event struct {
	ID        string    `json:"id"`
	OutcomeA  string    `json:"outcome_a"`
	OutcomeB  string    `json:"outcome_b"`
	LockTime  time.Time `json:"lock_time"`
	Status    Status    `json:"status"`
	Result    Result    `json:"result"`
	CreatedAt time.Time `json:"created_at"`

	Aggregate [NumOutcomes]int64 `json:"aggregate"`
	Total     int64              `json:"total"` // == sum of Aggregate
	Bettors   [NumOutcomes]int   `json:"bettors"`
	Redeemed  [NumOutcomes]int   `json:"redeemed"`

	// Ratings are advisory while open and frozen once resolved.
	Ratings [NumOutcomes]fixedpoint.Rating `json:"ratings"`

	Jackpot         int64 `json:"jackpot"`
	JackpotEligible int64 `json:"jackpot_eligible"`

	// Balance is the value escrowed by the event. Before resolution it
	// equals Total + Jackpot.
	Balance int64 `json:"balance"`

	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Positions map[string]*Position `json:"positions"`
}

// Label returns the display label of an outcome.
func (e *Event) Label(o Outcome) string {
	switch o {
	case OutcomeA:
		return e.OutcomeA
	case OutcomeB:
		return e.OutcomeB
	default:
		return "Tie"
	}
}

// Clone returns a deep copy safe to hand outside the engine.
func (e *Event) Clone() *Event {
	c := *e
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		c.ResolvedAt = &t
	}
	c.Positions = make(map[string]*Position, len(e.Positions))
	for k, p := range e.Positions {
		cp := *p
		c.Positions[k] = &cp
	}
	return &c
}

// LeaderboardEntry records one redemption on the global leaderboard.
type LeaderboardEntry struct {
	Participant string `json:"participant"`
	Amount      int64  `json:"amount"`
	EventID     string `json:"event_id"`
}

// Journal entry kinds. Every movement of value is recorded by exactly one.
const (
	KindStake         = "stake"
	KindUnstakeRefund = "unstake_refund"
	KindExitFee       = "exit_fee"
	KindPayout        = "payout"
	KindRefund        = "refund"
	KindJackpotShare  = "jackpot_share"
	KindSweep         = "sweep"
)

// LedgerEntry is an immutable record of a value movement.
// Once created, these are never modified or deleted.
type LedgerEntry struct {
	ID          string    `json:"id" db:"id"`
	EventID     string    `json:"event_id" db:"event_id"`
	Participant string    `json:"participant" db:"participant"` // empty for sweeps
	Kind        string    `json:"kind" db:"kind"`
	Outcome     string    `json:"outcome,omitempty" db:"outcome"`
	Amount      int64     `json:"amount" db:"amount"` // mutez, always positive
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}
