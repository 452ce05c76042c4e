package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/tezbet/pool-engine/internal/model"
)

// StakeReceipt describes an accepted stake.
type StakeReceipt struct {
	EventID     string        `json:"event_id"`
	Participant string        `json:"participant"`
	Outcome     model.Outcome `json:"outcome"`
	Amount      int64         `json:"amount"`
	Position    int64         `json:"position"` // participant's bucket after the stake
	At          time.Time     `json:"at"`
}

// UnstakeReceipt describes a withdrawal before lock.
type UnstakeReceipt struct {
	EventID     string        `json:"event_id"`
	Participant string        `json:"participant"`
	Outcome     model.Outcome `json:"outcome"`
	Stake       int64         `json:"stake"`
	Fee         int64         `json:"fee"`
	Refund      int64         `json:"refund"`
	At          time.Time     `json:"at"`
}

// PlaceStake adds amount to participant's position on outcome. amount is
// the value attached by the caller and becomes escrowed by the event.
func (e *Engine) PlaceStake(eventID, participant string, outcome model.Outcome, amount int64, now time.Time) (*StakeReceipt, error) {
	ev, err := e.liveEvent(eventID)
	if err != nil {
		return nil, err
	}
	if participant == "" {
		return nil, fmt.Errorf("%w: anonymous stake", ErrUnauthorized)
	}
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOutcome, outcome)
	}
	if ev.Status != model.StatusOpen || !now.Before(ev.LockTime) {
		return nil, fmt.Errorf("%w: %s is not accepting stakes", ErrInvalidState, ev.ID)
	}
	if amount <= 0 || amount < e.cfg.MinStake {
		return nil, fmt.Errorf("%w: %d mutez (minimum %d)", ErrInvalidAmount, amount, e.cfg.MinStake)
	}
	// Balance bounds every stake, aggregate and Total before resolution.
	if ev.Balance > math.MaxInt64-amount {
		return nil, fmt.Errorf("%w: %d mutez overflows the pool of %s", ErrInvalidAmount, amount, ev.ID)
	}

	pos, ok := ev.Positions[participant]
	if !ok {
		pos = &model.Position{StakedAt: now}
		ev.Positions[participant] = pos
	}
	if pos.Stakes[outcome] == 0 {
		ev.Bettors[outcome]++
	}
	pos.Stakes[outcome] += amount
	ev.Aggregate[outcome] += amount
	ev.Balance += amount
	reprice(ev)

	return &StakeReceipt{
		EventID:     ev.ID,
		Participant: participant,
		Outcome:     outcome,
		Amount:      amount,
		Position:    pos.Stakes[outcome],
		At:          now,
	}, nil
}

// RemoveStake withdraws participant's whole stake on outcome. The exit fee
// stays in the event as jackpot; the rest is refunded.
func (e *Engine) RemoveStake(eventID, participant string, outcome model.Outcome, now time.Time) (*UnstakeReceipt, error) {
	ev, err := e.liveEvent(eventID)
	if err != nil {
		return nil, err
	}
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOutcome, outcome)
	}
	if ev.Status != model.StatusOpen || !now.Before(ev.LockTime) {
		return nil, fmt.Errorf("%w: %s is locked", ErrInvalidState, ev.ID)
	}
	pos, ok := ev.Positions[participant]
	if !ok || pos.Stakes[outcome] == 0 {
		return nil, fmt.Errorf("%w: %s has no stake on %s", ErrNoPosition, participant, outcome)
	}

	stake := pos.Stakes[outcome]
	exitFee := e.cfg.Fee.ExitFee(stake, ev.LockTime, now)
	refund := stake - exitFee

	pos.Stakes[outcome] = 0
	if pos.Empty() {
		delete(ev.Positions, participant)
	}
	ev.Bettors[outcome]--
	ev.Aggregate[outcome] -= stake
	ev.Jackpot += exitFee
	ev.Balance -= refund
	reprice(ev)

	return &UnstakeReceipt{
		EventID:     ev.ID,
		Participant: participant,
		Outcome:     outcome,
		Stake:       stake,
		Fee:         exitFee,
		Refund:      refund,
		At:          now,
	}, nil
}
