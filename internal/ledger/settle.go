package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/tezbet/pool-engine/internal/fixedpoint"
	"github.com/tezbet/pool-engine/internal/model"
	"github.com/tezbet/pool-engine/internal/odds"
)

// ResolveReceipt describes a result being set.
type ResolveReceipt struct {
	EventID string       `json:"event_id"`
	Result  model.Result `json:"result"`
	Deleted bool         `json:"deleted"`
	Swept   int64        `json:"swept"`
	At      time.Time    `json:"at"`
}

// RedeemReceipt describes a payout or refund.
type RedeemReceipt struct {
	EventID      string                   `json:"event_id"`
	Participant  string                   `json:"participant"`
	Result       model.Result             `json:"result"`
	Claimed      [model.NumOutcomes]int64 `json:"claimed"`
	Payout       int64                    `json:"payout"`
	JackpotShare int64                    `json:"jackpot_share"`
	Total        int64                    `json:"total"`
	Ranked       bool                     `json:"ranked"`
	Deleted      bool                     `json:"deleted"`
	Swept        int64                    `json:"swept"`
	At           time.Time                `json:"at"`
}

// Lock closes an open event to stakes ahead of its lock time.
func (e *Engine) Lock(caller, eventID string) error {
	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: %s cannot lock events", ErrUnauthorized, caller)
	}
	ev, err := e.liveEvent(eventID)
	if err != nil {
		return err
	}
	if ev.Status != model.StatusOpen {
		return fmt.Errorf("%w: %s is %s", ErrInvalidState, ev.ID, ev.Status)
	}
	ev.Status = model.StatusLocked
	return nil
}

// LockExpired locks every open event whose lock time has passed and returns
// their ids in order.
func (e *Engine) LockExpired(now time.Time) []string {
	var locked []string
	for id, ev := range e.events {
		if ev.Status == model.StatusOpen && !now.Before(ev.LockTime) {
			ev.Status = model.StatusLocked
			locked = append(locked, id)
		}
	}
	sort.Strings(locked)
	return locked
}

// SetOutcome records the result of an event, freezes its ratings and opens
// redemptions. Only the resolver may call it, and except for a cancellation
// only after the lock time.
func (e *Engine) SetOutcome(caller, eventID string, result model.Result, now time.Time) (*ResolveReceipt, error) {
	if caller != e.cfg.Resolver {
		return nil, fmt.Errorf("%w: %s cannot set results", ErrUnauthorized, caller)
	}
	ev, ok := e.events[eventID]
	if !ok {
		if _, archived := e.archive[eventID]; archived {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyResolved, eventID)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, eventID)
	}
	if ev.Status == model.StatusResolved || ev.Result != model.ResultUnset {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, ev.ID, ev.Result)
	}
	if result <= model.ResultUnset || result > model.ResultCancelled {
		return nil, fmt.Errorf("%w: result %s", ErrInvalidOutcome, result)
	}
	if result != model.ResultCancelled && !now.After(ev.LockTime) {
		return nil, fmt.Errorf("%w: %s locks at %s", ErrTooEarly, ev.ID, ev.LockTime.Format(time.RFC3339))
	}

	resolvedAt := now
	ev.Status = model.StatusResolved
	ev.Result = result
	ev.ResolvedAt = &resolvedAt
	ev.Ratings = odds.Compute(ev.Total, ev.Aggregate)

	winner, hasWinner := result.Winner()
	if hasWinner {
		ev.JackpotEligible = ev.Aggregate[winner]
	} else {
		ev.JackpotEligible = ev.Total
	}
	e.archive[ev.ID] = ev.Clone()

	rec := &ResolveReceipt{EventID: ev.ID, Result: result, At: now}
	if ev.Total == 0 || (hasWinner && ev.Bettors[winner] == 0) {
		rec.Deleted = true
		rec.Swept = e.collect(ev)
	}
	return rec, nil
}

// ReportScore resolves an event from its final score: the higher score wins
// and equal scores are a tie.
func (e *Engine) ReportScore(caller, eventID string, scoreA, scoreB int, now time.Time) (*ResolveReceipt, error) {
	if scoreA < 0 || scoreB < 0 {
		return nil, fmt.Errorf("%w: negative score %d-%d", ErrInvalidOutcome, scoreA, scoreB)
	}
	result := model.ResultTie
	switch {
	case scoreA > scoreB:
		result = model.ResultA
	case scoreB > scoreA:
		result = model.ResultB
	}
	return e.SetOutcome(caller, eventID, result, now)
}

// Redeem pays participant their share of a resolved event: the pro-rata
// pool payout on the winning outcome, or every stake back on a cancelled
// event, plus a pro-rata share of the jackpot. A drained event is deleted.
func (e *Engine) Redeem(eventID, participant string, now time.Time) (*RedeemReceipt, error) {
	ev, ok := e.events[eventID]
	if !ok {
		return nil, e.redeemArchived(eventID, participant)
	}
	if ev.Status != model.StatusResolved {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotResolved, ev.ID, ev.Status)
	}
	pos, ok := ev.Positions[participant]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoPosition, participant, ev.ID)
	}

	var claimed [model.NumOutcomes]int64
	var payout, claim int64
	if winner, hasWinner := ev.Result.Winner(); hasWinner {
		stake := pos.Stakes[winner]
		if stake == 0 || ev.Ratings[winner].IsZero() {
			return nil, fmt.Errorf("%w: %s did not back %s", ErrLost, participant, winner)
		}
		claimed[winner] = stake
		claim = stake
		payout = fixedpoint.Share(stake, ev.Total, ev.Aggregate[winner])
	} else {
		claimed = pos.Stakes
		claim = pos.Total()
		payout = claim
	}

	var share int64
	if ev.Jackpot > 0 && ev.JackpotEligible > 0 {
		share = fixedpoint.Share(ev.Jackpot, claim, ev.JackpotEligible)
	}

	for _, o := range model.Outcomes {
		if claimed[o] > 0 {
			pos.Stakes[o] = 0
			ev.Redeemed[o]++
		}
	}
	if pos.Empty() {
		delete(ev.Positions, participant)
	}
	ev.Jackpot -= share
	ev.JackpotEligible -= claim
	ev.Balance -= payout + share

	rec := &RedeemReceipt{
		EventID:      ev.ID,
		Participant:  participant,
		Result:       ev.Result,
		Claimed:      claimed,
		Payout:       payout,
		JackpotShare: share,
		Total:        payout + share,
		At:           now,
	}
	rec.Ranked = e.board.Insert(model.LeaderboardEntry{
		Participant: participant,
		Amount:      rec.Total,
		EventID:     ev.ID,
	})
	if drained(ev) {
		rec.Deleted = true
		rec.Swept = e.collect(ev)
	}
	return rec, nil
}

// redeemArchived answers a redemption against an event that no longer
// exists, using the snapshot taken when it was resolved.
func (e *Engine) redeemArchived(eventID, participant string) error {
	snap, ok := e.archive[eventID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, eventID)
	}
	pos, ok := snap.Positions[participant]
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrNoPosition, participant, eventID)
	}
	if winner, hasWinner := snap.Result.Winner(); hasWinner && pos.Stakes[winner] == 0 {
		return fmt.Errorf("%w: %s did not back %s", ErrLost, participant, winner)
	}
	return fmt.Errorf("%w: %s already redeemed on %s", ErrNoPosition, participant, eventID)
}

// drained reports whether every claim on a resolved event has been paid.
func drained(ev *model.Event) bool {
	if winner, ok := ev.Result.Winner(); ok {
		return ev.Redeemed[winner] >= ev.Bettors[winner]
	}
	return len(ev.Positions) == 0
}
