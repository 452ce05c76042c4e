package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tezbet/pool-engine/internal/model"
)

// ErrInvariant is returned by Audit when engine state is inconsistent.
var ErrInvariant = errors.New("ledger: invariant violated")

// Audit checks the accounting invariants of one live event.
func (e *Engine) Audit(id string) error {
	ev, err := e.liveEvent(id)
	if err != nil {
		return err
	}
	return auditEvent(ev)
}

// AuditAll checks every live event and the remainder, returning all
// violations joined.
func (e *Engine) AuditAll() error {
	ids := make([]string, 0, len(e.events))
	for id := range e.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	if e.remainder < 0 {
		errs = append(errs, fmt.Errorf("%w: negative remainder %d", ErrInvariant, e.remainder))
	}
	for _, id := range ids {
		if err := auditEvent(e.events[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func auditEvent(ev *model.Event) error {
	var sum int64
	for _, o := range model.Outcomes {
		sum += ev.Aggregate[o]
	}
	if sum != ev.Total {
		return fmt.Errorf("%w: %s total %d != aggregates %d", ErrInvariant, ev.ID, ev.Total, sum)
	}
	if ev.Balance < 0 || ev.Jackpot < 0 || ev.JackpotEligible < 0 {
		return fmt.Errorf("%w: %s negative balance %d or jackpot %d/%d", ErrInvariant, ev.ID, ev.Balance, ev.Jackpot, ev.JackpotEligible)
	}
	for p, pos := range ev.Positions {
		if pos.Empty() {
			return fmt.Errorf("%w: %s empty position for %s", ErrInvariant, ev.ID, p)
		}
	}
	if ev.Status == model.StatusResolved {
		return nil
	}

	if ev.Balance != ev.Total+ev.Jackpot {
		return fmt.Errorf("%w: %s balance %d != total %d + jackpot %d", ErrInvariant, ev.ID, ev.Balance, ev.Total, ev.Jackpot)
	}
	var stakes [model.NumOutcomes]int64
	var bettors [model.NumOutcomes]int
	for _, pos := range ev.Positions {
		for _, o := range model.Outcomes {
			if pos.Stakes[o] > 0 {
				stakes[o] += pos.Stakes[o]
				bettors[o]++
			}
		}
	}
	for _, o := range model.Outcomes {
		if stakes[o] != ev.Aggregate[o] {
			return fmt.Errorf("%w: %s %s positions %d != aggregate %d", ErrInvariant, ev.ID, o, stakes[o], ev.Aggregate[o])
		}
		if bettors[o] != ev.Bettors[o] {
			return fmt.Errorf("%w: %s %s bettors %d != counted %d", ErrInvariant, ev.ID, o, ev.Bettors[o], bettors[o])
		}
	}
	return nil
}
