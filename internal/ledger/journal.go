package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/tezbet/pool-engine/internal/model"
)

func newEntry(eventID, participant, kind, outcome string, amount int64, at time.Time) model.LedgerEntry {
	return model.LedgerEntry{
		ID:          uuid.New().String(),
		EventID:     eventID,
		Participant: participant,
		Kind:        kind,
		Outcome:     outcome,
		Amount:      amount,
		Timestamp:   at,
	}
}

// Journal returns the ledger entries recording the stake.
func (r *StakeReceipt) Journal() []model.LedgerEntry {
	return []model.LedgerEntry{
		newEntry(r.EventID, r.Participant, model.KindStake, r.Outcome.String(), r.Amount, r.At),
	}
}

// Journal returns the refund entry and, if one was charged, the fee entry.
func (r *UnstakeReceipt) Journal() []model.LedgerEntry {
	var out []model.LedgerEntry
	if r.Refund > 0 {
		out = append(out, newEntry(r.EventID, r.Participant, model.KindUnstakeRefund, r.Outcome.String(), r.Refund, r.At))
	}
	if r.Fee > 0 {
		out = append(out, newEntry(r.EventID, r.Participant, model.KindExitFee, r.Outcome.String(), r.Fee, r.At))
	}
	return out
}

// Journal returns the sweep entry if resolving deleted the event.
func (r *ResolveReceipt) Journal() []model.LedgerEntry {
	if r.Swept == 0 {
		return nil
	}
	return []model.LedgerEntry{newEntry(r.EventID, "", model.KindSweep, "", r.Swept, r.At)}
}

// Journal returns one payout or refund entry per claimed outcome, then the
// jackpot share and any sweep.
func (r *RedeemReceipt) Journal() []model.LedgerEntry {
	var out []model.LedgerEntry
	if winner, ok := r.Result.Winner(); ok {
		out = append(out, newEntry(r.EventID, r.Participant, model.KindPayout, winner.String(), r.Payout, r.At))
	} else {
		for _, o := range model.Outcomes {
			if r.Claimed[o] > 0 {
				out = append(out, newEntry(r.EventID, r.Participant, model.KindRefund, o.String(), r.Claimed[o], r.At))
			}
		}
	}
	if r.JackpotShare > 0 {
		out = append(out, newEntry(r.EventID, r.Participant, model.KindJackpotShare, "", r.JackpotShare, r.At))
	}
	if r.Swept > 0 {
		out = append(out, newEntry(r.EventID, "", model.KindSweep, "", r.Swept, r.At))
	}
	return out
}
