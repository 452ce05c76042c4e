// Package odds derives parimutuel payout multipliers from aggregate stakes.
//
// A rating per outcome is total/aggregate, in fixed point. Ratings are
// advisory while an event is open: the ledger freezes them at resolution
// and settles against the frozen aggregates. Decimal helpers here are for
// display only; accounting stays in integer mutez.
package odds

import (
	"github.com/shopspring/decimal"

	"github.com/tezbet/pool-engine/internal/fixedpoint"
	"github.com/tezbet/pool-engine/internal/model"
)

// MutezPerTez converts between the accounting unit and the display unit.
const MutezPerTez = 1_000_000

// MultiplierScale is the number of decimal places shown for multipliers.
const MultiplierScale int32 = 6

var precision = decimal.NewFromInt(fixedpoint.Precision)

// Compute returns the rating of each outcome given the pool total and the
// per-outcome aggregates.
func Compute(total int64, aggregate [model.NumOutcomes]int64) [model.NumOutcomes]fixedpoint.Rating {
	var ratings [model.NumOutcomes]fixedpoint.Rating
	for _, o := range model.Outcomes {
		ratings[o] = fixedpoint.NewRating(total, aggregate[o])
	}
	return ratings
}

// Multiplier renders a rating as decimal odds (payout per unit staked).
// The no-stake sentinel renders as zero.
func Multiplier(r fixedpoint.Rating) decimal.Decimal {
	if r.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(r.Num).
		Div(decimal.NewFromInt(r.Den)).
		Div(precision).
		Truncate(MultiplierScale)
}

// Tez renders a mutez amount in tez.
func Tez(mutez int64) decimal.Decimal {
	return decimal.New(mutez, -6)
}

// Quote is the advisory price of one outcome.
type Quote struct {
	Outcome    string            `json:"outcome"`
	Label      string            `json:"label"`
	Staked     int64             `json:"staked"`
	StakedTez  decimal.Decimal   `json:"staked_tez"`
	Rating     fixedpoint.Rating `json:"rating"`
	Multiplier decimal.Decimal   `json:"multiplier"`
}

// Board is the advisory odds snapshot for one event.
type Board struct {
	EventID  string          `json:"event_id"`
	Status   model.Status    `json:"status"`
	Frozen   bool            `json:"frozen"`
	Total    int64           `json:"total"`
	TotalTez decimal.Decimal `json:"total_tez"`
	Jackpot  int64           `json:"jackpot"`
	Quotes   []Quote         `json:"quotes"`
}

// QuoteEvent builds the odds snapshot of ev from its stored ratings.
func QuoteEvent(ev *model.Event) Board {
	b := Board{
		EventID:  ev.ID,
		Status:   ev.Status,
		Frozen:   ev.Status == model.StatusResolved,
		Total:    ev.Total,
		TotalTez: Tez(ev.Total),
		Jackpot:  ev.Jackpot,
		Quotes:   make([]Quote, 0, model.NumOutcomes),
	}
	for _, o := range model.Outcomes {
		b.Quotes = append(b.Quotes, Quote{
			Outcome:    o.String(),
			Label:      ev.Label(o),
			Staked:     ev.Aggregate[o],
			StakedTez:  Tez(ev.Aggregate[o]),
			Rating:     ev.Ratings[o],
			Multiplier: Multiplier(ev.Ratings[o]),
		})
	}
	return b
}
