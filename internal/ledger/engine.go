// Package ledger is the parimutuel accounting and settlement engine.
//
// The engine tracks stakes per event, participant and outcome, derives the
// advisory odds, moves events through Open → Locked → Resolved, and pays
// out winners from the pool with exact integer arithmetic. Every operation
// checks all of its preconditions before it touches any state, so a failed
// call leaves the engine exactly as it was.
//
// Caller identity, attached value and the current time are explicit
// parameters: the engine knows nothing about its host.
//
// Engine is not safe for concurrent use. The host serializes calls.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/tezbet/pool-engine/internal/fee"
	"github.com/tezbet/pool-engine/internal/leaderboard"
	"github.com/tezbet/pool-engine/internal/model"
	"github.com/tezbet/pool-engine/internal/odds"
)

// DefaultMinStake is the smallest accepted stake: 0.1 tez.
const DefaultMinStake int64 = 100_000

// Config parameterises an Engine.
type Config struct {
	// Admin creates and locks events.
	Admin string

	// Resolver sets results. Empty means Admin.
	Resolver string

	// MinStake is the smallest accepted stake in mutez.
	MinStake int64

	// Fee is the exit fee schedule for withdrawals before lock.
	Fee fee.Schedule

	// LeaderboardSize bounds the global leaderboard.
	LeaderboardSize int
}

// DefaultConfig returns the default parameters with admin as both admin and
// resolver.
func DefaultConfig(admin string) Config {
	return Config{
		Admin:           admin,
		MinStake:        DefaultMinStake,
		Fee:             fee.DefaultSchedule(),
		LeaderboardSize: leaderboard.DefaultCapacity,
	}
}

// Engine owns every event, the leaderboard and the global remainder.
type Engine struct {
	cfg       Config
	events    map[string]*model.Event
	archive   map[string]*model.Event // snapshot taken at resolution
	board     *leaderboard.Board
	remainder int64
}

// New creates an empty engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Admin == "" {
		return nil, fmt.Errorf("%w: admin identity is required", ErrInvalidEvent)
	}
	if cfg.Resolver == "" {
		cfg.Resolver = cfg.Admin
	}
	if cfg.MinStake < 0 {
		return nil, fmt.Errorf("%w: negative minimum stake", ErrInvalidAmount)
	}
	if err := cfg.Fee.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		events:  make(map[string]*model.Event),
		archive: make(map[string]*model.Event),
		board:   leaderboard.New(cfg.LeaderboardSize),
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// CreateEvent registers a new event with two named outcomes and an implicit
// tie. Only the admin may create events.
func (e *Engine) CreateEvent(caller, id, outcomeA, outcomeB string, lockTime, now time.Time) (*model.Event, error) {
	if caller != e.cfg.Admin {
		return nil, fmt.Errorf("%w: %s cannot create events", ErrUnauthorized, caller)
	}
	if id == "" || outcomeA == "" || outcomeB == "" {
		return nil, fmt.Errorf("%w: id and both outcome labels are required", ErrInvalidEvent)
	}
	if lockTime.IsZero() {
		return nil, fmt.Errorf("%w: lock time is required", ErrInvalidEvent)
	}
	if _, ok := e.events[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	if _, ok := e.archive[id]; ok {
		return nil, fmt.Errorf("%w: %s (archived)", ErrAlreadyExists, id)
	}

	ev := &model.Event{
		ID:        id,
		OutcomeA:  outcomeA,
		OutcomeB:  outcomeB,
		LockTime:  lockTime,
		Status:    model.StatusOpen,
		Result:    model.ResultUnset,
		CreatedAt: now,
		Positions: make(map[string]*model.Position),
	}
	reprice(ev)
	e.events[id] = ev
	return ev.Clone(), nil
}

// Event returns a copy of a live event.
func (e *Engine) Event(id string) (*model.Event, error) {
	ev, err := e.liveEvent(id)
	if err != nil {
		return nil, err
	}
	return ev.Clone(), nil
}

// Events returns copies of all live events ordered by lock time, then id.
func (e *Engine) Events() []*model.Event {
	out := make([]*model.Event, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LockTime.Equal(out[j].LockTime) {
			return out[i].LockTime.Before(out[j].LockTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Archived returns the snapshot an event had when it was resolved.
func (e *Engine) Archived(id string) (*model.Event, error) {
	ev, ok := e.archive[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s not archived", ErrNotFound, id)
	}
	return ev.Clone(), nil
}

// Position returns a participant's position on a live event.
func (e *Engine) Position(id, participant string) (model.Position, error) {
	ev, err := e.liveEvent(id)
	if err != nil {
		return model.Position{}, err
	}
	pos, ok := ev.Positions[participant]
	if !ok {
		return model.Position{}, fmt.Errorf("%w: %s on %s", ErrNoPosition, participant, id)
	}
	return *pos, nil
}

// Leaderboard returns the ranked largest redemptions, best first.
func (e *Engine) Leaderboard() []model.LeaderboardEntry {
	return e.board.Entries()
}

// Remainder returns the value collected from deleted events.
func (e *Engine) Remainder() int64 {
	return e.remainder
}

// Snapshot is the complete persisted engine state.
type Snapshot struct {
	Events      []*model.Event
	Archived    []*model.Event
	Leaderboard []model.LeaderboardEntry
	Remainder   int64
}

// Restore replaces the engine state with a persisted snapshot.
func (e *Engine) Restore(s Snapshot) {
	e.events = make(map[string]*model.Event, len(s.Events))
	for _, ev := range s.Events {
		c := ev.Clone()
		if c.Positions == nil {
			c.Positions = make(map[string]*model.Position)
		}
		e.events[c.ID] = c
	}
	e.archive = make(map[string]*model.Event, len(s.Archived))
	for _, ev := range s.Archived {
		e.archive[ev.ID] = ev.Clone()
	}
	e.board.Restore(s.Leaderboard)
	e.remainder = s.Remainder
}

func (e *Engine) liveEvent(id string) (*model.Event, error) {
	ev, ok := e.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ev, nil
}

// reprice recomputes the pool total and advisory ratings.
func reprice(ev *model.Event) {
	ev.Total = ev.Aggregate[model.OutcomeA] + ev.Aggregate[model.OutcomeB] + ev.Aggregate[model.OutcomeTie]
	ev.Ratings = odds.Compute(ev.Total, ev.Aggregate)
}

// collect deletes a drained event and credits whatever it still escrows to
// the remainder. It returns the amount swept.
func (e *Engine) collect(ev *model.Event) int64 {
	delete(e.events, ev.ID)
	swept := ev.Balance
	ev.Balance = 0
	e.remainder += swept
	return swept
}
