// Package leaderboard keeps the bounded ranking of the largest redemptions
// across all events.
package leaderboard

import "github.com/tezbet/pool-engine/internal/model"

// DefaultCapacity is the number of ranks kept.
const DefaultCapacity = 10

// Board is a capacity-bounded sequence sorted by amount, non-increasing.
// Not safe for concurrent use.
type Board struct {
	capacity int
	entries  []model.LeaderboardEntry
}

// New creates an empty board. A non-positive capacity uses DefaultCapacity.
func New(capacity int) *Board {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Board{
		capacity: capacity,
		entries:  make([]model.LeaderboardEntry, 0, capacity+1),
	}
}

// Insert ranks entry and drops whatever falls off the bottom. On equal
// amounts the earlier entry keeps the higher rank. It reports whether the
// entry made it onto the board.
func (b *Board) Insert(entry model.LeaderboardEntry) bool {
	rank := len(b.entries)
	for rank > 0 && entry.Amount > b.entries[rank-1].Amount {
		rank--
	}
	if rank >= b.capacity {
		return false
	}

	b.entries = append(b.entries, model.LeaderboardEntry{})
	copy(b.entries[rank+1:], b.entries[rank:])
	b.entries[rank] = entry

	if len(b.entries) > b.capacity {
		b.entries = b.entries[:b.capacity]
	}
	return true
}

// Entries returns a copy of the ranking, best first.
func (b *Board) Entries() []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Restore replaces the ranking with persisted entries, re-inserting each so
// the bound and ordering hold even for a tampered snapshot.
func (b *Board) Restore(entries []model.LeaderboardEntry) {
	b.entries = b.entries[:0]
	for _, e := range entries {
		b.Insert(e)
	}
}
