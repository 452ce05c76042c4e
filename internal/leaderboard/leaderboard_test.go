package leaderboard

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/tezbet/pool-engine/internal/model"
)

func entry(p string, amount int64) model.LeaderboardEntry {
	return model.LeaderboardEntry{Participant: p, Amount: amount, EventID: "ev"}
}

func assertSorted(t *testing.T, b *Board) {
	t.Helper()
	entries := b.Entries()
	if len(entries) > b.capacity {
		t.Fatalf("board holds %d entries, capacity %d", len(entries), b.capacity)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Amount > entries[i-1].Amount {
			t.Fatalf("rank %d (%d) above rank %d (%d)", i, entries[i].Amount, i-1, entries[i-1].Amount)
		}
	}
}

func TestInsert_OrdersDescending(t *testing.T) {
	b := New(10)
	b.Insert(entry("alice", 100))
	b.Insert(entry("bob", 300))
	b.Insert(entry("carol", 200))

	got := b.Entries()
	want := []string{"bob", "carol", "alice"}
	for i, p := range want {
		if got[i].Participant != p {
			t.Errorf("rank %d: expected %s, got %s", i, p, got[i].Participant)
		}
	}
}

func TestInsert_TiesKeepEarlierFirst(t *testing.T) {
	b := New(10)
	b.Insert(entry("first", 500))
	b.Insert(entry("second", 500))

	got := b.Entries()
	if got[0].Participant != "first" || got[1].Participant != "second" {
		t.Errorf("expected stable order on ties, got %v", got)
	}
}

func TestInsert_TruncatesToCapacity(t *testing.T) {
	b := New(3)
	for i := 1; i <= 5; i++ {
		b.Insert(entry(fmt.Sprintf("p%d", i), int64(i*10)))
	}
	if len(b.entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(b.entries))
	}
	got := b.Entries()
	if got[0].Amount != 50 || got[2].Amount != 30 {
		t.Errorf("expected top three 50..30, got %v", got)
	}
}

func TestInsert_BelowFullBoardRejected(t *testing.T) {
	b := New(2)
	b.Insert(entry("a", 100))
	b.Insert(entry("b", 90))

	if b.Insert(entry("c", 90)) {
		t.Error("tie with last rank on a full board should not enter")
	}
	if b.Insert(entry("d", 10)) {
		t.Error("smaller amount on a full board should not enter")
	}
	if !b.Insert(entry("e", 95)) {
		t.Error("larger amount should enter")
	}
	assertSorted(t, b)
}

func TestInsert_RandomisedBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := New(DefaultCapacity)
	for i := 0; i < 500; i++ {
		b.Insert(entry(fmt.Sprintf("p%d", i), rng.Int63n(1_000_000)))
		assertSorted(t, b)
	}
	if len(b.entries) != DefaultCapacity {
		t.Errorf("expected full board, got %d", len(b.entries))
	}
}

func TestRestore_ReordersAndBounds(t *testing.T) {
	b := New(2)
	b.Restore([]model.LeaderboardEntry{entry("a", 1), entry("b", 3), entry("c", 2)})
	got := b.Entries()
	if len(got) != 2 || got[0].Participant != "b" || got[1].Participant != "c" {
		t.Errorf("unexpected restored board %v", got)
	}
}

func TestEntries_ReturnsCopy(t *testing.T) {
	b := New(0)
	b.Insert(entry("a", 1))
	got := b.Entries()
	got[0].Amount = 999
	if b.Entries()[0].Amount != 1 {
		t.Error("mutating Entries() result changed the board")
	}
}
