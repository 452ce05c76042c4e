package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tezbet/pool-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[string]*model.Event
	archived  map[string]*model.Event
	ledger    []model.LedgerEntry
	board     []model.LeaderboardEntry
	remainder int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[string]*model.Event),
		archived: make(map[string]*model.Event),
	}
}

func (s *MemoryStore) SaveEvent(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.events[ev.ID] = ev.Clone()
	return nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.events, id)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedClones(s.events), nil
}

func (s *MemoryStore) ArchiveEvent(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.archived[ev.ID]; ok {
		return fmt.Errorf("event %s already archived", ev.ID)
	}
	s.archived[ev.ID] = ev.Clone()
	return nil
}

func (s *MemoryStore) ListArchived(_ context.Context) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedClones(s.archived), nil
}

func (s *MemoryStore) InsertLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *MemoryStore) GetLedgerEntriesByEvent(_ context.Context, eventID string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.EventID == eventID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetLedgerEntriesByParticipant(_ context.Context, participant string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.Participant == participant {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) SaveLeaderboard(_ context.Context, entries []model.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.board = append([]model.LeaderboardEntry(nil), entries...)
	return nil
}

func (s *MemoryStore) GetLeaderboard(_ context.Context) ([]model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.LeaderboardEntry(nil), s.board...), nil
}

func (s *MemoryStore) SaveRemainder(_ context.Context, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remainder = amount
	return nil
}

func (s *MemoryStore) GetRemainder(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.remainder, nil
}

func sortedClones(m map[string]*model.Event) []*model.Event {
	out := make([]*model.Event, 0, len(m))
	for _, ev := range m {
		out = append(out, ev.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
