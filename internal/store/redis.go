package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tezbet/pool-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the journal history and leaderboard reads served over HTTP.
// Writes go to the primary store and refresh or invalidate the cache; reads
// check Redis first then fall back to the primary. Events are served from
// engine memory and pass straight through.
type CachedStore struct {
	primary Store
	rdb     redis.Cmdable
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	if err := s.primary.InsertLedgerEntry(ctx, entry); err != nil {
		return err
	}
	// Invalidate the event history; next read will re-populate.
	s.rdb.Del(ctx, historyKey(entry.EventID))
	return nil
}

func (s *CachedStore) SaveLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error {
	if err := s.primary.SaveLeaderboard(ctx, entries); err != nil {
		return err
	}
	s.cacheJSON(ctx, leaderboardKey, entries)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetLedgerEntriesByEvent(ctx context.Context, eventID string) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if s.cached(ctx, historyKey(eventID), &entries) {
		return entries, nil
	}

	entries, err := s.primary.GetLedgerEntriesByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, historyKey(eventID), entries)
	return entries, nil
}

func (s *CachedStore) GetLeaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	if s.cached(ctx, leaderboardKey, &entries) {
		return entries, nil
	}

	entries, err := s.primary.GetLeaderboard(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, leaderboardKey, entries)
	return entries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) SaveEvent(ctx context.Context, ev *model.Event) error {
	return s.primary.SaveEvent(ctx, ev)
}

func (s *CachedStore) DeleteEvent(ctx context.Context, id string) error {
	return s.primary.DeleteEvent(ctx, id)
}

func (s *CachedStore) ListEvents(ctx context.Context) ([]*model.Event, error) {
	return s.primary.ListEvents(ctx)
}

func (s *CachedStore) ArchiveEvent(ctx context.Context, ev *model.Event) error {
	return s.primary.ArchiveEvent(ctx, ev)
}

func (s *CachedStore) ListArchived(ctx context.Context) ([]*model.Event, error) {
	return s.primary.ListArchived(ctx)
}

func (s *CachedStore) GetLedgerEntriesByParticipant(ctx context.Context, participant string) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntriesByParticipant(ctx, participant)
}

func (s *CachedStore) SaveRemainder(ctx context.Context, amount int64) error {
	return s.primary.SaveRemainder(ctx, amount)
}

func (s *CachedStore) GetRemainder(ctx context.Context) (int64, error) {
	return s.primary.GetRemainder(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cached(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

const leaderboardKey = "pool:leaderboard"

func historyKey(id string) string { return fmt.Sprintf("pool:history:%s", id) }
