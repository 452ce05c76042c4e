// Package store defines the persistence interface for the pool engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/tezbet/pool-engine/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Live events ---

	// SaveEvent upserts an event together with its positions.
	SaveEvent(ctx context.Context, ev *model.Event) error

	// DeleteEvent removes a collected event and its positions.
	DeleteEvent(ctx context.Context, id string) error

	// ListEvents returns all live events.
	ListEvents(ctx context.Context) ([]*model.Event, error)

	// --- Archive ---

	// ArchiveEvent stores the snapshot of an event taken at resolution.
	ArchiveEvent(ctx context.Context, ev *model.Event) error

	// ListArchived returns every archived snapshot.
	ListArchived(ctx context.Context) ([]*model.Event, error)

	// --- Immutable journal ---

	// InsertLedgerEntry appends an immutable value movement.
	InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error

	// GetLedgerEntriesByEvent returns all movements for an event, oldest first.
	GetLedgerEntriesByEvent(ctx context.Context, eventID string) ([]model.LedgerEntry, error)

	// GetLedgerEntriesByParticipant returns all movements for a participant.
	GetLedgerEntriesByParticipant(ctx context.Context, participant string) ([]model.LedgerEntry, error)

	// --- Globals ---

	// SaveLeaderboard replaces the persisted ranking.
	SaveLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error

	// GetLeaderboard returns the persisted ranking, best first.
	GetLeaderboard(ctx context.Context) ([]model.LeaderboardEntry, error)

	// SaveRemainder stores the global remainder.
	SaveRemainder(ctx context.Context, amount int64) error

	// GetRemainder returns the global remainder, zero if never saved.
	GetRemainder(ctx context.Context) (int64, error)
}
