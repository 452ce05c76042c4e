// Package wager hosts the ledger engine behind an HTTP API.
//
// The service serializes every engine call with a mutex, takes caller
// identity and attached value from the request body, reads the clock,
// persists the affected state to the store, appends the journal, publishes
// it, and pushes odds and settlement updates to WebSocket clients.
package wager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tezbet/pool-engine/internal/ledger"
	"github.com/tezbet/pool-engine/internal/metrics"
	"github.com/tezbet/pool-engine/internal/model"
	"github.com/tezbet/pool-engine/internal/odds"
	"github.com/tezbet/pool-engine/internal/publish"
	"github.com/tezbet/pool-engine/internal/store"
)

// Service owns the engine. Uses a mutex for serialized execution
// (single-instance). The engine state in memory is authoritative; the store
// is written after every committed call.
type Service struct {
	engine    *ledger.Engine
	store     store.Store
	publisher publish.Publisher
	wsHub     *WSHub // optional WebSocket hub for real-time broadcasts
	now       func() time.Time
	mu        sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher streams committed journal entries.
func WithPublisher(p publish.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithHub enables WebSocket broadcasts.
func WithHub(h *WSHub) Option {
	return func(s *Service) { s.wsHub = h }
}

// NewService creates a service around an engine and a store.
func NewService(engine *ledger.Engine, st store.Store, opts ...Option) *Service {
	s := &Service{
		engine:    engine,
		store:     st,
		publisher: publish.Nop{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted state into the engine. Call before serving.
func (s *Service) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("restore events: %w", err)
	}
	archived, err := s.store.ListArchived(ctx)
	if err != nil {
		return fmt.Errorf("restore archive: %w", err)
	}
	board, err := s.store.GetLeaderboard(ctx)
	if err != nil {
		return fmt.Errorf("restore leaderboard: %w", err)
	}
	remainder, err := s.store.GetRemainder(ctx)
	if err != nil {
		return fmt.Errorf("restore remainder: %w", err)
	}

	s.engine.Restore(ledger.Snapshot{
		Events:      events,
		Archived:    archived,
		Leaderboard: board,
		Remainder:   remainder,
	})
	if err := s.engine.AuditAll(); err != nil {
		return fmt.Errorf("restored state is inconsistent: %w", err)
	}

	metrics.ActiveEvents.Set(float64(len(events)))
	metrics.Remainder.Set(float64(remainder))
	slog.Info("engine state restored",
		"events", len(events),
		"archived", len(archived),
		"leaderboard", len(board),
		"remainder", remainder,
	)
	return nil
}

// LockExpired locks every open event past its lock time.
func (s *Service) LockExpired(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked := s.engine.LockExpired(s.now())
	for _, id := range locked {
		s.persistEvent(ctx, id)
		s.broadcast(WSMessage{Type: "locked", EventID: id})
		slog.Info("event auto-locked", "event", id)
	}
	metrics.AutoLocks.Add(float64(len(locked)))
	return locked
}

// commit is what every successful mutation does after the engine call:
// persist the event, record its resolution snapshot, append and publish
// the journal, and refresh the globals.
type commit struct {
	eventID     string
	entries     []model.LedgerEntry
	archived    bool // event was just resolved
	leaderboard bool // leaderboard may have changed
	remainder   bool // remainder may have changed
}

func (s *Service) apply(ctx context.Context, c commit) {
	if c.archived {
		if snap, err := s.engine.Archived(c.eventID); err == nil {
			if err := s.store.ArchiveEvent(ctx, snap); err != nil {
				s.persistFailed("archive", c.eventID, err)
			}
		}
	}
	s.persistEvent(ctx, c.eventID)

	for i := range c.entries {
		if err := s.store.InsertLedgerEntry(ctx, &c.entries[i]); err != nil {
			s.persistFailed("journal", c.eventID, err)
		}
	}
	if c.leaderboard {
		if err := s.store.SaveLeaderboard(ctx, s.engine.Leaderboard()); err != nil {
			s.persistFailed("leaderboard", c.eventID, err)
		}
	}
	if c.remainder {
		remainder := s.engine.Remainder()
		if err := s.store.SaveRemainder(ctx, remainder); err != nil {
			s.persistFailed("remainder", c.eventID, err)
		}
		metrics.Remainder.Set(float64(remainder))
	}
	if err := s.publisher.Publish(ctx, c.entries); err != nil {
		s.persistFailed("publish", c.eventID, err)
	}
	metrics.ActiveEvents.Set(float64(len(s.engine.Events())))
}

// persistEvent writes a live event, or deletes it once collected.
func (s *Service) persistEvent(ctx context.Context, id string) {
	ev, err := s.engine.Event(id)
	if errors.Is(err, ledger.ErrNotFound) {
		if err := s.store.DeleteEvent(ctx, id); err != nil {
			s.persistFailed("event", id, err)
		}
		return
	}
	if err := s.store.SaveEvent(ctx, ev); err != nil {
		s.persistFailed("event", id, err)
	}
}

func (s *Service) persistFailed(target, eventID string, err error) {
	metrics.PersistErrors.WithLabelValues(target).Inc()
	slog.Error("persist failed", "target", target, "event", eventID, "err", err)
}

// pushOdds broadcasts the current odds of a live event.
func (s *Service) pushOdds(id string) {
	ev, err := s.engine.Event(id)
	if err != nil {
		s.broadcast(WSMessage{Type: "deleted", EventID: id})
		return
	}
	board := odds.QuoteEvent(ev)
	s.broadcast(WSMessage{Type: "odds", EventID: id, Odds: &board})
}

func (s *Service) broadcast(msg WSMessage) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

// observe records the outcome and latency of an engine operation.
func observe(op string, start time.Time, err error) {
	metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.OperationsTotal.WithLabelValues(op, errorClass(err)).Inc()
}

func errorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ledger.ErrInvalidEvent):
		return "invalid_event"
	case errors.Is(err, ledger.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ledger.ErrInvalidOutcome):
		return "invalid_outcome"
	case errors.Is(err, ledger.ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, ledger.ErrNotResolved):
		return "not_resolved"
	case errors.Is(err, ledger.ErrTooEarly):
		return "too_early"
	case errors.Is(err, ledger.ErrNoPosition):
		return "no_position"
	case errors.Is(err, ledger.ErrLost):
		return "lost"
	default:
		return "error"
	}
}
