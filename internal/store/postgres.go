package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tezbet/pool-engine/internal/model"
	"github.com/tezbet/pool-engine/internal/odds"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as BIGINT mutez.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the bundled schema files in name order. Every statement
// is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		ddl, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

const eventColumns = `id, outcome_a, outcome_b, lock_time, status, result, created_at,
		        aggregate_a, aggregate_b, aggregate_tie,
		        bettors_a, bettors_b, bettors_tie,
		        redeemed_a, redeemed_b, redeemed_tie,
		        jackpot, jackpot_eligible, balance, resolved_at`

func (s *PostgresStore) SaveEvent(ctx context.Context, ev *model.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save event %s: %w", ev.ID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	a, b, tie := model.OutcomeA, model.OutcomeB, model.OutcomeTie
	_, err = tx.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 ON CONFLICT (id) DO UPDATE SET
		     status = EXCLUDED.status, result = EXCLUDED.result,
		     aggregate_a = EXCLUDED.aggregate_a, aggregate_b = EXCLUDED.aggregate_b, aggregate_tie = EXCLUDED.aggregate_tie,
		     bettors_a = EXCLUDED.bettors_a, bettors_b = EXCLUDED.bettors_b, bettors_tie = EXCLUDED.bettors_tie,
		     redeemed_a = EXCLUDED.redeemed_a, redeemed_b = EXCLUDED.redeemed_b, redeemed_tie = EXCLUDED.redeemed_tie,
		     jackpot = EXCLUDED.jackpot, jackpot_eligible = EXCLUDED.jackpot_eligible,
		     balance = EXCLUDED.balance, resolved_at = EXCLUDED.resolved_at`,
		ev.ID, ev.OutcomeA, ev.OutcomeB, ev.LockTime, ev.Status.String(), ev.Result.String(), ev.CreatedAt,
		ev.Aggregate[a], ev.Aggregate[b], ev.Aggregate[tie],
		ev.Bettors[a], ev.Bettors[b], ev.Bettors[tie],
		ev.Redeemed[a], ev.Redeemed[b], ev.Redeemed[tie],
		ev.Jackpot, ev.JackpotEligible, ev.Balance, ev.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM positions WHERE event_id = $1`, ev.ID); err != nil {
		return fmt.Errorf("clear positions %s: %w", ev.ID, err)
	}
	batch := &pgx.Batch{}
	for participant, pos := range ev.Positions {
		batch.Queue(
			`INSERT INTO positions (event_id, participant, stake_a, stake_b, stake_tie, staked_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			ev.ID, participant, pos.Stakes[a], pos.Stakes[b], pos.Stakes[tie], pos.StakedAt,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert positions %s: %w", ev.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]*model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.Event
	byID := make(map[string]*model.Event)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		byID[ev.ID] = ev
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadPositions(ctx, byID); err != nil {
		return nil, err
	}
	return events, nil
}

// loadPositions attaches the positions of every event in byID.
func (s *PostgresStore) loadPositions(ctx context.Context, byID map[string]*model.Event) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT event_id, participant, stake_a, stake_b, stake_tie, staked_at
		 FROM positions WHERE event_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID, participant string
		var pos model.Position
		if err := rows.Scan(&eventID, &participant,
			&pos.Stakes[model.OutcomeA], &pos.Stakes[model.OutcomeB], &pos.Stakes[model.OutcomeTie],
			&pos.StakedAt); err != nil {
			return err
		}
		if ev, ok := byID[eventID]; ok {
			ev.Positions[participant] = &pos
		}
	}
	return rows.Err()
}

func (s *PostgresStore) ArchiveEvent(ctx context.Context, ev *model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode archive %s: %w", ev.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO archived_events (id, snapshot) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`, ev.ID, data)
	return err
}

func (s *PostgresStore) ListArchived(ctx context.Context) ([]*model.Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT snapshot FROM archived_events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode archive: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, event_id, participant, kind, outcome, amount, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.EventID, e.Participant, e.Kind, e.Outcome, e.Amount, e.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetLedgerEntriesByEvent(ctx context.Context, eventID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, event_id, participant, kind, outcome, amount, timestamp
		 FROM ledger_entries WHERE event_id = $1 ORDER BY seq`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func (s *PostgresStore) GetLedgerEntriesByParticipant(ctx context.Context, participant string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, event_id, participant, kind, outcome, amount, timestamp
		 FROM ledger_entries WHERE participant = $1 ORDER BY seq`, participant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func (s *PostgresStore) SaveLeaderboard(ctx context.Context, entries []model.LeaderboardEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM leaderboard`); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for rank, e := range entries {
		batch.Queue(
			`INSERT INTO leaderboard (rank, participant, amount, event_id) VALUES ($1, $2, $3, $4)`,
			rank, e.Participant, e.Amount, e.EventID,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert leaderboard: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetLeaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT participant, amount, event_id FROM leaderboard ORDER BY rank`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.Participant, &e.Amount, &e.EventID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) SaveRemainder(ctx context.Context, amount int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO engine_state (key, value) VALUES ('remainder', $1)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, amount)
	return err
}

func (s *PostgresStore) GetRemainder(ctx context.Context) (int64, error) {
	var amount int64
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM engine_state WHERE key = 'remainder'`).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

// pgxRow is satisfied by both pgx.Row and pgx.Rows.
type pgxRow interface {
	Scan(dest ...any) error
}

// scanEvent reads one events row. Totals and ratings are derived from the
// stored aggregates.
func scanEvent(row pgxRow) (*model.Event, error) {
	ev := &model.Event{Positions: make(map[string]*model.Position)}
	var status, result string
	var resolvedAt *time.Time
	a, b, tie := model.OutcomeA, model.OutcomeB, model.OutcomeTie

	if err := row.Scan(&ev.ID, &ev.OutcomeA, &ev.OutcomeB, &ev.LockTime, &status, &result, &ev.CreatedAt,
		&ev.Aggregate[a], &ev.Aggregate[b], &ev.Aggregate[tie],
		&ev.Bettors[a], &ev.Bettors[b], &ev.Bettors[tie],
		&ev.Redeemed[a], &ev.Redeemed[b], &ev.Redeemed[tie],
		&ev.Jackpot, &ev.JackpotEligible, &ev.Balance, &resolvedAt); err != nil {
		return nil, err
	}
	if err := ev.Status.UnmarshalText([]byte(status)); err != nil {
		return nil, err
	}
	if err := ev.Result.UnmarshalText([]byte(result)); err != nil {
		return nil, err
	}
	ev.ResolvedAt = resolvedAt
	ev.Total = ev.Aggregate[a] + ev.Aggregate[b] + ev.Aggregate[tie]
	ev.Ratings = odds.Compute(ev.Total, ev.Aggregate)
	return ev, nil
}

// pgxRows is the subset of pgx.Rows the ledger scanner needs.
type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanLedgerEntries(rows pgxRows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.Participant, &e.Kind,
			&e.Outcome, &e.Amount, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
