package wager

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tezbet/pool-engine/internal/ledger"
	"github.com/tezbet/pool-engine/internal/metrics"
	"github.com/tezbet/pool-engine/internal/model"
	"github.com/tezbet/pool-engine/internal/odds"
)

// --- Request/Response types ---

// CreateEventRequest is the JSON body for event creation.
type CreateEventRequest struct {
	Caller   string    `json:"caller"`
	ID       string    `json:"id"`
	OutcomeA string    `json:"outcome_a"`
	OutcomeB string    `json:"outcome_b"`
	LockTime time.Time `json:"lock_time"` // RFC 3339
}

// StakeRequest is the JSON body for POST /stake. Amount is the attached
// value in mutez.
type StakeRequest struct {
	Participant string `json:"participant"`
	Outcome     string `json:"outcome"` // "A", "B" or "TIE"
	Amount      int64  `json:"amount"`
}

// UnstakeRequest is the JSON body for POST /unstake.
type UnstakeRequest struct {
	Participant string `json:"participant"`
	Outcome     string `json:"outcome"`
}

// CallerRequest is the JSON body for admin calls without arguments.
type CallerRequest struct {
	Caller string `json:"caller"`
}

// OutcomeRequest is the JSON body for POST /outcome.
type OutcomeRequest struct {
	Caller string `json:"caller"`
	Result string `json:"result"` // "A", "B", "TIE" or "CANCELLED"
}

// ScoreRequest is the JSON body for POST /score.
type ScoreRequest struct {
	Caller string `json:"caller"`
	ScoreA int    `json:"score_a"`
	ScoreB int    `json:"score_b"`
}

// RedeemRequest is the JSON body for POST /redeem.
type RedeemRequest struct {
	Participant string `json:"participant"`
}

// EventView is an event with display amounts.
type EventView struct {
	*model.Event
	TotalTez   decimal.Decimal `json:"total_tez"`
	JackpotTez decimal.Decimal `json:"jackpot_tez"`
	Archived   bool            `json:"archived"`
}

func newEventView(ev *model.Event, archived bool) EventView {
	return EventView{
		Event:      ev,
		TotalTez:   odds.Tez(ev.Total),
		JackpotTez: odds.Tez(ev.Jackpot),
		Archived:   archived,
	}
}

// PositionView is one participant's stakes on one event.
type PositionView struct {
	EventID     string           `json:"event_id"`
	Participant string           `json:"participant"`
	Stakes      map[string]int64 `json:"stakes"`
	Total       int64            `json:"total"`
	TotalTez    decimal.Decimal  `json:"total_tez"`
	StakedAt    time.Time        `json:"staked_at"`
}

// RemainderView is the global remainder.
type RemainderView struct {
	Remainder    int64           `json:"remainder"`
	RemainderTez decimal.Decimal `json:"remainder_tez"`
}

// --- HTTP Handlers ---

// CreateEvent handles POST /api/v1/events
func (s *Service) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	ev, err := s.engine.CreateEvent(req.Caller, req.ID, req.OutcomeA, req.OutcomeB, req.LockTime, s.now())
	observe("create_event", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.apply(persistCtx(r), commit{eventID: ev.ID})

	slog.Info("event created",
		"event", ev.ID,
		"outcome_a", ev.OutcomeA,
		"outcome_b", ev.OutcomeB,
		"lock_time", ev.LockTime,
	)
	s.pushOdds(ev.ID)
	writeJSON(w, http.StatusCreated, newEventView(ev, false))
}

// ListEvents handles GET /api/v1/events
func (s *Service) ListEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	events := s.engine.Events()
	s.mu.Unlock()

	views := make([]EventView, 0, len(events))
	for _, ev := range events {
		views = append(views, newEventView(ev, false))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetEvent handles GET /api/v1/events/{eventID}. A collected event is
// served from its resolution snapshot.
func (s *Service) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")

	s.mu.Lock()
	ev, err := s.engine.Event(id)
	archived := false
	if errors.Is(err, ledger.ErrNotFound) {
		ev, err = s.engine.Archived(id)
		archived = err == nil
	}
	s.mu.Unlock()

	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventView(ev, archived))
}

// GetOdds handles GET /api/v1/events/{eventID}/odds
func (s *Service) GetOdds(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ev, err := s.engine.Event(chi.URLParam(r, "eventID"))
	s.mu.Unlock()

	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, odds.QuoteEvent(ev))
}

// GetPosition handles GET /api/v1/events/{eventID}/positions/{participant}
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")
	participant := chi.URLParam(r, "participant")

	s.mu.Lock()
	pos, err := s.engine.Position(id, participant)
	s.mu.Unlock()

	if err != nil {
		writeEngineError(w, err)
		return
	}

	view := PositionView{
		EventID:     id,
		Participant: participant,
		Stakes:      make(map[string]int64, model.NumOutcomes),
		Total:       pos.Total(),
		TotalTez:    odds.Tez(pos.Total()),
		StakedAt:    pos.StakedAt,
	}
	for _, o := range model.Outcomes {
		view.Stakes[o.String()] = pos.Stakes[o]
	}
	writeJSON(w, http.StatusOK, view)
}

// GetEventHistory handles GET /api/v1/events/{eventID}/history
func (s *Service) GetEventHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.GetLedgerEntriesByEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, "failed to get event history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

// GetParticipantHistory handles GET /api/v1/participants/{participant}/history
func (s *Service) GetParticipantHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.GetLedgerEntriesByParticipant(r.Context(), chi.URLParam(r, "participant"))
	if err != nil {
		writeError(w, "failed to get participant history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

// PlaceStake handles POST /api/v1/events/{eventID}/stake
func (s *Service) PlaceStake(w http.ResponseWriter, r *http.Request) {
	var req StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	outcome, err := model.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, "outcome must be A, B or TIE", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "eventID")

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rec, err := s.engine.PlaceStake(id, req.Participant, outcome, req.Amount, s.now())
	observe("stake", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.apply(persistCtx(r), commit{eventID: id, entries: rec.Journal()})
	metrics.StakedMutez.WithLabelValues(outcome.String()).Add(float64(rec.Amount))

	slog.Info("stake placed",
		"event", id,
		"participant", rec.Participant,
		"outcome", outcome.String(),
		"amount", rec.Amount,
	)
	s.pushOdds(id)
	writeJSON(w, http.StatusOK, rec)
}

// RemoveStake handles POST /api/v1/events/{eventID}/unstake
func (s *Service) RemoveStake(w http.ResponseWriter, r *http.Request) {
	var req UnstakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	outcome, err := model.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, "outcome must be A, B or TIE", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "eventID")

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rec, err := s.engine.RemoveStake(id, req.Participant, outcome, s.now())
	observe("unstake", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.apply(persistCtx(r), commit{eventID: id, entries: rec.Journal()})
	metrics.PaidMutez.WithLabelValues(model.KindUnstakeRefund).Add(float64(rec.Refund))
	metrics.ExitFeesMutez.Add(float64(rec.Fee))

	slog.Info("stake removed",
		"event", id,
		"participant", rec.Participant,
		"outcome", outcome.String(),
		"refund", rec.Refund,
		"fee", rec.Fee,
	)
	s.pushOdds(id)
	writeJSON(w, http.StatusOK, rec)
}

// LockEvent handles POST /api/v1/events/{eventID}/lock
func (s *Service) LockEvent(w http.ResponseWriter, r *http.Request) {
	var req CallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "eventID")

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	err := s.engine.Lock(req.Caller, id)
	observe("lock", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.apply(persistCtx(r), commit{eventID: id})

	slog.Info("event locked", "event", id, "caller", req.Caller)
	s.broadcast(WSMessage{Type: "locked", EventID: id})
	ev, _ := s.engine.Event(id)
	writeJSON(w, http.StatusOK, newEventView(ev, false))
}

// SetOutcome handles POST /api/v1/events/{eventID}/outcome
func (s *Service) SetOutcome(w http.ResponseWriter, r *http.Request) {
	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	result, err := model.ParseResult(req.Result)
	if err != nil {
		writeError(w, "result must be A, B, TIE or CANCELLED", http.StatusBadRequest)
		return
	}

	s.resolve(w, r, "set_outcome", func(id string, now time.Time) (*ledger.ResolveReceipt, error) {
		return s.engine.SetOutcome(req.Caller, id, result, now)
	})
}

// ReportScore handles POST /api/v1/events/{eventID}/score
func (s *Service) ReportScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.resolve(w, r, "report_score", func(id string, now time.Time) (*ledger.ResolveReceipt, error) {
		return s.engine.ReportScore(req.Caller, id, req.ScoreA, req.ScoreB, now)
	})
}

func (s *Service) resolve(w http.ResponseWriter, r *http.Request, op string, call func(string, time.Time) (*ledger.ResolveReceipt, error)) {
	id := chi.URLParam(r, "eventID")

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rec, err := call(id, s.now())
	observe(op, start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.apply(persistCtx(r), commit{
		eventID:   id,
		entries:   rec.Journal(),
		archived:  true,
		remainder: rec.Deleted,
	})

	slog.Info("event resolved",
		"event", id,
		"result", rec.Result.String(),
		"deleted", rec.Deleted,
		"swept", rec.Swept,
	)
	s.broadcast(WSMessage{Type: "resolved", EventID: id, Result: rec.Result.String()})
	writeJSON(w, http.StatusOK, rec)
}

// Redeem handles POST /api/v1/events/{eventID}/redeem
func (s *Service) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "eventID")

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rec, err := s.engine.Redeem(id, req.Participant, s.now())
	observe("redeem", start, err)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.apply(persistCtx(r), commit{
		eventID:     id,
		entries:     rec.Journal(),
		leaderboard: rec.Ranked,
		remainder:   rec.Deleted,
	})
	kind := model.KindPayout
	if rec.Result == model.ResultCancelled {
		kind = model.KindRefund
	}
	metrics.PaidMutez.WithLabelValues(kind).Add(float64(rec.Payout))
	metrics.PaidMutez.WithLabelValues(model.KindJackpotShare).Add(float64(rec.JackpotShare))

	slog.Info("position redeemed",
		"event", id,
		"participant", rec.Participant,
		"payout", rec.Payout,
		"jackpot_share", rec.JackpotShare,
		"deleted", rec.Deleted,
	)
	s.broadcast(WSMessage{Type: "redeemed", EventID: id, Participant: rec.Participant, Amount: rec.Total})
	if rec.Deleted {
		s.broadcast(WSMessage{Type: "deleted", EventID: id})
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetLeaderboard handles GET /api/v1/leaderboard
func (s *Service) GetLeaderboard(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	board := s.engine.Leaderboard()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, board)
}

// GetRemainder handles GET /api/v1/remainder
func (s *Service) GetRemainder(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	remainder := s.engine.Remainder()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, RemainderView{Remainder: remainder, RemainderTez: odds.Tez(remainder)})
}

// Audit handles GET /api/v1/audit
func (s *Service) Audit(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	err := s.engine.AuditAll()
	s.mu.Unlock()

	if err != nil {
		slog.Error("audit failed", "err", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// persistCtx detaches persistence from client cancellation: once the
// engine has committed, the store must follow.
func persistCtx(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidOutcome),
		errors.Is(err, ledger.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrAlreadyExists),
		errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, ledger.ErrAlreadyResolved),
		errors.Is(err, ledger.ErrNotResolved),
		errors.Is(err, ledger.ErrTooEarly),
		errors.Is(err, ledger.ErrNoPosition),
		errors.Is(err, ledger.ErrLost):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), StatusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func nonNil(entries []model.LedgerEntry) []model.LedgerEntry {
	if entries == nil {
		return []model.LedgerEntry{}
	}
	return entries
}
