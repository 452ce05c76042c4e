package ledger_test

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/tezbet/pool-engine/internal/fixedpoint"
	"github.com/tezbet/pool-engine/internal/ledger"
	"github.com/tezbet/pool-engine/internal/model"
)

const (
	admin = "tz1admin"
	tez   = int64(1_000_000)
)

var (
	t0        = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lockAt    = t0.Add(72 * time.Hour)
	afterLock = lockAt.Add(time.Minute)
	midWindow = lockAt.Add(-43_000 * time.Second) // fee rate is half of max here
)

func newEngine(t *testing.T) *ledger.Engine {
	t.Helper()
	e, err := ledger.New(ledger.DefaultConfig(admin))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func seedEvent(t *testing.T, e *ledger.Engine, id string) {
	t.Helper()
	if _, err := e.CreateEvent(admin, id, "Home", "Away", lockAt, t0); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func stake(t *testing.T, e *ledger.Engine, id, p string, o model.Outcome, amount int64) {
	t.Helper()
	if _, err := e.PlaceStake(id, p, o, amount, t0); err != nil {
		t.Fatalf("stake %s %s %d: %v", p, o, amount, err)
	}
}

func resolve(t *testing.T, e *ledger.Engine, id string, r model.Result) *ledger.ResolveReceipt {
	t.Helper()
	rec, err := e.SetOutcome(admin, id, r, afterLock)
	if err != nil {
		t.Fatalf("set outcome %s: %v", r, err)
	}
	return rec
}

func redeem(t *testing.T, e *ledger.Engine, id, p string) *ledger.RedeemReceipt {
	t.Helper()
	rec, err := e.Redeem(id, p, afterLock)
	if err != nil {
		t.Fatalf("redeem %s: %v", p, err)
	}
	return rec
}

func mustAudit(t *testing.T, e *ledger.Engine) {
	t.Helper()
	if err := e.AuditAll(); err != nil {
		t.Fatalf("audit: %v", err)
	}
}

func snapshot(t *testing.T, e *ledger.Engine, id string) *model.Event {
	t.Helper()
	ev, err := e.Event(id)
	if err != nil {
		t.Fatalf("event %s: %v", id, err)
	}
	return ev
}

// ---------- Events ----------

func TestNew_RequiresAdmin(t *testing.T) {
	if _, err := ledger.New(ledger.Config{}); err == nil {
		t.Fatal("expected error for empty admin")
	}
}

func TestCreateEvent(t *testing.T) {
	e := newEngine(t)

	if _, err := e.CreateEvent("tz1mallory", "ev1", "Home", "Away", lockAt, t0); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := e.CreateEvent(admin, "", "Home", "Away", lockAt, t0); !errors.Is(err, ledger.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}

	ev, err := e.CreateEvent(admin, "ev1", "Home", "Away", lockAt, t0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ev.Status != model.StatusOpen || ev.Result != model.ResultUnset {
		t.Errorf("new event should be open and unset, got %s/%s", ev.Status, ev.Result)
	}
	for _, o := range model.Outcomes {
		if !ev.Ratings[o].IsZero() {
			t.Errorf("outcome %s: expected sentinel rating, got %+v", o, ev.Ratings[o])
		}
	}

	if _, err := e.CreateEvent(admin, "ev1", "X", "Y", lockAt, t0); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestEvents_OrderedByLockTime(t *testing.T) {
	e := newEngine(t)
	e.CreateEvent(admin, "late", "A", "B", lockAt.Add(time.Hour), t0)
	e.CreateEvent(admin, "early", "A", "B", lockAt, t0)

	evs := e.Events()
	if len(evs) != 2 || evs[0].ID != "early" || evs[1].ID != "late" {
		t.Errorf("unexpected order: %v, %v", evs[0].ID, evs[1].ID)
	}
}

// ---------- Staking ----------

func TestPlaceStake_UpdatesAggregatesAndRatings(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, 1*tez)
	stake(t, e, "ev1", "alice", model.OutcomeA, 1*tez)
	stake(t, e, "ev1", "bob", model.OutcomeB, 2*tez)

	ev := snapshot(t, e, "ev1")
	if ev.Total != 4*tez {
		t.Errorf("expected total 4 tez, got %d", ev.Total)
	}
	if ev.Aggregate[model.OutcomeA] != 2*tez || ev.Aggregate[model.OutcomeB] != 2*tez {
		t.Errorf("unexpected aggregates %v", ev.Aggregate)
	}
	if ev.Bettors[model.OutcomeA] != 1 {
		t.Errorf("repeat stakes count one bettor, got %d", ev.Bettors[model.OutcomeA])
	}
	if got := fixedpoint.Apply(tez, ev.Ratings[model.OutcomeA].Num, ev.Ratings[model.OutcomeA].Den); got != 2*tez {
		t.Errorf("rating A should double a stake, got %d", got)
	}
	if !ev.Ratings[model.OutcomeTie].IsZero() {
		t.Error("tie has no stake and should keep the sentinel")
	}
	if ev.Balance != ev.Total {
		t.Errorf("balance %d should equal total %d", ev.Balance, ev.Total)
	}
	mustAudit(t, e)
}

func TestPlaceStake_Rejections(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	seedEvent(t, e, "locked")
	seedEvent(t, e, "full")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)
	stake(t, e, "full", "whale", model.OutcomeA, math.MaxInt64)
	if err := e.Lock(admin, "locked"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	tests := []struct {
		name    string
		event   string
		outcome model.Outcome
		amount  int64
		now     time.Time
		wantErr error
	}{
		{"unknown event", "nope", model.OutcomeA, tez, t0, ledger.ErrNotFound},
		{"bad outcome", "ev1", model.Outcome(7), tez, t0, ledger.ErrInvalidOutcome},
		{"zero amount", "ev1", model.OutcomeA, 0, t0, ledger.ErrInvalidAmount},
		{"negative amount", "ev1", model.OutcomeA, -tez, t0, ledger.ErrInvalidAmount},
		{"below minimum", "ev1", model.OutcomeA, ledger.DefaultMinStake - 1, t0, ledger.ErrInvalidAmount},
		{"at lock time", "ev1", model.OutcomeA, tez, lockAt, ledger.ErrInvalidState},
		{"locked event", "locked", model.OutcomeA, tez, t0, ledger.ErrInvalidState},
		{"pool overflow", "full", model.OutcomeB, ledger.DefaultMinStake, t0, ledger.ErrInvalidAmount},
		{"position overflow", "full", model.OutcomeA, ledger.DefaultMinStake, t0, ledger.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before *model.Event
			if ev, err := e.Event(tt.event); err == nil {
				before = ev
			}
			_, err := e.PlaceStake(tt.event, "bob", tt.outcome, tt.amount, tt.now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if before != nil {
				after := snapshot(t, e, tt.event)
				if !reflect.DeepEqual(before, after) {
					t.Errorf("failed stake changed the event:\nbefore %+v\nafter  %+v", before, after)
				}
			}
		})
	}
}

func TestPlaceStake_FillsPoolToLimit(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, math.MaxInt64-tez)
	stake(t, e, "ev1", "bob", model.OutcomeB, tez)

	if _, err := e.PlaceStake("ev1", "carol", model.OutcomeTie, ledger.DefaultMinStake, t0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount on a full pool, got %v", err)
	}
	ev := snapshot(t, e, "ev1")
	if ev.Total != math.MaxInt64 || ev.Balance != math.MaxInt64 {
		t.Errorf("expected total and balance at the limit, got %d and %d", ev.Total, ev.Balance)
	}
	mustAudit(t, e)
}

func TestPlaceStake_MinimumIsInclusive(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	if _, err := e.PlaceStake("ev1", "alice", model.OutcomeTie, ledger.DefaultMinStake, t0); err != nil {
		t.Fatalf("stake at minimum should be accepted: %v", err)
	}
}

func TestRemoveStake_FullRefundOutsideWindow(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, 2*tez)

	rec, err := e.RemoveStake("ev1", "alice", model.OutcomeA, t0)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if rec.Fee != 0 || rec.Refund != 2*tez {
		t.Errorf("expected full refund, got fee %d refund %d", rec.Fee, rec.Refund)
	}

	ev := snapshot(t, e, "ev1")
	if len(ev.Positions) != 0 {
		t.Error("empty position should be removed")
	}
	if ev.Bettors[model.OutcomeA] != 0 || ev.Total != 0 || ev.Balance != 0 {
		t.Errorf("event should be empty, got bettors %v total %d balance %d", ev.Bettors, ev.Total, ev.Balance)
	}
	mustAudit(t, e)
}

func TestRemoveStake_FeeGoesToJackpot(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, 2*tez)
	stake(t, e, "ev1", "alice", model.OutcomeB, 1*tez)

	rec, err := e.RemoveStake("ev1", "alice", model.OutcomeA, midWindow)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	// Half way through the window the rate is 5%.
	if rec.Fee != 100_000 || rec.Refund != 1_900_000 {
		t.Errorf("expected fee 100000 refund 1900000, got %d/%d", rec.Fee, rec.Refund)
	}

	ev := snapshot(t, e, "ev1")
	if ev.Jackpot != 100_000 {
		t.Errorf("expected jackpot 100000, got %d", ev.Jackpot)
	}
	if ev.Balance != ev.Total+ev.Jackpot {
		t.Errorf("balance %d != total %d + jackpot %d", ev.Balance, ev.Total, ev.Jackpot)
	}
	if pos, err := e.Position("ev1", "alice"); err != nil || pos.Stakes[model.OutcomeB] != tez {
		t.Errorf("other bucket should survive, got %+v (%v)", pos, err)
	}
	mustAudit(t, e)
}

func TestRemoveStake_Rejections(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)

	if _, err := e.RemoveStake("ev1", "alice", model.OutcomeB, t0); !errors.Is(err, ledger.ErrNoPosition) {
		t.Errorf("expected ErrNoPosition for empty bucket, got %v", err)
	}
	if _, err := e.RemoveStake("ev1", "bob", model.OutcomeA, t0); !errors.Is(err, ledger.ErrNoPosition) {
		t.Errorf("expected ErrNoPosition for stranger, got %v", err)
	}
	if _, err := e.RemoveStake("ev1", "alice", model.OutcomeA, lockAt); !errors.Is(err, ledger.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState at lock, got %v", err)
	}
	if pos, _ := e.Position("ev1", "alice"); pos.Stakes[model.OutcomeA] != tez {
		t.Error("rejected unstake changed the position")
	}
}

// ---------- Lifecycle ----------

func TestLock(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")

	if err := e.Lock("tz1mallory", "ev1"); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if err := e.Lock(admin, "ev1"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := e.Lock(admin, "ev1"); !errors.Is(err, ledger.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on second lock, got %v", err)
	}
}

func TestLockExpired(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "b")
	seedEvent(t, e, "a")
	e.CreateEvent(admin, "later", "A", "B", lockAt.Add(time.Hour), t0)

	if got := e.LockExpired(t0); len(got) != 0 {
		t.Errorf("nothing should lock before lock time, got %v", got)
	}
	got := e.LockExpired(lockAt)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
	if ev := snapshot(t, e, "later"); ev.Status != model.StatusOpen {
		t.Errorf("later event should stay open, got %s", ev.Status)
	}
}

func TestSetOutcome_Checks(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)

	if _, err := e.SetOutcome("tz1mallory", "ev1", model.ResultA, afterLock); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := e.SetOutcome(admin, "nope", model.ResultA, afterLock); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.SetOutcome(admin, "ev1", model.ResultUnset, afterLock); !errors.Is(err, ledger.ErrInvalidOutcome) {
		t.Errorf("expected ErrInvalidOutcome, got %v", err)
	}
	if _, err := e.SetOutcome(admin, "ev1", model.ResultA, lockAt); !errors.Is(err, ledger.ErrTooEarly) {
		t.Errorf("expected ErrTooEarly at lock time, got %v", err)
	}
	if ev := snapshot(t, e, "ev1"); ev.Status != model.StatusOpen {
		t.Fatalf("rejected outcome changed status to %s", ev.Status)
	}

	stake(t, e, "ev1", "bob", model.OutcomeB, tez)
	resolve(t, e, "ev1", model.ResultA)
	if _, err := e.SetOutcome(admin, "ev1", model.ResultB, afterLock); !errors.Is(err, ledger.ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}
	if _, err := e.PlaceStake("ev1", "carol", model.OutcomeA, tez, t0); !errors.Is(err, ledger.ErrInvalidState) {
		t.Errorf("stake on resolved event: expected ErrInvalidState, got %v", err)
	}
}

func TestSetOutcome_SeparateResolver(t *testing.T) {
	cfg := ledger.DefaultConfig(admin)
	cfg.Resolver = "tz1oracle"
	e, err := ledger.New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)

	if _, err := e.SetOutcome(admin, "ev1", model.ResultA, afterLock); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("admin is not the resolver: expected ErrUnauthorized, got %v", err)
	}
	if _, err := e.SetOutcome("tz1oracle", "ev1", model.ResultA, afterLock); err != nil {
		t.Errorf("resolver should succeed: %v", err)
	}
}

func TestSetOutcome_CancelBeforeLock(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)

	if _, err := e.SetOutcome(admin, "ev1", model.ResultCancelled, t0); err != nil {
		t.Fatalf("cancellation is allowed before lock: %v", err)
	}
	if rec := redeem(t, e, "ev1", "alice"); rec.Total != tez {
		t.Errorf("expected refund of 1 tez, got %d", rec.Total)
	}
}

func TestSetOutcome_FreezesRatings(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)
	stake(t, e, "ev1", "bob", model.OutcomeA, tez)
	stake(t, e, "ev1", "carol", model.OutcomeB, 2*tez)
	resolve(t, e, "ev1", model.ResultA)

	before := snapshot(t, e, "ev1").Ratings
	redeem(t, e, "ev1", "alice")
	after := snapshot(t, e, "ev1")
	if after.Ratings != before {
		t.Errorf("ratings moved after redeem: %v -> %v", before, after.Ratings)
	}
	if after.Aggregate[model.OutcomeA] != 2*tez {
		t.Errorf("aggregates must stay frozen, got %v", after.Aggregate)
	}
}

func TestReportScore(t *testing.T) {
	tests := []struct {
		a, b int
		want model.Result
	}{
		{3, 1, model.ResultA},
		{0, 2, model.ResultB},
		{1, 1, model.ResultTie},
	}
	for _, tt := range tests {
		e := newEngine(t)
		seedEvent(t, e, "ev1")
		stake(t, e, "ev1", "alice", model.OutcomeA, tez)
		stake(t, e, "ev1", "bob", model.OutcomeB, tez)
		stake(t, e, "ev1", "carol", model.OutcomeTie, tez)

		rec, err := e.ReportScore(admin, "ev1", tt.a, tt.b, afterLock)
		if err != nil {
			t.Fatalf("%d-%d: %v", tt.a, tt.b, err)
		}
		if rec.Result != tt.want {
			t.Errorf("%d-%d: expected %s, got %s", tt.a, tt.b, tt.want, rec.Result)
		}
	}

	e := newEngine(t)
	seedEvent(t, e, "ev1")
	if _, err := e.ReportScore(admin, "ev1", -1, 0, afterLock); !errors.Is(err, ledger.ErrInvalidOutcome) {
		t.Errorf("expected ErrInvalidOutcome for negative score, got %v", err)
	}
}

// ---------- Settlement scenarios ----------

func TestScenario_WinnerTakesPool(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, 1*tez)
	stake(t, e, "ev1", "bob", model.OutcomeB, 3*tez)
	resolve(t, e, "ev1", model.ResultA)

	if _, err := e.Redeem("ev1", "bob", afterLock); !errors.Is(err, ledger.ErrLost) {
		t.Errorf("loser: expected ErrLost, got %v", err)
	}

	rec := redeem(t, e, "ev1", "alice")
	if rec.Payout != 4*tez || rec.Total != 4*tez {
		t.Errorf("expected 4 tez payout, got %d (total %d)", rec.Payout, rec.Total)
	}
	if !rec.Deleted || rec.Swept != 0 {
		t.Errorf("last winner should delete the event with nothing left, got deleted=%v swept=%d", rec.Deleted, rec.Swept)
	}
	if _, err := e.Event("ev1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("event should be gone, got %v", err)
	}

	board := e.Leaderboard()
	if len(board) != 1 || board[0].Participant != "alice" || board[0].Amount != 4*tez {
		t.Errorf("unexpected leaderboard %v", board)
	}
}

func TestScenario_CancelledRefundsEveryStake(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, 1*tez)
	stake(t, e, "ev1", "alice", model.OutcomeB, 2*tez)
	stake(t, e, "ev1", "bob", model.OutcomeTie, 5*tez)
	resolve(t, e, "ev1", model.ResultCancelled)

	rec := redeem(t, e, "ev1", "alice")
	if rec.Total != 3*tez {
		t.Errorf("alice: expected 3 tez refund, got %d", rec.Total)
	}
	if rec.Claimed[model.OutcomeA] != tez || rec.Claimed[model.OutcomeB] != 2*tez {
		t.Errorf("unexpected claimed buckets %v", rec.Claimed)
	}
	ev := snapshot(t, e, "ev1")
	if ev.Redeemed[model.OutcomeA] != 1 || ev.Redeemed[model.OutcomeB] != 1 {
		t.Errorf("expected one redemption on A and B, got %v", ev.Redeemed)
	}
	if len(rec.Journal()) != 2 {
		t.Errorf("expected one refund entry per bucket, got %d", len(rec.Journal()))
	}

	rec = redeem(t, e, "ev1", "bob")
	if rec.Total != 5*tez || !rec.Deleted {
		t.Errorf("bob: expected 5 tez and deletion, got %d deleted=%v", rec.Total, rec.Deleted)
	}
	if e.Remainder() != 0 {
		t.Errorf("refunds leave no remainder, got %d", e.Remainder())
	}
}

func TestScenario_ZeroStakeResolution(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")

	rec := resolve(t, e, "ev1", model.ResultB)
	if !rec.Deleted {
		t.Error("event with no stake should be deleted at resolution")
	}
	if _, err := e.Event("ev1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.Redeem("ev1", "alice", afterLock); !errors.Is(err, ledger.ErrNoPosition) {
		t.Errorf("expected ErrNoPosition, got %v", err)
	}
}

func TestScenario_ZeroStakeSweepsJackpot(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, 2*tez)
	if _, err := e.RemoveStake("ev1", "alice", model.OutcomeA, midWindow); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	rec := resolve(t, e, "ev1", model.ResultA)
	if !rec.Deleted || rec.Swept != 100_000 {
		t.Errorf("expected the fee swept, got deleted=%v swept=%d", rec.Deleted, rec.Swept)
	}
	if e.Remainder() != 100_000 {
		t.Errorf("expected remainder 100000, got %d", e.Remainder())
	}
	if j := rec.Journal(); len(j) != 1 || j[0].Kind != model.KindSweep {
		t.Errorf("expected a single sweep entry, got %v", j)
	}
}

func TestScenario_NoWinningStakeSweepsPool(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, 2*tez)
	stake(t, e, "ev1", "bob", model.OutcomeB, 3*tez)

	rec := resolve(t, e, "ev1", model.ResultTie)
	if !rec.Deleted || rec.Swept != 5*tez {
		t.Errorf("expected whole pool swept, got deleted=%v swept=%d", rec.Deleted, rec.Swept)
	}
	if _, err := e.Redeem("ev1", "alice", afterLock); !errors.Is(err, ledger.ErrLost) {
		t.Errorf("expected ErrLost from archive, got %v", err)
	}
}

func TestRedeem_NoDoublePayment(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)
	stake(t, e, "ev1", "bob", model.OutcomeA, tez)
	stake(t, e, "ev1", "carol", model.OutcomeB, tez)
	resolve(t, e, "ev1", model.ResultA)

	redeem(t, e, "ev1", "alice")
	if _, err := e.Redeem("ev1", "alice", afterLock); !errors.Is(err, ledger.ErrNoPosition) {
		t.Errorf("second redeem on live event: expected ErrNoPosition, got %v", err)
	}

	redeem(t, e, "ev1", "bob")
	if _, err := e.Redeem("ev1", "bob", afterLock); !errors.Is(err, ledger.ErrNoPosition) {
		t.Errorf("second redeem after deletion: expected ErrNoPosition, got %v", err)
	}
	if _, err := e.Redeem("ev1", "carol", afterLock); !errors.Is(err, ledger.ErrLost) {
		t.Errorf("loser after deletion: expected ErrLost, got %v", err)
	}
	if _, err := e.Redeem("never", "carol", afterLock); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("unknown event: expected ErrNotFound, got %v", err)
	}
}

func TestRedeem_BeforeResolution(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)

	if _, err := e.Redeem("ev1", "alice", t0); !errors.Is(err, ledger.ErrNotResolved) {
		t.Errorf("expected ErrNotResolved, got %v", err)
	}
}

func TestRedeem_RoundingDustSwept(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	for _, p := range []string{"a1", "a2", "a3"} {
		stake(t, e, "ev1", p, model.OutcomeA, tez)
	}
	stake(t, e, "ev1", "b1", model.OutcomeB, tez)
	resolve(t, e, "ev1", model.ResultA)

	var paid int64
	var last *ledger.RedeemReceipt
	for _, p := range []string{"a1", "a2", "a3"} {
		last = redeem(t, e, "ev1", p)
		if last.Payout != 1_333_333 {
			t.Errorf("%s: expected 1333333, got %d", p, last.Payout)
		}
		paid += last.Total
	}
	if !last.Deleted || last.Swept != 1 {
		t.Errorf("expected 1 mutez dust swept, got deleted=%v swept=%d", last.Deleted, last.Swept)
	}
	if paid+e.Remainder() != 4*tez {
		t.Errorf("payouts %d + remainder %d != pool", paid, e.Remainder())
	}
}

func TestRedeem_JackpotDrainedByClaimants(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "x", model.OutcomeA, 1*tez)
	stake(t, e, "ev1", "y", model.OutcomeA, 2*tez)
	stake(t, e, "ev1", "z", model.OutcomeB, 3*tez)
	stake(t, e, "ev1", "w", model.OutcomeB, 2*tez)
	if _, err := e.RemoveStake("ev1", "w", model.OutcomeB, midWindow); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	resolve(t, e, "ev1", model.ResultA)

	x := redeem(t, e, "ev1", "x")
	if x.Payout != 2*tez || x.JackpotShare != 33_333 {
		t.Errorf("x: expected 2 tez + 33333, got %d + %d", x.Payout, x.JackpotShare)
	}
	y := redeem(t, e, "ev1", "y")
	if y.Payout != 4*tez || y.JackpotShare != 66_667 {
		t.Errorf("y: expected 4 tez + 66667, got %d + %d", y.Payout, y.JackpotShare)
	}
	if x.JackpotShare+y.JackpotShare != 100_000 {
		t.Errorf("jackpot not fully distributed: %d", x.JackpotShare+y.JackpotShare)
	}
	if !y.Deleted || y.Swept != 0 || e.Remainder() != 0 {
		t.Errorf("expected clean deletion, got deleted=%v swept=%d remainder=%d", y.Deleted, y.Swept, e.Remainder())
	}

	board := e.Leaderboard()
	if board[0].Participant != "y" || board[0].Amount != 4*tez+66_667 {
		t.Errorf("leaderboard should rank payout plus jackpot share, got %v", board)
	}
}

func TestArchived(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)
	stake(t, e, "ev1", "bob", model.OutcomeB, tez)

	if _, err := e.Archived("ev1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("unresolved event should not be archived, got %v", err)
	}
	resolve(t, e, "ev1", model.ResultB)
	redeem(t, e, "ev1", "bob")

	snap, err := e.Archived("ev1")
	if err != nil {
		t.Fatalf("archived: %v", err)
	}
	if snap.Result != model.ResultB || len(snap.Positions) != 2 {
		t.Errorf("archive should hold positions at resolution, got %s with %d", snap.Result, len(snap.Positions))
	}
	if _, err := e.CreateEvent(admin, "ev1", "A", "B", lockAt, t0); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Errorf("archived id cannot be reused, got %v", err)
	}
	if _, err := e.SetOutcome(admin, "ev1", model.ResultA, afterLock); !errors.Is(err, ledger.ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved for archived event, got %v", err)
	}
}

// ---------- Properties ----------

func TestConservation_Randomised(t *testing.T) {
	results := []model.Result{model.ResultA, model.ResultB, model.ResultTie, model.ResultCancelled}
	participants := []string{"p0", "p1", "p2", "p3", "p4", "p5"}

	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		e := newEngine(t)
		seedEvent(t, e, "ev")

		var in, out int64
		for i := 0; i < 60; i++ {
			p := participants[rng.Intn(len(participants))]
			o := model.Outcomes[rng.Intn(model.NumOutcomes)]
			now := lockAt.Add(-time.Duration(1+rng.Intn(172_000)) * time.Second)
			if rng.Intn(4) == 0 {
				rec, err := e.RemoveStake("ev", p, o, now)
				if err == nil {
					out += rec.Refund
				} else if !errors.Is(err, ledger.ErrNoPosition) {
					t.Fatalf("seed %d: unstake: %v", seed, err)
				}
			} else {
				amount := ledger.DefaultMinStake + rng.Int63n(5*tez)
				if _, err := e.PlaceStake("ev", p, o, amount, now); err != nil {
					t.Fatalf("seed %d: stake: %v", seed, err)
				}
				in += amount
			}
			mustAudit(t, e)
			if ev := snapshot(t, e, "ev"); ev.Balance != in-out {
				t.Fatalf("seed %d: balance %d != deposits %d - withdrawals %d", seed, ev.Balance, in, out)
			}
		}

		resolve(t, e, "ev", results[rng.Intn(len(results))])
		for _, p := range participants {
			rec, err := e.Redeem("ev", p, afterLock)
			switch {
			case err == nil:
				out += rec.Total
			case errors.Is(err, ledger.ErrLost), errors.Is(err, ledger.ErrNoPosition):
			default:
				t.Fatalf("seed %d: redeem %s: %v", seed, p, err)
			}
		}

		if _, err := e.Event("ev"); !errors.Is(err, ledger.ErrNotFound) {
			t.Fatalf("seed %d: event should be deleted once everyone redeemed", seed)
		}
		if in-out != e.Remainder() {
			t.Errorf("seed %d: deposits %d - withdrawals %d != remainder %d", seed, in, out, e.Remainder())
		}
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	e := newEngine(t)
	seedEvent(t, e, "ev1")
	seedEvent(t, e, "ev2")
	stake(t, e, "ev1", "alice", model.OutcomeA, tez)
	stake(t, e, "ev2", "bob", model.OutcomeA, tez)
	stake(t, e, "ev2", "carol", model.OutcomeB, tez)
	resolve(t, e, "ev2", model.ResultA)
	redeem(t, e, "ev2", "bob")

	archived, _ := e.Archived("ev2")
	restored := newEngine(t)
	restored.Restore(ledger.Snapshot{
		Events:      e.Events(),
		Archived:    []*model.Event{archived},
		Leaderboard: e.Leaderboard(),
		Remainder:   e.Remainder(),
	})

	if !reflect.DeepEqual(restored.Events(), e.Events()) {
		t.Error("restored events differ")
	}
	if !reflect.DeepEqual(restored.Leaderboard(), e.Leaderboard()) {
		t.Error("restored leaderboard differs")
	}
	if _, err := restored.Redeem("ev2", "carol", afterLock); !errors.Is(err, ledger.ErrLost) {
		t.Errorf("restored archive should answer ErrLost, got %v", err)
	}
	mustAudit(t, restored)
}
