package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/internal/store"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background(), "usage", migrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewLedger(newSQLStore(s.DB()), zap.NewNop())
}

// fixDay pins the ledger's clock so tests never straddle a UTC midnight.
func fixDay(l *Ledger) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
}

func TestConsumeWithinLimits(t *testing.T) {
	l := testLedger(t)
	fixDay(l)
	ctx := context.Background()

	d, err := l.Consume(ctx, "user-1", PlanFree, 1, 500)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if !d.Allowed {
		t.Fatalf("Consume() denied, reason = %q", d.Reason)
	}
	if d.Totals.Messages != 1 || d.Totals.Tokens != 500 {
		t.Errorf("totals = %+v, want 1 message, 500 tokens", d.Totals)
	}
}

func TestConsumeDeniedOverMessageLimit(t *testing.T) {
	l := testLedger(t)
	fixDay(l)
	ctx := context.Background()

	limits := LimitsFor(PlanFree)
	for i := 0; i < limits.MessagesPerDay; i++ {
		d, err := l.Consume(ctx, "user-1", PlanFree, 1, 10)
		if err != nil || !d.Allowed {
			t.Fatalf("Consume() #%d = %+v, err = %v", i, d, err)
		}
	}

	d, err := l.Consume(ctx, "user-1", PlanFree, 1, 10)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if d.Allowed {
		t.Error("Consume() allowed past the message limit")
	}
	if d.Reason != ReasonOverQuota {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonOverQuota)
	}
	if d.Totals.Messages != limits.MessagesPerDay {
		t.Errorf("messages = %d, want %d (denied call must not record)", d.Totals.Messages, limits.MessagesPerDay)
	}
}

func TestConsumeDeniedOverTokenLimit(t *testing.T) {
	l := testLedger(t)
	fixDay(l)
	ctx := context.Background()

	limits := LimitsFor(PlanFree)
	if d, _ := l.Consume(ctx, "user-1", PlanFree, 1, limits.TokensPerDay); !d.Allowed {
		t.Fatal("consuming exactly the token limit should be allowed")
	}
	d, err := l.Consume(ctx, "user-1", PlanFree, 1, 1)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if d.Allowed {
		t.Error("Consume() allowed past the token limit")
	}
}

func TestConsumeAllOrNothing(t *testing.T) {
	l := testLedger(t)
	fixDay(l)
	ctx := context.Background()

	limits := LimitsFor(PlanFree)
	// Leave room for the message but not for the tokens. The message
	// increment must not land either.
	if d, _ := l.Consume(ctx, "user-1", PlanFree, 1, limits.TokensPerDay-100); !d.Allowed {
		t.Fatal("setup consume denied")
	}
	d, err := l.Consume(ctx, "user-1", PlanFree, 1, 200)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if d.Allowed {
		t.Fatal("Consume() should have been denied on tokens")
	}
	if d.Totals.Messages != 1 {
		t.Errorf("messages = %d, want 1: denial must record nothing", d.Totals.Messages)
	}
}

func TestConsumeUnlimitedPlanRecords(t *testing.T) {
	l := testLedger(t)
	fixDay(l)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Consume(ctx, "user-1", PlanUnlimited, 1, 1_000_000)
		if err != nil || !d.Allowed {
			t.Fatalf("Consume() = %+v, err = %v", d, err)
		}
	}
	totals, _, err := l.Today(ctx, "user-1", PlanUnlimited)
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if totals.Messages != 3 || totals.Tokens != 3_000_000 {
		t.Errorf("totals = %+v, want usage recorded despite no enforcement", totals)
	}
}

func TestConsumeUsersIndependent(t *testing.T) {
	l := testLedger(t)
	fixDay(l)
	ctx := context.Background()

	limits := LimitsFor(PlanFree)
	for i := 0; i < limits.MessagesPerDay; i++ {
		if d, _ := l.Consume(ctx, "user-a", PlanFree, 1, 1); !d.Allowed {
			t.Fatalf("user-a consume #%d denied", i)
		}
	}
	if d, _ := l.Consume(ctx, "user-b", PlanFree, 1, 1); !d.Allowed {
		t.Error("user-b denied by user-a's consumption")
	}
}

func TestConsumeResetsAtUTCMidnight(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return day1 }
	limits := LimitsFor(PlanFree)
	for i := 0; i < limits.MessagesPerDay; i++ {
		if d, _ := l.Consume(ctx, "user-1", PlanFree, 1, 1); !d.Allowed {
			t.Fatalf("day-1 consume #%d denied", i)
		}
	}
	if d, _ := l.Consume(ctx, "user-1", PlanFree, 1, 1); d.Allowed {
		t.Fatal("day-1 over-limit consume allowed")
	}

	l.now = func() time.Time { return day1.Add(2 * time.Minute) }
	if d, _ := l.Consume(ctx, "user-1", PlanFree, 1, 1); !d.Allowed {
		t.Error("quota did not reset after UTC midnight")
	}
}

func TestCheckAllowedDoesNotMutate(t *testing.T) {
	l := testLedger(t)
	fixDay(l)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := l.CheckAllowed(ctx, "user-1", PlanFree)
		if err != nil || !d.Allowed {
			t.Fatalf("CheckAllowed() = %+v, err = %v", d, err)
		}
	}
	totals, _, err := l.Today(ctx, "user-1", PlanFree)
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if totals.Messages != 0 {
		t.Errorf("messages = %d after checks only, want 0", totals.Messages)
	}
}

func TestCheckAllowedAtLimit(t *testing.T) {
	l := testLedger(t)
	fixDay(l)
	ctx := context.Background()

	limits := LimitsFor(PlanFree)
	for i := 0; i < limits.MessagesPerDay; i++ {
		l.Consume(ctx, "user-1", PlanFree, 1, 1)
	}
	d, err := l.CheckAllowed(ctx, "user-1", PlanFree)
	if err != nil {
		t.Fatalf("CheckAllowed() error = %v", err)
	}
	if d.Allowed {
		t.Error("CheckAllowed() allowed at the message limit")
	}
	if d.Reason != ReasonOverQuota {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonOverQuota)
	}
}

// TestConsumeConcurrentLastUnit races N consumers for the final unit of
// quota. Exactly one may win, and the counter must end at the limit.
func TestConsumeConcurrentLastUnit(t *testing.T) {
	l := testLedger(t)
	fixDay(l)
	ctx := context.Background()

	// Burn the free plan down to one remaining message.
	limits := LimitsFor(PlanFree)
	for i := 0; i < limits.MessagesPerDay-1; i++ {
		if d, _ := l.Consume(ctx, "user-1", PlanFree, 1, 1); !d.Allowed {
			t.Fatalf("setup consume #%d denied", i)
		}
	}

	const n = 20
	var wg sync.WaitGroup
	allowed := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Consume(ctx, "user-1", PlanFree, 1, 1)
			if err != nil {
				t.Errorf("Consume() error = %v", err)
				return
			}
			allowed <- d.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	wins := 0
	for ok := range allowed {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	totals, _, err := l.Today(ctx, "user-1", PlanFree)
	if err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if totals.Messages != limits.MessagesPerDay {
		t.Errorf("messages = %d, want %d", totals.Messages, limits.MessagesPerDay)
	}
}

func TestLimitsForUnknownPlan(t *testing.T) {
	if got := LimitsFor(Plan("enterprise")); got != LimitsFor(PlanFree) {
		t.Errorf("unknown plan limits = %+v, want free tier", got)
	}
}
