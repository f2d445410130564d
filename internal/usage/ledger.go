package usage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reason explains a denied decision.
type Reason string

const (
	ReasonOverQuota   Reason = "over_quota"
	ReasonUnavailable Reason = "unavailable"
)

// Decision is the outcome of a quota check or consume.
type Decision struct {
	Allowed bool
	Reason  Reason
	Totals  Totals
	Limits  Limits
}

// Ledger enforces per-user daily quotas. CheckAllowed is advisory and may
// go stale the moment it returns; Consume is the authoritative operation
// and is the only one that mutates counters.
type Ledger struct {
	store  *sqlStore
	logger *zap.Logger
	now    func() time.Time
}

func NewLedger(store *sqlStore, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger, now: time.Now}
}

// dayKey buckets usage by UTC calendar day so the reset instant is the
// same for every user regardless of server timezone.
func (l *Ledger) dayKey() string {
	return l.now().UTC().Format("2006-01-02")
}

// CheckAllowed reports whether the user currently has quota headroom for
// one message. It never mutates state. Store errors fail closed.
func (l *Ledger) CheckAllowed(ctx context.Context, userID string, plan Plan) (Decision, error) {
	limits := LimitsFor(plan)
	if !limits.Enforced() {
		return Decision{Allowed: true, Limits: limits}, nil
	}
	totals, err := l.store.totals(ctx, userID, l.dayKey())
	if err != nil {
		l.logger.Error("usage check failed", zap.String("user_id", userID), zap.Error(err))
		return Decision{Allowed: false, Reason: ReasonUnavailable}, err
	}
	d := Decision{Totals: totals, Limits: limits}
	if !limits.UnlimitedMessages() && totals.Messages >= limits.MessagesPerDay {
		d.Reason = ReasonOverQuota
		return d, nil
	}
	if !limits.UnlimitedTokens() && totals.Tokens >= limits.TokensPerDay {
		d.Reason = ReasonOverQuota
		return d, nil
	}
	d.Allowed = true
	return d, nil
}

// Consume atomically records messages and tokens against today's counters.
// It is all-or-nothing: either both increments land within the limits or
// nothing is recorded and the decision is a denial. Store errors fail
// closed with ReasonUnavailable.
func (l *Ledger) Consume(ctx context.Context, userID string, plan Plan, messages, tokens int) (Decision, error) {
	limits := LimitsFor(plan)
	day := l.dayKey()
	ok, err := l.store.consume(ctx, userID, day, messages, tokens, limits)
	if err != nil {
		l.logger.Error("usage consume failed", zap.String("user_id", userID), zap.Error(err))
		return Decision{Allowed: false, Reason: ReasonUnavailable}, err
	}
	d := Decision{Allowed: ok, Limits: limits}
	if !ok {
		d.Reason = ReasonOverQuota
	}
	if totals, terr := l.store.totals(ctx, userID, day); terr == nil {
		d.Totals = totals
	}
	return d, nil
}

// Today returns the user's current-day totals alongside their limits.
func (l *Ledger) Today(ctx context.Context, userID string, plan Plan) (Totals, Limits, error) {
	totals, err := l.store.totals(ctx, userID, l.dayKey())
	if err != nil {
		return Totals{}, Limits{}, err
	}
	return totals, LimitsFor(plan), nil
}
