package usage

import (
	"context"
	"database/sql"
	"fmt"
)

// Totals is a user's accumulated usage for one day.
type Totals struct {
	Messages int `json:"messages"`
	Tokens   int `json:"tokens"`
}

// sqlStore persists daily counters. All mutation goes through a single
// conditional UPDATE so concurrent consumers can never overshoot a quota.
type sqlStore struct {
	db *sql.DB
}

func newSQLStore(db *sql.DB) *sqlStore {
	return &sqlStore{db: db}
}

// ensureRow makes the (user, day) counter row exist. Safe to race: the
// conflict clause turns a losing insert into a no-op.
func (s *sqlStore) ensureRow(ctx context.Context, userID, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_daily (user_id, day, messages, tokens)
		VALUES (?, ?, 0, 0)
		ON CONFLICT (user_id, day) DO NOTHING
	`, userID, day)
	if err != nil {
		return fmt.Errorf("ensure usage row: %w", err)
	}
	return nil
}

// consume increments the counters only if both post-increment values stay
// within the limits. Returns false when the quota would be exceeded.
// The check and the increment are one statement, so there is no window in
// which two callers can both observe room for the last unit.
func (s *sqlStore) consume(ctx context.Context, userID, day string, messages, tokens int, limits Limits) (bool, error) {
	if err := s.ensureRow(ctx, userID, day); err != nil {
		return false, err
	}

	if !limits.Enforced() {
		_, err := s.db.ExecContext(ctx, `
			UPDATE usage_daily
			SET messages = messages + ?, tokens = tokens + ?, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = ? AND day = ?
		`, messages, tokens, userID, day)
		if err != nil {
			return false, fmt.Errorf("record usage: %w", err)
		}
		return true, nil
	}

	msgBound := limits.MessagesPerDay
	if limits.UnlimitedMessages() {
		// Disable the message check without branching the SQL: a bound
		// the new total can never exceed.
		msgBound = 1<<62 - 1
	}
	tokBound := limits.TokensPerDay
	if limits.UnlimitedTokens() {
		tokBound = 1<<62 - 1
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE usage_daily
		SET messages = messages + ?, tokens = tokens + ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND day = ?
		  AND messages + ? <= ?
		  AND tokens + ? <= ?
	`, messages, tokens, userID, day, messages, msgBound, tokens, tokBound)
	if err != nil {
		return false, fmt.Errorf("consume usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume usage: rows affected: %w", err)
	}
	return n == 1, nil
}

// totals returns the counters for a (user, day). A missing row reads as zero.
func (s *sqlStore) totals(ctx context.Context, userID, day string) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT messages, tokens FROM usage_daily WHERE user_id = ? AND day = ?
	`, userID, day).Scan(&t.Messages, &t.Tokens)
	if err == sql.ErrNoRows {
		return Totals{}, nil
	}
	if err != nil {
		return Totals{}, fmt.Errorf("read usage: %w", err)
	}
	return t, nil
}
