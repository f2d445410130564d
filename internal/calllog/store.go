package calllog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type sqlStore struct {
	db *sql.DB
}

func newSQLStore(db *sql.DB) *sqlStore {
	return &sqlStore{db: db}
}

func (s *sqlStore) insert(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_log (
			id, caller_id, task, provider, model,
			prompt_tokens, completion_tokens, latency_ms,
			status, error_message, attempt, used_fallback, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID.String(), e.CallerID, e.Task, e.Provider, e.Model,
		e.PromptTokens, e.CompletionTokens, e.LatencyMS,
		string(e.Status), e.ErrorMessage, e.Attempt, e.UsedFallback, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}
	return nil
}

// ListFilter narrows a list query. Zero values mean no filter.
type ListFilter struct {
	CallerID string
	Task     string
	Status   Status
	Limit    int
}

func (s *sqlStore) list(ctx context.Context, f ListFilter) ([]Entry, error) {
	q := `
		SELECT id, caller_id, task, provider, model,
		       prompt_tokens, completion_tokens, latency_ms,
		       status, error_message, attempt, used_fallback, created_at
		FROM call_log WHERE 1=1`
	args := []any{}
	if f.CallerID != "" {
		q += " AND caller_id = ?"
		args = append(args, f.CallerID)
	}
	if f.Task != "" {
		q += " AND task = ?"
		args = append(args, f.Task)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list call log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var id string
		if err := rows.Scan(&id, &e.CallerID, &e.Task, &e.Provider, &e.Model,
			&e.PromptTokens, &e.CompletionTokens, &e.LatencyMS,
			&e.Status, &e.ErrorMessage, &e.Attempt, &e.UsedFallback, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan call log row: %w", err)
		}
		e.ID, _ = uuid.Parse(id)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// deleteOlderThan removes entries created before the cutoff and returns
// the number removed.
func (s *sqlStore) deleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM call_log WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune call log: %w", err)
	}
	return res.RowsAffected()
}
