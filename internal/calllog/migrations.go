package calllog

import (
	"database/sql"

	"github.com/lingora-app/llmgate/pkg/module"
)

func migrations() []module.Migration {
	return []module.Migration{
		{
			Version:     1,
			Description: "create call_log table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS call_log (
						id                TEXT PRIMARY KEY,
						caller_id         TEXT NOT NULL,
						task              TEXT NOT NULL,
						provider          TEXT NOT NULL,
						model             TEXT NOT NULL,
						prompt_tokens     INTEGER NOT NULL DEFAULT 0,
						completion_tokens INTEGER NOT NULL DEFAULT 0,
						latency_ms        INTEGER NOT NULL DEFAULT 0,
						status            TEXT NOT NULL,
						error_message     TEXT NOT NULL DEFAULT '',
						attempt           INTEGER NOT NULL DEFAULT 0,
						used_fallback     INTEGER NOT NULL DEFAULT 0,
						created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					);
					CREATE INDEX IF NOT EXISTS idx_call_log_created_at ON call_log(created_at);
					CREATE INDEX IF NOT EXISTS idx_call_log_caller ON call_log(caller_id, created_at);
				`)
				return err
			},
		},
	}
}
