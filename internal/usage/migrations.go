package usage

import (
	"database/sql"

	"github.com/lingora-app/llmgate/pkg/module"
)

func migrations() []module.Migration {
	return []module.Migration{
		{
			Version:     1,
			Description: "create usage_daily table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS usage_daily (
						user_id    TEXT NOT NULL,
						day        TEXT NOT NULL,
						messages   INTEGER NOT NULL DEFAULT 0,
						tokens     INTEGER NOT NULL DEFAULT 0,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						PRIMARY KEY (user_id, day)
					);
					CREATE INDEX IF NOT EXISTS idx_usage_daily_day ON usage_daily(day);
				`)
				return err
			},
		},
	}
}
