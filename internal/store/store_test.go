package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lingora-app/llmgate/pkg/module"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func countersMigration() []module.Migration {
	return []module.Migration{
		{
			Version:     1,
			Description: "create counters",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE counters (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "seed counters",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`INSERT INTO counters (name, value) VALUES ('calls', 0)`)
				return err
			},
		},
	}
}

func TestMigrate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Migrate(ctx, "demo", countersMigration()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var value int
	if err := s.DB().QueryRow(`SELECT value FROM counters WHERE name = 'calls'`).Scan(&value); err != nil {
		t.Fatalf("query after migrate: %v", err)
	}
	if value != 0 {
		t.Errorf("value = %d, want 0", value)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Migrate(ctx, "demo", countersMigration()); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	// A second run must skip applied versions; the seed insert would
	// otherwise violate the primary key.
	if err := s.Migrate(ctx, "demo", countersMigration()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateIsolatedPerModule(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Migrate(ctx, "alpha", countersMigration()[:1]); err != nil {
		t.Fatalf("Migrate(alpha) error = %v", err)
	}
	// A different module starting at version 1 must not be skipped just
	// because alpha already applied its own version 1.
	applied := false
	err := s.Migrate(ctx, "beta", []module.Migration{{
		Version:     1,
		Description: "beta table",
		Up: func(tx *sql.Tx) error {
			applied = true
			_, err := tx.Exec(`CREATE TABLE beta_things (id INTEGER PRIMARY KEY)`)
			return err
		},
	}})
	if err != nil {
		t.Fatalf("Migrate(beta) error = %v", err)
	}
	if !applied {
		t.Error("beta migration was skipped")
	}
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.Migrate(ctx, "demo", []module.Migration{{
		Version:     1,
		Description: "broken",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE TABLE half_done (id INTEGER)`); err != nil {
				return err
			}
			return fmt.Errorf("boom")
		},
	}})
	if err == nil {
		t.Fatal("Migrate() succeeded, want error")
	}

	var name string
	scanErr := s.DB().QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'half_done'`,
	).Scan(&name)
	if scanErr != sql.ErrNoRows {
		t.Errorf("half_done table exists after failed migration (err = %v)", scanErr)
	}
}

func TestTxRollback(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Migrate(ctx, "demo", countersMigration()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	err := s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE counters SET value = 99 WHERE name = 'calls'`); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	if err == nil {
		t.Fatal("Tx() succeeded, want error")
	}

	var value int
	if err := s.DB().QueryRow(`SELECT value FROM counters WHERE name = 'calls'`).Scan(&value); err != nil {
		t.Fatalf("query: %v", err)
	}
	if value != 0 {
		t.Errorf("value = %d after rollback, want 0", value)
	}
}

func TestCheckVersion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.CheckVersion(ctx, "0.1.0"); err != nil {
		t.Fatalf("CheckVersion() first run error = %v", err)
	}
	if err := s.CheckVersion(ctx, "0.2.0"); err != nil {
		t.Fatalf("CheckVersion() upgrade error = %v", err)
	}
	err := s.CheckVersion(ctx, "0.1.0")
	if !errors.Is(err, ErrNewerSchema) {
		t.Errorf("CheckVersion() downgrade error = %v, want ErrNewerSchema", err)
	}
}

func TestCheckVersionDevAlwaysPasses(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.CheckVersion(ctx, "0.5.0"); err != nil {
		t.Fatalf("CheckVersion() error = %v", err)
	}
	if err := s.CheckVersion(ctx, "dev"); err != nil {
		t.Errorf("CheckVersion(dev) error = %v", err)
	}
}
