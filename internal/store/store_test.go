package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/HerbHall/wolgate/pkg/plugin"
)

func testMigrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create wol_test table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE wol_test (id TEXT PRIMARY KEY)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "add mac column",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`ALTER TABLE wol_test ADD COLUMN mac TEXT NOT NULL DEFAULT ''`)
				return err
			},
		},
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Migrate(ctx, "wakeonlan", testMigrations()); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	// Re-running must skip applied versions instead of failing on ALTER TABLE.
	if err := s.Migrate(ctx, "wakeonlan", testMigrations()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var count int
	if err := s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations WHERE plugin_name = 'wakeonlan'`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("applied migrations = %d, want 2", count)
	}

	v, err := s.SchemaVersion(ctx, "wakeonlan")
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != 2 {
		t.Errorf("SchemaVersion() = %d, want 2", v)
	}
	if v, _ := s.SchemaVersion(ctx, "absent"); v != 0 {
		t.Errorf("SchemaVersion(absent) = %d, want 0", v)
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	s, err := New(MemoryPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	m := testMigrations()
	m[1].Up = func(tx *sql.Tx) error {
		_, err := tx.Exec(`ALTER TABLE missing ADD COLUMN x TEXT`)
		return err
	}
	ctx := context.Background()
	if err := s.Migrate(ctx, "wakeonlan", m); err == nil {
		t.Fatal("Migrate() expected error from failing migration")
	}
	if v, _ := s.SchemaVersion(ctx, "wakeonlan"); v != 1 {
		t.Errorf("SchemaVersion() = %d, want 1 after failed step 2", v)
	}
}

func TestMigrateOutOfOrder(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	m := testMigrations()
	m[0], m[1] = m[1], m[0]
	if err := s.Migrate(context.Background(), "wakeonlan", m); err == nil {
		t.Fatal("Migrate() expected error for out-of-order versions")
	}
}

func TestTxRollback(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Migrate(ctx, "wakeonlan", testMigrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	boom := errors.New("boom")
	err = s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO wol_test (id) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx() error = %v, want %v", err, boom)
	}

	var count int
	s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM wol_test`).Scan(&count)
	if count != 0 {
		t.Errorf("rows after rollback = %d, want 0", count)
	}
}

func TestNewCreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "wolgate.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New(%q) error = %v", path, err)
	}
	s.Close()
}
