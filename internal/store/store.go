// Package store provides the SQLite persistence shared by wolgate plugins.
// Each plugin owns its tables and versions them through Migrate; applied
// versions are tracked per plugin in schema_migrations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/HerbHall/wolgate/pkg/plugin"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

var _ plugin.Store = (*SQLiteStore)(nil)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// modernc.org/sqlite takes pragmas as statements, not DSN parameters.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// SQLiteStore implements plugin.Store on a single-connection SQLite pool.
type SQLiteStore struct {
	db *sql.DB

	migrateMu sync.Mutex
	ready     bool // schema_migrations exists
}

// New opens or creates the database at path, creating its directory when
// needed. MemoryPath yields a database that lives as long as the store.
func New(path string) (*SQLiteStore, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create data dir for %q: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: SQLite has a single writer, and an in-memory database
	// is per connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %q: %s: %w", path, p, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Tx runs fn in a transaction, committing when fn returns nil.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// Migrate applies the migrations of pluginName that are not applied yet, each
// in its own transaction. Versions must be strictly ascending.
func (s *SQLiteStore) Migrate(ctx context.Context, pluginName string, migrations []plugin.Migration) error {
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			return fmt.Errorf("migrations for %s out of order at version %d", pluginName, migrations[i].Version)
		}
	}

	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	if err := s.ensureSchemaTable(ctx); err != nil {
		return err
	}
	applied, err := s.appliedVersions(ctx, pluginName)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := s.Tx(ctx, func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (plugin_name, version, description) VALUES (?, ?, ?)",
				pluginName, m.Version, m.Description,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", pluginName, m.Version, m.Description, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration version of
// pluginName, or 0 when none is applied.
func (s *SQLiteStore) SchemaVersion(ctx context.Context, pluginName string) (int, error) {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	if err := s.ensureSchemaTable(ctx); err != nil {
		return 0, err
	}
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(version) FROM schema_migrations WHERE plugin_name = ?", pluginName,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("schema version of %s: %w", pluginName, err)
	}
	return int(v.Int64), nil
}

func (s *SQLiteStore) ensureSchemaTable(ctx context.Context) error {
	if s.ready {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			plugin_name TEXT     NOT NULL,
			version     INTEGER  NOT NULL,
			description TEXT     NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (plugin_name, version)
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	s.ready = true
	return nil
}

func (s *SQLiteStore) appliedVersions(ctx context.Context, pluginName string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT version FROM schema_migrations WHERE plugin_name = ?", pluginName)
	if err != nil {
		return nil, fmt.Errorf("list migrations of %s: %w", pluginName, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
