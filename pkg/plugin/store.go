package plugin

import (
	"context"
	"database/sql"
)

// Store is the shared persistence layer. Each plugin owns its tables and
// brings them up to date through Migrate.
type Store interface {
	DB() *sql.DB
	Tx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Migrate(ctx context.Context, pluginName string, migrations []Migration) error
}

// Migration is one schema step for a plugin.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}
