package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	SQL     string
}

var postgresMigrations = []Migration{
	{
		Version: 1,
		SQL: `CREATE TABLE IF NOT EXISTS session_states (
	state_key  TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	saved_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_states_user_id ON session_states (user_id);`,
	},
}

var sqliteMigrations = []Migration{
	{
		Version: 1,
		SQL: `CREATE TABLE IF NOT EXISTS session_states (
	state_key  TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	saved_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_states_user_id ON session_states (user_id);`,
	},
}

// Migrate applies every migration newer than the recorded schema version.
func Migrate(db *sqlx.DB, migrations []Migration) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	if err := db.Get(&current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.Version, err)
		}
		if _, err := tx.Exec(db.Rebind(`INSERT INTO schema_version (version) VALUES (?)`), m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.Version, err)
		}
	}
	return nil
}
