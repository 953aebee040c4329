package store

import "database/sql"

// currentSchemaVersion is the version the migrations below bring a fresh
// or older database up to. Migrations are idempotent and forward-only;
// schema evolution is additive: new columns get defaults, never
// destructive renames.
const currentSchemaVersion = 1

var migrations = []func(*sql.Tx) error{
	migrateV1,
}

func migrateV1(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			working_directory TEXT NOT NULL,
			configuration TEXT,
			is_archived INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			last_used_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id),
			name TEXT NOT NULL,
			description TEXT,
			configuration TEXT,
			environment_variables TEXT,
			tool_policies TEXT,
			tool_allowlist TEXT,
			working_directory TEXT,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id)`,
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			session_id TEXT REFERENCES sessions(id),
			project_id TEXT REFERENCES projects(id),
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_session ON threads(session_id)`,
		`CREATE TABLE IF NOT EXISTS events (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			thread_id TEXT NOT NULL REFERENCES threads(id),
			type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_thread_ts ON events(thread_id, timestamp, rowid)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_call ON events(type, json_extract(data, '$.callId'))`,
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL,
			applied_at INTEGER NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
