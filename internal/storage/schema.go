package storage

// SchemaVersion is the current schema version. Bump when adding migrations.
const SchemaVersion = 2

// schema is the full schema for a fresh database at version 1.
// team_members is stored comma-joined, same convention as app_prefs being
// opaque JSON: the store does not interpret either.
const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'todo',
	priority    TEXT NOT NULL DEFAULT 'medium',
	due_date    DATETIME,
	project_id  TEXT NOT NULL DEFAULT '',
	assignee_id TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	demo        INTEGER NOT NULL DEFAULT 0,
	owner_id    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'planning',
	progress     INTEGER NOT NULL DEFAULT 0,
	start_date   DATETIME,
	end_date     DATETIME,
	team_members TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	demo         INTEGER NOT NULL DEFAULT 0,
	owner_id     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS settings (
	id            TEXT PRIMARY KEY,
	theme         TEXT NOT NULL DEFAULT '',
	notifications INTEGER NOT NULL DEFAULT 1,
	app_prefs     TEXT NOT NULL DEFAULT '{}',
	demo          INTEGER NOT NULL DEFAULT 0,
	owner_id      TEXT NOT NULL DEFAULT '',
	UNIQUE(owner_id, demo)
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	token         TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	provider      TEXT NOT NULL,
	device_id     TEXT NOT NULL,
	demo          INTEGER NOT NULL DEFAULT 0,
	last_active   DATETIME NOT NULL,
	expires_at    DATETIME,
	metadata      TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS sync_queue (
	id            TEXT PRIMARY KEY,
	operation     TEXT NOT NULL,
	entity        TEXT NOT NULL,
	entity_id     TEXT NOT NULL,
	payload       TEXT NOT NULL,
	enqueued_at   DATETIME NOT NULL,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	priority      INTEGER NOT NULL DEFAULT 1,
	last_retry_at DATETIME,
	last_error    TEXT NOT NULL DEFAULT ''
);
`

// Migration represents a schema migration step
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations are applied in order on open when the stored version is older.
var Migrations = []Migration{
	{
		Version:     2,
		Description: "indexes for partition scans and drain ordering",
		SQL: `
			CREATE INDEX IF NOT EXISTS idx_tasks_partition ON tasks(demo, owner_id);
			CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
			CREATE INDEX IF NOT EXISTS idx_projects_partition ON projects(demo, owner_id);
			CREATE INDEX IF NOT EXISTS idx_sessions_user ON auth_sessions(user_id);
			CREATE INDEX IF NOT EXISTS idx_queue_order ON sync_queue(priority DESC, enqueued_at ASC);
		`,
	},
}
