package database

// Migration represents a database migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version: "001_init",
		Up: `
-- Named-slot key-value store holding all live application state
-- (business collections, configuration, UI preferences)
CREATE TABLE kv_slots (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Audit history of backup attempts; independent of the artifacts themselves
CREATE TABLE backup_history (
    id TEXT PRIMARY KEY,
    filename TEXT,
    created_at DATETIME NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    description TEXT,
    data_types TEXT,
    checksum TEXT,
    version TEXT,
    error_message TEXT
);

CREATE INDEX idx_backup_history_created ON backup_history(created_at);
CREATE INDEX idx_backup_history_type ON backup_history(type);
`,
		Down: `
DROP TABLE backup_history;
DROP TABLE kv_slots;
`,
	},
}
