package store

// Migration is a single schema migration.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in order; never edit an applied migration,
// append a new one instead.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_exports",
		SQL: `
			CREATE TABLE exports (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				record_uuid TEXT NOT NULL,
				path TEXT NOT NULL,
				status INTEGER NOT NULL,
				exported_at TEXT NOT NULL
			);
			CREATE INDEX idx_exports_uuid ON exports(record_uuid);
		`,
	},
}
