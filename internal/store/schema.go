package store

import (
	"fmt"
)

// Base schema for a layer. The content payload is duplicated into the
// legacy `event` column so older search clients keep matching.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS memories (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp            REAL NOT NULL,
    content              TEXT NOT NULL,
    event                TEXT NOT NULL,
    context              TEXT NOT NULL DEFAULT '',
    importance           REAL NOT NULL DEFAULT 0.7,
    emotional_intensity  REAL NOT NULL DEFAULT 0.5,
    metadata             TEXT NOT NULL DEFAULT '{}',
    last_accessed        REAL,
    effective_importance REAL,
    access_count         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_memories_timestamp  ON memories(timestamp);
CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance);
`

// decayColumns are the columns added after the first schema version.
// Each is back-filled once, when the column is created, so pre-existing
// rows start in a consistent state: by its Backfill statement, or, for
// access_count, by the column default.
var decayColumns = []struct {
	Name     string
	AddSQL   string
	Backfill string
}{
	{
		Name:     "last_accessed",
		AddSQL:   "ALTER TABLE memories ADD COLUMN last_accessed REAL",
		Backfill: "UPDATE memories SET last_accessed = timestamp WHERE last_accessed IS NULL",
	},
	{
		Name:     "effective_importance",
		AddSQL:   "ALTER TABLE memories ADD COLUMN effective_importance REAL",
		Backfill: "UPDATE memories SET effective_importance = importance WHERE effective_importance IS NULL",
	},
	{
		Name:     "access_count",
		AddSQL:   "ALTER TABLE memories ADD COLUMN access_count INTEGER NOT NULL DEFAULT 0",
		Backfill: "",
	},
}

// ensureSchema creates the memories table if absent and applies the
// additive migration: add-column-if-missing plus back-fill. Running it
// twice is equivalent to running it once.
func (db *DB) ensureSchema() error {
	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("create memories table: %w", err)
	}

	existing, err := db.columnSet()
	if err != nil {
		return err
	}

	for _, col := range decayColumns {
		if existing[col.Name] {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin add column %s: %w", col.Name, err)
		}
		if _, err := tx.Exec(col.AddSQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("add column %s: %w", col.Name, err)
		}
		if col.Backfill != "" {
			if _, err := tx.Exec(col.Backfill); err != nil {
				tx.Rollback()
				return fmt.Errorf("backfill %s: %w", col.Name, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit add column %s: %w", col.Name, err)
		}
	}

	return nil
}

// columnSet returns the names of the columns currently on the memories table.
func (db *DB) columnSet() (map[string]bool, error) {
	rows, err := db.Query("PRAGMA table_info(memories)")
	if err != nil {
		return nil, fmt.Errorf("table_info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
