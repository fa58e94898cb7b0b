package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Layers is the fixed set of memory layers, in tie-break order.
var Layers = []string{"episodic", "semantic", "procedural", "meta", "identity", "working"}

// ValidLayer reports whether name is one of the six canonical layers.
func ValidLayer(name string) bool {
	for _, l := range Layers {
		if l == name {
			return true
		}
	}
	return false
}

// FileName returns the database file name for a layer, e.g. "episodic_memory.db".
func FileName(layer string) string {
	return layer + "_memory.db"
}

// DB wraps a sql.DB connection to one layer's SQLite file.
// A DB is single-writer: all mutations for a layer go through one handle.
type DB struct {
	*sql.DB
	Layer string
	Path  string
}

// DefaultDataDir returns the default durable root: ~/.strata
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".strata"), nil
}

// Open opens (or creates) the SQLite file for a layer at the given path,
// configures pragmas, and ensures the schema is current.
func Open(layer, path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create layer dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{DB: sqlDB, Layer: layer, Path: path}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.ensureSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("schema %s: %w", layer, err)
	}
	return db, nil
}

// OpenMemory opens an in-memory layer store for testing.
func OpenMemory(layer string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}

	db := &DB{DB: sqlDB, Layer: layer, Path: ":memory:"}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.ensureSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("schema %s: %w", layer, err)
	}
	return db, nil
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}
