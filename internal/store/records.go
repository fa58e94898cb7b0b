package store

import (
	"database/sql"
	"fmt"
)

// Record is one persisted memory row.
type Record struct {
	ID                  int64
	Timestamp           float64
	Content             string
	Context             string
	Importance          float64
	EmotionalIntensity  float64
	Metadata            string
	LastAccessed        *float64
	EffectiveImportance *float64
	AccessCount         int
}

// Stmt is one parameterized statement for batch application.
type Stmt struct {
	SQL  string
	Args []any
}

const recordColumns = `id, timestamp, content, context, importance, emotional_intensity,
	metadata, last_accessed, effective_importance, access_count`

// Insert stores a new record and assigns its id. The content is mirrored
// into the legacy event column.
func (db *DB) Insert(rec *Record) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO memories (timestamp, content, event, context, importance, emotional_intensity,
			metadata, last_accessed, effective_importance, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Timestamp, rec.Content, rec.Content, rec.Context, rec.Importance, rec.EmotionalIntensity,
		rec.Metadata, rec.LastAccessed, rec.EffectiveImportance, rec.AccessCount)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// InsertAt stores a record under an explicit id. Used to mirror a row into
// the cache so both copies share the truth store's id.
func (db *DB) InsertAt(id int64, rec *Record) error {
	_, err := db.Exec(`
		INSERT INTO memories (id, timestamp, content, event, context, importance, emotional_intensity,
			metadata, last_accessed, effective_importance, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, rec.Timestamp, rec.Content, rec.Content, rec.Context, rec.Importance, rec.EmotionalIntensity,
		rec.Metadata, rec.LastAccessed, rec.EffectiveImportance, rec.AccessCount)
	if err != nil {
		return fmt.Errorf("insert record at %d: %w", id, err)
	}
	rec.ID = id
	return nil
}

// GetByID returns a record by id, or nil if not found.
func (db *DB) GetByID(id int64) (*Record, error) {
	row := db.QueryRow("SELECT "+recordColumns+" FROM memories WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

// Scan executes a compiled query against the layer.
func (db *DB) Scan(q Query) ([]Record, error) {
	sqlText := "SELECT " + recordColumns + " FROM memories"
	if q.Where != "" {
		sqlText += " WHERE " + q.Where
	}
	sqlText += " ORDER BY " + q.OrderBy
	sqlText += " LIMIT ?"

	args := append(append([]any{}, q.Args...), q.Limit)
	rows, err := db.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ExecBatch applies an ordered list of statements on this handle.
// Batches are ordered, not atomic: a failure stops the batch and reports
// how far it got.
func (db *DB) ExecBatch(stmts []Stmt) (int, error) {
	for i, s := range stmts {
		if _, err := db.Exec(s.SQL, s.Args...); err != nil {
			return i, fmt.Errorf("batch stmt %d: %w", i, err)
		}
	}
	return len(stmts), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var lastAccessed, effective sql.NullFloat64
	err := row.Scan(&rec.ID, &rec.Timestamp, &rec.Content, &rec.Context,
		&rec.Importance, &rec.EmotionalIntensity, &rec.Metadata,
		&lastAccessed, &effective, &rec.AccessCount)
	if err != nil {
		return nil, err
	}
	if lastAccessed.Valid {
		rec.LastAccessed = &lastAccessed.Float64
	}
	if effective.Valid {
		rec.EffectiveImportance = &effective.Float64
	}
	return &rec, nil
}

func scanRecordRows(rows *sql.Rows) (*Record, error) {
	rec, err := scanRecord(rows)
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

// DecayRow is the slice of a record the sweeper needs.
type DecayRow struct {
	ID           int64
	Importance   float64
	LastAccessed float64
}

// Decayable selects up to limit rows eligible for a decay sweep:
// below the immortal threshold and carrying a last-accessed time.
func (db *DB) Decayable(immortal float64, limit int) ([]DecayRow, error) {
	rows, err := db.Query(`
		SELECT id, importance, last_accessed FROM memories
		WHERE importance < ? AND last_accessed IS NOT NULL
		ORDER BY id LIMIT ?
	`, immortal, limit)
	if err != nil {
		return nil, fmt.Errorf("select decayable: %w", err)
	}
	defer rows.Close()

	var targets []DecayRow
	for rows.Next() {
		var t DecayRow
		if err := rows.Scan(&t.ID, &t.Importance, &t.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan decayable: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// TouchStmt builds the update a recall applies to a returned record.
func TouchStmt(id int64, now float64) Stmt {
	return Stmt{
		SQL:  "UPDATE memories SET last_accessed = ?, access_count = access_count + 1 WHERE id = ?",
		Args: []any{now, id},
	}
}

// EffectiveStmt builds the sweep update materializing a record's
// effective importance.
func EffectiveStmt(id int64, effective float64) Stmt {
	return Stmt{
		SQL:  "UPDATE memories SET effective_importance = ? WHERE id = ?",
		Args: []any{effective, id},
	}
}
