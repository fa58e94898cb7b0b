package store

import (
	"fmt"
	"strings"
)

// Query is a compiled scan: a parameterized WHERE conjunction, a validated
// ORDER BY clause, and a limit. No user-supplied text ever appears in
// Where or OrderBy; fragments travel only through Args.
type Query struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
}

// Filters is the structured filter DSL accepted by query_layer.
// Nil pointers mean "not filtered".
type Filters struct {
	ID                     *int64
	ImportanceMin          *float64
	ImportanceMax          *float64
	EmotionalIntensityMin  *float64
	EmotionalIntensityMax  *float64
	TimestampAfter         *float64
	TimestampBefore        *float64
	ContentContains        string
	ContextContains        string
	EffectiveImportanceMin *float64
	EffectiveImportanceMax *float64
}

// DefaultOrder is the ordering every invalid order_by collapses to.
const DefaultOrder = "timestamp DESC"

// RecallOrder ranks recall results by live importance, newest first.
const RecallOrder = "COALESCE(effective_importance, importance) DESC, timestamp DESC"

// orderColumns is the whitelist of sortable columns.
var orderColumns = map[string]bool{
	"id":                  true,
	"timestamp":           true,
	"content":             true,
	"event":               true,
	"context":             true,
	"emotional_intensity": true,
	"importance":          true,
}

// Compile translates filters, an ordering axis, and a limit into a
// parameterized Query. When includeDecayed is false the visibility
// conjunct keeps rows whose materialized effective importance is at or
// above threshold, and rows not yet swept (NULL).
func Compile(f Filters, orderBy string, limit int, includeDecayed bool, threshold float64) (Query, error) {
	if err := f.validate(); err != nil {
		return Query{}, err
	}

	var conds []string
	var args []any

	add := func(cond string, vals ...any) {
		conds = append(conds, cond)
		args = append(args, vals...)
	}

	if f.ID != nil {
		add("id = ?", *f.ID)
	}
	if f.ImportanceMin != nil {
		add("importance >= ?", *f.ImportanceMin)
	}
	if f.ImportanceMax != nil {
		add("importance <= ?", *f.ImportanceMax)
	}
	if f.EmotionalIntensityMin != nil {
		add("emotional_intensity >= ?", *f.EmotionalIntensityMin)
	}
	if f.EmotionalIntensityMax != nil {
		add("emotional_intensity <= ?", *f.EmotionalIntensityMax)
	}
	if f.TimestampAfter != nil {
		add("timestamp >= ?", *f.TimestampAfter)
	}
	if f.TimestampBefore != nil {
		add("timestamp <= ?", *f.TimestampBefore)
	}
	if f.ContentContains != "" {
		pattern := "%" + EscapeLike(f.ContentContains) + "%"
		add(`(event LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if f.ContextContains != "" {
		pattern := "%" + EscapeLike(f.ContextContains) + "%"
		add(`context LIKE ? ESCAPE '\'`, pattern)
	}
	if f.EffectiveImportanceMin != nil {
		add("effective_importance >= ?", *f.EffectiveImportanceMin)
	}
	if f.EffectiveImportanceMax != nil {
		add("effective_importance <= ?", *f.EffectiveImportanceMax)
	}

	if !includeDecayed {
		// NULL branch keeps pre-migration rows visible until the first sweep.
		add("(effective_importance IS NULL OR effective_importance >= ?)", threshold)
	}

	if limit <= 0 {
		limit = 10
	}

	return Query{
		Where:   strings.Join(conds, " AND "),
		Args:    args,
		OrderBy: CompileOrder(orderBy),
		Limit:   limit,
	}, nil
}

func (f Filters) validate() error {
	if f.ImportanceMin != nil && f.ImportanceMax != nil && *f.ImportanceMin > *f.ImportanceMax {
		return fmt.Errorf("importance_min exceeds importance_max")
	}
	if f.EmotionalIntensityMin != nil && f.EmotionalIntensityMax != nil &&
		*f.EmotionalIntensityMin > *f.EmotionalIntensityMax {
		return fmt.Errorf("emotional_intensity_min exceeds emotional_intensity_max")
	}
	if f.TimestampAfter != nil && f.TimestampBefore != nil && *f.TimestampAfter > *f.TimestampBefore {
		return fmt.Errorf("timestamp_after exceeds timestamp_before")
	}
	if f.EffectiveImportanceMin != nil && f.EffectiveImportanceMax != nil &&
		*f.EffectiveImportanceMin > *f.EffectiveImportanceMax {
		return fmt.Errorf("effective_importance_min exceeds effective_importance_max")
	}
	return nil
}

// CompileRecall builds the scan recall uses: an escaped substring match
// over content, the legacy event column, and context, ranked by live
// importance with newest first.
func CompileRecall(query string, limit int, includeDecayed bool, threshold float64) Query {
	pattern := "%" + EscapeLike(query) + "%"
	where := `(event LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\' OR context LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern, pattern}

	if !includeDecayed {
		where += " AND (effective_importance IS NULL OR effective_importance >= ?)"
		args = append(args, threshold)
	}

	if limit <= 0 {
		limit = 10
	}

	return Query{Where: where, Args: args, OrderBy: RecallOrder, Limit: limit}
}

// CompileOrder validates an "column direction" ordering axis against the
// whitelist. Anything off-list collapses to timestamp DESC.
func CompileOrder(orderBy string) string {
	fields := strings.Fields(strings.TrimSpace(orderBy))
	if len(fields) == 0 || len(fields) > 2 {
		return DefaultOrder
	}

	col := strings.ToLower(fields[0])
	if !orderColumns[col] {
		return DefaultOrder
	}

	dir := "DESC"
	if len(fields) == 2 {
		switch strings.ToUpper(fields[1]) {
		case "ASC":
			dir = "ASC"
		case "DESC":
			dir = "DESC"
		default:
			return DefaultOrder
		}
	}

	return col + " " + dir
}

// EscapeLike escapes LIKE wildcards in a user-supplied fragment so they
// match literally under ESCAPE '\'.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
