package store

import (
	"database/sql"
	"fmt"
)

// LayerStats summarizes one layer for get_stats.
type LayerStats struct {
	Count         int      `json:"count"`
	AvgImportance *float64 `json:"avg_importance"`
	AvgEmotional  *float64 `json:"avg_emotional_intensity"`
	MostRecent    *float64 `json:"most_recent"`
	ImmortalCount int      `json:"immortal_count"`
	ActiveCount   int      `json:"active_count"`
	DecayedCount  int      `json:"decayed_count"`
}

// Count returns the number of records in the layer.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Stats computes the aggregate view of the layer. Immortal rows sit at or
// above the immortal threshold; decayed rows have a materialized effective
// importance below the visibility threshold; active is everything else.
func (db *DB) Stats(immortal, threshold float64) (LayerStats, error) {
	var s LayerStats
	var avgImp, avgEmo, mostRecent sql.NullFloat64

	err := db.QueryRow(`
		SELECT COUNT(*), AVG(importance), AVG(emotional_intensity), MAX(timestamp)
		FROM memories
	`).Scan(&s.Count, &avgImp, &avgEmo, &mostRecent)
	if err != nil {
		return s, fmt.Errorf("stats aggregates: %w", err)
	}
	if avgImp.Valid {
		s.AvgImportance = &avgImp.Float64
	}
	if avgEmo.Valid {
		s.AvgEmotional = &avgEmo.Float64
	}
	if mostRecent.Valid {
		s.MostRecent = &mostRecent.Float64
	}

	err = db.QueryRow("SELECT COUNT(*) FROM memories WHERE importance >= ?", immortal).Scan(&s.ImmortalCount)
	if err != nil {
		return s, fmt.Errorf("stats immortal: %w", err)
	}

	err = db.QueryRow(`
		SELECT COUNT(*) FROM memories
		WHERE effective_importance IS NOT NULL AND effective_importance < ? AND importance < ?
	`, threshold, immortal).Scan(&s.DecayedCount)
	if err != nil {
		return s, fmt.Errorf("stats decayed: %w", err)
	}

	s.ActiveCount = s.Count - s.ImmortalCount - s.DecayedCount
	return s, nil
}
