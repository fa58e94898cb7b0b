package engine

import (
	"math"
	"testing"
	"time"

	"github.com/lazypower/strata/internal/dualwrite"
	"github.com/lazypower/strata/internal/store"
)

func testCoordinator(t *testing.T) *dualwrite.Coordinator {
	t.Helper()
	c, err := dualwrite.Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("open coordinator: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func insertAged(t *testing.T, c *dualwrite.Coordinator, layer string, importance float64, ageDays float64) int64 {
	t.Helper()
	now := float64(time.Now().UnixNano()) / 1e9
	accessed := now - ageDays*secondsPerDay
	rec := &store.Record{
		Timestamp:          accessed,
		Content:            "aged record",
		Importance:         importance,
		EmotionalIntensity: 0.5,
		Metadata:           "{}",
		LastAccessed:       &accessed,
	}
	eff := importance
	rec.EffectiveImportance = &eff
	id, _, err := c.Save(layer, rec)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	return id
}

func fetch(t *testing.T, c *dualwrite.Coordinator, layer string, id int64) store.Record {
	t.Helper()
	q, err := store.Compile(store.Filters{ID: &id}, "", 1, true, 0.1)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	records, err := c.Scan(layer, q)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record %d not found", id)
	}
	return records[0]
}

func TestSweepMaterializesDecay(t *testing.T) {
	c := testCoordinator(t)
	cfg := DefaultConfig()
	e := New(c, cfg)

	id := insertAged(t, c, "episodic", 0.5, 30)

	updated, err := e.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}

	rec := fetch(t, c, "episodic", id)
	if rec.EffectiveImportance == nil {
		t.Fatal("effective_importance not materialized")
	}
	want := 0.5 * math.Exp(-cfg.Rate*(1-0.5)*30)
	if math.Abs(*rec.EffectiveImportance-want) > 0.01 {
		t.Errorf("effective_importance = %v, want ~%v", *rec.EffectiveImportance, want)
	}
}

func TestSweepSkipsImmortal(t *testing.T) {
	c := testCoordinator(t)
	e := New(c, DefaultConfig())

	id := insertAged(t, c, "identity", 0.95, 365)

	updated, err := e.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if updated != 0 {
		t.Errorf("updated = %d, want 0 (immortal rows are never selected)", updated)
	}

	rec := fetch(t, c, "identity", id)
	if rec.EffectiveImportance == nil || *rec.EffectiveImportance != 0.95 {
		t.Errorf("effective_importance = %v, want untouched 0.95", rec.EffectiveImportance)
	}
}

func TestSweepCountsAcrossLayers(t *testing.T) {
	c := testCoordinator(t)
	e := New(c, DefaultConfig())

	insertAged(t, c, "episodic", 0.5, 10)
	insertAged(t, c, "semantic", 0.4, 10)
	insertAged(t, c, "working", 0.3, 10)

	updated, err := e.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if updated != 3 {
		t.Errorf("updated = %d, want 3", updated)
	}

	stats := e.Stats()
	if stats.Sequence != 1 {
		t.Errorf("Sequence = %d, want 1", stats.Sequence)
	}
	if stats.LastUpdated != 3 {
		t.Errorf("LastUpdated = %d, want 3", stats.LastUpdated)
	}
}

func TestTouchIncrements(t *testing.T) {
	c := testCoordinator(t)
	e := New(c, DefaultConfig())

	before := float64(time.Now().UnixNano()) / 1e9
	id := insertAged(t, c, "semantic", 0.6, 5)

	e.Touch("semantic", []int64{id})

	rec := fetch(t, c, "semantic", id)
	if rec.AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", rec.AccessCount)
	}
	if rec.LastAccessed == nil || *rec.LastAccessed < before {
		t.Errorf("last_accessed = %v, want >= recall time %v", rec.LastAccessed, before)
	}
}

func TestTouchEmptyNoop(t *testing.T) {
	c := testCoordinator(t)
	e := New(c, DefaultConfig())
	e.Touch("semantic", nil) // must not panic or log an error batch
}

func TestStatusEcho(t *testing.T) {
	c := testCoordinator(t)
	cfg := DefaultConfig()
	cfg.Rate = 0.02
	cfg.SweepInterval = 30 * time.Minute
	e := New(c, cfg)

	s := e.Status()
	if s.BaseRate != 0.02 {
		t.Errorf("BaseRate = %v, want 0.02", s.BaseRate)
	}
	if s.SweepIntervalMinutes != 30 {
		t.Errorf("SweepIntervalMinutes = %v, want 30", s.SweepIntervalMinutes)
	}
	if !s.Enabled {
		t.Error("Enabled = false, want true")
	}
}
