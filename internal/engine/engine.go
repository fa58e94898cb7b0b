// Package engine materializes temporal decay: a periodic sweeper recomputes
// every non-immortal record's effective importance, and recall touches
// refresh last-accessed times through the same coordinator.
package engine

import (
	"log"
	"sync"
	"time"

	"github.com/lazypower/strata/internal/dualwrite"
	"github.com/lazypower/strata/internal/store"
)

// Engine runs the decay sweeper and applies recall touches.
type Engine struct {
	cfg    Config
	coord  *dualwrite.Coordinator
	stopCh chan struct{}

	mu       sync.Mutex
	sweeping bool
	stats    SweepStats
}

// SweepStats tracks the most recent sweep outcome.
type SweepStats struct {
	Sequence     int64         `json:"sequence"`
	LastUpdated  int           `json:"last_updated"`
	LastDuration time.Duration `json:"-"`
	DurationMs   int64         `json:"last_duration_ms"`
	Running      bool          `json:"running"`
}

// New creates an Engine over the coordinator.
func New(coord *dualwrite.Coordinator, cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		coord:  coord,
		stopCh: make(chan struct{}),
	}
}

// Config returns the engine's decay configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start runs an initial sweep synchronously, then sweeps on a cooperative
// timer until Stop. A tick that arrives while a sweep is running is
// dropped, not queued.
func (e *Engine) Start() {
	if !e.cfg.Enabled {
		return
	}

	if updated, err := e.Sweep(); err != nil {
		log.Printf("decay: initial sweep: %v", err)
	} else if updated > 0 {
		log.Printf("decay: initial sweep updated %d records", updated)
	}

	go func() {
		ticker := time.NewTicker(e.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if updated, err := e.Sweep(); err != nil {
					log.Printf("decay: sweep: %v", err)
				} else if updated > 0 {
					log.Printf("decay: sweep updated %d records", updated)
				}
				// Drop a tick the ticker buffered while the sweep ran.
				select {
				case <-ticker.C:
				default:
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the sweep timer.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// Sweep recomputes effective importance for up to BatchSize rows per layer.
// A layer's failure is logged and the sweep continues on the remaining
// layers. Overlapping sweeps are refused.
func (e *Engine) Sweep() (int, error) {
	e.mu.Lock()
	if e.sweeping {
		e.mu.Unlock()
		return 0, nil
	}
	e.sweeping = true
	e.mu.Unlock()

	start := time.Now()
	now := unixSeconds()
	total := 0

	for _, layer := range store.Layers {
		n, err := e.sweepLayer(layer, now)
		if err != nil {
			log.Printf("sweep: layer %s: %v", layer, err)
			continue
		}
		total += n
	}

	duration := time.Since(start)

	e.mu.Lock()
	e.sweeping = false
	e.stats.Sequence++
	e.stats.LastUpdated = total
	e.stats.LastDuration = duration
	e.stats.DurationMs = duration.Milliseconds()
	e.mu.Unlock()

	return total, nil
}

func (e *Engine) sweepLayer(layer string, now float64) (int, error) {
	targets, err := e.coord.Decayable(layer, e.cfg.Immortal, e.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}

	stmts := make([]store.Stmt, 0, len(targets))
	for _, t := range targets {
		effective := e.cfg.Effective(t.Importance, t.LastAccessed, now)
		stmts = append(stmts, store.EffectiveStmt(t.ID, effective))
	}

	if err := e.coord.ExecBatch(layer, stmts); err != nil {
		return 0, err
	}
	return len(stmts), nil
}

// Touch refreshes last-accessed and bumps access counts for records a
// recall returned. Fire-and-forget: failures are logged, never surfaced.
func (e *Engine) Touch(layer string, ids []int64) {
	if len(ids) == 0 {
		return
	}

	now := unixSeconds()
	stmts := make([]store.Stmt, 0, len(ids))
	for _, id := range ids {
		stmts = append(stmts, store.TouchStmt(id, now))
	}

	if err := e.coord.ExecBatch(layer, stmts); err != nil {
		log.Printf("touch: layer %s: %v", layer, err)
	}
}

// Stats returns a copy of the sweep statistics.
func (e *Engine) Stats() SweepStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Running = e.sweeping
	return s
}

// Status is the decay-engine section of get_status responses.
type Status struct {
	Enabled              bool       `json:"enabled"`
	BaseRate             float64    `json:"base_rate"`
	Threshold            float64    `json:"threshold"`
	ImmortalThreshold    float64    `json:"immortal_threshold"`
	SweepIntervalMinutes float64    `json:"sweep_interval_minutes"`
	BatchSize            int        `json:"batch_size"`
	Sweep                SweepStats `json:"sweep"`
}

// Status reports the engine's configuration plus sweep counters.
func (e *Engine) Status() Status {
	return Status{
		Enabled:              e.cfg.Enabled,
		BaseRate:             e.cfg.Rate,
		Threshold:            e.cfg.Threshold,
		ImmortalThreshold:    e.cfg.Immortal,
		SweepIntervalMinutes: e.cfg.SweepInterval.Minutes(),
		BatchSize:            e.cfg.BatchSize,
		Sweep:                e.Stats(),
	}
}

func unixSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
