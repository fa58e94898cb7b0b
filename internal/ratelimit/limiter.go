// Package ratelimit admits requests through two sliding windows: one
// global, one per operation.
package ratelimit

import (
	"sync"
	"time"
)

// Config sizes the windows.
type Config struct {
	Window    time.Duration
	GlobalCap int
	OpCaps    map[string]int
	DefaultOp int
}

// DefaultConfig returns the stock admission limits.
func DefaultConfig() Config {
	return Config{
		Window:    time.Minute,
		GlobalCap: 300,
		OpCaps: map[string]int{
			"remember":      60,
			"save_to_layer": 60,
			"recall":        120,
			"query_layer":   100,
			"get_status":    30,
			"get_stats":     30,
		},
		DefaultOp: 60,
	}
}

// Result is the admission verdict.
type Result struct {
	Allowed      bool
	RetryAfterMs int64
}

// Limiter tracks request timestamps per operation plus a global list.
// All mutation happens under one mutex; the cleanup ticker only bounds
// memory, admission itself prunes on every call.
type Limiter struct {
	cfg    Config
	mu     sync.Mutex
	global []time.Time
	perOp  map[string][]time.Time
	stopCh chan struct{}
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:    cfg,
		perOp:  make(map[string][]time.Time),
		stopCh: make(chan struct{}),
	}
}

// Start launches the periodic cleanup task.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup(time.Now())
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop halts the cleanup task.
func (l *Limiter) Stop() {
	close(l.stopCh)
}

// Admit records an attempt at op and decides admission. Denials carry a
// retry-after hint of at least one second.
func (l *Limiter) Admit(op string) Result {
	return l.admitAt(op, time.Now())
}

func (l *Limiter) admitAt(op string, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.cfg.Window)
	l.global = prune(l.global, cutoff)
	l.perOp[op] = prune(l.perOp[op], cutoff)

	opCap := l.cfg.OpCaps[op]
	if opCap == 0 {
		opCap = l.cfg.DefaultOp
	}

	if len(l.global) >= l.cfg.GlobalCap {
		return deny(l.global[0], l.cfg.Window, now)
	}
	if len(l.perOp[op]) >= opCap {
		return deny(l.perOp[op][0], l.cfg.Window, now)
	}

	l.global = append(l.global, now)
	l.perOp[op] = append(l.perOp[op], now)
	return Result{Allowed: true}
}

func deny(oldest time.Time, window time.Duration, now time.Time) Result {
	retry := oldest.Add(window).Sub(now).Milliseconds()
	if retry < 1000 {
		retry = 1000
	}
	return Result{Allowed: false, RetryAfterMs: retry}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// cleanup drops expired timestamps and empty operation lists.
func (l *Limiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.cfg.Window)
	l.global = prune(l.global, cutoff)
	for op, ts := range l.perOp {
		ts = prune(ts, cutoff)
		if len(ts) == 0 {
			delete(l.perOp, op)
		} else {
			l.perOp[op] = ts
		}
	}
}
