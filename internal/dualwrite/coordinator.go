// Package dualwrite keeps a durable truth store and an optional volatile
// cache store coherent. Truth is written first and is authoritative; the
// cache exists for low-latency reads and may lag or be absent.
package dualwrite

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/lazypower/strata/internal/store"
)

// LayerStatus is the per-layer health value reported by get_status.
type LayerStatus string

const (
	StatusConnected LayerStatus = "connected"
	StatusMissing   LayerStatus = "missing"
	StatusError     LayerStatus = "error"
)

type handles struct {
	truth    *store.DB
	cache    *store.DB
	degraded bool
	lastErr  string
}

// Coordinator owns one truth handle per layer, plus a cache handle when a
// cache root is configured and usable.
type Coordinator struct {
	dataDir   string
	cacheDir  string
	withCache bool
	layers    map[string]*handles
}

// Open opens every layer under the durable root and, when cacheDir is
// non-empty and usable, mirrors each layer into the cache root. A missing
// cache file is seeded with a byte copy of the truth file before the cache
// handle is opened. Cache failures degrade that layer to truth-only; a
// truth failure is fatal.
func Open(dataDir, cacheDir string) (*Coordinator, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	withCache := false
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			log.Printf("cache: root %s unusable, running truth-only: %v", cacheDir, err)
		} else {
			withCache = true
		}
	}

	c := &Coordinator{
		dataDir:   dataDir,
		cacheDir:  cacheDir,
		withCache: withCache,
		layers:    make(map[string]*handles, len(store.Layers)),
	}

	for _, layer := range store.Layers {
		truthPath := filepath.Join(dataDir, store.FileName(layer))
		truth, err := store.Open(layer, truthPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("open truth store %s: %w", layer, err)
		}

		h := &handles{truth: truth}
		if withCache {
			h.cache = c.openCache(layer, truthPath)
			if h.cache == nil {
				h.degraded = true
			}
		}
		c.layers[layer] = h
	}

	return c, nil
}

// openCache seeds and opens the cache copy for one layer. Returns nil on
// any failure; the caller degrades to truth-only.
func (c *Coordinator) openCache(layer, truthPath string) *store.DB {
	cachePath := filepath.Join(c.cacheDir, store.FileName(layer))

	if _, err := os.Stat(cachePath); os.IsNotExist(err) {
		if _, err := os.Stat(truthPath); err == nil {
			if err := copyFile(truthPath, cachePath); err != nil {
				log.Printf("cache: seed %s: %v", layer, err)
				return nil
			}
		}
	}

	cache, err := store.Open(layer, cachePath)
	if err != nil {
		log.Printf("cache: open %s: %v", layer, err)
		return nil
	}
	return cache
}

// copyFile copies src to dst byte-for-byte and syncs the result.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return out.Sync()
}

// DualWrite reports whether the cache path is active.
func (c *Coordinator) DualWrite() bool {
	return c.withCache
}

// DataDir returns the durable root.
func (c *Coordinator) DataDir() string { return c.dataDir }

// CacheDir returns the cache root, empty when disabled.
func (c *Coordinator) CacheDir() string { return c.cacheDir }

// LayerPath returns the truth file path for a layer.
func (c *Coordinator) LayerPath(layer string) string {
	return filepath.Join(c.dataDir, store.FileName(layer))
}

func (c *Coordinator) handlesFor(layer string) (*handles, error) {
	h, ok := c.layers[layer]
	if !ok {
		return nil, fmt.Errorf("unknown layer %q", layer)
	}
	return h, nil
}

// Save writes a record truth-first, then mirrors it into the cache under
// the truth-assigned id. A truth failure fails the operation; a cache
// failure is logged and the save still succeeds. The second return value
// reports whether both copies were written.
func (c *Coordinator) Save(layer string, rec *store.Record) (int64, bool, error) {
	h, err := c.handlesFor(layer)
	if err != nil {
		return 0, false, err
	}

	id, err := h.truth.Insert(rec)
	if err != nil {
		return 0, false, fmt.Errorf("truth write %s: %w", layer, err)
	}

	mirrored := false
	if h.cache != nil {
		if err := h.cache.InsertAt(id, rec); err != nil {
			log.Printf("cache: write %s id=%d: %v", layer, id, err)
			h.degraded = true
			h.lastErr = err.Error()
		} else {
			mirrored = true
		}
	}

	return id, mirrored, nil
}

// ExecBatch applies an ordered statement batch truth-first, then to the
// cache. Ordering within a target is preserved; the batch is not atomic
// across targets. Cache failures are logged, never propagated.
func (c *Coordinator) ExecBatch(layer string, stmts []store.Stmt) error {
	h, err := c.handlesFor(layer)
	if err != nil {
		return err
	}

	if _, err := h.truth.ExecBatch(stmts); err != nil {
		return fmt.Errorf("truth batch %s: %w", layer, err)
	}

	if h.cache != nil {
		if _, err := h.cache.ExecBatch(stmts); err != nil {
			log.Printf("cache: batch %s: %v", layer, err)
			h.degraded = true
			h.lastErr = err.Error()
		}
	}

	return nil
}

// Scan runs a compiled query against the preferred read path: the cache
// when present, degrading to the truth store if the cache read fails.
func (c *Coordinator) Scan(layer string, q store.Query) ([]store.Record, error) {
	h, err := c.handlesFor(layer)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		records, err := h.cache.Scan(q)
		if err == nil {
			return records, nil
		}
		log.Printf("cache: read %s degraded to truth: %v", layer, err)
		h.degraded = true
		h.lastErr = err.Error()
	}

	return h.truth.Scan(q)
}

// Decayable reads the sweep candidates for a layer from the truth store.
// The sweep must see the authoritative copy so a lagging cache cannot hide
// rows from decay.
func (c *Coordinator) Decayable(layer string, immortal float64, limit int) ([]store.DecayRow, error) {
	h, err := c.handlesFor(layer)
	if err != nil {
		return nil, err
	}
	return h.truth.Decayable(immortal, limit)
}

// Count returns the layer's record count via the read path.
func (c *Coordinator) Count(layer string) (int, error) {
	h, err := c.handlesFor(layer)
	if err != nil {
		return 0, err
	}
	if h.cache != nil {
		if n, err := h.cache.Count(); err == nil {
			return n, nil
		}
	}
	return h.truth.Count()
}

// Stats returns the layer's aggregate view from the truth store.
func (c *Coordinator) Stats(layer string, immortal, threshold float64) (store.LayerStats, error) {
	h, err := c.handlesFor(layer)
	if err != nil {
		return store.LayerStats{}, err
	}
	return h.truth.Stats(immortal, threshold)
}

// Close closes every handle. Safe to call on a partially opened Coordinator.
func (c *Coordinator) Close() error {
	var firstErr error
	for _, h := range c.layers {
		if h.truth != nil {
			if err := h.truth.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if h.cache != nil {
			if err := h.cache.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
