package dualwrite

import (
	"os"
)

// LayerHealth is the per-layer slice of a health report.
type LayerHealth struct {
	Status LayerStatus `json:"status"`
	Count  int         `json:"count"`
	Path   string      `json:"path,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Health is the coordinator's full health report.
type Health struct {
	Overall   string                 `json:"overall"` // "healthy" or "degraded"
	DualWrite bool                   `json:"dual_write"`
	DataDir   string                 `json:"data_dir"`
	CacheDir  string                 `json:"cache_dir,omitempty"`
	Layers    map[string]LayerHealth `json:"layers"`
}

// Health probes every layer and reports per-layer status plus the overall
// healthy/degraded verdict. A layer whose truth file has gone missing is
// "missing"; a layer whose handle fails to answer is "error". Other layers
// keep serving regardless.
func (c *Coordinator) Health() Health {
	report := Health{
		Overall:   "healthy",
		DualWrite: c.withCache,
		DataDir:   c.dataDir,
		CacheDir:  c.cacheDir,
		Layers:    make(map[string]LayerHealth, len(c.layers)),
	}

	for layer, h := range c.layers {
		lh := LayerHealth{Status: StatusConnected, Path: c.LayerPath(layer)}

		if _, err := os.Stat(lh.Path); os.IsNotExist(err) {
			lh.Status = StatusMissing
			lh.Error = "truth file missing"
		} else if n, err := h.truth.Count(); err != nil {
			lh.Status = StatusError
			lh.Error = err.Error()
		} else {
			lh.Count = n
		}

		if lh.Status != StatusConnected || h.degraded {
			report.Overall = "degraded"
		}
		if lh.Error == "" && h.degraded {
			lh.Error = h.lastErr
		}

		report.Layers[layer] = lh
	}

	return report
}
