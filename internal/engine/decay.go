package engine

import (
	"math"
	"time"
)

// Config binds the decay model's tunables.
type Config struct {
	Enabled       bool
	Rate          float64       // base decay rate per day
	Threshold     float64       // visibility threshold τ
	Immortal      float64       // immortal threshold μ
	SweepInterval time.Duration // time between sweep ticks
	BatchSize     int           // max rows updated per layer per sweep
}

// DefaultConfig returns the stock decay configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Rate:          0.01,
		Threshold:     0.1,
		Immortal:      0.9,
		SweepInterval: 60 * time.Minute,
		BatchSize:     1000,
	}
}

const secondsPerDay = 86400

// Effective computes a record's effective importance at time now (seconds
// since epoch). Records at or above the immortal threshold never decay.
// Importance itself shapes the decay constant: high-importance records
// fade slower.
func (c Config) Effective(importance, lastAccessed, now float64) float64 {
	if importance >= c.Immortal {
		return importance
	}
	days := (now - lastAccessed) / secondsPerDay
	if days < 0 {
		days = 0
	}
	k := c.Rate * (1 - importance)
	return importance * math.Exp(-k*days)
}

// Visible reports whether a record passes the default visibility filter:
// a NULL effective importance counts as undecayed until the next sweep.
func (c Config) Visible(effective *float64) bool {
	return effective == nil || *effective >= c.Threshold
}
