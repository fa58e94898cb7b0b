// Package config binds strata's environment surface. All knobs are
// STRATA_-prefixed environment variables with defaults matching the
// stock decay model.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all strata configuration.
type Config struct {
	DataDir  string // durable root; empty means ~/.strata
	CacheDir string // volatile cache root; empty disables dual-write
	HTTPAddr string // optional health/status probe listener
	Debug    bool   // include sanitized debug fields in error responses
	AuditLog string // optional JSONL audit path

	Decay DecayConfig
}

// DecayConfig mirrors the decay engine's tunables.
type DecayConfig struct {
	Enabled      bool
	Rate         float64
	Threshold    float64
	Immortal     float64
	SweepMinutes int
	BatchSize    int
}

// SweepInterval returns the sweep cadence as a duration.
func (d DecayConfig) SweepInterval() time.Duration {
	return time.Duration(d.SweepMinutes) * time.Minute
}

// Load reads configuration from the environment.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("STRATA")
	v.AutomaticEnv()

	v.SetDefault("data_dir", "")
	v.SetDefault("cache_dir", "")
	v.SetDefault("http_addr", "")
	v.SetDefault("debug", false)
	v.SetDefault("audit_log", "")

	v.SetDefault("decay_enabled", true)
	v.SetDefault("decay_rate", 0.01)
	v.SetDefault("decay_threshold", 0.1)
	v.SetDefault("decay_immortal", 0.9)
	v.SetDefault("decay_sweep_minutes", 60)
	v.SetDefault("decay_batch", 1000)

	return Config{
		DataDir:  v.GetString("data_dir"),
		CacheDir: v.GetString("cache_dir"),
		HTTPAddr: v.GetString("http_addr"),
		Debug:    v.GetBool("debug"),
		AuditLog: v.GetString("audit_log"),
		Decay: DecayConfig{
			Enabled:      v.GetBool("decay_enabled"),
			Rate:         v.GetFloat64("decay_rate"),
			Threshold:    v.GetFloat64("decay_threshold"),
			Immortal:     v.GetFloat64("decay_immortal"),
			SweepMinutes: v.GetInt("decay_sweep_minutes"),
			BatchSize:    v.GetInt("decay_batch"),
		},
	}
}
