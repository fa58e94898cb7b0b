package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/strata/internal/config"
	"github.com/lazypower/strata/internal/dualwrite"
	"github.com/lazypower/strata/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-layer memory statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	dataDir := cfg.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = store.DefaultDataDir()
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
	}

	coord, err := dualwrite.Open(dataDir, "")
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer coord.Close()

	layers := make(map[string]store.LayerStats, len(store.Layers))
	for _, layer := range store.Layers {
		s, err := coord.Stats(layer, cfg.Decay.Immortal, cfg.Decay.Threshold)
		if err != nil {
			return fmt.Errorf("stats %s: %w", layer, err)
		}
		layers[layer] = s
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"data_dir": dataDir,
		"layers":   layers,
	})
}
