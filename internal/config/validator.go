package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - Required version
//   - Band ids that are empty or repeated, and bands without a name
//   - Negative timings and sizes
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	ids := make(map[string]int) // id → index
	for i, b := range cfg.Bands {
		if strings.TrimSpace(b.ID) == "" {
			errs = append(errs, fmt.Sprintf("bands[%d]: id is required", i))
			continue
		}
		if prev, ok := ids[b.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate band id %q (bands[%d] and bands[%d])", b.ID, prev, i))
		} else {
			ids[b.ID] = i
		}
		if strings.TrimSpace(b.Name) == "" {
			errs = append(errs, fmt.Sprintf("band %s: name is required", b.ID))
		}
	}

	nonNegative := []struct {
		name string
		v    int
	}{
		{"server.read_timeout_ms", cfg.Server.ReadTimeoutMs},
		{"server.write_timeout_ms", cfg.Server.WriteTimeoutMs},
		{"server.idle_timeout_ms", cfg.Server.IdleTimeoutMs},
		{"editor.debounce_ms", cfg.Editor.DebounceMs},
		{"editor.queue_depth", cfg.Editor.QueueDepth},
		{"editor.command_timeout_ms", cfg.Editor.CommandTimeoutMs},
		{"editor.max_trees", cfg.Editor.MaxTrees},
	}
	for _, f := range nonNegative {
		if f.v < 0 {
			errs = append(errs, fmt.Sprintf("%s must not be negative (got %d)", f.name, f.v))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
