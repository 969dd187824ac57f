// Package runtimeconfig carries the ambient tuning knobs for a fiberloop
// Loop -- the kind of concern the core scheduler itself has no opinion
// about, but that every real deployment wants to adjust without
// recompiling. Shape is grounded on cmd/vango/internal/config/config.go's
// Load/DefaultConfig pair, re-based from JSON onto YAML (gopkg.in/yaml.v3
// is a direct dependency the teacher declares but never actually
// imports; this package is its first real consumer).
package runtimeconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable knobs a Loop and its ThreadBridges consult
// while they run, so a change to a Config already handed to a Loop takes
// effect on the next read.
type Config struct {
	// WarnOnImproperCancellation toggles the warnings shutdown emits
	// when a fiber swallows or mishandles a delivered CancelledError.
	// Disabling it does not change behavior, only log volume.
	WarnOnImproperCancellation bool `yaml:"warnOnImproperCancellation"`

	// DefaultAggregationMode names an AggregationMode for callers to pass
	// to Run: "auto", "single", or "group" (parsed by
	// fiberloop.DefaultAggregationMode). Run always takes its mode as an
	// argument; the Loop itself does not read this field.
	DefaultAggregationMode string `yaml:"defaultAggregationMode"`

	// CycleCheckEvery sets how many consecutive quiescent polls (ready
	// queue empty, fibers still waiting) pass before the loop runs its
	// cycle-detection DFS again. 1 checks on every quiescence, the
	// safest and the default; raising it trades slower cycle detection
	// for less DFS overhead in loops that quiesce often while waiting on
	// slow ThreadBridge work. Values below 1 are treated as 1.
	CycleCheckEvery int `yaml:"cycleCheckEvery"`

	// ThreadBridgeDrainTimeout bounds how long a ThreadBridge waits,
	// after cancelling a worker, before warning that the worker did not
	// respond properly. Zero disables the warning entirely.
	ThreadBridgeDrainTimeout time.Duration `yaml:"threadBridgeDrainTimeout"`
}

// DefaultConfig returns the configuration a Loop uses when none is
// supplied explicitly.
func DefaultConfig() *Config {
	return &Config{
		WarnOnImproperCancellation: true,
		DefaultAggregationMode:     "auto",
		CycleCheckEvery:            1,
		ThreadBridgeDrainTimeout:   2 * time.Second,
	}
}

// Load reads a YAML tuning file from path, falling back to
// DefaultConfig's values for any field the file omits. A missing file is
// not an error: it returns DefaultConfig() unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("runtimeconfig: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("runtimeconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}
