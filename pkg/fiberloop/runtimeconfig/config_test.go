package runtimeconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.WarnOnImproperCancellation {
		t.Error("expected WarnOnImproperCancellation to default true")
	}
	if cfg.DefaultAggregationMode != "auto" {
		t.Errorf("got %q, want %q", cfg.DefaultAggregationMode, "auto")
	}
	if cfg.CycleCheckEvery != 1 {
		t.Errorf("got %d, want 1", cfg.CycleCheckEvery)
	}
	if cfg.ThreadBridgeDrainTimeout != 2*time.Second {
		t.Errorf("got %s, want 2s", cfg.ThreadBridgeDrainTimeout)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	const body = "defaultAggregationMode: group\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultAggregationMode != "group" {
		t.Errorf("got %q, want %q", cfg.DefaultAggregationMode, "group")
	}
	if !cfg.WarnOnImproperCancellation {
		t.Error("expected untouched field to keep its default")
	}
	if cfg.ThreadBridgeDrainTimeout != 2*time.Second {
		t.Errorf("got %s, want untouched default of 2s", cfg.ThreadBridgeDrainTimeout)
	}
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("not: [valid"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error parsing malformed YAML")
	}
}
