package engine

import (
	"flag"
	"testing"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	t.Setenv("SAGA_ENGINE_PORT", "9199")
	t.Setenv("SAGA_ENGINE_DB_PATH", "tmp/engine.db")

	cfg, err := ParseConfig(fs, []string{"-content-dir", "packs", "-sweep-schedule", "@every 30s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9199 {
		t.Fatalf("port = %d, want 9199", cfg.Port)
	}
	if cfg.DBPath != "tmp/engine.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "tmp/engine.db")
	}
	if cfg.ContentDir != "packs" {
		t.Fatalf("content dir = %q, want %q", cfg.ContentDir, "packs")
	}
	if cfg.SweepSchedule != "@every 30s" {
		t.Fatalf("sweep schedule = %q, want %q", cfg.SweepSchedule, "@every 30s")
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("engine", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8095 {
		t.Fatalf("port = %d, want 8095", cfg.Port)
	}
	if cfg.MetricsPort != 9095 {
		t.Fatalf("metrics port = %d, want 9095", cfg.MetricsPort)
	}
	if cfg.DBPath != "data/engine.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "data/engine.db")
	}
	if cfg.SweepSchedule != "@every 1m" {
		t.Fatalf("sweep schedule = %q, want %q", cfg.SweepSchedule, "@every 1m")
	}
}
