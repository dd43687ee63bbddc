package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.MaxCallDepth <= 0 {
		t.Fatalf("expected a positive default max call depth, got %d", cfg.MaxCallDepth)
	}
	if cfg.SnapshotCeilingBytes == 0 {
		t.Fatalf("expected a nonzero default snapshot ceiling")
	}
}

func TestLoadOverridesSubsetOfFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crustty.yaml")
	contents := "max_call_depth: 50\nverbose: true\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxCallDepth != 50 {
		t.Fatalf("expected max_call_depth=50, got %d", cfg.MaxCallDepth)
	}
	if !cfg.Verbose {
		t.Fatalf("expected verbose=true")
	}
	if cfg.SnapshotCeilingBytes != Default().SnapshotCeilingBytes {
		t.Fatalf("expected unset fields to retain their default, got %d", cfg.SnapshotCeilingBytes)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected an error loading a missing config file")
	}
}
