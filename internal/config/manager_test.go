package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	m := NewManagerAt(t.TempDir())
	if m.Exists() {
		t.Fatal("fresh dir should have no config")
	}

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataDir == "" {
		t.Error("default data dir not filled")
	}
	if cfg.GapThreshold != DefaultGapThreshold {
		t.Errorf("GapThreshold = %d, want %d", cfg.GapThreshold, DefaultGapThreshold)
	}
	if len(cfg.LaughKeywords) == 0 {
		t.Error("default laugh keywords not filled")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManagerAt(t.TempDir())

	saved := &Config{
		DataDir:      "/tmp/chatlens-test",
		GapThreshold: 900,
		LLMProvider:  "anthropic",
		Model:        "some-model",
	}
	if err := m.Save(saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !m.Exists() {
		t.Fatal("config file not written")
	}

	info, err := os.Stat(m.GetConfigPath())
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config perms = %v, want 0600", info.Mode().Perm())
	}

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataDir != saved.DataDir || cfg.GapThreshold != 900 || cfg.LLMProvider != "anthropic" {
		t.Errorf("round trip mismatch: %+v", cfg)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerAt(dir)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := m.Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	m := NewManagerAt(t.TempDir())
	t.Setenv("CHATLENS_DATA_DIR", "/env/data")
	t.Setenv("CHATLENS_GAP_THRESHOLD", "600")
	t.Setenv("LLM_PROVIDER", "openai")

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataDir != "/env/data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.GapThreshold != 600 {
		t.Errorf("GapThreshold = %d", cfg.GapThreshold)
	}
	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %q", cfg.LLMProvider)
	}
}

func TestEnvIgnoresInvalidThreshold(t *testing.T) {
	m := NewManagerAt(t.TempDir())
	t.Setenv("CHATLENS_GAP_THRESHOLD", "not-a-number")

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GapThreshold != DefaultGapThreshold {
		t.Errorf("GapThreshold = %d, want default", cfg.GapThreshold)
	}
}
