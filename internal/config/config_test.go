package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Names) == 0 {
		t.Error("expected source names to be populated")
	}

	if cfg.Labelling.ConsensusThreshold != 0.75 {
		t.Errorf("expected consensus threshold 0.75, got %v", cfg.Labelling.ConsensusThreshold)
	}

	if cfg.Labelling.CountThreshold != 4 {
		t.Errorf("expected count threshold 4, got %d", cfg.Labelling.CountThreshold)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
labelling:
  count_threshold: 2
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Labelling.CountThreshold != 2 {
		t.Errorf("expected count threshold 2, got %d", cfg.Labelling.CountThreshold)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Labelling.ConsensusThreshold != 0.75 {
		t.Errorf("expected default consensus threshold, got %v", cfg.Labelling.ConsensusThreshold)
	}
	if cfg.Labelling.ArticleLoads != 10 {
		t.Errorf("expected default article loads, got %d", cfg.Labelling.ArticleLoads)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.Names) == 0 {
		t.Error("expected source names to be populated from file")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}

func TestAdminKey(t *testing.T) {
	cfg := &Config{Server: Server{AdminKeyEnv: "QUOTELAB_TEST_ADMIN_KEY"}}
	t.Setenv("QUOTELAB_TEST_ADMIN_KEY", "sesame")
	if cfg.AdminKey() != "sesame" {
		t.Errorf("expected admin key from environment, got %q", cfg.AdminKey())
	}

	cfg.Server.AdminKeyEnv = ""
	if cfg.AdminKey() != "" {
		t.Error("expected empty admin key without a configured variable")
	}
}
