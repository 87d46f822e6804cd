package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(apiKeyEnv, "")

	cfg := Load("")

	if cfg.Processing.BatchSize != 10 || cfg.Processing.MaxRecords != 100 || cfg.Processing.LabelThreshold != 3 {
		t.Fatalf("unexpected processing defaults: %+v", cfg.Processing)
	}
	if cfg.Processing.ItemDelay != 150*time.Millisecond || cfg.Processing.BatchDelay != 800*time.Millisecond {
		t.Fatalf("unexpected delay defaults: %+v", cfg.Processing)
	}
	if got := strings.Join(cfg.ScopeNames(), ","); got != "inbox,archive,untagged" {
		t.Fatalf("unexpected scopes: %s", got)
	}
	if cfg.Oracle.BodyLimit != 1200 || cfg.Oracle.MaxTokens != 250 {
		t.Fatalf("unexpected oracle defaults: %+v", cfg.Oracle)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error without api key")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
processing:
  batchSize: 5
  itemDelay: 10ms
  batchDelay: 2s
oracle:
  apiKey: from-file
  model: file-model
sources:
  scopes:
    - name: inbox
audit:
  labels: [run-log]
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, "")
	t.Setenv(apiKeyEnv, "from-env")
	t.Setenv(modelEnv, "")

	cfg := Load(path)

	if cfg.Processing.BatchSize != 5 {
		t.Fatalf("expected batch size 5, got %d", cfg.Processing.BatchSize)
	}
	if cfg.Processing.MaxRecords != 100 {
		t.Fatalf("expected default max records to survive merge, got %d", cfg.Processing.MaxRecords)
	}
	if cfg.Processing.ItemDelay != 10*time.Millisecond || cfg.Processing.BatchDelay != 2*time.Second {
		t.Fatalf("unexpected delays: %+v", cfg.Processing)
	}
	if cfg.Oracle.APIKey != "from-env" {
		t.Fatalf("expected env api key to win, got %s", cfg.Oracle.APIKey)
	}
	if cfg.Oracle.Model != "file-model" {
		t.Fatalf("expected file model, got %s", cfg.Oracle.Model)
	}
	if len(cfg.Sources.Scopes) != 1 || cfg.Audit.Labels[0] != "run-log" {
		t.Fatalf("unexpected sources/audit: %+v %+v", cfg.Sources, cfg.Audit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadUnreadableFileFallsBack(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(apiKeyEnv, "")

	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Processing.BatchSize != 10 {
		t.Fatalf("expected defaults, got %+v", cfg.Processing)
	}
}
