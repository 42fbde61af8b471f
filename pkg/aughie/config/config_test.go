package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseOverlaysDefaults(t *testing.T) {
	yaml := []byte(`
name: TestBot
security:
  rbac_enabled: false
storage:
  type: memory
`)
	cfg, err := Parse(yaml)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.Name != "TestBot" {
		t.Errorf("name: %q", cfg.Name)
	}
	if cfg.Security.RBACEnabled {
		t.Error("rbac should be disabled")
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage type: %q", cfg.Storage.Type)
	}
	// Untouched fields keep their defaults.
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("model default lost: %q", cfg.Model)
	}
	if cfg.Storage.CheckpointSchedule != "@every 30s" {
		t.Errorf("checkpoint schedule default lost: %q", cfg.Storage.CheckpointSchedule)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("{not yaml")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromFileExpandsEnv(t *testing.T) {
	t.Setenv("AUGHIE_TEST_TOKEN", "tok-123")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
name: EnvBot
tools:
  github:
    token: ${AUGHIE_TEST_TOKEN}
  jira:
    base_url: ${AUGHIE_MISSING_VAR:-https://example.atlassian.net}
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tools.GitHub.Token != "tok-123" {
		t.Errorf("env var not expanded: %q", cfg.Tools.GitHub.Token)
	}
	if !cfg.Tools.GitHub.Enabled {
		t.Error("service with token should be enabled")
	}
	if cfg.Tools.Jira.BaseURL != "https://example.atlassian.net" {
		t.Errorf("default not applied: %q", cfg.Tools.Jira.BaseURL)
	}
}

func TestResolveSecretsFromEnv(t *testing.T) {
	t.Setenv("JIRA_API_EMAIL", "bot@example.com")
	t.Setenv("JIRA_API_TOKEN", "jira-tok")

	cfg := DefaultConfig()
	resolveSecrets(cfg)

	if cfg.FallbackEmail != "bot@example.com" {
		t.Errorf("fallback email: %q", cfg.FallbackEmail)
	}
	if cfg.Tools.Jira.Token != "jira-tok" || !cfg.Tools.Jira.Enabled {
		t.Errorf("jira service: %+v", cfg.Tools.Jira)
	}
}
