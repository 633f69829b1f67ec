package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validJSON = `{
  "discord": {
    "token": "tok",
    "mod_role_id": "1",
    "verified_role_id": "2",
    "unverified_role_id": "3"
  },
  "logging": {"level": "INFO", "console": true},
  "storage": {"driver": "sqlite", "path": "./data/verifications.db"},
  "audit": {"enabled": true}
}`

func TestLoadJSON(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json", validJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discord.VerifiedRoleID != "2" {
		t.Fatalf("unexpected config: %+v", cfg.Discord)
	}
	if m.Get() != cfg {
		t.Fatal("Load must commit the config")
	}
}

func TestLoadYAML(t *testing.T) {
	yaml := `
discord:
  token: tok
  mod_role_id: "1"
  verified_role_id: "2"
  unverified_role_id: "3"
logging:
  console: true
storage:
  path: ./data/verifications.db
audit:
  enabled: true
summary:
  schedule: "@every 6h"
`
	m := NewManager(writeConfig(t, "config.yaml", yaml))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Summary.Schedule != "@every 6h" {
		t.Fatalf("unexpected summary config: %+v", cfg.Summary)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	bad := strings.Replace(validJSON, `"audit"`, `"audits"`, 1)
	m := NewManager(writeConfig(t, "config.json", bad))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestValidateRequiresRoles(t *testing.T) {
	bad := strings.Replace(validJSON, `"verified_role_id": "2",`, `"verified_role_id": "",`, 1)
	m := NewManager(writeConfig(t, "config.json", bad))
	_, err := m.Load()
	if err == nil || !strings.Contains(err.Error(), "verified_role_id") {
		t.Fatalf("expected verified_role_id error, got %v", err)
	}
}

func TestTokenEnvFallback(t *testing.T) {
	noToken := strings.Replace(validJSON, `"token": "tok",`, ``, 1)
	m := NewManager(writeConfig(t, "config.json", noToken))

	t.Setenv("DISCORD_TOKEN", "")
	if _, err := m.Load(); err == nil {
		t.Fatal("expected missing token error")
	}

	t.Setenv("DISCORD_TOKEN", "env-tok")
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load with env token: %v", err)
	}
	if cfg.EffectiveToken() != "env-tok" {
		t.Fatalf("effective token = %q", cfg.EffectiveToken())
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty duration: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "5 parsecs"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected negative duration rejection")
	}
}
