package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(body), 0600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: file:test.db
jwt:
  secret: sekrit
`)
	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.JWT.Expiry != 24*time.Hour {
		t.Fatalf("expiry = %s, want 24h", cfg.JWT.Expiry)
	}
	if cfg.JWT.AdminExpiry != cfg.JWT.Expiry {
		t.Fatalf("admin expiry must default to expiry")
	}
	if cfg.Log.Level != "info" || cfg.Log.MaxSizeMB != 100 {
		t.Fatalf("log defaults not applied: %+v", cfg.Log)
	}
}

func TestLoadRejectsMissingDSN(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: sekrit
`)
	if _, errLoad := Load(path); errLoad == nil {
		t.Fatal("expected error for missing dsn")
	}
}

func TestEnvOverridesDSN(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: file:from-file.db
jwt:
  secret: sekrit
`)
	t.Setenv("DATABASE_DSN", "file:from-env.db")
	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Database.DSN != "file:from-env.db" {
		t.Fatalf("dsn = %q, want env override", cfg.Database.DSN)
	}
}

func TestLoadDatabaseDSN(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: file:ops.db
jwt:
  secret: sekrit
`)
	dsn, errLoad := LoadDatabaseDSN(path)
	if errLoad != nil {
		t.Fatalf("load dsn: %v", errLoad)
	}
	if dsn != "file:ops.db" {
		t.Fatalf("dsn = %q, want file:ops.db", dsn)
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath(" custom.yaml "); got != "custom.yaml" {
		t.Fatalf("explicit path = %q", got)
	}
	t.Setenv("FLASH_INVITE_CONFIG", "/etc/flash/config.yaml")
	if got := ResolveConfigPath(""); got != "/etc/flash/config.yaml" {
		t.Fatalf("env path = %q", got)
	}
	t.Setenv("FLASH_INVITE_CONFIG", "")
	if got := ResolveConfigPath(""); got != DefaultConfigFile {
		t.Fatalf("default path = %q", got)
	}
}
