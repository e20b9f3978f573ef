package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const validConfig = `
auth:
  jwt_secret: "test-secret-that-is-at-least-32-chars!"
email:
  smtp:
    host: smtp.example.com
    port: 587
    from: noreply@example.com
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Fatalf("port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Auth.AccessTokenTTL != 24*time.Hour {
		t.Fatalf("access TTL = %v, want 24h", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("refresh TTL = %v, want 720h", cfg.Auth.RefreshTokenTTL)
	}
	if cfg.Auth.TrialDays != 7 {
		t.Fatalf("trial days = %d, want 7", cfg.Auth.TrialDays)
	}
	if cfg.Auth.AdminDomain != "tusome.ke" {
		t.Fatalf("admin domain = %q, want tusome.ke", cfg.Auth.AdminDomain)
	}
	if cfg.Addr() != "0.0.0.0:4000" {
		t.Fatalf("Addr() = %q, want 0.0.0.0:4000", cfg.Addr())
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	content := `
email:
  smtp:
    host: smtp.example.com
    port: 587
    from: noreply@example.com
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() accepted a config without jwt_secret")
	}
	if !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("error = %v, want mention of jwt_secret", err)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	content := strings.Replace(validConfig, "test-secret-that-is-at-least-32-chars!", "too-short", 1)
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() accepted a secret shorter than 32 characters")
	}
}

func TestLoadEnvOverridesSecret(t *testing.T) {
	t.Setenv("TUSOME_JWT_SECRET", "env-provided-secret-with-32-chars-ok!")

	content := strings.Replace(validConfig, "test-secret-that-is-at-least-32-chars!", "ignored", 1)
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "env-provided-secret-with-32-chars-ok!" {
		t.Fatalf("jwt secret = %q, want env override", cfg.Auth.JWTSecret)
	}
}

func TestLoadParsesExplicitValues(t *testing.T) {
	content := `
server:
  host: 127.0.0.1
  port: 8080
auth:
  jwt_secret: "test-secret-that-is-at-least-32-chars!"
  access_token_ttl: 15m
  trial_days: 14
email:
  smtp:
    host: smtp.example.com
    port: 587
    from: noreply@example.com
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("access TTL = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.TrialDays != 14 {
		t.Fatalf("trial days = %d, want 14", cfg.Auth.TrialDays)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Fatalf("Addr() = %q", cfg.Addr())
	}
}
