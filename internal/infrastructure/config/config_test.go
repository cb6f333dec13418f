package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.ShowNotifications || cfg.MaxTransactions != 1000 || len(cfg.RedactHeaders) != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestValidateRejectsNonPositiveMax(t *testing.T) {
	for _, n := range []int{0, -5} {
		cfg := Default()
		cfg.MaxTransactions = n
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidMaxTransactions) {
			t.Fatalf("max=%d: err=%v", n, err)
		}
	}
	cfg := Default()
	cfg.MaxBodyBytes = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidMaxBodyBytes) {
		t.Fatalf("maxBody: err=%v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("INSPECTOR_MAX_TRANSACTIONS", "42")
	t.Setenv("INSPECTOR_SHOW_NOTIFICATIONS", "false")
	t.Setenv("INSPECTOR_REDACT_HEADERS", "X-Api-Key, Authorization")
	t.Setenv("INSPECTOR_ALLOW_HOSTS", "api.example.com,.internal")

	cfg := applyEnv(Default())
	if cfg.MaxTransactions != 42 || cfg.ShowNotifications {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if len(cfg.RedactHeaders) != 2 || cfg.RedactHeaders[0] != "X-Api-Key" {
		t.Fatalf("redact headers: %v", cfg.RedactHeaders)
	}
	if len(cfg.AllowHosts) != 2 {
		t.Fatalf("allow hosts: %v", cfg.AllowHosts)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "inspector.yaml")
	doc := "maxTransactions: 3\nnotificationTitle: Debug\nredactHeaders: [X-Token]\n"
	if err := os.WriteFile(p, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(p, Default())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxTransactions != 3 || cfg.NotificationTitle != "Debug" {
		t.Fatalf("unexpected: %+v", cfg)
	}
	if len(cfg.RedactHeaders) != 1 || cfg.RedactHeaders[0] != "X-Token" {
		t.Fatalf("redact: %v", cfg.RedactHeaders)
	}
	if !cfg.ShowNotifications {
		t.Fatalf("absent key lost its default")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), Default()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
