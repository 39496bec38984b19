package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swhunter.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Database.Path != "swhunter.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Archive.Enabled || cfg.NATS.Enabled {
		t.Error("side channels should default to disabled")
	}
	if err := validate(cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[database]
path = "/tmp/schedules.db"

[nats]
enabled = true
url = "nats://example:4222"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/schedules.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if !cfg.NATS.Enabled || cfg.NATS.URL != "nats://example:4222" {
		t.Errorf("nats config = %+v", cfg.NATS)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Bind != "127.0.0.1:8080" {
		t.Errorf("server bind = %q", cfg.Server.Bind)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty database path", "[database]\npath = \"\"\n"},
		{"archive without host", "[archive]\nenabled = true\nhost = \"\"\n"},
		{"bad archive port", "[archive]\nenabled = true\nport = 70000\n"},
		{"nats without url", "[nats]\nenabled = true\nurl = \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
