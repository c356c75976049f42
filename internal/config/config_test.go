package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	t.Run("Site defaults", func(t *testing.T) {
		if config.Site.Name != "Scribe" {
			t.Errorf("Expected site name 'Scribe', got %q", config.Site.Name)
		}
	})

	t.Run("Server defaults", func(t *testing.T) {
		if config.Server.Host != "0.0.0.0" {
			t.Errorf("Expected host '0.0.0.0', got %q", config.Server.Host)
		}
		if config.Server.Port != "8000" {
			t.Errorf("Expected port '8000', got %q", config.Server.Port)
		}
	})

	t.Run("GitHub defaults", func(t *testing.T) {
		if config.GitHub.Branch != "main" {
			t.Errorf("Expected branch 'main', got %q", config.GitHub.Branch)
		}
		if config.GitHub.ContentPath != "src/content/blog" {
			t.Errorf("Expected content path 'src/content/blog', got %q", config.GitHub.ContentPath)
		}
	})

	t.Run("Autosave defaults", func(t *testing.T) {
		if config.Editor.Autosave.DirtyCheckIntervalSeconds != 1 {
			t.Errorf("Expected dirty check interval 1, got %d", config.Editor.Autosave.DirtyCheckIntervalSeconds)
		}
		if config.Editor.Autosave.PersistIntervalSeconds != 5 {
			t.Errorf("Expected persist interval 5, got %d", config.Editor.Autosave.PersistIntervalSeconds)
		}
	})

	t.Run("Draft store defaults", func(t *testing.T) {
		if config.Editor.Drafts.Store != "sqlite" {
			t.Errorf("Expected sqlite draft store, got %q", config.Editor.Drafts.Store)
		}
		if config.Editor.Drafts.Dir != "./drafts" {
			t.Errorf("Expected drafts dir './drafts', got %q", config.Editor.Drafts.Dir)
		}
		if config.Editor.Drafts.Compression != "zstd" {
			t.Errorf("Expected zstd draft compression, got %q", config.Editor.Drafts.Compression)
		}
	})

	t.Run("Auth defaults", func(t *testing.T) {
		if config.Auth.SessionTTLHours != 168 {
			t.Errorf("Expected session TTL 168 hours, got %d", config.Auth.SessionTTLHours)
		}
		if config.Auth.SecureCookies {
			t.Error("Expected secure cookies off by default")
		}
	})

	t.Run("Image defaults", func(t *testing.T) {
		if config.Images.MaxUploadSizeMB != 5 {
			t.Errorf("Expected 5MB upload limit, got %d", config.Images.MaxUploadSizeMB)
		}
		if config.Images.MaxDimension != 1920 {
			t.Errorf("Expected max dimension 1920, got %d", config.Images.MaxDimension)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("Missing file uses defaults", func(t *testing.T) {
		if err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
			t.Fatalf("Expected defaults for a missing file, got %v", err)
		}
		if AppConfig.Server.Port != "8000" {
			t.Errorf("Expected default port, got %q", AppConfig.Server.Port)
		}
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  port: "9999"
editor:
  autosave:
    persist_interval_seconds: 30
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		if err := LoadConfig(path); err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if AppConfig.Server.Port != "9999" {
			t.Errorf("Expected port override, got %q", AppConfig.Server.Port)
		}
		if AppConfig.Editor.Autosave.PersistIntervalSeconds != 30 {
			t.Errorf("Expected persist interval override, got %d", AppConfig.Editor.Autosave.PersistIntervalSeconds)
		}
		// Untouched keys keep their defaults.
		if AppConfig.Editor.Autosave.DirtyCheckIntervalSeconds != 1 {
			t.Errorf("Expected default dirty check interval, got %d", AppConfig.Editor.Autosave.DirtyCheckIntervalSeconds)
		}
	})

	t.Run("Unreadable path is an error, not silent defaults", func(t *testing.T) {
		// A directory fails ReadFile with something other than not-exist.
		if err := LoadConfig(t.TempDir()); err == nil {
			t.Error("Expected an error for an unreadable config path")
		}
	})

	t.Run("Invalid YAML is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server: [broken"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := LoadConfig(path); err == nil {
			t.Error("Expected an error for invalid YAML")
		}
	})
}
