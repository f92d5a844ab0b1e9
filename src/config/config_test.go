package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("HOTKEY", "Ctrl+Shift+T")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("REQUEST_TIMEOUT_SEC", "12")
	t.Setenv("HISTORY_ENABLED", "false")
	t.Setenv("GEMINI_BASE_URL", "http://127.0.0.1:9999/v1beta/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Hotkey != "Ctrl+Shift+T" {
		t.Errorf("Expected Hotkey to be 'Ctrl+Shift+T', got '%s'", cfg.Hotkey)
	}
	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true, got %v", cfg.EnableFileLogging)
	}
	if cfg.RequestTimeout() != 12*time.Second {
		t.Errorf("Expected RequestTimeout 12s, got %v", cfg.RequestTimeout())
	}
	if cfg.HistoryEnabled {
		t.Errorf("Expected HistoryEnabled to be false")
	}
	if cfg.GeminiBaseURL != "http://127.0.0.1:9999/v1beta" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.GeminiBaseURL)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HOTKEY", "SETTINGS_UI_ADDR", "GEMINI_BASE_URL", "REQUEST_TIMEOUT_SEC", "HISTORY_ENABLED"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hotkey != DefaultHotkey {
		t.Errorf("Hotkey = %q, want %q", cfg.Hotkey, DefaultHotkey)
	}
	if cfg.SettingsUIAddr != DefaultSettingsUIAddr {
		t.Errorf("SettingsUIAddr = %q", cfg.SettingsUIAddr)
	}
	if cfg.GeminiBaseURL != DefaultGeminiBaseURL {
		t.Errorf("GeminiBaseURL = %q", cfg.GeminiBaseURL)
	}
	if cfg.RequestTimeoutSec != 30 {
		t.Errorf("RequestTimeoutSec = %d, want 30", cfg.RequestTimeoutSec)
	}
	if !cfg.HistoryEnabled {
		t.Errorf("HistoryEnabled should default to true")
	}
	if filepath.Base(cfg.SettingsPath) != "settings.json" {
		t.Errorf("SettingsPath = %q", cfg.SettingsPath)
	}
}

func TestLoadWithOptionsSettingsPathOverride(t *testing.T) {
	t.Setenv("SETTINGS_PATH", "/from/env.json")

	cfg, err := LoadWithOptions(LoadOptions{SettingsPathOverride: "  /from/flag.json "})
	if err != nil {
		t.Fatalf("LoadWithOptions: %v", err)
	}
	if cfg.SettingsPath != "/from/flag.json" {
		t.Errorf("Expected override path, got %q", cfg.SettingsPath)
	}
}

func TestLoadAlternativeEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "custom.env")
	content := "SETTINGS_UI_ADDR=127.0.0.1:50001\nREQUEST_TIMEOUT_SEC=9\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvFileEnvVar, envFile)
	// process environment wins over the .env file
	t.Setenv("REQUEST_TIMEOUT_SEC", "5")
	t.Cleanup(func() { os.Unsetenv("SETTINGS_UI_ADDR") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SettingsUIAddr != "127.0.0.1:50001" {
		t.Errorf("Expected SETTINGS_UI_ADDR from env file, got %q", cfg.SettingsUIAddr)
	}
	if cfg.RequestTimeoutSec != 5 {
		t.Errorf("Expected process env to win, got %d", cfg.RequestTimeoutSec)
	}
}

func TestLoadInvalidNumber(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SEC", "abc")
	if _, err := Load(); err == nil {
		t.Errorf("Expected error for non-numeric REQUEST_TIMEOUT_SEC")
	}
}
