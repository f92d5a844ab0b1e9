package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	AppName = "typofix"

	// EnvFileEnvVar names an alternative .env file used when none sits next to the executable.
	EnvFileEnvVar = "TYPOFIX_ENV"

	DefaultHotkey         = "Ctrl+Q"
	DefaultSettingsUIAddr = "127.0.0.1:49610"
	DefaultGeminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
)

type LoadOptions struct {
	SettingsPathOverride string
}

// Config is the process configuration. Per-user settings live in the Settings store.
type Config struct {
	Hotkey            string `env:"HOTKEY"`
	SettingsPath      string `env:"SETTINGS_PATH"`
	EnableFileLogging bool   `env:"ENABLE_FILE_LOGGING"`
	SettingsUIAddr    string `env:"SETTINGS_UI_ADDR"`
	GeminiBaseURL     string `env:"GEMINI_BASE_URL"`
	RequestTimeoutSec int    `env:"REQUEST_TIMEOUT_SEC"`
	HistoryEnabled    bool   `env:"HISTORY_ENABLED"`
	HistoryPath       string `env:"HISTORY_PATH"`
	PortStart         int    `env:"SINGLEINSTANCE_PORT_START"`
	PortEnd           int    `env:"SINGLEINSTANCE_PORT_END"`

	// LogDir is where the rotating debug log is written when file logging is on.
	LogDir string
}

// Defaults returns the configuration before .env and environment overrides.
func Defaults() *Config {
	dir := AppDir()
	return &Config{
		Hotkey:            DefaultHotkey,
		SettingsPath:      filepath.Join(dir, "settings.json"),
		SettingsUIAddr:    DefaultSettingsUIAddr,
		GeminiBaseURL:     DefaultGeminiBaseURL,
		RequestTimeoutSec: 30,
		HistoryEnabled:    true,
		HistoryPath:       filepath.Join(dir, "history.db"),
		PortStart:         49600,
		PortEnd:           49650,
		LogDir:            dir,
	}
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order (lowest first):
	// 1) built-in defaults
	// 2) .env in the executable directory, or the file named by TYPOFIX_ENV
	// 3) process environment (godotenv never overrides variables already set)
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if p := strings.TrimSpace(opts.SettingsPathOverride); p != "" {
		cfg.SettingsPath = p
	}
	cfg.Hotkey = strings.TrimSpace(cfg.Hotkey)
	if cfg.Hotkey == "" {
		cfg.Hotkey = DefaultHotkey
	}
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = 30
	}
	cfg.GeminiBaseURL = strings.TrimRight(cfg.GeminiBaseURL, "/")

	return cfg, nil
}

// RequestTimeout is the per-run deadline for the Gemini call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// AppDir is the per-user directory holding settings, history and logs.
func AppDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		if execPath, err := os.Executable(); err == nil {
			return filepath.Dir(execPath)
		}
		return "."
	}
	return filepath.Join(base, AppName)
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}
