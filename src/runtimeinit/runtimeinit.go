package runtimeinit

import (
	"fmt"

	"go.uber.org/zap"

	"typofix/src/clipboard"
	"typofix/src/config"
	"typofix/src/logutil"
	"typofix/src/singleinstance"
)

type Options struct {
	LoadOptions config.LoadOptions
	// Verbose forces debug-level console logging regardless of ENABLE_FILE_LOGGING.
	Verbose bool
	// SkipClipboard leaves the clipboard uninitialized (CLI commands that never touch it).
	SkipClipboard bool
	// ShowBlockingError reports fatal startup errors in a dialog.
	ShowBlockingError func(title, message string)
}

// Runtime is what every entry point needs after startup.
type Runtime struct {
	Config   *config.Config
	Settings *config.Store
	Logger   *zap.SugaredLogger
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logutil.Setup(cfg.EnableFileLogging && !opts.Verbose, cfg.LogDir)
	logger.Infow("Configuration loaded",
		"hotkey", cfg.Hotkey, "settings", cfg.SettingsPath, "ui", cfg.SettingsUIAddr,
		"history", cfg.HistoryEnabled, "ports", fmt.Sprintf("%d-%d", cfg.PortStart, cfg.PortEnd))

	singleinstance.SetPortRange(cfg.PortStart, cfg.PortEnd)

	store := config.NewStore(cfg.SettingsPath)
	if _, err := store.Load(); err != nil {
		logger.Warnw("Settings file unreadable, fix runs will fail until it is saved from the settings UI", "path", store.Path(), "error", err)
	}

	if !opts.SkipClipboard {
		if err := clipboard.Init(); err != nil {
			if opts.ShowBlockingError != nil {
				opts.ShowBlockingError("Clipboard unavailable", fmt.Sprintf("Failed to initialize clipboard: %v", err))
			}
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}

	return &Runtime{Config: cfg, Settings: store, Logger: logger}, nil
}
