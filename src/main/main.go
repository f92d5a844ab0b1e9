package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"typofix/src/config"
	"typofix/src/eventloop"
	"typofix/src/history"
	"typofix/src/hotkey"
	"typofix/src/notification"
	"typofix/src/runtimeinit"
	"typofix/src/singleinstance"
	"typofix/src/tray"
	"typofix/src/web"
)

type mainOptions struct {
	runOnce      bool
	stdout       bool
	settingsPath string
}

// runOnceClient is the part of singleinstance.Client used for delegation.
type runOnceClient interface {
	TryFix(ctx context.Context, outputToStdout bool) (bool, string, error)
}

func main() {
	// systray and the Win32 windows need the main goroutine on one OS thread.
	runtime.LockOSThread()

	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{config.AppName}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           config.AppName,
		Short:         "Fix typos in the clipboard with Gemini from a global hotkey",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.runOnce {
				return runOnce(*opts, cmd.OutOrStdout())
			}
			return runResident(*opts)
		},
	}

	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Fix the clipboard once (delegating to a running instance) and exit")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "With --run-once, also print the corrected text to stdout")
	cmd.Flags().StringVar(&opts.settingsPath, "settings-path", "", "Path to settings.json (overrides SETTINGS_PATH)")
	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to their cobra form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, 0, len(args))
	normalized = append(normalized, args[0])
	for _, arg := range args[1:] {
		switch {
		case arg == "-run-once-std" || arg == "--run-once-std":
			normalized = append(normalized, "--run-once", "--stdout")
		case strings.HasPrefix(arg, "--"):
			normalized = append(normalized, arg)
		case isLegacyFlag(arg, "run-once"), isLegacyFlag(arg, "stdout"), isLegacyFlag(arg, "settings-path"):
			normalized = append(normalized, "-"+arg)
		default:
			normalized = append(normalized, arg)
		}
	}
	return normalized
}

func isLegacyFlag(arg, name string) bool {
	return arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=")
}

func loadOptions(opts mainOptions) config.LoadOptions {
	return config.LoadOptions{SettingsPathOverride: opts.settingsPath}
}

func runOnce(opts mainOptions, out io.Writer) error {
	// Load .env early so SINGLEINSTANCE_PORT_* apply before the delegation scan.
	if cfg, err := config.LoadWithOptions(loadOptions(opts)); err == nil {
		singleinstance.SetPortRange(cfg.PortStart, cfg.PortEnd)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return handleRunOnceWithDelegation(ctx, opts.stdout, singleinstance.NewClient(), out, func() (string, error) {
		return runStandalone(ctx, opts)
	})
}

// handleRunOnceWithDelegation asks a resident to run the fix. Without a resident,
// or when it cannot be reached, the fix runs in this process via fallback.
// Errors reported by the resident itself are returned as is.
func handleRunOnceWithDelegation(ctx context.Context, stdout bool, client runOnceClient, out io.Writer, fallback func() (string, error)) error {
	delegated, text, err := client.TryFix(ctx, stdout)
	var residentErr *singleinstance.ResidentError
	switch {
	case errors.As(err, &residentErr):
		return fmt.Errorf("resident: %w", err)
	case err != nil:
		zap.S().Warnw("Delegation failed, running standalone", "error", err)
		text, err = fallback()
	case !delegated:
		zap.S().Infow("No resident detected, running standalone")
		text, err = fallback()
	default:
		zap.S().Infow("Delegated to resident")
	}
	if err != nil {
		return err
	}
	if stdout {
		fmt.Fprint(out, text)
	}
	return nil
}

func runStandalone(ctx context.Context, opts mainOptions) (string, error) {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{LoadOptions: loadOptions(opts)})
	if err != nil {
		return "", err
	}
	defer rt.Logger.Sync()

	pipeline, err := newPipeline(rt, nil)
	if err != nil {
		return "", err
	}
	res, err := pipeline.Run(ctx)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

func runResident(opts mainOptions) error {
	enableDPIAwareness()

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:       loadOptions(opts),
		ShowBlockingError: notification.ShowBlockingError,
	})
	if err != nil {
		return err
	}
	log := rt.Logger
	defer log.Sync()
	cfg := rt.Config
	logMonitorConfiguration()

	preflight, cancelPreflight := context.WithTimeout(context.Background(), 2*time.Second)
	port, running := singleinstance.DetectResidentPort(preflight)
	cancelPreflight()
	if running {
		fmt.Printf("%s is already running on port %d\n", config.AppName, port)
		return fmt.Errorf("another instance is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopOpts := eventloop.Options{
		Server:         singleinstance.NewServer(),
		DefaultTooltip: fmt.Sprintf("Typofix - press %s to fix the clipboard", cfg.Hotkey),
		Deadline:       cfg.RequestTimeout() + 10*time.Second,
		Logger:         log,
	}

	var runs *history.DB
	if cfg.HistoryEnabled {
		runs, err = history.Open(cfg.HistoryPath)
		if err != nil {
			log.Warnw("Run history disabled", "path", cfg.HistoryPath, "error", err)
		} else {
			defer runs.Close()
			loopOpts.Recorder = runs
		}
	}

	uiOpts := web.Options{
		Addr:       cfg.SettingsUIAddr,
		Settings:   rt.Settings,
		ListModels: modelLister(cfg),
		Logger:     log,
	}
	if runs != nil {
		uiOpts.History = runs
	}
	ui := web.NewServer(uiOpts)
	if err := ui.Start(ctx); err != nil {
		log.Warnw("Settings UI unavailable", "error", err)
	} else {
		loopOpts.Status = ui
	}

	pipeline, err := newPipeline(rt, hotkey.Modifiers(cfg.Hotkey))
	if err != nil {
		return err
	}
	loopOpts.Pipeline = pipeline
	loop, err := eventloop.New(loopOpts)
	if err != nil {
		return err
	}

	listener, err := hotkey.Listen(cfg.Hotkey, loop.Trigger)
	if err != nil {
		notification.ShowBlockingError("Hotkey unavailable", fmt.Sprintf("Could not register %q: %v", cfg.Hotkey, err))
		return fmt.Errorf("register hotkey: %w", err)
	}
	defer listener.Stop()
	log.Infow("Typofix started", "hotkey", cfg.Hotkey, "settings_ui", ui.URL())

	openUI := func() {
		if ui.URL() == "" {
			notification.ShowBlockingError("Settings unavailable", "The settings page could not be started. Check the log for details.")
			return
		}
		if err := web.OpenBrowser(ui.URL()); err != nil {
			log.Warnw("Failed to open settings UI", "error", err)
		}
	}

	trayIcon, err := tray.New(tray.Config{
		Title:   "Typofix",
		Tooltip: loopOpts.DefaultTooltip,
		OnOpen:  openUI,
		OnExit:  cancel,
	})
	if err != nil {
		return fmt.Errorf("create tray: %w", err)
	}

	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("Event loop stopped", "error", err)
		}
		trayIcon.Quit()
	}()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			log.Infow("Signal received, shutting down")
			trayIcon.Quit()
		case <-ctx.Done():
		}
	}()

	if st, err := rt.Settings.Load(); err == nil && st.APIKey == "" {
		log.Infow("No API key stored, opening settings UI")
		openUI()
	}

	trayIcon.Run()
	ui.Shutdown()
	return nil
}
